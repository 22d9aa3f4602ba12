package main

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"node.town/mindy/api"
	"node.town/mindy/config"
	"node.town/mindy/speech"
)

func TestNewEngine(t *testing.T) {
	client := api.New("http://localhost:8000", log.New(io.Discard))
	logger := log.New(io.Discard)

	cases := []struct {
		engine string
		check  func(speech.Engine) bool
	}{
		{config.EngineCommand, func(e speech.Engine) bool {
			_, ok := e.(*speech.CommandEngine)
			return ok
		}},
		{config.EngineRemote, func(e speech.Engine) bool {
			r, ok := e.(*speech.RemoteEngine)
			return ok && r.Service == client
		}},
		{config.EngineElevenLabs, func(e speech.Engine) bool {
			_, ok := e.(*speech.ElevenLabsEngine)
			return ok
		}},
	}
	for _, c := range cases {
		cfg := &config.Config{
			SpeechEngine:     c.engine,
			SpeechCommand:    "espeak-ng",
			ElevenLabsAPIKey: "key",
		}
		if e := newEngine(cfg, client, logger); !c.check(e) {
			t.Errorf("newEngine(%q) = %T", c.engine, e)
		}
	}
}

func TestValidateURL(t *testing.T) {
	for _, s := range []string{"http://localhost:8000", "https://mindy.example"} {
		if err := validateURL(s); err != nil {
			t.Errorf("validateURL(%q) = %v", s, err)
		}
	}
	for _, s := range []string{"", "localhost:8000", "ftp://host", "http://"} {
		if err := validateURL(s); err == nil {
			t.Errorf("validateURL(%q) = nil", s)
		}
	}
}

func TestCheckPaths(t *testing.T) {
	if err := checkPaths(
		map[string]string{"/api/translate-text": "down"},
		map[string]int{"/api/stt": 503},
	); err != nil {
		t.Errorf("checkPaths() = %v", err)
	}
	if err := checkPaths(map[string]string{"/api/nope": "x"}, nil); err == nil {
		t.Error("checkPaths() accepted an unknown endpoint")
	}
}
