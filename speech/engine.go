package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/haguro/elevenlabs-go"
	"github.com/vincent-petithory/dataurl"
)

// Player plays an encoded clip until it ends or ctx is cancelled.
// *audio.Player implements it.
type Player interface {
	Play(ctx context.Context, data []byte, mimeType string) error
}

// CommandEngine runs a local synthesizer such as espeak-ng.
type CommandEngine struct {
	Command string
	// Voices maps language codes to the command's voice names. Codes without
	// an entry are passed through.
	Voices map[string]string
}

func NewCommandEngine(command string) *CommandEngine {
	if command == "" {
		command = "espeak-ng"
	}
	return &CommandEngine{
		Command: command,
		Voices: map[string]string{
			"zh": "cmn",
		},
	}
}

func (e *CommandEngine) Say(ctx context.Context, text, lang string) error {
	voice := lang
	if v, ok := e.Voices[lang]; ok {
		voice = v
	}

	cmd := exec.CommandContext(ctx, e.Command, "-v", voice, text)
	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", e.Command, err)
	}
	return nil
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// RemoteEngine asks the service's /api/tts endpoint for audio and plays it.
type RemoteEngine struct {
	Service Synthesizer
	Player  Player
}

func (e *RemoteEngine) Say(ctx context.Context, text, lang string) error {
	audioData, err := e.Service.Synthesize(ctx, text, lang)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	clip, err := dataurl.DecodeString(audioData)
	if err != nil {
		return fmt.Errorf("decode audio data: %w", err)
	}
	return e.Player.Play(ctx, clip.Data, clip.MediaType.ContentType())
}

type ElevenLabsEngine struct {
	APIKey  string
	VoiceID string
	ModelID string
	Player  Player
}

func NewElevenLabsEngine(apiKey, voiceID string, player Player) *ElevenLabsEngine {
	if voiceID == "" {
		voiceID = "pKLLpypGseGMUjkb5fEZ"
	}
	return &ElevenLabsEngine{
		APIKey:  apiKey,
		VoiceID: voiceID,
		ModelID: "eleven_turbo_v2_5",
		Player:  player,
	}
}

func (e *ElevenLabsEngine) Say(ctx context.Context, text, lang string) error {
	client := elevenlabs.NewClient(ctx, e.APIKey, 30*time.Second)
	ttsReq := elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: e.ModelID,
	}

	var buf bytes.Buffer
	if err := client.TextToSpeechStream(&buf, e.VoiceID, ttsReq); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to generate speech: %w", err)
	}
	return e.Player.Play(ctx, buf.Bytes(), "audio/mpeg")
}
