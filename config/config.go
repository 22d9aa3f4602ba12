package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"node.town/mindy/silence"
)

const (
	EngineCommand    = "command"
	EngineRemote     = "remote"
	EngineElevenLabs = "elevenlabs"
)

type Config struct {
	BaseURL    string
	SourceLang string
	TargetLang string
	LogLevel   string

	Silence silence.Config
	// FrameRate is the analysis cadence in ticks per second.
	FrameRate int
	Window    int

	SpeechEngine     string
	SpeechCommand    string
	ElevenLabsAPIKey string
	VoiceID          string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("source_lang", "ko")
	v.SetDefault("target_lang", "en")
	v.SetDefault("log_level", "info")
	v.SetDefault("silence.threshold", silence.DefaultThreshold)
	v.SetDefault("silence.deviation", silence.DefaultDeviation)
	v.SetDefault("silence.frame_rate", silence.DefaultFrameRate)
	v.SetDefault("silence.window", silence.DefaultWindow)
	v.SetDefault("speech.engine", EngineCommand)
	v.SetDefault("speech.command", "espeak-ng")
	v.SetDefault("speech.voice_id", "")
}

// LoadEnv reads .env files into the environment. Missing files are not an
// error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		BaseURL:    v.GetString("base_url"),
		SourceLang: v.GetString("source_lang"),
		TargetLang: v.GetString("target_lang"),
		LogLevel:   v.GetString("log_level"),
		Silence: silence.Config{
			Threshold: v.GetDuration("silence.threshold"),
			Deviation: v.GetInt("silence.deviation"),
		},
		FrameRate:        v.GetInt("silence.frame_rate"),
		Window:           v.GetInt("silence.window"),
		SpeechEngine:     v.GetString("speech.engine"),
		SpeechCommand:    v.GetString("speech.command"),
		ElevenLabsAPIKey: v.GetString("elevenlabs_api_key"),
		VoiceID:          v.GetString("speech.voice_id"),
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q is not an http(s) URL", c.BaseURL)
	}
	if c.Silence.Threshold <= 0 {
		return fmt.Errorf("silence.threshold must be positive, got %v", c.Silence.Threshold)
	}
	if c.Silence.Deviation <= 0 || c.Silence.Deviation > 128 {
		return fmt.Errorf("silence.deviation must be in 1..128, got %d", c.Silence.Deviation)
	}
	if c.FrameRate <= 0 || c.FrameRate > 1000 {
		return fmt.Errorf("silence.frame_rate must be in 1..1000, got %d", c.FrameRate)
	}
	if c.Window <= 0 {
		return fmt.Errorf("silence.window must be positive, got %d", c.Window)
	}
	switch c.SpeechEngine {
	case EngineCommand, EngineRemote:
	case EngineElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return errors.New("speech.engine elevenlabs needs elevenlabs_api_key")
		}
	default:
		return fmt.Errorf("unknown speech.engine %q", c.SpeechEngine)
	}
	return nil
}
