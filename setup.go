package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/mindy/config"
)

const configFile = "config.yaml"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write config.yaml interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSetup()
	},
}

func RunSetup() error {
	logs := createLoggers()
	logs.main.Info("Starting Mindy setup...")

	if _, err := os.Stat(configFile); err == nil {
		overwrite := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s exists. Overwrite it?", configFile)).
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			return nil
		}
	}

	baseURL := viper.GetString("base_url")
	sourceLang := viper.GetString("source_lang")
	targetLang := viper.GetString("target_lang")
	engine := viper.GetString("speech.engine")
	apiKey := viper.GetString("elevenlabs_api_key")

	languages := make([]huh.Option[string], 0, len(config.Languages))
	for _, l := range config.Languages {
		languages = append(languages, huh.NewOption(l.Name, l.Code))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Speech service URL").
				Value(&baseURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Spoken language").
				Options(languages...).
				Value(&sourceLang),
			huh.NewSelect[string]().
				Title("Translate into").
				Options(languages...).
				Value(&targetLang),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech engine").
				Options(
					huh.NewOption("Local command (espeak-ng)", config.EngineCommand),
					huh.NewOption("Speech service /api/tts", config.EngineRemote),
					huh.NewOption("ElevenLabs", config.EngineElevenLabs),
				).
				Value(&engine),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter your ElevenLabs API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		).WithHideFunc(func() bool {
			return engine != config.EngineElevenLabs
		}),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	viper.Set("base_url", baseURL)
	viper.Set("source_lang", sourceLang)
	viper.Set("target_lang", targetLang)
	viper.Set("speech.engine", engine)
	if engine == config.EngineElevenLabs {
		viper.Set("elevenlabs_api_key", apiKey)
	}

	if _, err := config.Load(viper.GetViper()); err != nil {
		return err
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("write %s: %w", configFile, err)
	}

	logs.main.Info("Setup completed successfully!", "file", configFile)
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("enter an http:// or https:// URL")
	}
	return nil
}
