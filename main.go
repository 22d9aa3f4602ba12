package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/mindy/config"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(denoiseCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(langsCmd)
	rootCmd.AddCommand(devserverCmd)
	rootCmd.AddCommand(setupCmd)

	uploadCmd.Flags().Bool("speak", false, "Speak the translation when done")
	recordCmd.Flags().Bool("speak", false, "Speak the translation when done")
	speakCmd.Flags().String("lang", "", "Language to speak in (defaults to the target language)")

	// Add persistent flags
	rootCmd.PersistentFlags().String("base-url", "", "Speech service base URL")
	rootCmd.PersistentFlags().String("source-lang", "", "Spoken language code")
	rootCmd.PersistentFlags().String("target-lang", "", "Translation language code")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("speech-engine", "", "Speech engine: command, remote or elevenlabs")
	rootCmd.PersistentFlags().
		String("elevenlabs-api-key", "", "ElevenLabs API key")

	// Bind flags to viper
	viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag(
		"source_lang",
		rootCmd.PersistentFlags().Lookup("source-lang"),
	)
	viper.BindPFlag(
		"target_lang",
		rootCmd.PersistentFlags().Lookup("target-lang"),
	)
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(
		"speech.engine",
		rootCmd.PersistentFlags().Lookup("speech-engine"),
	)
	viper.BindPFlag(
		"elevenlabs_api_key",
		rootCmd.PersistentFlags().Lookup("elevenlabs-api-key"),
	)
}

func initConfig() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading .env: %s\n", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("mindy")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stderr)
}

var rootCmd = &cobra.Command{
	Use:   "mindy",
	Short: "Mindy records speech and translates it",
	Long: `Mindy records from the microphone until you stop talking, sends the
audio to a speech service for recognition and translation, and can read the
translation aloud.`,
	RunE: runTUI,
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	logger.SetLevel(level)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createLoggers() loggers {
	logger.SetReportCaller(logger.GetLevel() == log.DebugLevel)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(16)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	return loggers{
		main: logger.With().WithPrefix("main"),
		hear: logger.With().WithPrefix("hear"),
		talk: logger.With().WithPrefix("talk"),
	}
}
