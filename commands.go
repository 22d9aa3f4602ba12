package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"node.town/mindy/config"
	"node.town/mindy/pipeline"
	"node.town/mindy/ui"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one utterance and translate it",
	Long: `Record from the default microphone until two seconds of silence or
until Enter is pressed, then recognize and translate the recording.`,
	RunE: runRecord,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Recognize and translate an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var denoiseCmd = &cobra.Command{
	Use:   "denoise [file.wav]",
	Short: "Upload a WAV file for noise removal",
	Args:  cobra.ExactArgs(1),
	RunE:  runDenoise,
}

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Read text aloud",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "List the offered languages",
	Run:   runLangs,
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fileLogger, closer, err := ui.OpenLogFile("mindy.log", logger.GetLevel())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = fileLogger
	logs := createLoggers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events := ui.NewEvents()
	a := newApp(cfg, events, events.Notice, logs, nil)
	defer a.trigger.Cancel()

	logs.main.Info("tui", "base", cfg.BaseURL, "src", cfg.SourceLang, "tgt", cfg.TargetLang)
	return ui.Run(ctx, a.ctl, events, cfg.Silence.Threshold)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs := createLoggers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan struct{})
	var once sync.Once
	a := newApp(cfg, consoleObserver{logs.main}, noticeTo(logs.talk), logs, func() {
		once.Do(func() { close(done) })
	})

	if err := a.ctl.StartRecording(ctx); err != nil {
		return err
	}
	fmt.Fprintf(
		os.Stderr,
		"Recording %s. Press Enter to stop, or just stop talking.\n",
		config.LanguageName(cfg.SourceLang),
	)

	go func() {
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err == nil {
			if err := a.ctl.StopRecording(); err != nil {
				logs.hear.Warn("stop", "error", err)
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err := a.ctl.Abort(); err != nil {
			logs.hear.Warn("abort", "error", err)
		}
		return ctx.Err()
	}

	return finish(cmd, a, a.ctl.Snapshot())
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs := createLoggers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg, consoleObserver{logs.main}, noticeTo(logs.talk), logs, nil)
	if _, err := a.ctl.Upload(ctx, args[0]); err != nil {
		logs.main.Debug("upload", "error", err)
	}
	return finish(cmd, a, a.ctl.Snapshot())
}

func runDenoise(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs := createLoggers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg, consoleObserver{logs.main}, noticeTo(logs.talk), logs, nil)
	res, err := a.ctl.Denoise(ctx, args[0])
	if err != nil {
		return errors.New(pipeline.UserMessage(err))
	}
	printResult(res)
	return nil
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs := createLoggers()

	lang, _ := cmd.Flags().GetString("lang")
	if lang == "" {
		lang = cfg.TargetLang
	}

	a := newApp(cfg, pipeline.NopObserver{}, noticeTo(logs.talk), logs, nil)
	return say(a, strings.Join(args, " "), lang)
}

func runLangs(cmd *cobra.Command, args []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Language"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, l := range config.Languages {
		table.Append([]string{l.Code, l.Name})
	}
	table.Render()
}

// finish prints what the run produced and turns a failed run into the
// command's error. With --speak the translation is read aloud.
func finish(cmd *cobra.Command, a *app, snap pipeline.Snapshot) error {
	printResult(snap.Result)
	if snap.State.Stage == pipeline.Failed {
		return errors.New(snap.State.Reason)
	}

	if speak, _ := cmd.Flags().GetBool("speak"); speak {
		_, tgt := a.ctl.Languages()
		return say(a, snap.Result.TranslatedText, tgt)
	}
	return nil
}

func say(a *app, text, lang string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.trigger.Speak(text, lang); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		a.trigger.Cancel()
	}()
	a.trigger.Wait()
	return nil
}

func printResult(res pipeline.Result) {
	field := func(label, value string) {
		if value != "" {
			fmt.Printf("%-10s %s\n", label+":", value)
		}
	}
	field("heard", res.RecognizedText)
	field("said", res.TranslatedText)
	field("original", res.OriginalAudioURL)
	field("denoised", res.DenoisedAudioURL)
}

func noticeTo(logger *log.Logger) func(string) {
	return func(msg string) {
		logger.Warn(msg)
	}
}
