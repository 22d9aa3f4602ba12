package main

import (
	"github.com/charmbracelet/log"
	"node.town/mindy/api"
	"node.town/mindy/audio"
	"node.town/mindy/config"
	"node.town/mindy/mic"
	"node.town/mindy/pipeline"
	"node.town/mindy/recorder"
	"node.town/mindy/speech"
	"node.town/mindy/ui"
)

type app struct {
	cfg     *config.Config
	client  *api.Client
	orch    *pipeline.Orchestrator
	rec     *recorder.Recorder
	ctl     *ui.Controller
	trigger *speech.Trigger
}

type loggers struct {
	main *log.Logger
	hear *log.Logger
	talk *log.Logger
}

// newApp wires the recorder, the pipeline and speech together. recorded,
// if set, is called after each recording has gone through the pipeline.
func newApp(
	cfg *config.Config,
	observer pipeline.Observer,
	notify func(string),
	logs loggers,
	recorded func(),
) *app {
	client := api.New(cfg.BaseURL, logs.main.WithPrefix("api"))
	orch := pipeline.New(client, observer, logs.main)
	trigger := speech.NewTrigger(newEngine(cfg, client, logs.talk), notify, logs.talk)

	a := &app{
		cfg:     cfg,
		client:  client,
		orch:    orch,
		trigger: trigger,
	}
	a.ctl = ui.NewController(orch, nil, trigger, cfg.SourceLang, cfg.TargetLang, logs.main)

	a.rec = recorder.New(recorder.Options{
		Device:    mic.NewPortAudio(audio.SampleRate, audio.FrameSize, logs.hear),
		Silence:   cfg.Silence,
		Window:    cfg.Window,
		FrameRate: cfg.FrameRate,
		OnComplete: func(blob recorder.Blob, err error) {
			a.ctl.OnRecording(blob, err)
			if recorded != nil {
				recorded()
			}
		},
		Logger: logs.hear,
	})
	a.ctl.SetRecorder(a.rec)
	return a
}

func newEngine(cfg *config.Config, client *api.Client, logger *log.Logger) speech.Engine {
	switch cfg.SpeechEngine {
	case config.EngineRemote:
		return &speech.RemoteEngine{Service: client, Player: audio.NewPlayer(logger)}
	case config.EngineElevenLabs:
		return speech.NewElevenLabsEngine(cfg.ElevenLabsAPIKey, cfg.VoiceID, audio.NewPlayer(logger))
	default:
		return speech.NewCommandEngine(cfg.SpeechCommand)
	}
}

// consoleObserver reports pipeline progress on the log for the
// non-interactive commands.
type consoleObserver struct {
	log *log.Logger
}

func (c consoleObserver) StateChanged(s pipeline.State) {
	if s.Reason != "" {
		c.log.Info("state", "stage", s.Stage, "reason", s.Reason)
		return
	}
	c.log.Info("state", "stage", s.Stage)
}

func (c consoleObserver) Published(r pipeline.Result) {
	if r.TranslatedText == "" && r.RecognizedText != "" {
		c.log.Info("hear", "txt", r.RecognizedText)
	}
}

func (c consoleObserver) Notice(msg string) {
	if msg != "" {
		c.log.Warn(msg)
	}
}
