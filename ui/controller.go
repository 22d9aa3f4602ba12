package ui

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"node.town/mindy/pipeline"
	"node.town/mindy/recorder"
	"node.town/mindy/source"
)

type Recorder interface {
	Start(ctx context.Context) error
	Stop() error
	Recording() bool
}

type Speaker interface {
	Speak(text, lang string) error
	Cancel()
}

// Controller connects the recorder, the pipeline and speech. The TUI and
// the record command drive it; it never touches the terminal.
type Controller struct {
	orch    *pipeline.Orchestrator
	rec     Recorder
	speaker Speaker
	log     *log.Logger

	mu       sync.Mutex
	capture  *pipeline.Capture
	starting bool
	early    *completion
	ctx      context.Context
	src      string
	tgt      string
}

// completion is a recording that finished before StartRecording returned.
type completion struct {
	blob recorder.Blob
	err  error
}

func NewController(
	orch *pipeline.Orchestrator,
	rec Recorder,
	speaker Speaker,
	src, tgt string,
	logger *log.Logger,
) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		orch:    orch,
		rec:     rec,
		speaker: speaker,
		log:     logger,
		ctx:     context.Background(),
		src:     src,
		tgt:     tgt,
	}
}

// SetRecorder wires the recorder after construction, since the recorder's
// completion callback is the controller's OnRecording.
func (c *Controller) SetRecorder(rec Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec = rec
}

func (c *Controller) Languages() (src, tgt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src, c.tgt
}

// SetLanguages is refused while an operation is in flight.
func (c *Controller) SetLanguages(src, tgt string) error {
	if c.orch.Busy() {
		return pipeline.ErrBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.src, c.tgt = src, tgt
	return nil
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	return rec != nil && rec.Recording()
}

// StartRecording reserves the pipeline and opens the microphone. ctx bounds
// the remote calls made once the recording completes. A recording that ends
// while the microphone is still being started is handled before returning.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	rec := c.rec
	c.starting = true
	c.ctx = ctx
	c.mu.Unlock()

	capture, err := c.orch.StartCapture(
		func() error { return rec.Start(ctx) },
		rec.Stop,
	)

	c.mu.Lock()
	c.starting = false
	early := c.early
	c.early = nil
	if err == nil {
		c.capture = capture
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if early != nil {
		c.log.Warn("recording", "ended", "during start")
		c.OnRecording(early.blob, early.err)
	}
	return nil
}

func (c *Controller) StopRecording() error {
	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	return rec.Stop()
}

// Abort stops a live recording without submitting it.
func (c *Controller) Abort() error {
	c.mu.Lock()
	capture := c.capture
	rec := c.rec
	c.capture = nil
	c.mu.Unlock()

	if capture == nil {
		return nil
	}
	err := rec.Stop()
	capture.Fail(context.Canceled)
	return err
}

// OnRecording receives the finished recording and runs it through the
// pipeline. It is the recorder's completion callback.
func (c *Controller) OnRecording(blob recorder.Blob, err error) {
	c.mu.Lock()
	if c.capture == nil && c.starting {
		c.early = &completion{blob: blob, err: err}
		c.mu.Unlock()
		return
	}
	capture := c.capture
	ctx := c.ctx
	src, tgt := c.src, c.tgt
	c.capture = nil
	c.mu.Unlock()

	if capture == nil {
		c.log.Debug("recording", "dropped", len(blob.Data))
		return
	}
	if err != nil {
		capture.Fail(err)
		return
	}

	c.log.Info("recording", "bytes", len(blob.Data), "type", blob.MIMEType)
	capture.Submit(ctx, source.FromRecording(blob, src), src, tgt)
}

// Upload runs an audio file through the pipeline.
func (c *Controller) Upload(ctx context.Context, path string) (pipeline.Result, error) {
	src, tgt := c.Languages()
	return c.orch.RunFile(ctx, path, src, tgt)
}

func (c *Controller) Denoise(ctx context.Context, path string) (pipeline.Result, error) {
	return c.orch.Denoise(ctx, path)
}

// Speak reads the translated text aloud in the target language.
func (c *Controller) Speak() error {
	_, tgt := c.Languages()
	return c.speaker.Speak(c.orch.Snapshot().Result.TranslatedText, tgt)
}

func (c *Controller) Hush() {
	c.speaker.Cancel()
}

func (c *Controller) Snapshot() pipeline.Snapshot {
	return c.orch.Snapshot()
}
