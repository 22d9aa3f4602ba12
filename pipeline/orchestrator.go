package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"node.town/mindy/api"
	"node.town/mindy/etc"
	"node.town/mindy/source"
)

// Service is the remote side of the pipeline. *api.Client implements it.
type Service interface {
	Recognize(ctx context.Context, audioData, sourceLang string) (api.Recognition, error)
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Denoise(ctx context.Context, filename string, audio io.Reader) (api.Denoised, error)
}

type Orchestrator struct {
	service  Service
	observer Observer
	log      *log.Logger

	mu     sync.Mutex
	busy   bool
	runID  string
	state  State
	result Result
	notice string
}

func New(service Service, observer Observer, logger *log.Logger) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		service:  service,
		observer: observer,
		log:      logger,
	}
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		RunID:  o.runID,
		State:  o.state,
		Result: o.result,
		Notice: o.notice,
	}
}

// Busy reports whether an operation is in flight. Record and upload
// controls are disabled while it is true.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

func (o *Orchestrator) reserve() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	o.busy = true
	return nil
}

// Capture is a reserved microphone run. Exactly one of Submit or Fail
// should be called once the recording completes.
type Capture struct {
	o       *Orchestrator
	release func() error
	once    sync.Once
}

// StartCapture reserves the pipeline and calls start to acquire the
// microphone. If start fails the state is left as it was, a notice is
// recorded and the reservation is dropped. release is called in the
// cleanup path of the run that follows.
func (o *Orchestrator) StartCapture(start, release func() error) (*Capture, error) {
	if err := o.reserve(); err != nil {
		o.setNotice(UserMessage(err))
		return nil, err
	}

	if err := start(); err != nil {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
		o.log.Error("capture", "error", err)
		o.setNotice(UserMessage(err))
		return nil, err
	}

	o.mu.Lock()
	o.result = Result{}
	o.notice = ""
	o.mu.Unlock()
	o.setState(State{Stage: Capturing})

	return &Capture{o: o, release: release}, nil
}

// Submit runs the recorded payload through the pipeline.
func (c *Capture) Submit(
	ctx context.Context,
	payload source.Payload,
	sourceLang, targetLang string,
) (res Result, err error) {
	ran := false
	c.once.Do(func() {
		ran = true
		res, err = c.o.run(ctx, payload, sourceLang, targetLang, c.release)
	})
	if !ran {
		return Result{}, fmt.Errorf("capture already finished")
	}
	return res, err
}

// Fail ends the capture without a run, e.g. when the recording itself
// failed.
func (c *Capture) Fail(cause error) {
	c.once.Do(func() {
		c.o.fail(cause)
		c.o.cleanup(c.release)
	})
}

// Run is the upload entry point. It fails with ErrBusy while another
// operation is in flight.
func (o *Orchestrator) Run(
	ctx context.Context,
	payload source.Payload,
	sourceLang, targetLang string,
) (Result, error) {
	if err := o.reserve(); err != nil {
		o.setNotice(UserMessage(err))
		return Result{}, err
	}
	return o.run(ctx, payload, sourceLang, targetLang, nil)
}

// RunFile is Run for an audio file on disk. A file that cannot be turned
// into a payload fails the operation like any remote stage would.
func (o *Orchestrator) RunFile(
	ctx context.Context,
	path string,
	sourceLang, targetLang string,
) (Result, error) {
	if err := o.reserve(); err != nil {
		o.setNotice(UserMessage(err))
		return Result{}, err
	}

	payload, err := source.FromFile(path, sourceLang)
	if err != nil {
		defer o.cleanup(nil)
		o.mu.Lock()
		o.result = Result{}
		o.mu.Unlock()
		o.log.Error("upload", "path", path, "error", err)
		return Result{}, o.fail(err)
	}
	return o.run(ctx, payload, sourceLang, targetLang, nil)
}

func (o *Orchestrator) run(
	ctx context.Context,
	payload source.Payload,
	sourceLang, targetLang string,
	release func() error,
) (Result, error) {
	defer o.cleanup(release)

	id := etc.NewRunID()
	o.mu.Lock()
	o.runID = id
	o.result = Result{}
	o.notice = ""
	o.mu.Unlock()

	logger := o.log.With("run", id)
	logger.Info("run", "kind", payload.Kind, "bytes", payload.Size, "src", sourceLang, "tgt", targetLang)

	o.setState(State{Stage: AwaitingRecognition})
	rec, err := o.service.Recognize(ctx, payload.Data, sourceLang)
	if err != nil {
		logger.Error("recognize", "error", err)
		return o.Snapshot().Result, o.fail(fmt.Errorf("recognize: %w", err))
	}
	logger.Info("hear", "txt", rec.RecognizedText)

	o.publish(func(r *Result) {
		r.RecognizedText = rec.RecognizedText
		r.CleanedAudio = rec.CleanedAudio
		r.OriginalAudioURL = rec.OriginalFileURL
		r.DenoisedAudioURL = rec.DenoisedFileURL
	})

	o.setState(State{Stage: AwaitingTranslation})
	translated, err := o.service.Translate(ctx, rec.RecognizedText, sourceLang, targetLang)
	if err != nil {
		logger.Error("translate", "error", err)
		return o.Snapshot().Result, o.fail(fmt.Errorf("translate: %w", err))
	}
	logger.Info("translated", "txt", translated)

	res := o.publish(func(r *Result) {
		r.TranslatedText = translated
	})
	o.setState(State{Stage: Ready})
	return res, nil
}

// Denoise uploads a WAV file to the denoising endpoint and publishes the
// original and denoised URLs.
func (o *Orchestrator) Denoise(ctx context.Context, path string) (res Result, err error) {
	if err := o.reserve(); err != nil {
		o.setNotice(UserMessage(err))
		return Result{}, err
	}
	defer o.cleanup(nil)

	o.mu.Lock()
	o.runID = etc.NewRunID()
	o.result = Result{}
	o.notice = ""
	o.mu.Unlock()

	mimeType, err := source.TypeOf(path)
	if err == nil && mimeType != "audio/wav" {
		err = fmt.Errorf("%w: denoising needs a WAV file", source.ErrUnsupportedFormat)
	}
	if err != nil {
		return Result{}, o.fail(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, o.fail(fmt.Errorf("open audio file: %w", err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			o.log.Warn("denoise", "close", cerr)
		}
	}()

	o.setState(State{Stage: Denoising})
	d, err := o.service.Denoise(ctx, etc.FreshName(filepath.Base(path)), f)
	if err != nil {
		o.log.Error("denoise", "error", err)
		return Result{}, o.fail(fmt.Errorf("denoise: %w", err))
	}

	res = o.publish(func(r *Result) {
		r.OriginalAudioURL = d.OriginalFileURL
		r.DenoisedAudioURL = d.DenoisedFileURL
	})
	o.setState(State{Stage: Ready})
	return res, nil
}

func (o *Orchestrator) publish(update func(*Result)) Result {
	o.mu.Lock()
	update(&o.result)
	res := o.result
	o.mu.Unlock()

	o.observer.Published(res)
	return res
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	o.log.Debug("state", "stage", s.Stage)
	o.observer.StateChanged(s)
}

func (o *Orchestrator) setNotice(msg string) {
	o.mu.Lock()
	o.notice = msg
	o.mu.Unlock()

	o.observer.Notice(msg)
}

// fail moves the run to Failed with one user-facing message and returns
// err for the caller.
func (o *Orchestrator) fail(err error) error {
	msg := UserMessage(err)
	o.setState(State{Stage: Failed, Reason: msg})
	o.setNotice(msg)
	return err
}

// cleanup runs on every exit path of an operation.
func (o *Orchestrator) cleanup(release func() error) {
	var err error
	if release != nil {
		err = multierr.Append(err, release())
	}

	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()

	if err != nil {
		o.log.Warn("cleanup", "error", err)
	}
}
