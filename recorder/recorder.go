package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"node.town/mindy/audio"
	"node.town/mindy/mic"
	"node.town/mindy/silence"
)

var ErrAlreadyRecording = errors.New("already recording")

type State int

const (
	Idle State = iota
	Recording
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Blob is a finished recording.
type Blob struct {
	Data      []byte
	MIMEType  string
	Duration  time.Duration
	Fragments int
}

type Options struct {
	Device     mic.Device
	NewEncoder func() (audio.Encoder, error)
	Silence    silence.Config
	Window     int
	FrameRate  int
	Clock      silence.Clock
	// Frames supplies the detector's tick source. Defaults to a ticker at
	// FrameRate.
	Frames func() (<-chan time.Time, func())
	// OnComplete is called once per session after the encoder is finalised
	// and the stream released.
	OnComplete func(Blob, error)
	Logger     *log.Logger
}

type Recorder struct {
	opts Options
	log  *log.Logger

	mu      sync.Mutex
	state   State
	session *session
}

func New(opts Options) *Recorder {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Frames == nil {
		rate := opts.FrameRate
		opts.Frames = func() (<-chan time.Time, func()) {
			return silence.Frames(rate)
		}
	}
	if opts.NewEncoder == nil {
		logger := opts.Logger
		opts.NewEncoder = func() (audio.Encoder, error) {
			return audio.NewOggOpusEncoder(logger)
		}
	}
	return &Recorder{
		opts: opts,
		log:  opts.Logger,
	}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Recording() bool {
	return r.State() == Recording
}

// Start acquires the microphone and begins a new session. On failure
// nothing is held and the state is unchanged.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording || r.state == Stopping {
		return ErrAlreadyRecording
	}

	stream, err := r.opts.Device.Open(ctx)
	if err != nil {
		if !errors.Is(err, mic.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", mic.ErrDeviceUnavailable, err)
		}
		r.log.Error("mic", "error", err)
		return err
	}

	enc, err := r.opts.NewEncoder()
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		return fmt.Errorf("create encoder: %w", err)
	}

	s := &session{
		stream:      stream,
		encoder:     enc,
		analyser:    silence.NewAnalyser(r.opts.Window),
		quit:        make(chan struct{}),
		captureDone: make(chan struct{}),
		startedAt:   time.Now(),
		log:         r.log,
	}

	detector := silence.NewDetector(
		r.opts.Silence,
		r.opts.Clock,
		func() { r.stopSession(s) },
		r.log,
	)
	frames, stopFrames := r.opts.Frames()
	s.stopFrames = stopFrames

	r.session = s
	r.state = Recording

	go r.capture(s)
	s.detector = detector.Attach(s.analyser, frames)

	r.log.Info("recording", "state", r.state)
	return nil
}

// Stop ends the current session. It is a no-op unless recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	return r.stopSession(s)
}

func (r *Recorder) stopSession(s *session) error {
	r.mu.Lock()
	if r.session != s || r.state != Recording {
		r.mu.Unlock()
		return nil
	}
	r.state = Stopping
	r.mu.Unlock()

	blob, err := s.finish()

	r.mu.Lock()
	r.state = Stopped
	r.session = nil
	r.mu.Unlock()

	if err != nil {
		r.log.Error("recording", "error", err)
	} else {
		r.log.Info("recording", "bytes", len(blob.Data), "duration", blob.Duration)
	}

	if r.opts.OnComplete != nil {
		r.opts.OnComplete(blob, err)
	}
	return err
}

func (r *Recorder) capture(s *session) {
	defer close(s.captureDone)

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		frame, err := s.stream.Read()
		if err != nil {
			s.fail(err)
			go r.stopSession(s)
			return
		}

		s.analyser.Write(frame)

		fragments, err := s.encoder.Encode(frame)
		if err != nil {
			s.fail(err)
			go r.stopSession(s)
			return
		}
		s.append(fragments)
	}
}
