package mic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

// ErrDeviceUnavailable means the microphone could not be acquired, either
// because access was refused or because there is no input device.
var ErrDeviceUnavailable = errors.New("microphone unavailable")

type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live PCM capture. Read blocks until a full frame is
// available.
type Stream interface {
	Read() ([]int16, error)
	Close() error
}

type PortAudio struct {
	SampleRate float64
	FrameSize  int
	Logger     *log.Logger
}

func NewPortAudio(sampleRate, frameSize int, logger *log.Logger) *PortAudio {
	return &PortAudio{
		SampleRate: float64(sampleRate),
		FrameSize:  frameSize,
		Logger:     logger,
	}
}

func (p *PortAudio) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: no input device: %v", ErrDeviceUnavailable, err)
	}

	buf := make([]int16, p.FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, p.SampleRate, len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	p.Logger.Info("mic", "rate", p.SampleRate, "frame", p.FrameSize)

	return &portAudioStream{stream: stream, buf: buf, logger: p.Logger}, nil
}

type portAudioStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
	logger *log.Logger
}

func (s *portAudioStream) Read() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("read from closed stream")
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("read mic: %w", err)
		}
		// The buffer still holds a full frame; only older input was lost.
		s.logger.Debug("mic", "overflow", true)
	}

	frame := make([]int16, len(s.buf))
	copy(frame, s.buf)
	return frame, nil
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if e := s.stream.Stop(); e != nil {
		err = multierr.Append(err, fmt.Errorf("stop stream: %w", e))
	}
	if e := s.stream.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("close stream: %w", e))
	}
	if e := portaudio.Terminate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("terminate: %w", e))
	}
	s.logger.Info("mic", "released", true)
	return err
}
