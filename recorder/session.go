package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"node.town/mindy/audio"
	"node.town/mindy/mic"
	"node.town/mindy/silence"
)

type session struct {
	stream     mic.Stream
	encoder    audio.Encoder
	analyser   *silence.Analyser
	detector   *silence.Handle
	stopFrames func()

	quit        chan struct{}
	captureDone chan struct{}
	startedAt   time.Time
	log         *log.Logger

	mu         sync.Mutex
	fragments  []audio.Fragment
	captureErr error
	released   bool
}

func (s *session) append(fragments []audio.Fragment) {
	if len(fragments) == 0 {
		return
	}
	s.mu.Lock()
	s.fragments = append(s.fragments, fragments...)
	s.mu.Unlock()
}

func (s *session) fail(err error) {
	s.mu.Lock()
	if s.captureErr == nil {
		s.captureErr = err
	}
	s.mu.Unlock()
}

// finish stops capture and analysis, finalises the encoder and assembles
// the blob. The stream is released whatever happens.
func (s *session) finish() (blob Blob, err error) {
	defer func() {
		if rerr := s.release(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("release stream: %w", rerr))
		}
	}()

	close(s.quit)
	<-s.captureDone

	if s.detector != nil {
		s.detector.Detach()
	}
	if s.stopFrames != nil {
		s.stopFrames()
	}

	tail, cerr := s.encoder.Close()
	s.append(tail)

	s.mu.Lock()
	fragments := s.fragments
	captureErr := s.captureErr
	s.mu.Unlock()

	if captureErr != nil {
		err = multierr.Append(err, fmt.Errorf("capture: %w", captureErr))
	}
	if cerr != nil {
		err = multierr.Append(err, fmt.Errorf("finalize encoder: %w", cerr))
	}

	blob = Blob{
		Data:      audio.Join(fragments),
		MIMEType:  s.encoder.MIMEType(),
		Duration:  time.Since(s.startedAt),
		Fragments: len(fragments),
	}
	return blob, err
}

func (s *session) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true
	s.analyser.Reset()
	s.log.Debug("session", "released", true)
	return s.stream.Close()
}
