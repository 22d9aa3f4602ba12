package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

const playbackRate = beep.SampleRate(44100)

// Player plays encoded audio clips on the default output device.
type Player struct {
	initOnce sync.Once
	initErr  error
	log      *log.Logger
}

func NewPlayer(log *log.Logger) *Player {
	return &Player{log: log}
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(playbackRate, playbackRate.N(time.Second/10))
	})
	return p.initErr
}

// Play decodes data according to mimeType and blocks until playback ends or
// ctx is cancelled, in which case the speaker is cleared.
func (p *Player) Play(ctx context.Context, data []byte, mimeType string) error {
	if err := p.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	streamer, format, err := decode(data, mimeType)
	if err != nil {
		return err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != playbackRate {
		s = beep.Resample(4, format.SampleRate, playbackRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	p.log.Debug("playing", "type", mimeType, "bytes", len(data))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(data []byte, mimeType string) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(data))
	switch {
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		s, f, err := mp3.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
		}
		return s, f, nil
	case strings.Contains(mimeType, "wav"):
		s, f, err := wav.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported playback type %q", mimeType)
	}
}
