package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	SampleRate = 48000
	Channels   = 1
	// FrameSize is 20ms of mono audio at 48kHz.
	FrameSize = 960

	OggMIMEType = "audio/ogg"

	maxPacketSize = 4000
)

// Fragment is one piece of encoded output, stamped with the stream position
// at which it was produced.
type Fragment struct {
	At   time.Duration
	Data []byte
}

// Encoder turns PCM frames into container fragments.
type Encoder interface {
	// Encode consumes one frame of PCM and returns whatever fragments the
	// container emitted for it.
	Encode(pcm []int16) ([]Fragment, error)
	// Close flushes the container and returns the trailing fragments.
	Close() ([]Fragment, error)
	MIMEType() string
}

// fragmentSink collects container writes as fragments.
type fragmentSink struct {
	mu        sync.Mutex
	at        time.Duration
	fragments []Fragment
}

func (s *fragmentSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, len(p))
	copy(data, p)
	s.fragments = append(s.fragments, Fragment{At: s.at, Data: data})
	return len(p), nil
}

func (s *fragmentSink) drain(at time.Duration) []Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.fragments
	s.fragments = nil
	s.at = at
	return out
}

var _ io.Writer = (*fragmentSink)(nil)

// OggOpusEncoder encodes mono 48kHz PCM into Ogg Opus.
type OggOpusEncoder struct {
	enc       *opus.Encoder
	writer    *oggwriter.OggWriter
	sink      *fragmentSink
	sampleIdx int64
	packet    []byte
	log       *log.Logger
}

func NewOggOpusEncoder(log *log.Logger) (*OggOpusEncoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create Opus encoder: %w", err)
	}

	sink := &fragmentSink{}
	oggWriter, err := oggwriter.NewWith(sink, SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("create OGG writer: %w", err)
	}

	return &OggOpusEncoder{
		enc:    enc,
		writer: oggWriter,
		sink:   sink,
		packet: make([]byte, maxPacketSize),
		log:    log,
	}, nil
}

func (e *OggOpusEncoder) MIMEType() string {
	return OggMIMEType
}

func (e *OggOpusEncoder) Encode(pcm []int16) ([]Fragment, error) {
	if len(pcm) != FrameSize {
		return nil, fmt.Errorf("encode frame: got %d samples, want %d", len(pcm), FrameSize)
	}

	n, err := e.enc.Encode(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("encode Opus frame: %w", err)
	}

	payload := make([]byte, n)
	copy(payload, e.packet[:n])

	if err := e.writer.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Timestamp: uint32(e.sampleIdx),
		},
		Payload: payload,
	}); err != nil {
		return nil, fmt.Errorf("write Opus packet: %w", err)
	}

	e.sampleIdx += int64(len(pcm))
	return e.sink.drain(e.position()), nil
}

func (e *OggOpusEncoder) Close() ([]Fragment, error) {
	if err := e.writer.Close(); err != nil {
		return nil, fmt.Errorf("close OGG writer: %w", err)
	}
	fragments := e.sink.drain(e.position())
	e.log.Debug("encoder closed", "samples", e.sampleIdx)
	return fragments, nil
}

func (e *OggOpusEncoder) position() time.Duration {
	return time.Duration(e.sampleIdx) * time.Second / SampleRate
}

// Join concatenates fragments in arrival order.
func Join(fragments []Fragment) []byte {
	size := 0
	for _, f := range fragments {
		size += len(f.Data)
	}
	out := make([]byte, 0, size)
	for _, f := range fragments {
		out = append(out, f.Data...)
	}
	return out
}
