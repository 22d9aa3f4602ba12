package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/charmbracelet/log"
)

func TestOggOpusEncoder(t *testing.T) {
	enc, err := NewOggOpusEncoder(log.Default())
	if err != nil {
		t.Fatalf("Failed to create encoder: %v", err)
	}

	var fragments []Fragment
	frame := make([]int16, FrameSize)
	for i := 0; i < 50; i++ {
		out, err := enc.Encode(frame)
		if err != nil {
			t.Fatalf("Failed to encode frame %d: %v", i, err)
		}
		fragments = append(fragments, out...)
	}

	tail, err := enc.Close()
	if err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	fragments = append(fragments, tail...)

	if len(fragments) == 0 {
		t.Fatal("Expected fragments")
	}
	for i := 1; i < len(fragments); i++ {
		if fragments[i].At < fragments[i-1].At {
			t.Errorf("fragment %d out of order: %v < %v", i, fragments[i].At, fragments[i-1].At)
		}
	}

	blob := Join(fragments)
	if !bytes.HasPrefix(blob, []byte("OggS")) {
		t.Errorf("Expected Ogg capture pattern, got %q", blob[:4])
	}
	if !bytes.Contains(blob, []byte("OpusHead")) {
		t.Error("Expected OpusHead header")
	}
	if enc.MIMEType() != OggMIMEType {
		t.Errorf("MIMEType() = %q", enc.MIMEType())
	}
}

func TestEncodeRejectsShortFrame(t *testing.T) {
	enc, err := NewOggOpusEncoder(log.Default())
	if err != nil {
		t.Fatalf("Failed to create encoder: %v", err)
	}
	if _, err := enc.Encode(make([]int16, 10)); err == nil {
		t.Error("Expected error for short frame")
	}
}

func TestJoin(t *testing.T) {
	got := Join([]Fragment{
		{Data: []byte("ab")},
		{Data: []byte("c")},
		{Data: nil},
		{Data: []byte("de")},
	})
	if string(got) != "abcde" {
		t.Errorf("Join() = %q, want %q", got, "abcde")
	}
}

func TestEncodeWAV(t *testing.T) {
	data, err := EncodeWAV([]int16{1, -1, 2}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(data) != 44+6 {
		t.Fatalf("len = %d, want 50", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}

	if _, err := EncodeWAV(nil, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestGate(t *testing.T) {
	pcm := []int16{100, -100, 20000, -20000, 50}
	in, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Gate(in, 0.01)
	if err != nil {
		t.Fatalf("Gate failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}

	samples := make([]int16, len(pcm))
	if err := binary.Read(bytes.NewReader(out[44:]), binary.LittleEndian, samples); err != nil {
		t.Fatal(err)
	}
	if samples[0] != 0 || samples[1] != 0 || samples[4] != 0 {
		t.Errorf("quiet samples not gated: %v", samples)
	}
	if samples[2] < 19000 || samples[3] > -19000 {
		t.Errorf("loud samples changed: %v", samples)
	}

	if _, err := Gate([]byte("not a wav"), 0.01); err == nil {
		t.Error("expected decode error")
	}
}

func TestTone(t *testing.T) {
	pcm := Tone(440, 16000, 160)
	if len(pcm) != 160 || pcm[0] != 0 {
		t.Fatalf("unexpected tone start: %v", pcm[:2])
	}
	loud := false
	for _, s := range pcm {
		if s > 5000 {
			loud = true
		}
	}
	if !loud {
		t.Error("tone is silent")
	}
}
