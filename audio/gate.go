package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// Gate decodes a WAV clip, zeroes every sample quieter than floor (0..1) and
// returns it as mono 16-bit WAV at the original rate.
func Gate(data []byte, floor float64) ([]byte, error) {
	s, format, err := wav.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	defer s.Close()

	var pcm []int16
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			v := frame[0]
			if format.NumChannels > 1 {
				v = (frame[0] + frame[1]) / 2
			}
			if math.Abs(v) < floor {
				v = 0
			}
			pcm = append(pcm, toInt16(v))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}

	return EncodeWAV(pcm, int(format.SampleRate))
}

// Tone renders a sine wave as mono PCM.
func Tone(freq float64, rate beep.SampleRate, n int) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = toInt16(0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return pcm
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}
