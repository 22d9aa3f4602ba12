package silence

import "sync"

const DefaultWindow = 2048

// Analyser keeps the most recent window of a PCM stream as unsigned bytes
// centred on 128, the way a browser analyser node reports time-domain data.
type Analyser struct {
	mu     sync.Mutex
	window []byte
	pos    int
}

func NewAnalyser(size int) *Analyser {
	if size <= 0 {
		size = DefaultWindow
	}
	window := make([]byte, size)
	for i := range window {
		window[i] = Center
	}
	return &Analyser{window: window}
}

// Write appends 16-bit samples to the ring.
func (a *Analyser) Write(pcm []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range pcm {
		a.window[a.pos] = ToByte(s)
		a.pos = (a.pos + 1) % len(a.window)
	}
}

// TimeDomain copies the window, oldest sample first, into dst.
func (a *Analyser) TimeDomain(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cap(dst) < len(a.window) {
		dst = make([]byte, len(a.window))
	}
	dst = dst[:len(a.window)]
	n := copy(dst, a.window[a.pos:])
	copy(dst[n:], a.window[:a.pos])
	return dst
}

func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.window {
		a.window[i] = Center
	}
	a.pos = 0
}

// ToByte maps a signed 16-bit sample onto the 0-255 scale.
func ToByte(s int16) byte {
	return byte(Center + int(s)>>8)
}
