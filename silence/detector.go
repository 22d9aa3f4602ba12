package silence

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// Center is the zero-crossing value of the byte time-domain scale.
	Center = 128

	DefaultThreshold = 2000 * time.Millisecond
	DefaultDeviation = 2
	DefaultFrameRate = 60
)

// Source exposes the latest time-domain samples of a live stream on the
// 0-255 scale.
type Source interface {
	TimeDomain(dst []byte) []byte
}

type Config struct {
	Threshold time.Duration
	Deviation int
}

func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Deviation: DefaultDeviation,
	}
}

// IsSilent reports whether every sample lies strictly within deviation of
// the center line.
func IsSilent(samples []byte, deviation int) bool {
	for _, v := range samples {
		d := int(v) - Center
		if d < 0 {
			d = -d
		}
		if d >= deviation {
			return false
		}
	}
	return true
}

// Detector debounces silent ticks: onSilence fires only after an
// uninterrupted quiet stretch of cfg.Threshold.
type Detector struct {
	cfg       Config
	clock     Clock
	onSilence func()
	logger    *log.Logger

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	detached bool
}

func NewDetector(
	cfg Config,
	clock Clock,
	onSilence func(),
	logger *log.Logger,
) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Deviation <= 0 {
		cfg.Deviation = DefaultDeviation
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Detector{
		cfg:       cfg,
		clock:     clock,
		onSilence: onSilence,
		logger:    logger,
	}
}

// Tick classifies one frame of samples and updates the silence timer.
func (d *Detector) Tick(samples []byte) {
	silent := IsSilent(samples, d.cfg.Deviation)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detached {
		return
	}

	switch {
	case silent && d.timer == nil:
		d.logger.Debug("silence", "arm", d.cfg.Threshold)
		d.gen++
		gen := d.gen
		d.timer = d.clock.AfterFunc(d.cfg.Threshold, func() { d.fire(gen) })
	case !silent && d.timer != nil:
		d.logger.Debug("silence", "reset", true)
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a silence timer is currently scheduled.
func (d *Detector) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// fire runs the callback of the timer armed as generation gen. A timer that
// was stopped too late to prevent its callback finds a newer generation, or
// none, and does nothing.
func (d *Detector) fire(gen uint64) {
	d.mu.Lock()
	if d.detached || d.timer == nil || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.logger.Info("silence", "elapsed", d.cfg.Threshold)
	if d.onSilence != nil {
		d.onSilence()
	}
}

func (d *Detector) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Handle is an attached sampling loop.
type Handle struct {
	detector *Detector
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Attach starts a sampling loop that ticks once per frame until the handle
// is detached or frames is closed.
func (d *Detector) Attach(src Source, frames <-chan time.Time) *Handle {
	h := &Handle{
		detector: d,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer d.stop()

		var buf []byte
		for {
			select {
			case <-h.quit:
				return
			case _, ok := <-frames:
				if !ok {
					return
				}
				buf = src.TimeDomain(buf)
				d.Tick(buf)
			}
		}
	}()

	return h
}

// Detach ends the loop, cancels any scheduled timer and waits for the loop
// to exit. Safe to call more than once and from the silence callback.
func (h *Handle) Detach() {
	h.once.Do(func() {
		h.detector.stop()
		close(h.quit)
	})
	<-h.done
}

// Frames returns a channel ticking at rate frames per second and a function
// that stops it.
func Frames(rate int) (<-chan time.Time, func()) {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	return ticker.C, ticker.Stop
}
