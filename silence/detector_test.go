package silence

import (
	"sync"
	"testing"
	"time"
)

type MockTimer struct {
	clock   *MockClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type MockClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*MockTimer
}

func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers synchronously.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*MockTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *MockClock) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func quiet(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = Center
	}
	return b
}

func withPeak(n int, v byte) []byte {
	b := quiet(n)
	b[n/2] = v
	return b
}

func TestIsSilent(t *testing.T) {
	tests := []struct {
		name    string
		samples []byte
		want    bool
	}{
		{"all center", quiet(16), true},
		{"empty", nil, true},
		{"deviation one above", withPeak(16, 129), true},
		{"deviation one below", withPeak(16, 127), true},
		{"deviation exactly two above", withPeak(16, 130), false},
		{"deviation exactly two below", withPeak(16, 126), false},
		{"full scale", withPeak(16, 255), false},
		{"zero", withPeak(16, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSilent(tt.samples, DefaultDeviation); got != tt.want {
				t.Errorf("IsSilent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorStopsAfterContinuousSilence(t *testing.T) {
	clock := &MockClock{}
	stops := 0
	d := NewDetector(DefaultConfig(), clock, func() { stops++ }, nil)

	frame := 16 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < 2500*time.Millisecond; elapsed += frame {
		d.Tick(quiet(64))
		clock.Advance(frame)
	}

	if stops != 1 {
		t.Fatalf("Expected exactly 1 stop, got %d", stops)
	}
	if clock.Outstanding() > 1 {
		t.Errorf("Expected at most one outstanding timer, got %d", clock.Outstanding())
	}
}

func TestDetectorMicroPauseDoesNotStop(t *testing.T) {
	clock := &MockClock{}
	stops := 0
	d := NewDetector(DefaultConfig(), clock, func() { stops++ }, nil)

	d.Tick(quiet(64))
	clock.Advance(1900 * time.Millisecond)
	if !d.Pending() {
		t.Fatal("Expected a pending silence timer")
	}

	d.Tick(withPeak(64, 200))
	if d.Pending() {
		t.Fatal("Expected voiced tick to cancel the timer")
	}

	clock.Advance(200 * time.Millisecond)
	if stops != 0 {
		t.Fatalf("Expected no stop after interrupted silence, got %d", stops)
	}

	d.Tick(quiet(64))
	clock.Advance(1999 * time.Millisecond)
	if stops != 0 {
		t.Fatalf("Expected no stop before threshold, got %d", stops)
	}
	clock.Advance(time.Millisecond)
	if stops != 1 {
		t.Fatalf("Expected 1 stop at threshold, got %d", stops)
	}
}

// LateClock hands out timers whose callbacks have already been dispatched,
// so Stop always reports false and the callback runs when the test says so.
type LateClock struct {
	callbacks []func()
}

type lateTimer struct{}

func (lateTimer) Stop() bool { return false }

func (c *LateClock) AfterFunc(d time.Duration, f func()) Timer {
	c.callbacks = append(c.callbacks, f)
	return lateTimer{}
}

func TestDetectorIgnoresStaleCallback(t *testing.T) {
	clock := &LateClock{}
	stops := 0
	d := NewDetector(DefaultConfig(), clock, func() { stops++ }, nil)

	d.Tick(quiet(64))
	d.Tick(withPeak(64, 200))
	d.Tick(quiet(64))
	if len(clock.callbacks) != 2 {
		t.Fatalf("Expected 2 timers scheduled, got %d", len(clock.callbacks))
	}

	clock.callbacks[0]()
	if stops != 0 {
		t.Fatalf("Expected stale callback to be ignored, got %d stops", stops)
	}
	if !d.Pending() {
		t.Fatal("Expected the current timer to stay pending")
	}

	clock.callbacks[1]()
	if stops != 1 {
		t.Errorf("Expected 1 stop from the current timer, got %d", stops)
	}
	if d.Pending() {
		t.Error("Expected no pending timer after it fired")
	}
}

func TestDetectorSingleTimerWhileSilent(t *testing.T) {
	clock := &MockClock{}
	d := NewDetector(DefaultConfig(), clock, func() {}, nil)

	for i := 0; i < 10; i++ {
		d.Tick(quiet(8))
	}

	if len(clock.timers) != 1 {
		t.Errorf("Expected 1 timer scheduled, got %d", len(clock.timers))
	}
}

func TestDetachCancelsTimer(t *testing.T) {
	clock := &MockClock{}
	stops := 0
	d := NewDetector(DefaultConfig(), clock, func() { stops++ }, nil)

	frames := make(chan time.Time)
	h := d.Attach(NewAnalyser(32), frames)

	frames <- time.Now()
	frames <- time.Now()

	h.Detach()
	h.Detach()

	if d.Pending() {
		t.Error("Expected no pending timer after detach")
	}

	clock.Advance(5 * time.Second)
	if stops != 0 {
		t.Errorf("Expected no stop after detach, got %d", stops)
	}

	d.Tick(quiet(8))
	if d.Pending() {
		t.Error("Expected detached detector to ignore ticks")
	}
}

func TestAttachEndsWhenFramesClose(t *testing.T) {
	d := NewDetector(DefaultConfig(), &MockClock{}, nil, nil)
	frames := make(chan time.Time)
	h := d.Attach(NewAnalyser(32), frames)
	close(frames)

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after frames closed")
	}
}

func TestAnalyserTimeDomain(t *testing.T) {
	a := NewAnalyser(4)

	got := a.TimeDomain(nil)
	for i, v := range got {
		if v != Center {
			t.Errorf("sample %d = %d, want %d", i, v, Center)
		}
	}

	a.Write([]int16{0, 32767, -32768, 256, 512})
	got = a.TimeDomain(got)
	want := []byte{255, 0, 129, 130}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
