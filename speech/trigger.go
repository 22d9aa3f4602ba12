package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var ErrEmptyInput = errors.New("no text to speak")

// EmptyNotice is shown when there is nothing to speak.
const EmptyNotice = "There is no translated text to speak."

// Engine speaks one utterance. Say blocks until the utterance has finished
// or ctx is cancelled, and must stop producing sound once it returns.
type Engine interface {
	Say(ctx context.Context, text, lang string) error
}

// Trigger owns the single speaking slot. A new utterance always cancels the
// current one and waits for it to go quiet before starting.
type Trigger struct {
	engine Engine
	notify func(string)
	log    *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTrigger(engine Engine, notify func(string), logger *log.Logger) *Trigger {
	if notify == nil {
		notify = func(string) {}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trigger{engine: engine, notify: notify, log: logger}
}

func (t *Trigger) Speak(text, lang string) error {
	if strings.TrimSpace(text) == "" {
		t.notify(EmptyNotice)
		return ErrEmptyInput
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	t.log.Info("speak", "lang", lang, "txt", text)

	go func() {
		defer close(done)
		defer cancel()
		err := t.engine.Say(ctx, text, lang)
		if err != nil && !errors.Is(err, context.Canceled) {
			t.log.Error("speak", "error", err)
			t.notify("Could not play the speech.")
		}
	}()
	return nil
}

// Cancel silences the current utterance, if any, and waits for it to end.
func (t *Trigger) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Wait blocks until the current utterance ends.
func (t *Trigger) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *Trigger) Speaking() bool {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (t *Trigger) cancelLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}
