package pipeline

import "fmt"

type Stage int

const (
	Idle Stage = iota
	Capturing
	AwaitingRecognition
	AwaitingTranslation
	Denoising
	Ready
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case AwaitingRecognition:
		return "recognizing"
	case AwaitingTranslation:
		return "translating"
	case Denoising:
		return "denoising"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether a new operation may start from this stage.
func (s Stage) Terminal() bool {
	return s == Idle || s == Ready || s == Failed
}

type State struct {
	Stage Stage
	// Reason is the user-facing message when Stage is Failed.
	Reason string
}

func (s State) String() string {
	if s.Stage == Failed {
		return fmt.Sprintf("failed: %s", s.Reason)
	}
	return s.Stage.String()
}

// Result is filled in stage by stage. Recognition fields are published
// together, then the translation.
type Result struct {
	RecognizedText   string
	CleanedAudio     string
	OriginalAudioURL string
	DenoisedAudioURL string
	TranslatedText   string
}

type Snapshot struct {
	RunID  string
	State  State
	Result Result
	Notice string
}

// Observer is told about every state change and every published stage.
// Calls are made outside the orchestrator's lock, in order, from the
// goroutine driving the run.
type Observer interface {
	StateChanged(State)
	Published(Result)
	Notice(string)
}

type NopObserver struct{}

func (NopObserver) StateChanged(State) {}
func (NopObserver) Published(Result)   {}
func (NopObserver) Notice(string)      {}
