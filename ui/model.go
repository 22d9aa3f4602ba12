package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"node.town/mindy/config"
	"node.town/mindy/pipeline"
	"node.town/mindy/speech"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputUpload
	inputDenoise
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type doneMsg struct{ err error }

type model struct {
	ctl     *Controller
	events  *Events
	ctx     context.Context
	silence time.Duration

	spinner spinner.Model
	input   textinput.Model
	mode    inputMode

	state  pipeline.State
	result pipeline.Result
	notice string
	width  int
}

func newModel(ctx context.Context, ctl *Controller, events *Events, silence time.Duration) model {
	ti := textinput.New()
	ti.Placeholder = "path/to/audio.wav"
	ti.CharLimit = 4096

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctl:     ctl,
		events:  events,
		ctx:     ctx,
		silence: silence,
		spinner: sp,
		input:   ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

func waitForEvent(events *Events) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-events.ch:
			return msg
		case <-events.done:
			return nil
		}
	}
}

func (m model) busy() bool {
	return !m.state.Stage.Terminal()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-4)

	case stateMsg:
		m.state = pipeline.State(msg)
		cmds = append(cmds, waitForEvent(m.events))

	case resultMsg:
		m.result = pipeline.Result(msg)
		cmds = append(cmds, waitForEvent(m.events))

	case noticeMsg:
		m.notice = string(msg)
		cmds = append(cmds, waitForEvent(m.events))

	case doneMsg:
		if msg.err != nil && m.notice == "" {
			m.notice = pipeline.UserMessage(msg.err)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.ctl.Hush()
		m.ctl.Abort()
		return m, tea.Quit

	case "r", " ":
		if m.state.Stage == pipeline.Capturing {
			return m, m.stopRecording()
		}
		if m.busy() {
			m.notice = pipeline.UserMessage(pipeline.ErrBusy)
			return m, nil
		}
		m.notice = ""
		if err := m.ctl.StartRecording(m.ctx); err != nil {
			m.notice = pipeline.UserMessage(err)
		}
		return m, nil

	case "u", "d":
		if m.busy() {
			m.notice = pipeline.UserMessage(pipeline.ErrBusy)
			return m, nil
		}
		m.mode = inputUpload
		if msg.String() == "d" {
			m.mode = inputDenoise
		}
		m.input.Reset()
		return m, m.input.Focus()

	case "s", "t":
		if m.busy() {
			return m, nil
		}
		src, tgt := m.ctl.Languages()
		if msg.String() == "s" {
			src = config.NextLanguage(src)
		} else {
			tgt = config.NextLanguage(tgt)
		}
		if err := m.ctl.SetLanguages(src, tgt); err != nil {
			m.notice = pipeline.UserMessage(err)
		}
		return m, nil

	case "p":
		err := m.ctl.Speak()
		if errors.Is(err, speech.ErrEmptyInput) {
			m.notice = speech.EmptyNotice
		}
		return m, nil

	case "x":
		m.ctl.Hush()
		return m, nil
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = inputNone
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		if path == "" {
			return m, nil
		}
		m.notice = ""
		return m, m.submitFile(mode, path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) stopRecording() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		return doneMsg{err: ctl.StopRecording()}
	}
}

func (m model) submitFile(mode inputMode, path string) tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		var err error
		if mode == inputDenoise {
			_, err = ctl.Denoise(ctx, path)
		} else {
			_, err = ctl.Upload(ctx, path)
		}
		return doneMsg{err: err}
	}
}

func (m model) View() string {
	var b strings.Builder

	src, tgt := m.ctl.Languages()
	b.WriteString(titleStyle.Render("mindy"))
	b.WriteString(fmt.Sprintf("  %s → %s\n\n",
		config.LanguageName(src), config.LanguageName(tgt)))

	b.WriteString(m.statusView())
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		b.WriteString(value)
		b.WriteString("\n\n")
	}
	field("Recognized", m.result.RecognizedText)
	field("Translated", m.result.TranslatedText)
	field("Original audio", m.result.OriginalAudioURL)
	field("Denoised audio", m.result.DenoisedAudioURL)

	if m.mode != inputNone {
		prompt := "Audio file to translate:"
		if m.mode == inputDenoise {
			prompt = "WAV file to denoise:"
		}
		b.WriteString(prompt + "\n" + m.input.View() + "\n\n")
	}

	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n\n")
	}

	b.WriteString(footerStyle.Render(m.helpView()))
	return b.String()
}

func (m model) statusView() string {
	switch m.state.Stage {
	case pipeline.Capturing:
		return recStyle.Render("● recording") +
			labelStyle.Render(fmt.Sprintf("  stops after %v of silence", m.silence))
	case pipeline.AwaitingRecognition, pipeline.AwaitingTranslation, pipeline.Denoising:
		return m.spinner.View() + " " + m.state.Stage.String() + "..."
	case pipeline.Failed:
		return errorStyle.Render("failed")
	case pipeline.Ready:
		return "ready"
	default:
		return "idle"
	}
}

func (m model) helpView() string {
	if m.mode != inputNone {
		return "enter submit • esc cancel"
	}
	if m.state.Stage == pipeline.Capturing {
		return "r stop • q quit"
	}
	if m.busy() {
		return "q quit"
	}
	return "r record • u upload • d denoise • s/t language • p play • x hush • q quit"
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, ctl *Controller, events *Events, silence time.Duration) error {
	defer events.Close()
	p := tea.NewProgram(newModel(ctx, ctl, events, silence), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
