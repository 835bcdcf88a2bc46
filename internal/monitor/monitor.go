// Package monitor is a terminal status view of the running engine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/mode"
)

const (
	barWidth = 20
	logLines = 5
)

// Controller is what the monitor can change.
type Controller interface {
	StartAudio() error
	UsePolicy(name string) error
}

// StateMsg carries a published engine state.
type StateMsg engine.State

type hitRecord struct {
	hit audio.Hit
	at  time.Time
}

// Model is the bubbletea model.
type Model struct {
	states   <-chan engine.State
	ctrl     Controller
	policies []string

	state    engine.State
	lastHit  *hitRecord
	err      error
	width    int
	quitting bool
}

// New creates a model reading from states.
func New(states <-chan engine.State, ctrl Controller) Model {
	return Model{
		states:   states,
		ctrl:     ctrl,
		policies: mode.Names(),
	}
}

// ListenForStates waits for the next state.
func ListenForStates(states <-chan engine.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return tea.Quit()
		}
		return StateMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForStates(m.states)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "s", "enter", " ":
			m.err = m.ctrl.StartAudio()

		case "p":
			m.err = m.ctrl.UsePolicy(m.nextPolicy())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case StateMsg:
		m.state = engine.State(msg)
		if n := len(m.state.Hits); n > 0 {
			m.lastHit = &hitRecord{hit: m.state.Hits[n-1], at: m.state.Time}
		}
		return m, ListenForStates(m.states)
	}

	return m, nil
}

func (m Model) nextPolicy() string {
	if len(m.policies) == 0 {
		return m.state.Policy
	}
	for i, name := range m.policies {
		if name == m.state.Policy {
			return m.policies[(i+1)%len(m.policies)]
		}
	}
	return m.policies[0]
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.state

	var b strings.Builder
	b.WriteString(headerStyle.Render("handsynth"))
	b.WriteString("\n\n")

	audioText := offStyle.Render("off - press s to start")
	if s.AudioStarted {
		audioText = onStyle.Render("on")
	}
	row(&b, "audio", audioText)
	row(&b, "policy", s.Policy)
	row(&b, "mode", selectionText(s.Selection))
	row(&b, "hands", fmt.Sprintf("%d", len(s.Hands)))

	controls := fmt.Sprintf("%s %.2f  pitch %+.0f Hz", bar(s.Control.Volume), s.Control.Volume, s.Control.PitchOffset)
	if !s.HasControl {
		controls += dimStyle.Render("  (held)")
	}
	row(&b, "volume", controls)
	row(&b, "waveform", fmt.Sprintf("%s (%d fingers)", s.Waveform, s.FingerCount))

	trigger := "open"
	if s.Pinched {
		trigger = "pinched"
	}
	if s.Quadrant.Valid() {
		trigger += fmt.Sprintf(" in quadrant %s", s.Quadrant)
	}
	row(&b, "trigger", trigger)
	row(&b, "last hit", hitText(m.lastHit))

	if t := s.Tutorial; t.Total > 0 && !t.Completed {
		row(&b, "tutorial", fmt.Sprintf("%d/%d %s (%d/%d)", t.Step+1, t.Total, t.Title, t.Held, t.Hold))
		if t.Hint != "" {
			row(&b, "", dimStyle.Render(t.Hint))
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	var logs []string
	for _, e := range logging.Recent(logLines) {
		logs = append(logs, e.Format())
	}
	if len(logs) > 0 {
		b.WriteString("\n")
		box := boxStyle
		if m.width > 4 {
			box = box.Width(m.width - 4)
		}
		b.WriteString(box.Render(strings.Join(logs, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("s:start audio  p:next policy  q:quit"))
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func selectionText(sel mode.Selection) string {
	if sel.Instrument == "" || sel.Instrument == sel.Mode.String() {
		return sel.Mode.String()
	}
	return fmt.Sprintf("%s (%s)", sel.Mode, sel.Instrument)
}

func hitText(h *hitRecord) string {
	if h == nil {
		return "none"
	}
	text := h.hit.Mode.String()
	if h.hit.Quadrant.Valid() {
		text += " q" + h.hit.Quadrant.String()
	}
	if !h.at.IsZero() {
		text += " at " + h.at.Format("15:04:05.000")
	}
	return text
}

// bar renders v in [0, 1] as a fixed-width meter.
func bar(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	n := int(v*barWidth + 0.5)
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", barWidth-n) + "]"
}

// Run shows the monitor until the user quits or ctx ends.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil) {
		return nil
	}
	return err
}
