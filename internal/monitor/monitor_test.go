package monitor

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/mode"
)

type fakeController struct {
	starts   int
	policies []string
	err      error
}

func (c *fakeController) StartAudio() error {
	c.starts++
	return c.err
}

func (c *fakeController) UsePolicy(name string) error {
	c.policies = append(c.policies, name)
	return nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Keys(t *testing.T) {
	ctrl := &fakeController{}
	m := New(nil, ctrl)
	m.state.Policy = "binary"

	next, _ := m.Update(key("s"))
	m = next.(Model)
	if ctrl.starts != 1 {
		t.Errorf("starts = %d, want 1", ctrl.starts)
	}

	next, _ = m.Update(key("p"))
	m = next.(Model)
	if len(ctrl.policies) != 1 || ctrl.policies[0] == "binary" {
		t.Errorf("policy switch = %v", ctrl.policies)
	}

	next, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if next.(Model).View() != "" {
		t.Error("quitting model renders nothing")
	}
}

func TestModel_StartAudioError(t *testing.T) {
	ctrl := &fakeController{err: errors.New("no MIDI output ports")}
	next, _ := New(nil, ctrl).Update(key("s"))
	if !strings.Contains(next.(Model).View(), "no MIDI output ports") {
		t.Error("view should show the start error")
	}
}

func TestModel_NextPolicy(t *testing.T) {
	m := New(nil, &fakeController{})
	m.policies = []string{"binary", "drumkit", "ternary"}

	tests := []struct {
		current string
		want    string
	}{
		{"binary", "drumkit"},
		{"ternary", "binary"},
		{"unknown", "binary"},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			m.state.Policy = tt.current
			if got := m.nextPolicy(); got != tt.want {
				t.Errorf("nextPolicy = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModel_State(t *testing.T) {
	states := make(chan engine.State, 1)
	m := New(states, &fakeController{})

	s := engine.State{
		Policy:       "drumkit",
		AudioStarted: true,
		Selection:    mode.Selection{Mode: mode.DrumKit, Instrument: mode.InstrumentDrumKit},
		Control:      control.Values{Volume: 0.5, PitchOffset: 20},
		HasControl:   true,
		Waveform:     control.Triangle,
		FingerCount:  1,
		Pinched:      true,
		Quadrant:     gesture.QuadrantBottomLeft,
		Hits:         []audio.Hit{{Mode: mode.DrumKit, Quadrant: gesture.QuadrantBottomLeft}},
	}
	next, cmd := m.Update(StateMsg(s))
	if cmd == nil {
		t.Error("state should re-arm the listener")
	}
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"drumkit", "pinched in quadrant 3", "triangle (1 fingers)", "drumkit q3", "0.50"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// A later state without hits keeps the last hit.
	next, _ = m.Update(StateMsg(engine.State{Policy: "drumkit"}))
	if !strings.Contains(next.(Model).View(), "drumkit q3") {
		t.Error("last hit should persist")
	}
}

func TestListenForStates_Closed(t *testing.T) {
	states := make(chan engine.State)
	close(states)
	if _, ok := ListenForStates(states)().(tea.QuitMsg); !ok {
		t.Error("closed channel should quit")
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		v    float64
		want int
	}{
		{0, 0}, {0.5, 10}, {1, 20}, {-1, 0}, {2, 20},
	}
	for _, tt := range tests {
		if got := strings.Count(bar(tt.v), "#"); got != tt.want {
			t.Errorf("bar(%v) has %d marks, want %d", tt.v, got, tt.want)
		}
	}
}
