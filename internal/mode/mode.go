// Package mode turns a classified frame into the instrument mode that should
// sound. Selection is memoryless: every frame is judged on its own.
package mode

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/handsynth/internal/gesture"
)

// ErrUnknownPolicy is returned by PolicyByName for names it does not know.
var ErrUnknownPolicy = errors.New("unknown mode policy")

// Mode is the instrument behaviour for a frame.
type Mode int

const (
	Idle Mode = iota
	Lead
	Percussion
	DrumKit
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Lead:
		return "lead"
	case Percussion:
		return "percussion"
	case DrumKit:
		return "drumkit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// IsContinuous reports whether the mode sustains voices driven by the
// control mapper.
func (m Mode) IsContinuous() bool {
	return m == Lead
}

// Parse returns the mode with the given name.
func Parse(s string) (Mode, error) {
	for _, m := range []Mode{Idle, Lead, Percussion, DrumKit} {
		if m.String() == s {
			return m, nil
		}
	}
	return Idle, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Shape is a hand shape a rule can match.
type Shape int

const (
	OpenPalm Shape = iota
	TwoRaised
	IndexRaised
)

func (s Shape) String() string {
	switch s {
	case OpenPalm:
		return "open-palm"
	case TwoRaised:
		return "two-raised"
	case IndexRaised:
		return "index-raised"
	default:
		return "unknown"
	}
}

// Selection is a mode plus the instrument variant it plays through.
// Instrument is empty for Idle.
type Selection struct {
	Mode       Mode   `json:"mode"`
	Instrument string `json:"instrument,omitempty"`
}

// Rule maps a shape to a selection.
type Rule struct {
	Shape     Shape
	Selection Selection
}

// Policy is an ordered rule list evaluated against one hand.
type Policy struct {
	Name    string
	Role    gesture.Role
	Rules   []Rule
	Default Selection
}

// Select returns the selection of the first rule whose shape matches,
// otherwise the default.
func (p Policy) Select(f gesture.Frame) Selection {
	for _, r := range p.Rules {
		if p.matches(f, r.Shape) {
			return r.Selection
		}
	}
	return p.Default
}

func (p Policy) matches(f gesture.Frame, s Shape) bool {
	switch s {
	case OpenPalm:
		return f.IsPalmOpen(p.Role)
	case TwoRaised:
		return f.IsTwoRaised(p.Role)
	case IndexRaised:
		return f.IsIndexRaised(p.Role)
	default:
		return false
	}
}

// Instrument names used by the built-in policies.
const (
	InstrumentLead       = "lead"
	InstrumentLeadAlt    = "lead-alt"
	InstrumentPercussion = "percussion"
	InstrumentDrumKit    = "drumkit"
)

// Binary plays the lead instrument unless the palm is open.
func Binary() Policy {
	return Policy{
		Name: "binary",
		Role: gesture.VisualLeft,
		Rules: []Rule{
			{Shape: OpenPalm, Selection: Selection{Mode: Idle}},
		},
		Default: Selection{Mode: Lead, Instrument: InstrumentLead},
	}
}

// Ternary switches between two lead timbres and a percussion voice. Open
// palm is checked first so it wins over every other shape.
func Ternary() Policy {
	return Policy{
		Name: "ternary",
		Role: gesture.VisualLeft,
		Rules: []Rule{
			{Shape: OpenPalm, Selection: Selection{Mode: Lead, Instrument: InstrumentLead}},
			{Shape: TwoRaised, Selection: Selection{Mode: Percussion, Instrument: InstrumentPercussion}},
			{Shape: IndexRaised, Selection: Selection{Mode: Lead, Instrument: InstrumentLeadAlt}},
		},
		Default: Selection{Mode: Idle},
	}
}

// DrumKitPolicy plays quadrant samples unless the palm is open.
func DrumKitPolicy() Policy {
	return Policy{
		Name: "drumkit",
		Role: gesture.VisualLeft,
		Rules: []Rule{
			{Shape: OpenPalm, Selection: Selection{Mode: Idle}},
		},
		Default: Selection{Mode: DrumKit, Instrument: InstrumentDrumKit},
	}
}

var builtin = map[string]func() Policy{
	"binary":  Binary,
	"ternary": Ternary,
	"drumkit": DrumKitPolicy,
}

// PolicyByName returns a built-in policy.
func PolicyByName(name string) (Policy, error) {
	fn, ok := builtin[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return fn(), nil
}

// Names lists the built-in policy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
