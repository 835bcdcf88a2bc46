package mode

import (
	"errors"
	"testing"

	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/gesture"
)

var vp = gesture.Viewport{Width: 640, Height: 480}

// leftHand builds a visually-left hand (reported as "Right").
func leftHand(pose detector.Pose) gesture.Frame {
	h := detector.PoseHand(detector.HandRight, 480, 400, pose)
	return gesture.NewFrame([]detector.Hand{h}, vp)
}

func TestTernary_Precedence(t *testing.T) {
	p := Ternary()
	tests := []struct {
		name  string
		frame gesture.Frame
		want  Selection
	}{
		{name: "open palm", frame: leftHand(detector.PoseOpenPalm), want: Selection{Mode: Lead, Instrument: InstrumentLead}},
		{name: "two raised", frame: leftHand(detector.PoseTwoRaised), want: Selection{Mode: Percussion, Instrument: InstrumentPercussion}},
		{name: "index raised", frame: leftHand(detector.PoseIndexRaised), want: Selection{Mode: Lead, Instrument: InstrumentLeadAlt}},
		{name: "fist", frame: leftHand(detector.PoseFist), want: Selection{Mode: Idle}},
		{name: "no hands", frame: gesture.Frame{}, want: Selection{Mode: Idle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Select(tt.frame); got != tt.want {
				t.Errorf("Select = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBinary(t *testing.T) {
	p := Binary()
	if got := p.Select(leftHand(detector.PoseOpenPalm)); got.Mode != Idle {
		t.Errorf("open palm = %v, want idle", got.Mode)
	}
	if got := p.Select(leftHand(detector.PoseFist)); got.Mode != Lead {
		t.Errorf("fist = %v, want lead", got.Mode)
	}
	if got := p.Select(gesture.Frame{}); got.Mode != Lead {
		t.Errorf("no hands = %v, want lead (default)", got.Mode)
	}
}

func TestDrumKitPolicy(t *testing.T) {
	p := DrumKitPolicy()
	if got := p.Select(leftHand(detector.PoseOpenPalm)); got.Mode != Idle {
		t.Errorf("open palm = %v, want idle", got.Mode)
	}
	if got := p.Select(leftHand(detector.PoseIndexRaised)); got != (Selection{Mode: DrumKit, Instrument: InstrumentDrumKit}) {
		t.Errorf("index raised = %+v, want drumkit", got)
	}
}

func TestPolicy_ReadsOnlyItsRole(t *testing.T) {
	// Open palm on the visual-right hand must not affect a visual-left policy.
	h := detector.PoseHand(detector.HandLeft, 160, 400, detector.PoseOpenPalm)
	f := gesture.NewFrame([]detector.Hand{h}, vp)
	if got := Binary().Select(f); got.Mode != Lead {
		t.Errorf("Select = %v, want lead", got.Mode)
	}
}

func TestPolicyByName(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := PolicyByName(name)
			if err != nil {
				t.Fatalf("PolicyByName: %v", err)
			}
			if p.Name != name {
				t.Errorf("Name = %q", p.Name)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := PolicyByName("theremin")
		if !errors.Is(err, ErrUnknownPolicy) {
			t.Errorf("err = %v, want ErrUnknownPolicy", err)
		}
	})
}

func TestMode(t *testing.T) {
	if !Lead.IsContinuous() || Percussion.IsContinuous() || Idle.IsContinuous() || DrumKit.IsContinuous() {
		t.Error("only lead is continuous")
	}
	b, _ := DrumKit.MarshalText()
	if string(b) != "drumkit" {
		t.Errorf("MarshalText = %q", b)
	}
	var m Mode
	if err := m.UnmarshalText([]byte("percussion")); err != nil || m != Percussion {
		t.Errorf("UnmarshalText = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("theremin")); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestPolicy_FirstMatchWins(t *testing.T) {
	// A two-finger hand also satisfies index-raised; order decides.
	f := leftHand(detector.PoseTwoRaised)
	indexFirst := Policy{
		Role: gesture.VisualLeft,
		Rules: []Rule{
			{Shape: IndexRaised, Selection: Selection{Mode: Lead}},
			{Shape: TwoRaised, Selection: Selection{Mode: Percussion}},
		},
	}
	if got := indexFirst.Select(f); got.Mode != Lead {
		t.Errorf("index-first = %v, want lead", got.Mode)
	}
	twoFirst := indexFirst
	twoFirst.Rules = []Rule{indexFirst.Rules[1], indexFirst.Rules[0]}
	if got := twoFirst.Select(f); got.Mode != Percussion {
		t.Errorf("two-first = %v, want percussion", got.Mode)
	}
}

func TestParse(t *testing.T) {
	for _, m := range []Mode{Idle, Lead, Percussion, DrumKit} {
		got, err := Parse(m.String())
		if err != nil || got != m {
			t.Errorf("Parse(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := Parse("chord"); err == nil {
		t.Error("expected error")
	}
}
