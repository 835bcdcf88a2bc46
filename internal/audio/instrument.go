package audio

import (
	"fmt"

	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/mode"
)

// Voice is one oscillator slot and its resting frequency.
type Voice struct {
	ID   int     `json:"id"`
	Base float64 `json:"base"`
}

// Instrument describes what a mode sounds like. Waveform left empty means
// the waveform follows the raised-finger table.
type Instrument struct {
	Name      string           `json:"name"`
	Mode      mode.Mode        `json:"-"`
	ModeName  string           `json:"mode"`
	Voices    []Voice          `json:"voices,omitempty"`
	Waveform  control.Waveform `json:"waveform,omitempty"`
	Amplitude float64          `json:"amplitude"`
	Envelope  string           `json:"envelope,omitempty"`
}

// DefaultInstruments returns the instruments named by the built-in policies.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{
			Name:      mode.InstrumentLead,
			Mode:      mode.Lead,
			ModeName:  mode.Lead.String(),
			Voices:    []Voice{{ID: 0, Base: 440}},
			Amplitude: 0.5,
		},
		{
			Name:      mode.InstrumentLeadAlt,
			Mode:      mode.Lead,
			ModeName:  mode.Lead.String(),
			Voices:    []Voice{{ID: 1, Base: 440}},
			Waveform:  control.Sine,
			Amplitude: 0.5,
		},
		{
			Name:      mode.InstrumentPercussion,
			Mode:      mode.Percussion,
			ModeName:  mode.Percussion.String(),
			Amplitude: 0.5,
			Envelope:  "square-660",
		},
		{
			Name:      mode.InstrumentDrumKit,
			Mode:      mode.DrumKit,
			ModeName:  mode.DrumKit.String(),
			Amplitude: 1,
		},
	}
}

// ResolveModes fills Mode from ModeName after decoding from config.
func ResolveModes(insts []Instrument) error {
	for i := range insts {
		if insts[i].ModeName == "" {
			insts[i].ModeName = insts[i].Mode.String()
			continue
		}
		m, err := mode.Parse(insts[i].ModeName)
		if err != nil {
			return fmt.Errorf("instrument %q: %w", insts[i].Name, err)
		}
		insts[i].Mode = m
	}
	return nil
}
