// Package control maps hand-to-hand geometry onto continuous instrument
// parameters.
package control

import (
	"fmt"
	"strings"

	"github.com/ayusman/handsynth/internal/gesture"
)

// LinearMap maps v from [inLow, inHigh] onto [outLow, outHigh] without
// clamping. A degenerate input range returns outLow.
func LinearMap(v, inLow, inHigh, outLow, outHigh float64) float64 {
	if inHigh == inLow {
		return outLow
	}
	return outLow + (v-inLow)*(outHigh-outLow)/(inHigh-inLow)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Range is a linear mapping followed by a clamp.
type Range struct {
	InLow   float64 `json:"in_low"`
	InHigh  float64 `json:"in_high"`
	OutLow  float64 `json:"out_low"`
	OutHigh float64 `json:"out_high"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Apply maps and clamps v.
func (r Range) Apply(v float64) float64 {
	return Clamp(LinearMap(v, r.InLow, r.InHigh, r.OutLow, r.OutHigh), r.Min, r.Max)
}

// Validate checks that the clamp bounds are ordered.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("range min %g exceeds max %g", r.Min, r.Max)
	}
	return nil
}

// Values are the continuous controls for one frame.
type Values struct {
	Volume      float64 `json:"volume"`
	PitchOffset float64 `json:"pitch_offset"`
}

// Mapper converts the index-tip offset into Values.
type Mapper struct {
	Volume Range `json:"volume"`
	Pitch  Range `json:"pitch"`
}

// DefaultMapper brings the hands together for more volume and raises the
// visual-right hand for higher pitch.
func DefaultMapper() Mapper {
	return Mapper{
		Volume: Range{InLow: 0, InHigh: 400, OutLow: 1, OutHigh: 0, Min: 0, Max: 1},
		Pitch:  Range{InLow: -200, InHigh: 200, OutLow: -100, OutHigh: 100, Min: -100, Max: 100},
	}
}

// Map computes Values from an offset.
func (m Mapper) Map(off gesture.Offset) Values {
	return Values{
		Volume:      m.Volume.Apply(-off.DX),
		PitchOffset: m.Pitch.Apply(-off.DY),
	}
}

// MapFrame maps the frame's index-tip offset. It returns false when either
// index tip is missing; the caller keeps its previous values.
func (m Mapper) MapFrame(f gesture.Frame) (Values, bool) {
	off, ok := f.IndexTipOffset()
	if !ok {
		return Values{}, false
	}
	return m.Map(off), true
}

// Waveform is an oscillator shape.
type Waveform string

const (
	Sine     Waveform = "sine"
	Triangle Waveform = "triangle"
	Sawtooth Waveform = "sawtooth"
	Square   Waveform = "square"
)

// ParseWaveform accepts a waveform name, case-insensitive.
func ParseWaveform(s string) (Waveform, error) {
	switch w := Waveform(strings.ToLower(strings.TrimSpace(s))); w {
	case Sine, Triangle, Sawtooth, Square:
		return w, nil
	default:
		return "", fmt.Errorf("unknown waveform %q", s)
	}
}

// WaveformTable picks a waveform by raised-finger count. Index is the count.
type WaveformTable []Waveform

// DefaultWaveformTable covers counts 0 through 3.
func DefaultWaveformTable() WaveformTable {
	return WaveformTable{Sine, Triangle, Sawtooth, Square}
}

// For returns the waveform for a finger count. Counts past the end use the
// last entry; negative counts use the first. An empty table yields Sine.
func (t WaveformTable) For(count int) Waveform {
	if len(t) == 0 {
		return Sine
	}
	if count < 0 {
		count = 0
	}
	if count >= len(t) {
		count = len(t) - 1
	}
	return t[count]
}

// Validate checks every entry names a known waveform.
func (t WaveformTable) Validate() error {
	for i, w := range t {
		if _, err := ParseWaveform(string(w)); err != nil {
			return fmt.Errorf("waveform table entry %d: %w", i, err)
		}
	}
	return nil
}
