package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/mode"
)

// Config controls emitter timing and the drum-kit sample layout.
type Config struct {
	Instruments []Instrument
	Attack      time.Duration
	Release     time.Duration
	Glide       time.Duration

	// Samples maps a quadrant to a preloaded sample id.
	Samples map[gesture.Quadrant]string
}

// DefaultConfig returns the built-in instruments with short ramps.
func DefaultConfig() Config {
	return Config{
		Instruments: DefaultInstruments(),
		Attack:      50 * time.Millisecond,
		Release:     50 * time.Millisecond,
		Glide:       20 * time.Millisecond,
		Samples:     map[gesture.Quadrant]string{},
	}
}

// Hit is a fired discrete trigger.
type Hit struct {
	Mode       mode.Mode        `json:"mode"`
	Instrument string           `json:"instrument,omitempty"`
	Quadrant   gesture.Quadrant `json:"quadrant,omitempty"`
}

// Input is everything the emitter needs for one frame.
type Input struct {
	Selection mode.Selection

	// Control is only meaningful when HasControl is set.
	Control    control.Values
	HasControl bool

	// Waveform comes from the finger-count table and is used by
	// instruments without a fixed waveform.
	Waveform control.Waveform

	Hits []Hit
}

// Emitter issues backend commands for frame inputs. It remembers which
// instrument is sounding and which waveform each voice has, so unchanged
// state is not re-sent. Not safe for concurrent use.
type Emitter struct {
	backend     Backend
	cfg         Config
	instruments map[string]Instrument

	started bool
	entered bool
	current string

	control   control.Values
	waveforms map[int]control.Waveform
}

// NewEmitter creates an emitter. Instruments with duplicate names are
// rejected.
func NewEmitter(b Backend, cfg Config) (*Emitter, error) {
	insts := make(map[string]Instrument, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if _, dup := insts[inst.Name]; dup {
			return nil, fmt.Errorf("duplicate instrument %q", inst.Name)
		}
		insts[inst.Name] = inst
	}
	return &Emitter{
		backend:     b,
		cfg:         cfg,
		instruments: insts,
		control:     control.Values{Volume: 1},
		waveforms:   make(map[int]control.Waveform),
	}, nil
}

// Start opens the backend. Until Start succeeds every Emit is dropped.
func (e *Emitter) Start() error {
	if e.started {
		return nil
	}
	if err := e.backend.Start(); err != nil {
		return fmt.Errorf("start audio backend: %w", err)
	}
	e.started = true
	e.entered = false
	e.current = ""
	e.waveforms = make(map[int]control.Waveform)
	return nil
}

// Started reports whether Start has succeeded.
func (e *Emitter) Started() bool { return e.started }

// SetSamples replaces the quadrant layout used for drum-kit hits.
func (e *Emitter) SetSamples(layout map[gesture.Quadrant]string) {
	samples := make(map[gesture.Quadrant]string, len(layout))
	for q, id := range layout {
		samples[q] = id
	}
	e.cfg.Samples = samples
}

// Current returns the name of the instrument last entered.
func (e *Emitter) Current() string { return e.current }

// Emit issues the commands for one frame. Backend errors are collected and
// returned together; emission continues past them.
func (e *Emitter) Emit(in Input) error {
	// Control values are tracked while gated.
	if in.HasControl {
		e.control = in.Control
	}
	if !e.started {
		return nil
	}

	var errs []error
	next, continuous := e.continuousInstrument(in.Selection)
	name := in.Selection.Instrument
	if in.Selection.Mode == mode.Idle {
		name = ""
	}

	switch {
	case !e.entered || name != e.current:
		errs = append(errs, e.release(next)...)
		if continuous {
			errs = append(errs, e.enter(next, in.Waveform)...)
		}
		e.current = name
		e.entered = true
	case continuous:
		errs = append(errs, e.update(next, in)...)
	}

	for _, h := range in.Hits {
		if err := e.hit(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Emitter) continuousInstrument(sel mode.Selection) (Instrument, bool) {
	if !sel.Mode.IsContinuous() {
		return Instrument{}, false
	}
	inst, ok := e.instruments[sel.Instrument]
	if !ok || !inst.Mode.IsContinuous() {
		return Instrument{}, false
	}
	return inst, true
}

// release fades every voice of the current instrument that next does not
// also own.
func (e *Emitter) release(next Instrument) []error {
	prev, ok := e.instruments[e.current]
	if !ok || !e.entered {
		return nil
	}
	var errs []error
	for _, v := range prev.Voices {
		if owns(next, v.ID) {
			continue
		}
		if err := e.backend.SetVoiceAmplitude(v.ID, 0, e.cfg.Release); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Emitter) enter(inst Instrument, table control.Waveform) []error {
	var errs []error
	for _, v := range inst.Voices {
		if err := e.setWaveform(v.ID, waveformFor(inst, table)); err != nil {
			errs = append(errs, err)
		}
		if err := e.backend.SetVoiceFrequency(v.ID, v.Base+e.control.PitchOffset); err != nil {
			errs = append(errs, err)
		}
		if err := e.backend.SetVoiceAmplitude(v.ID, inst.Amplitude*e.control.Volume, e.cfg.Attack); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Emitter) update(inst Instrument, in Input) []error {
	var errs []error
	for _, v := range inst.Voices {
		if err := e.setWaveform(v.ID, waveformFor(inst, in.Waveform)); err != nil {
			errs = append(errs, err)
		}
		if !in.HasControl {
			continue
		}
		if err := e.backend.SetVoiceFrequency(v.ID, v.Base+e.control.PitchOffset); err != nil {
			errs = append(errs, err)
		}
		if err := e.backend.SetVoiceAmplitude(v.ID, inst.Amplitude*e.control.Volume, e.cfg.Glide); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Emitter) setWaveform(voice int, w control.Waveform) error {
	if w == "" || e.waveforms[voice] == w {
		return nil
	}
	if err := e.backend.SetVoiceWaveform(voice, w); err != nil {
		return err
	}
	e.waveforms[voice] = w
	return nil
}

func (e *Emitter) hit(h Hit) error {
	switch h.Mode {
	case mode.Percussion:
		inst, ok := e.instruments[h.Instrument]
		if !ok || inst.Envelope == "" {
			return nil
		}
		return e.backend.TriggerEnvelope(inst.Envelope, control.Clamp(e.control.Volume, 0, 1))
	case mode.DrumKit:
		id, ok := e.cfg.Samples[h.Quadrant]
		if !ok || id == "" || !h.Quadrant.Valid() {
			return nil
		}
		return e.backend.TriggerSample(id)
	}
	return nil
}

// Close silences the current instrument and closes the backend.
func (e *Emitter) Close() error {
	var errs []error
	if e.started {
		errs = append(errs, e.release(Instrument{})...)
	}
	e.started = false
	e.entered = false
	e.current = ""
	errs = append(errs, e.backend.Close())
	return errors.Join(errs...)
}

func owns(inst Instrument, voice int) bool {
	for _, v := range inst.Voices {
		if v.ID == voice {
			return true
		}
	}
	return false
}

func waveformFor(inst Instrument, table control.Waveform) control.Waveform {
	if inst.Waveform != "" {
		return inst.Waveform
	}
	if table == "" {
		return control.Sine
	}
	return table
}
