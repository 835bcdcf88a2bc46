// Package engine runs the per-frame pipeline: classify, select a mode, map
// controls, debounce triggers and emit audio commands. All state that lives
// across frames is owned here behind one mutex.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/mode"
	"github.com/ayusman/handsynth/internal/trigger"
	"github.com/ayusman/handsynth/internal/tutorial"
)

// Trigger sources.
const (
	SourcePercussion = "percussion"
	SourceDrumKit    = "drumkit"
)

// Config wires the pipeline stages together.
type Config struct {
	Policy    mode.Policy
	Mapper    control.Mapper
	Waveforms control.WaveformTable

	// WaveformRole is the hand whose raised fingers pick the waveform.
	WaveformRole gesture.Role
	// TriggerRole is the hand that pinches and points at quadrants.
	TriggerRole gesture.Role

	// PinchThreshold is in pixels at ReferenceWidth.
	PinchThreshold float64
	ReferenceWidth float64

	Audio audio.Config

	// TutorialSteps may be empty.
	TutorialSteps []tutorial.Step
	// OnTutorialComplete is called once, outside the engine lock.
	OnTutorialComplete func()
}

// DefaultConfig uses the ternary policy.
func DefaultConfig() Config {
	return Config{
		Policy:         mode.Ternary(),
		Mapper:         control.DefaultMapper(),
		Waveforms:      control.DefaultWaveformTable(),
		WaveformRole:   gesture.VisualLeft,
		TriggerRole:    gesture.VisualRight,
		PinchThreshold: gesture.DefaultPinchThreshold,
		ReferenceWidth: gesture.ReferenceWidth,
		Audio:          audio.DefaultConfig(),
	}
}

// State is the result of one Step, published to observers.
type State struct {
	Seq      uint64           `json:"seq"`
	Time     time.Time        `json:"time"`
	Viewport gesture.Viewport `json:"viewport"`
	Hands    []detector.Hand  `json:"hands"`
	Policy   string           `json:"policy"`

	Selection mode.Selection `json:"selection"`

	// Control holds the last mapped values; HasControl tells whether this
	// frame produced them.
	Control    control.Values `json:"control"`
	HasControl bool           `json:"has_control"`

	FingerCount int              `json:"finger_count"`
	Waveform    control.Waveform `json:"waveform"`
	Pinched     bool             `json:"pinched"`
	Quadrant    gesture.Quadrant `json:"quadrant"`
	Hits        []audio.Hit      `json:"hits,omitempty"`

	AudioStarted bool              `json:"audio_started"`
	Tutorial     tutorial.Progress `json:"tutorial"`
}

// Engine is the pipeline context. Safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	emitter  *audio.Emitter
	triggers *trigger.Bank
	tutorial *tutorial.Tutorial

	seq      uint64
	control  control.Values
	lastMode mode.Mode
	latest   State

	logger   *log.Logger
	warnings *rate.Limiter
}

// New builds an engine that emits to b.
func New(b audio.Backend, cfg Config) (*Engine, error) {
	if cfg.ReferenceWidth <= 0 {
		cfg.ReferenceWidth = gesture.ReferenceWidth
	}
	if cfg.PinchThreshold <= 0 {
		cfg.PinchThreshold = gesture.DefaultPinchThreshold
	}
	em, err := audio.NewEmitter(b, cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("create emitter: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		emitter:  em,
		triggers: trigger.NewBank(),
		tutorial: tutorial.New(cfg.TutorialSteps),
		control:  control.Values{Volume: 1},
		logger:   logging.WithPrefix("engine"),
		warnings: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	e.latest = State{Policy: cfg.Policy.Name, Control: e.control, Tutorial: e.tutorial.Progress()}
	return e, nil
}

// Step runs one display cycle against the latest frame.
func (e *Engine) Step(f gesture.Frame) State {
	e.mu.Lock()
	s, completed := e.step(f)
	cb := e.cfg.OnTutorialComplete
	e.mu.Unlock()

	if completed && cb != nil {
		cb()
	}
	return s
}

func (e *Engine) step(f gesture.Frame) (State, bool) {
	sel := e.cfg.Policy.Select(f)
	if sel.Mode != e.lastMode {
		e.logger.Debug("mode changed", "from", e.lastMode, "to", sel.Mode, "instrument", sel.Instrument)
		e.lastMode = sel.Mode
	}

	vals, hasControl := e.cfg.Mapper.MapFrame(f)
	if hasControl {
		e.control = vals
	}

	count := f.CountFingersUp(e.cfg.WaveformRole)
	waveform := e.cfg.Waveforms.For(count)

	threshold := gesture.ScaleThreshold(e.cfg.PinchThreshold, e.cfg.ReferenceWidth, f.Viewport.Width)
	pinched := f.IsPinched(e.cfg.TriggerRole, threshold)
	quadrant, _ := f.QuadrantOf(e.cfg.TriggerRole)

	var hits []audio.Hit
	if e.triggers.Update(SourcePercussion, sel.Mode == mode.Percussion && pinched) {
		hits = append(hits, audio.Hit{Mode: mode.Percussion, Instrument: sel.Instrument})
	}
	if e.triggers.Update(SourceDrumKit, sel.Mode == mode.DrumKit && pinched) {
		hits = append(hits, audio.Hit{Mode: mode.DrumKit, Instrument: sel.Instrument, Quadrant: quadrant})
	}

	completed := false
	if !e.tutorial.Completed() {
		completed = e.tutorial.Update(f)
	}

	err := e.emitter.Emit(audio.Input{
		Selection:  sel,
		Control:    vals,
		HasControl: hasControl,
		Waveform:   waveform,
		Hits:       hits,
	})
	if err != nil && e.warnings.Allow() {
		e.logger.Warn("audio backend error", "err", err)
	}

	e.seq++
	e.latest = State{
		Seq:          e.seq,
		Time:         time.Now(),
		Viewport:     f.Viewport,
		Hands:        f.Hands(),
		Policy:       e.cfg.Policy.Name,
		Selection:    sel,
		Control:      e.control,
		HasControl:   hasControl,
		FingerCount:  count,
		Waveform:     waveform,
		Pinched:      pinched,
		Quadrant:     quadrant,
		Hits:         hits,
		AudioStarted: e.emitter.Started(),
		Tutorial:     e.tutorial.Progress(),
	}
	return e.latest, completed
}

// StartAudio opens the audio gate. Calling it again is a no-op.
func (e *Engine) StartAudio() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.emitter.Start(); err != nil {
		return err
	}
	e.latest.AudioStarted = true
	e.logger.Info("audio started")
	return nil
}

// AudioStarted reports whether the gate is open.
func (e *Engine) AudioStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitter.Started()
}

// Latest returns the most recent state.
func (e *Engine) Latest() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// SetPolicy swaps the mode policy. Debounce state is kept: a pinch held
// across the switch stays armed and does not fire again.
func (e *Engine) SetPolicy(p mode.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Policy = p
	e.latest.Policy = p.Name
	e.logger.Info("policy changed", "policy", p.Name)
}

// UsePolicy switches to a built-in policy by name.
func (e *Engine) UsePolicy(name string) error {
	p, err := mode.PolicyByName(name)
	if err != nil {
		return err
	}
	e.SetPolicy(p)
	return nil
}

// Policy returns the active policy name.
func (e *Engine) Policy() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Policy.Name
}

// SetSamples replaces the quadrant to sample layout of the drum kit.
func (e *Engine) SetSamples(layout map[gesture.Quadrant]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitter.SetSamples(layout)
}

// SkipTutorial marks the tutorial completed without calling the completion
// hook.
func (e *Engine) SkipTutorial() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tutorial.Skip()
	e.latest.Tutorial = e.tutorial.Progress()
}

// ResetTutorial starts the tutorial over.
func (e *Engine) ResetTutorial() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tutorial.Reset()
	e.latest.Tutorial = e.tutorial.Progress()
}

// Close silences and closes the audio backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitter.Close()
}
