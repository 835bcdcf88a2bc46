// Package audio turns mode selections, control values and trigger hits into
// commands for a sound backend.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/logging"
)

// ErrNotStarted is returned by backends asked to sound before Start.
var ErrNotStarted = errors.New("audio not started")

// Backend is the sink for audio commands. Voice ids are stable small
// integers; sample and envelope ids refer to preloaded assets.
type Backend interface {
	Start() error
	SetVoiceWaveform(voice int, w control.Waveform) error
	SetVoiceFrequency(voice int, hz float64) error
	SetVoiceAmplitude(voice int, level float64, fade time.Duration) error
	TriggerSample(id string) error
	TriggerEnvelope(id string, velocity float64) error
	Close() error
}

// SampleLoader is implemented by backends whose sample table can change
// while running.
type SampleLoader interface {
	LoadSamples(notes map[string]uint8)
}

// CommandKind names a backend call.
type CommandKind string

const (
	CmdStart     CommandKind = "start"
	CmdWaveform  CommandKind = "waveform"
	CmdFrequency CommandKind = "frequency"
	CmdAmplitude CommandKind = "amplitude"
	CmdSample    CommandKind = "sample"
	CmdEnvelope  CommandKind = "envelope"
	CmdClose     CommandKind = "close"
)

// Command is one recorded backend call.
type Command struct {
	Kind     CommandKind
	Voice    int
	Waveform control.Waveform
	Hz       float64
	Level    float64
	Fade     time.Duration
	ID       string
	Velocity float64
}

func (c Command) String() string {
	switch c.Kind {
	case CmdWaveform:
		return fmt.Sprintf("waveform voice=%d %s", c.Voice, c.Waveform)
	case CmdFrequency:
		return fmt.Sprintf("frequency voice=%d %.2fHz", c.Voice, c.Hz)
	case CmdAmplitude:
		return fmt.Sprintf("amplitude voice=%d %.3f over %s", c.Voice, c.Level, c.Fade)
	case CmdSample:
		return fmt.Sprintf("sample %s", c.ID)
	case CmdEnvelope:
		return fmt.Sprintf("envelope %s velocity=%.3f", c.ID, c.Velocity)
	default:
		return string(c.Kind)
	}
}

// Recorder is a Backend that keeps every command. Err, when set, is
// returned from every call.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	Err      error
}

func (r *Recorder) add(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
	return r.Err
}

func (r *Recorder) Start() error { return r.add(Command{Kind: CmdStart}) }

func (r *Recorder) SetVoiceWaveform(voice int, w control.Waveform) error {
	return r.add(Command{Kind: CmdWaveform, Voice: voice, Waveform: w})
}

func (r *Recorder) SetVoiceFrequency(voice int, hz float64) error {
	return r.add(Command{Kind: CmdFrequency, Voice: voice, Hz: hz})
}

func (r *Recorder) SetVoiceAmplitude(voice int, level float64, fade time.Duration) error {
	return r.add(Command{Kind: CmdAmplitude, Voice: voice, Level: level, Fade: fade})
}

func (r *Recorder) TriggerSample(id string) error {
	return r.add(Command{Kind: CmdSample, ID: id})
}

func (r *Recorder) TriggerEnvelope(id string, velocity float64) error {
	return r.add(Command{Kind: CmdEnvelope, ID: id, Velocity: velocity})
}

func (r *Recorder) Close() error { return r.add(Command{Kind: CmdClose}) }

// Commands returns a copy of everything recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Filter returns recorded commands of one kind.
func (r *Recorder) Filter(kind CommandKind) []Command {
	var out []Command
	for _, c := range r.Commands() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}

// LogBackend writes commands to the log. It stands in when no MIDI output
// is available.
type LogBackend struct{}

func (LogBackend) Start() error {
	logging.Info("audio started", "backend", "log")
	return nil
}

func (LogBackend) SetVoiceWaveform(voice int, w control.Waveform) error {
	logging.Debug("waveform", "voice", voice, "waveform", w)
	return nil
}

func (LogBackend) SetVoiceFrequency(voice int, hz float64) error {
	logging.Debug("frequency", "voice", voice, "hz", hz)
	return nil
}

func (LogBackend) SetVoiceAmplitude(voice int, level float64, fade time.Duration) error {
	logging.Debug("amplitude", "voice", voice, "level", level, "fade", fade)
	return nil
}

func (LogBackend) TriggerSample(id string) error {
	logging.Info("sample", "id", id)
	return nil
}

func (LogBackend) TriggerEnvelope(id string, velocity float64) error {
	logging.Info("envelope", "id", id, "velocity", velocity)
	return nil
}

func (LogBackend) Close() error { return nil }
