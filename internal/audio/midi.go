package audio

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/logging"
)

// Envelope is a one-shot note played for TriggerEnvelope.
type Envelope struct {
	Channel uint8         `json:"channel"`
	Note    uint8         `json:"note"`
	Length  time.Duration `json:"length"`
}

// MIDIConfig maps backend commands onto a MIDI output.
type MIDIConfig struct {
	// Port is matched as a case-insensitive substring of the output port
	// name. Empty selects the first port.
	Port string

	// Channels maps voice ids to channels (0-15). Unlisted voices use
	// their id modulo 16.
	Channels map[int]uint8

	DrumChannel uint8
	Programs    map[control.Waveform]uint8

	// Samples maps preloaded sample ids to drum notes.
	Samples   map[string]uint8
	Envelopes map[string]Envelope

	// BendRange is the receiver's pitch-bend range in semitones.
	BendRange float64

	// SampleLength is how long drum notes are held.
	SampleLength time.Duration
}

// DefaultMIDIConfig uses General MIDI programs and the GM drum channel.
func DefaultMIDIConfig() MIDIConfig {
	return MIDIConfig{
		DrumChannel: 9,
		Programs: map[control.Waveform]uint8{
			control.Sine:     79, // ocarina
			control.Triangle: 74, // recorder
			control.Sawtooth: 81,
			control.Square:   80,
		},
		Samples: map[string]uint8{},
		Envelopes: map[string]Envelope{
			"square-660": {Channel: 4, Note: 76, Length: 150 * time.Millisecond},
		},
		BendRange:    2,
		SampleLength: 100 * time.Millisecond,
	}
}

const (
	rampSteps = 8
	ccVolume  = 7
)

type voiceState struct {
	note     uint8
	hasNote  bool
	sounding bool
	level    float64
	ramp     chan struct{}
}

// MIDIBackend plays voices as held notes with pitch bend and channel
// volume. Samples and envelopes are short notes.
type MIDIBackend struct {
	cfg  MIDIConfig
	open func() (func(midi.Message) error, error)

	mu     sync.Mutex
	send   func(midi.Message) error
	voices map[int]*voiceState
}

// NewMIDIBackend returns a backend that opens its port on Start. A MIDI
// driver must be registered by the caller.
func NewMIDIBackend(cfg MIDIConfig) *MIDIBackend {
	return newMIDIBackend(cfg, func() (func(midi.Message) error, error) {
		return openPort(cfg.Port)
	})
}

func newMIDIBackend(cfg MIDIConfig, open func() (func(midi.Message) error, error)) *MIDIBackend {
	if cfg.BendRange <= 0 {
		cfg.BendRange = 2
	}
	return &MIDIBackend{
		cfg:    cfg,
		open:   open,
		voices: make(map[int]*voiceState),
	}
}

func openPort(name string) (func(midi.Message) error, error) {
	ports := midi.GetOutPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI output ports")
	}
	out := ports[0]
	if name != "" {
		found := false
		for _, p := range ports {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
				out, found = p, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("MIDI output %q not found", name)
		}
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open MIDI output %q: %w", out.String(), err)
	}
	logging.Info("MIDI output opened", "port", out.String())
	return send, nil
}

func (b *MIDIBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send != nil {
		return nil
	}
	send, err := b.open()
	if err != nil {
		return err
	}
	b.send = send
	return nil
}

func (b *MIDIBackend) channel(voice int) uint8 {
	if ch, ok := b.cfg.Channels[voice]; ok {
		return ch
	}
	return uint8(voice % 16)
}

func (b *MIDIBackend) voice(id int) *voiceState {
	v, ok := b.voices[id]
	if !ok {
		v = &voiceState{}
		b.voices[id] = v
	}
	return v
}

func (b *MIDIBackend) SetVoiceWaveform(voice int, w control.Waveform) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return ErrNotStarted
	}
	prog, ok := b.cfg.Programs[w]
	if !ok {
		return fmt.Errorf("no MIDI program for waveform %q", w)
	}
	return b.send(midi.ProgramChange(b.channel(voice), prog))
}

// NoteForFrequency returns the nearest MIDI note and the remaining offset
// in semitones.
func NoteForFrequency(hz float64) (uint8, float64) {
	if hz <= 0 {
		return 0, 0
	}
	n := 69 + 12*math.Log2(hz/440)
	note := math.Round(n)
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	return uint8(note), n - note
}

func bendValue(semitones, bendRange float64) int16 {
	v := math.Round(semitones / bendRange * 8192)
	return int16(control.Clamp(v, -8192, 8191))
}

func (b *MIDIBackend) SetVoiceFrequency(voice int, hz float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return ErrNotStarted
	}
	ch := b.channel(voice)
	v := b.voice(voice)
	note, rest := NoteForFrequency(hz)

	if v.sounding && v.hasNote && v.note != note {
		if err := b.send(midi.NoteOff(ch, v.note)); err != nil {
			return err
		}
		if err := b.send(midi.NoteOn(ch, note, 100)); err != nil {
			return err
		}
	}
	v.note, v.hasNote = note, true
	return b.send(midi.Pitchbend(ch, bendValue(rest, b.cfg.BendRange)))
}

// SetVoiceAmplitude steps channel volume toward level over fade. Reaching
// zero releases the note.
func (b *MIDIBackend) SetVoiceAmplitude(voice int, level float64, fade time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return ErrNotStarted
	}
	level = control.Clamp(level, 0, 1)
	ch := b.channel(voice)
	v := b.voice(voice)

	if v.ramp != nil {
		close(v.ramp)
		v.ramp = nil
	}
	if level > 0 && !v.sounding && v.hasNote {
		if err := b.send(midi.NoteOn(ch, v.note, 100)); err != nil {
			return err
		}
		v.sounding = true
	}
	if fade <= 0 {
		return b.setLevel(ch, v, level)
	}

	stop := make(chan struct{})
	v.ramp = stop
	go b.rampLevel(ch, v, v.level, level, fade, stop)
	return nil
}

func (b *MIDIBackend) rampLevel(ch uint8, v *voiceState, from, to float64, fade time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(fade / rampSteps)
	defer ticker.Stop()
	for i := 1; i <= rampSteps; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		b.mu.Lock()
		select {
		case <-stop:
			b.mu.Unlock()
			return
		default:
		}
		lvl := from + (to-from)*float64(i)/rampSteps
		if err := b.setLevel(ch, v, lvl); err != nil {
			logging.Debug("MIDI ramp failed", "err", err)
		}
		if i == rampSteps {
			v.ramp = nil
		}
		b.mu.Unlock()
	}
}

// setLevel must be called with b.mu held.
func (b *MIDIBackend) setLevel(ch uint8, v *voiceState, level float64) error {
	v.level = level
	if err := b.send(midi.ControlChange(ch, ccVolume, uint8(math.Round(level*127)))); err != nil {
		return err
	}
	if level == 0 && v.sounding {
		v.sounding = false
		return b.send(midi.NoteOff(ch, v.note))
	}
	return nil
}

// LoadSamples replaces the sample id to drum note table.
func (b *MIDIBackend) LoadSamples(notes map[string]uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Samples = make(map[string]uint8, len(notes))
	for id, n := range notes {
		b.cfg.Samples[id] = n
	}
}

func (b *MIDIBackend) TriggerSample(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return ErrNotStarted
	}
	note, ok := b.cfg.Samples[id]
	if !ok {
		return fmt.Errorf("unknown sample %q", id)
	}
	return b.oneShot(b.cfg.DrumChannel, note, 100, b.cfg.SampleLength)
}

func (b *MIDIBackend) TriggerEnvelope(id string, velocity float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return ErrNotStarted
	}
	env, ok := b.cfg.Envelopes[id]
	if !ok {
		return fmt.Errorf("unknown envelope %q", id)
	}
	vel := uint8(control.Clamp(math.Round(velocity*127), 1, 127))
	return b.oneShot(env.Channel, env.Note, vel, env.Length)
}

// oneShot must be called with b.mu held.
func (b *MIDIBackend) oneShot(ch, note, velocity uint8, length time.Duration) error {
	if err := b.send(midi.NoteOn(ch, note, velocity)); err != nil {
		return err
	}
	send := b.send
	time.AfterFunc(length, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := send(midi.NoteOff(ch, note)); err != nil {
			logging.Debug("MIDI note off failed", "err", err)
		}
	})
	return nil
}

// Close stops ramps and releases sounding notes. The port itself belongs
// to the driver, which the caller closes.
func (b *MIDIBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return nil
	}
	var firstErr error
	for id, v := range b.voices {
		if v.ramp != nil {
			close(v.ramp)
			v.ramp = nil
		}
		if v.sounding {
			if err := b.send(midi.NoteOff(b.channel(id), v.note)); err != nil && firstErr == nil {
				firstErr = err
			}
			v.sounding = false
		}
	}
	b.send = nil
	return firstErr
}
