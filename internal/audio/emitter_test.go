package audio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/mode"
)

var (
	lead       = mode.Selection{Mode: mode.Lead, Instrument: mode.InstrumentLead}
	leadAlt    = mode.Selection{Mode: mode.Lead, Instrument: mode.InstrumentLeadAlt}
	percussion = mode.Selection{Mode: mode.Percussion, Instrument: mode.InstrumentPercussion}
	drumkit    = mode.Selection{Mode: mode.DrumKit, Instrument: mode.InstrumentDrumKit}
	idle       = mode.Selection{Mode: mode.Idle}
)

func newTestEmitter(t *testing.T) (*Emitter, *Recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Samples = map[gesture.Quadrant]string{
		gesture.QuadrantTopLeft:     "kick",
		gesture.QuadrantBottomRight: "snare",
	}
	rec := &Recorder{}
	e, err := NewEmitter(rec, cfg)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	return e, rec
}

func started(t *testing.T) (*Emitter, *Recorder) {
	t.Helper()
	e, rec := newTestEmitter(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Reset()
	return e, rec
}

func TestEmitter_GateDropsUntilStart(t *testing.T) {
	e, rec := newTestEmitter(t)

	for i := 0; i < 3; i++ {
		if err := e.Emit(Input{Selection: lead, HasControl: true, Control: control.Values{Volume: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Emit(Input{Selection: percussion, Hits: []Hit{{Mode: mode.Percussion, Instrument: mode.InstrumentPercussion}}}); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.Commands()); n != 0 {
		t.Fatalf("expected no commands before start, got %d", n)
	}

	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	rec.Reset()

	// The first frame after start enters the instrument from scratch even
	// though the selection has not changed.
	if err := e.Emit(Input{Selection: lead, Waveform: control.Square}); err != nil {
		t.Fatal(err)
	}
	if len(rec.Filter(CmdWaveform)) != 1 || len(rec.Filter(CmdAmplitude)) != 1 {
		t.Errorf("expected a full entry, got %v", rec.Commands())
	}
}

func TestEmitter_EnterLead(t *testing.T) {
	e, rec := started(t)
	err := e.Emit(Input{
		Selection:  lead,
		HasControl: true,
		Control:    control.Values{Volume: 0.8, PitchOffset: 20},
		Waveform:   control.Triangle,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []Command{
		{Kind: CmdWaveform, Voice: 0, Waveform: control.Triangle},
		{Kind: CmdFrequency, Voice: 0, Hz: 460},
		{Kind: CmdAmplitude, Voice: 0, Level: 0.4, Fade: 50 * time.Millisecond},
	}
	got := rec.Commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v", got)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Voice != want[i].Voice ||
			got[i].Waveform != want[i].Waveform || got[i].Fade != want[i].Fade ||
			math.Abs(got[i].Hz-want[i].Hz) > 1e-9 || math.Abs(got[i].Level-want[i].Level) > 1e-9 {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEmitter_ContinuousUpdates(t *testing.T) {
	e, rec := started(t)
	e.Emit(Input{Selection: lead, HasControl: true, Control: control.Values{Volume: 1}, Waveform: control.Sine})
	rec.Reset()

	t.Run("control values glide", func(t *testing.T) {
		e.Emit(Input{Selection: lead, HasControl: true, Control: control.Values{Volume: 0.5, PitchOffset: -10}, Waveform: control.Sine})
		if len(rec.Filter(CmdWaveform)) != 0 {
			t.Error("unchanged waveform must not be re-sent")
		}
		amps := rec.Filter(CmdAmplitude)
		if len(amps) != 1 || amps[0].Fade != 20*time.Millisecond || amps[0].Level != 0.25 {
			t.Errorf("amplitude = %v", amps)
		}
		freqs := rec.Filter(CmdFrequency)
		if len(freqs) != 1 || freqs[0].Hz != 430 {
			t.Errorf("frequency = %v", freqs)
		}
		rec.Reset()
	})

	t.Run("missing control holds", func(t *testing.T) {
		e.Emit(Input{Selection: lead, Waveform: control.Sine})
		if n := len(rec.Commands()); n != 0 {
			t.Errorf("expected voices to hold, got %v", rec.Commands())
		}
	})

	t.Run("waveform change", func(t *testing.T) {
		e.Emit(Input{Selection: lead, Waveform: control.Sawtooth})
		wf := rec.Filter(CmdWaveform)
		if len(wf) != 1 || wf[0].Waveform != control.Sawtooth {
			t.Errorf("waveform = %v", wf)
		}
		rec.Reset()
	})
}

func TestEmitter_Leaving(t *testing.T) {
	e, rec := started(t)
	e.Emit(Input{Selection: lead})
	rec.Reset()

	e.Emit(Input{Selection: idle})
	amps := rec.Filter(CmdAmplitude)
	if len(amps) != 1 || amps[0].Voice != 0 || amps[0].Level != 0 || amps[0].Fade != 50*time.Millisecond {
		t.Fatalf("expected voice 0 released, got %v", rec.Commands())
	}
	rec.Reset()

	e.Emit(Input{Selection: idle})
	if n := len(rec.Commands()); n != 0 {
		t.Errorf("idle should stay silent, got %v", rec.Commands())
	}
}

func TestEmitter_SwitchInstrument(t *testing.T) {
	e, rec := started(t)
	e.Emit(Input{Selection: lead, Waveform: control.Square})
	rec.Reset()

	e.Emit(Input{Selection: leadAlt, Waveform: control.Square})
	cmds := rec.Commands()
	if len(cmds) == 0 || cmds[0].Kind != CmdAmplitude || cmds[0].Voice != 0 || cmds[0].Level != 0 {
		t.Fatalf("expected old voice released first, got %v", cmds)
	}
	wf := rec.Filter(CmdWaveform)
	if len(wf) != 1 || wf[0].Voice != 1 || wf[0].Waveform != control.Sine {
		t.Errorf("lead-alt uses a fixed sine, got %v", wf)
	}
}

func TestEmitter_PercussionHit(t *testing.T) {
	e, rec := started(t)
	e.Emit(Input{Selection: lead, HasControl: true, Control: control.Values{Volume: 0.6}})
	rec.Reset()

	e.Emit(Input{Selection: percussion, Hits: []Hit{{Mode: mode.Percussion, Instrument: mode.InstrumentPercussion}}})
	envs := rec.Filter(CmdEnvelope)
	if len(envs) != 1 || envs[0].ID != "square-660" || envs[0].Velocity != 0.6 {
		t.Errorf("envelope = %v", envs)
	}
	if len(rec.Filter(CmdSample)) != 0 {
		t.Error("percussion must not trigger samples")
	}
}

func TestEmitter_PercussionVelocityBeforeStart(t *testing.T) {
	e, rec := newTestEmitter(t)
	e.Emit(Input{Selection: lead, HasControl: true, Control: control.Values{Volume: 0.3}})
	if len(rec.Commands()) != 0 {
		t.Fatal("gated emit must not reach the backend")
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	rec.Reset()

	e.Emit(Input{Selection: percussion, Hits: []Hit{{Mode: mode.Percussion, Instrument: mode.InstrumentPercussion}}})
	envs := rec.Filter(CmdEnvelope)
	if len(envs) != 1 || envs[0].Velocity != 0.3 {
		t.Errorf("envelope = %v, want velocity 0.3", envs)
	}
}

func TestEmitter_DrumKitHit(t *testing.T) {
	tests := []struct {
		name     string
		quadrant gesture.Quadrant
		want     []string
	}{
		{name: "mapped quadrant", quadrant: gesture.QuadrantTopLeft, want: []string{"kick"}},
		{name: "centre resolves to quadrant 4", quadrant: gesture.QuadrantBottomRight, want: []string{"snare"}},
		{name: "unmapped quadrant", quadrant: gesture.QuadrantTopRight, want: nil},
		{name: "no quadrant", quadrant: gesture.QuadrantNone, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := started(t)
			e.Emit(Input{Selection: drumkit, Hits: []Hit{{Mode: mode.DrumKit, Quadrant: tt.quadrant}}})
			samples := rec.Filter(CmdSample)
			if len(samples) != len(tt.want) {
				t.Fatalf("samples = %v, want %v", samples, tt.want)
			}
			for i, id := range tt.want {
				if samples[i].ID != id {
					t.Errorf("sample %d = %s, want %s", i, samples[i].ID, id)
				}
			}
		})
	}
}

func TestEmitter_SetSamples(t *testing.T) {
	e, rec := started(t)
	layout := map[gesture.Quadrant]string{gesture.QuadrantTopRight: "clap"}
	e.SetSamples(layout)
	layout[gesture.QuadrantTopRight] = "changed"

	e.Emit(Input{Selection: drumkit, Hits: []Hit{{Mode: mode.DrumKit, Quadrant: gesture.QuadrantTopLeft}}})
	e.Emit(Input{Selection: drumkit, Hits: []Hit{{Mode: mode.DrumKit, Quadrant: gesture.QuadrantTopRight}}})

	samples := rec.Filter(CmdSample)
	if len(samples) != 1 || samples[0].ID != "clap" {
		t.Errorf("samples = %v, want [clap]", samples)
	}
}

func TestEmitter_BackendErrorsAreJoined(t *testing.T) {
	e, rec := started(t)
	boom := errors.New("port gone")
	rec.Err = boom

	err := e.Emit(Input{Selection: lead, Waveform: control.Sine})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	// All three voice commands were still attempted.
	if n := len(rec.Commands()); n != 3 {
		t.Errorf("attempted %d commands, want 3", n)
	}
}

func TestEmitter_StartFailure(t *testing.T) {
	rec := &Recorder{Err: errors.New("no device")}
	e, _ := NewEmitter(rec, DefaultConfig())
	if err := e.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if e.Started() {
		t.Error("emitter must stay gated after a failed start")
	}
}

func TestNewEmitter_DuplicateInstrument(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instruments = append(cfg.Instruments, cfg.Instruments[0])
	if _, err := NewEmitter(&Recorder{}, cfg); err == nil {
		t.Error("expected duplicate instrument error")
	}
}

func TestEmitter_Close(t *testing.T) {
	e, rec := started(t)
	e.Emit(Input{Selection: lead})
	rec.Reset()

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	cmds := rec.Commands()
	if len(cmds) != 2 || cmds[0].Kind != CmdAmplitude || cmds[1].Kind != CmdClose {
		t.Errorf("close commands = %v", cmds)
	}
	if e.Started() {
		t.Error("closed emitter should be gated")
	}
}
