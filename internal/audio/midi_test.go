package audio

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/ayusman/handsynth/internal/control"
)

type sink struct {
	mu   sync.Mutex
	msgs []midi.Message
}

func (s *sink) send(m midi.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *sink) messages() []midi.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]midi.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *sink) reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

func newTestMIDI(t *testing.T) (*MIDIBackend, *sink) {
	t.Helper()
	s := &sink{}
	cfg := DefaultMIDIConfig()
	cfg.Samples["kick"] = 36
	// Keep note-offs out of the captured messages.
	cfg.SampleLength = time.Hour
	cfg.Envelopes["square-660"] = Envelope{Channel: 4, Note: 76, Length: time.Hour}
	b := newMIDIBackend(cfg, func() (func(midi.Message) error, error) {
		return s.send, nil
	})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return b, s
}

func TestNoteForFrequency(t *testing.T) {
	tests := []struct {
		hz       float64
		wantNote uint8
		wantRest float64
	}{
		{hz: 440, wantNote: 69, wantRest: 0},
		{hz: 880, wantNote: 81, wantRest: 0},
		{hz: 261.6256, wantNote: 60, wantRest: 0},
		{hz: 452.89, wantNote: 69, wantRest: 0.5},
	}
	for _, tt := range tests {
		note, rest := NoteForFrequency(tt.hz)
		if note != tt.wantNote || math.Abs(rest-tt.wantRest) > 0.01 {
			t.Errorf("NoteForFrequency(%v) = %d, %f; want %d, %f", tt.hz, note, rest, tt.wantNote, tt.wantRest)
		}
	}
	if bendValue(2, 2) != 8191 || bendValue(-2, 2) != -8192 || bendValue(0, 2) != 0 {
		t.Error("bend range endpoints")
	}
}

func TestMIDIBackend_NotStarted(t *testing.T) {
	b := newMIDIBackend(DefaultMIDIConfig(), func() (func(midi.Message) error, error) {
		return nil, errors.New("no ports")
	})
	if err := b.Start(); err == nil {
		t.Fatal("expected open error")
	}
	if err := b.SetVoiceFrequency(0, 440); !errors.Is(err, ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
	if err := b.TriggerSample("kick"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
}

func TestMIDIBackend_Voice(t *testing.T) {
	b, s := newTestMIDI(t)

	if err := b.SetVoiceWaveform(1, control.Square); err != nil {
		t.Fatal(err)
	}
	if err := b.SetVoiceFrequency(1, 440); err != nil {
		t.Fatal(err)
	}
	if err := b.SetVoiceAmplitude(1, 1, 0); err != nil {
		t.Fatal(err)
	}

	msgs := s.messages()
	if len(msgs) != 4 {
		t.Fatalf("messages = %v", msgs)
	}
	var ch, prog, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	if !msgs[0].GetProgramChange(&ch, &prog) || ch != 1 || prog != 80 {
		t.Errorf("program change = %v", msgs[0])
	}
	if !msgs[1].GetPitchBend(&ch, &rel, &abs) || rel != 0 {
		t.Errorf("pitch bend = %v", msgs[1])
	}
	if !msgs[2].GetNoteOn(&ch, &key, &vel) || key != 69 {
		t.Errorf("note on = %v", msgs[2])
	}
	if !msgs[3].GetControlChange(&ch, &cc, &val) || cc != 7 || val != 127 {
		t.Errorf("volume = %v", msgs[3])
	}

	t.Run("new note while sounding", func(t *testing.T) {
		s.reset()
		if err := b.SetVoiceFrequency(1, 880); err != nil {
			t.Fatal(err)
		}
		msgs := s.messages()
		if len(msgs) != 3 || !msgs[0].GetNoteOff(&ch, &key) || key != 69 || !msgs[1].GetNoteOn(&ch, &key, &vel) || key != 81 {
			t.Errorf("messages = %v", msgs)
		}
	})

	t.Run("zero level releases the note", func(t *testing.T) {
		s.reset()
		if err := b.SetVoiceAmplitude(1, 0, 0); err != nil {
			t.Fatal(err)
		}
		msgs := s.messages()
		if len(msgs) != 2 || !msgs[1].GetNoteOff(&ch, &key) || key != 81 {
			t.Errorf("messages = %v", msgs)
		}
	})
}

func TestMIDIBackend_AmplitudeRamp(t *testing.T) {
	b, s := newTestMIDI(t)
	b.SetVoiceFrequency(0, 440)
	s.reset()

	if err := b.SetVoiceAmplitude(0, 1, 16*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := s.messages()
		if len(msgs) > 0 {
			var ch, cc, val uint8
			last := msgs[len(msgs)-1]
			if last.GetControlChange(&ch, &cc, &val) && val == 127 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ramp did not reach full volume: %v", s.messages())
}

func TestMIDIBackend_OneShots(t *testing.T) {
	b, s := newTestMIDI(t)
	var ch, key, vel uint8

	if err := b.TriggerSample("kick"); err != nil {
		t.Fatal(err)
	}
	msgs := s.messages()
	if len(msgs) != 1 || !msgs[0].GetNoteOn(&ch, &key, &vel) || ch != 9 || key != 36 {
		t.Errorf("sample = %v", msgs)
	}
	if err := b.TriggerSample("cowbell"); err == nil {
		t.Error("expected unknown sample error")
	}

	s.reset()
	if err := b.TriggerEnvelope("square-660", 0.5); err != nil {
		t.Fatal(err)
	}
	msgs = s.messages()
	if len(msgs) != 1 || !msgs[0].GetNoteOn(&ch, &key, &vel) || ch != 4 || key != 76 || vel != 64 {
		t.Errorf("envelope = %v", msgs)
	}
	if err := b.TriggerEnvelope("missing", 1); err == nil {
		t.Error("expected unknown envelope error")
	}
}

func TestMIDIBackend_LoadSamples(t *testing.T) {
	b, s := newTestMIDI(t)
	var _ SampleLoader = b

	b.LoadSamples(map[string]uint8{"cowbell": 56})
	if err := b.TriggerSample("kick"); err == nil {
		t.Error("replaced table should drop kick")
	}
	if err := b.TriggerSample("cowbell"); err != nil {
		t.Fatal(err)
	}
	var ch, key, vel uint8
	msgs := s.messages()
	if len(msgs) != 1 || !msgs[0].GetNoteOn(&ch, &key, &vel) || key != 56 {
		t.Errorf("sample = %v", msgs)
	}
}

func TestMIDIBackend_Close(t *testing.T) {
	b, s := newTestMIDI(t)
	b.SetVoiceFrequency(2, 440)
	b.SetVoiceAmplitude(2, 0.5, 0)
	s.reset()

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	var ch, key uint8
	msgs := s.messages()
	if len(msgs) != 1 || !msgs[0].GetNoteOff(&ch, &key) || ch != 2 {
		t.Errorf("close = %v", msgs)
	}
	if err := b.SetVoiceFrequency(2, 440); !errors.Is(err, ErrNotStarted) {
		t.Error("closed backend should refuse commands")
	}
}
