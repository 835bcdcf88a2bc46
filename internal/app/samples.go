package app

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/store"
)

// SampleBank keeps the engine's quadrant layout and the backend's note
// table in step with the stored samples.
type SampleBank struct {
	repo    *store.SampleRepository
	engine  *engine.Engine
	backend audio.Backend
}

// NewSampleBank creates a bank. backend may be nil when only the layout
// matters.
func NewSampleBank(repo *store.SampleRepository, eng *engine.Engine, backend audio.Backend) *SampleBank {
	return &SampleBank{repo: repo, engine: eng, backend: backend}
}

// Seed inserts defaults when the bank is empty and returns how many were
// added. Ids are generated for entries without one.
func (b *SampleBank) Seed(defaults []store.Sample) (int, error) {
	existing, err := b.repo.List()
	if err != nil {
		return 0, fmt.Errorf("list samples: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range defaults {
		s := defaults[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if err := b.repo.Create(&s); err != nil {
			return i, fmt.Errorf("seed sample %q: %w", s.Name, err)
		}
	}
	return len(defaults), nil
}

// Reload pushes the stored layout and notes to the engine and backend.
func (b *SampleBank) Reload() error {
	layout, err := b.repo.Layout()
	if err != nil {
		return fmt.Errorf("load layout: %w", err)
	}
	quadrants := make(map[gesture.Quadrant]string, len(layout))
	for q, id := range layout {
		quadrants[gesture.Quadrant(q)] = id
	}
	if b.engine != nil {
		b.engine.SetSamples(quadrants)
	}

	if loader, ok := b.backend.(audio.SampleLoader); ok {
		notes, err := b.repo.Notes()
		if err != nil {
			return fmt.Errorf("load notes: %w", err)
		}
		loader.LoadSamples(notes)
	}
	return nil
}
