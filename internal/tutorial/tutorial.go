// Package tutorial walks a new player through the basic hand shapes. Each
// step completes once its condition has held for a number of frames.
package tutorial

import (
	"github.com/ayusman/handsynth/internal/gesture"
)

// Condition reports whether a frame satisfies a step.
type Condition func(f gesture.Frame) bool

// Step is one tutorial instruction.
type Step struct {
	Title string
	Hint  string
	Done  Condition
	// Hold is the number of consecutive frames Done must hold. Zero means 1.
	Hold int
}

// Progress is a snapshot for display.
type Progress struct {
	Step      int    `json:"step"`
	Total     int    `json:"total"`
	Title     string `json:"title,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Held      int    `json:"held"`
	Hold      int    `json:"hold"`
	Completed bool   `json:"completed"`
}

// Tutorial tracks progress through a fixed list of steps.
type Tutorial struct {
	steps []Step
	index int
	held  int
}

// New creates a tutorial over steps.
func New(steps []Step) *Tutorial {
	return &Tutorial{steps: steps}
}

// Update feeds one frame. It returns true on the frame that completes the
// final step.
func (t *Tutorial) Update(f gesture.Frame) bool {
	if t.index >= len(t.steps) {
		return false
	}
	s := t.steps[t.index]
	if s.Done == nil || !s.Done(f) {
		t.held = 0
		return false
	}
	t.held++
	if t.held < hold(s) {
		return false
	}
	t.index++
	t.held = 0
	return t.index == len(t.steps)
}

// Completed reports whether every step is done.
func (t *Tutorial) Completed() bool {
	return t.index >= len(t.steps)
}

// Skip marks the tutorial completed.
func (t *Tutorial) Skip() {
	t.index = len(t.steps)
	t.held = 0
}

// Reset starts over.
func (t *Tutorial) Reset() {
	t.index = 0
	t.held = 0
}

// Progress returns the current position.
func (t *Tutorial) Progress() Progress {
	p := Progress{Step: t.index, Total: len(t.steps), Completed: t.Completed()}
	if !p.Completed {
		s := t.steps[t.index]
		p.Title, p.Hint = s.Title, s.Hint
		p.Held, p.Hold = t.held, hold(s)
	}
	return p
}

func hold(s Step) int {
	if s.Hold <= 0 {
		return 1
	}
	return s.Hold
}

// DefaultSteps introduces the shapes used by the built-in policies.
// pinchThreshold is in capture pixels.
func DefaultSteps(holdFrames int, pinchThreshold float64) []Step {
	return []Step{
		{
			Title: "Show your left hand",
			Hint:  "Raise your left hand so it appears on the left of the screen.",
			Done: func(f gesture.Frame) bool {
				_, ok := f.Hand(gesture.VisualLeft)
				return ok
			},
			Hold: holdFrames,
		},
		{
			Title: "Open your palm",
			Hint:  "Spread every finger upward.",
			Done:  func(f gesture.Frame) bool { return f.IsPalmOpen(gesture.VisualLeft) },
			Hold:  holdFrames,
		},
		{
			Title: "Make a fist",
			Hint:  "Curl all fingers of your left hand.",
			Done: func(f gesture.Frame) bool {
				_, ok := f.Hand(gesture.VisualLeft)
				return ok && !f.IsPalmOpen(gesture.VisualLeft) && f.CountFingersUp(gesture.VisualLeft) == 0
			},
			Hold: holdFrames,
		},
		{
			Title: "Pinch with your right hand",
			Hint:  "Touch your right thumb and index finger together.",
			Done:  func(f gesture.Frame) bool { return f.IsPinched(gesture.VisualRight, pinchThreshold) },
			Hold:  holdFrames,
		},
	}
}
