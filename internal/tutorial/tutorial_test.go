package tutorial

import (
	"testing"

	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/gesture"
)

var vp = gesture.Viewport{Width: 640, Height: 480}

func frame(hands ...detector.Hand) gesture.Frame {
	return gesture.NewFrame(hands, vp)
}

func left(pose detector.Pose) detector.Hand {
	return detector.PoseHand(detector.HandRight, 480, 400, pose)
}

func TestTutorial_DefaultSteps(t *testing.T) {
	tut := New(DefaultSteps(2, gesture.DefaultPinchThreshold))

	seq := []struct {
		name  string
		frame gesture.Frame
		step  int
	}{
		{name: "nothing", frame: frame(), step: 0},
		{name: "left hand once", frame: frame(left(detector.PoseFist)), step: 0},
		{name: "left hand twice", frame: frame(left(detector.PoseFist)), step: 1},
		{name: "open once", frame: frame(left(detector.PoseOpenPalm)), step: 1},
		{name: "interrupted", frame: frame(left(detector.PoseFist)), step: 1},
		{name: "open again", frame: frame(left(detector.PoseOpenPalm)), step: 1},
		{name: "open held", frame: frame(left(detector.PoseOpenPalm)), step: 2},
		{name: "fist", frame: frame(left(detector.PoseFist)), step: 2},
		{name: "fist held", frame: frame(left(detector.PoseFist)), step: 3},
		{name: "pinch", frame: frame(detector.PinchHand(detector.HandLeft, 160, 300)), step: 3},
	}
	for _, s := range seq {
		if tut.Update(s.frame) {
			t.Fatalf("%s: completed too early", s.name)
		}
		if got := tut.Progress().Step; got != s.step {
			t.Fatalf("%s: step = %d, want %d", s.name, got, s.step)
		}
	}

	if !tut.Update(frame(detector.PinchHand(detector.HandLeft, 160, 300))) {
		t.Fatal("final step should report completion")
	}
	p := tut.Progress()
	if !p.Completed || p.Step != 4 || p.Total != 4 || p.Title != "" {
		t.Errorf("progress = %+v", p)
	}
	if tut.Update(frame(detector.PinchHand(detector.HandLeft, 160, 300))) {
		t.Error("completed tutorial must not report again")
	}
}

func TestTutorial_Progress(t *testing.T) {
	tut := New([]Step{{Title: "a", Hint: "do a", Done: func(gesture.Frame) bool { return true }, Hold: 3}})
	tut.Update(frame())
	p := tut.Progress()
	if p.Title != "a" || p.Held != 1 || p.Hold != 3 || p.Completed {
		t.Errorf("progress = %+v", p)
	}
}

func TestTutorial_SkipAndReset(t *testing.T) {
	tut := New(DefaultSteps(1, 30))
	tut.Skip()
	if !tut.Completed() {
		t.Fatal("Skip should complete")
	}
	tut.Reset()
	if tut.Completed() || tut.Progress().Step != 0 {
		t.Error("Reset should start over")
	}
}

func TestTutorial_Empty(t *testing.T) {
	tut := New(nil)
	if !tut.Completed() || tut.Update(frame()) {
		t.Error("empty tutorial is complete and silent")
	}
}
