package capture

import (
	"testing"
	"time"
)

func TestActivity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(160, 120)
	cam.Open()
	defer cam.Close()

	a := NewActivity(1, 100*time.Millisecond)
	defer a.Close()

	now := time.Now()
	observe := func() (bool, bool) {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		return a.Observe(f, now)
	}

	if active, _ := observe(); active {
		t.Fatal("first frame is the baseline")
	}
	if active, _ := observe(); active {
		t.Fatal("still scene should be inactive")
	}

	cam.Moving = true
	observe()
	active, changed := observe()
	if !active || !changed {
		t.Fatalf("moving scene: active=%v changed=%v change=%.1f%%", active, changed, a.Change())
	}

	cam.Moving = false
	now = now.Add(50 * time.Millisecond)
	observe() // still differs from the last bright frame
	now = now.Add(50 * time.Millisecond)
	if active, _ := observe(); !active {
		t.Error("should stay active within the hold time")
	}
	now = now.Add(200 * time.Millisecond)
	active, changed = observe()
	if active || !changed {
		t.Errorf("after hold: active=%v changed=%v", active, changed)
	}
}

func TestActivity_NilFrame(t *testing.T) {
	a := NewActivity(0, time.Second)
	defer a.Close()
	if active, changed := a.Observe(nil, time.Now()); active || changed {
		t.Error("nil frame should be ignored")
	}
	a.Close()
	a.Close()
}
