package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	blurSize      = 21
	diffThreshold = 25
)

// Activity tracks whether anything is moving in front of the camera. It
// stays active for Hold after the last frame with motion, letting the
// detection loop slow down while the scene is still.
type Activity struct {
	mu sync.Mutex

	threshold float64
	hold      time.Duration

	prev     gocv.Mat
	hasPrev  bool
	active   bool
	lastSeen time.Time
	change   float64
}

// NewActivity creates a tracker. threshold is the percentage of pixels that
// must change between frames to count as motion.
func NewActivity(threshold float64, hold time.Duration) *Activity {
	if threshold <= 0 {
		threshold = 1
	}
	return &Activity{threshold: threshold, hold: hold, prev: gocv.NewMat()}
}

// Observe compares frame with the previous one and returns the activity
// state after it, plus whether that state just changed.
func (a *Activity) Observe(frame *gocv.Mat, now time.Time) (active, changed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	moving := a.diff(frame)
	was := a.active
	if moving {
		a.lastSeen = now
		a.active = true
	} else if a.active && now.Sub(a.lastSeen) > a.hold {
		a.active = false
	}
	return a.active, a.active != was
}

// diff must be called with a.mu held.
func (a *Activity) diff(frame *gocv.Mat) bool {
	if frame == nil || frame.Empty() {
		return false
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)

	if !a.hasPrev || a.prev.Rows() != blurred.Rows() || a.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&a.prev)
		a.hasPrev = true
		a.change = 0
		return false
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(blurred, a.prev, &delta)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(delta, &mask, diffThreshold, 255, gocv.ThresholdBinary)

	a.change = float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
	blurred.CopyTo(&a.prev)
	return a.change > a.threshold
}

// Change is the percentage of pixels that changed on the last frame.
func (a *Activity) Change() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.change
}

// Active reports the current state without observing a frame.
func (a *Activity) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Close releases the stored frame.
func (a *Activity) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prev.Close()
	a.prev = gocv.NewMat()
	a.hasPrev = false
	a.active = false
}
