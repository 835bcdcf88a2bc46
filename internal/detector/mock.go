package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []Hand
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Pose describes which fingers are extended, thumb first.
type Pose [5]bool

// Preset poses.
var (
	PoseOpenPalm    = Pose{true, true, true, true, true}
	PoseFist        = Pose{false, false, false, false, false}
	PoseIndexRaised = Pose{false, true, false, false, false}
	PoseTwoRaised   = Pose{false, true, true, false, false}
	PoseThreeRaised = Pose{false, true, true, true, false}
)

// finger chains, thumb first: base, middle joints, tip.
var fingerChains = [5][4]Joint{
	{ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
	{IndexMCP, IndexPIP, IndexDIP, IndexTip},
	{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
	{RingMCP, RingPIP, RingDIP, RingTip},
	{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
}

// fingerOffsetX spreads the fingers horizontally around the wrist.
var fingerOffsetX = [5]float64{40, 20, 0, -20, -40}

// PoseHand returns a synthetic upright hand with its wrist at (x, y) in
// pixel coordinates. Finger bases sit 60 px above the wrist (the thumb base
// 20 px); extended fingertips end 80 px above their base, curled ones 20 px
// below it.
func PoseHand(handedness Handedness, x, y float64, pose Pose) Hand {
	h := Hand{Handedness: handedness, Score: 0.95}
	h.Set(Wrist, Point{X: x, Y: y})

	for f, chain := range fingerChains {
		baseY := y - 60
		if f == 0 {
			baseY = y - 20
		}
		bx := x + fingerOffsetX[f]
		h.Set(chain[0], Point{X: bx, Y: baseY})

		if pose[f] {
			h.Set(chain[1], Point{X: bx, Y: baseY - 30})
			h.Set(chain[2], Point{X: bx, Y: baseY - 55})
			h.Set(chain[3], Point{X: bx, Y: baseY - 80})
		} else {
			h.Set(chain[1], Point{X: bx, Y: baseY - 15})
			h.Set(chain[2], Point{X: bx - 5, Y: baseY + 5})
			h.Set(chain[3], Point{X: bx - 5, Y: baseY + 20})
		}
	}
	return h
}

// PinchHand returns a fist whose thumb tip and index tip touch, 5 px apart.
func PinchHand(handedness Handedness, x, y float64) Hand {
	h := PoseHand(handedness, x, y, PoseFist)
	tip := Point{X: x + 30, Y: y - 70}
	h.Set(ThumbTip, tip)
	h.Set(IndexTip, Point{X: tip.X + 3, Y: tip.Y + 4})
	return h
}
