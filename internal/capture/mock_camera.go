package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera produces solid frames of a fixed size. With Moving set, every
// other frame is bright so activity checks see change.
type MockCamera struct {
	mu      sync.Mutex
	size    image.Point
	fps     int
	running bool
	reads   int

	// Moving varies brightness between frames.
	Moving bool
	// Err, when set, is returned from ReadFrame.
	Err error
}

// NewMockCamera creates a camera producing width x height frames.
func NewMockCamera(width, height int) *MockCamera {
	return &MockCamera{size: image.Pt(width, height), fps: DefaultFPS}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.Err != nil {
		return nil, c.Err
	}
	c.reads++

	shade := 32.0
	if c.Moving && c.reads%2 == 0 {
		shade = 224
	}
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(shade, shade, shade, 0), c.size.Y, c.size.X, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	c.fps = fps
	c.mu.Unlock()
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *MockCamera) Resolution() image.Point {
	return c.size
}

// Reads returns how many frames were produced.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
