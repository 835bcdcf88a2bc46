// Package detector finds hands in camera frames and reports their keypoints
// in pixel coordinates of the frame they came from.
package detector

import "gocv.io/x/gocv"

// Detector turns a frame into hands. An empty result is not an error.
type Detector interface {
	Detect(frame *gocv.Mat) ([]Hand, error)
	Close() error
}

// Config limits what a detector reports.
type Config struct {
	// MaxHands caps the result; 0 means no cap.
	MaxHands int
	// MinConfidence drops hands scored below it.
	MinConfidence float64
}

func DefaultConfig() Config {
	return Config{MaxHands: 2, MinConfidence: 0.5}
}

// Keep reports whether a hand with score may join a result that already
// holds n hands.
func (c Config) Keep(score float64, n int) bool {
	if score < c.MinConfidence {
		return false
	}
	return c.MaxHands <= 0 || n < c.MaxHands
}
