package gesture

import (
	"github.com/ayusman/handsynth/internal/detector"
)

// Reference pinch threshold, in pixels at a 640 px wide capture.
const (
	DefaultPinchThreshold = 30.0
	ReferenceWidth        = 640.0
)

// palmPairs are the tip/base pairs checked by IsPalmOpen.
var palmPairs = [5][2]detector.Joint{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
	{detector.ThumbTip, detector.ThumbCMC},
}

// countedPairs are the fingers counted by CountFingersUp. Thumb and pinky
// are excluded.
var countedPairs = [3][2]detector.Joint{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
}

// Offset is a displacement in pixels.
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// IsPalmOpen reports whether every fingertip is at or above its base joint.
// A pair with a missing joint counts as satisfied. Absent hand: false.
func (f Frame) IsPalmOpen(role Role) bool {
	h, ok := f.Hand(role)
	if !ok {
		return false
	}
	for _, pair := range palmPairs {
		tip, okTip := h.Point(pair[0])
		base, okBase := h.Point(pair[1])
		if !okTip || !okBase {
			continue
		}
		if tip.Y > base.Y {
			return false
		}
	}
	return true
}

// CountFingersUp counts raised index, middle and ring fingers (0-3).
// Absent hand: 0.
func (f Frame) CountFingersUp(role Role) int {
	h, ok := f.Hand(role)
	if !ok {
		return 0
	}
	n := 0
	for _, pair := range countedPairs {
		if above(h, pair[0], pair[1]) {
			n++
		}
	}
	return n
}

// IsIndexRaised reports whether the index tip is above both the thumb tip
// and the middle finger base while the palm is not open.
func (f Frame) IsIndexRaised(role Role) bool {
	h, ok := f.Hand(role)
	if !ok {
		return false
	}
	return above(h, detector.IndexTip, detector.ThumbTip) &&
		above(h, detector.IndexTip, detector.MiddleMCP) &&
		!f.IsPalmOpen(role)
}

// IsTwoRaised reports whether index and middle fingers are raised while the
// palm is not open.
func (f Frame) IsTwoRaised(role Role) bool {
	h, ok := f.Hand(role)
	if !ok {
		return false
	}
	return above(h, detector.IndexTip, detector.IndexMCP) &&
		above(h, detector.MiddleTip, detector.MiddleMCP) &&
		!f.IsPalmOpen(role)
}

// IsPinched reports whether thumb tip and index tip are closer than
// threshold pixels.
func (f Frame) IsPinched(role Role, threshold float64) bool {
	h, ok := f.Hand(role)
	if !ok {
		return false
	}
	thumb, okThumb := h.Point(detector.ThumbTip)
	index, okIndex := h.Point(detector.IndexTip)
	if !okThumb || !okIndex {
		return false
	}
	return detector.Distance(thumb, index) < threshold
}

// IndexTipOffset returns the visual-right index tip minus the visual-left
// index tip. The second result is false when either is missing; callers
// must then leave their outputs unchanged rather than treat it as zero.
func (f Frame) IndexTipOffset() (Offset, bool) {
	left, ok := f.indexTip(VisualLeft)
	if !ok {
		return Offset{}, false
	}
	right, ok := f.indexTip(VisualRight)
	if !ok {
		return Offset{}, false
	}
	return Offset{DX: right.X - left.X, DY: right.Y - left.Y}, true
}

func (f Frame) indexTip(role Role) (detector.Point, bool) {
	h, ok := f.Hand(role)
	if !ok {
		return detector.Point{}, false
	}
	return h.Point(detector.IndexTip)
}

// ScaleThreshold scales a pixel threshold calibrated at referenceWidth to a
// capture of the given width.
func ScaleThreshold(px, referenceWidth float64, width int) float64 {
	if referenceWidth <= 0 || width <= 0 {
		return px
	}
	return px * float64(width) / referenceWidth
}

// above reports whether joint a is strictly higher on screen than joint b.
// Missing joints: false.
func above(h detector.Hand, a, b detector.Joint) bool {
	pa, okA := h.Point(a)
	pb, okB := h.Point(b)
	return okA && okB && pa.Y < pb.Y
}
