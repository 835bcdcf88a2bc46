package gesture

import "strconv"

// Quadrant is a screen region split at the frame midlines, numbered as the
// user sees the mirrored display:
//
//	1 | 2
//	--+--
//	3 | 4
//
// QuadrantNone is the zero value and never names a region.
type Quadrant int

const (
	QuadrantNone Quadrant = iota
	QuadrantTopLeft
	QuadrantTopRight
	QuadrantBottomLeft
	QuadrantBottomRight
)

func (q Quadrant) String() string {
	if q < QuadrantTopLeft || q > QuadrantBottomRight {
		return "none"
	}
	return strconv.Itoa(int(q))
}

// Valid reports whether q names a region.
func (q Quadrant) Valid() bool {
	return q >= QuadrantTopLeft && q <= QuadrantBottomRight
}

// QuadrantOf locates a hand's index tip. Points left of the vertical midline
// (display x < width/2) are left, everything else right; points with
// y < height/2 are top, everything else bottom. The exact centre is
// therefore QuadrantBottomRight.
func (f Frame) QuadrantOf(role Role) (Quadrant, bool) {
	tip, ok := f.indexTip(role)
	if !ok || f.Viewport.Width <= 0 || f.Viewport.Height <= 0 {
		return QuadrantNone, false
	}

	w := float64(f.Viewport.Width)
	h := float64(f.Viewport.Height)
	displayX := w - tip.X

	right := !(displayX < w/2)
	bottom := !(tip.Y < h/2)

	switch {
	case !right && !bottom:
		return QuadrantTopLeft, true
	case right && !bottom:
		return QuadrantTopRight, true
	case !right && bottom:
		return QuadrantBottomLeft, true
	default:
		return QuadrantBottomRight, true
	}
}
