package server

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/gesture"
)

var (
	colorVisualLeft  = color.RGBA{R: 80, G: 220, B: 120}
	colorVisualRight = color.RGBA{R: 255, G: 160, B: 40}
	colorUnknown     = color.RGBA{R: 160, G: 160, B: 160}
	colorGrid        = color.RGBA{R: 255, G: 255, B: 255}
	colorActive      = color.RGBA{R: 255, G: 60, B: 60}
)

const dotRadius = 4

// Mirror flips frame horizontally into dst, matching what the user sees.
func Mirror(frame gocv.Mat, dst *gocv.Mat) {
	gocv.Flip(frame, dst, 1)
}

// DrawOverlay draws quadrant lines, keypoint dots and the current mode on a
// mirrored frame. Keypoints are in raw camera coordinates and are mirrored
// here.
func DrawOverlay(img *gocv.Mat, s engine.State) {
	w, h := img.Cols(), img.Rows()
	if w == 0 || h == 0 {
		return
	}

	gocv.Line(img, image.Pt(w/2, 0), image.Pt(w/2, h), colorGrid, 1)
	gocv.Line(img, image.Pt(0, h/2), image.Pt(w, h/2), colorGrid, 1)

	if s.Pinched && s.Quadrant.Valid() {
		gocv.Rectangle(img, quadrantRect(s.Quadrant, w, h), colorActive, 3)
	}

	for i := range s.Hands {
		hand := &s.Hands[i]
		c := handColor(hand.Handedness)
		for j := detector.Joint(0); j < detector.NumJoints; j++ {
			p, ok := hand.Point(j)
			if !ok {
				continue
			}
			pt := image.Pt(w-int(p.X), int(p.Y))
			gocv.Circle(img, pt, dotRadius, c, -1)
		}
	}

	label := s.Selection.Mode.String()
	if s.Selection.Instrument != "" {
		label += " / " + s.Selection.Instrument
	}
	if !s.AudioStarted {
		label += " (click to start audio)"
	}
	gocv.PutText(img, label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, colorGrid, 2)
}

func handColor(h detector.Handedness) color.RGBA {
	role, ok := gesture.RoleOf(h)
	if !ok {
		return colorUnknown
	}
	if role == gesture.VisualLeft {
		return colorVisualLeft
	}
	return colorVisualRight
}

// quadrantRect returns the display rectangle of q.
func quadrantRect(q gesture.Quadrant, w, h int) image.Rectangle {
	x0, y0 := 0, 0
	if q == gesture.QuadrantTopRight || q == gesture.QuadrantBottomRight {
		x0 = w / 2
	}
	if q == gesture.QuadrantBottomLeft || q == gesture.QuadrantBottomRight {
		y0 = h / 2
	}
	return image.Rect(x0, y0, x0+w/2, y0+h/2)
}
