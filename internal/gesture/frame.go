// Package gesture classifies hand shapes and hand-to-hand geometry in a
// single detection frame.
//
// Detector handedness describes the unmirrored camera image while the user
// watches a mirrored display, so a hand reported as "Right" is the user's
// visually-left hand. NewFrame applies that inversion once; every predicate
// in this package works in terms of visual roles.
package gesture

import (
	"github.com/ayusman/handsynth/internal/detector"
)

// Role is the side a hand appears on in the mirrored display.
type Role int

const (
	VisualLeft Role = iota
	VisualRight
	numRoles
)

func (r Role) String() string {
	switch r {
	case VisualLeft:
		return "visual-left"
	case VisualRight:
		return "visual-right"
	default:
		return "unknown"
	}
}

// RoleOf converts detector handedness into a visual role.
func RoleOf(h detector.Handedness) (Role, bool) {
	switch h {
	case detector.HandRight:
		return VisualLeft, true
	case detector.HandLeft:
		return VisualRight, true
	default:
		return 0, false
	}
}

// Viewport is the size of the captured video frame in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Frame is one detection cycle's hands, indexed by visual role.
// The zero value is a frame with no hands.
type Frame struct {
	Viewport Viewport

	hands [numRoles]detector.Hand
	has   [numRoles]bool
	all   []detector.Hand
}

// NewFrame normalizes detector output into a Frame. The first hand for each
// role wins; extra hands are kept for rendering only.
func NewFrame(hands []detector.Hand, vp Viewport) Frame {
	f := Frame{Viewport: vp}
	if len(hands) > 0 {
		f.all = make([]detector.Hand, len(hands))
		copy(f.all, hands)
	}
	for _, h := range hands {
		role, ok := RoleOf(h.Handedness)
		if !ok || f.has[role] {
			continue
		}
		f.hands[role] = h
		f.has[role] = true
	}
	return f
}

// Hand returns the hand occupying a role.
func (f Frame) Hand(role Role) (detector.Hand, bool) {
	if role < 0 || role >= numRoles || !f.has[role] {
		return detector.Hand{}, false
	}
	return f.hands[role], true
}

// Hands returns every detected hand, including ones without a usable role.
func (f Frame) Hands() []detector.Hand {
	return f.all
}

// Empty reports whether no hand holds a role.
func (f Frame) Empty() bool {
	return !f.has[VisualLeft] && !f.has[VisualRight]
}
