package detector

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Joint identifies one of the 21 hand landmarks, following MediaPipe order.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
type Joint int

const (
	Wrist Joint = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip
	NumJoints = 21
)

var jointNames = [NumJoints]string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_finger_mcp", "index_finger_pip", "index_finger_dip", "index_finger_tip",
	"middle_finger_mcp", "middle_finger_pip", "middle_finger_dip", "middle_finger_tip",
	"ring_finger_mcp", "ring_finger_pip", "ring_finger_dip", "ring_finger_tip",
	"pinky_finger_mcp", "pinky_finger_pip", "pinky_finger_dip", "pinky_finger_tip",
}

// jointAliases covers names emitted by older handpose builds.
var jointAliases = map[string]Joint{
	"pinky_mcp": PinkyMCP,
	"pinky_pip": PinkyPIP,
	"pinky_dip": PinkyDIP,
	"pinky_tip": PinkyTip,
}

var jointsByName = func() map[string]Joint {
	m := make(map[string]Joint, NumJoints+len(jointAliases))
	for i, name := range jointNames {
		m[name] = Joint(i)
	}
	for name, j := range jointAliases {
		m[name] = j
	}
	return m
}()

// String returns the canonical detector name of the joint.
func (j Joint) String() string {
	if j < 0 || int(j) >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJoint resolves a detector keypoint name to a Joint.
func ParseJoint(name string) (Joint, bool) {
	j, ok := jointsByName[strings.ToLower(strings.TrimSpace(name))]
	return j, ok
}

// Handedness is the hand label reported by the detector. It reflects the
// unmirrored camera view.
type Handedness int

const (
	HandUnknown Handedness = iota
	HandLeft
	HandRight
)

// ParseHandedness parses "Left" or "Right" (case-insensitive).
func ParseHandedness(s string) Handedness {
	switch strings.ToLower(s) {
	case "left":
		return HandLeft
	case "right":
		return HandRight
	default:
		return HandUnknown
	}
}

func (h Handedness) String() string {
	switch h {
	case HandLeft:
		return "Left"
	case HandRight:
		return "Right"
	default:
		return "Unknown"
	}
}

// Point is a 2D position in video-frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Keypoint is a named landmark as delivered by a detector.
type Keypoint struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Hand is one detected hand. Joints the detector did not report are marked
// missing and must be checked with Point.
type Hand struct {
	Handedness Handedness
	Score      float64
	Points     [NumJoints]Point
	present    uint32
}

// NewHand builds a Hand from named keypoints. Unknown names are ignored.
func NewHand(handedness Handedness, score float64, keypoints []Keypoint) Hand {
	h := Hand{Handedness: handedness, Score: score}
	for _, kp := range keypoints {
		if j, ok := ParseJoint(kp.Name); ok {
			h.Set(j, Point{X: kp.X, Y: kp.Y})
		}
	}
	return h
}

// Set records the position of a joint and marks it present.
func (h *Hand) Set(j Joint, p Point) {
	if j < 0 || int(j) >= NumJoints {
		return
	}
	h.Points[j] = p
	h.present |= 1 << uint(j)
}

// Clear marks a joint as missing.
func (h *Hand) Clear(j Joint) {
	if j < 0 || int(j) >= NumJoints {
		return
	}
	h.Points[j] = Point{}
	h.present &^= 1 << uint(j)
}

// Point returns the position of a joint and whether it was detected.
func (h *Hand) Point(j Joint) (Point, bool) {
	if j < 0 || int(j) >= NumJoints || h.present&(1<<uint(j)) == 0 {
		return Point{}, false
	}
	return h.Points[j], true
}

// Keypoints returns the detected joints as named keypoints in joint order.
func (h *Hand) Keypoints() []Keypoint {
	kps := make([]Keypoint, 0, NumJoints)
	for j := Joint(0); j < NumJoints; j++ {
		if p, ok := h.Point(j); ok {
			kps = append(kps, Keypoint{Name: j.String(), X: p.X, Y: p.Y})
		}
	}
	return kps
}

type jsonHand struct {
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
	Keypoints  []Keypoint `json:"keypoints"`
}

// MarshalJSON encodes the hand with named keypoints for renderers.
func (h Hand) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonHand{
		Handedness: h.Handedness.String(),
		Score:      h.Score,
		Keypoints:  h.Keypoints(),
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (h *Hand) UnmarshalJSON(data []byte) error {
	var jh jsonHand
	if err := json.Unmarshal(data, &jh); err != nil {
		return err
	}
	*h = NewHand(ParseHandedness(jh.Handedness), jh.Score, jh.Keypoints)
	return nil
}
