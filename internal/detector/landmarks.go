// Package detector provides landmark and document-quad detection types and
// the collaborators that produce them for each camera frame.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist            = 0
	ThumbCMC         = 1
	ThumbMCP         = 2
	ThumbIP          = 3
	ThumbTip         = 4
	IndexMCP         = 5
	IndexPIP         = 6
	IndexDIP         = 7
	IndexTip         = 8
	MiddleMCP        = 9
	MiddlePIP        = 10
	MiddleDIP        = 11
	MiddleTip        = 12
	RingMCP          = 13
	RingPIP          = 14
	RingDIP          = 15
	RingTip          = 16
	PinkyMCP         = 17
	PinkyPIP         = 18
	PinkyDIP         = 19
	PinkyTip         = 20
	NumHandLandmarks = 21
)

// Face mesh indices used by the pose and aspect-ratio checks.
const (
	FaceNoseTip       = 1
	FaceLeftEyeOuter  = 33
	FaceRightEyeOuter = 263
	FaceChin          = 152
	// MinFaceLandmarks is the size of the MediaPipe face mesh without irises.
	MinFaceLandmarks = 468
)

// LeftEyeRing and RightEyeRing are the six points of each eye contour used
// for the eye aspect ratio: outer corner, two upper lid, two lower lid, inner corner.
var (
	LeftEyeRing  = [6]int{33, 159, 158, 153, 145, 133}
	RightEyeRing = [6]int{362, 386, 385, 380, 374, 263}
)

// Handedness labels reported by the hand landmarker.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// Point3D is a landmark in normalized image space. X and Y are in [0,1]
// with the origin at the top-left corner; Z is relative depth.
type Point3D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`

	// Visibility and Presence are optional per-point confidences.
	Visibility *float64 `json:"visibility,omitempty" msgpack:"v,omitempty"`
	Presence   *float64 `json:"presence,omitempty" msgpack:"p,omitempty"`
}

// Distance2D returns the Euclidean distance between a and b in the image plane.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point3D) Point3D {
	return Point3D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}

// HandLandmarks is one detected hand. A well-formed set has exactly
// NumHandLandmarks points; anything else is rejected by the gate.
type HandLandmarks struct {
	Points     []Point3D `json:"points" msgpack:"points"`
	Handedness string    `json:"handedness" msgpack:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score" msgpack:"score"`
}

// Complete reports whether the set has the expected number of points.
func (h *HandLandmarks) Complete() bool {
	return h != nil && len(h.Points) == NumHandLandmarks
}

// InferSide guesses handedness from geometry when the landmarker did not
// label the hand: a thumb tip left of the pinky tip is a left hand shown
// palm-first. Ties fall back to which half of the frame the wrist is in.
// Returns "" for incomplete sets.
func (h *HandLandmarks) InferSide() string {
	if !h.Complete() {
		return ""
	}
	thumb, pinky := h.Points[ThumbTip].X, h.Points[PinkyTip].X
	switch {
	case thumb < pinky:
		return HandLeft
	case thumb > pinky:
		return HandRight
	case h.Points[Wrist].X < 0.5:
		return HandLeft
	default:
		return HandRight
	}
}

// FaceLandmarks is one detected face mesh.
type FaceLandmarks struct {
	Points []Point3D `json:"points" msgpack:"points"`
	Score  float64   `json:"score" msgpack:"score"`
}

// Complete reports whether the mesh has at least MinFaceLandmarks points.
func (f *FaceLandmarks) Complete() bool {
	return f != nil && len(f.Points) >= MinFaceLandmarks
}

// Quad is a detected document outline in normalized image coordinates
// (origin top-left, y grows downward).
type Quad struct {
	TopLeft     Point3D `json:"top_left" msgpack:"tl"`
	TopRight    Point3D `json:"top_right" msgpack:"tr"`
	BottomLeft  Point3D `json:"bottom_left" msgpack:"bl"`
	BottomRight Point3D `json:"bottom_right" msgpack:"br"`
	Confidence  float64 `json:"confidence" msgpack:"c"`
}

// Rect is an axis-aligned box in normalized coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MidX returns the horizontal center of the box.
func (r Rect) MidX() float64 { return r.X + r.Width/2 }

// MidY returns the vertical center of the box.
func (r Rect) MidY() float64 { return r.Y + r.Height/2 }

// BoundingBox returns the smallest box containing all four corners.
func (q Quad) BoundingBox() Rect {
	xs := []float64{q.TopLeft.X, q.TopRight.X, q.BottomLeft.X, q.BottomRight.X}
	ys := []float64{q.TopLeft.Y, q.TopRight.Y, q.BottomLeft.Y, q.BottomRight.Y}
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < 4; i++ {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Corners returns the corners in TL, TR, BR, BL order.
func (q Quad) Corners() [4]Point3D {
	return [4]Point3D{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Detections is everything the detection collaborator found in one frame.
type Detections struct {
	Quads []Quad          `json:"quads" msgpack:"quads"`
	Hands []HandLandmarks `json:"hands" msgpack:"hands"`
	Faces []FaceLandmarks `json:"faces" msgpack:"faces"`
}
