package quality

import (
	"math"

	"github.com/ayusman/kyccapture/internal/detector"
)

// Document outline limits.
const (
	MaxSkewDegrees = 15.0

	MinAspectGeneral = 0.5
	MaxAspectGeneral = 3.5
	MinAspectScanner = 0.3
	MaxAspectScanner = 1.0

	MinConfidenceStream  = 0.8
	MinConfidenceScanner = 0.7
)

// Edges are the four edge directions of a quad in degrees, each
// measured with atan2(dy, dx) in image coordinates (y down).
type Edges struct {
	Top    float64 // TL -> TR, about 0 when level
	Bottom float64 // BL -> BR, about 0 when level
	Left   float64 // TL -> BL, about 90 when upright
	Right  float64 // TR -> BR, about 90 when upright
}

// EdgeAngles returns the edge angles of q.
func EdgeAngles(q detector.Quad) Edges {
	return Edges{
		Top:    edgeAngle(q.TopLeft, q.TopRight),
		Bottom: edgeAngle(q.BottomLeft, q.BottomRight),
		Left:   edgeAngle(q.TopLeft, q.BottomLeft),
		Right:  edgeAngle(q.TopRight, q.BottomRight),
	}
}

func edgeAngle(from, to detector.Point3D) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
}

// IsSkewed reports whether any edge deviates from its axis by strictly
// more than maxDeg. A deviation of exactly maxDeg is not skewed.
func IsSkewed(q detector.Quad, maxDeg float64) bool {
	a := EdgeAngles(q)
	return math.Abs(a.Top) > maxDeg ||
		math.Abs(a.Bottom) > maxDeg ||
		math.Abs(a.Left-90) > maxDeg ||
		math.Abs(a.Right-90) > maxDeg
}

// AspectRatio is bounding-box width over height, or 0 for a flat box.
func AspectRatio(q detector.Quad) float64 {
	box := q.BoundingBox()
	if box.Height <= 0 {
		return 0
	}
	return box.Width / box.Height
}

// AspectRatioValid reports whether the bounding box ratio is inside [min, max].
func AspectRatioValid(q detector.Quad, min, max float64) bool {
	r := AspectRatio(q)
	return r > 0 && r >= min && r <= max
}

// ConfidenceValid reports whether the detection confidence reaches min.
func ConfidenceValid(q detector.Quad, min float64) bool {
	return q.Confidence >= min
}

// InsidePreview reports whether every corner lies within the unit frame.
func InsidePreview(q detector.Quad) bool {
	for _, c := range q.Corners() {
		if c.X < 0 || c.X > 1 || c.Y < 0 || c.Y > 1 {
			return false
		}
	}
	return true
}

// Centered reports whether the bounding-box center is in the middle band
// of the frame: x in (0.4, 0.6) and y in (0.3, 0.7).
func Centered(q detector.Quad) bool {
	box := q.BoundingBox()
	mx, my := box.MidX(), box.MidY()
	return mx > 0.4 && mx < 0.6 && my > 0.3 && my < 0.7
}
