// Package analyzer classifies hand and face pose from normalized landmark sets.
package analyzer

import (
	"math"

	"github.com/ayusman/kyccapture/internal/detector"
)

// Hand check thresholds.
const (
	// MaxPalmDepth bounds z[PinkyMCP] - z[ThumbCMC]; a larger value means the
	// back of the hand faces the camera.
	MaxPalmDepth = 0.08
	// MaxTipDepth bounds |mean fingertip z - wrist z|.
	MaxTipDepth = 0.1
)

// fingers lists tip, upper joint and base joint for thumb to pinky.
var fingers = [5][3]int{
	{detector.ThumbTip, detector.ThumbIP, detector.ThumbCMC},
	{detector.IndexTip, detector.IndexDIP, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleDIP, detector.MiddleMCP},
	{detector.RingTip, detector.RingDIP, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyDIP, detector.PinkyMCP},
}

var fingertips = [5]int{detector.ThumbTip, detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}

// Viewport is the preview area landmarks are projected into.
// A zero Viewport means the unit square.
type Viewport struct {
	Width  float64
	Height float64
}

// Contains reports whether p, scaled to the viewport, lies inside it.
// The right and bottom edges are exclusive.
func (v Viewport) Contains(p detector.Point3D) bool {
	w, h := v.Width, v.Height
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	x, y := p.X*w, p.Y*h
	return x >= 0 && x < w && y >= 0 && y < h
}

// HandResult is the outcome of HandCheck. Checks run in declaration order
// and the first failure is reported.
type HandResult int

const (
	HandOK HandResult = iota
	HandIncomplete
	HandNoSide
	HandNotFacing
	HandFingerClosed
	HandTilted
	HandOutOfFrame
)

func (r HandResult) String() string {
	switch r {
	case HandOK:
		return "ok"
	case HandIncomplete:
		return "wrong landmark count"
	case HandNoSide:
		return "no handedness"
	case HandNotFacing:
		return "back of hand toward camera"
	case HandFingerClosed:
		return "finger not extended"
	case HandTilted:
		return "hand tilted in depth"
	case HandOutOfFrame:
		return "hand outside preview"
	default:
		return "unknown"
	}
}

// HandCheck runs the palm-open-and-facing checks on h and returns the first
// failure, or HandOK.
func HandCheck(h detector.HandLandmarks, vp Viewport) HandResult {
	if !h.Complete() {
		return HandIncomplete
	}

	p := h.Points

	var ordered bool
	switch h.Handedness {
	case detector.HandLeft:
		ordered = p[20].X > p[16].X && p[16].X > p[12].X && p[12].X > p[8].X && p[8].X > p[4].X
	case detector.HandRight:
		ordered = p[20].X < p[16].X && p[16].X < p[12].X && p[12].X < p[8].X && p[8].X < p[4].X
	default:
		return HandNoSide
	}
	if !ordered || p[detector.PinkyMCP].Z-p[detector.ThumbCMC].Z >= MaxPalmDepth {
		return HandNotFacing
	}

	for _, f := range fingers {
		tip, upper, base := p[f[0]], p[f[1]], p[f[2]]
		if !(tip.Y < upper.Y && upper.Y < base.Y) {
			return HandFingerClosed
		}
	}

	var sumZ float64
	for _, i := range fingertips {
		sumZ += p[i].Z
	}
	if math.Abs(sumZ/float64(len(fingertips))-p[detector.Wrist].Z) >= MaxTipDepth {
		return HandTilted
	}

	for _, i := range fingertips {
		if !vp.Contains(p[i]) {
			return HandOutOfFrame
		}
	}
	if !vp.Contains(p[detector.Wrist]) {
		return HandOutOfFrame
	}

	return HandOK
}

// IsPalmOpenAndFacingCamera reports whether h is an open palm shown to the
// camera, fully inside vp.
func IsPalmOpenAndFacingCamera(h detector.HandLandmarks, vp Viewport) bool {
	return HandCheck(h, vp) == HandOK
}

// IsThumbExtended reports whether the thumb is roughly straight: the angle
// between MCP->IP and IP->TIP is under 30 or over 150 degrees.
func IsThumbExtended(h detector.HandLandmarks) bool {
	if !h.Complete() {
		return false
	}
	tip, ip, mcp := h.Points[detector.ThumbTip], h.Points[detector.ThumbIP], h.Points[detector.ThumbMCP]

	v1x, v1y := ip.X-mcp.X, ip.Y-mcp.Y
	v2x, v2y := tip.X-ip.X, tip.Y-ip.Y

	dot := v1x*v2x + v1y*v2y
	mag := math.Hypot(v1x, v1y)*math.Hypot(v2x, v2y) + 1e-6
	angle := math.Acos(math.Max(-1, math.Min(1, dot/mag))) * 180 / math.Pi

	return angle < 30 || angle > 150
}
