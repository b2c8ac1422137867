package analyzer

import (
	"math"

	"github.com/ayusman/kyccapture/internal/detector"
)

// earScale divides the classic eye aspect ratio so that open eyes land
// around 0.25 on MediaPipe meshes.
const earScale = 3.0

// FaceThresholds are the limits IsValidFace applies.
type FaceThresholds struct {
	MinEAR   float64 // eyes open when EAR > MinEAR
	MaxMAR   float64 // not smiling when MAR < MaxMAR
	MaxYaw   float64 // degrees, after the 90 degree offset
	MaxPitch float64 // degrees
	MaxRoll  float64 // degrees, after the 90 degree offset
}

// DefaultFaceThresholds returns the thresholds used for selfie capture.
func DefaultFaceThresholds() FaceThresholds {
	return FaceThresholds{
		MinEAR:   0.2,
		MaxMAR:   1.20,
		MaxYaw:   10,
		MaxPitch: 30,
		MaxRoll:  10,
	}
}

// Pose is head orientation in degrees as computed from the mesh.
type Pose struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// FaceReport holds every measurement behind a face decision.
type FaceReport struct {
	EAR  float64
	MAR  float64
	Pose Pose

	EyesOpen   bool
	NotSmiling bool
	Straight   bool
}

// Valid reports whether every face condition held.
func (r FaceReport) Valid() bool {
	return r.EyesOpen && r.NotSmiling && r.Straight
}

// EyeAspectRatio averages the scaled EAR of both eyes. Returns 0 for an
// incomplete mesh.
func EyeAspectRatio(f detector.FaceLandmarks) float64 {
	if !f.Complete() {
		return 0
	}
	left := eyeRatio(f.Points, detector.LeftEyeRing)
	right := eyeRatio(f.Points, detector.RightEyeRing)
	return (left + right) / 2
}

func eyeRatio(p []detector.Point3D, eye [6]int) float64 {
	v1 := detector.Distance2D(p[eye[1]], p[eye[5]])
	v2 := detector.Distance2D(p[eye[2]], p[eye[4]])
	h := detector.Distance2D(p[eye[0]], p[eye[3]])
	if h == 0 {
		return 0
	}
	return (v1 + v2) / (2 * h * earScale)
}

// MouthAspectRatio computes the lip-opening ratio over the first eleven
// mesh points. Returns 0 with fewer points or a zero-width mouth.
func MouthAspectRatio(f detector.FaceLandmarks) float64 {
	if len(f.Points) < 11 {
		return 0
	}
	m := f.Points[:11]

	a := detector.Distance2D(m[3], m[9])
	b := detector.Distance2D(m[2], m[10])
	c := detector.Distance2D(m[4], m[8])
	d := detector.Distance2D(m[0], m[6])
	if d == 0 {
		return 0
	}
	return (a + b + c) / (3 * d)
}

// FacePose computes raw yaw, pitch and roll. The mesh is read in sideways
// sensor layout: eyes stacked along y, chin along x. A level head reads
// about 90 degrees for both yaw and roll. Meshes from upright frames go
// through QuarterTurn first.
func FacePose(f detector.FaceLandmarks) Pose {
	if !f.Complete() {
		return Pose{}
	}
	p := f.Points
	nose := p[detector.FaceNoseTip]
	left := p[detector.FaceLeftEyeOuter]
	right := p[detector.FaceRightEyeOuter]
	chin := p[detector.FaceChin]

	eyeMid := detector.Midpoint(left, right)

	yaw := math.Atan2(nose.X-eyeMid.X, left.X-right.X)
	roll := math.Atan2(right.Y-left.Y, right.X-left.X)

	// A collapsed eye-to-chin span reads as fully pitched.
	pitch := math.Pi / 2
	if span := detector.Distance2D(eyeMid, chin); span > 0 {
		ratio := (detector.Distance2D(nose, chin) - detector.Distance2D(nose, eyeMid)) / span
		pitch = math.Atan(ratio)
	}

	return Pose{Yaw: degrees(yaw), Pitch: degrees(pitch), Roll: degrees(roll)}
}

// QuarterTurn rotates a mesh from an upright frame a quarter turn about the
// image center into the sideways layout FacePose reads. Depth and score are
// kept.
func QuarterTurn(f detector.FaceLandmarks) detector.FaceLandmarks {
	out := detector.FaceLandmarks{Points: make([]detector.Point3D, len(f.Points)), Score: f.Score}
	for i, p := range f.Points {
		out.Points[i] = detector.Point3D{X: p.Y, Y: 1 - p.X, Z: p.Z}
	}
	return out
}

// AnalyzeFace measures f and applies th.
func AnalyzeFace(f detector.FaceLandmarks, th FaceThresholds) FaceReport {
	r := FaceReport{
		EAR:  EyeAspectRatio(f),
		MAR:  MouthAspectRatio(f),
		Pose: FacePose(f),
	}
	if !f.Complete() {
		return r
	}

	// Both angles read about 90 for a level head; limits apply to the offset.
	yaw := math.Abs(r.Pose.Yaw) - 90
	roll := math.Abs(r.Pose.Roll) - 90

	r.EyesOpen = r.EAR > th.MinEAR
	r.NotSmiling = r.MAR < th.MaxMAR
	r.Straight = math.Abs(yaw) <= th.MaxYaw &&
		math.Abs(r.Pose.Pitch) <= th.MaxPitch &&
		math.Abs(roll) <= th.MaxRoll
	return r
}

// IsValidFace reports whether f shows open eyes, a closed mouth and a
// level head under the default thresholds.
func IsValidFace(f detector.FaceLandmarks) bool {
	return AnalyzeFace(f, DefaultFaceThresholds()).Valid()
}

// FaceBounds returns the normalized box around every mesh point.
func FaceBounds(f detector.FaceLandmarks) detector.Rect {
	if len(f.Points) == 0 {
		return detector.Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range f.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return detector.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
