package gate

import (
	"github.com/ayusman/kyccapture/internal/analyzer"
	"github.com/ayusman/kyccapture/internal/quality"
)

type faceStage struct {
	thresholds analyzer.FaceThresholds
	minQuality float64
}

func newFaceStage(opts Options) *faceStage {
	return &faceStage{thresholds: opts.Face, minQuality: opts.MinFaceQuality}
}

func (s *faceStage) Name() string  { return "face" }
func (s *faceStage) Required() int { return RequiredFace }

func (s *faceStage) Evaluate(obs *Observation) Verdict {
	switch n := len(obs.Faces); {
	case n == 0:
		return reject("no face")
	case n > 1:
		return reject("%d faces in frame", n)
	}

	f := obs.Faces[0]
	if !f.Complete() {
		return reject("incomplete face mesh (%d points)", len(f.Points))
	}

	mesh := f
	if !obs.Orientation.Sideways() {
		mesh = analyzer.QuarterTurn(f)
	}
	r := analyzer.AnalyzeFace(mesh, s.thresholds)
	switch {
	case !r.EyesOpen:
		return reject("eyes closed (EAR %.3f)", r.EAR)
	case !r.NotSmiling:
		return reject("mouth open (MAR %.3f)", r.MAR)
	case !r.Straight:
		return reject("head turned (yaw %.1f pitch %.1f roll %.1f)", r.Pose.Yaw, r.Pose.Pitch, r.Pose.Roll)
	}

	box := analyzer.FaceBounds(f)
	v := Verdict{Admissible: true, Face: &box}

	if obs.Frame != nil && !obs.Frame.Empty() {
		if q, ok := quality.FaceQuality(*obs.Frame, box); ok {
			v.FaceQuality = q
		}
	}
	if s.minQuality > 0 && v.FaceQuality < s.minQuality {
		return reject("face quality %.1f below %.1f", v.FaceQuality, s.minQuality)
	}

	return v
}
