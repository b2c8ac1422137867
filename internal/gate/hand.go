package gate

import (
	"github.com/ayusman/kyccapture/internal/analyzer"
)

type handStage struct {
	// requireThumb also rejects palms whose thumb is folded across.
	requireThumb bool
}

func (s *handStage) Name() string  { return "hand" }
func (s *handStage) Required() int { return RequiredHand }

func (s *handStage) Evaluate(obs *Observation) Verdict {
	if len(obs.Hands) == 0 {
		return reject("no hand")
	}
	h := obs.Hands[0]
	if res := analyzer.HandCheck(h, obs.Viewport); res != analyzer.HandOK {
		return reject("%s", res)
	}
	if s.requireThumb && !analyzer.IsThumbExtended(h) {
		return reject("thumb folded")
	}
	return Verdict{Admissible: true, HandSide: h.Handedness}
}

// faceHandStage is the second half of face-then-hand: the same person must
// stay in frame while showing their palm.
type faceHandStage struct {
	hand handStage
}

func (s *faceHandStage) Name() string  { return "face-hand" }
func (s *faceHandStage) Required() int { return RequiredHand }

func (s *faceHandStage) Evaluate(obs *Observation) Verdict {
	switch n := len(obs.Faces); {
	case n == 0:
		return reject("face left the frame")
	case n > 1:
		return reject("%d faces in frame", n)
	}
	return s.hand.Evaluate(obs)
}
