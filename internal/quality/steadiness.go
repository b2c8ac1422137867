package quality

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Frame differencing constants.
const (
	blurSize      = 21
	diffThreshold = 25
)

// Steadiness tracks how much of the frame changes between consecutive
// observations. A document held still scores near zero; a moving hand or
// camera shake scores high.
type Steadiness struct {
	mu        sync.Mutex
	maxMotion float64 // percent of changed pixels
	prevGray  gocv.Mat
	primed    bool
}

// NewSteadiness returns a tracker that reports frames steady when at most
// maxMotion percent of pixels changed since the previous frame.
func NewSteadiness(maxMotion float64) *Steadiness {
	return &Steadiness{
		maxMotion: maxMotion,
		prevGray:  gocv.NewMat(),
	}
}

// Observe compares frame with the previous one and returns whether the
// scene is steady along with the changed-pixel percentage. The first frame
// after construction or Reset has no baseline and counts as steady.
func (s *Steadiness) Observe(frame gocv.Mat) (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.Empty() {
		return true, 0
	}

	gray := toGray(frame)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)

	if !s.primed || s.prevGray.Rows() != blurred.Rows() || s.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&s.prevGray)
		s.primed = true
		return true, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, s.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&s.prevGray)

	return changed <= s.maxMotion, changed
}

// Reset drops the baseline frame.
func (s *Steadiness) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevGray.Close()
	s.prevGray = gocv.NewMat()
	s.primed = false
}

// Close releases the baseline frame. Observe after Close starts over.
func (s *Steadiness) Close() {
	s.Reset()
}
