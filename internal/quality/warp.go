package quality

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/detector"
)

// CornerPadding is how far, in pixels, each quad corner is pushed outward
// before rectifying so the document edge is not clipped.
const CornerPadding = 20

// ErrDegenerateQuad is returned when a quad cannot be rectified.
var ErrDegenerateQuad = errors.New("quad has no area")

// PerspectiveCorrect rectifies the region of frame outlined by q (normalized
// coordinates) into an upright image. Each corner is expanded by pad pixels
// and clamped to the frame. The caller closes the result.
func PerspectiveCorrect(frame gocv.Mat, q detector.Quad, pad float64) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrDegenerateQuad
	}
	w, h := float64(frame.Cols()), float64(frame.Rows())

	px := func(p detector.Point3D, dx, dy float64) gocv.Point2f {
		x := math.Max(0, math.Min(w-1, p.X*w+dx))
		y := math.Max(0, math.Min(h-1, p.Y*h+dy))
		return gocv.Point2f{X: float32(x), Y: float32(y)}
	}
	tl := px(q.TopLeft, -pad, -pad)
	tr := px(q.TopRight, pad, -pad)
	br := px(q.BottomRight, pad, pad)
	bl := px(q.BottomLeft, -pad, pad)

	outW := int(math.Max(dist(tl, tr), dist(bl, br)))
	outH := int(math.Max(dist(tl, bl), dist(tr, br)))
	if outW < 2 || outH < 2 {
		return gocv.NewMat(), ErrDegenerateQuad
	}

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{tl, tr, br, bl})
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(outW - 1), Y: 0},
		{X: float32(outW - 1), Y: float32(outH - 1)},
		{X: 0, Y: float32(outH - 1)},
	})
	defer dst.Close()

	m := gocv.GetPerspectiveTransform2f(src, dst)
	defer m.Close()

	out := gocv.NewMat()
	gocv.WarpPerspective(frame, &out, m, image.Pt(outW, outH))
	return out, nil
}

func dist(a, b gocv.Point2f) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
