package quality

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/detector"
)

func uniformFrame(v float64) gocv.Mat {
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(v, v, v, 0))
	return m
}

func TestSharpness_UniformGrayFailsAllThresholds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := uniformFrame(128)
	defer frame.Close()

	v, ok := Sharpness(frame)
	if !ok {
		t.Fatal("Sharpness() ok = false for a valid frame")
	}
	if v != 0 {
		t.Errorf("Sharpness() = %f, want 0 for a uniform frame", v)
	}

	for _, th := range []float64{SharpnessGeneral, SharpnessPassport, SharpnessIDCard} {
		if IsSharpEnough(frame, th) {
			t.Errorf("IsSharpEnough(uniform, %v) = true, want false", th)
		}
	}
}

func TestSharpness_EdgesScoreHigher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	// vertical stripes every 8 px
	for x := 0; x < 640; x += 16 {
		region := frame.Region(image.Rect(x, 0, x+8, 480))
		region.SetTo(gocv.NewScalar(255, 255, 255, 0))
		region.Close()
	}

	v, ok := Sharpness(frame)
	if !ok {
		t.Fatal("Sharpness() ok = false")
	}
	if v <= SharpnessGeneral {
		t.Errorf("Sharpness(stripes) = %f, want > %f", v, SharpnessGeneral)
	}
}

func TestMetrics_EmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	if _, ok := Sharpness(frame); ok {
		t.Error("Sharpness(empty) ok = true")
	}
	if !IsSharpEnough(frame, SharpnessGeneral) {
		t.Error("IsSharpEnough(empty) should pass")
	}
	if IsTooBright(frame, MaxBrightness) {
		t.Error("IsTooBright(empty) should be false")
	}
	if HasTooMuchShadow(frame, MaxShadow) {
		t.Error("HasTooMuchShadow(empty) should be false")
	}
}

func TestBrightness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name      string
		value     float64
		want      float64
		tooBright bool
	}{
		{name: "black", value: 0, want: 0, tooBright: false},
		{name: "mid gray", value: 128, want: 128.0 / 255.0, tooBright: false},
		{name: "white", value: 255, want: 1, tooBright: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := uniformFrame(tt.value)
			defer frame.Close()

			got, ok := Brightness(frame)
			if !ok {
				t.Fatal("Brightness() ok = false")
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Brightness() = %f, want %f", got, tt.want)
			}
			if IsTooBright(frame, MaxBrightness) != tt.tooBright {
				t.Errorf("IsTooBright() = %v, want %v", !tt.tooBright, tt.tooBright)
			}
		})
	}
}

func TestShadow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	t.Run("uniform", func(t *testing.T) {
		frame := uniformFrame(200)
		defer frame.Close()

		v, ok := ShadowStdDev(frame)
		if !ok {
			t.Fatal("ShadowStdDev() ok = false")
		}
		if v > 0.01 {
			t.Errorf("ShadowStdDev(uniform) = %f, want ~0", v)
		}
		if HasTooMuchShadow(frame, MaxShadow) {
			t.Error("uniform frame should not report shadow")
		}
	})

	t.Run("half dark", func(t *testing.T) {
		frame := uniformFrame(255)
		defer frame.Close()
		dark := frame.Region(image.Rect(0, 0, 320, 480))
		dark.SetTo(gocv.NewScalar(0, 0, 0, 0))
		dark.Close()

		v, ok := ShadowStdDev(frame)
		if !ok {
			t.Fatal("ShadowStdDev() ok = false")
		}
		if math.Abs(v-0.5) > 0.02 {
			t.Errorf("ShadowStdDev(half dark) = %f, want ~0.5", v)
		}
		if !HasTooMuchShadow(frame, MaxShadow) {
			t.Error("half dark frame should report shadow")
		}
	})
}

// tiltedTop returns an upright quad whose top edge is rotated by deg.
func tiltedTop(deg float64) detector.Quad {
	rad := deg * math.Pi / 180
	tl := detector.Point3D{X: 0.2, Y: 0.3}
	tr := detector.Point3D{X: 0.2 + 0.5*math.Cos(rad), Y: 0.3 + 0.5*math.Sin(rad)}
	return detector.Quad{
		TopLeft:     tl,
		TopRight:    tr,
		BottomLeft:  detector.Point3D{X: 0.2, Y: 0.8},
		BottomRight: detector.Point3D{X: tr.X, Y: 0.8},
		Confidence:  0.9,
	}
}

func TestEdgeAngles_Upright(t *testing.T) {
	a := EdgeAngles(detector.DocumentQuad())
	if a.Top != 0 || a.Bottom != 0 {
		t.Errorf("horizontal edges = %v, %v, want 0", a.Top, a.Bottom)
	}
	if a.Left != 90 || a.Right != 90 {
		t.Errorf("vertical edges = %v, %v, want 90", a.Left, a.Right)
	}
}

func TestIsSkewed(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want bool
	}{
		{name: "level", deg: 0, want: false},
		{name: "14 degrees", deg: 14, want: false},
		{name: "minus 14 degrees", deg: -14, want: false},
		{name: "16 degrees", deg: 16, want: true},
		{name: "minus 16 degrees", deg: -16, want: true},
		{name: "30 degrees", deg: 30, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSkewed(tiltedTop(tt.deg), MaxSkewDegrees); got != tt.want {
				t.Errorf("IsSkewed(%v deg) = %v, want %v", tt.deg, got, tt.want)
			}
		})
	}
}

func TestIsSkewed_ExactLimitPasses(t *testing.T) {
	for _, deg := range []float64{15, -15} {
		q := tiltedTop(deg)
		top := EdgeAngles(q).Top
		if math.Abs(math.Abs(top)-15) > 1e-9 {
			t.Fatalf("top angle = %v, want %v", top, deg)
		}
		// the limit is the measured angle itself
		if IsSkewed(q, math.Abs(top)) {
			t.Errorf("IsSkewed at exactly %v degrees = true, want false", deg)
		}
		if !IsSkewed(q, math.Abs(top)-1e-6) {
			t.Errorf("IsSkewed just past %v degrees = false, want true", deg)
		}
	}
}

func TestAspectRatioValid(t *testing.T) {
	quad := func(w, h float64) detector.Quad {
		return detector.Quad{
			TopLeft:     detector.Point3D{X: 0.1, Y: 0.1},
			TopRight:    detector.Point3D{X: 0.1 + w, Y: 0.1},
			BottomLeft:  detector.Point3D{X: 0.1, Y: 0.1 + h},
			BottomRight: detector.Point3D{X: 0.1 + w, Y: 0.1 + h},
		}
	}

	tests := []struct {
		name     string
		q        detector.Quad
		min, max float64
		want     bool
	}{
		{name: "card landscape", q: quad(0.6, 0.4), min: MinAspectGeneral, max: MaxAspectGeneral, want: true},
		{name: "lower bound inclusive", q: quad(0.25, 0.5), min: MinAspectGeneral, max: MaxAspectGeneral, want: true},
		{name: "too tall", q: quad(0.1, 0.5), min: MinAspectGeneral, max: MaxAspectGeneral, want: false},
		{name: "too wide", q: quad(0.8, 0.2), min: MinAspectGeneral, max: MaxAspectGeneral, want: false},
		{name: "scanner portrait", q: quad(0.3, 0.5), min: MinAspectScanner, max: MaxAspectScanner, want: true},
		{name: "scanner square inclusive", q: quad(0.5, 0.5), min: MinAspectScanner, max: MaxAspectScanner, want: true},
		{name: "scanner landscape", q: quad(0.6, 0.4), min: MinAspectScanner, max: MaxAspectScanner, want: false},
		{name: "zero height", q: quad(0.5, 0), min: MinAspectGeneral, max: MaxAspectGeneral, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AspectRatioValid(tt.q, tt.min, tt.max); got != tt.want {
				t.Errorf("AspectRatioValid() = %v, want %v (ratio %v)", got, tt.want, AspectRatio(tt.q))
			}
		})
	}
}

func TestConfidenceValid(t *testing.T) {
	tests := []struct {
		conf float64
		min  float64
		want bool
	}{
		{0.79, MinConfidenceStream, false},
		{0.8, MinConfidenceStream, true},
		{0.95, MinConfidenceStream, true},
		{0.69, MinConfidenceScanner, false},
		{0.7, MinConfidenceScanner, true},
	}
	for _, tt := range tests {
		if got := ConfidenceValid(detector.Quad{Confidence: tt.conf}, tt.min); got != tt.want {
			t.Errorf("ConfidenceValid(%v, %v) = %v, want %v", tt.conf, tt.min, got, tt.want)
		}
	}
}

func TestInsidePreviewAndCentered(t *testing.T) {
	q := detector.DocumentQuad()
	if !InsidePreview(q) {
		t.Error("DocumentQuad should be inside the preview")
	}
	if !Centered(q) {
		t.Error("DocumentQuad should be centered")
	}

	off := q
	off.TopLeft.X = -0.01
	if InsidePreview(off) {
		t.Error("corner left of the frame should not be inside")
	}

	shifted := detector.Quad{
		TopLeft:     detector.Point3D{X: 0.0, Y: 0.3},
		TopRight:    detector.Point3D{X: 0.4, Y: 0.3},
		BottomLeft:  detector.Point3D{X: 0.0, Y: 0.7},
		BottomRight: detector.Point3D{X: 0.4, Y: 0.7},
	}
	if Centered(shifted) {
		t.Error("quad centered at x=0.2 should not be centered")
	}
}

func TestFaceCropRect(t *testing.T) {
	box := detector.Rect{X: 0.4, Y: 0.4, Width: 0.2, Height: 0.2}
	r := FaceCropRect(box, 1000, 1000, FaceCropPadding)

	if r.Empty() {
		t.Fatal("FaceCropRect() is empty")
	}
	if !r.In(image.Rect(0, 0, 1000, 1000)) {
		t.Errorf("FaceCropRect() = %v, outside the image", r)
	}
	if got := float64(r.Dx()) / float64(r.Dy()); math.Abs(got-CropAspect) > 0.01 {
		t.Errorf("aspect = %v, want %v", got, CropAspect)
	}
	if r.Dx() != 382 {
		t.Errorf("width = %d, want 382", r.Dx())
	}
	center := image.Pt(500, 500)
	if !center.In(r) {
		t.Errorf("FaceCropRect() = %v does not contain the face center", r)
	}
}

func TestFaceCropRect_ClampsToImage(t *testing.T) {
	box := detector.Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5}
	r := FaceCropRect(box, 640, 480, FaceCropPadding)
	if r.Empty() {
		t.Fatal("FaceCropRect() is empty")
	}
	if !r.In(image.Rect(0, 0, 640, 480)) {
		t.Errorf("FaceCropRect() = %v, outside the image", r)
	}
}

func TestQualityRect(t *testing.T) {
	box := detector.Rect{X: 0.4, Y: 0.3, Width: 0.2, Height: 0.3}
	r := QualityRect(box, 1000, 1000, QualityPadding)
	if r.Empty() {
		t.Fatal("QualityRect() is empty")
	}
	if got := float64(r.Dx()) / float64(r.Dy()); math.Abs(got-CropAspect) > 0.01 {
		t.Errorf("aspect = %v, want %v", got, CropAspect)
	}
}

func TestFaceQuality_UniformFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := uniformFrame(100)
	defer frame.Close()

	q, ok := FaceQuality(frame, detector.Rect{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4})
	if !ok {
		t.Fatal("FaceQuality() ok = false")
	}
	if math.Abs(q-100) > 1 {
		t.Errorf("FaceQuality() = %f, want ~100", q)
	}
}

func TestCropFace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := uniformFrame(50)
	defer frame.Close()

	crop, ok := CropFace(frame, analyzerBox())
	defer crop.Close()
	if !ok {
		t.Fatal("CropFace() ok = false")
	}
	if crop.Empty() {
		t.Fatal("CropFace() returned an empty Mat")
	}
	if got := float64(crop.Cols()) / float64(crop.Rows()); math.Abs(got-CropAspect) > 0.02 {
		t.Errorf("crop aspect = %v, want %v", got, CropAspect)
	}
}

func analyzerBox() detector.Rect {
	return detector.Rect{X: 0.35, Y: 0.4, Width: 0.35, Height: 0.2}
}

func TestPerspectiveCorrect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := uniformFrame(90)
	defer frame.Close()

	out, err := PerspectiveCorrect(frame, detector.DocumentQuad(), CornerPadding)
	if err != nil {
		t.Fatalf("PerspectiveCorrect() error = %v", err)
	}
	defer out.Close()

	// 0.6*640 + 40 by 0.4*480 + 40
	if out.Cols() != 424 || out.Rows() != 232 {
		t.Errorf("output size = %dx%d, want 424x232", out.Cols(), out.Rows())
	}
}

func TestPerspectiveCorrect_Degenerate(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := PerspectiveCorrect(empty, detector.DocumentQuad(), CornerPadding); err == nil {
		t.Error("expected error for empty frame")
	}

	if testing.Short() {
		return
	}
	frame := uniformFrame(90)
	defer frame.Close()
	p := detector.Point3D{X: 0.5, Y: 0.5}
	flat := detector.Quad{TopLeft: p, TopRight: p, BottomLeft: p, BottomRight: p}
	out, err := PerspectiveCorrect(frame, flat, 0)
	defer out.Close()
	if err == nil {
		t.Error("expected error for a quad with no area")
	}
}

func TestSteadiness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := NewSteadiness(1.0)
	defer s.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := uniformFrame(255)
	defer white.Close()

	if steady, changed := s.Observe(black); !steady || changed != 0 {
		t.Errorf("first frame = (%v, %f), want (true, 0)", steady, changed)
	}
	if steady, changed := s.Observe(black); !steady {
		t.Errorf("identical frame should be steady, changed = %f", changed)
	}
	steady, changed := s.Observe(white)
	if steady {
		t.Error("black to white should not be steady")
	}
	if changed < 50 {
		t.Errorf("changed = %f, want > 50 for black to white", changed)
	}

	s.Reset()
	if steady, _ := s.Observe(black); !steady {
		t.Error("first frame after Reset should be steady")
	}
}

func TestSteadiness_CloseMultiple(t *testing.T) {
	s := NewSteadiness(1.0)
	s.Close()
	s.Close()
}
