package quality

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/detector"
)

// Face crop parameters.
const (
	// FaceCropPadding widens a landmark face box for the saved selfie.
	FaceCropPadding = 0.7
	// QualityPadding widens the box scored by FaceQuality.
	QualityPadding = 0.15
	// CropAspect is the width/height ratio of every face crop.
	CropAspect = 4.0 / 3.0
)

// Rec.709 luma weights.
const (
	lumaR709 = 0.2126
	lumaG709 = 0.7152
	lumaB709 = 0.0722
)

// FaceCropRect returns the pixel rectangle for a saved face crop. The box
// grows by padding times its width: a little more to the right than the
// left, and a full pad above and below. The result is clamped to the image
// and trimmed to CropAspect around its center.
func FaceCropRect(box detector.Rect, imgW, imgH int, padding float64) image.Rectangle {
	pad := box.Width * padding
	r := detector.Rect{
		X:      box.X - pad/1.5,
		Y:      box.Y - pad,
		Width:  box.Width + pad*1.3,
		Height: box.Height + pad*2,
	}
	return toAspect(toPixels(r, imgW, imgH), CropAspect)
}

// QualityRect returns the pixel rectangle scored by FaceQuality: the box
// inset outward by padding on every side, clamped and trimmed to CropAspect.
func QualityRect(box detector.Rect, imgW, imgH int, padding float64) image.Rectangle {
	dx, dy := box.Width*padding, box.Height*padding
	r := detector.Rect{
		X:      box.X - dx,
		Y:      box.Y - dy,
		Width:  box.Width + 2*dx,
		Height: box.Height + 2*dy,
	}
	return toAspect(toPixels(r, imgW, imgH), CropAspect)
}

func toPixels(r detector.Rect, imgW, imgH int) image.Rectangle {
	w, h := float64(imgW), float64(imgH)
	x0 := max(r.X*w, 0)
	y0 := max(r.Y*h, 0)
	cw := min(r.Width*w, w-x0)
	ch := min(r.Height*h, h-y0)
	if cw <= 0 || ch <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(int(x0), int(y0), int(x0+cw), int(y0+ch))
}

// toAspect shrinks r around its center until width/height equals aspect.
func toAspect(r image.Rectangle, aspect float64) image.Rectangle {
	w, h := float64(r.Dx()), float64(r.Dy())
	if w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	if w/h > aspect {
		nw := h * aspect
		x := float64(r.Min.X) + (w-nw)/2
		return image.Rect(int(x), r.Min.Y, int(x+nw), r.Max.Y)
	}
	nh := w / aspect
	y := float64(r.Min.Y) + (h-nh)/2
	return image.Rect(r.Min.X, int(y), r.Max.X, int(y+nh))
}

// CropFace copies the FaceCropRect region of frame. ok is false when the
// rectangle is empty. The caller closes the result.
func CropFace(frame gocv.Mat, box detector.Rect) (gocv.Mat, bool) {
	if frame.Empty() {
		return gocv.NewMat(), false
	}
	rect := FaceCropRect(box, frame.Cols(), frame.Rows(), FaceCropPadding)
	if rect.Empty() {
		return gocv.NewMat(), false
	}
	region := frame.Region(rect)
	defer region.Close()
	return region.Clone(), true
}

// FaceQuality scores the face region of frame: the crop is sharpened with
// an unsharp mask and its mean Rec.709 luminance returned on a 0-255 scale.
// ok is false when the region is empty.
func FaceQuality(frame gocv.Mat, box detector.Rect) (float64, bool) {
	if frame.Empty() {
		return 0, false
	}
	rect := QualityRect(box, frame.Cols(), frame.Rows(), QualityPadding)
	if rect.Empty() {
		return 0, false
	}

	region := frame.Region(rect)
	defer region.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(region, &blurred, image.Pt(0, 0), 2.5, 2.5, gocv.BorderDefault)

	sharp := gocv.NewMat()
	defer sharp.Close()
	gocv.AddWeighted(region, 1.5, blurred, -0.5, 0, &sharp)

	mean := sharp.Mean()
	if sharp.Channels() == 1 {
		return mean.Val1, true
	}
	// BGR order
	return lumaB709*mean.Val1 + lumaG709*mean.Val2 + lumaR709*mean.Val3, true
}
