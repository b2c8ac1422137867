// Package quality scores camera frames and document outlines for capture
// readiness. Raster metrics use GoCV; quad geometry is pure Go.
//
// Metrics that fail to produce output never block capture: sharpness
// passes, glare and shadow report false.
package quality

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Default thresholds.
const (
	SharpnessGeneral  = 0.1
	SharpnessPassport = 0.018
	SharpnessIDCard   = 0.011

	MaxBrightness = 0.9
	MaxShadow     = 0.15

	// shadowScale is the downscale factor applied before measuring shadow.
	shadowScale = 0.1
)

// Rec.601 luma weights, applied to 0-255 BGR channel values.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// toGray converts frame to a single-channel 8-bit image. The caller closes
// the result.
func toGray(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// Sharpness returns the mean gradient magnitude of frame scaled to [0,1].
// ok is false when the frame is empty or the edge transform produced no output.
func Sharpness(frame gocv.Mat) (value float64, ok bool) {
	if frame.Empty() {
		return 0, false
	}

	gray := toGray(frame)
	defer gray.Close()

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)
	if mag.Empty() {
		return 0, false
	}

	mean := mag.Mean().Val1 / 255.0
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, false
	}
	return clamp01(mean), true
}

// IsSharpEnough reports whether frame's sharpness exceeds threshold.
// A failed measurement passes.
func IsSharpEnough(frame gocv.Mat, threshold float64) bool {
	v, ok := Sharpness(frame)
	if !ok {
		return true
	}
	return v > threshold
}

// Brightness takes the maximum of each channel over the whole frame and
// returns the luma of that synthetic pixel in [0,1].
func Brightness(frame gocv.Mat) (value float64, ok bool) {
	if frame.Empty() {
		return 0, false
	}

	if frame.Channels() == 1 {
		_, maxVal, _, _ := gocv.MinMaxLoc(frame)
		return clamp01(float64(maxVal) / 255.0), true
	}

	channels := gocv.Split(frame)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	if len(channels) < 3 {
		return 0, false
	}

	var peak [3]float64
	for i := 0; i < 3; i++ {
		_, maxVal, _, _ := gocv.MinMaxLoc(channels[i])
		peak[i] = float64(maxVal)
	}

	// BGR order
	luma := lumaB*peak[0] + lumaG*peak[1] + lumaR*peak[2]
	return clamp01(luma / 255.0), true
}

// IsTooBright reports glare: brightness above threshold. A failed
// measurement reports false.
func IsTooBright(frame gocv.Mat, threshold float64) bool {
	v, ok := Brightness(frame)
	return ok && v > threshold
}

// ShadowStdDev returns the population standard deviation of grayscale
// intensity in [0,1], measured on a 10x downscaled copy.
func ShadowStdDev(frame gocv.Mat) (value float64, ok bool) {
	if frame.Empty() {
		return 0, false
	}

	gray := toGray(frame)
	defer gray.Close()

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Point{}, shadowScale, shadowScale, gocv.InterpolationArea)
	if small.Empty() {
		return 0, false
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(small, &mean, &stddev)
	if stddev.Empty() {
		return 0, false
	}

	return clamp01(stddev.GetDoubleAt(0, 0) / 255.0), true
}

// HasTooMuchShadow reports uneven lighting: stddev above threshold. A
// failed measurement reports false.
func HasTooMuchShadow(frame gocv.Mat, threshold float64) bool {
	v, ok := ShadowStdDev(frame)
	return ok && v > threshold
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
