package detector

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// Pigo cascade parameters for portrait photos on identity documents.
const (
	portraitMinSize     = 20
	portraitShiftFactor = 0.1
	portraitScaleFactor = 1.1
	portraitIoU         = 0.2
	// DefaultPortraitQuality is the minimum pigo detection score.
	DefaultPortraitQuality = 5.0
)

// FaceBox is a face found by the cascade, in pixel coordinates of the
// searched image.
type FaceBox struct {
	Row     int
	Col     int
	Size    int
	Quality float64
}

// PortraitFinder looks for the holder's photo on a rectified document crop.
type PortraitFinder struct {
	classifier *pigo.Pigo
	minQuality float64
}

// NewPortraitFinder loads a pigo facefinder cascade from disk.
func NewPortraitFinder(cascadePath string) (*PortraitFinder, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &PortraitFinder{
		classifier: classifier,
		minQuality: DefaultPortraitQuality,
	}, nil
}

// SetMinQuality changes the detection score cutoff. Values <= 0 are ignored.
func (p *PortraitFinder) SetMinQuality(q float64) {
	if q > 0 {
		p.minQuality = q
	}
}

// Find runs the cascade over img and returns the clustered detections that
// clear the quality cutoff.
func (p *PortraitFinder) Find(img gocv.Mat) []FaceBox {
	if img.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	rows, cols := gray.Rows(), gray.Cols()
	maxSize := rows
	if cols > maxSize {
		maxSize = cols
	}

	params := pigo.CascadeParams{
		MinSize:     portraitMinSize,
		MaxSize:     maxSize,
		ShiftFactor: portraitShiftFactor,
		ScaleFactor: portraitScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, portraitIoU)

	var boxes []FaceBox
	for _, det := range dets {
		if float64(det.Q) < p.minQuality {
			continue
		}
		boxes = append(boxes, FaceBox{
			Row:     det.Row,
			Col:     det.Col,
			Size:    det.Scale,
			Quality: float64(det.Q),
		})
	}
	return boxes
}

// HasPortrait reports whether at least one face is visible on img.
func (p *PortraitFinder) HasPortrait(img gocv.Mat) bool {
	return len(p.Find(img)) > 0
}
