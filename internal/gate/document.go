package gate

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/analyzer"
	"github.com/ayusman/kyccapture/internal/detector"
	"github.com/ayusman/kyccapture/internal/quality"
)

// MinPortraitQuality is the FaceQuality score (0-255) a detected face on
// the document must exceed when no PortraitChecker is configured.
const MinPortraitQuality = 25.5

type documentStage struct {
	variant       DocumentVariant
	required      int
	minConfidence float64
	minAspect     float64
	maxAspect     float64
	strictFraming bool
	maxSkew       float64
	sharpness     float64
	checkShadow   bool
	steadiness    *quality.Steadiness
	portraits     PortraitChecker
}

func newDocumentStage(opts Options) (*documentStage, error) {
	d := &documentStage{
		variant:     opts.Variant,
		maxSkew:     quality.MaxSkewDegrees,
		checkShadow: opts.CheckShadow,
		portraits:   opts.Portraits,
	}

	switch opts.Variant {
	case VariantStream:
		d.required = RequiredStream
		d.minConfidence = quality.MinConfidenceStream
		d.minAspect, d.maxAspect = quality.MinAspectGeneral, quality.MaxAspectGeneral
		d.sharpness = quality.SharpnessGeneral
	case VariantScanner:
		d.required = RequiredScanner
		d.minConfidence = quality.MinConfidenceScanner
		d.minAspect, d.maxAspect = quality.MinAspectScanner, quality.MaxAspectScanner
		d.strictFraming = true
		switch opts.DocumentType {
		case DocumentIDCard:
			d.sharpness = quality.SharpnessIDCard
		case DocumentPassport:
			d.sharpness = quality.SharpnessPassport
		default:
			return nil, fmt.Errorf("unknown document type %q", opts.DocumentType)
		}
	default:
		return nil, fmt.Errorf("unknown document variant %q", opts.Variant)
	}

	if opts.Sharpness > 0 {
		d.sharpness = opts.Sharpness
	}
	if opts.MaxSkew > 0 {
		d.maxSkew = opts.MaxSkew
	}
	if opts.MaxMotion > 0 {
		d.steadiness = quality.NewSteadiness(opts.MaxMotion)
	}
	return d, nil
}

func (d *documentStage) Name() string  { return "document-" + string(d.variant) }
func (d *documentStage) Required() int { return d.required }

func (d *documentStage) Evaluate(obs *Observation) Verdict {
	if len(obs.Quads) == 0 {
		return reject("no document")
	}
	q := obs.Quads[0]

	if !quality.ConfidenceValid(q, d.minConfidence) {
		return reject("low confidence %.2f", q.Confidence)
	}
	if !quality.AspectRatioValid(q, d.minAspect, d.maxAspect) {
		return reject("aspect ratio %.2f out of range", quality.AspectRatio(q))
	}
	if d.strictFraming {
		if !quality.InsidePreview(q) {
			return reject("document outside preview")
		}
		if !quality.Centered(q) {
			return reject("document not centered")
		}
	}
	if quality.IsSkewed(q, d.maxSkew) {
		return reject("document skewed")
	}

	if obs.Frame == nil || obs.Frame.Empty() {
		return reject("no frame for portrait check")
	}
	frame := *obs.Frame

	if !quality.IsSharpEnough(frame, d.sharpness) {
		return reject("document blurred")
	}
	if quality.IsTooBright(frame, quality.MaxBrightness) {
		return reject("glare")
	}
	if d.checkShadow && quality.HasTooMuchShadow(frame, quality.MaxShadow) {
		return reject("uneven lighting")
	}
	if d.steadiness != nil {
		if steady, changed := d.steadiness.Observe(frame); !steady {
			return reject("camera moving (%.1f%% changed)", changed)
		}
	}

	v := Verdict{Admissible: true, Quad: &q}
	if d.portraits != nil {
		if !d.hasPortrait(frame, q) {
			return reject("no portrait on document")
		}
		return v
	}

	score, ok := portraitQuality(frame, q, obs.Faces)
	if !ok {
		return reject("no portrait on document")
	}
	if score <= MinPortraitQuality {
		return reject("portrait quality %.1f too low", score)
	}
	v.FaceQuality = score
	return v
}

// portraitQuality scores the best detected face whose center lies inside
// the document outline. ok is false when no face is on the document.
func portraitQuality(frame gocv.Mat, q detector.Quad, faces []detector.FaceLandmarks) (best float64, ok bool) {
	doc := q.BoundingBox()
	for _, f := range faces {
		box := analyzer.FaceBounds(f)
		cx, cy := box.MidX(), box.MidY()
		if cx < doc.X || cx > doc.X+doc.Width || cy < doc.Y || cy > doc.Y+doc.Height {
			continue
		}
		if score, measured := quality.FaceQuality(frame, box); measured && (!ok || score > best) {
			best, ok = score, true
		}
	}
	return best, ok
}

func (d *documentStage) hasPortrait(frame gocv.Mat, q detector.Quad) bool {
	crop, err := quality.PerspectiveCorrect(frame, q, quality.CornerPadding)
	defer crop.Close()
	if err != nil {
		return false
	}
	return d.portraits.HasPortrait(crop)
}

func (d *documentStage) Reset() {
	if d.steadiness != nil {
		d.steadiness.Reset()
	}
}

func (d *documentStage) Close() {
	if d.steadiness != nil {
		d.steadiness.Close()
	}
}
