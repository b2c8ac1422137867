// Package gate decides, frame by frame, whether an observation is good
// enough to count toward a capture, and renders the capture image once the
// session fires.
package gate

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/analyzer"
	"github.com/ayusman/kyccapture/internal/capture"
	"github.com/ayusman/kyccapture/internal/detector"
	"github.com/ayusman/kyccapture/internal/quality"
)

// Consecutive admissible frames required per stage.
const (
	RequiredStream  = 10
	RequiredScanner = 2
	RequiredFace    = 20
	RequiredHand    = 5
)

// ErrNoFrame is returned by Extract when the observation carries no raster.
var ErrNoFrame = errors.New("observation has no frame")

// Observation is one analyzed frame: the raster plus everything the
// detector found in it. A gate never modifies it.
type Observation struct {
	Frame       *gocv.Mat
	Index       int64
	Timestamp   time.Time
	Orientation capture.Orientation
	Viewport    analyzer.Viewport

	detector.Detections
}

// Verdict is a stage's decision on one observation.
type Verdict struct {
	Admissible bool
	Stage      string
	Reason     string

	HandSide    string
	FaceQuality float64
	Quad        *detector.Quad
	Face        *detector.Rect
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Stage is one step of a mode's policy.
type Stage interface {
	Name() string
	// Required is the number of consecutive admissible frames that
	// complete the stage.
	Required() int
	Evaluate(obs *Observation) Verdict
}

// PortraitChecker reports whether an image contains a face. Document
// stages use it on the rectified crop to confirm an ID photo is present.
type PortraitChecker interface {
	HasPortrait(img gocv.Mat) bool
}

// Options tune stage thresholds. Zero values select the defaults.
type Options struct {
	Variant      DocumentVariant
	DocumentType DocumentType

	Face analyzer.FaceThresholds

	// Sharpness overrides the document sharpness threshold.
	Sharpness float64
	// MaxSkew overrides the document skew limit in degrees.
	MaxSkew float64
	// MinFaceQuality rejects faces whose quality score is below it.
	MinFaceQuality float64
	// MaxMotion enables the document steadiness check: the percent of
	// pixels allowed to change between frames.
	MaxMotion float64
	// CheckShadow enables the document shadow check.
	CheckShadow bool
	// RequireThumb makes the hand stages insist on an extended thumb.
	RequireThumb bool

	Portraits PortraitChecker
	Verbose   bool
}

// DefaultOptions returns the stream document variant with default limits.
func DefaultOptions() Options {
	return Options{
		Variant:      VariantStream,
		DocumentType: DocumentPassport,
		Face:         analyzer.DefaultFaceThresholds(),
	}
}

// Gate holds the ordered stages of one mode.
type Gate struct {
	mode    Mode
	opts    Options
	stages  []Stage
	verbose bool
}

// New builds the gate for mode.
func New(mode Mode, opts Options) (*Gate, error) {
	if opts.Face == (analyzer.FaceThresholds{}) {
		opts.Face = analyzer.DefaultFaceThresholds()
	}
	if opts.Variant == "" {
		opts.Variant = VariantStream
	}
	if opts.DocumentType == "" {
		opts.DocumentType = DocumentPassport
	}

	g := &Gate{mode: mode, opts: opts, verbose: opts.Verbose}

	switch mode {
	case ModeDocument:
		d, err := newDocumentStage(opts)
		if err != nil {
			return nil, err
		}
		g.stages = []Stage{d}
	case ModeFace:
		g.stages = []Stage{newFaceStage(opts)}
	case ModeHand:
		g.stages = []Stage{&handStage{requireThumb: opts.RequireThumb}}
	case ModeFaceThenHand:
		g.stages = []Stage{newFaceStage(opts), &faceHandStage{hand: handStage{requireThumb: opts.RequireThumb}}}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	return g, nil
}

// Mode returns the gate's mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// Options returns the effective options.
func (g *Gate) Options() Options {
	return g.opts
}

// Stages returns the ordered stages.
func (g *Gate) Stages() []Stage {
	return g.stages
}

// Evaluate runs stage i on obs. A panicking stage yields an inadmissible
// verdict.
func (g *Gate) Evaluate(i int, obs *Observation) (v Verdict) {
	if i < 0 || i >= len(g.stages) {
		return reject("no stage %d", i)
	}
	st := g.stages[i]

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[GATE] %s stage panicked on frame %d: %v", st.Name(), obsIndex(obs), r)
			v = Verdict{Stage: st.Name(), Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	if obs == nil {
		return Verdict{Stage: st.Name(), Reason: "no observation"}
	}

	v = st.Evaluate(obs)
	v.Stage = st.Name()
	if g.verbose && !v.Admissible {
		log.Printf("[GATE] frame %d %s: %s", obs.Index, v.Stage, v.Reason)
	}
	return v
}

func obsIndex(obs *Observation) int64 {
	if obs == nil {
		return -1
	}
	return obs.Index
}

// Extract renders the capture image for the frame that completed the last
// stage, turned upright. The caller closes the result.
func (g *Gate) Extract(obs *Observation, v Verdict) (gocv.Mat, error) {
	if obs == nil || obs.Frame == nil || obs.Frame.Empty() {
		return gocv.NewMat(), ErrNoFrame
	}
	frame := *obs.Frame

	var out gocv.Mat
	switch {
	case g.mode == ModeDocument && v.Quad != nil:
		var err error
		out, err = g.extractDocument(frame, *v.Quad)
		if err != nil {
			return out, err
		}
	case g.mode == ModeFace && v.Face != nil:
		crop, ok := quality.CropFace(frame, *v.Face)
		if !ok {
			crop.Close()
			crop = frame.Clone()
		}
		out = crop
	default:
		out = frame.Clone()
	}

	upright := gocv.NewMat()
	if obs.Orientation.Upright(out, &upright) {
		out.Close()
		return upright, nil
	}
	upright.Close()
	return out, nil
}

func (g *Gate) extractDocument(frame gocv.Mat, q detector.Quad) (gocv.Mat, error) {
	if g.opts.Variant == VariantScanner {
		return cropBox(frame, q.BoundingBox())
	}
	out, err := quality.PerspectiveCorrect(frame, q, quality.CornerPadding)
	if err != nil {
		return out, fmt.Errorf("rectify document: %w", err)
	}
	return out, nil
}

// cropBox copies the normalized box out of frame.
func cropBox(frame gocv.Mat, box detector.Rect) (gocv.Mat, error) {
	w, h := float64(frame.Cols()), float64(frame.Rows())
	px := func(v, size float64) int { return int(math.Round(v * size)) }
	r := image.Rect(
		px(box.X, w), px(box.Y, h),
		px(box.X+box.Width, w), px(box.Y+box.Height, h),
	).Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if r.Empty() {
		return gocv.NewMat(), quality.ErrDegenerateQuad
	}
	region := frame.Region(r)
	defer region.Close()
	return region.Clone(), nil
}

// Reset clears per-stream state such as the steadiness baseline.
func (g *Gate) Reset() {
	for _, st := range g.stages {
		if r, ok := st.(interface{ Reset() }); ok {
			r.Reset()
		}
	}
}

// Close releases stage resources.
func (g *Gate) Close() {
	for _, st := range g.stages {
		if c, ok := st.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
