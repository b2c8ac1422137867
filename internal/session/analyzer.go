package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/gate"
)

// Event is one capture. The receiver owns Image and must Close the event.
type Event struct {
	ID          string
	SessionID   string
	Mode        gate.Mode
	Image       gocv.Mat
	HandSide    string
	FaceQuality float64
	FrameIndex  int64
	Time        time.Time

	closeOnce sync.Once
}

// Width of the captured image in pixels.
func (e *Event) Width() int { return e.Image.Cols() }

// Height of the captured image in pixels.
func (e *Event) Height() int { return e.Image.Rows() }

// JPEG encodes the captured image.
func (e *Event) JPEG() ([]byte, error) {
	if e.Image.Empty() {
		return nil, fmt.Errorf("capture %s has no image", e.ID)
	}
	buf, err := gocv.IMEncode(".jpg", e.Image)
	if err != nil {
		return nil, fmt.Errorf("encode capture %s: %w", e.ID, err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Close releases the image. Safe to call more than once.
func (e *Event) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() { e.Image.Close() })
}

// Outcome describes what one Step did.
type Outcome struct {
	Verdict gate.Verdict
	Stage   int
	Count   int
	State   State
	// Fired is set on the single frame that produced Event.
	Fired bool
	Event *Event
	// Skipped is set when the trigger had already captured.
	Skipped bool
	Err     error
}

// Analyzer runs the gate and trigger for one session. It is not safe for
// concurrent use; Session serializes access.
type Analyzer struct {
	sessionID   string
	gate        *gate.Gate
	trigger     *Trigger
	faceQuality float64
	now         func() time.Time
}

// NewAnalyzer pairs g with a trigger built from its stages.
func NewAnalyzer(sessionID string, g *gate.Gate) *Analyzer {
	req := make([]int, 0, len(g.Stages()))
	for _, st := range g.Stages() {
		req = append(req, st.Required())
	}
	return &Analyzer{
		sessionID: sessionID,
		gate:      g,
		trigger:   NewTrigger(req...),
		now:       time.Now,
	}
}

// Step evaluates obs against the current stage and advances the trigger.
// When the last stage completes, the capture image is extracted into a new
// Event. If extraction fails the trigger is rearmed so the next admissible
// frame tries again.
func (a *Analyzer) Step(obs *gate.Observation) Outcome {
	if a.trigger.State() == StateCaptured {
		return Outcome{State: StateCaptured, Stage: a.trigger.Stage(), Count: a.trigger.Count(), Skipped: true}
	}

	stage := a.trigger.Stage()
	v := a.gate.Evaluate(stage, obs)
	if v.Admissible && v.FaceQuality > 0 {
		a.faceQuality = v.FaceQuality
	}

	fired := a.trigger.Observe(v.Admissible)
	out := Outcome{Verdict: v, Stage: stage}

	if fired {
		ev, err := a.capture(obs, v)
		if err != nil {
			log.Printf("[SESSION] %s: capture on frame %d failed: %v", a.sessionID, obs.Index, err)
			a.trigger.Retry()
			out.Err = err
		} else {
			out.Fired = true
			out.Event = ev
		}
	}

	out.Count = a.trigger.Count()
	out.State = a.trigger.State()
	return out
}

func (a *Analyzer) capture(obs *gate.Observation, v gate.Verdict) (*Event, error) {
	img, err := a.gate.Extract(obs, v)
	if err != nil {
		img.Close()
		return nil, err
	}
	return &Event{
		ID:          uuid.NewString(),
		SessionID:   a.sessionID,
		Mode:        a.gate.Mode(),
		Image:       img,
		HandSide:    v.HandSide,
		FaceQuality: a.faceQuality,
		FrameIndex:  obs.Index,
		Time:        a.now(),
	}, nil
}

// Reset rearms the trigger and clears per-stream gate state.
func (a *Analyzer) Reset() {
	a.trigger.Reset()
	a.gate.Reset()
	a.faceQuality = 0
}

// Trigger exposes the counter for inspection.
func (a *Analyzer) Trigger() *Trigger {
	return a.trigger
}
