package app

import (
	"errors"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/analyzer"
	"github.com/ayusman/kyccapture/internal/capture"
	"github.com/ayusman/kyccapture/internal/gate"
)

// runPipeline reads one frame per tick until stop is closed.
//
// Per tick:
//  1. Read a frame and keep a copy for the preview stream
//  2. Skip analysis when no session is running or it has captured
//  3. Run the detector; errors count as an empty detection
//  4. Submit the observation; the session drops it when busy
func (a *App) runPipeline(stop <-chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick processes a single frame. It reports whether the frame was handed
// to a session.
func (a *App) tick() bool {
	frame, err := a.source.Next()
	if err != nil {
		if !errors.Is(err, capture.ErrNoFrame) {
			log.Printf("Error reading frame: %v", err)
		}
		return false
	}

	a.updatePreview(*frame.Mat)

	s := a.Active()
	if s == nil || s.Captured() {
		frame.Close()
		return false
	}

	obs := &gate.Observation{
		Frame:       frame.Mat,
		Index:       frame.Index,
		Timestamp:   frame.Timestamp,
		Orientation: frame.Orientation,
		Viewport:    analyzer.Viewport{Width: float64(frame.Width()), Height: float64(frame.Height())},
	}

	det, err := a.detector.Detect(frame.Mat)
	if err != nil {
		log.Printf("Detection error on frame %d: %v", frame.Index, err)
	} else if det != nil {
		obs.Detections = *det
	}

	if !s.Submit(obs) {
		frame.Close()
		return false
	}
	return true
}

func (a *App) updatePreview(m gocv.Mat) {
	a.previewMu.Lock()
	defer a.previewMu.Unlock()

	m.CopyTo(&a.preview)
	a.hasPreview = true
}
