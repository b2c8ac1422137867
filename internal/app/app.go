// Package app runs the capture pipeline: camera frames go through the
// detector into the active session, and captures come out to the store,
// websocket clients, plugins and the tray.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kyccapture/internal/capture"
	"github.com/ayusman/kyccapture/internal/detector"
	"github.com/ayusman/kyccapture/internal/gate"
	"github.com/ayusman/kyccapture/internal/plugin"
	"github.com/ayusman/kyccapture/internal/server"
	"github.com/ayusman/kyccapture/internal/session"
	"github.com/ayusman/kyccapture/internal/store"
)

// ErrNoActiveSession is returned when an operation names a session that is
// not the running one. It matches session.ErrClosed.
var ErrNoActiveSession = fmt.Errorf("no active session: %w", session.ErrClosed)

// Notifier shows capture progress, e.g. in the tray.
type Notifier interface {
	SetStatus(status string)
	SetLastCapture(desc string)
}

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store

	// Camera defaults to the device camera CameraID.
	Camera      capture.Camera
	CameraID    int
	FPS         int
	Orientation capture.Orientation

	// Detector defaults to the MediaPipe service, or the mock when it is
	// unavailable.
	Detector        detector.Detector
	DetectorSocket  string
	DetectorTimeout time.Duration

	// Gate carries the thresholds and portrait checker for new sessions.
	Gate gate.Options

	Plugins  *plugin.Dispatcher
	Events   *server.EventHub
	Notifier Notifier
}

// App owns the camera, the detector and at most one active session.
type App struct {
	config   Config
	camera   capture.Camera
	source   *capture.Source
	detector detector.Detector

	mu     sync.RWMutex
	active *session.Session
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup

	previewMu  sync.Mutex
	preview    gocv.Mat
	hasPreview bool
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}

	cam := config.Camera
	if cam == nil {
		cc := capture.DefaultConfig()
		cc.DeviceID = config.CameraID
		cc.FPS = config.FPS
		cam = capture.NewCameraWithConfig(cc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:   config,
		camera:   cam,
		source:   capture.NewSource(cam, config.Orientation),
		detector: config.Detector,
		ctx:      ctx,
		cancel:   cancel,
		preview:  gocv.NewMat(),
	}

	if a.detector == nil {
		dc := detector.DefaultConfig()
		dc.SocketPath = config.DetectorSocket
		if config.DetectorTimeout > 0 {
			dc.Timeout = config.DetectorTimeout
		}
		if d, err := detector.New(dc); err == nil {
			a.detector = d
			log.Println("Using MediaPipe landmark detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// Start opens the camera and begins the frame pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.runPipeline(a.stopCh)

	log.Println("Capture pipeline started")
	return nil
}

// Stop halts the pipeline, closes the active session and releases the
// camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	if a.active != nil {
		a.closeSession(a.active)
		a.active = nil
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.cancel()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	a.previewMu.Lock()
	a.preview.Close()
	a.hasPreview = false
	a.previewMu.Unlock()

	log.Println("Capture pipeline stopped")
}

// StartSession begins a capture in mode, closing any previous session.
func (a *App) StartSession(mode gate.Mode, variant gate.DocumentVariant, doc gate.DocumentType) (*session.Session, error) {
	opts := a.config.Gate
	opts.Variant = variant
	opts.DocumentType = doc

	s, err := session.New(mode, opts)
	if err != nil {
		return nil, err
	}

	if a.config.Store != nil {
		rec := &store.Session{ID: s.ID(), Mode: mode.String()}
		if mode == gate.ModeDocument {
			rec.Variant = string(variant)
		}
		if err := a.config.Store.Sessions().Create(rec); err != nil {
			s.Close()
			return nil, fmt.Errorf("persist session: %w", err)
		}
	}

	a.mu.Lock()
	if a.active != nil {
		a.closeSession(a.active)
	}
	a.active = s
	a.mu.Unlock()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := s.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[SESSION] %s: %v", s.ID(), err)
		}
	}()
	go func() {
		defer a.wg.Done()
		a.consume(s)
	}()

	log.Printf("[SESSION] started %s", s)
	a.notifyStatus("Capturing " + mode.String())
	a.broadcastSession(s)
	a.dispatchAsync(&plugin.Request{Event: plugin.EventSessionStart, SessionID: s.ID(), Mode: mode.String()})
	return s, nil
}

// ResetSession restarts the capture of the active session id.
func (a *App) ResetSession(id string) error {
	a.mu.RLock()
	s := a.active
	a.mu.RUnlock()

	if s == nil || s.ID() != id {
		return ErrNoActiveSession
	}
	if err := s.Reset(); err != nil {
		return err
	}

	if a.config.Store != nil {
		repo := a.config.Store.Sessions()
		if err := repo.RecordReset(id); err != nil {
			log.Printf("[SESSION] %s: record reset: %v", id, err)
		}
		if err := repo.SetStatus(id, store.StatusActive); err != nil {
			log.Printf("[SESSION] %s: set status: %v", id, err)
		}
	}

	a.notifyStatus("Capturing " + s.Mode().String())
	a.broadcastSession(s)
	return nil
}

// Retake resets whatever session is active.
func (a *App) Retake() error {
	s := a.Active()
	if s == nil {
		return ErrNoActiveSession
	}
	return a.ResetSession(s.ID())
}

// StopSession closes the active session id.
func (a *App) StopSession(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil || a.active.ID() != id {
		return ErrNoActiveSession
	}
	a.closeSession(a.active)
	a.active = nil
	return nil
}

// closeSession closes s and records the outcome. Caller holds a.mu.
func (a *App) closeSession(s *session.Session) {
	captured := s.Captured()
	s.Close()

	if a.config.Store != nil && !captured {
		if err := a.config.Store.Sessions().SetStatus(s.ID(), store.StatusClosed); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[SESSION] %s: set status: %v", s.ID(), err)
		}
	}

	log.Printf("[SESSION] closed %s", s)
	a.notifyStatus("Idle")
	a.broadcastSession(s)
	a.dispatchAsync(&plugin.Request{Event: plugin.EventSessionClosed, SessionID: s.ID(), Mode: s.Mode().String()})
}

// Active returns the running session, or nil.
func (a *App) Active() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// LatestFrame returns a copy of the last camera frame.
func (a *App) LatestFrame() (gocv.Mat, bool) {
	a.previewMu.Lock()
	defer a.previewMu.Unlock()

	if !a.hasPreview {
		return gocv.Mat{}, false
	}
	return a.preview.Clone(), true
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// consume handles the captures of s until it closes.
func (a *App) consume(s *session.Session) {
	for ev := range s.Events() {
		a.handleCapture(s, ev)
	}
}

func (a *App) handleCapture(s *session.Session, ev *session.Event) {
	defer ev.Close()

	jpeg, err := ev.JPEG()
	if err != nil {
		log.Printf("[SESSION] %s: encode capture %s: %v", s.ID(), ev.ID, err)
		return
	}

	mode := ev.Mode.String()
	if a.config.Store != nil {
		c := &store.Capture{
			ID:          ev.ID,
			SessionID:   ev.SessionID,
			Mode:        mode,
			HandSide:    ev.HandSide,
			FaceQuality: ev.FaceQuality,
			FrameIndex:  ev.FrameIndex,
			Width:       ev.Width(),
			Height:      ev.Height(),
			Image:       jpeg,
			CreatedAt:   ev.Time,
		}
		if err := a.config.Store.Captures().Create(c); err != nil {
			log.Printf("[SESSION] %s: store capture %s: %v", s.ID(), ev.ID, err)
		}
	}

	log.Printf("[SESSION] %s captured %s (%dx%d, frame %d)", s.ID(), mode, ev.Width(), ev.Height(), ev.FrameIndex)

	if a.config.Events != nil {
		a.config.Events.Broadcast(server.MessageCapture, server.CaptureMessage{
			SessionID:   ev.SessionID,
			CaptureID:   ev.ID,
			Mode:        mode,
			HandSide:    ev.HandSide,
			FaceQuality: ev.FaceQuality,
			Width:       ev.Width(),
			Height:      ev.Height(),
			ImageURL:    "/api/captures/" + ev.ID + "/image",
		})
	}

	if a.config.Notifier != nil {
		a.config.Notifier.SetStatus("Captured " + mode)
		a.config.Notifier.SetLastCapture(mode + " " + ev.Time.Format(time.TimeOnly))
	}

	a.dispatch(&plugin.Request{
		Event:       plugin.EventCapture,
		SessionID:   ev.SessionID,
		CaptureID:   ev.ID,
		Mode:        mode,
		HandSide:    ev.HandSide,
		FaceQuality: ev.FaceQuality,
		FrameIndex:  ev.FrameIndex,
		Width:       ev.Width(),
		Height:      ev.Height(),
		Image:       jpeg,
	})
}

func (a *App) dispatch(req *plugin.Request) {
	if a.config.Plugins == nil {
		return
	}
	a.config.Plugins.Dispatch(a.ctx, req)
}

// dispatchAsync runs session lifecycle plugins off the caller's goroutine.
func (a *App) dispatchAsync(req *plugin.Request) {
	if a.config.Plugins == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Plugins.Dispatch(a.ctx, req)
	}()
}

func (a *App) notifyStatus(status string) {
	if a.config.Notifier != nil {
		a.config.Notifier.SetStatus(status)
	}
}

func (a *App) broadcastSession(s *session.Session) {
	if a.config.Events != nil {
		a.config.Events.Broadcast(server.MessageSession, s.State())
	}
}
