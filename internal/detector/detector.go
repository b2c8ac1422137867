package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrServiceUnavailable is returned when no landmark service can be reached.
var ErrServiceUnavailable = errors.New("landmark service unavailable")

// Detector defines the interface for per-frame detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the quads, hands and faces found.
	// An empty Detections value means nothing was found.
	Detect(frame *gocv.Mat) (*Detections, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the landmark service.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MaxFaces is the maximum number of faces to report (default: 2, so that
	// a second face in view can be rejected instead of silently ignored).
	MaxFaces int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// Quads enables document rectangle detection.
	Quads bool

	// SocketPath, when set, selects the socket service instead of the
	// subprocess: a unix socket path, unix://path or tcp://host:port.
	SocketPath string

	// Timeout bounds one socket round trip, dial included (default: 2s).
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MaxFaces:      2,
		MinConfidence: 0.5,
		Quads:         true,
		Timeout:       DefaultSocketTimeout,
	}
}

// New picks a detector for cfg: the socket service when a socket path is
// configured, otherwise the MediaPipe subprocess.
func New(cfg Config) (Detector, error) {
	if cfg.SocketPath != "" {
		return NewSocketDetector(cfg), nil
	}
	return NewMediaPipeDetector(cfg)
}
