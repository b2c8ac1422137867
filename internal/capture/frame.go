package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Orientation is how the camera sensor is turned relative to the subject.
type Orientation int

const (
	OrientationUp    Orientation = iota // sensor upright
	OrientationRight                    // rotated 90 degrees clockwise
	OrientationDown                     // upside down
	OrientationLeft                     // rotated 90 degrees counter-clockwise
)

func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationRight:
		return "right"
	case OrientationDown:
		return "down"
	case OrientationLeft:
		return "left"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// ParseOrientation accepts "up", "right", "down" and "left" or the
// equivalent rotations "0", "90", "180" and "270". An empty string is up.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "up", "0":
		return OrientationUp, nil
	case "right", "90":
		return OrientationRight, nil
	case "down", "180":
		return OrientationDown, nil
	case "left", "270":
		return OrientationLeft, nil
	}
	return OrientationUp, fmt.Errorf("unknown orientation %q", s)
}

// Sideways reports whether frames arrive a quarter turn from upright.
func (o Orientation) Sideways() bool {
	return o == OrientationRight || o == OrientationLeft
}

// Upright writes src rotated to read upright into dst. It reports false and
// leaves dst untouched when no rotation is needed.
func (o Orientation) Upright(src gocv.Mat, dst *gocv.Mat) bool {
	switch o {
	case OrientationRight:
		gocv.Rotate(src, dst, gocv.Rotate90CounterClockwise)
	case OrientationDown:
		gocv.Rotate(src, dst, gocv.Rotate180Clockwise)
	case OrientationLeft:
		gocv.Rotate(src, dst, gocv.Rotate90Clockwise)
	default:
		return false
	}
	return true
}

// Frame is one camera image with its sequence metadata. Frames are
// read-only once produced; Close releases the raster.
type Frame struct {
	Mat         *gocv.Mat
	Index       int64
	Timestamp   time.Time
	Orientation Orientation
}

// Width returns the raster width in pixels, 0 for an empty frame.
func (f *Frame) Width() int {
	if f == nil || f.Mat == nil {
		return 0
	}
	return f.Mat.Cols()
}

// Height returns the raster height in pixels, 0 for an empty frame.
func (f *Frame) Height() int {
	if f == nil || f.Mat == nil {
		return 0
	}
	return f.Mat.Rows()
}

// Close releases the raster. Safe to call more than once.
func (f *Frame) Close() {
	if f == nil || f.Mat == nil {
		return
	}
	f.Mat.Close()
	f.Mat = nil
}

// Source numbers frames read from a Camera.
type Source struct {
	cam         Camera
	orientation Orientation
	now         func() time.Time

	mu    sync.Mutex
	index int64
}

// NewSource wraps cam. Every frame is tagged with orientation.
func NewSource(cam Camera, orientation Orientation) *Source {
	return &Source{cam: cam, orientation: orientation, now: time.Now}
}

// Next reads the next frame. Indices start at 1 and increase by one for
// every frame successfully read.
func (s *Source) Next() (*Frame, error) {
	mat, err := s.cam.ReadFrame()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index++
	f := &Frame{
		Mat:         mat,
		Index:       s.index,
		Timestamp:   s.now(),
		Orientation: s.orientation,
	}
	s.mu.Unlock()

	return f, nil
}

// SetOrientation changes the orientation applied to later frames.
func (s *Source) SetOrientation(o Orientation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orientation = o
}

// Camera returns the wrapped camera.
func (s *Source) Camera() Camera {
	return s.cam
}
