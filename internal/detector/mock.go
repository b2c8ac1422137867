package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections Detections
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections.Hands = hands
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections.Faces = faces
}

// SetQuads sets the document quads that will be returned by Detect.
func (m *MockDetector) SetQuads(quads []Quad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections.Quads = quads
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns a copy of the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Detections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	d := Detections{
		Quads: append([]Quad(nil), m.detections.Quads...),
		Hands: append([]HandLandmarks(nil), m.detections.Hands...),
		Faces: append([]FaceLandmarks(nil), m.detections.Faces...),
	}
	return &d, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a right hand held palm-first with all five
// fingers extended upward, well inside the frame.
func OpenPalmLandmarks() HandLandmarks {
	p := make([]Point3D, NumHandLandmarks)

	p[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	p[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	p[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	p[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	p[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	p[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	p[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	p[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	p[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	p[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	p[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	p[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	p[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	p[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	p[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	p[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	p[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	p[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	p[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return HandLandmarks{Points: p, Handedness: HandRight, Score: 0.95}
}

// OpenLeftPalmLandmarks is OpenPalmLandmarks mirrored across the vertical axis.
func OpenLeftPalmLandmarks() HandLandmarks {
	h := OpenPalmLandmarks()
	for i := range h.Points {
		h.Points[i].X = 1 - h.Points[i].X
	}
	h.Handedness = HandLeft
	return h
}

// FistLandmarks returns a right hand with the four fingers curled and the
// thumb up.
func FistLandmarks() HandLandmarks {
	p := make([]Point3D, NumHandLandmarks)

	p[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	p[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	p[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	p[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	p[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	p[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	p[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	p[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	p[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	p[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	p[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	p[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	p[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	p[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	p[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	p[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	p[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	p[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	p[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return HandLandmarks{Points: p, Handedness: HandRight, Score: 0.95}
}

// FrontalFaceLandmarks returns a MinFaceLandmarks-point mesh that passes every
// face check: eyes open, mouth closed, head level. It is laid out as a
// sideways sensor delivers it: eyes stacked vertically, chin to the right.
// UprightFaceLandmarks is the same face from an upright webcam.
func FrontalFaceLandmarks() FaceLandmarks {
	p := make([]Point3D, MinFaceLandmarks)
	for i := range p {
		p[i] = Point3D{X: 0.5, Y: 0.5}
	}

	p[FaceNoseTip] = Point3D{X: 0.5, Y: 0.5}
	p[FaceChin] = Point3D{X: 0.7, Y: 0.5}

	// Mouth corners among the first eleven points.
	p[0] = Point3D{X: 0.6, Y: 0.45}
	p[6] = Point3D{X: 0.6, Y: 0.55}

	// Left eye: corners along y, lids along x.
	p[33] = Point3D{X: 0.40, Y: 0.40}
	p[153] = Point3D{X: 0.40, Y: 0.46}
	p[159] = Point3D{X: 0.375, Y: 0.42}
	p[133] = Point3D{X: 0.425, Y: 0.42}
	p[158] = Point3D{X: 0.375, Y: 0.44}
	p[145] = Point3D{X: 0.425, Y: 0.44}

	// Right eye.
	p[263] = Point3D{X: 0.40, Y: 0.60}
	p[362] = Point3D{X: 0.40, Y: 0.54}
	p[380] = Point3D{X: 0.40, Y: 0.60}
	p[386] = Point3D{X: 0.35, Y: 0.60}
	p[385] = Point3D{X: 0.375, Y: 0.57}
	p[374] = Point3D{X: 0.425, Y: 0.57}

	return FaceLandmarks{Points: p, Score: 0.98}
}

// UprightFaceLandmarks is FrontalFaceLandmarks as an upright, mirrored
// webcam frame shows it: eyes level, chin below the nose.
func UprightFaceLandmarks() FaceLandmarks {
	f := FrontalFaceLandmarks()
	for i, p := range f.Points {
		f.Points[i] = Point3D{X: 1 - p.Y, Y: p.X, Z: p.Z}
	}
	return f
}

// ClosedEyesFaceLandmarks is FrontalFaceLandmarks with both lids shut.
func ClosedEyesFaceLandmarks() FaceLandmarks {
	f := FrontalFaceLandmarks()
	for _, idx := range []int{159, 133, 158, 145} {
		f.Points[idx].X = 0.40
	}
	f.Points[386] = Point3D{X: 0.40, Y: 0.60}
	for _, idx := range []int{385, 374} {
		f.Points[idx].X = 0.40
	}
	return f
}

// SmilingFaceLandmarks is FrontalFaceLandmarks with a wide open mouth.
func SmilingFaceLandmarks() FaceLandmarks {
	f := FrontalFaceLandmarks()
	f.Points[3] = Point3D{X: 0.45, Y: 0.47}
	f.Points[9] = Point3D{X: 0.85, Y: 0.47}
	f.Points[2] = Point3D{X: 0.45, Y: 0.50}
	f.Points[10] = Point3D{X: 0.85, Y: 0.50}
	f.Points[4] = Point3D{X: 0.45, Y: 0.53}
	f.Points[8] = Point3D{X: 0.85, Y: 0.53}
	return f
}

// DocumentQuad returns an upright ID-card outline centered in the frame.
func DocumentQuad() Quad {
	return Quad{
		TopLeft:     Point3D{X: 0.2, Y: 0.3},
		TopRight:    Point3D{X: 0.8, Y: 0.3},
		BottomLeft:  Point3D{X: 0.2, Y: 0.7},
		BottomRight: Point3D{X: 0.8, Y: 0.7},
		Confidence:  0.95,
	}
}
