package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []FaceLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
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

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Eye geometry used by the fixtures, in normalized image coordinates.
const (
	fixtureEyeWidth     = 0.10
	fixtureOpenHeight   = 0.04 // eye-aspect-ratio 0.4
	fixtureClosedHeight = 0.002
)

// OpenEyesFace returns a FaceMesh landmark set whose eyes are wide open.
// Both eyes have an eye-aspect-ratio of 0.4.
func OpenEyesFace() FaceLandmarks {
	return syntheticFace(fixtureOpenHeight)
}

// ClosedEyesFace returns a FaceMesh landmark set whose eyes are nearly shut.
// Both eyes have an eye-aspect-ratio of 0.02.
func ClosedEyesFace() FaceLandmarks {
	return syntheticFace(fixtureClosedHeight)
}

// syntheticFace builds a full FaceMesh point list with rectangular eyes of
// the given opening. Non-eye landmarks are left at the face centre.
func syntheticFace(eyeHeight float64) FaceLandmarks {
	face := FaceLandmarks{
		Points: make([]Point3D, NumFaceMeshLandmarks),
		Score:  0.95,
	}
	for i := range face.Points {
		face.Points[i] = Point3D{X: 0.5, Y: 0.5}
	}

	placeEye(face.Points, RightEyeIndices, 0.35, 0.4, eyeHeight)
	placeEye(face.Points, LeftEyeIndices, 0.55, 0.4, eyeHeight)

	return face
}

// placeEye writes a rectangular eye starting at (x0, y) into points.
func placeEye(points []Point3D, idx [6]int, x0, y, height float64) {
	w := fixtureEyeWidth
	half := height / 2

	points[idx[0]] = Point3D{X: x0, Y: y}
	points[idx[1]] = Point3D{X: x0 + w/3, Y: y - half}
	points[idx[2]] = Point3D{X: x0 + 2*w/3, Y: y - half}
	points[idx[3]] = Point3D{X: x0 + w, Y: y}
	points[idx[4]] = Point3D{X: x0 + 2*w/3, Y: y + half}
	points[idx[5]] = Point3D{X: x0 + w/3, Y: y + half}
}
