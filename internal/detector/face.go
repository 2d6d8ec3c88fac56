// Package detector provides face landmark detection interfaces and types for focus tracking.
package detector

// FaceMesh landmark indices for the six eye-contour points used by the
// eye-aspect-ratio. Order per eye: corner, upper lid, upper lid, corner,
// lower lid, lower lid. Lower-lid points sit under the upper-lid points in
// reverse order so that [1] pairs with [5] and [2] pairs with [4].
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
var (
	LeftEyeIndices  = [6]int{362, 385, 387, 263, 373, 380}
	RightEyeIndices = [6]int{33, 160, 158, 133, 153, 144}
)

// NumFaceMeshLandmarks is the number of landmarks FaceMesh reports without
// iris refinement. With refinement it reports 478; both cover the eye indices.
const NumFaceMeshLandmarks = 468

// Point3D represents a normalized landmark position.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks holds the landmarks of one detected face.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// Select returns the points at the given indices, in order.
// ok is false if any index is out of range.
func (f *FaceLandmarks) Select(indices []int) (points []Point3D, ok bool) {
	if f == nil {
		return nil, false
	}

	points = make([]Point3D, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(f.Points) {
			return nil, false
		}
		points = append(points, f.Points[idx])
	}
	return points, true
}
