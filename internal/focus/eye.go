// Package focus classifies frames as focused or not focused from eye landmarks.
//
// The classification signal is the eye-aspect-ratio (EAR): the vertical
// opening of an eye normalized by its width. Everything here is a pure
// function of its inputs and safe for concurrent use.
package focus

import (
	"errors"
	"math"

	"github.com/ayusman/lizard/internal/detector"
)

// EyePoints is the number of landmarks describing one eye.
const EyePoints = 6

// minEyeWidth is the eye width below which the ratio is treated as undefined.
const minEyeWidth = 1e-12

// ErrInvalidLandmarkSet is returned when an eye does not have exactly six points.
var ErrInvalidLandmarkSet = errors.New("invalid landmark set: each eye needs exactly 6 points")

// Point is a 2D landmark in normalized image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeLandmarks holds the six contour points of one eye:
// [0] outer corner, [1] and [2] upper lid, [3] inner corner, [4] and [5] lower lid.
type EyeLandmarks []Point

// RatioFunc maps a pair of eyes to a single openness ratio.
// ok is false when the geometry is degenerate and no ratio exists.
type RatioFunc func(left, right EyeLandmarks) (ratio float64, ok bool)

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// eyeSpans returns the summed vertical lid distances and the eye width.
func eyeSpans(eye EyeLandmarks) (vertical, width float64) {
	vertical = distance(eye[1], eye[5]) + distance(eye[2], eye[4])
	width = distance(eye[0], eye[3])
	return vertical, width
}

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2|p0-p3|) for one eye.
// ok is false if the eye has zero width or any value is not finite.
// The eye must have exactly six points.
func EyeAspectRatio(eye EyeLandmarks) (ratio float64, ok bool) {
	vertical, width := eyeSpans(eye)
	if !finite(width) || width < minEyeWidth {
		return 0, false
	}

	ratio = vertical / (2 * width)
	if !finite(ratio) {
		return 0, false
	}
	return ratio, true
}

// AverageEAR computes the eye-aspect-ratio of each eye and averages them.
// This is the canonical ratio.
func AverageEAR(left, right EyeLandmarks) (float64, bool) {
	l, ok := EyeAspectRatio(left)
	if !ok {
		return 0, false
	}
	r, ok := EyeAspectRatio(right)
	if !ok {
		return 0, false
	}
	return (l + r) / 2, true
}

// MergedEAR sums the lid distances of both eyes over the summed widths of
// both eyes. It weights the wider eye more heavily and does not equal
// AverageEAR unless both eyes have the same width.
func MergedEAR(left, right EyeLandmarks) (float64, bool) {
	lv, lw := eyeSpans(left)
	rv, rw := eyeSpans(right)

	if !finite(lw) || !finite(rw) || lw < minEyeWidth || rw < minEyeWidth {
		return 0, false
	}

	ratio := (lv + rv) / (2 * (lw + rw))
	if !finite(ratio) {
		return 0, false
	}
	return ratio, true
}

// EyesFromFace extracts the left and right eye contours from a FaceMesh
// landmark set. It returns ErrInvalidLandmarkSet if the face has too few points.
func EyesFromFace(face *detector.FaceLandmarks) (left, right EyeLandmarks, err error) {
	l, ok := face.Select(detector.LeftEyeIndices[:])
	if !ok {
		return nil, nil, ErrInvalidLandmarkSet
	}
	r, ok := face.Select(detector.RightEyeIndices[:])
	if !ok {
		return nil, nil, ErrInvalidLandmarkSet
	}
	return toEye(l), toEye(r), nil
}

func toEye(points []detector.Point3D) EyeLandmarks {
	eye := make(EyeLandmarks, len(points))
	for i, p := range points {
		eye[i] = Point{X: p.X, Y: p.Y}
	}
	return eye
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
