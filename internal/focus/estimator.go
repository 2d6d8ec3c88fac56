package focus

import (
	"github.com/ayusman/lizard/internal/detector"
)

// DefaultThreshold is the combined ratio above which a frame counts as focused.
const DefaultThreshold = 0.2

// Result is the classification of one frame.
type Result struct {
	Focused      bool    `json:"focused"`
	Ratio        float64 `json:"ratio"`
	FaceDetected bool    `json:"face_detected"`
}

// Estimator classifies eye landmarks against a threshold.
// An Estimator is immutable; build a new one to change the threshold.
type Estimator struct {
	threshold float64
	ratio     RatioFunc
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRatioFunc replaces the ratio computation. The default is AverageEAR.
func WithRatioFunc(fn RatioFunc) Option {
	return func(e *Estimator) {
		if fn != nil {
			e.ratio = fn
		}
	}
}

// NewEstimator creates an Estimator with the given threshold.
// Non-positive thresholds fall back to DefaultThreshold.
func NewEstimator(threshold float64, opts ...Option) *Estimator {
	if threshold <= 0 || !finite(threshold) {
		threshold = DefaultThreshold
	}

	e := &Estimator{
		threshold: threshold,
		ratio:     AverageEAR,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the classification threshold.
func (e *Estimator) Threshold() float64 {
	return e.threshold
}

// Classify computes the combined eye ratio and compares it with the threshold.
//
// Both eyes must have exactly six points or ErrInvalidLandmarkSet is returned.
// Degenerate geometry (zero-width eye, NaN or Inf coordinates) is not an
// error: the frame is reported as not focused with a ratio of 0.
func (e *Estimator) Classify(left, right EyeLandmarks) (focused bool, ratio float64, err error) {
	if len(left) != EyePoints || len(right) != EyePoints {
		return false, 0, ErrInvalidLandmarkSet
	}

	ratio, ok := e.ratio(left, right)
	if !ok {
		return false, 0, nil
	}
	return ratio > e.threshold, ratio, nil
}

// ClassifyFace classifies a detected face. A nil face means no face was
// found in the frame, which yields a not-focused result without error.
// If the face is malformed the returned Result is still a valid
// not-focused classification alongside ErrInvalidLandmarkSet.
func (e *Estimator) ClassifyFace(face *detector.FaceLandmarks) (Result, error) {
	if face == nil {
		return Result{}, nil
	}

	left, right, err := EyesFromFace(face)
	if err != nil {
		return Result{FaceDetected: true}, err
	}

	focused, ratio, err := e.Classify(left, right)
	if err != nil {
		return Result{FaceDetected: true}, err
	}
	return Result{Focused: focused, Ratio: ratio, FaceDetected: true}, nil
}

// Classify is a convenience wrapper that classifies with AverageEAR.
func Classify(left, right EyeLandmarks, threshold float64) (focused bool, ratio float64, err error) {
	return NewEstimator(threshold).Classify(left, right)
}
