package focus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/lizard/internal/detector"
)

// rectEye builds a rectangular eye of the given width and opening at (x0, y).
func rectEye(x0, y, width, height float64) EyeLandmarks {
	half := height / 2
	return EyeLandmarks{
		{X: x0, Y: y},
		{X: x0 + width/3, Y: y - half},
		{X: x0 + 2*width/3, Y: y - half},
		{X: x0 + width, Y: y},
		{X: x0 + 2*width/3, Y: y + half},
		{X: x0 + width/3, Y: y + half},
	}
}

func TestEyeAspectRatio(t *testing.T) {
	tests := []struct {
		name   string
		eye    EyeLandmarks
		want   float64
		wantOK bool
	}{
		{name: "open eye", eye: rectEye(0.3, 0.4, 0.1, 0.04), want: 0.4, wantOK: true},
		{name: "closed eye", eye: rectEye(0.3, 0.4, 0.1, 0), want: 0, wantOK: true},
		{name: "square eye", eye: rectEye(0, 0, 1, 1), want: 1, wantOK: true},
		{name: "zero width", eye: rectEye(0.3, 0.4, 0, 0.04), want: 0, wantOK: false},
		{name: "NaN coordinate", eye: EyeLandmarks{{X: math.NaN()}, {}, {}, {X: 1}, {}, {}}, want: 0, wantOK: false},
		{name: "Inf coordinate", eye: EyeLandmarks{{}, {Y: math.Inf(1)}, {}, {X: 1}, {}, {}}, want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EyeAspectRatio(tt.eye)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestClassify(t *testing.T) {
	open := rectEye(0.3, 0.4, 0.1, 0.04)
	closed := rectEye(0.3, 0.4, 0.1, 0.0005)

	t.Run("open eyes are focused", func(t *testing.T) {
		focused, ratio, err := Classify(open, open, 0.2)
		require.NoError(t, err)
		assert.True(t, focused)
		assert.InDelta(t, 0.4, ratio, 1e-9)
	})

	t.Run("nearly closed eyes are not focused", func(t *testing.T) {
		focused, ratio, err := Classify(closed, closed, 0.2)
		require.NoError(t, err)
		assert.False(t, focused)
		assert.Less(t, ratio, 0.01)
	})

	t.Run("ratio is averaged across eyes", func(t *testing.T) {
		// 0.6 and 0.2
		wide := rectEye(0.3, 0.4, 0.1, 0.06)
		narrow := rectEye(0.5, 0.4, 0.1, 0.02)
		_, ratio, err := Classify(wide, narrow, 0.2)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, ratio, 1e-9)
	})

	t.Run("threshold is strict", func(t *testing.T) {
		eye := rectEye(0, 0, 1, 0.25)
		focused, ratio, err := Classify(eye, eye, 0.25)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, ratio, 1e-12)
		assert.False(t, focused, "ratio equal to threshold must not count as focused")
	})

	t.Run("threshold is tunable", func(t *testing.T) {
		focused, _, err := Classify(open, open, 0.5)
		require.NoError(t, err)
		assert.False(t, focused)
	})

	t.Run("zero eye width is not focused and not an error", func(t *testing.T) {
		flat := rectEye(0.3, 0.4, 0, 0.04)
		focused, ratio, err := Classify(flat, open, 0.2)
		require.NoError(t, err)
		assert.False(t, focused)
		assert.Equal(t, 0.0, ratio)
	})

	t.Run("wrong point count", func(t *testing.T) {
		short := open[:5]
		long := append(append(EyeLandmarks{}, open...), Point{})

		_, _, err := Classify(short, open, 0.2)
		assert.ErrorIs(t, err, ErrInvalidLandmarkSet)

		_, _, err = Classify(open, long, 0.2)
		assert.ErrorIs(t, err, ErrInvalidLandmarkSet)

		_, _, err = Classify(nil, nil, 0.2)
		assert.ErrorIs(t, err, ErrInvalidLandmarkSet)
	})

	t.Run("deterministic", func(t *testing.T) {
		left := rectEye(0.31, 0.42, 0.093, 0.031)
		right := rectEye(0.52, 0.41, 0.101, 0.029)

		f1, r1, _ := Classify(left, right, 0.2)
		for i := 0; i < 10; i++ {
			f2, r2, _ := Classify(left, right, 0.2)
			assert.Equal(t, f1, f2)
			assert.Equal(t, r1, r2)
		}
	})
}

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{name: "explicit", threshold: 0.25, want: 0.25},
		{name: "zero falls back", threshold: 0, want: DefaultThreshold},
		{name: "negative falls back", threshold: -1, want: DefaultThreshold},
		{name: "NaN falls back", threshold: math.NaN(), want: DefaultThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewEstimator(tt.threshold).Threshold())
		})
	}
}

func TestMergedEAR(t *testing.T) {
	// EAR 0.2 over a wide eye, EAR 0.6 over a narrow one
	wide := rectEye(0.3, 0.4, 0.2, 0.04)
	narrow := rectEye(0.6, 0.4, 0.1, 0.06)

	merged, ok := MergedEAR(wide, narrow)
	require.True(t, ok)
	// (2*0.04 + 2*0.06) / (2 * 0.3)
	assert.InDelta(t, 1.0/3.0, merged, 1e-9)

	avg, ok := AverageEAR(wide, narrow)
	require.True(t, ok)
	assert.InDelta(t, 0.4, avg, 1e-9)

	t.Run("selectable on estimator", func(t *testing.T) {
		e := NewEstimator(0.35, WithRatioFunc(MergedEAR))
		focused, ratio, err := e.Classify(wide, narrow)
		require.NoError(t, err)
		assert.False(t, focused)
		assert.InDelta(t, merged, ratio, 1e-12)
	})

	t.Run("zero width", func(t *testing.T) {
		_, ok := MergedEAR(rectEye(0, 0, 0, 0.1), narrow)
		assert.False(t, ok)
	})
}

func TestEstimator_ClassifyFace(t *testing.T) {
	e := NewEstimator(DefaultThreshold)

	t.Run("no face", func(t *testing.T) {
		res, err := e.ClassifyFace(nil)
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	})

	t.Run("open eyes", func(t *testing.T) {
		face := detector.OpenEyesFace()
		res, err := e.ClassifyFace(&face)
		require.NoError(t, err)
		assert.True(t, res.Focused)
		assert.True(t, res.FaceDetected)
		assert.InDelta(t, 0.4, res.Ratio, 1e-9)
	})

	t.Run("closed eyes", func(t *testing.T) {
		face := detector.ClosedEyesFace()
		res, err := e.ClassifyFace(&face)
		require.NoError(t, err)
		assert.False(t, res.Focused)
		assert.InDelta(t, 0.02, res.Ratio, 1e-9)
	})

	t.Run("truncated landmark list", func(t *testing.T) {
		face := detector.FaceLandmarks{Points: make([]detector.Point3D, 100)}
		res, err := e.ClassifyFace(&face)
		assert.ErrorIs(t, err, ErrInvalidLandmarkSet)
		assert.False(t, res.Focused)
		assert.True(t, res.FaceDetected)
	})
}

func TestCalibrate(t *testing.T) {
	t.Run("mean times fraction", func(t *testing.T) {
		got, n, err := Calibrate([]float64{0.3, 0.35, 0.4}, 0.5)
		require.NoError(t, err)
		assert.InDelta(t, 0.175, got, 1e-9)
		assert.Equal(t, 3, n)
	})

	t.Run("ignores unusable samples", func(t *testing.T) {
		got, n, err := Calibrate([]float64{0, math.NaN(), 0.3, math.Inf(1), -0.1}, 0.5)
		require.NoError(t, err)
		assert.InDelta(t, 0.15, got, 1e-9)
		assert.Equal(t, 1, n, "only usable samples are counted")
	})

	t.Run("default fraction", func(t *testing.T) {
		got, _, err := Calibrate([]float64{0.4}, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.4*DefaultCalibrationFraction, got, 1e-9)
	})

	t.Run("no samples", func(t *testing.T) {
		_, _, err := Calibrate(nil, 0.7)
		assert.ErrorIs(t, err, ErrNoCalibrationSamples)

		_, _, err = Calibrate([]float64{0, 0}, 0.7)
		assert.ErrorIs(t, err, ErrNoCalibrationSamples)
	})
}
