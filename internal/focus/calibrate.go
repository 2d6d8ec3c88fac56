package focus

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// DefaultCalibrationFraction is the share of the mean open-eye ratio used as threshold.
const DefaultCalibrationFraction = 0.7

// ErrNoCalibrationSamples is returned when no usable ratio was supplied.
var ErrNoCalibrationSamples = errors.New("no usable calibration samples")

// Calibrate derives a per-user threshold from ratios recorded while the user
// looked at the screen with open eyes. The threshold is the mean of the
// usable samples scaled by fraction. Samples that are not finite or not
// positive (no face, degenerate geometry) are ignored; samples is the
// number that were used.
func Calibrate(ratios []float64, fraction float64) (threshold float64, samples int, err error) {
	if fraction <= 0 || fraction >= 1 || !finite(fraction) {
		fraction = DefaultCalibrationFraction
	}

	usable := make([]float64, 0, len(ratios))
	for _, r := range ratios {
		if finite(r) && r > 0 {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return 0, 0, ErrNoCalibrationSamples
	}

	return stat.Mean(usable, nil) * fraction, len(usable), nil
}
