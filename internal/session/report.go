package session

import "time"

// Band is the qualitative rating of a session's focus percentage.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Band thresholds in percent.
const (
	HighFocusPercent   = 80.0
	MediumFocusPercent = 50.0
)

// BandFor rates a focus percentage: 80 and above is high, 50 and above
// is medium, anything lower is low.
func BandFor(percent float64) Band {
	switch {
	case percent >= HighFocusPercent:
		return BandHigh
	case percent >= MediumFocusPercent:
		return BandMedium
	default:
		return BandLow
	}
}

// Message returns the feedback shown to the user for the band.
func (b Band) Message() string {
	switch b {
	case BandHigh:
		return "Amazing! You maintained strong focus throughout. Keep this up!"
	case BandMedium:
		return "Good effort! A little more consistency and you'll nail it."
	default:
		return "Tough session? It's okay, the next one will be better!"
	}
}

// Report is the immutable summary of a completed session.
type Report struct {
	StartedAt    time.Time
	EndedAt      time.Time
	FocusedTime  time.Duration
	TotalElapsed time.Duration
	FocusPercent float64
	History      []Observation
}

// Band rates the report's focus percentage.
func (r Report) Band() Band {
	return BandFor(r.FocusPercent)
}

// Series returns the history as two parallel plot series: seconds since
// start, and 1 for focused or 0 for not focused.
func (r Report) Series() (timestamps, scores []float64) {
	timestamps = make([]float64, len(r.History))
	scores = make([]float64, len(r.History))
	for i, o := range r.History {
		timestamps[i] = o.Offset.Seconds()
		if o.Focused {
			scores[i] = 1
		}
	}
	return timestamps, scores
}

// Ratios returns the eye ratio of every observation in order.
func (r Report) Ratios() []float64 {
	ratios := make([]float64, len(r.History))
	for i, o := range r.History {
		ratios[i] = o.Ratio
	}
	return ratios
}

// clone copies the history so callers cannot alter a stored report.
func (r Report) clone() Report {
	if r.History != nil {
		h := make([]Observation, len(r.History))
		copy(h, r.History)
		r.History = h
	}
	return r
}
