// Package report turns a completed session into summary statistics and
// charts (PNG via gonum/plot, interactive HTML via go-echarts).
package report

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/lizard/internal/session"
)

// Summary is the JSON-friendly digest of a session report.
type Summary struct {
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	FocusedSeconds float64      `json:"focused_seconds"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	FocusPercent   float64      `json:"focus_percent"`
	Band           session.Band `json:"band"`
	Message        string       `json:"message"`
	Samples        int          `json:"samples"`
	FocusedSamples int          `json:"focused_samples"`
	RatioMean      float64      `json:"ratio_mean"`
	RatioStdDev    float64      `json:"ratio_stddev"`
	Timestamps     []float64    `json:"timestamps"`
	Scores         []float64    `json:"scores"`
}

// Summarize computes the digest of r.
func Summarize(r session.Report) Summary {
	timestamps, scores := r.Series()

	s := Summary{
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		FocusedSeconds: r.FocusedTime.Seconds(),
		ElapsedSeconds: r.TotalElapsed.Seconds(),
		FocusPercent:   r.FocusPercent,
		Band:           r.Band(),
		Message:        r.Band().Message(),
		Samples:        len(r.History),
		Timestamps:     timestamps,
		Scores:         scores,
	}

	for _, o := range r.History {
		if o.Focused {
			s.FocusedSamples++
		}
	}

	s.RatioMean, s.RatioStdDev = ratioStats(r.Ratios())
	return s
}

// ratioStats returns mean and sample standard deviation, with zeros where
// they are undefined so the result always encodes as JSON.
func ratioStats(ratios []float64) (mean, stddev float64) {
	switch len(ratios) {
	case 0:
		return 0, 0
	case 1:
		return ratios[0], 0
	}
	return stat.MeanStdDev(ratios, nil)
}
