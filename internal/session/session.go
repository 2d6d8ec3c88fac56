// Package session accumulates per-frame focus classifications into
// focused time, a plottable history and a final report.
//
// An Accumulator is not safe for concurrent use. One goroutine drives
// Observe in capture order; callers that read progress from elsewhere
// must synchronize access themselves.
package session

import (
	"errors"
	"time"
)

// ErrNotRunning is returned when an operation requires a running session.
var ErrNotRunning = errors.New("session is not running")

// State is the lifecycle state of an Accumulator.
type State int

const (
	// Idle means no session has been started yet.
	Idle State = iota
	// Running means observations are being accumulated.
	Running
	// Completed means the session was stopped and its report is frozen.
	Completed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Observation is one classified frame.
type Observation struct {
	// Offset is the time since session start.
	Offset  time.Duration
	Focused bool
	Ratio   float64
}

// Accumulator owns the bookkeeping of one focus session.
// The zero value is an Idle accumulator ready for Start.
type Accumulator struct {
	state     State
	startTime time.Time
	lastCheck time.Time
	focused   time.Duration
	history   []Observation
	report    Report
}

// New returns an Idle Accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	return a.state
}

// Start begins a new session at now. Calling Start on a running or
// completed accumulator discards the previous session and starts over.
func (a *Accumulator) Start(now time.Time) {
	a.state = Running
	a.startTime = now
	a.lastCheck = now
	a.focused = 0
	a.history = nil
	a.report = Report{}
}

// Observe records the classification of one frame taken at now.
//
// The time since the previous observation is credited to focused time
// when focused is true. A clock that steps backwards contributes nothing:
// the observation is recorded at the last check time instead, so focused
// time never decreases and history offsets never go backwards.
func (a *Accumulator) Observe(now time.Time, focused bool, ratio float64) error {
	if a.state != Running {
		return ErrNotRunning
	}

	if now.Before(a.lastCheck) {
		now = a.lastCheck
	}

	if focused {
		a.focused += now.Sub(a.lastCheck)
	}
	a.lastCheck = now

	a.history = append(a.history, Observation{
		Offset:  now.Sub(a.startTime),
		Focused: focused,
		Ratio:   ratio,
	})
	return nil
}

// Stop ends the session at now and returns its report. Stopping a
// completed session returns the same report again. Stop before Start
// returns ErrNotRunning.
func (a *Accumulator) Stop(now time.Time) (Report, error) {
	switch a.state {
	case Completed:
		return a.report.clone(), nil
	case Running:
	default:
		return Report{}, ErrNotRunning
	}

	// The session cannot end before its last observation.
	if now.Before(a.lastCheck) {
		now = a.lastCheck
	}

	total := now.Sub(a.startTime)
	var percent float64
	if total > 0 {
		percent = 100 * a.focused.Seconds() / total.Seconds()
	}

	a.report = Report{
		StartedAt:    a.startTime,
		EndedAt:      now,
		FocusedTime:  a.focused,
		TotalElapsed: total,
		FocusPercent: percent,
		History:      a.history,
	}
	a.state = Completed
	a.history = nil

	return a.report.clone(), nil
}

// ElapsedAndRemaining reports the time since start and the time left
// until target. Remaining never goes below zero.
func (a *Accumulator) ElapsedAndRemaining(now time.Time, target time.Duration) (elapsed, remaining time.Duration, err error) {
	if a.state != Running {
		return 0, 0, ErrNotRunning
	}

	elapsed = now.Sub(a.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining = target - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return elapsed, remaining, nil
}

// StartTime returns when the current or last session started.
func (a *Accumulator) StartTime() time.Time {
	return a.startTime
}

// FocusedTime returns the focused time accumulated so far.
func (a *Accumulator) FocusedTime() time.Duration {
	return a.focused
}

// Len returns the number of observations in the running session.
func (a *Accumulator) Len() int {
	return len(a.history)
}

// History returns a copy of the running session's observations.
func (a *Accumulator) History() []Observation {
	if len(a.history) == 0 {
		return nil
	}
	out := make([]Observation, len(a.history))
	copy(out, a.history)
	return out
}
