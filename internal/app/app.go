// Package app runs the Lizard focus-tracking pipeline: frames from the
// camera go through the face detector and focus estimator into the
// current session.
package app

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/capture"
	"github.com/ayusman/lizard/internal/detector"
	"github.com/ayusman/lizard/internal/focus"
	"github.com/ayusman/lizard/internal/hook"
	"github.com/ayusman/lizard/internal/logger"
	"github.com/ayusman/lizard/internal/report"
	"github.com/ayusman/lizard/internal/session"
	"github.com/ayusman/lizard/internal/store"
)

// Session length limits.
const (
	MinTarget     = time.Minute
	MaxTarget     = 60 * time.Minute
	DefaultTarget = 10 * time.Minute
)

var (
	// ErrNoReport is returned by LastReport before any session has completed.
	ErrNoReport = errors.New("no completed session")
	// ErrInvalidThreshold is returned for thresholds outside (0, 1).
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
	// ErrInvalidTarget is returned for session lengths outside 1 to 60 minutes.
	ErrInvalidTarget = errors.New("target must be between 1 and 60 minutes")
)

// HookSink receives session lifecycle events. Fire must not block.
type HookSink interface {
	Fire(event, sessionID string, payload any)
}

// Config holds configuration options for the application.
type Config struct {
	// Camera is the frame source. Built from CameraConfig when nil.
	Camera       capture.Camera
	CameraConfig capture.Config
	// Detector finds faces. When nil the MediaPipe service is tried, then
	// a mock detector that never reports a face.
	Detector       detector.Detector
	DetectorConfig detector.Config
	// Store persists threshold and target changes. Optional. Saved values
	// replace Threshold and Target unless they are pinned.
	Store *store.Store
	// PinThreshold and PinTarget keep the configured values over saved
	// ones, for values given explicitly on the command line.
	PinThreshold bool
	PinTarget    bool
	// Hooks is told about started and completed sessions. Optional.
	Hooks     HookSink
	Threshold float64
	RatioFunc focus.RatioFunc
	Target    time.Duration
	Logger    *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Status is a snapshot of the live session, pushed to subscribers after
// every observation.
type Status struct {
	SessionID        string  `json:"session_id,omitempty"`
	State            string  `json:"state"`
	Focused          bool    `json:"focused"`
	FaceDetected     bool    `json:"face_detected"`
	Ratio            float64 `json:"ratio"`
	Threshold        float64 `json:"threshold"`
	TargetSeconds    float64 `json:"target_seconds"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	FocusedSeconds   float64 `json:"focused_seconds"`
	FocusPercent     float64 `json:"focus_percent"`
}

// App owns the session and everything that feeds it.
type App struct {
	config    Config
	log       *zap.Logger
	now       func() time.Time
	camera    capture.Camera
	detector  detector.Detector
	estimator *focus.Estimator
	acc       *session.Accumulator

	target     time.Duration
	sessionID  string
	last       focus.Result
	lastReport *session.Report

	subscribers map[int]func(Status)
	nextSubID   int

	// seq numbers published snapshots. notifyMu serializes delivery and
	// notified is the newest seq delivered.
	seq      uint64
	notifyMu sync.Mutex
	notified uint64

	mu     sync.RWMutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an App. Settings saved in the store take precedence over the
// configured threshold and target unless PinThreshold or PinTarget is set.
func New(config Config) *App {
	log := logger.OrNop(config.Logger).Named("app")

	now := config.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		config:      config,
		log:         log,
		now:         now,
		camera:      config.Camera,
		detector:    config.Detector,
		acc:         session.New(),
		target:      config.Target,
		subscribers: make(map[int]func(Status)),
	}

	threshold := config.Threshold
	if config.Store != nil {
		settings := config.Store.Settings()
		if v, err := settings.Float(store.KeyThreshold); err == nil {
			if config.PinThreshold {
				log.Info("configured threshold overrides saved value",
					zap.Float64("threshold", threshold), zap.Float64("saved", v))
			} else {
				threshold = v
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Warn("ignoring stored threshold", zap.Error(err))
		}
		if v, err := settings.Int(store.KeyTargetMinutes); err == nil {
			if config.PinTarget {
				log.Info("configured target overrides saved value",
					zap.Duration("target", a.target), zap.Int("saved_minutes", v))
			} else {
				a.target = time.Duration(v) * time.Minute
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Warn("ignoring stored target", zap.Error(err))
		}
	}

	if a.target < MinTarget || a.target > MaxTarget {
		a.target = DefaultTarget
	}
	a.estimator = a.newEstimator(threshold)

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraConfig)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(config.DetectorConfig); err == nil {
			a.detector = mp
			log.Info("using MediaPipe face mesh")
		} else {
			log.Warn("MediaPipe not available, using mock detector", zap.Error(err))
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

func (a *App) newEstimator(threshold float64) *focus.Estimator {
	var opts []focus.Option
	if a.config.RatioFunc != nil {
		opts = append(opts, focus.WithRatioFunc(a.config.RatioFunc))
	}
	return focus.NewEstimator(threshold, opts...)
}

// StartSession begins a new session of the given length; zero means the
// default target. A running session is discarded and restarted.
func (a *App) StartSession(target time.Duration) (Status, error) {
	if target == 0 {
		target = a.Target()
	}
	if target < MinTarget || target > MaxTarget {
		return Status{}, ErrInvalidTarget
	}

	a.mu.Lock()
	if a.acc.State() == session.Running {
		a.log.Info("restarting running session", zap.String("session_id", a.sessionID))
	}
	now := a.now()
	a.acc.Start(now)
	a.target = target
	a.sessionID = uuid.NewString()
	a.last = focus.Result{}
	seq, status := a.publishLocked(now)
	a.mu.Unlock()

	a.log.Info("session started",
		zap.String("session_id", status.SessionID),
		zap.Duration("target", target),
		zap.Float64("threshold", status.Threshold),
	)
	a.fire(hook.EventSessionStarted, status.SessionID, status)
	a.notify(seq, status)
	return status, nil
}

// StopSession ends the running session and returns its report. Stopping
// an already stopped session returns the same report again.
func (a *App) StopSession() (session.Report, error) {
	a.mu.Lock()
	now := a.now()
	r, err := a.stopLocked(now)
	if err != nil {
		a.mu.Unlock()
		return session.Report{}, err
	}
	seq, status := a.publishLocked(now)
	a.mu.Unlock()

	a.notify(seq, status)
	return r, nil
}

// stopLocked stops the accumulator. Callers hold a.mu.
func (a *App) stopLocked(now time.Time) (session.Report, error) {
	wasRunning := a.acc.State() == session.Running

	r, err := a.acc.Stop(now)
	if err != nil {
		return session.Report{}, err
	}

	if wasRunning {
		a.lastReport = &r
		a.log.Info("session completed",
			zap.String("session_id", a.sessionID),
			zap.Duration("elapsed", r.TotalElapsed),
			zap.Duration("focused", r.FocusedTime),
			zap.Float64("focus_percent", r.FocusPercent),
			zap.String("band", string(r.Band())),
		)
		a.fire(hook.EventSessionCompleted, a.sessionID, report.Summarize(r))
	}
	return r, nil
}

func (a *App) fire(event, sessionID string, payload any) {
	if a.config.Hooks != nil {
		a.config.Hooks.Fire(event, sessionID, payload)
	}
}

// ProcessFaces records one frame's detections in the running session. Only
// the first face is used. Faces with malformed eye landmarks are logged
// and counted as not focused. The session stops once its target length is
// reached.
func (a *App) ProcessFaces(now time.Time, faces []detector.FaceLandmarks) (Status, error) {
	var face *detector.FaceLandmarks
	if len(faces) > 0 {
		face = &faces[0]
	}

	a.mu.Lock()
	if a.acc.State() != session.Running {
		a.mu.Unlock()
		return Status{}, session.ErrNotRunning
	}

	result, err := a.estimator.ClassifyFace(face)
	if err != nil {
		a.log.Warn("unusable face landmarks", zap.Error(err))
		result = focus.Result{FaceDetected: face != nil}
	}

	if err := a.acc.Observe(now, result.Focused, result.Ratio); err != nil {
		a.mu.Unlock()
		return Status{}, err
	}
	a.last = result

	a.enforceTargetLocked(now)
	seq, status := a.publishLocked(now)
	a.mu.Unlock()

	a.notify(seq, status)
	return status, nil
}

// CheckTarget stops the running session if its target length has passed.
// It reports whether a stop happened.
func (a *App) CheckTarget(now time.Time) bool {
	a.mu.Lock()
	stopped := a.enforceTargetLocked(now)
	if !stopped {
		a.mu.Unlock()
		return false
	}
	seq, status := a.publishLocked(now)
	a.mu.Unlock()

	a.notify(seq, status)
	return true
}

func (a *App) enforceTargetLocked(now time.Time) bool {
	_, remaining, err := a.acc.ElapsedAndRemaining(now, a.target)
	if err != nil || remaining > 0 {
		return false
	}
	if _, err := a.stopLocked(now); err != nil {
		a.log.Error("auto-stop failed", zap.Error(err))
		return false
	}
	return true
}

// Status returns a snapshot of the current session.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.statusLocked(a.now())
}

// publishLocked takes a snapshot for subscribers. Callers hold a.mu for
// writing, so seq follows the order of state changes.
func (a *App) publishLocked(now time.Time) (uint64, Status) {
	a.seq++
	return a.seq, a.statusLocked(now)
}

func (a *App) statusLocked(now time.Time) Status {
	s := Status{
		SessionID:     a.sessionID,
		State:         a.acc.State().String(),
		Threshold:     a.estimator.Threshold(),
		TargetSeconds: a.target.Seconds(),
	}

	switch a.acc.State() {
	case session.Running:
		elapsed, remaining, _ := a.acc.ElapsedAndRemaining(now, a.target)
		s.Focused = a.last.Focused
		s.FaceDetected = a.last.FaceDetected
		s.Ratio = a.last.Ratio
		s.ElapsedSeconds = elapsed.Seconds()
		s.RemainingSeconds = remaining.Seconds()
		s.FocusedSeconds = a.acc.FocusedTime().Seconds()
		if elapsed > 0 {
			s.FocusPercent = s.FocusedSeconds / s.ElapsedSeconds * 100
		}
	case session.Completed:
		if a.lastReport != nil {
			s.ElapsedSeconds = a.lastReport.TotalElapsed.Seconds()
			s.FocusedSeconds = a.lastReport.FocusedTime.Seconds()
			s.FocusPercent = a.lastReport.FocusPercent
		}
	}
	return s
}

// LastReport returns the report of the most recently completed session.
func (a *App) LastReport() (session.Report, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastReport == nil {
		return session.Report{}, ErrNoReport
	}
	return *a.lastReport, nil
}

// Threshold returns the current focus threshold.
func (a *App) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.estimator.Threshold()
}

// SetThreshold replaces the focus threshold and persists it when a store
// is configured. It applies from the next frame on.
func (a *App) SetThreshold(threshold float64) error {
	if !(threshold > 0 && threshold < 1) {
		return ErrInvalidThreshold
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetFloat(store.KeyThreshold, threshold); err != nil {
			return fmt.Errorf("save threshold: %w", err)
		}
	}

	a.mu.Lock()
	a.estimator = a.newEstimator(threshold)
	a.mu.Unlock()

	a.log.Info("threshold updated", zap.Float64("threshold", threshold))
	return nil
}

// Target returns the default session length.
func (a *App) Target() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// SetTarget sets the default session length, rounded down to whole minutes,
// and persists it when a store is configured. A running session keeps its
// own length.
func (a *App) SetTarget(target time.Duration) error {
	target = target.Truncate(time.Minute)
	if target < MinTarget || target > MaxTarget {
		return ErrInvalidTarget
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetInt(store.KeyTargetMinutes, int(target/time.Minute)); err != nil {
			return fmt.Errorf("save target: %w", err)
		}
	}

	a.mu.Lock()
	if a.acc.State() != session.Running {
		a.target = target
	}
	a.mu.Unlock()
	return nil
}

// Calibrate derives a threshold from eyes-open sample ratios and applies it.
// It also returns how many of the ratios were usable.
func (a *App) Calibrate(ratios []float64, fraction float64) (threshold float64, samples int, err error) {
	threshold, samples, err = focus.Calibrate(ratios, fraction)
	if err != nil {
		return 0, 0, err
	}
	if err := a.SetThreshold(threshold); err != nil {
		return 0, 0, err
	}
	return threshold, samples, nil
}

// Subscribe registers fn to receive status snapshots. Snapshots arrive one
// at a time in the order the state changed; one overtaken by a newer
// snapshot is dropped. fn must not start or stop sessions. The returned
// func removes the subscription.
func (a *App) Subscribe(fn func(Status)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

func (a *App) notify(seq uint64, status Status) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	if seq <= a.notified {
		return
	}
	a.notified = seq

	a.mu.RLock()
	subs := make([]func(Status), 0, len(a.subscribers))
	for _, id := range slices.Sorted(maps.Keys(a.subscribers)) {
		subs = append(subs, a.subscribers[id])
	}
	a.mu.RUnlock()

	for _, fn := range subs {
		fn(status)
	}
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetDetector replaces the face detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}
