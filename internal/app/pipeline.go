package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/session"
)

// Start opens the camera and begins the capture loop. Frames are only
// read while a session is running. Calling Start twice is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info("capture pipeline started", zap.Int("fps", a.camera.FPS()))
	return nil
}

// Stop halts the capture loop, completes a running session and releases
// the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	a.mu.Lock()
	if a.acc.State() == session.Running {
		if _, err := a.stopLocked(a.now()); err != nil {
			a.log.Error("failed to stop session", zap.Error(err))
		}
	}
	det := a.detector
	a.mu.Unlock()

	if err := a.camera.Close(); err != nil {
		a.log.Warn("error closing camera", zap.Error(err))
	}

	if det != nil {
		if err := det.Close(); err != nil {
			a.log.Warn("error closing detector", zap.Error(err))
		}
	}

	a.log.Info("capture pipeline stopped")
}

// runPipeline reads one frame per tick at the camera's frame rate while a
// session is running, and stops the session when its target is reached
// even if frames are failing.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if a.Status().State != session.Running.String() {
				continue
			}
			a.processFrame()
			a.CheckTarget(a.now())
		}
	}
}

// processFrame runs one camera frame through detection and into the
// session. A detector failure skips the frame; the time until the next
// observation is credited by that observation.
func (a *App) processFrame() {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.Debug("error reading frame", zap.Error(err))
		return
	}
	defer frame.Close()

	det := a.Detector()
	if det == nil {
		return
	}

	faces, err := det.Detect(frame)
	if err != nil {
		a.log.Warn("face detection failed", zap.Error(err))
		return
	}

	if _, err := a.ProcessFaces(a.now(), faces); err != nil {
		a.log.Debug("frame dropped", zap.Error(err))
	}
}
