package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/lizard/internal/app"
	"github.com/ayusman/lizard/internal/capture"
	"github.com/ayusman/lizard/internal/detector"
	"github.com/ayusman/lizard/internal/focus"
	"github.com/ayusman/lizard/internal/hook"
	"github.com/ayusman/lizard/internal/report"
	"github.com/ayusman/lizard/internal/server"
	"github.com/ayusman/lizard/internal/store"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newApp(s *store.Store, c *clock, hooks app.HookSink) *app.App {
	return app.New(app.Config{
		Camera:    capture.NewMockCamera(nil, false),
		Detector:  detector.NewMockDetector(),
		Store:     s,
		Hooks:     hooks,
		Threshold: focus.DefaultThreshold,
		Target:    10 * time.Minute,
		Now:       c.Now,
	})
}

func do(t *testing.T, client *http.Client, method, url, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, wantStatus int, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, wantStatus, body)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "lizard.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	c := &clock{t: t0}
	application := newApp(s, c, nil)

	ts := httptest.NewServer(server.New(server.Config{App: application}))
	defer ts.Close()
	client := ts.Client()

	t.Run("Health", func(t *testing.T) {
		decode(t, do(t, client, http.MethodGet, ts.URL+"/api/health", ""), http.StatusOK, nil)
	})

	t.Run("UpdateSettings", func(t *testing.T) {
		var settings struct {
			Threshold     float64 `json:"threshold"`
			TargetMinutes int     `json:"target_minutes"`
		}
		resp := do(t, client, http.MethodPut, ts.URL+"/api/settings", `{"threshold": 0.25, "target_minutes": 2}`)
		decode(t, resp, http.StatusOK, &settings)

		if settings.Threshold != 0.25 || settings.TargetMinutes != 2 {
			t.Errorf("settings = %+v", settings)
		}
	})

	t.Run("NoReportYet", func(t *testing.T) {
		decode(t, do(t, client, http.MethodGet, ts.URL+"/api/report", ""), http.StatusNotFound, nil)
	})

	t.Run("StopBeforeStart", func(t *testing.T) {
		decode(t, do(t, client, http.MethodPost, ts.URL+"/api/session/stop", ""), http.StatusConflict, nil)
	})

	var sessionID string
	t.Run("StartSession", func(t *testing.T) {
		var status app.Status
		decode(t, do(t, client, http.MethodPost, ts.URL+"/api/session/start", ""), http.StatusOK, &status)

		if status.State != "running" {
			t.Errorf("state = %q, want running", status.State)
		}
		if status.TargetSeconds != 120 {
			t.Errorf("target = %v, want 120 from saved settings", status.TargetSeconds)
		}
		sessionID = status.SessionID
	})

	t.Run("ObserveFrames", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			if _, err := application.ProcessFaces(t0.Add(time.Duration(i)*time.Second), []detector.FaceLandmarks{detector.OpenEyesFace()}); err != nil {
				t.Fatalf("ProcessFaces() error = %v", err)
			}
		}
		if _, err := application.ProcessFaces(t0.Add(4*time.Second), nil); err != nil {
			t.Fatalf("ProcessFaces() error = %v", err)
		}

		c.Set(t0.Add(4 * time.Second))
		var status app.Status
		decode(t, do(t, client, http.MethodGet, ts.URL+"/api/session", ""), http.StatusOK, &status)

		if status.SessionID != sessionID {
			t.Errorf("session id = %q, want %q", status.SessionID, sessionID)
		}
		if status.FaceDetected {
			t.Error("expected no face on the last frame")
		}
		if status.RemainingSeconds != 116 {
			t.Errorf("remaining = %v, want 116", status.RemainingSeconds)
		}
	})

	t.Run("StopSession", func(t *testing.T) {
		var summary report.Summary
		decode(t, do(t, client, http.MethodPost, ts.URL+"/api/session/stop", ""), http.StatusOK, &summary)

		if summary.FocusPercent != 75 {
			t.Errorf("focus percent = %v, want 75", summary.FocusPercent)
		}
		if summary.Band != "medium" {
			t.Errorf("band = %q, want medium", summary.Band)
		}
		if len(summary.Timestamps) != 4 {
			t.Errorf("timestamps = %v", summary.Timestamps)
		}
	})

	t.Run("Report", func(t *testing.T) {
		var summary report.Summary
		decode(t, do(t, client, http.MethodGet, ts.URL+"/api/report", ""), http.StatusOK, &summary)
		if summary.FocusedSeconds != 3 || summary.ElapsedSeconds != 4 {
			t.Errorf("summary = %v / %v, want 3 / 4", summary.FocusedSeconds, summary.ElapsedSeconds)
		}

		resp := do(t, client, http.MethodGet, ts.URL+"/api/report/chart.png", "")
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("chart content type = %q", ct)
		}
		png, _ := io.ReadAll(resp.Body)
		if !bytes.HasPrefix(png, []byte("\x89PNG")) {
			t.Error("chart is not a PNG")
		}
	})

	t.Run("Calibrate", func(t *testing.T) {
		var result struct {
			Threshold float64 `json:"threshold"`
			Samples   int     `json:"samples"`
		}
		resp := do(t, client, http.MethodPost, ts.URL+"/api/calibrate", `{"ratios": [0.3, 0.4, 0.5], "fraction": 0.5}`)
		decode(t, resp, http.StatusOK, &result)

		if result.Samples != 3 || result.Threshold < 0.1999 || result.Threshold > 0.2001 {
			t.Errorf("calibration = %+v", result)
		}
	})

	t.Run("SettingsSurviveRestart", func(t *testing.T) {
		restarted := newApp(s, c, nil)
		if got := restarted.Target(); got != 2*time.Minute {
			t.Errorf("target = %v, want 2m", got)
		}
		if got := restarted.Threshold(); got < 0.1999 || got > 0.2001 {
			t.Errorf("threshold = %v, want calibrated 0.2", got)
		}
		if _, err := restarted.LastReport(); err != app.ErrNoReport {
			t.Errorf("sessions must not survive a restart, got err = %v", err)
		}
	})
}

func TestE2E_CompletionHook(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	hookDir := filepath.Join(tmpDir, "hooks", "record")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(tmpDir, "completed.json")

	manifest := `{"name":"record","executable":"run.sh","events":["session.completed"]}`
	if err := os.WriteFile(filepath.Join(hookDir, hook.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > \"" + out + "\"\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(hookDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	manager := hook.NewManager(filepath.Join(tmpDir, "hooks"))
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	dispatcher := hook.NewDispatcher(manager, hook.NewExecutor(5*time.Second), nil)

	c := &clock{t: t0}
	application := newApp(nil, c, dispatcher)

	status, err := application.StartSession(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	// Reaching the target stops the session on its own.
	if _, err := application.ProcessFaces(t0.Add(time.Minute), []detector.FaceLandmarks{detector.OpenEyesFace()}); err != nil {
		t.Fatal(err)
	}
	dispatcher.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}

	var req struct {
		Event     string         `json:"event"`
		SessionID string         `json:"session_id"`
		Payload   report.Summary `json:"payload"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("hook input is not JSON: %v", err)
	}
	if req.Event != hook.EventSessionCompleted || req.SessionID != status.SessionID {
		t.Errorf("hook request = %s %s", req.Event, req.SessionID)
	}
	if req.Payload.FocusPercent != 100 || req.Payload.Band != "high" {
		t.Errorf("payload = %v%% %s", req.Payload.FocusPercent, req.Payload.Band)
	}
}
