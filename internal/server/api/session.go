package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/lizard/internal/report"
)

// SessionHandler serves /api/session, /api/session/start and
// /api/session/stop.
type SessionHandler struct {
	svc SessionService
}

// NewSessionHandler creates a SessionHandler backed by svc.
func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type startSessionRequest struct {
	// DurationMinutes is the session length; zero uses the configured default.
	DurationMinutes int `json:"duration_minutes" validate:"omitempty,gte=1,lte=60"`
}

// ServeHTTP routes session requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.Trim(action, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, h.svc.Status())
	case "start":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.start(w, r)
	case "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.stop(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// start handles POST /api/session/start. A running session is restarted.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.svc.StartSession(time.Duration(req.DurationMinutes) * time.Minute)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// stop handles POST /api/session/stop and returns the session summary.
func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.StopSession()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report.Summarize(rep))
}
