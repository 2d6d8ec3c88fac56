package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/lizard/internal/focus"
)

// SettingsHandler serves GET/PUT /api/settings and POST /api/calibrate.
type SettingsHandler struct {
	svc SettingsService
}

// NewSettingsHandler creates a SettingsHandler backed by svc.
func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

type settingsResponse struct {
	Threshold     float64 `json:"threshold"`
	TargetMinutes int     `json:"target_minutes"`
}

// updateSettingsRequest holds the fields to change; absent fields are kept.
type updateSettingsRequest struct {
	Threshold     *float64 `json:"threshold" validate:"omitempty,gt=0,lt=1"`
	TargetMinutes *int     `json:"target_minutes" validate:"omitempty,gte=1,lte=60"`
}

type calibrateRequest struct {
	Ratios   []float64 `json:"ratios" validate:"required,min=1"`
	Fraction float64   `json:"fraction" validate:"omitempty,gt=0,lt=1"`
}

type calibrateResponse struct {
	Threshold float64 `json:"threshold"`
	Samples   int     `json:"samples"`
}

// ServeHTTP routes settings requests.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/settings":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.current())
		case http.MethodPut:
			h.update(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case "/api/calibrate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.calibrate(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SettingsHandler) current() settingsResponse {
	return settingsResponse{
		Threshold:     h.svc.Threshold(),
		TargetMinutes: int(h.svc.Target() / time.Minute),
	}
}

// update handles PUT /api/settings.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Threshold != nil {
		if err := h.svc.SetThreshold(*req.Threshold); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	if req.TargetMinutes != nil {
		if err := h.svc.SetTarget(time.Duration(*req.TargetMinutes) * time.Minute); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, h.current())
}

// calibrate handles POST /api/calibrate: the threshold becomes a fraction
// of the mean eyes-open ratio.
func (h *SettingsHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold, samples, err := h.svc.Calibrate(req.Ratios, req.Fraction)
	if err != nil {
		if errors.Is(err, focus.ErrNoCalibrationSamples) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calibrateResponse{Threshold: threshold, Samples: samples})
}
