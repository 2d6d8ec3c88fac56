package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/ayusman/lizard/internal/report"
	"github.com/ayusman/lizard/internal/session"
)

// ReportHandler serves the last completed session as JSON, PNG or HTML
// under /api/report.
type ReportHandler struct {
	svc SessionService
}

// NewReportHandler creates a ReportHandler backed by svc.
func NewReportHandler(svc SessionService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ServeHTTP routes report requests.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rep, err := h.svc.LastReport()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/report"), "/") {
	case "":
		writeJSON(w, http.StatusOK, report.Summarize(rep))
	case "chart.png":
		h.png(w, rep)
	case "chart.html":
		h.html(w, rep)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ReportHandler) png(w http.ResponseWriter, rep session.Report) {
	var buf bytes.Buffer
	if err := report.WritePNG(&buf, rep); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (h *ReportHandler) html(w http.ResponseWriter, rep session.Report) {
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rep); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
