package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/scheduler"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

type handlers struct {
	Deps
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type runResponse struct {
	Job     string             `json:"job"`
	Status  string             `json:"status"`
	Summary *entity.JobSummary `json:"summary,omitempty"`
	Message string             `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       h.Version,
		UptimeSeconds: time.Since(h.StartTime).Seconds(),
	})
}

func (h *handlers) listJobs(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Jobs.Status())
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.Jobs.StatusOf(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.Jobs.StatusOf(name); err != nil {
		h.writeError(w, err)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.RunLog.Recent(r.Context(), name, limit)
	if err != nil {
		h.Logger.Error("Failed to read run log", "job", name, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "run log unavailable"})
		return
	}
	if runs == nil {
		runs = []*entity.RunLogEntry{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// runJob starts a job now. With ?wait=true it blocks and returns the summary.
func (h *handlers) runJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		summary, err := h.Jobs.Trigger(r.Context(), name)
		switch {
		case errors.Is(err, scheduler.ErrUnknownJob), errors.Is(err, scheduler.ErrJobRunning):
			h.writeError(w, err)
		case err != nil:
			h.Logger.Warn("Manual job run failed", "job", name, "error", err)
			h.writeJSON(w, http.StatusBadGateway, runResponse{Job: name, Status: "failed", Summary: &summary, Message: apperrors.UserMessage(err)})
		default:
			h.writeJSON(w, http.StatusOK, runResponse{Job: name, Status: "completed", Summary: &summary})
		}
		return
	}

	if err := h.Jobs.TriggerAsync(name); err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info("Manual job run triggered", "job", name, "remote_ip", r.RemoteAddr)
	h.writeJSON(w, http.StatusAccepted, runResponse{Job: name, Status: "started"})
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, scheduler.ErrJobRunning):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Debug("Failed to write response", "error", err)
	}
}
