// Package api exposes the job scheduler and artifact cache over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"schedule-designgen/internal/cache"
	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/common/validation"
	"schedule-designgen/internal/scheduler"
)

const maxBodyBytes = 8 << 20

// JobService is the part of the scheduler the API drives.
type JobService interface {
	AddJob(job *scheduler.Job) error
	RemoveJob(key string) bool
	IsJobPending(key string) bool
	Snapshot() scheduler.Snapshot
}

type Handler struct {
	jobs      JobService
	artifacts cache.Store
	overrides cache.OverrideStore
	schema    *validation.Schema
	logger    logger.Logger
}

func NewHandler(jobs JobService, artifacts cache.Store, overrides cache.OverrideStore, log logger.Logger) *Handler {
	if overrides == nil {
		overrides = cache.NoopOverrides{}
	}
	return &Handler{
		jobs:      jobs,
		artifacts: artifacts,
		overrides: overrides,
		schema:    validation.MustCompile(submitSchema),
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Register mounts the job and artifact routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /jobs", h.submitJob)
	mux.HandleFunc("GET /jobs", h.listJobs)
	mux.HandleFunc("GET /jobs/pending", h.pending)
	mux.HandleFunc("DELETE /jobs/{key}", h.removeJob)
	mux.HandleFunc("GET /artifacts/{key}", h.getArtifact)
	mux.HandleFunc("GET /artifacts/{key}/raster", h.getArtifactBytes(false))
	mux.HandleFunc("GET /artifacts/{key}/document", h.getArtifactBytes(true))
}

func (h *Handler) submitJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError(fmt.Sprintf("read body: %v", err)))
		return
	}

	result, err := h.schema.ValidateBytes(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError(err.Error()))
		return
	}
	if !result.Valid {
		stdErr := apperrors.NewInvalidJobError("request does not match schema")
		stdErr.Metadata = map[string]interface{}{"errors": result.Errors}
		h.writeError(w, http.StatusBadRequest, stdErr)
		return
	}

	var req SubmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError(err.Error()))
		return
	}
	if !validation.ValidateURL(req.Template.SourceURL) || !validation.ValidateURL(req.Template.LayersURL) {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError("template urls must be absolute http(s) urls"))
		return
	}
	rangeStart, ok := parseRangeStart(req.RangeStart)
	if !ok {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError("rangeStart must be RFC3339 or YYYY-MM-DD"))
		return
	}

	job := &scheduler.Job{
		Key:          req.Key,
		Template:     req.Template,
		ScheduleData: req.ScheduleData,
		RangeStart:   rangeStart,
		ForceRefresh: req.ForceRefresh,
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
	}

	if err := h.jobs.AddJob(job); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrStopped):
			h.writeError(w, http.StatusServiceUnavailable, apperrors.AsStandard(err))
		case apperrors.HasCode(err, apperrors.ErrCodeJobPending):
			h.writeError(w, http.StatusConflict, apperrors.AsStandard(err))
		case apperrors.HasCode(err, apperrors.ErrCodeInvalidJob):
			h.writeError(w, http.StatusBadRequest, apperrors.AsStandard(err))
		default:
			h.writeError(w, http.StatusInternalServerError, apperrors.AsStandard(err))
		}
		return
	}

	h.logger.Info("Job submitted", map[string]interface{}{
		"key":          req.Key,
		"templateId":   req.Template.ID,
		"forceRefresh": req.ForceRefresh,
	})
	writeJSON(w, http.StatusAccepted, SubmitResponse{Key: req.Key, Status: string(scheduler.StateQueued)})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Snapshot())
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, apperrors.NewInvalidJobError("key query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, PendingResponse{Key: key, Pending: h.jobs.IsJobPending(key)})
}

func (h *Handler) removeJob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	removed := h.jobs.RemoveJob(key)
	if !removed {
		writeJSON(w, http.StatusNotFound, RemoveResponse{Key: key})
		return
	}
	h.logger.Info("Job removed", map[string]interface{}{"key": key})
	writeJSON(w, http.StatusOK, RemoveResponse{Key: key, Removed: true})
}

func (h *Handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	a, ok := h.lookup(w, r, key)
	if !ok {
		return
	}

	hasOverride, err := h.overrides.HasOverride(r.Context(), key)
	if err != nil {
		h.logger.Warn("Override lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	writeJSON(w, http.StatusOK, ArtifactResponse{Meta: a.Meta, HasOverride: hasOverride})
}

func (h *Handler) getArtifactBytes(document bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := h.lookup(w, r, r.PathValue("key"))
		if !ok {
			return
		}
		data := a.RasterBytes
		if document {
			data = a.DocumentBytes
		}
		if len(data) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, key string) (*cache.Artifact, bool) {
	a, err := h.artifacts.Get(r.Context(), key)
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"key": key, "error": "artifact not found"})
		return nil, false
	}
	if err != nil {
		h.writeError(w, http.StatusBadGateway, apperrors.AsStandard(err))
		return nil, false
	}
	return a, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err *apperrors.StandardError) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"errorCode": string(err.Code),
			"details":   err.Details,
		})
	}
	writeJSON(w, status, map[string]interface{}{"error": err})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
