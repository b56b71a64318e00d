package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/lavandowski/internal/bus"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/export"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// Limits for the dashboard query parameters.
const (
	defaultStatsDays = 7
	maxStatsDays     = 30
	maxRunDays       = 30
)

// Handler holds dependencies for API handlers.
type Handler struct {
	warehouse domain.Warehouse
	catalog   *warehouse.Catalog
	cache     domain.Cache
	bus       domain.EventBus
	registry  *Registry
	version   string
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Handler{
		warehouse: deps.Warehouse,
		catalog:   deps.Catalog,
		cache:     deps.Cache,
		bus:       deps.Bus,
		registry:  registry,
		version:   deps.Version,
		now:       time.Now,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready pings the warehouse, cache and bus.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	ready := true

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}
	if h.warehouse != nil {
		check("warehouse", func() error { return h.warehouse.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("event_bus", func() error { return h.bus.Ping(ctx) })
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

// Stats returns dashboard statistics for the last N days.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxStatsDays {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("days must be between 1 and %d", maxStatsDays),
			})
			return
		}
		days = n
	}
	if h.warehouse == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warehouse not configured"})
		return
	}

	stats, err := warehouse.Stats(r.Context(), h.warehouse, h.catalog, days, h.now())
	if err != nil {
		slog.Error("failed to compute stats", "days", days, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CreateRunRequest is the request body for POST /runs.
type CreateRunRequest struct {
	Days   int   `json:"days"`
	UserID int64 `json:"user_id,omitempty"`
	DryRun bool  `json:"dry_run"`
}

// CreateRun queues a batch on the bus.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	if req.Days < 0 || req.Days > maxRunDays {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("days must be between 0 and %d", maxRunDays),
		})
		return
	}
	if req.UserID < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id must be positive"})
		return
	}
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus not configured"})
		return
	}

	run := domain.RunRequest{
		RunID:  uuid.New().String(),
		Days:   req.Days,
		UserID: req.UserID,
		DryRun: req.DryRun,
	}
	h.registry.Requested(run)

	ctx := bus.WithMetadata(r.Context(), "request_id", RequestID(r.Context()))
	if err := bus.PublishJSON(ctx, h.bus, domain.TopicRunRequested, run); err != nil {
		slog.Error("failed to publish run request", "run_id", run.RunID, "error", err)
		h.registry.Failed(run.RunID, "failed to queue run")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "failed to queue run"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.RunID})
}

// ListRuns returns known runs without their case results.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.registry.List()
	for _, run := range runs {
		run.Results = []domain.CaseResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// RunResponse is a run plus its progress estimate.
type RunResponse struct {
	*domain.RunRecord
	Percent          float64 `json:"percent"`
	RemainingSeconds int64   `json:"remaining_seconds"`
}

// GetRun returns progress, results and summary for a run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := RunResponse{RunRecord: run}
	if run.Total > 0 {
		resp.Percent = float64(run.Done) / float64(run.Total) * 100
	}
	resp.RemainingSeconds = int64(Remaining(run, h.now()).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// ExportRun streams a run report as CSV, JSON or PDF.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.JSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, export.Filename(run.RunID, format, h.now())))
	if err := export.Write(w, run, format); err != nil {
		slog.Error("failed to export run", "run_id", run.RunID, "format", format, "error", err)
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*domain.RunRecord, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.registry.Get(id)
	if errors.Is(err, ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
