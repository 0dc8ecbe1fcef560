// Package api exposes the published sync state over HTTP.
//
// It is a thin adapter: reads come from the syncer's snapshot and writes go
// through the syncer, never to the store directly.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/syncer"
)

// Service is the orchestrator surface used by the API.
type Service interface {
	Snapshot() syncer.State
	Refresh() error
	RecordDecision(ctx context.Context, id string, decision profile.Decision) error
	ClearError()
}

// Handler serves the profile API.
type Handler struct {
	service  Service
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// New creates a Handler. A nil gatherer disables /metrics.
func New(service Service, logger *slog.Logger, gatherer prometheus.Gatherer) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger, gatherer: gatherer}
}

// Router returns a chi router with every route mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	h.Register(r)
	return r
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Get("/profiles", h.HandleListProfiles)
	r.Post("/profiles/{id}/decision", h.HandleRecordDecision)
	r.Post("/refresh", h.HandleRefresh)
	r.Delete("/error", h.HandleClearError)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HandleHealth implements GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	st := h.service.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": st.Online,
		"phase":  st.Phase,
	})
}

// HandleListProfiles implements GET /profiles.
func (h *Handler) HandleListProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(h.service.Snapshot()))
}

// DecisionRequest is the body of POST /profiles/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// HandleRecordDecision implements POST /profiles/{id}/decision.
// Input: { "decision": "accepted" }
func (h *Handler) HandleRecordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode decision request", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	decision, err := profile.ParseDecision(req.Decision)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.service.RecordDecision(ctx, id, decision); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh implements POST /refresh. The cycle runs in the background.
func (h *Handler) HandleRefresh(w http.ResponseWriter, _ *http.Request) {
	if err := h.service.Refresh(); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// HandleClearError implements DELETE /error.
func (h *Handler) HandleClearError(w http.ResponseWriter, _ *http.Request) {
	h.service.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, syncer.ErrClosed) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "shutting down"})
		return
	}
	var se *syncer.SyncError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: se.Message(), Kind: string(se.Kind)})
		return
	}
	h.logger.Error("unexpected service error", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
