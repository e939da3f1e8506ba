package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/services/jobs"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
	"github.com/vsinha/csatrack/pkg/infrastructure/events"
)

// JobService is the slice of the job runner the API exposes
type JobService interface {
	Start(ctx context.Context, clinic string) (string, error)
	Status(ctx context.Context, id string) (repositories.Job, error)
	Result(ctx context.Context, key string) ([]byte, error)
	Clinics() []string
}

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuditLog serves a customer's reconciliation events
type AuditLog interface {
	Read(stream string, fromVersion int) []events.Event
}

// RouterOption configures optional API surfaces
type RouterOption func(*handler)

// WithAuditLog mounts GET /api/v1/audit/{customer}
func WithAuditLog(log AuditLog) RouterOption {
	return func(h *handler) {
		h.audit = log
	}
}

type handler struct {
	jobs   JobService
	health Pinger
	audit  AuditLog
	logger *zap.Logger
}

type jobResponse struct {
	ID        string    `json:"id"`
	Clinic    string    `json:"clinic"`
	Status    string    `json:"status"`
	JSONKey   string    `json:"json_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRouter builds the HTTP API. health may be nil.
func NewRouter(svc JobService, health Pinger, logger *zap.Logger, opts ...RouterOption) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics, err := newHTTPMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, err
	}
	h := &handler{jobs: svc, health: health, logger: logger}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.middleware)
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/clinics", h.listClinics)
		r.Post("/jobs", h.startJob)
		r.Get("/jobs/{id}", h.getJob)
		r.Get("/results/*", h.getResult)
		if h.audit != nil {
			r.Get("/audit/{customer}", h.getAudit)
		}
	})
	return r, nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listClinics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"clinics": h.jobs.Clinics()})
}

func (h *handler) startJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Clinic string `json:"clinic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Clinic) == "" {
		writeError(w, http.StatusBadRequest, "clinic is required")
		return
	}

	id, err := h.jobs.Start(r.Context(), req.Clinic)
	switch {
	case errors.Is(err, jobs.ErrUnknownClinic):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to start job", zap.String("clinic", req.Clinic), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": string(repositories.JobPending)})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Status(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, entities.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case err != nil:
		h.logger.Error("failed to load job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		ID:        job.ID,
		Clinic:    job.Clinic,
		Status:    string(job.Status),
		JSONKey:   job.ResultKey,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

func (h *handler) getResult(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, "result key is required")
		return
	}

	blob, err := h.jobs.Result(r.Context(), key)
	switch {
	case errors.Is(err, entities.ErrResultNotFound):
		writeError(w, http.StatusNotFound, "result not found")
		return
	case err != nil:
		h.logger.Error("failed to load result", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// getAudit returns the customer's retained events; ?from=N skips versions below N and
// ?last=true keeps only the most recent run
func (h *handler) getAudit(w http.ResponseWriter, r *http.Request) {
	from := 1
	if raw := r.URL.Query().Get("from"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "from must be a positive integer")
			return
		}
		from = n
	}

	recorded := h.audit.Read(chi.URLParam(r, "customer"), from)
	if r.URL.Query().Get("last") == "true" {
		recorded = events.LastRun(recorded)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recorded})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type httpMetrics struct {
	requestDuration metric.Float64Histogram
	inFlight        metric.Int64UpDownCounter
}

func newHTTPMetrics(provider metric.MeterProvider) (*httpMetrics, error) {
	meter := provider.Meter("csatrack/http")
	requestDuration, err := meter.Float64Histogram("http.server.duration_ms")
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("http.server.in_flight")
	if err != nil {
		return nil, err
	}
	return &httpMetrics{requestDuration: requestDuration, inFlight: inFlight}, nil
}

// middleware records duration by route pattern and status
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		m.requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status_code", strconv.Itoa(ww.Status())),
		))
	})
}
