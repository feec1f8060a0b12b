// Package api exposes the import pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stratix-platform/initiative-import/internal/config"
	"github.com/stratix-platform/initiative-import/internal/importer"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/report"
)

// TenantHeader carries the already-authenticated tenant of a request.
const TenantHeader = "X-Tenant-ID"

// Importer runs imports. *importer.Importer satisfies it.
type Importer interface {
	ImportFile(ctx context.Context, req importer.FileRequest) (*report.Result, error)
	ImportRows(ctx context.Context, req importer.RowsRequest) (*report.Result, error)
}

// EventLister reads the audit trail of an import.
type EventLister interface {
	ListAuditEvents(ctx context.Context, importID string) ([]model.AuditEvent, error)
}

// Config tunes the HTTP surface.
type Config struct {
	Debug            bool
	ImportsPerSecond float64
	Burst            int
	CORSOrigins      []string
	MaxUploadMB      int
}

// ConfigFromSettings maps the server section of the application config.
func ConfigFromSettings(s config.ServerConfig) Config {
	return Config{
		Debug:            s.Debug,
		ImportsPerSecond: s.ImportsPerSecond,
		Burst:            s.Burst,
		CORSOrigins:      s.CORSOrigins,
		MaxUploadMB:      s.MaxUploadMB,
	}
}

// Server serves the import endpoints.
type Server struct {
	importer Importer
	events   EventLister
	cfg      Config
	limiter  *rate.Limiter
}

// New returns a Server. Imports start at most cfg.ImportsPerSecond times a
// second (unlimited when zero or negative).
func New(im Importer, events EventLister, cfg Config) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	limit := rate.Inf
	if cfg.ImportsPerSecond > 0 {
		limit = rate.Limit(cfg.ImportsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		importer: im,
		events:   events,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", TenantHeader},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/imports", func(r chi.Router) {
		r.Use(requireTenant)
		r.With(s.throttle).Post("/upload", s.handleUpload)
		r.With(s.throttle).Post("/rows", s.handleRows)
		r.Get("/{importID}/events", s.handleEvents)
	})
	return r
}

type tenantKey struct{}

func tenantFrom(ctx context.Context) string {
	t, _ := ctx.Value(tenantKey{}).(string)
	return t
}

func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(TenantHeader)
		if tenant == "" {
			writeError(w, http.StatusBadRequest, errorBody{Error: TenantHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, tenant)))
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errorBody{Error: "imports are starting too quickly; retry shortly"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
