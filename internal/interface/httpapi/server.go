// Package httpapi exposes health, metrics, job status and manual job runs.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/internal/scheduler"
	"travelsync-service/pkg/logger"
)

// JobRunner is the part of the scheduler the admin surface uses
type JobRunner interface {
	Status() []scheduler.JobStatus
	StatusOf(name string) (scheduler.JobStatus, error)
	Trigger(ctx context.Context, name string) (entity.JobSummary, error)
	TriggerAsync(name string) error
}

// Deps are the handler dependencies
type Deps struct {
	Jobs      JobRunner
	RunLog    repository.RunLogRepository
	Gatherer  prometheus.Gatherer
	Logger    logger.Logger
	Version   string
	StartTime time.Time
}

// NewRouter builds the admin router
func NewRouter(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(d.Logger))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Get("/{name}", h.getJob)
		r.Get("/{name}/runs", h.listRuns)
		r.Post("/{name}/run", h.runJob)
	})
	return r
}

// Server wraps the HTTP server
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// NewServer creates the admin HTTP server on port
func NewServer(port string, readTimeout, writeTimeout time.Duration, handler http.Handler, logger logger.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func accessLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)
			log.Debug("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
