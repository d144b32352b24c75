// Package server is the HTTP surface: page rendering, scan submission, and
// report download. Handlers stay thin; the scan pipeline lives in scanner,
// report, storage, and policy.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karhu-io/aclscan/config"
	"github.com/karhu-io/aclscan/policy"
	"github.com/karhu-io/aclscan/report"
	"github.com/karhu-io/aclscan/scanner"
	"github.com/karhu-io/aclscan/storage"
	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/wal"
)

// Server wires the scan pipeline behind the HTTP routes.
type Server struct {
	cfg      config.Config
	scanner  *scanner.Scanner
	reports  *report.Writer
	store    *storage.Store
	audit    *wal.WAL
	policies *policy.Engine // nil when risk flagging is disabled
	logger   *telemetry.Logger
	started  time.Time
}

// New assembles a Server. policies may be nil.
func New(cfg config.Config, sc *scanner.Scanner, reports *report.Writer, store *storage.Store, audit *wal.WAL, policies *policy.Engine) *Server {
	return &Server{
		cfg:      cfg,
		scanner:  sc,
		reports:  reports,
		store:    store,
		audit:    audit,
		policies: policies,
		logger:   telemetry.NewLogger("server"),
		started:  time.Now(),
	}
}

// Router builds the chi router with all public endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/", s.handleLoginPage)
	r.Get("/dashboard", s.handleDashboard)
	r.Post("/logout", s.handleLoginPage)

	r.Post("/submit_link", s.handleSubmitLink)
	r.Get("/download/{filename}", s.handleDownload)
	r.Get("/reports", s.handleReports)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metricsHandler())

	return r
}

// HTTPServer wraps the router in an http.Server with sane defaults.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) metricsHandler() http.Handler {
	if telemetry.PrometheusRegistry != nil {
		return promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// requestLogger logs one line per request with status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.WithContext(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Float64("duration_ms", float64(time.Since(start).Milliseconds())).
			Msg("request")
	})
}
