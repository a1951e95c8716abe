// Package server wires the HTTP API, request logging and metrics around a
// storage engine.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-docdb/pkg/api"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// Server holds references to storage, router, etc.
type Server struct {
	router   *mux.Router
	dbEngine *storage.Engine
	logger   *zap.SugaredLogger
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes Prometheus metrics on /metrics.
func WithMetrics() Option {
	return func(s *Server) {
		s.registry = prometheus.NewRegistry()
	}
}

// NewServer creates a server in front of engine.
func NewServer(engine *storage.Engine, options ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		dbEngine: engine,
		logger:   zap.NewNop().Sugar(),
	}
	for _, option := range options {
		option(s)
	}

	if s.registry != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docdb_http_requests_total",
			Help: "The total number of HTTP requests",
		}, []string{"method", "route", "status"})
		s.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docdb_http_request_duration_seconds",
			Help:    "The latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})
		s.registry.MustRegister(
			s.requests,
			s.latency,
			newEngineCollector(engine),
			collectors.NewGoCollector(),
		)
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	api.NewHandler(engine, s.logger).RegisterRoutes(s.router)

	// Use the logging middleware for all routes
	s.router.Use(s.requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warnw("no route found", "method", r.Method, "path", r.URL.Path)
		api.WriteJSONError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})

	return s
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLoggerMiddleware logs the method, path, status and duration of each
// request and records them as metrics when enabled.
func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
		if s.requests != nil {
			route := routeTemplate(r)
			s.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			s.latency.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}
	})
}

// routeTemplate labels metrics by route pattern so database and collection
// names do not explode label cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Engine returns the served storage engine.
func (s *Server) Engine() *storage.Engine {
	return s.dbEngine
}
