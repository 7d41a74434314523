// Package api exposes triage over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/monitoring"
	"github.com/sells-group/adrank-triage/internal/pipeline"
	"github.com/sells-group/adrank-triage/internal/store"
)

// maxBodyBytes caps POSTed metrics documents.
const maxBodyBytes = 10 << 20

// Options configures the router. Store, Metrics and Gatherer may be nil.
type Options struct {
	Pipeline       *pipeline.Pipeline
	Store          store.Store
	Metrics        *pipeline.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// LookbackHours is the default window for /v1/stats.
	LookbackHours int
}

type server struct {
	pipeline  *pipeline.Pipeline
	store     store.Store
	collector *monitoring.Collector
	metrics   *pipeline.Metrics
	lookback  int
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		metrics:  opts.Metrics,
		lookback: opts.LookbackHours,
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New()
	}
	if s.store != nil {
		s.collector = monitoring.NewCollector(s.store)
	}
	if s.lookback <= 0 {
		s.lookback = 24
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/triage", s.handleTriage)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
