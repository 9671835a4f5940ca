package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"treecensus/internal/amqp"
	"treecensus/internal/cache"
	"treecensus/internal/dataset"
	"treecensus/internal/log"
	"treecensus/internal/middleware/ratelimit"
	"treecensus/internal/middleware/security"
	"treecensus/internal/middleware/trace"
	appweb "treecensus/web"
)

// Config holds the server settings taken from the environment.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	CacheSize          int
	CacheTTL           time.Duration

	// Store is pinged by /readyz when the dataset came from a database.
	Store StorePinger
}

// StorePinger checks the database behind the served dataset.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// SnapshotWatcher reports snapshot announcements seen on the broker.
type SnapshotWatcher interface {
	Latest() (amqp.SnapshotMessage, bool)
	Behind(servedID string, servedAt time.Time) bool
	Connected() bool
	Received() uint64
}

// Server serves the dashboard over one immutable dataset.
type Server struct {
	http.Server
	router    chi.Router
	dataset   *dataset.Dataset
	templates *template.Template
	figures   *cache.LRUCache[figureView]
	watcher   SnapshotWatcher
	store     StorePinger
	logger    *log.Logger
	metrics   *Metrics
	startedAt time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	trace       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes, middleware and templates. watcher may be nil.
func NewServer(cfg Config, ds *dataset.Dataset, watcher SnapshotWatcher, logger *log.Logger) (*Server, error) {
	if ds == nil {
		return nil, errors.New("dataset is required")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	router := chi.NewRouter()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		router:      router,
		dataset:     ds,
		templates:   tmpl,
		figures:     cache.NewLRUCache[figureView](cfg.CacheSize, cfg.CacheTTL),
		watcher:     watcher,
		store:       cfg.Store,
		logger:      logger.WithComponent(log.ComponentHTTP),
		metrics:     NewMetrics(),
		startedAt:   time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:    security.NewDetector(),
	}
	s.trace = trace.NewMiddleware(logger, s.detector.ExtractClientIP, s.metrics)
	s.registerMetrics()

	router.Use(s.trace.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(s.detector.Middleware(logger))
	router.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	router.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	router.Get("/", s.handleIndex)
	router.Get("/ui/charts", s.handleCharts)

	router.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited))
		r.Get("/health", s.handleAPIHealth)
		r.Get("/stewards", s.handleAPIStewards)
		r.Get("/species", s.handleAPISpecies)
		r.Get("/figures", s.handleAPIFigures)
		r.Get("/dashboard", s.handleAPIDashboard)
	})

	return s, nil
}

func (s *Server) registerMetrics() {
	meta := s.dataset.Meta()
	s.metrics.GaugeFunc("dataset_rows", "Normalized rows in the served dataset",
		func() float64 { return float64(meta.Rows) })
	s.metrics.GaugeFunc("dataset_trees", "Trees counted in the served dataset",
		func() float64 { return float64(meta.TotalTrees) })
	s.metrics.GaugeFunc("dataset_species", "Distinct species in the served dataset",
		func() float64 { return float64(meta.SpeciesSeen) })

	s.metrics.CounterFunc("figure_cache_hits_total", "Figure cache hits",
		func() float64 { return float64(s.figures.Stats().Hits) })
	s.metrics.CounterFunc("figure_cache_misses_total", "Figure cache misses",
		func() float64 { return float64(s.figures.Stats().Misses) })
	s.metrics.CounterFunc("figure_cache_evictions_total", "Figure cache evictions",
		func() float64 { return float64(s.figures.Stats().Evictions) })
	s.metrics.GaugeFunc("figure_cache_entries", "Figure cache entries",
		func() float64 { return float64(s.figures.Size()) })

	s.metrics.CounterFunc("rate_limit_rejected_total", "API requests rejected by the rate limiter",
		func() float64 { return float64(s.rateLimiter.GetMetrics().Rejected) })
	s.metrics.CounterFunc("security_blocked_total", "Requests blocked as suspicious",
		func() float64 { return float64(s.detector.SuspiciousRequests()) })

	if s.watcher == nil {
		return
	}
	s.metrics.GaugeFunc("snapshot_behind", "1 when a newer snapshot has been announced",
		func() float64 { return boolGauge(s.behind()) })
	s.metrics.GaugeFunc("amqp_connected", "1 while the announcement consumer is connected",
		func() float64 { return boolGauge(s.watcher.Connected()) })
	s.metrics.CounterFunc("snapshot_announcements_total", "Snapshot announcements received",
		func() float64 { return float64(s.watcher.Received()) })
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// behind reports whether the watcher has seen a snapshot newer than the one
// the dataset was built from.
func (s *Server) behind() bool {
	if s.watcher == nil {
		return false
	}
	meta := s.dataset.Meta()
	return s.watcher.Behind(meta.SnapshotID, meta.BuiltAt)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
