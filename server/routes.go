// Package server exposes the dashboard tables and benchmark runs over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llmperf/internal/hardware"
	"llmperf/internal/leaderboard"
	"llmperf/internal/logger"
	"llmperf/internal/metrics"
	"llmperf/internal/models"
)

// DefaultCacheTTL bounds how stale dashboard tables may be.
const DefaultCacheTTL = 5 * time.Minute

// Options wires the server to its data sources.
type Options struct {
	Hardware  func() (*hardware.Catalog, error)
	Models    func(ctx context.Context) models.Catalog
	Snapshot  leaderboard.BuildFunc
	NewRunner RunnerFactory
	Metrics   *metrics.Collector
	Logger    *logger.Logger
	CacheTTL  time.Duration
	CORS      *CORSConfig
	Version   string
}

// Server holds the handlers and their shared state.
type Server struct {
	opts    Options
	log     *logger.Logger
	version string
	cache   *leaderboard.Cache
	hub     *Hub
	runs    *RunManager
	sse     *SSEHandler
}

// New creates a server. Runs started through it are cancelled when ctx is done.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Hardware == nil || opts.Models == nil || opts.Snapshot == nil {
		return nil, errors.New("server requires hardware, models and snapshot sources")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		version: opts.Version,
		cache:   leaderboard.NewCache(opts.Snapshot, opts.CacheTTL),
		hub:     NewHub(opts.Logger),
	}
	s.runs = NewRunManager(ctx, RunManagerOptions{
		Factory: opts.NewRunner,
		Hub:     s.hub,
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
		OnFinish: func(Run) {
			s.cache.Invalidate()
		},
	})
	s.sse = NewSSEHandler(s.runs, opts.Logger)
	return s, nil
}

// Runs is the run manager.
func (s *Server) Runs() *RunManager { return s.runs }

// Shutdown cancels active runs and waits for them.
func (s *Server) Shutdown() { s.runs.Shutdown() }

// Router builds a gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	s.SetupRoutes(router)
	return router
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes(router *gin.Engine) {
	cors := LoadCORSConfigFromEnv(s.log)
	if s.opts.CORS != nil {
		cors = *s.opts.CORS
	}

	router.Use(RecoveryMiddleware(s.log))
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cors))
	router.Use(LoggingMiddleware(s.log))
	router.Use(ErrorHandlingMiddleware())

	api := router.Group("/api")
	{
		api.Use(RequestValidationMiddleware())

		api.GET("/health", s.HealthHandler)
		api.GET("/hardware", s.HardwareHandler)
		api.GET("/models", s.ModelsHandler)

		api.GET("/status", s.TableHandler(leaderboard.TableStatus))
		api.GET("/benchmarks", s.TableHandler(leaderboard.TableBenchmarks))
		api.GET("/stats/machines", s.TableHandler(leaderboard.TableMachines))
		api.GET("/stats/configurations", s.TableHandler(leaderboard.TableConfigurations))
		api.GET("/export/csv", s.ExportCSVHandler)

		api.POST("/runs", s.StartRunHandler)
		api.GET("/runs", s.ListRunsHandler)
		api.GET("/runs/:id", s.GetRunHandler)
		api.POST("/runs/:id/cancel", s.CancelRunHandler)
		api.GET("/runs/:id/stream", s.sse.StreamRun)
	}

	router.GET("/ws", s.hub.ServeWS)
	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "LLM-Perf API",
			"version": s.version,
			"status":  "ok",
			"endpoints": gin.H{
				"health":     "/api/health",
				"hardware":   "/api/hardware",
				"models":     "/api/models",
				"status":     "/api/status",
				"benchmarks": "/api/benchmarks",
				"stats": gin.H{
					"machines":       "/api/stats/machines",
					"configurations": "/api/stats/configurations",
				},
				"export":    "/api/export/csv?table=benchmarks",
				"runs":      "/api/runs",
				"websocket": "/ws",
				"metrics":   "/metrics",
			},
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "The requested endpoint does not exist",
			Code:    http.StatusNotFound,
		})
	})
}
