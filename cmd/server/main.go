package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llmperf/internal/app"
	"llmperf/internal/models"
	"llmperf/internal/runners"
	"llmperf/server"
)

// Version is reported by /api/health. Set with -ldflags at build time.
var Version = "dev"

// Options wires the API server to an app.
func Options(a *app.App) server.Options {
	return server.Options{
		Hardware: a.Hardware,
		Models: func(ctx context.Context) models.Catalog {
			return a.Models(ctx, nil)
		},
		Snapshot: a.Snapshot,
		NewRunner: func(ctx context.Context, spec app.RunSpec, runID string, obs runners.Observer) (server.MatrixRunner, error) {
			r, err := a.NewRunner(ctx, spec, runID, obs)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		Metrics: a.Metrics,
		Logger:  a.Log,
		Version: Version,
	}
}

// Run serves the API until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, a *app.App) error {
	if !a.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(ctx, Options(a))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%s", a.Config.Port),
		Handler:        srv.Router(),
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   0, // SSE streams stay open
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Server starting on port %s", a.Config.Port)
		a.Log.Info("API endpoints available at http://localhost:%s/api", a.Config.Port)
		a.Log.Info("WebSocket endpoint available at ws://localhost:%s/ws", a.Config.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info("Shutting down server...")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("Server forced to shutdown: %v", err)
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.Log.Info("Server exited gracefully")
	return nil
}
