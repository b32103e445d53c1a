package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"llmperf/cmd/server"
	"llmperf/internal/app"
	"llmperf/internal/config"
	"llmperf/internal/logger"
)

// main runs the API server alone, configured from the environment. The
// llm-perf CLI in cmd/ offers the same server under "serve".
func main() {
	log := logger.NewLogger()

	if err := config.LoadDotEnv(".env", log); err != nil {
		log.Fatal("Failed to load .env: %v", err)
	}
	cfg := config.FromEnv()
	if problems := cfg.Validate(); len(problems) > 0 {
		log.Fatal("Invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	if err := server.Run(ctx, a); err != nil {
		log.Fatal("Server failed: %v", err)
	}
}
