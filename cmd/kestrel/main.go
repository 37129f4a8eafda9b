// Kestrel - Instant credit decisions for home loans.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/ai"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/employment"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/verify"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"mode", cfg.Engine.Mode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the employer reference directory. Absence is not
	// fatal; employment verification falls back to declared data.
	var directory domain.EmploymentDirectory
	if cfg.Employment.CSVPath != "" {
		dir, err := employment.LoadCSV(cfg.Employment.CSVPath)
		if err != nil {
			slog.Warn("failed to load employer directory, using declared-data fallback",
				"path", cfg.Employment.CSVPath,
				"error", err,
			)
		} else {
			directory = dir
			slog.Info("employer directory loaded", "path", cfg.Employment.CSVPath)
		}
	}

	// Initialize the risk estimator, with the external enhancer when
	// configured.
	var estimatorOpts []ai.Option
	if cfg.AI.EnhancerURL != "" {
		enhancer := ai.NewHTTPEnhancer(cfg.AI.EnhancerURL)
		estimatorOpts = append(estimatorOpts, ai.WithEnhancer(enhancer, cfg.AI.Timeout, cfg.AI.MaxAttempts))
		slog.Info("ai enhancer configured", "url", cfg.AI.EnhancerURL)
	}

	verifiers := []verify.Verifier{
		verify.NewEmploymentVerifier(directory),
		verify.NewDocumentVerifier(),
		verify.NewNADocVerifier(),
		verify.NewFraudDetector(),
		verify.NewFinancialScorer(),
		ai.NewEstimator(logger, estimatorOpts...),
	}

	// Initialize the knockout policy engine. Empty config means the
	// standard rule set; rules are replaced at runtime via POST /policy.
	knockouts, err := policy.NewEngine(cfg.Engine.Knockouts)
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "rules_count", len(knockouts.Rules()))

	// Initialize the decision engine
	eng := engine.New(verifiers, knockouts, engine.Options{
		Repo:          repo,
		Cache:         cacheImpl,
		Bus:           busImpl,
		Notifier:      notify.NewBusSink(busImpl),
		MaxConcurrent: cfg.Engine.MaxConcurrentVerifiers,
		Timeout:       cfg.Engine.VerifierTimeout,
		Logger:        logger,
	})
	slog.Info("decision engine initialized",
		"verifiers", len(verifiers),
		"max_concurrent", cfg.Engine.MaxConcurrentVerifiers,
	)

	// Initialize async Worker (async evaluation mode)
	var asyncWorker *worker.Worker
	if cfg.Engine.Mode == domain.ModeAsync {
		asyncWorker = worker.NewWorker(busImpl, repo, eng)

		// Get tenant IDs to process (from environment or global)
		var tenantIDs []string
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, knockouts, Version, cfg.Engine.Mode)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides layers environment settings on top of the tier
// defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if path := os.Getenv("KESTREL_EMPLOYER_CSV"); path != "" {
		cfg.Employment.CSVPath = path
	}
	if url := os.Getenv("KESTREL_AI_ENHANCER_URL"); url != "" {
		cfg.AI.EnhancerURL = url
	}
	switch os.Getenv("KESTREL_MODE") {
	case "sync":
		cfg.Engine.Mode = domain.ModeSync
	case "async":
		cfg.Engine.Mode = domain.ModeAsync
	}
	if path := os.Getenv("KESTREL_SQLITE_PATH"); path != "" && cfg.Repository.Driver == "sqlite" {
		cfg.Repository.SQLitePath = path
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                ║")
	fmt.Println("  ║      Instant Credit Decision Engine     ║")
	fmt.Println("  ║      A decision in every heartbeat.     ║")
	fmt.Println("  ╚═════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Mode:     %s\n", cfg.Engine.Mode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /applications                  - Submit an application")
	fmt.Println("    POST /applications/autofill         - Parse a pasted form")
	fmt.Println("    POST /applications/{id}/reevaluate  - Re-run the decision")
	fmt.Println("    GET  /applications/{id}             - Get application by ID")
	fmt.Println("    GET  /applications/{id}/decision    - Get the decision")
	fmt.Println("    GET  /applications/{id}/reports     - Facet reports")
	fmt.Println("    GET  /applications/{id}/schedule    - Amortization schedule")
	fmt.Println("    GET  /policy                        - List knockout rules")
	fmt.Println("    POST /policy                        - Replace knockout rules")
	fmt.Println("    GET  /health                        - Health check")
	fmt.Println()
}
