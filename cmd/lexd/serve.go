package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/analysis"
	"github.com/fyrsmithlabs/lexd/internal/config"
	"github.com/fyrsmithlabs/lexd/internal/docstore"
	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/job"
	"github.com/fyrsmithlabs/lexd/internal/logging"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
	"github.com/fyrsmithlabs/lexd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexd HTTP daemon",
	Long: `Start the lexd daemon: HTTP API, background job runner and the
configured document store backend.

Examples:
  # Start with defaults (in-memory store, heuristic provider)
  lexd serve

  # Start against NATS with an LLM provider
  LEXD_STORE_BACKEND=nats LEXD_PROVIDER_API_KEY=sk-... lexd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting lexd",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Duration("job_timeout", cfg.Jobs.Timeout))

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize document store: %w", err)
	}
	defer closeStore()

	jobs, runner, err := buildJobService(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("initialize job service: %w", err)
	}
	defer runner.Close()

	srv, err := server.NewServer(&server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, jobs, runner, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// buildStore creates the configured document store backend.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (docstore.Store, func(), error) {
	if cfg.Store.Backend == "memory" {
		logger.Warn("using in-memory document store, job records will not survive restarts")
		return docstore.NewMemoryStore(), func() {}, nil
	}

	nc, err := nats.Connect(cfg.Store.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats at %s: %w", cfg.Store.NATSURL, err)
	}

	store, err := docstore.NewNATSStore(ctx, nc, docstore.NATSStoreConfig{Bucket: cfg.Store.Bucket}, logger)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return store, nc.Close, nil
}

// buildJobService wires the extraction pipeline and job state machine.
func buildJobService(cfg *config.Config, store docstore.Store, logger *zap.Logger) (job.Service, *job.Runner, error) {
	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := extraction.DefaultExtractorOptions()
	opts.InvokeTimeout = cfg.Provider.Timeout

	extractor, err := extraction.NewExtractor(extraction.NewRegistry(), provider,
		logger.Named("extraction"), opts)
	if err != nil {
		return nil, nil, err
	}

	jobs, err := job.NewService(&job.Config{Timeout: cfg.Jobs.Timeout}, store, extractor,
		relationship.NewMapper(logger.Named("relationship")), analysis.NewBuilder(),
		logger.Named("job"))
	if err != nil {
		return nil, nil, err
	}

	runner := job.NewRunner(jobs, cfg.Jobs.MaxConcurrent, logger.Named("runner"))
	return jobs, runner, nil
}

// buildProvider selects the extraction provider. Without an API key the
// built-in heuristic provider keeps the daemon fully functional offline.
func buildProvider(cfg *config.Config, logger *zap.Logger) (extraction.Provider, error) {
	if cfg.Provider.APIKey == "" {
		logger.Info("no provider api key configured, using heuristic extraction")
		return extraction.NewHeuristicProvider(nil), nil
	}

	return extraction.NewLLMProvider(extraction.LLMConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Model:             cfg.Provider.Model,
		RequestsPerMinute: float64(cfg.Provider.RequestsPerMinute),
		Burst:             cfg.Provider.Burst,
	}, logger.Named("llm"))
}
