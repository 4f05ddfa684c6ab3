package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/config"
	"github.com/vitalstream/health-ingest/internal/delivery"
	"github.com/vitalstream/health-ingest/internal/logger"
	"github.com/vitalstream/health-ingest/internal/pipeline"
	"github.com/vitalstream/health-ingest/internal/telemetry"
)

func main() {
	// A .env file is optional; real env vars win either way.
	_ = godotenv.Load()

	var (
		configPath    string
		batchSize     int
		maxConcurrent int
		dryRun        bool
		debug         bool
	)

	rootCmd := &cobra.Command{
		Use:   "ingest [data_dir]",
		Short: "Batch-ingest health telemetry into the vector index",
		Long: "Reads the per-stream JSON files in data_dir, aggregates records into\n" +
			"per-user daily summaries, and posts each summary to the configured\n" +
			"vector-indexing endpoint. One-shot: drains the inputs and exits.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("batch-size") {
				cfg.BatchSize = batchSize
			}
			if cmd.Flags().Changed("max-concurrent") {
				cfg.MaxConcurrent = maxConcurrent
			}
			if debug {
				cfg.DebugMode = true
			}
			if dryRun {
				cfg.APIURL = delivery.PrintMode
			}
			if len(args) == 1 {
				cfg.DataDir = args[0]
			}

			return run(cfg)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to optional YAML config file")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "summaries per delivery batch")
	rootCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", config.DefaultMaxConcurrent, "max in-flight deliveries per batch")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print summaries instead of delivering them")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := logger.New(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		shutdown, err := telemetry.Setup(ctx, cfg.OTELEndpoint)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	// Delivery failures are reflected in the stats but never in the exit
	// code; only a missing data dir or a bad users.json is fatal.
	if _, err := pipeline.Run(ctx, cfg, log); err != nil {
		log.Error("ingestion aborted", zap.Error(err))
		return err
	}
	return nil
}
