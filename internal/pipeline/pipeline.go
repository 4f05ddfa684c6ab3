// Package pipeline drives one ingestion run: load profiles, stream records
// through the aggregator, render flushed buckets, and deliver the summaries.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/aggregator"
	"github.com/vitalstream/health-ingest/internal/config"
	"github.com/vitalstream/health-ingest/internal/delivery"
	"github.com/vitalstream/health-ingest/internal/models"
	"github.com/vitalstream/health-ingest/internal/profile"
	"github.com/vitalstream/health-ingest/internal/reader"
	"github.com/vitalstream/health-ingest/internal/render"
)

// Stats summarizes one completed run.
type Stats struct {
	Profiles       int
	RecordsFolded  int
	RecordsSkipped int
	BucketsFlushed int
	PartialFlushes int
	Delivered      int64
	Failed         int64
	Duration       time.Duration
}

// Run executes a full ingestion pass over cfg.DataDir. The returned error is
// fatal (missing data directory or unloadable profiles); per-file, per-record,
// and per-delivery problems are absorbed and reflected in Stats.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) (Stats, error) {
	start := time.Now()
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	ctx, span := otel.Tracer("health-ingest/pipeline").Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	info, err := os.Stat(cfg.DataDir)
	if err != nil || !info.IsDir() {
		return Stats{}, fmt.Errorf("data directory does not exist: %s", cfg.DataDir)
	}

	log.Info("starting ingestion",
		zap.String("data_dir", cfg.DataDir),
		zap.String("endpoint", cfg.APIURL),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
	)

	store, err := profile.Load(filepath.Join(cfg.DataDir, "users.json"), log)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load user profiles: %w", err)
	}

	client := delivery.NewClient(cfg.APIURL, cfg.BatchSize, cfg.MaxConcurrent, log)

	agg := aggregator.New(func(key models.DayKey, bucket *models.DayBucket) {
		p, ok := store.Lookup(key.UserID)
		text := render.Summary(p, ok, key, bucket)
		client.Add(ctx, delivery.Item{UserID: key.UserID, Date: key.Date, Summary: text})
	}, log)

	reader.New(log).Walk(cfg.DataDir, agg.Fold)

	agg.FinalFlush()
	client.Flush(ctx)

	stats := Stats{
		Profiles:       store.Len(),
		RecordsFolded:  agg.Folded(),
		RecordsSkipped: agg.Skipped(),
		BucketsFlushed: agg.Flushed(),
		PartialFlushes: agg.PartialFlushes(),
		Delivered:      client.Delivered(),
		Failed:         client.Failed(),
		Duration:       time.Since(start),
	}

	log.Info("ingestion completed",
		zap.Int("profiles", stats.Profiles),
		zap.Int("records", stats.RecordsFolded),
		zap.Int("records_skipped", stats.RecordsSkipped),
		zap.Int("buckets_flushed", stats.BucketsFlushed),
		zap.Int("partial_flushes", stats.PartialFlushes),
		zap.Int64("delivered", stats.Delivered),
		zap.Int64("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	)

	return stats, nil
}
