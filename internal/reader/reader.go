// Package reader streams records out of the per-stream JSON array files.
// Files are decoded incrementally, one element at a time, so no input file is
// ever fully materialized in memory.
package reader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/models"
)

// Stream pairs an input file name with the kind tag applied to its records.
type Stream struct {
	File string
	Kind models.StreamKind
}

// Streams returns the fixed processing order. The users file is handled by
// the profile store, not here.
func Streams() []Stream {
	return []Stream{
		{File: "measurements.json", Kind: models.StreamMeasurements},
		{File: "activities.json", Kind: models.StreamActivities},
		{File: "workouts.json", Kind: models.StreamWorkouts},
		{File: "sleep.json", Kind: models.StreamSleep},
		{File: "nutrition.json", Kind: models.StreamNutrition},
		{File: "heart_rate.json", Kind: models.StreamHeartRate},
	}
}

// RecordFunc consumes one parsed record tagged with its stream kind.
type RecordFunc func(kind models.StreamKind, rec map[string]any)

// Reader walks the input streams sequentially.
type Reader struct {
	log *zap.Logger
}

// New creates a Reader.
func New(log *zap.Logger) *Reader {
	return &Reader{log: log}
}

// Walk iterates every stream in order, yielding each record to fn. A missing
// file is skipped with a warning; a malformed file is abandoned where the
// decode failed. Neither aborts the walk.
func (r *Reader) Walk(dataDir string, fn RecordFunc) {
	for _, s := range Streams() {
		path := filepath.Join(dataDir, s.File)
		count, err := r.walkFile(path, s.Kind, fn)
		if err != nil {
			if os.IsNotExist(err) {
				r.log.Warn("input file missing, skipping", zap.String("file", s.File))
				continue
			}
			r.log.Warn("abandoning input file",
				zap.String("file", s.File),
				zap.Int("records_read", count),
				zap.Error(err),
			)
			continue
		}
		r.log.Info("processed input file",
			zap.String("file", s.File),
			zap.Int("records", count),
		)
	}
}

// walkFile streams one top-level JSON array, returning how many elements were
// yielded before EOF or error.
func (r *Reader) walkFile(path string, kind models.StreamKind, fn RecordFunc) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			r.log.Warn("failed to close input file", zap.String("file", path), zap.Error(closeErr))
		}
	}()

	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("failed to read array start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, fmt.Errorf("expected top-level JSON array, got %v", tok)
	}

	count := 0
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return count, fmt.Errorf("failed to decode record %d: %w", count, err)
		}
		fn(kind, rec)
		count++
	}

	if _, err := dec.Token(); err != nil {
		return count, fmt.Errorf("failed to read array end: %w", err)
	}

	return count, nil
}
