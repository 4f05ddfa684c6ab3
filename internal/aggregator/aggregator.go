// Package aggregator folds tagged records into per-(user, day) buckets and
// flushes them to the delivery pipeline. The aggregator is single-writer: it
// is only ever driven from the pipeline goroutine and needs no locking.
package aggregator

import (
	"strings"

	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/models"
	"github.com/vitalstream/health-ingest/internal/render"
)

// PartialFlushInterval is the record count between partial flush scans.
const PartialFlushInterval = 50000

// FlushFunc receives a bucket being evicted from the aggregation map. The
// bucket must not be retained past the call.
type FlushFunc func(key models.DayKey, bucket *models.DayBucket)

// Aggregator owns the (user_id, date) → DayBucket map.
type Aggregator struct {
	buckets map[models.DayKey]*models.DayBucket
	flush   FlushFunc
	log     *zap.Logger

	folded         int
	skipped        int
	partialFlushes int
	flushed        int
}

// New creates an aggregator that hands evicted buckets to flush.
func New(flush FlushFunc, log *zap.Logger) *Aggregator {
	return &Aggregator{
		buckets: make(map[models.DayKey]*models.DayBucket),
		flush:   flush,
		log:     log,
	}
}

// Fold routes one record into its day bucket. Records with no extractable
// user or date are skipped. Every PartialFlushInterval folded records the
// map is scanned for buckets with substantive content, which are flushed to
// bound memory on large runs.
func (a *Aggregator) Fold(kind models.StreamKind, rec map[string]any) {
	userID, _ := rec["user_id"].(string)
	date := ExtractDate(rec)
	if userID == "" || date == "" {
		a.skipped++
		a.log.Debug("skipping record without user or date", zap.String("stream", string(kind)))
		return
	}

	key := models.DayKey{UserID: userID, Date: date}

	switch kind {
	case models.StreamActivities:
		b := a.bucket(key)
		b.Activities = append(b.Activities, render.Activity(rec))
	case models.StreamWorkouts:
		b := a.bucket(key)
		b.Workouts = append(b.Workouts, render.Workout(rec))
	case models.StreamNutrition:
		b := a.bucket(key)
		b.Nutrition = append(b.Nutrition, render.Nutrition(rec))
	case models.StreamSleep:
		b := a.bucket(key)
		b.Sleep = append(b.Sleep, render.Sleep(rec))
	case models.StreamHeartRate:
		if v, ok := rec["value"].(float64); ok {
			b := a.bucket(key)
			b.HeartRates = append(b.HeartRates, v)
		}
	case models.StreamMeasurements:
		// Reserved stream: counted toward the flush interval but it
		// contributes no lines and creates no bucket.
	}

	a.folded++
	if a.folded%PartialFlushInterval == 0 {
		a.log.Info("processed records", zap.Int("count", a.folded))
		a.partialFlush()
	}
}

func (a *Aggregator) bucket(key models.DayKey) *models.DayBucket {
	b, ok := a.buckets[key]
	if !ok {
		b = &models.DayBucket{}
		a.buckets[key] = b
	}
	return b
}

// partialFlush evicts every bucket with at least one activity or nutrition
// line. Buckets holding only workouts, sleep, or heart-rate samples stay in
// the map: those days are still expecting data from later streams.
func (a *Aggregator) partialFlush() {
	before := a.flushed
	for key, b := range a.buckets {
		if !b.HasSubstantiveContent() {
			continue
		}
		delete(a.buckets, key)
		a.flushed++
		a.flush(key, b)
	}
	a.partialFlushes++
	a.log.Debug("partial flush",
		zap.Int("flushed", a.flushed-before),
		zap.Int("retained", len(a.buckets)),
	)
}

// FinalFlush evicts every remaining bucket regardless of content. Called once
// at end-of-input.
func (a *Aggregator) FinalFlush() {
	for key, b := range a.buckets {
		delete(a.buckets, key)
		a.flushed++
		a.flush(key, b)
	}
}

// Folded returns the number of records folded so far.
func (a *Aggregator) Folded() int { return a.folded }

// Skipped returns the number of records dropped for missing user or date.
func (a *Aggregator) Skipped() int { return a.skipped }

// Flushed returns the number of buckets emitted so far.
func (a *Aggregator) Flushed() int { return a.flushed }

// PartialFlushes returns how many partial flush scans have run.
func (a *Aggregator) PartialFlushes() int { return a.partialFlushes }

// Pending returns the number of buckets still held in the map.
func (a *Aggregator) Pending() int { return len(a.buckets) }

// ExtractDate derives the bucket date from a record: the date field verbatim
// when present, otherwise the date_time prefix before the first space.
// Returns "" when neither yields a date; such records never touch a bucket.
func ExtractDate(rec map[string]any) string {
	if d, ok := rec["date"].(string); ok {
		return d
	}
	if dt, ok := rec["date_time"].(string); ok {
		if i := strings.IndexByte(dt, ' '); i >= 0 {
			return dt[:i]
		}
		return dt
	}
	return ""
}
