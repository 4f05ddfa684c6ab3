package aggregator

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/models"
)

type capture struct {
	keys    []models.DayKey
	buckets []*models.DayBucket
}

func (c *capture) flush(key models.DayKey, bucket *models.DayBucket) {
	c.keys = append(c.keys, key)
	c.buckets = append(c.buckets, bucket)
}

func (c *capture) has(key models.DayKey) bool {
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}

func nutritionRec(userID, date string) map[string]any {
	return map[string]any{
		"user_id":   userID,
		"date":      date,
		"calories":  float64(500),
		"meal_type": "breakfast",
		"protein":   float64(20),
		"carbs":     float64(60),
		"fat":       float64(15),
	}
}

func heartRateRec(userID, date string, value float64) map[string]any {
	return map[string]any{
		"user_id":   userID,
		"date_time": date + " 08:00:00",
		"value":     value,
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
		want string
	}{
		{"date field verbatim", map[string]any{"date": "2024-01-01"}, "2024-01-01"},
		{"date wins over date_time", map[string]any{"date": "2024-01-01", "date_time": "2024-02-02 10:00:00"}, "2024-01-01"},
		{"date_time prefix", map[string]any{"date_time": "2024-01-03 08:15:00"}, "2024-01-03"},
		{"date_time without time part", map[string]any{"date_time": "2024-01-03"}, "2024-01-03"},
		{"neither field", map[string]any{"value": float64(70)}, ""},
		{"empty date", map[string]any{"date": ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDate(tt.rec); got != tt.want {
				t.Errorf("ExtractDate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFoldSkipsRecordsWithoutDate(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	agg.Fold(models.StreamNutrition, map[string]any{"user_id": "u1", "calories": float64(100)})
	agg.Fold(models.StreamNutrition, map[string]any{"date": "2024-01-01", "calories": float64(100)})

	if agg.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", agg.Skipped())
	}
	if agg.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 (skipped records must not touch a bucket)", agg.Pending())
	}

	agg.FinalFlush()
	if len(c.keys) != 0 {
		t.Errorf("final flush emitted %d buckets, want 0", len(c.keys))
	}
}

func TestFoldDateFromDateTime(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	agg.Fold(models.StreamHeartRate, heartRateRec("u1", "2024-01-03", 70))
	agg.FinalFlush()

	want := models.DayKey{UserID: "u1", Date: "2024-01-03"}
	if !c.has(want) {
		t.Errorf("bucket keys = %v, want to contain %v", c.keys, want)
	}
}

func TestPartialFlushAtThreshold(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	// One nutrition record, then heart-rate records up to one short of the
	// threshold. Nothing may flush yet.
	agg.Fold(models.StreamNutrition, nutritionRec("u1", "2024-01-01"))
	for i := 0; i < PartialFlushInterval-2; i++ {
		agg.Fold(models.StreamHeartRate, heartRateRec("u2", "2024-01-01", 70))
	}
	if len(c.keys) != 0 {
		t.Fatalf("flushed %d buckets before threshold, want 0", len(c.keys))
	}

	// The threshold record triggers the scan.
	agg.Fold(models.StreamHeartRate, heartRateRec("u2", "2024-01-01", 71))

	if agg.PartialFlushes() != 1 {
		t.Errorf("PartialFlushes() = %d, want 1", agg.PartialFlushes())
	}
	if len(c.keys) != 1 {
		t.Fatalf("partial flush emitted %d buckets, want 1", len(c.keys))
	}
	if got, want := c.keys[0], (models.DayKey{UserID: "u1", Date: "2024-01-01"}); got != want {
		t.Errorf("flushed key = %v, want %v", got, want)
	}

	// The heart-rate-only bucket stays until the final flush.
	if agg.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", agg.Pending())
	}
	agg.FinalFlush()
	if !c.has(models.DayKey{UserID: "u2", Date: "2024-01-01"}) {
		t.Errorf("heart-rate-only bucket never emitted; keys = %v", c.keys)
	}
}

func TestPartialFlushDefersNonSubstantiveBuckets(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	agg.Fold(models.StreamSleep, map[string]any{
		"user_id": "sleeper", "date": "2024-01-01",
		"total_sleep": 7.0, "deep_sleep": 1.0, "rem_sleep": 2.0,
		"sleep_quality": "good", "resting_heart_rate": float64(50),
	})
	agg.Fold(models.StreamWorkouts, map[string]any{
		"user_id": "lifter", "date": "2024-01-01",
		"workout_type": "strength", "duration": float64(30),
		"sets": float64(3), "reps": float64(10), "calories_burned": float64(200),
	})
	for i := 0; i < PartialFlushInterval-2; i++ {
		agg.Fold(models.StreamHeartRate, heartRateRec("hr", "2024-01-01", 70))
	}

	if agg.Folded() != PartialFlushInterval {
		t.Fatalf("Folded() = %d, want %d", agg.Folded(), PartialFlushInterval)
	}
	if agg.PartialFlushes() != 1 {
		t.Fatalf("PartialFlushes() = %d, want 1", agg.PartialFlushes())
	}
	if len(c.keys) != 0 {
		t.Errorf("partial flush emitted %d buckets, want 0 (sleep/workout-only buckets defer)", len(c.keys))
	}

	agg.FinalFlush()
	if len(c.keys) != 3 {
		t.Errorf("final flush total = %d buckets, want 3", len(c.keys))
	}
}

func TestHeartRateSamplesAccumulate(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	for _, v := range []float64{60, 72, 88} {
		agg.Fold(models.StreamHeartRate, heartRateRec("u1", "2024-01-04", v))
	}
	agg.FinalFlush()

	if len(c.buckets) != 1 {
		t.Fatalf("flushed %d buckets, want 1", len(c.buckets))
	}
	got := fmt.Sprintf("%v", c.buckets[0].HeartRates)
	if got != "[60 72 88]" {
		t.Errorf("HeartRates = %v, want [60 72 88]", c.buckets[0].HeartRates)
	}
}

func TestHeartRateWithoutNumericValueCreatesNoBucket(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	agg.Fold(models.StreamHeartRate, map[string]any{
		"user_id": "u1", "date": "2024-01-01", "value": "not-a-number",
	})
	agg.FinalFlush()

	if len(c.keys) != 0 {
		t.Errorf("flushed %d buckets, want 0", len(c.keys))
	}
}

func TestMeasurementsCountButCreateNoBucket(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	agg.Fold(models.StreamMeasurements, map[string]any{
		"user_id": "u1", "date": "2024-01-01", "weight": 72.5,
	})

	if agg.Folded() != 1 {
		t.Errorf("Folded() = %d, want 1", agg.Folded())
	}
	if agg.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", agg.Pending())
	}
}

func TestLineOrderMatchesArrival(t *testing.T) {
	var c capture
	agg := New(c.flush, zap.NewNop())

	for _, meal := range []string{"breakfast", "lunch", "dinner"} {
		rec := nutritionRec("u1", "2024-01-01")
		rec["meal_type"] = meal
		agg.Fold(models.StreamNutrition, rec)
	}
	agg.FinalFlush()

	if len(c.buckets) != 1 {
		t.Fatalf("flushed %d buckets, want 1", len(c.buckets))
	}
	joined := strings.Join(c.buckets[0].Nutrition, " ")
	bIdx := strings.Index(joined, "breakfast")
	lIdx := strings.Index(joined, "lunch")
	dIdx := strings.Index(joined, "dinner")
	if !(bIdx < lIdx && lIdx < dIdx) {
		t.Errorf("nutrition lines out of arrival order: %q", joined)
	}
}
