// Package render turns records and day buckets into the natural-language
// summary text shipped to the vector index. Everything here is pure: the same
// inputs always produce the same bytes.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitalstream/health-ingest/internal/models"
)

// Activity renders one activity record into its summary line.
func Activity(rec map[string]any) string {
	return "did " + field(rec, "activity_type") +
		" for " + field(rec, "duration") +
		" minutes in " + field(rec, "weather") +
		" weather, burning " + field(rec, "calories_burned") +
		" calories, covering " + field(rec, "distance") +
		" km with " + field(rec, "steps") +
		" steps, avg HR " + field(rec, "heart_rate_avg") +
		" bpm (max " + field(rec, "heart_rate_max") + ")."
}

// Workout renders one workout record into its summary line.
func Workout(rec map[string]any) string {
	return "Completed a " + field(rec, "workout_type") +
		" workout for " + field(rec, "duration") +
		" minutes, " + field(rec, "sets") +
		" sets of " + field(rec, "reps") +
		" reps, burned " + field(rec, "calories_burned") + " calories."
}

// Nutrition renders one nutrition record into its summary line.
func Nutrition(rec map[string]any) string {
	return "Ate " + field(rec, "calories") +
		" calories at " + field(rec, "meal_type") +
		" (" + field(rec, "protein") +
		"g protein, " + field(rec, "carbs") +
		"g carbs, " + field(rec, "fat") + "g fat)."
}

// Sleep renders one sleep record into its summary line.
func Sleep(rec map[string]any) string {
	return "Slept " + field(rec, "total_sleep") +
		" hours (deep " + field(rec, "deep_sleep") +
		"h, REM " + field(rec, "rem_sleep") +
		"h), quality " + field(rec, "sleep_quality") +
		", resting HR " + field(rec, "resting_heart_rate") + " bpm."
}

// Summary assembles the full text blob for one user-day. If the profile is
// unknown (ok is false) the placeholder form is returned instead.
func Summary(p models.Profile, ok bool, key models.DayKey, bucket *models.DayBucket) string {
	if !ok {
		return "Unknown user " + key.UserID + " on " + key.Date
	}

	parts := make([]string, 0, 1+len(bucket.Activities)+len(bucket.Workouts)+len(bucket.Nutrition)+len(bucket.Sleep)+1)
	parts = append(parts, header(p))
	parts = append(parts, bucket.Activities...)
	parts = append(parts, bucket.Workouts...)
	parts = append(parts, bucket.Nutrition...)
	parts = append(parts, bucket.Sleep...)

	if len(bucket.HeartRates) > 0 {
		parts = append(parts, heartRateRange(bucket.HeartRates))
	}

	return strings.Join(parts, " ")
}

func header(p models.Profile) string {
	return p.Name +
		" (" + strconv.Itoa(p.Age) +
		" years old " + p.Gender +
		", " + formatNumber(p.Height) +
		" cm, " + formatNumber(p.Weight) +
		" kg, " + p.FitnessLevel + " fitness level)"
}

func heartRateRange(samples []float64) string {
	min, max := samples[0], samples[0]
	for _, s := range samples[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return "Heart rate ranged " + formatNumber(min) + "–" + formatNumber(max) + " bpm during the day."
}

// field looks up a record attribute and formats it for interpolation. Missing
// attributes render as empty; the record was already accepted by the
// aggregator, so a hole in one field must not drop the whole line.
func field(rec map[string]any, key string) string {
	v, present := rec[key]
	if !present {
		return ""
	}
	return formatValue(v)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// formatNumber prints JSON numbers the way the summaries expect: integral
// values without a decimal point, fractional values with their minimal
// representation, never exponent notation.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
