package models

// Profile describes one user as loaded from users.json. Profiles are
// immutable after load.
type Profile struct {
	UserID       string  `json:"user_id" validate:"required"`
	Name         string  `json:"name"`
	Age          int     `json:"age"`
	Gender       string  `json:"gender"`
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
	FitnessLevel string  `json:"fitness_level"`
}

// StreamKind identifies which input stream a record came from.
type StreamKind string

const (
	StreamMeasurements StreamKind = "measurements"
	StreamActivities   StreamKind = "activities"
	StreamWorkouts     StreamKind = "workouts"
	StreamSleep        StreamKind = "sleep"
	StreamNutrition    StreamKind = "nutrition"
	StreamHeartRate    StreamKind = "heart_rate"
)

// DayKey identifies one user-day. Dates are opaque strings; no calendar
// arithmetic is ever performed on them.
type DayKey struct {
	UserID string
	Date   string
}

// DayBucket accumulates one user-day's worth of pre-rendered lines and raw
// heart-rate samples. Line order within each slice matches arrival order.
type DayBucket struct {
	Activities []string
	Workouts   []string
	Nutrition  []string
	Sleep      []string
	HeartRates []float64
}

// HasSubstantiveContent reports whether the bucket qualifies for a partial
// flush: at least one activity or nutrition line is present. A bucket with
// only workouts, sleep, or heart-rate samples waits for the final flush.
func (b *DayBucket) HasSubstantiveContent() bool {
	return len(b.Activities) > 0 || len(b.Nutrition) > 0
}

// SummaryType is the fixed document type attached to every delivered summary.
const SummaryType = "daily_summary"

// Meta is the metadata half of the ingest envelope.
type Meta struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Type   string `json:"type"`
}

// Envelope is the JSON body POSTed to the vector-indexing endpoint.
type Envelope struct {
	Text string `json:"text"`
	Meta Meta   `json:"meta"`
}

// NewEnvelope wraps a rendered summary for delivery.
func NewEnvelope(userID, date, text string) Envelope {
	return Envelope{
		Text: text,
		Meta: Meta{
			UserID: userID,
			Date:   date,
			Type:   SummaryType,
		},
	}
}
