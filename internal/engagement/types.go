// Package engagement holds the engagement data model and the pure
// transformation functions over it: series upserts, delta application,
// chart building, and the aggregation used by the server to compute
// summaries from raw status samples.
package engagement

import "time"

// Status is a participant's self-reported engagement state.
type Status string

const (
	StatusSpeaking   Status = "speaking"
	StatusEngaged    Status = "engaged"
	StatusDisengaged Status = "disengaged"
)

// Valid reports whether s is one of the known status literals.
func (s Status) Valid() bool {
	return s == StatusSpeaking || s == StatusEngaged || s == StatusDisengaged
}

// Engaged reports whether the status counts as engaged for aggregation.
func (s Status) Engaged() bool {
	return s == StatusSpeaking || s == StatusEngaged
}

// Point is one aggregate engagement value at a discretized time bucket.
// Value is a percentage in [0, 100].
type Point struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

// Series is a list of points ordered ascending by bucket time, unique
// per bucket.
type Series []Point

// ParticipantSeries is one participant's engagement series.
type ParticipantSeries struct {
	ParticipantID string `json:"participant_id"`
	Fingerprint   string `json:"device_fingerprint,omitempty"`
	Series        Series `json:"series"`
}

// Summary is a full, self-consistent engagement snapshot for a meeting.
// The overall series and every participant series share the same bucket
// grid, though a participant may lack buckets where no sample existed.
type Summary struct {
	MeetingID     string              `json:"meeting_id"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"`
	BucketMinutes int                 `json:"bucket_minutes"`
	WindowMinutes int                 `json:"window_minutes"`
	Overall       Series              `json:"overall"`
	Participants  []ParticipantSeries `json:"participants"`
}

// Delta is one incremental update naming a single bucket's new overall
// value and per-participant values. ParticipantID and Status identify the
// status change that triggered the delta, when there was one, so clients
// can reconcile optimistic local state.
type Delta struct {
	MeetingID     string             `json:"meeting_id"`
	Bucket        time.Time          `json:"bucket"`
	Overall       float64            `json:"overall"`
	Participants  map[string]float64 `json:"participants"`
	ParticipantID string             `json:"participant_id,omitempty"`
	Status        Status             `json:"status,omitempty"`
}

// Level classifies a meeting's normalized engagement for the final summary.
type Level string

const (
	LevelHigh    Level = "high"
	LevelHealthy Level = "healthy"
	LevelPassive Level = "passive"
	LevelLow     Level = "low"
)
