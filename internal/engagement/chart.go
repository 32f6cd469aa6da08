package engagement

import (
	"math"
	"time"
)

// ChartPoint is one renderable bucket of the engagement chart. EngagedCount
// and NotEngagedCount always sum to TotalParticipants.
type ChartPoint struct {
	Bucket            time.Time `json:"bucket"`
	Label             string    `json:"label"`
	Overall           float64   `json:"overall"`
	EngagedCount      int       `json:"engaged_count"`
	NotEngagedCount   int       `json:"not_engaged_count"`
	EngagedPercent    float64   `json:"engaged_percent"`
	NotEngagedPercent float64   `json:"not_engaged_percent"`
	TotalParticipants int       `json:"total_participants"`
}

// BucketLabel formats a bucket timestamp as HH:MM for chart axes.
func BucketLabel(t time.Time) string {
	return t.Format("15:04")
}

// Bucketize floors a timestamp to the bucket grid. bucketMinutes values
// below 1 are treated as 1.
func Bucketize(t time.Time, bucketMinutes int) time.Time {
	if bucketMinutes < 1 {
		bucketMinutes = 1
	}
	return t.UTC().Truncate(time.Duration(bucketMinutes) * time.Minute)
}

// BuildChartData produces chart buckets spanning the meeting's scheduled
// range [start, end]. Buckets without an explicit sample carry the last
// known value forward, so gaps read as engagement holding steady rather
// than dropping to zero. No bucket is emitted past the earlier of now and
// the latest known sample, so the chart never fabricates future data.
//
// When start/end are zero the summary's own range is used. A nil summary
// yields an empty chart.
func BuildChartData(start, end, now time.Time, summary *Summary) []ChartPoint {
	if summary == nil || (len(summary.Overall) == 0 && len(summary.Participants) == 0) {
		return nil
	}
	bucketMinutes := summary.BucketMinutes
	if bucketMinutes < 1 {
		bucketMinutes = 1
	}
	if start.IsZero() || end.IsZero() {
		start, end = summary.Start, summary.End
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}

	limit := Bucketize(now, bucketMinutes)
	if latest, ok := summary.Overall.Latest(); ok && latest.Bucket.Before(limit) {
		limit = latest.Bucket
	}

	total := len(summary.Participants)
	step := time.Duration(bucketMinutes) * time.Minute
	var points []ChartPoint
	lastKnown := 0.0
	for bucket := Bucketize(start, bucketMinutes); !bucket.After(Bucketize(end, bucketMinutes)); bucket = bucket.Add(step) {
		if bucket.After(limit) {
			break
		}
		if v, ok := summary.Overall.ValueAt(bucket); ok {
			lastKnown = v
		}
		points = append(points, makeChartPoint(bucket, lastKnown, total))
	}
	return points
}

// BuildBaselineChart produces empty chart buckets spanning [start, end]
// with zero engagement, for rendering before any summary exists.
func BuildBaselineChart(start, end time.Time, bucketMinutes int) []ChartPoint {
	if bucketMinutes < 1 {
		bucketMinutes = 1
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	step := time.Duration(bucketMinutes) * time.Minute
	var points []ChartPoint
	for bucket := Bucketize(start, bucketMinutes); !bucket.After(Bucketize(end, bucketMinutes)); bucket = bucket.Add(step) {
		points = append(points, makeChartPoint(bucket, 0, 0))
	}
	return points
}

func makeChartPoint(bucket time.Time, value float64, total int) ChartPoint {
	pct := clampPercent(value)
	engaged := int(math.Round(pct / 100 * float64(total)))
	if engaged > total {
		engaged = total
	}
	notEngaged := total - engaged
	if notEngaged < 0 {
		notEngaged = 0
	}
	var engagedPct, notEngagedPct float64
	if total > 0 {
		engagedPct = float64(engaged) / float64(total) * 100
		notEngagedPct = float64(notEngaged) / float64(total) * 100
	}
	return ChartPoint{
		Bucket:            bucket,
		Label:             BucketLabel(bucket),
		Overall:           pct,
		EngagedCount:      engaged,
		NotEngagedCount:   notEngaged,
		EngagedPercent:    engagedPct,
		NotEngagedPercent: notEngagedPct,
		TotalParticipants: total,
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
