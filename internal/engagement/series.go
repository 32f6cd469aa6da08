package engagement

import (
	"sort"
	"time"
)

// UpsertPoint returns a new series with the point at bucket replaced if
// present, else inserted in sorted position. The input series is never
// mutated. Last write wins when the bucket already exists; callers that
// need strict ordering must enforce monotonic delivery per bucket.
func UpsertPoint(series Series, point Point) Series {
	idx := sort.Search(len(series), func(i int) bool {
		return !series[i].Bucket.Before(point.Bucket)
	})
	if idx < len(series) && series[idx].Bucket.Equal(point.Bucket) {
		out := make(Series, len(series))
		copy(out, series)
		out[idx] = point
		return out
	}
	out := make(Series, 0, len(series)+1)
	out = append(out, series[:idx]...)
	out = append(out, point)
	out = append(out, series[idx:]...)
	return out
}

// Latest returns the last point of the series, or false when empty.
func (s Series) Latest() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// ValueAt returns the value at the given bucket, or false when absent.
func (s Series) ValueAt(bucket time.Time) (float64, bool) {
	idx := sort.Search(len(s), func(i int) bool {
		return !s[i].Bucket.Before(bucket)
	})
	if idx < len(s) && s[idx].Bucket.Equal(bucket) {
		return s[idx].Value, true
	}
	return 0, false
}

// ApplyDelta returns a new summary with the delta's bucket upserted into
// the overall series and into every participant series named by the delta.
// Participant IDs not yet present in the summary are appended as new
// entries whose series contains just the delta's point (late joiners).
// The input summary is never mutated, so the function is safe to use as
// a reducer.
func ApplyDelta(summary Summary, delta Delta) Summary {
	point := Point{Bucket: delta.Bucket, Value: delta.Overall}

	out := summary
	out.Overall = UpsertPoint(summary.Overall, point)

	seen := make(map[string]bool, len(summary.Participants))
	out.Participants = make([]ParticipantSeries, 0, len(summary.Participants))
	for _, p := range summary.Participants {
		seen[p.ParticipantID] = true
		if value, ok := delta.Participants[p.ParticipantID]; ok {
			p.Series = UpsertPoint(p.Series, Point{Bucket: delta.Bucket, Value: value})
		}
		out.Participants = append(out.Participants, p)
	}

	// Deterministic order for participants the snapshot has not seen yet.
	for _, id := range sortedKeys(delta.Participants) {
		if seen[id] {
			continue
		}
		out.Participants = append(out.Participants, ParticipantSeries{
			ParticipantID: id,
			Series:        Series{{Bucket: delta.Bucket, Value: delta.Participants[id]}},
		})
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
