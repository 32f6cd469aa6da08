package engagement

import (
	"math"
	"time"
)

// SampleSet holds raw status samples keyed by participant ID and bucket,
// as loaded from storage.
type SampleSet map[string]map[time.Time]Status

// ParticipantInfo identifies a participant for summary composition.
type ParticipantInfo struct {
	ID          string
	Fingerprint string
}

// Add records a sample, normalizing the bucket to the grid.
func (s SampleSet) Add(participantID string, bucket time.Time, status Status, bucketMinutes int) {
	b := Bucketize(bucket, bucketMinutes)
	if s[participantID] == nil {
		s[participantID] = make(map[time.Time]Status)
	}
	s[participantID][b] = status
}

// BuildSummary composes a full engagement snapshot from raw samples.
// Each participant's status carries forward across buckets without a
// sample (a participant stays in their last reported state until they
// report again). The carried flags run through smoother to produce the
// percentage series; a nil smoother means the Kalman filter. The
// overall series is the mean across participants per bucket.
func BuildSummary(meetingID string, start, end time.Time, bucketMinutes, windowMinutes int, participants []ParticipantInfo, samples SampleSet, smoother Smoother) Summary {
	if bucketMinutes < 1 {
		bucketMinutes = 1
	}
	if smoother == nil {
		smoother = NewSmoother(SmoothingKalman)
	}
	start = Bucketize(start, bucketMinutes)
	end = Bucketize(end, bucketMinutes)
	buckets := bucketRange(start, end, bucketMinutes)

	series := make(map[string][]float64, len(participants))
	for _, p := range participants {
		flags := carryForwardFlags(buckets, samples[p.ID])
		window := len(flags)
		if window < 1 {
			window = 1
		}
		series[p.ID] = smoother.Smooth(flags, window)
	}

	out := Summary{
		MeetingID:     meetingID,
		Start:         start,
		End:           end,
		BucketMinutes: bucketMinutes,
		WindowMinutes: windowMinutes,
		Overall:       make(Series, 0, len(buckets)),
		Participants:  make([]ParticipantSeries, 0, len(participants)),
	}
	for _, p := range participants {
		values := series[p.ID]
		ps := ParticipantSeries{ParticipantID: p.ID, Fingerprint: p.Fingerprint, Series: make(Series, 0, len(buckets))}
		for i, b := range buckets {
			ps.Series = append(ps.Series, Point{Bucket: b, Value: values[i]})
		}
		out.Participants = append(out.Participants, ps)
	}
	for i, b := range buckets {
		var sum float64
		for _, p := range participants {
			sum += series[p.ID][i]
		}
		avg := 0.0
		if len(participants) > 0 {
			avg = sum / float64(len(participants))
		}
		out.Overall = append(out.Overall, Point{Bucket: b, Value: avg})
	}
	return out
}

// BucketRollup recomputes the current bucket's values over a trailing
// window, producing the payload of a delta broadcast. Deltas report
// the raw last known state, unsmoothed.
func BucketRollup(meetingID string, bucket time.Time, bucketMinutes, windowMinutes int, participants []ParticipantInfo, samples SampleSet) Delta {
	if windowMinutes < 1 {
		windowMinutes = 1
	}
	bucket = Bucketize(bucket, bucketMinutes)
	start := bucket.Add(-time.Duration(windowMinutes-1) * time.Minute)
	buckets := bucketRange(start, bucket, bucketMinutes)

	values := make(map[string]float64, len(participants))
	var sum float64
	for _, p := range participants {
		carried := carryForwardFlags(buckets, samples[p.ID])
		v := 0.0
		if len(carried) > 0 {
			v = flagValue(carried[len(carried)-1])
		}
		values[p.ID] = v
		sum += v
	}
	overall := 0.0
	if len(participants) > 0 {
		overall = sum / float64(len(participants))
	}
	return Delta{MeetingID: meetingID, Bucket: bucket, Overall: overall, Participants: values}
}

// AverageEngagement returns the mean of a summary's overall series.
func AverageEngagement(summary Summary) float64 {
	if len(summary.Overall) == 0 {
		return 0
	}
	var sum float64
	for _, p := range summary.Overall {
		sum += p.Value
	}
	return sum / float64(len(summary.Overall))
}

// NormalizeEngagement discounts raw engagement for very small meetings,
// where one or two participants swing the percentage wildly. The weight
// approaches 1 as participant count grows.
func NormalizeEngagement(raw float64, maxParticipants int) float64 {
	if maxParticipants <= 0 {
		return 0
	}
	weight := float64(maxParticipants) / float64(maxParticipants+1)
	return math.Round(clampPercent(raw)*weight*10) / 10
}

// ClassifyLevel maps normalized engagement to a summary level.
func ClassifyLevel(normalized float64) Level {
	switch {
	case normalized >= 75:
		return LevelHigh
	case normalized >= 50:
		return LevelHealthy
	case normalized >= 25:
		return LevelPassive
	default:
		return LevelLow
	}
}

func bucketRange(start, end time.Time, bucketMinutes int) []time.Time {
	step := time.Duration(bucketMinutes) * time.Minute
	var buckets []time.Time
	for b := start; !b.After(end); b = b.Add(step) {
		buckets = append(buckets, b)
	}
	return buckets
}

func carryForwardFlags(buckets []time.Time, byBucket map[time.Time]Status) []bool {
	flags := make([]bool, len(buckets))
	last := StatusDisengaged
	for i, b := range buckets {
		if status, ok := byBucket[b]; ok {
			last = status
		}
		flags[i] = last.Engaged()
	}
	return flags
}
