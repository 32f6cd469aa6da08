package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func bucket(min int) time.Time {
	return time.Date(2026, 8, 31, 10, min, 0, 0, time.UTC)
}

func TestUpsertPoint_InsertsSorted(t *testing.T) {
	var s Series
	s = UpsertPoint(s, Point{Bucket: bucket(2), Value: 50})
	s = UpsertPoint(s, Point{Bucket: bucket(0), Value: 10})
	s = UpsertPoint(s, Point{Bucket: bucket(1), Value: 30})

	require.Len(t, s, 3)
	require.Equal(t, bucket(0), s[0].Bucket)
	require.Equal(t, bucket(1), s[1].Bucket)
	require.Equal(t, bucket(2), s[2].Bucket)
}

func TestUpsertPoint_LastWriteWinsPerBucket(t *testing.T) {
	var s Series
	s = UpsertPoint(s, Point{Bucket: bucket(0), Value: 10})
	s = UpsertPoint(s, Point{Bucket: bucket(0), Value: 90})

	require.Len(t, s, 1)
	require.Equal(t, 90.0, s[0].Value)
}

func TestUpsertPoint_DoesNotMutateInput(t *testing.T) {
	orig := Series{{Bucket: bucket(0), Value: 10}}
	_ = UpsertPoint(orig, Point{Bucket: bucket(0), Value: 99})
	require.Equal(t, 10.0, orig[0].Value)

	_ = UpsertPoint(orig, Point{Bucket: bucket(1), Value: 20})
	require.Len(t, orig, 1)
}

func TestSeries_Latest(t *testing.T) {
	var s Series
	_, ok := s.Latest()
	require.False(t, ok)

	s = UpsertPoint(s, Point{Bucket: bucket(0), Value: 10})
	s = UpsertPoint(s, Point{Bucket: bucket(3), Value: 70})
	latest, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, bucket(3), latest.Bucket)
	require.Equal(t, 70.0, latest.Value)
}

func TestApplyDelta_UpdatesOverallAndParticipants(t *testing.T) {
	summary := Summary{
		MeetingID:     "m1",
		BucketMinutes: 1,
		Overall:       Series{{Bucket: bucket(0), Value: 50}},
		Participants: []ParticipantSeries{
			{ParticipantID: "p1", Series: Series{{Bucket: bucket(0), Value: 100}}},
		},
	}
	delta := Delta{
		MeetingID:    "m1",
		Bucket:       bucket(1),
		Overall:      75,
		Participants: map[string]float64{"p1": 100},
	}

	next := ApplyDelta(summary, delta)

	require.Len(t, next.Overall, 2)
	require.Equal(t, 75.0, next.Overall[1].Value)
	require.Len(t, next.Participants[0].Series, 2)
	require.Equal(t, 100.0, next.Participants[0].Series[1].Value)
}

func TestApplyDelta_AppendsLateJoiners(t *testing.T) {
	summary := Summary{
		MeetingID: "m1",
		Overall:   Series{{Bucket: bucket(0), Value: 50}},
		Participants: []ParticipantSeries{
			{ParticipantID: "p1", Series: Series{{Bucket: bucket(0), Value: 100}}},
		},
	}
	delta := Delta{
		MeetingID:    "m1",
		Bucket:       bucket(1),
		Overall:      50,
		Participants: map[string]float64{"p1": 100, "p2": 0},
	}

	next := ApplyDelta(summary, delta)

	require.Len(t, next.Participants, 2)
	ids := []string{next.Participants[0].ParticipantID, next.Participants[1].ParticipantID}
	require.Contains(t, ids, "p2")
}

func TestApplyDelta_DoesNotMutateInput(t *testing.T) {
	summary := Summary{
		MeetingID: "m1",
		Overall:   Series{{Bucket: bucket(0), Value: 50}},
		Participants: []ParticipantSeries{
			{ParticipantID: "p1", Series: Series{{Bucket: bucket(0), Value: 100}}},
		},
	}
	delta := Delta{
		MeetingID:    "m1",
		Bucket:       bucket(0),
		Overall:      10,
		Participants: map[string]float64{"p1": 0},
	}

	_ = ApplyDelta(summary, delta)

	require.Equal(t, 50.0, summary.Overall[0].Value)
	require.Equal(t, 100.0, summary.Participants[0].Series[0].Value)
	require.Len(t, summary.Participants, 1)
}

func TestApplyDelta_OutOfOrderBucketOverwrites(t *testing.T) {
	summary := Summary{
		MeetingID: "m1",
		Overall: Series{
			{Bucket: bucket(0), Value: 50},
			{Bucket: bucket(2), Value: 80},
		},
	}
	// A late delta for an already-known bucket wins.
	next := ApplyDelta(summary, Delta{MeetingID: "m1", Bucket: bucket(0), Overall: 60})

	require.Len(t, next.Overall, 2)
	require.Equal(t, 60.0, next.Overall[0].Value)
	require.Equal(t, 80.0, next.Overall[1].Value)
}
