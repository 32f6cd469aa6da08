package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-meet/engagement/internal/engagement"
)

func TestDecodeClient(t *testing.T) {
	frame, err := DecodeClient([]byte(`{"type":"join","token":"tok-1"}`))
	require.NoError(t, err)
	join, ok := frame.(JoinFrame)
	require.True(t, ok)
	require.Equal(t, "tok-1", join.Token)

	frame, err = DecodeClient([]byte(`{"type":"status","status":"engaged"}`))
	require.NoError(t, err)
	status, ok := frame.(StatusFrame)
	require.True(t, ok)
	require.Equal(t, engagement.StatusEngaged, status.Status)

	frame, err = DecodeClient([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	_, ok = frame.(PingFrame)
	require.True(t, ok)
}

func TestDecodeClient_Malformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"token":"x"}`),
		[]byte(`{"type":"snapshot"}`), // server frame on the client side
		[]byte(`{"type":"dance"}`),
	}
	for _, raw := range cases {
		_, err := DecodeClient(raw)
		require.Error(t, err)
		var malformed *ErrMalformedFrame
		require.ErrorAs(t, err, &malformed)
	}
}

func TestDecodeServer_JoinedWithSnapshot(t *testing.T) {
	raw := []byte(`{
		"type": "joined",
		"participant_id": "p1",
		"meeting_id": "m1",
		"snapshot": {
			"meeting_id": "m1",
			"bucket_minutes": 1,
			"overall": [{"bucket": "2026-08-31T10:00:00Z", "value": 80}]
		}
	}`)
	frame, err := DecodeServer(raw)
	require.NoError(t, err)
	joined, ok := frame.(JoinedFrame)
	require.True(t, ok)
	require.Equal(t, "p1", joined.ParticipantID)
	require.NotNil(t, joined.Snapshot)
	require.Equal(t, 80.0, joined.Snapshot.Overall[0].Value)
}

func TestDecodeServer_JoinedWithoutSnapshot(t *testing.T) {
	frame, err := DecodeServer([]byte(`{"type":"joined","participant_id":"p1","meeting_id":"m1"}`))
	require.NoError(t, err)
	joined := frame.(JoinedFrame)
	require.Nil(t, joined.Snapshot)
}

func TestDecodeServer_Countdown(t *testing.T) {
	raw := []byte(`{
		"type": "meeting_countdown",
		"meeting_id": "m1",
		"start_time": "2026-08-31T11:00:00Z",
		"server_time": "2026-08-31T10:58:30Z",
		"city_name": "Berlin"
	}`)
	frame, err := DecodeServer(raw)
	require.NoError(t, err)
	cd := frame.(MeetingCountdownFrame)
	require.Equal(t, "Berlin", cd.CityName)
	require.Equal(t, 90*time.Second, cd.StartTime.Sub(cd.ServerTime))
}

func TestDecodeServer_UnknownType(t *testing.T) {
	_, err := DecodeServer([]byte(`{"type":"join","token":"x"}`))
	require.Error(t, err)
}

func TestEncodeDecodeDelta(t *testing.T) {
	delta := DeltaFrame{
		Type: TypeDelta,
		Data: engagement.Delta{
			MeetingID:    "m1",
			Bucket:       time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
			Overall:      62.5,
			Participants: map[string]float64{"p1": 100, "p2": 25},
		},
	}
	raw, err := Encode(delta)
	require.NoError(t, err)

	frame, err := DecodeServer(raw)
	require.NoError(t, err)
	decoded := frame.(DeltaFrame)
	require.Equal(t, delta.Data.Overall, decoded.Data.Overall)
	require.Equal(t, delta.Data.Participants, decoded.Data.Participants)
}
