// Package protocol defines the JSON frame taxonomy spoken over a
// meeting's realtime channel. Every frame is a flat JSON object with a
// "type" discriminator; snapshot and delta frames carry their payload
// under "data". The same definitions serve the client and the server.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aura-meet/engagement/internal/engagement"
)

// Client-to-server frame types.
const (
	TypeJoin   = "join"
	TypeStatus = "status"
	TypePing   = "ping"
)

// Server-to-client frame types.
const (
	TypeSnapshot          = "snapshot"
	TypeDelta             = "delta"
	TypeJoined            = "joined"
	TypePong              = "pong"
	TypeError             = "error"
	TypeMeetingEnded      = "meeting_ended"
	TypeMeetingNotStarted = "meeting_not_started"
	TypeMeetingCountdown  = "meeting_countdown"
	TypeMeetingStarted    = "meeting_started"
	TypeMeetingSummary    = "meeting_summary"
)

// CloseReasonMeetingEnded is the close reason the server sends with a
// normal close (1000) when the meeting is over. Clients treat it as
// terminal and do not reconnect.
const CloseReasonMeetingEnded = "Meeting ended"

// ErrMalformedFrame wraps JSON decode failures; malformed frames are
// logged and dropped, never fatal.
type ErrMalformedFrame struct {
	Reason string
	Err    error
}

func (e *ErrMalformedFrame) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed frame: %s: %v", e.Reason, e.Err)
	}
	return "malformed frame: " + e.Reason
}

func (e *ErrMalformedFrame) Unwrap() error { return e.Err }

// JoinFrame requests enrollment as an active participant. Token is the
// identity token: either the session token issued by POST /visit or a raw
// device fingerprint from older clients.
type JoinFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// StatusFrame is a fire-and-forget engagement status update.
type StatusFrame struct {
	Type   string            `json:"type"`
	Status engagement.Status `json:"status"`
}

// PingFrame keeps intermediary connections alive.
type PingFrame struct {
	Type string `json:"type"`
}

// SnapshotFrame carries a full engagement summary.
type SnapshotFrame struct {
	Type string             `json:"type"`
	Data engagement.Summary `json:"data"`
}

// DeltaFrame carries one incremental engagement update.
type DeltaFrame struct {
	Type string           `json:"type"`
	Data engagement.Delta `json:"data"`
}

// JoinedFrame acknowledges a join, optionally embedding the current
// snapshot so the client needs no separate fetch.
type JoinedFrame struct {
	Type          string              `json:"type"`
	ParticipantID string              `json:"participant_id"`
	MeetingID     string              `json:"meeting_id"`
	Snapshot      *engagement.Summary `json:"snapshot,omitempty"`
}

// PongFrame answers a ping with the server's clock, letting clients
// measure drift.
type PongFrame struct {
	Type       string    `json:"type"`
	ServerTime time.Time `json:"server_time"`
}

// ErrorFrame reports a server-side failure for this connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MeetingEndedFrame marks the meeting as over; the connection state
// becomes terminal.
type MeetingEndedFrame struct {
	Type    string     `json:"type"`
	Message string     `json:"message,omitempty"`
	EndTime *time.Time `json:"end_time,omitempty"`
}

// MeetingNotStartedFrame marks the meeting as not yet open for status
// updates.
type MeetingNotStartedFrame struct {
	Type      string     `json:"type"`
	Message   string     `json:"message,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// MeetingCountdownFrame is sent to clients connecting before the meeting
// starts. ServerTime anchors drift correction for the countdown.
type MeetingCountdownFrame struct {
	Type            string    `json:"type"`
	MeetingID       string    `json:"meeting_id"`
	StartTime       time.Time `json:"start_time"`
	ServerTime      time.Time `json:"server_time"`
	CityName        string    `json:"city_name,omitempty"`
	MeetingRoomName string    `json:"meeting_room_name,omitempty"`
}

// MeetingStartedFrame notifies countdown clients that the meeting is now
// live and they may join.
type MeetingStartedFrame struct {
	Type      string `json:"type"`
	MeetingID string `json:"meeting_id"`
	Message   string `json:"message,omitempty"`
}

// MeetingSummaryFrame carries the final meeting statistics broadcast when
// the meeting ends.
type MeetingSummaryFrame struct {
	Type                 string           `json:"type"`
	MeetingID            string           `json:"meeting_id"`
	CityName             string           `json:"city_name,omitempty"`
	MeetingRoomName      string           `json:"meeting_room_name,omitempty"`
	MSTeamsInviteURL     string           `json:"ms_teams_invite_url,omitempty"`
	StartTS              time.Time        `json:"start_ts"`
	EndTS                time.Time        `json:"end_ts"`
	DurationMinutes      int              `json:"duration_minutes"`
	MaxParticipants      int              `json:"max_participants"`
	NormalizedEngagement float64          `json:"normalized_engagement"`
	EngagementLevel      engagement.Level `json:"engagement_level"`
}

type typeProbe struct {
	Type string `json:"type"`
}

// Encode marshals a frame for the wire.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}

// DecodeClient parses a client-to-server frame into its typed form.
func DecodeClient(raw []byte) (any, error) {
	frameType, err := probeType(raw)
	if err != nil {
		return nil, err
	}
	switch frameType {
	case TypeJoin:
		return decodeAs[JoinFrame](raw)
	case TypeStatus:
		return decodeAs[StatusFrame](raw)
	case TypePing:
		return decodeAs[PingFrame](raw)
	default:
		return nil, &ErrMalformedFrame{Reason: "unknown client frame type " + frameType}
	}
}

// DecodeServer parses a server-to-client frame into its typed form.
func DecodeServer(raw []byte) (any, error) {
	frameType, err := probeType(raw)
	if err != nil {
		return nil, err
	}
	switch frameType {
	case TypeSnapshot:
		return decodeAs[SnapshotFrame](raw)
	case TypeDelta:
		return decodeAs[DeltaFrame](raw)
	case TypeJoined:
		return decodeAs[JoinedFrame](raw)
	case TypePong:
		return decodeAs[PongFrame](raw)
	case TypeError:
		return decodeAs[ErrorFrame](raw)
	case TypeMeetingEnded:
		return decodeAs[MeetingEndedFrame](raw)
	case TypeMeetingNotStarted:
		return decodeAs[MeetingNotStartedFrame](raw)
	case TypeMeetingCountdown:
		return decodeAs[MeetingCountdownFrame](raw)
	case TypeMeetingStarted:
		return decodeAs[MeetingStartedFrame](raw)
	case TypeMeetingSummary:
		return decodeAs[MeetingSummaryFrame](raw)
	default:
		return nil, &ErrMalformedFrame{Reason: "unknown server frame type " + frameType}
	}
}

func probeType(raw []byte) (string, error) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", &ErrMalformedFrame{Reason: "not a JSON object", Err: err}
	}
	if probe.Type == "" {
		return "", &ErrMalformedFrame{Reason: "missing type discriminator"}
	}
	return probe.Type, nil
}

func decodeAs[T any](raw []byte) (T, error) {
	var frame T
	if err := json.Unmarshal(raw, &frame); err != nil {
		var zero T
		return zero, &ErrMalformedFrame{Reason: "bad payload", Err: err}
	}
	return frame, nil
}
