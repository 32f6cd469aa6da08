package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one attendee of a meeting, identified by a browser
// fingerprint so reconnects map back to the same row.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	MeetingID   uuid.UUID `json:"meeting_id"`
	Fingerprint string    `json:"fingerprint"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// StatusSample is one recorded engagement status observation.
type StatusSample struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	MeetingID     uuid.UUID `json:"meeting_id"`
	Status        string    `json:"status"`
	RecordedAt    time.Time `json:"recorded_at"`
}
