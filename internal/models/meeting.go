package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting represents one scheduled meeting slot. A meeting is keyed by
// either a city/room pair or a Microsoft Teams identity, never both.
type Meeting struct {
	ID              uuid.UUID  `json:"id"`
	StartTS         time.Time  `json:"start_ts"`
	EndTS           time.Time  `json:"end_ts"`
	CityID          *uuid.UUID `json:"city_id,omitempty"`
	MeetingRoomID   *uuid.UUID `json:"meeting_room_id,omitempty"`
	MSTeamsThreadID *string    `json:"ms_teams_thread_id,omitempty"`
	MSTeamsID       *string    `json:"ms_teams_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Started reports whether the meeting has begun at the given instant.
func (m *Meeting) Started(now time.Time) bool {
	return !now.Before(m.StartTS)
}

// Ended reports whether the meeting is over at the given instant.
func (m *Meeting) Ended(now time.Time) bool {
	return !now.Before(m.EndTS)
}

// MeetingDetail is a meeting joined with its location names.
type MeetingDetail struct {
	Meeting
	CityName        *string `json:"city_name,omitempty"`
	MeetingRoomName *string `json:"meeting_room_name,omitempty"`
}

// MeetingSummary is the persisted post-meeting rollup.
type MeetingSummary struct {
	MeetingID            uuid.UUID `json:"meeting_id"`
	ParticipantCount     int       `json:"participant_count"`
	AverageEngagement    float64   `json:"average_engagement"`
	NormalizedEngagement float64   `json:"normalized_engagement"`
	EngagementLevel      string    `json:"engagement_level"`
	CreatedAt            time.Time `json:"created_at"`
}
