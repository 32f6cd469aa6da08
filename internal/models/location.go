package models

import (
	"time"

	"github.com/google/uuid"
)

// City is a top level location grouping meeting rooms.
type City struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MeetingRoom is a physical room inside a city.
type MeetingRoom struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CityID    uuid.UUID `json:"city_id"`
	CreatedAt time.Time `json:"created_at"`
}
