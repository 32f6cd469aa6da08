package meetings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-meet/engagement/internal/models"
)

// ErrNotFound means the meeting does not exist.
var ErrNotFound = errors.New("meeting not found")

// Repository handles meeting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const detailColumns = `m.id, m.start_ts, m.end_ts, m.city_id, m.meeting_room_id,
	m.ms_teams_thread_id, m.ms_teams_id, m.created_at, m.updated_at,
	c.name, r.name`

const detailFrom = ` FROM meetings m
	LEFT JOIN cities c ON c.id = m.city_id
	LEFT JOIN meeting_rooms r ON r.id = m.meeting_room_id`

func scanDetail(row pgx.Row) (*models.MeetingDetail, error) {
	var d models.MeetingDetail
	err := row.Scan(&d.ID, &d.StartTS, &d.EndTS, &d.CityID, &d.MeetingRoomID,
		&d.MSTeamsThreadID, &d.MSTeamsID, &d.CreatedAt, &d.UpdatedAt,
		&d.CityName, &d.MeetingRoomName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDetail returns a meeting with its location names.
func (r *Repository) GetDetail(ctx context.Context, id uuid.UUID) (*models.MeetingDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + ` WHERE m.id = $1`
	return scanDetail(r.pool.QueryRow(ctx, q, id))
}

// FindCurrentByRoom returns the ongoing or next upcoming meeting of a room.
func (r *Repository) FindCurrentByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (*models.MeetingDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + `
		WHERE m.meeting_room_id = $1 AND m.end_ts > $2
		ORDER BY m.start_ts LIMIT 1`
	return scanDetail(r.pool.QueryRow(ctx, q, roomID, now))
}

// FindCurrentByThread returns the ongoing or next upcoming meeting for a
// Teams chat thread.
func (r *Repository) FindCurrentByThread(ctx context.Context, threadID string, now time.Time) (*models.MeetingDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + `
		WHERE m.ms_teams_thread_id = $1 AND m.end_ts > $2
		ORDER BY m.start_ts LIMIT 1`
	return scanDetail(r.pool.QueryRow(ctx, q, threadID, now))
}

// FindCurrentByTeamsID returns the ongoing or next upcoming meeting for a
// numeric Teams meeting id.
func (r *Repository) FindCurrentByTeamsID(ctx context.Context, teamsID string, now time.Time) (*models.MeetingDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + `
		WHERE m.ms_teams_id = $1 AND m.end_ts > $2
		ORDER BY m.start_ts LIMIT 1`
	return scanDetail(r.pool.QueryRow(ctx, q, teamsID, now))
}

// Create inserts a new meeting slot.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, start_ts, end_ts, city_id, meeting_room_id, ms_teams_thread_id, ms_teams_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.StartTS, m.EndTS, m.CityID, m.MeetingRoomID, m.MSTeamsThreadID, m.MSTeamsID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// UpdateEnd sets a new end time for a meeting.
func (r *Repository) UpdateEnd(ctx context.Context, id uuid.UUID, end time.Time) error {
	const q = `UPDATE meetings SET end_ts = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSummary persists the final rollup of a finished meeting.
func (r *Repository) SaveSummary(ctx context.Context, s *models.MeetingSummary) error {
	const q = `INSERT INTO meeting_summaries (meeting_id, participant_count, average_engagement, normalized_engagement, engagement_level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (meeting_id) DO UPDATE SET
			participant_count = EXCLUDED.participant_count,
			average_engagement = EXCLUDED.average_engagement,
			normalized_engagement = EXCLUDED.normalized_engagement,
			engagement_level = EXCLUDED.engagement_level
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, s.MeetingID, s.ParticipantCount, s.AverageEngagement, s.NormalizedEngagement, s.EngagementLevel).
		Scan(&s.CreatedAt)
}

// GetSummary returns the persisted rollup of a finished meeting.
func (r *Repository) GetSummary(ctx context.Context, meetingID uuid.UUID) (*models.MeetingSummary, error) {
	const q = `SELECT meeting_id, participant_count, average_engagement, normalized_engagement, engagement_level, created_at
		FROM meeting_summaries WHERE meeting_id = $1`
	var s models.MeetingSummary
	err := r.pool.QueryRow(ctx, q, meetingID).
		Scan(&s.MeetingID, &s.ParticipantCount, &s.AverageEngagement, &s.NormalizedEngagement, &s.EngagementLevel, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
