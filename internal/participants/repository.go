package participants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-meet/engagement/internal/models"
)

// Repository handles participant and status sample persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ensure finds or creates the participant row for a fingerprint in a
// meeting, so reconnects keep the same identity.
func (r *Repository) Ensure(ctx context.Context, meetingID uuid.UUID, fingerprint string) (*models.Participant, error) {
	const q = `INSERT INTO participants (id, meeting_id, fingerprint)
		VALUES (gen_random_uuid(), $1, $2)
		ON CONFLICT (meeting_id, fingerprint)
		DO UPDATE SET last_seen_at = now()
		RETURNING id, meeting_id, fingerprint, joined_at, last_seen_at`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, meetingID, fingerprint).
		Scan(&p.ID, &p.MeetingID, &p.Fingerprint, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a participant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	const q = `SELECT id, meeting_id, fingerprint, joined_at, last_seen_at
		FROM participants WHERE id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.MeetingID, &p.Fingerprint, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByMeeting returns all participants of a meeting ordered by join time.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Participant, error) {
	const q = `SELECT id, meeting_id, fingerprint, joined_at, last_seen_at
		FROM participants WHERE meeting_id = $1 ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.Fingerprint, &p.JoinedAt, &p.LastSeenAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// CountByMeeting returns the number of participants of a meeting.
func (r *Repository) CountByMeeting(ctx context.Context, meetingID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM participants WHERE meeting_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&n)
	return n, err
}

// RecordSample stores one engagement status observation.
func (r *Repository) RecordSample(ctx context.Context, participantID, meetingID uuid.UUID, status string, at time.Time) error {
	const q = `INSERT INTO status_samples (id, participant_id, meeting_id, status, recorded_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, participantID, meetingID, status, at)
	return err
}

// PruneSamples deletes all raw samples of a meeting. Called after the
// final summary is persisted.
func (r *Repository) PruneSamples(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	const q = `DELETE FROM status_samples WHERE meeting_id = $1`
	tag, err := r.pool.Exec(ctx, q, meetingID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SamplesByMeeting returns all samples of a meeting within [from, to),
// ordered by time.
func (r *Repository) SamplesByMeeting(ctx context.Context, meetingID uuid.UUID, from, to time.Time) ([]models.StatusSample, error) {
	const q = `SELECT id, participant_id, meeting_id, status, recorded_at
		FROM status_samples
		WHERE meeting_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at`
	rows, err := r.pool.Query(ctx, q, meetingID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.StatusSample
	for rows.Next() {
		var s models.StatusSample
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.MeetingID, &s.Status, &s.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
