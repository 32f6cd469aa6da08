package meetingrooms

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-meet/engagement/internal/models"
)

// Repository handles meeting room persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting room repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meeting room.
func (r *Repository) Create(ctx context.Context, room *models.MeetingRoom) error {
	const q = `INSERT INTO meeting_rooms (id, name, city_id) VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, room.Name, room.CityID).Scan(&room.ID, &room.CreatedAt)
}

// GetByID returns a meeting room by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.MeetingRoom, error) {
	const q = `SELECT id, name, city_id, created_at FROM meeting_rooms WHERE id = $1`
	var room models.MeetingRoom
	if err := r.pool.QueryRow(ctx, q, id).Scan(&room.ID, &room.Name, &room.CityID, &room.CreatedAt); err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns rooms, optionally filtered by city, ordered by name.
func (r *Repository) List(ctx context.Context, cityID *uuid.UUID, limit, offset int) ([]models.MeetingRoom, int, error) {
	countQ := `SELECT COUNT(*) FROM meeting_rooms`
	listQ := `SELECT id, name, city_id, created_at FROM meeting_rooms`
	var args []interface{}
	if cityID != nil {
		countQ += ` WHERE city_id = $1`
		listQ += ` WHERE city_id = $1 ORDER BY name LIMIT $2 OFFSET $3`
		args = []interface{}{*cityID, limit, offset}
	} else {
		listQ += ` ORDER BY name LIMIT $1 OFFSET $2`
		args = []interface{}{limit, offset}
	}

	var total int
	countArgs := []interface{}{}
	if cityID != nil {
		countArgs = append(countArgs, *cityID)
	}
	if err := r.pool.QueryRow(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.MeetingRoom
	for rows.Next() {
		var room models.MeetingRoom
		if err := rows.Scan(&room.ID, &room.Name, &room.CityID, &room.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, room)
	}
	return list, total, rows.Err()
}
