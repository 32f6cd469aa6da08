package cities

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-meet/engagement/internal/models"
)

// Repository handles city persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a city repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new city.
func (r *Repository) Create(ctx context.Context, city *models.City) error {
	const q = `INSERT INTO cities (id, name) VALUES (gen_random_uuid(), $1)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, city.Name).Scan(&city.ID, &city.CreatedAt)
}

// GetByID returns a city by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.City, error) {
	const q = `SELECT id, name, created_at FROM cities WHERE id = $1`
	var city models.City
	if err := r.pool.QueryRow(ctx, q, id).Scan(&city.ID, &city.Name, &city.CreatedAt); err != nil {
		return nil, err
	}
	return &city, nil
}

// List returns cities ordered by name, paginated.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.City, int, error) {
	const countQ = `SELECT COUNT(*) FROM cities`
	var total int
	if err := r.pool.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `SELECT id, name, created_at FROM cities ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.City
	for rows.Next() {
		var city models.City
		if err := rows.Scan(&city.ID, &city.Name, &city.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, city)
	}
	return list, total, rows.Err()
}
