package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// AreaRepository looks up the fixed set of areas.
type AreaRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Area, error)
	GetByCode(ctx context.Context, code string) (*domain.Area, error)
	List(ctx context.Context) ([]domain.Area, error)
}

type areaRepository struct {
	pool *pgxpool.Pool
}

// NewAreaRepository builds the repository.
func NewAreaRepository(pool *pgxpool.Pool) AreaRepository {
	return &areaRepository{pool: pool}
}

func (r *areaRepository) GetByID(ctx context.Context, id string) (*domain.Area, error) {
	const query = `SELECT id, code, name, created_at FROM areas WHERE id=$1`
	var area domain.Area
	if err := r.pool.QueryRow(ctx, query, id).Scan(&area.ID, &area.Code, &area.Name, &area.CreatedAt); err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *areaRepository) GetByCode(ctx context.Context, code string) (*domain.Area, error) {
	const query = `SELECT id, code, name, created_at FROM areas WHERE code=$1`
	var area domain.Area
	if err := r.pool.QueryRow(ctx, query, code).Scan(&area.ID, &area.Code, &area.Name, &area.CreatedAt); err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *areaRepository) List(ctx context.Context) ([]domain.Area, error) {
	const query = `SELECT id, code, name, created_at FROM areas ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Area
	for rows.Next() {
		var area domain.Area
		if err := rows.Scan(&area.ID, &area.Code, &area.Name, &area.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, area)
	}
	return result, rows.Err()
}
