package idgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCounter keeps sequences in the area_counters table. The upsert is a
// single statement, so concurrent callers serialize on the row lock.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

// NewPostgresCounter builds a counter over pool.
func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

// Increment implements CounterStore.
func (c *PostgresCounter) Increment(ctx context.Context, areaID string) (int64, error) {
	const query = `
        INSERT INTO area_counters (area_id, value) VALUES ($1, 1)
        ON CONFLICT (area_id) DO UPDATE SET value = area_counters.value + 1, updated_at = NOW()
        RETURNING value`
	var value int64
	if err := c.pool.QueryRow(ctx, query, areaID).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
