// Package idgen allocates human-readable, area-scoped ticket identifiers.
package idgen

import (
	"context"
	"fmt"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// CounterStore atomically increments a per-area sequence and returns the new
// value. Implementations must never hand the same value to two callers.
type CounterStore interface {
	Increment(ctx context.Context, areaID string) (int64, error)
}

// Allocator formats counter values as <AREA CODE>-<sequence>.
type Allocator struct {
	counters CounterStore
}

// NewAllocator builds an allocator over counters.
func NewAllocator(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate returns the next identifier for area. A counter failure is
// returned as is so ticket creation aborts.
func (a *Allocator) Allocate(ctx context.Context, area *domain.Area) (string, error) {
	n, err := a.counters.Increment(ctx, area.ID)
	if err != nil {
		return "", fmt.Errorf("increment counter for area %s: %w", area.Code, err)
	}
	return Format(area.Code, n), nil
}

// Format renders an identifier such as IT-000042.
func Format(areaCode string, n int64) string {
	return fmt.Sprintf("%s-%06d", areaCode, n)
}
