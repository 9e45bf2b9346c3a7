package idgen

import (
	"context"
	"sync"
)

// MemoryCounter is a process-local CounterStore.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounter returns an empty counter set.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: map[string]int64{}}
}

// Increment implements CounterStore.
func (c *MemoryCounter) Increment(_ context.Context, areaID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[areaID]++
	return c.values[areaID], nil
}
