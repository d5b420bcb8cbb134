package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

const defaultFlushEvery = 5

// committer owns the in-memory committed set and flushes it to the
// checkpoint store in groups.
type committer struct {
	mu         sync.Mutex
	store      ports.CheckpointStore
	flushEvery int
	records    []domain.MemoryRecord
	pending    []domain.MemoryRecord
}

func newCommitter(store ports.CheckpointStore, flushEvery int, resumed []domain.MemoryRecord) *committer {
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}
	records := make([]domain.MemoryRecord, len(resumed))
	copy(records, resumed)
	return &committer{store: store, flushEvery: flushEvery, records: records}
}

// Add commits records and flushes once enough are pending.
func (c *committer) Add(ctx context.Context, recs []domain.MemoryRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, recs...)
	c.pending = append(c.pending, recs...)
	if len(c.pending) < c.flushEvery {
		return nil
	}
	return c.flushLocked(ctx)
}

// Flush writes whatever is pending.
func (c *committer) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *committer) flushLocked(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := c.store.Append(ctx, c.pending); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	c.pending = nil
	return nil
}

// Snapshot returns every committed record in commit order.
func (c *committer) Snapshot() []domain.MemoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.MemoryRecord, len(c.records))
	copy(out, c.records)
	return out
}
