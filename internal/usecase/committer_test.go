package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

func recs(ids ...string) []domain.MemoryRecord {
	out := make([]domain.MemoryRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.MemoryRecord{UnitID: id, Instruction: "q", Output: "a"})
	}
	return out
}

func TestCommitterFlushesInGroups(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	c := newCommitter(store, 3, recs("old#0"))
	ctx := context.Background()

	for _, id := range []string{"a#0", "a#1"} {
		if err := c.Add(ctx, recs(id)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if store.appends != 0 {
		t.Fatalf("flushed before reaching the threshold: %d appends", store.appends)
	}

	if err := c.Add(ctx, recs("a#2")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if store.appends != 1 || len(store.Records()) != 3 {
		t.Fatalf("expected one flush of 3 records, got appends=%d records=%d", store.appends, len(store.Records()))
	}

	if err := c.Add(ctx, recs("a#3")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if store.appends != 2 || len(store.Records()) != 4 {
		t.Fatalf("unexpected final state: appends=%d records=%d", store.appends, len(store.Records()))
	}
	if got := len(c.Snapshot()); got != 5 {
		t.Fatalf("snapshot should include resumed records, got %d", got)
	}
}

func TestCommitterWrapsStoreFailure(t *testing.T) {
	t.Parallel()

	c := newCommitter(&memoryStore{failing: true}, 1, nil)
	err := c.Add(context.Background(), recs("a#0"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
