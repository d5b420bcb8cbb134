package ports

import (
	"context"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

// UnitSource enumerates the generation units of one run.
type UnitSource interface {
	Enumerate(target int) ([]domain.GenerationUnit, error)
	// Deterministic reports whether enumeration is repeatable, which is what
	// allows a resumed run to skip units that already committed records.
	Deterministic() bool
}

// Generator sends a prompt to a text-generation backend.
// Failures should be *domain.CallError so retries can be decided.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
}

// CheckpointStore durably keeps committed records between runs.
type CheckpointStore interface {
	Load(ctx context.Context) ([]domain.MemoryRecord, error)
	Append(ctx context.Context, records []domain.MemoryRecord) error
	// Writable fails when a later Append could not persist, so a run
	// stops before it spends any generation calls.
	Writable(ctx context.Context) error
}

// DatasetWriter persists the final raw and normalized artifacts.
type DatasetWriter interface {
	WriteRaw(ctx context.Context, records []domain.MemoryRecord) (string, error)
	WriteNormalized(ctx context.Context, records []domain.NormalizedRecord) (string, error)
}

// Notifier streams the run summary to an outside channel (Telegram, etc.).
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}
