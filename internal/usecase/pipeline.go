package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/assembler"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/prompt"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Units      ports.UnitSource
	Prompts    *prompt.Builder
	Generator  ports.Generator
	Checkpoint ports.CheckpointStore
	Assembler  *assembler.Assembler
	Writer     ports.DatasetWriter
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// PipelineConfig tunes one run.
type PipelineConfig struct {
	TargetCount int
	Workers     int
	FlushEvery  int
	// SharedContext is placed in prompts of units that carry no context of
	// their own (the persona for memory units).
	SharedContext string
	Controller    ControllerConfig
}

// Pipeline implements the checkpointed generation workflow.
type Pipeline struct {
	units      ports.UnitSource
	prompts    *prompt.Builder
	generator  ports.Generator
	checkpoint ports.CheckpointStore
	assembler  *assembler.Assembler
	writer     ports.DatasetWriter
	notifier   ports.Notifier
	logger     *slog.Logger
	now        func() time.Time
	cfg        PipelineConfig
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Pipeline{
		units:      deps.Units,
		prompts:    deps.Prompts,
		generator:  deps.Generator,
		checkpoint: deps.Checkpoint,
		assembler:  deps.Assembler,
		writer:     deps.Writer,
		notifier:   deps.Notifier,
		logger:     logger.With("component", "pipeline"),
		now:        now,
		cfg:        cfg,
	}
}

// Run generates every outstanding unit, keeps the checkpoint current and
// writes the final dataset. Unit failures are counted, not returned; the
// returned error is a cancellation, an empty catalog or a storage failure.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	summary := domain.Summary{RunID: uuid.NewString()}
	logger := p.logger.With("run", summary.RunID)

	if p.units == nil || p.prompts == nil || p.generator == nil || p.checkpoint == nil {
		return summary, errors.New("pipeline misconfigured")
	}

	resumed, err := p.checkpoint.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load checkpoint: %w", err)
	}
	summary.Resumed = len(resumed)

	if err := p.checkpoint.Writable(ctx); err != nil {
		return summary, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	units, err := p.units.Enumerate(p.cfg.TargetCount)
	if err != nil {
		return summary, fmt.Errorf("enumerate units: %w", err)
	}
	summary.UnitsTotal = len(units)

	pending := units
	if len(resumed) > 0 {
		pending = skipCompleted(units, resumed, p.units.Deterministic())
	}
	summary.UnitsSkipped = len(units) - len(pending)

	logger.Info("run started",
		"units", len(units),
		"pending", len(pending),
		"resumed_records", len(resumed),
		"workers", p.cfg.Workers)

	ctrl := NewController(p.generator, p.cfg.Controller, p.logger.With("component", "controller"))
	commit := newCommitter(p.checkpoint, p.cfg.FlushEvery, resumed)

	var (
		mu        sync.Mutex
		committed int
		abandoned int
		added     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for _, unit := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := ctrl.Process(gctx, unit, p.prompts.Build(unit, p.cfg.SharedContext))
			if err != nil {
				return err
			}

			if out.State != StateParsed {
				mu.Lock()
				abandoned++
				mu.Unlock()
				return nil
			}

			// A parsed unit is committed even if the run is being cancelled.
			records := p.stamp(unit, out.Records)
			if err := commit.Add(context.WithoutCancel(gctx), records); err != nil {
				return err
			}

			mu.Lock()
			committed++
			added += len(records)
			done := committed + abandoned
			total := added
			mu.Unlock()

			logger.Info("unit committed",
				"unit", unit.ID(),
				"records", len(records),
				"attempts", out.Attempts,
				"progress", fmt.Sprintf("%d/%d", done, len(pending)),
				"new_records", total)
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	// The final flush runs even when the run was cancelled.
	flushErr := commit.Flush(context.WithoutCancel(ctx))

	summary.UnitsCommitted = committed
	summary.UnitsAbandoned = abandoned
	summary.NewRecords = added
	summary.Calls = ctrl.Calls()
	summary.TotalRecords = len(resumed) + added

	if flushErr != nil {
		return summary, flushErr
	}
	if runErr != nil {
		logger.Warn("run stopped early", "error", runErr, "committed_records", summary.TotalRecords)
		return summary, runErr
	}

	if err := p.finalize(ctx, commit.Snapshot(), &summary); err != nil {
		return summary, err
	}

	logger.Info("run finished",
		"committed_units", summary.UnitsCommitted,
		"abandoned_units", summary.UnitsAbandoned,
		"calls", summary.Calls,
		"total_records", summary.TotalRecords)
	p.notify(ctx, summary)

	return summary, nil
}

// Assemble rebuilds the final artifacts from the checkpoint without issuing
// any generation calls.
func (p *Pipeline) Assemble(ctx context.Context) (domain.Summary, error) {
	summary := domain.Summary{RunID: uuid.NewString()}
	if p.checkpoint == nil {
		return summary, errors.New("pipeline misconfigured")
	}

	records, err := p.checkpoint.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load checkpoint: %w", err)
	}
	summary.Resumed = len(records)
	summary.TotalRecords = len(records)

	if err := p.finalize(ctx, records, &summary); err != nil {
		return summary, err
	}
	p.logger.Info("dataset assembled", "run", summary.RunID, "records", len(records), "dropped", summary.Dropped)
	return summary, nil
}

func (p *Pipeline) finalize(ctx context.Context, records []domain.MemoryRecord, summary *domain.Summary) error {
	if p.assembler == nil || p.writer == nil {
		return nil
	}

	res := p.assembler.Assemble(records)
	summary.Dropped = res.Dropped
	summary.Duplicates = res.Duplicates
	for _, problem := range res.Problems {
		p.logger.Debug("record dropped", "problem", problem)
	}

	rawPath, err := p.writer.WriteRaw(ctx, res.Raw)
	if err != nil {
		return fmt.Errorf("write raw dataset: %w", err)
	}
	normalizedPath, err := p.writer.WriteNormalized(ctx, res.Normalized)
	if err != nil {
		return fmt.Errorf("write normalized dataset: %w", err)
	}
	summary.RawPath = rawPath
	summary.NormalizedPath = normalizedPath
	return nil
}

func (p *Pipeline) notify(ctx context.Context, summary domain.Summary) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishSummary(ctx, FormatSummary(summary)); err != nil {
		p.logger.Warn("summary notification failed", "error", err)
	}
}

func (p *Pipeline) stamp(unit domain.GenerationUnit, records []domain.MemoryRecord) []domain.MemoryRecord {
	at := p.now().UTC()
	out := make([]domain.MemoryRecord, len(records))
	for i, rec := range records {
		rec.ID = ulid.Make().String()
		rec.UnitID = unit.ID()
		rec.Category = unit.Category
		rec.Topic = unit.Topic
		rec.Source = unit.Source
		rec.CommittedAt = at
		out[i] = rec
	}
	return out
}

// skipCompleted drops units that already produced records. Deterministic
// sources are matched by unit ID; otherwise the run resumes by count, one
// unit per completed unit ID found in the checkpoint.
func skipCompleted(units []domain.GenerationUnit, resumed []domain.MemoryRecord, deterministic bool) []domain.GenerationUnit {
	done := make(map[string]struct{}, len(resumed))
	legacy := 0
	for _, rec := range resumed {
		if rec.UnitID == "" {
			legacy++
			continue
		}
		done[rec.UnitID] = struct{}{}
	}

	if !deterministic {
		n := min(len(done)+legacy, len(units))
		return units[n:]
	}

	pending := make([]domain.GenerationUnit, 0, len(units))
	for _, unit := range units {
		if _, ok := done[unit.ID()]; ok {
			continue
		}
		pending = append(pending, unit)
	}
	return pending
}

// FormatSummary renders a run summary for humans.
func FormatSummary(s domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "Units: %s total, %s skipped, %s committed, %s abandoned\n",
		humanize.Comma(int64(s.UnitsTotal)),
		humanize.Comma(int64(s.UnitsSkipped)),
		humanize.Comma(int64(s.UnitsCommitted)),
		humanize.Comma(int64(s.UnitsAbandoned)))
	fmt.Fprintf(&b, "Calls: %s\n", humanize.Comma(int64(s.Calls)))
	fmt.Fprintf(&b, "Records: %s new, %s resumed, %s total\n",
		humanize.Comma(int64(s.NewRecords)),
		humanize.Comma(int64(s.Resumed)),
		humanize.Comma(int64(s.TotalRecords)))
	if s.Dropped > 0 || s.Duplicates > 0 {
		fmt.Fprintf(&b, "Filtered: %s invalid, %s duplicates\n",
			humanize.Comma(int64(s.Dropped)),
			humanize.Comma(int64(s.Duplicates)))
	}
	if s.RawPath != "" {
		fmt.Fprintf(&b, "Raw: %s\n", s.RawPath)
	}
	if s.NormalizedPath != "" {
		fmt.Fprintf(&b, "Normalized: %s\n", s.NormalizedPath)
	}
	return b.String()
}
