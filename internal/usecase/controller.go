package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/response"
)

// UnitState tracks a unit through generate, parse and commit.
type UnitState string

const (
	StatePending     UnitState = "pending"
	StateRequested   UnitState = "requested"
	StateParsed      UnitState = "parsed"
	StateParseFailed UnitState = "parse_failed"
	StateCallFailed  UnitState = "call_failed"
	StateCommitted   UnitState = "committed"
	StateAbandoned   UnitState = "abandoned"
)

const defaultMaxAttempts = 2

// ControllerConfig bounds retries and paces calls.
type ControllerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	// Delay is the minimum spacing between any two calls, across workers.
	Delay       time.Duration
	CallTimeout time.Duration
	Options     domain.GenerateOptions
}

// Outcome is the terminal state of one unit.
type Outcome struct {
	Unit     domain.GenerationUnit
	State    UnitState
	Attempts int
	Records  []domain.MemoryRecord
	Salvaged bool
	Err      error
}

// Controller drives one unit through generate, parse and retry.
type Controller struct {
	gen     ports.Generator
	cfg     ControllerConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	calls   atomic.Int64
}

// NewController shares one limiter between every unit it processes.
func NewController(gen ports.Generator, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Controller{
		gen:     gen,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Calls returns how many generation calls were issued so far.
func (c *Controller) Calls() int {
	return int(c.calls.Load())
}

// Process returns a parsed or abandoned outcome. The only error it
// returns is the context's, when the run is cancelled.
func (c *Controller) Process(ctx context.Context, unit domain.GenerationUnit, prompt string) (Outcome, error) {
	out := Outcome{Unit: unit, State: StatePending}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.cfg.Backoff); err != nil {
				return out, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			return out, err
		}

		out.Attempts = attempt
		out.State = StateRequested

		text, err := c.call(ctx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.State = StateCallFailed
			out.Err = err
			if domain.IsPermanent(err) {
				c.logger.Warn("unit abandoned on permanent failure", "unit", unit.ID(), "attempt", attempt, "error", err)
				out.State = StateAbandoned
				return out, nil
			}
			c.logger.Warn("generation failed", "unit", unit.ID(), "attempt", attempt, "error", err)
			continue
		}

		parsed := response.Parse(text)
		if parsed.Failed() {
			out.State = StateParseFailed
			out.Err = errors.New(parsed.Reason)
			c.logger.Warn("response not parseable", "unit", unit.ID(), "attempt", attempt, "reason", parsed.Reason)
			continue
		}

		if parsed.Salvaged {
			c.logger.Info("records salvaged from malformed response", "unit", unit.ID(), "records", len(parsed.Records))
		}
		out.Records = parsed.Records
		out.Salvaged = parsed.Salvaged
		out.Err = nil
		out.State = StateParsed
		return out, nil
	}

	c.logger.Warn("unit abandoned after retries", "unit", unit.ID(), "attempts", out.Attempts, "error", out.Err)
	out.State = StateAbandoned
	return out, nil
}

func (c *Controller) call(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	return c.gen.Generate(ctx, prompt, c.cfg.Options)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
