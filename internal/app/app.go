package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/assembler"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/catalog"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/infrastructure/llm"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/infrastructure/source"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/infrastructure/storage"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/infrastructure/telegram"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/logging"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/prompt"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/usecase"
)

// Mode selects what the application generates.
type Mode string

const (
	ModeMemories Mode = "memories"
	ModePairs    Mode = "pairs"
)

const fallbackPersona = "An ordinary adult looking back on their own life, speaking in the first person."

// Application wires configs to use cases.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	generator ports.Generator
}

// New builds an application instance; the generator is created per run
// from the configured provider unless WithGenerator replaced it.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// WithGenerator overrides the configured provider.
func (a *Application) WithGenerator(gen ports.Generator) *Application {
	a.generator = gen
	return a
}

// Generate runs the pipeline in the requested mode.
func (a *Application) Generate(ctx context.Context, mode Mode) (domain.Summary, error) {
	run, err := a.plan(mode)
	if err != nil {
		return domain.Summary{}, err
	}

	gen := a.generator
	if gen == nil {
		gen, err = a.newGenerator(ctx)
		if err != nil {
			return domain.Summary{}, err
		}
	}

	pipeline, closeStore, err := a.newPipeline(run, gen)
	if err != nil {
		return domain.Summary{}, err
	}
	defer closeStore()

	return pipeline.Run(ctx)
}

// Assemble rebuilds the final artifacts of mode from its checkpoint.
func (a *Application) Assemble(ctx context.Context, mode Mode) (domain.Summary, error) {
	run, err := a.artifacts(mode)
	if err != nil {
		return domain.Summary{}, err
	}

	pipeline, closeStore, err := a.newPipeline(run, nil)
	if err != nil {
		return domain.Summary{}, err
	}
	defer closeStore()

	return pipeline.Assemble(ctx)
}

// runPlan collects everything mode-specific about one run.
type runPlan struct {
	units          ports.UnitSource
	target         int
	shared         string
	delay          time.Duration
	options        domain.GenerateOptions
	checkpointPath string
	rawPath        string
	normalizedPath string
	splitDir       string
}

func (a *Application) artifacts(mode Mode) (runPlan, error) {
	switch mode {
	case ModeMemories:
		return runPlan{
			checkpointPath: a.cfg.Checkpoint.Path,
			rawPath:        a.cfg.Output.RawPath,
			normalizedPath: a.cfg.Output.NormalizedPath,
			splitDir:       a.cfg.Output.SplitDir,
		}, nil
	case ModePairs:
		return runPlan{
			checkpointPath: a.cfg.Pairs.CheckpointPath,
			rawPath:        a.cfg.Pairs.RawPath,
			normalizedPath: a.cfg.Pairs.NormalizedPath,
			splitDir:       a.cfg.Pairs.SplitDir,
		}, nil
	default:
		return runPlan{}, fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *Application) plan(mode Mode) (runPlan, error) {
	run, err := a.artifacts(mode)
	if err != nil {
		return run, err
	}

	switch mode {
	case ModeMemories:
		registry := catalog.NewRegistry(a.cfg.Memories.Seed)
		policy, err := registry.Resolve(a.cfg.Memories.Selection)
		if err != nil {
			return run, err
		}

		categories := make([]catalog.Category, 0, len(a.cfg.Memories.Categories))
		for _, c := range a.cfg.Memories.Categories {
			categories = append(categories, catalog.Category{Name: c.Name, Description: c.Description, Topics: c.Topics})
		}
		units, err := catalog.New(categories, policy)
		if err != nil {
			return run, fmt.Errorf("memory catalog: %w", err)
		}

		run.units = units
		run.target = a.cfg.Memories.TargetCount
		run.shared = a.loadPersona()
		run.delay = a.cfg.Pipeline.Delay
		run.options = generateOptions(a.cfg.Generation.Temperature, a.cfg.Generation.MaxOutputTokens)

	case ModePairs:
		loader := source.NewChapterLoader(a.cfg.Pairs.ChaptersDir, a.cfg.Pairs.MinChapterChars, a.logger.With("component", "chapters"))
		chapters, err := loader.Load()
		if err != nil {
			return run, err
		}
		units, err := catalog.NewChapters(chapters, a.cfg.Pairs.BatchSize)
		if err != nil {
			return run, fmt.Errorf("chapter catalog: %w", err)
		}

		run.units = units
		run.target = a.cfg.Pairs.PerChapter * len(chapters)
		run.delay = a.cfg.Pairs.Delay
		run.options = generateOptions(a.cfg.Pairs.Temperature, a.cfg.Pairs.MaxOutputTokens)
	}

	return run, nil
}

func (a *Application) loadPersona() string {
	path := a.cfg.Memories.PersonaPath
	if path == "" {
		return fallbackPersona
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		a.logger.Warn("persona file unavailable, using fallback", "path", path, "error", err)
		return fallbackPersona
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fallbackPersona
}

func (a *Application) newPipeline(run runPlan, gen ports.Generator) (*usecase.Pipeline, func(), error) {
	builder, err := a.newPromptBuilder()
	if err != nil {
		return nil, nil, err
	}

	asm, err := assembler.New(assembler.Options{Dedupe: a.cfg.Output.Dedupe})
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := a.newCheckpoint(run.checkpointPath)
	if err != nil {
		return nil, nil, err
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(a.cfg.Notifications.Telegram.BotToken, a.cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Units:      run.units,
		Prompts:    builder,
		Generator:  gen,
		Checkpoint: store,
		Assembler:  asm,
		Writer:     storage.NewJSONDatasetWriter(run.rawPath, run.normalizedPath, run.splitDir),
		Notifier:   notifier,
		Logger:     a.logger,
	}, usecase.PipelineConfig{
		TargetCount:   run.target,
		Workers:       a.cfg.Pipeline.Workers,
		FlushEvery:    a.cfg.Pipeline.FlushEvery,
		SharedContext: run.shared,
		Controller: usecase.ControllerConfig{
			MaxAttempts: a.cfg.Pipeline.MaxAttempts,
			Backoff:     a.cfg.Pipeline.Backoff,
			Delay:       run.delay,
			CallTimeout: a.cfg.Generation.CallTimeout,
			Options:     run.options,
		},
	})
	return pipeline, closeStore, nil
}

func (a *Application) newPromptBuilder() (*prompt.Builder, error) {
	opts := prompt.Options{MaxContextChars: a.cfg.Prompt.MaxContextChars}
	var err error
	if opts.MemoryTemplate, err = readOptional(a.cfg.Prompt.MemoryTemplatePath); err != nil {
		return nil, fmt.Errorf("memory template: %w", err)
	}
	if opts.BatchTemplate, err = readOptional(a.cfg.Prompt.BatchTemplatePath); err != nil {
		return nil, fmt.Errorf("batch template: %w", err)
	}
	return prompt.NewBuilder(opts)
}

func (a *Application) newCheckpoint(path string) (ports.CheckpointStore, func(), error) {
	switch strings.ToLower(a.cfg.Checkpoint.Backend) {
	case "", "file", "json":
		return storage.NewFileCheckpoint(path), func() {}, nil
	case "sqlite":
		store, err := storage.NewSQLiteCheckpoint(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { closeQuietly(a.logger, store) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", a.cfg.Checkpoint.Backend)
	}
}

func (a *Application) newGenerator(ctx context.Context) (ports.Generator, error) {
	switch strings.ToLower(a.cfg.Provider) {
	case "", "gemini":
		return llm.NewGeminiClient(ctx, a.cfg.Gemini)
	case "chat", "openai":
		if a.cfg.Chat.APIKey == "" {
			return nil, errors.New("chat provider requires an API key")
		}
		return llm.NewChatClient(a.cfg.Chat, a.cfg.Generation.CallTimeout), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", a.cfg.Provider)
	}
}

func generateOptions(temperature float32, maxTokens int) domain.GenerateOptions {
	opts := domain.GenerateOptions{MaxOutputTokens: maxTokens}
	if temperature > 0 {
		t := temperature
		opts.Temperature = &t
	}
	return opts
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func closeQuietly(logger *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close checkpoint", "error", err)
	}
}
