package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/app"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/logging"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/usecase"
)

const (
	exitFailure     = 1
	exitInterrupted = 2
	exitPersistence = 3
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			stop()
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitFailure)
	}
}

// newGenerator lets tests replace the configured provider.
var newGenerator func(config.Config) ports.Generator

type options struct {
	configPath string
	logLevel   string

	provider    string
	workers     int
	delay       time.Duration
	maxAttempts int
	flushEvery  int
	backend     string
	checkpoint  string
	rawPath     string
	normalized  string
	splitDir    string
	dedupe      bool

	target    int
	selection string
	seed      int64
	persona   string

	chapters   string
	perChapter int
	batchSize  int
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "memorygen",
		Short:         "Generate checkpointed instruction/response datasets with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $MEMORYGEN_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.backend, "checkpoint-backend", "", "checkpoint backend: file or sqlite")
	root.PersistentFlags().StringVar(&opts.checkpoint, "checkpoint", "", "checkpoint path")
	root.PersistentFlags().StringVar(&opts.rawPath, "raw", "", "raw dataset path")
	root.PersistentFlags().StringVar(&opts.normalized, "out", "", "normalized dataset path")
	root.PersistentFlags().StringVar(&opts.splitDir, "split-dir", "", "directory for per-source <source>_pairs.json files")
	root.PersistentFlags().BoolVar(&opts.dedupe, "dedupe", false, "drop exact instruction+output duplicates")

	root.AddCommand(newMemoriesCommand(opts))
	root.AddCommand(newPairsCommand(opts))
	root.AddCommand(newAssembleCommand(opts))
	return root
}

func addGenerationFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.provider, "provider", "", "generation provider: gemini or chat")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent units (1 keeps catalog order)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "minimum spacing between generation calls")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "attempts per unit")
	cmd.Flags().IntVar(&opts.flushEvery, "flush-every", 0, "records per checkpoint flush")
}

func newMemoriesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Generate persona memories across categories and topics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts, app.ModeMemories)
		},
	}
	addGenerationFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.target, "target", 0, "total number of memory units")
	cmd.Flags().StringVar(&opts.selection, "selection", "", "topic selection: cyclic or random")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "seed for random selection (0 = time based)")
	cmd.Flags().StringVar(&opts.persona, "persona", "", "persona description file")
	return cmd
}

func newPairsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "Generate Q/A pairs from Chapter_* files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts, app.ModePairs)
		},
	}
	addGenerationFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.chapters, "chapters", "", "directory holding Chapter_* files")
	cmd.Flags().IntVar(&opts.perChapter, "per-chapter", 0, "pairs to request per chapter")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "pairs requested per call")
	return cmd
}

func newAssembleCommand(opts *options) *cobra.Command {
	var pairs bool
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Rebuild the final datasets from the checkpoint without generating",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := app.ModeMemories
			if pairs {
				mode = app.ModePairs
			}
			cfg, logger := loadConfig(cmd, opts, mode)
			summary, err := app.New(cfg, logger).Assemble(cmd.Context(), mode)
			if err != nil {
				return classify(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), usecase.FormatSummary(summary))
			return nil
		},
	}
	cmd.Flags().BoolVar(&pairs, "pairs", false, "assemble the chapter pairs checkpoint")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *options, mode app.Mode) error {
	cfg, logger := loadConfig(cmd, opts, mode)

	application := app.New(cfg, logger)
	if newGenerator != nil {
		application.WithGenerator(newGenerator(cfg))
	}

	summary, err := application.Generate(cmd.Context(), mode)
	fmt.Fprint(cmd.OutOrStdout(), usecase.FormatSummary(summary))
	if err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return cliError{code: exitInterrupted, err: fmt.Errorf("interrupted; progress is saved in the checkpoint: %w", err)}
	case errors.Is(err, domain.ErrPersistence):
		return cliError{code: exitPersistence, err: err}
	default:
		return err
	}
}

func loadConfig(cmd *cobra.Command, opts *options, mode app.Mode) (config.Config, *slog.Logger) {
	cfg := config.Load()
	if opts.configPath != "" {
		cfg = config.LoadFile(opts.configPath)
	}
	applyFlags(cmd, opts, mode, &cfg)
	return cfg, logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, opts *options, mode app.Mode, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("provider") {
		cfg.Provider = opts.provider
	}
	if changed("workers") {
		cfg.Pipeline.Workers = opts.workers
	}
	if changed("max-attempts") {
		cfg.Pipeline.MaxAttempts = opts.maxAttempts
	}
	if changed("flush-every") {
		cfg.Pipeline.FlushEvery = opts.flushEvery
	}
	if changed("checkpoint-backend") {
		cfg.Checkpoint.Backend = opts.backend
	}
	if changed("dedupe") {
		cfg.Output.Dedupe = opts.dedupe
	}

	if changed("target") {
		cfg.Memories.TargetCount = opts.target
	}
	if changed("selection") {
		cfg.Memories.Selection = opts.selection
	}
	if changed("seed") {
		cfg.Memories.Seed = opts.seed
	}
	if changed("persona") {
		cfg.Memories.PersonaPath = opts.persona
	}
	if changed("chapters") {
		cfg.Pairs.ChaptersDir = opts.chapters
	}
	if changed("per-chapter") {
		cfg.Pairs.PerChapter = opts.perChapter
	}
	if changed("batch-size") {
		cfg.Pairs.BatchSize = opts.batchSize
	}

	if mode == app.ModePairs {
		if changed("delay") {
			cfg.Pairs.Delay = opts.delay
		}
		if changed("checkpoint") {
			cfg.Pairs.CheckpointPath = opts.checkpoint
		}
		if changed("raw") {
			cfg.Pairs.RawPath = opts.rawPath
		}
		if changed("out") {
			cfg.Pairs.NormalizedPath = opts.normalized
		}
		if changed("split-dir") {
			cfg.Pairs.SplitDir = opts.splitDir
		}
		return
	}

	if changed("delay") {
		cfg.Pipeline.Delay = opts.delay
	}
	if changed("checkpoint") {
		cfg.Checkpoint.Path = opts.checkpoint
	}
	if changed("raw") {
		cfg.Output.RawPath = opts.rawPath
	}
	if changed("out") {
		cfg.Output.NormalizedPath = opts.normalized
	}
	if changed("split-dir") {
		cfg.Output.SplitDir = opts.splitDir
	}
}
