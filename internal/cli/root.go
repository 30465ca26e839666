// Package cli provides the command-line interface for scribe.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scribe-go/internal/config"
	"github.com/raphaelgruber/scribe-go/internal/db"
	"github.com/raphaelgruber/scribe-go/internal/extract"
	"github.com/raphaelgruber/scribe-go/internal/jobs"
	"github.com/raphaelgruber/scribe-go/internal/llm"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/records"
	"github.com/raphaelgruber/scribe-go/internal/resolver"
	"github.com/raphaelgruber/scribe-go/internal/runner"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and logger cleanup
	cfg        config.Config
	logCleanup func() error

	collector = metrics.NewCollector()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Transcript intake pipeline",
	Long: `Scribe ingests meeting and call transcripts, extracts the entities they
mention and resolves each one against the record store, updating
duplicates instead of creating them twice.

Jobs run asynchronously: submit a transcript, poll its status, collect
the result.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		var logger *slog.Logger
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// openStores connects the durable stores, falling back to in-memory ones
// when the database is unreachable. Degraded mode keeps submissions
// working but loses them on exit.
func openStores(ctx context.Context) (jobs.Store, records.Store) {
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	client, err := db.NewClient(ctx, dbCfg, slog.Default())
	if err == nil {
		if err = client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
		}
	}
	if err != nil {
		slog.Warn("durable job store unreachable, falling back to in-memory store", "url", cfg.SurrealDBURL, "error", err)
		return jobs.NewMemoryStore(), records.NewMemoryStore()
	}

	return db.NewJobStore(client), records.NewSurrealStore(client)
}

// getOrchestrator wires the pipeline. Commands that only inspect or
// cancel jobs pass requireLLM=false and skip model initialization.
func getOrchestrator(ctx context.Context, requireLLM bool) (*jobs.Orchestrator, error) {
	jobStore, recordStore := openStores(ctx)

	var extractor jobs.Extractor
	var scorer resolver.Scorer
	if requireLLM {
		model, err := llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		slog.Info("model ready", "provider", cfg.LLMProvider, "model", model.Model())
		extractor = extract.New(model, collector)
		scorer = buildScorer(model)
	} else {
		scorer = resolver.NewHeuristicScorer(collector)
	}

	throttled := records.NewThrottled(recordStore, records.ThrottledOptions{
		SearchRPS:  cfg.RecordSearchRPS,
		WriteRPS:   cfg.RecordWriteRPS,
		Retries:    uint64(cfg.RetryCount),
		RetryDelay: cfg.RetryDelay,
	}, collector)

	res := resolver.New(scorer, cfg.CandidateLimit)

	return jobs.New(jobStore, extractor, res, throttled, collector, jobs.Config{
		Workers:        cfg.Workers,
		MaxConcurrent:  cfg.MaxConcurrentJobs,
		PollInterval:   cfg.PollInterval,
		ShutdownGrace:  cfg.ShutdownGrace,
		DedupThreshold: cfg.DedupThreshold,
		Batch: runner.Options{
			BatchSize:            cfg.BatchSize,
			MaxConcurrentBatches: cfg.MaxConcurrentBatches,
			RetryCount:           cfg.RetryCount,
			RetryDelay:           cfg.RetryDelay,
		},
	}), nil
}

// buildScorer selects the configured scorer. The AI scorer always gets
// the heuristic one as fallback so a scoring outage degrades instead of
// failing jobs.
func buildScorer(model *llm.Model) resolver.Scorer {
	heuristic := resolver.NewHeuristicScorer(collector)
	heuristic.Threshold = cfg.DedupThreshold

	if cfg.Scorer == config.ScorerAI {
		ai := resolver.NewAIScorer(model, cfg.ScoreCacheSize, cfg.ScoreCacheTTL, cfg.ScoreBatchSize, collector)
		return resolver.NewFallbackScorer(ai, heuristic)
	}
	return heuristic
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
