package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scribe-go/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the intake workers",
	Long: `Run the intake worker pool until interrupted.

Workers claim pending jobs from the queue, extract entities from each
transcript and resolve them against the record store.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := getOrchestrator(ctx, true)
	if err != nil {
		return err
	}

	orch.Start(ctx)
	slog.Info("scribe workers running", "version", Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig)

	cancel()
	err = orch.Shutdown(context.Background())
	logSnapshot(collector.Snapshot())
	return err
}

// logSnapshot emits the operation timing summary collected during the
// run.
func logSnapshot(s metrics.Snapshot) {
	count := func(op *metrics.OperationSnapshot) int64 {
		if op == nil {
			return 0
		}
		return op.Count
	}
	tokens := func(op *metrics.OperationSnapshot) int64 {
		if op == nil || op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
			return 0
		}
		return *op.TotalInputTokens + *op.TotalOutputTokens
	}
	slog.Info("run summary",
		"uptime_s", s.UptimeSeconds,
		"jobs", count(s.JobExecute),
		"extract_calls", count(s.Extract),
		"extract_tokens", tokens(s.Extract),
		"ai_scores", count(s.ScoreAI),
		"ai_score_tokens", tokens(s.ScoreAI),
		"local_scores", count(s.ScoreLocal),
		"record_searches", count(s.RecordSearch),
		"record_writes", count(s.RecordWrite))
}
