package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

var (
	submitWait bool
	submitMeta []string
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a transcript for intake",
	Long: `Submit a transcript for asynchronous intake. Reads the transcript from
the given file, or from stdin when no file is given.

With --wait the command runs the pipeline in-process and blocks until
the job reaches a terminal state.

Examples:
  scribe submit meeting.txt
  cat meeting.txt | scribe submit --wait
  scribe submit meeting.txt -m source=zoom -m team=sales`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "run workers in-process and wait for the result")
	submitCmd.Flags().StringArrayVarP(&submitMeta, "meta", "m", nil, "metadata key=value, repeatable")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(args)
	if err != nil {
		return err
	}

	metadata, err := parseMeta(submitMeta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := getOrchestrator(ctx, submitWait)
	if err != nil {
		return err
	}

	id, err := orch.Submit(ctx, payload, nil, metadata)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Printf("Submitted job %s\n", id)

	if !submitWait {
		return nil
	}

	orch.Start(ctx)
	defer func() { _ = orch.Shutdown(context.Background()) }()

	job, err := waitForJob(ctx, orch, id)
	if err != nil {
		return err
	}
	printJob(job)
	if job.State != models.JobCompleted {
		return fmt.Errorf("job %s %s", id, job.State)
	}
	return nil
}

func readPayload(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		meta[k] = v
	}
	return meta, nil
}

// waitForJob polls job status until it reaches a terminal state.
func waitForJob(ctx context.Context, statuser interface {
	Status(ctx context.Context, id string) (*models.Job, error)
}, id string) (*models.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		job, err := statuser.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.State.Terminal() {
			return job, nil
		}
	}
}
