package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending job",
	Long: `Cancel a job that has not started yet. Jobs already running or
finished are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orch, err := getOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = orch.Shutdown(ctx) }()

	cancelled, err := orch.Cancel(ctx, args[0])
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if !cancelled {
		fmt.Printf("Job %s already started or finished, not cancelled\n", args[0])
		return nil
	}
	fmt.Printf("Cancelled job %s\n", args[0])
	return nil
}
