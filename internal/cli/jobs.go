package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect intake jobs",
	Long: `List all intake jobs or inspect a specific job by ID.

Examples:
  scribe jobs           # List all jobs
  scribe jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orch, err := getOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = orch.Shutdown(ctx) }()

	if len(args) == 1 {
		job, err := orch.Status(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		printJob(job)
		return nil
	}

	return listJobs(ctx, orch)
}

func listJobs(ctx context.Context, orch interface {
	List(ctx context.Context) ([]*models.Job, error)
}) error {
	jobs, err := orch.List(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %-10s %s\n", "ID", "STATE", "PROGRESS", "CREATED")
	fmt.Println("--------------------------------------------------")
	for _, job := range jobs {
		fmt.Printf("%-10s %-12s %-10s %s\n",
			job.ID, job.State, fmt.Sprintf("%d%%", job.Progress),
			job.CreatedAt.Format("15:04:05"))
	}
	return nil
}

func printJob(job *models.Job) {
	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  State: %s\n", job.State)
	fmt.Printf("  Progress: %d%%\n", job.Progress)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond))
		}
	}
	for k, v := range job.Metadata {
		fmt.Printf("  Meta %s: %s\n", k, v)
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.Result != nil {
		fmt.Println("\nResult:")
		fmt.Printf("  Entities extracted: %d\n", job.Result.EntitiesExtracted)
		fmt.Printf("  Records created: %d\n", job.Result.RecordsCreated)
		fmt.Printf("  Records updated: %d\n", job.Result.RecordsUpdated)
		fmt.Printf("  Duplicates found: %d\n", job.Result.DuplicatesFound)
		if len(job.Result.Errors) > 0 {
			fmt.Printf("\n  Errors (%d):\n", len(job.Result.Errors))
			for _, e := range job.Result.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	}
}
