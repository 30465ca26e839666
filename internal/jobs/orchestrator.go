package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/models"
	"github.com/raphaelgruber/scribe-go/internal/records"
	"github.com/raphaelgruber/scribe-go/internal/resolver"
	"github.com/raphaelgruber/scribe-go/internal/runner"
)

// Orchestrator defaults.
const (
	DefaultWorkers       = 5
	DefaultMaxConcurrent = 5
	DefaultPollInterval  = time.Second
	DefaultShutdownGrace = 30 * time.Second

	// terminalWriteTimeout bounds the final state write of a job. The
	// write uses a fresh context so a shutdown cannot lose a terminal
	// transition.
	terminalWriteTimeout = 5 * time.Second
)

// ErrNotCompleted indicates a result was requested for a job that has not
// completed.
var ErrNotCompleted = errors.New("job not completed")

// Extractor converts a transcript payload into candidate entities.
type Extractor interface {
	Extract(ctx context.Context, payload string) (*models.Extraction, error)
}

// Config tunes the orchestrator. Zero values select the defaults.
type Config struct {
	// Workers is how many claim loops poll the queue.
	Workers int
	// MaxConcurrent caps jobs executing at once across all workers.
	MaxConcurrent int
	// PollInterval is the pause between queue polls.
	PollInterval time.Duration
	// ShutdownGrace bounds how long Shutdown waits for in-flight jobs.
	ShutdownGrace time.Duration
	// DedupThreshold is the resolution score treated as a duplicate.
	DedupThreshold float64
	// Batch tunes the per-entity runner within one job.
	Batch runner.Options
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = resolver.DefaultThreshold
	}
	if c.Batch.BatchSize <= 0 {
		c.Batch.BatchSize = 10
	}
	if c.Batch.MaxConcurrentBatches <= 0 {
		c.Batch.MaxConcurrentBatches = 3
	}
	if c.Batch.RetryDelay <= 0 {
		c.Batch.RetryDelay = time.Second
	}
	return c
}

// Orchestrator owns the job lifecycle: it accepts submissions, claims
// pending jobs from the store, runs the extract-resolve-persist pipeline
// and records terminal state. Job state is observable at every stage via
// Status.
type Orchestrator struct {
	store     Store
	extractor Extractor
	resolver  *resolver.Resolver
	records   records.Store
	collector *metrics.Collector
	cfg       Config

	mu     sync.Mutex
	active int

	cancel context.CancelFunc
	wg     sync.WaitGroup // claim loops
	execWg sync.WaitGroup // in-flight jobs
}

// New creates an orchestrator. collector may be nil.
func New(store Store, extractor Extractor, res *resolver.Resolver, recs records.Store, collector *metrics.Collector, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		resolver:  res,
		records:   recs,
		collector: collector,
		cfg:       cfg.withDefaults(),
	}
}

// Start launches the claim loops. It returns immediately; call Shutdown
// to stop.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.claimLoop(ctx, i)
	}
	slog.Info("orchestrator started",
		"workers", o.cfg.Workers,
		"max_concurrent", o.cfg.MaxConcurrent,
		"poll_interval", o.cfg.PollInterval)
}

// Submit validates and enqueues a new intake job, returning its id. The
// job is Pending until a worker claims it.
func (o *Orchestrator) Submit(ctx context.Context, payload string, options map[string]any, metadata map[string]string) (string, error) {
	if strings.TrimSpace(payload) == "" {
		return "", faults.Validation(errors.New("empty payload"))
	}

	now := time.Now()
	job := &models.Job{
		ID:        uuid.New().String()[:8],
		State:     models.JobPending,
		Payload:   payload,
		Options:   options,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.Set(ctx, job.ID, job); err != nil {
		return "", faults.Persistence(fmt.Errorf("store job %s: %w", job.ID, err))
	}
	if err := o.store.Push(ctx, job.ID); err != nil {
		return "", faults.Persistence(fmt.Errorf("enqueue job %s: %w", job.ID, err))
	}

	slog.Info("job submitted", "job_id", job.ID, "payload_bytes", len(payload))
	return job.ID, nil
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.Job, error) {
	return o.store.Get(ctx, id)
}

// Result returns the result of a completed job. Jobs in any other state
// return ErrNotCompleted.
func (o *Orchestrator) Result(ctx context.Context, id string) (*models.JobResult, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != models.JobCompleted {
		return nil, fmt.Errorf("job %s in state %s: %w", id, job.State, ErrNotCompleted)
	}
	return job.Result, nil
}

// Cancel cancels a job that has not started. It reports whether the
// cancellation took effect; jobs already running or finished are left
// untouched and return false.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (bool, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job.State != models.JobPending {
		return false, nil
	}

	job.State = models.JobCancelled
	job.UpdatedAt = time.Now()
	done, err := o.store.UpdatePending(ctx, id, job)
	if err != nil {
		return false, faults.Persistence(fmt.Errorf("cancel job %s: %w", id, err))
	}
	if !done {
		// A worker marked the job running between the read and the write.
		return false, nil
	}
	if err := o.store.Remove(ctx, id); err != nil {
		slog.Warn("cancelled job left in queue, claim will skip it", "job_id", id, "error", err)
	}

	slog.Info("job cancelled", "job_id", id)
	return true, nil
}

// List returns all jobs, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*models.Job, error) {
	return o.store.List(ctx)
}

// Shutdown stops claiming, waits up to the configured grace for in-flight
// jobs and closes the store.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		o.execWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("orchestrator drained")
	case <-time.After(o.cfg.ShutdownGrace):
		slog.Warn("shutdown grace elapsed with jobs still in flight", "grace", o.cfg.ShutdownGrace)
	case <-ctx.Done():
		slog.Warn("shutdown context cancelled before drain")
	}

	return o.store.Close(ctx)
}

// claimLoop polls the queue and dispatches claimed jobs, keeping the
// total number of executing jobs under MaxConcurrent.
func (o *Orchestrator) claimLoop(ctx context.Context, worker int) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.PollInterval):
		}

		o.mu.Lock()
		budget := o.cfg.MaxConcurrent - o.active
		o.mu.Unlock()
		if budget <= 0 {
			continue
		}

		ids, err := o.store.PopBatch(ctx, budget)
		if err != nil {
			slog.Warn("claim failed", "worker", worker, "error", err)
			continue
		}

		for _, id := range ids {
			o.mu.Lock()
			o.active++
			o.mu.Unlock()
			o.execWg.Add(1)
			go o.execute(ctx, id)
		}
	}
}

// execute runs one claimed job through the pipeline and records its
// terminal state. A panic in the pipeline fails the job instead of
// killing the worker.
func (o *Orchestrator) execute(ctx context.Context, id string) {
	defer o.execWg.Done()
	defer func() {
		o.mu.Lock()
		o.active--
		o.mu.Unlock()
	}()

	job, err := o.store.Get(ctx, id)
	if err != nil {
		slog.Warn("claimed job vanished", "job_id", id, "error", err)
		return
	}
	if job.State != models.JobPending {
		slog.Debug("skipping claimed job in non-pending state", "job_id", id, "state", job.State)
		return
	}

	now := time.Now()
	job.State = models.JobRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	// Conditional write: Cancel may have won the race since the read
	// above, and a cancelled job must stay cancelled.
	claimed, err := o.store.UpdatePending(ctx, id, job)
	if err != nil {
		// The id already left the queue; requeue so the job is not
		// stranded in Pending forever.
		slog.Warn("failed to mark job running, requeueing", "job_id", id, "error", err)
		if perr := o.store.Push(ctx, id); perr != nil {
			slog.Error("requeue failed, job stranded pending", "job_id", id, "error", perr)
		}
		return
	}
	if !claimed {
		slog.Debug("job no longer pending, skipping", "job_id", id)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "job_id", id, "panic", r)
			job.Error = "internal error"
			o.finish(job, models.JobFailed, time.Since(now))
		}
	}()

	slog.Info("job started", "job_id", id)
	result, runErr := o.run(ctx, job)

	if runErr != nil {
		job.Error = faults.Sanitize(runErr)
		o.finish(job, models.JobFailed, time.Since(now))
		slog.Warn("job failed", "job_id", id, "error", runErr)
		return
	}

	job.Result = result
	o.setProgress(job, 100)
	o.finish(job, models.JobCompleted, time.Since(now))
	slog.Info("job completed",
		"job_id", id,
		"entities", result.EntitiesExtracted,
		"created", result.RecordsCreated,
		"updated", result.RecordsUpdated,
		"duplicates", result.DuplicatesFound,
		"errors", len(result.Errors))
}

// run executes the extract-resolve-persist pipeline for one job. The
// entities of one transcript go through the batch runner so large
// transcripts resolve concurrently under a bounded ceiling. Extraction
// failure fails the job; per-entity resolution and persistence failures
// are captured in the result instead.
func (o *Orchestrator) run(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	ext, err := o.extractor.Extract(ctx, job.Payload)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	o.setProgress(job, 10)
	o.persistProgress(ctx, job)

	result := &models.JobResult{EntitiesExtracted: len(ext.Entities)}
	if len(ext.Entities) == 0 {
		return result, nil
	}

	var progressMu sync.Mutex
	outcomes, err := runner.RunAll(ctx, ext.Entities, o.resolveOne, o.cfg.Batch, func(completed, total int) {
		progressMu.Lock()
		defer progressMu.Unlock()
		o.setProgress(job, 10+completed*90/total)
		o.persistProgress(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for _, out := range outcomes {
		if !out.OK {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", out.Item.Name, faults.Sanitize(out.Err)))
			continue
		}
		if out.Output.updated {
			result.DuplicatesFound++
			result.RecordsUpdated++
		} else {
			result.RecordsCreated++
		}
	}
	return result, nil
}

// resolution is the per-entity outcome of resolveOne.
type resolution struct {
	updated bool
}

// resolveOne routes one extracted entity to an update of its duplicate or
// a fresh record.
func (o *Orchestrator) resolveOne(ctx context.Context, entity models.Entity) (resolution, error) {
	match, err := o.resolver.FindExisting(ctx, entity, o.records.Search, o.cfg.DedupThreshold)
	if err != nil {
		return resolution{}, err
	}

	if match != nil {
		if err := o.records.Update(ctx, match.Record.Ref, entity); err != nil {
			return resolution{}, err
		}
		return resolution{updated: true}, nil
	}

	if _, err := o.records.Create(ctx, entity); err != nil {
		return resolution{}, err
	}
	return resolution{}, nil
}

// finish writes the terminal state on a fresh context so shutdown cannot
// lose it.
func (o *Orchestrator) finish(job *models.Job, state models.JobState, took time.Duration) {
	now := time.Now()
	job.State = state
	job.CompletedAt = &now
	job.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	if err := o.store.Set(ctx, job.ID, job); err != nil {
		slog.Error("failed to persist terminal job state", "job_id", job.ID, "state", state, "error", err)
	}

	o.collector.RecordTiming(metrics.OpJobExecute, took)
}

// setProgress advances progress, never backwards.
func (o *Orchestrator) setProgress(job *models.Job, p int) {
	if p > job.Progress {
		job.Progress = p
	}
}

// persistProgress stores a progress update best-effort.
func (o *Orchestrator) persistProgress(ctx context.Context, job *models.Job) {
	job.UpdatedAt = time.Now()
	if err := o.store.Set(ctx, job.ID, job); err != nil {
		slog.Debug("progress update not persisted", "job_id", job.ID, "error", err)
	}
}
