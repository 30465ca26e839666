package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// JobStore persists jobs and the pending-job queue in SurrealDB. Job
// state lives in the intake_job table as a JSON document; the FIFO of
// pending job ids lives in intake_queue, ordered by enqueue time.
type JobStore struct {
	client *Client
}

// NewJobStore creates a durable job store on an established client.
func NewJobStore(client *Client) *JobStore {
	return &JobStore{client: client}
}

// Get loads one job by id. Returns ErrNotFound for unknown ids.
func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	results, err := surrealdb.Query[[]jobRow](ctx, s.client.DB(), `
		SELECT doc FROM type::record("intake_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, wrapQueryError(err))
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return decodeJob(rows[0].Doc)
}

// Set writes the full job state, creating the row when absent.
func (s *JobStore) Set(ctx context.Context, id string, job *models.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", id, err)
	}
	_, err = surrealdb.Query[any](ctx, s.client.DB(), `
		UPSERT type::record("intake_job", $id) SET
			state = $state,
			doc = $doc,
			updated = time::now()
	`, map[string]any{
		"id":    id,
		"state": string(job.State),
		"doc":   string(doc),
	})
	if err != nil {
		return fmt.Errorf("set job %s: %w", id, wrapQueryError(err))
	}
	return nil
}

// UpdatePending writes the job state only while the stored state is
// still "pending". The WHERE guard makes the check-and-write a single
// atomic statement, so a worker claiming the job and a concurrent
// cancellation cannot both win, even across processes.
func (s *JobStore) UpdatePending(ctx context.Context, id string, job *models.Job) (bool, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("encode job %s: %w", id, err)
	}
	results, err := surrealdb.Query[[]jobRow](ctx, s.client.DB(), `
		UPDATE type::record("intake_job", $id) SET
			state = $state,
			doc = $doc,
			updated = time::now()
		WHERE state = "pending"
	`, map[string]any{
		"id":    id,
		"state": string(job.State),
		"doc":   string(doc),
	})
	if err != nil {
		return false, fmt.Errorf("update pending job %s: %w", id, wrapQueryError(err))
	}
	return len(firstResult(results)) > 0, nil
}

// Push appends a job id to the pending queue. Enqueuing an id twice
// returns ErrAlreadyExists via the unique index.
func (s *JobStore) Push(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, s.client.DB(), `
		CREATE intake_queue SET job = $job
	`, map[string]any{"job": id})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, wrapQueryError(err))
	}
	return nil
}

// PopBatch atomically claims up to limit pending job ids in FIFO order.
// The select and delete run in one transaction so two concurrent workers
// can never claim the same id.
func (s *JobStore) PopBatch(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := surrealdb.Query[any](ctx, s.client.DB(), `
		BEGIN TRANSACTION;
		LET $claimed = (SELECT id, job FROM intake_queue ORDER BY created ASC LIMIT $limit);
		DELETE intake_queue WHERE id IN $claimed.map(|$row| $row.id);
		RETURN $claimed.map(|$row| $row.job);
		COMMIT TRANSACTION;
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", wrapQueryError(err))
	}
	return stringSlice(results), nil
}

// Remove drops a job id from the pending queue, if present.
func (s *JobStore) Remove(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, s.client.DB(), `
		DELETE intake_queue WHERE job = $job
	`, map[string]any{"job": id})
	if err != nil {
		return fmt.Errorf("dequeue job %s: %w", id, wrapQueryError(err))
	}
	return nil
}

// List returns all stored jobs, newest first.
func (s *JobStore) List(ctx context.Context) ([]*models.Job, error) {
	results, err := surrealdb.Query[[]jobRow](ctx, s.client.DB(), `
		SELECT doc FROM intake_job ORDER BY created DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}
	rows := firstResult(results)
	jobs := make([]*models.Job, 0, len(rows))
	for _, row := range rows {
		job, err := decodeJob(row.Doc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Close releases the underlying connection.
func (s *JobStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

type jobRow struct {
	Doc string `json:"doc"`
}

func decodeJob(doc string) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job document: %w", err)
	}
	return &job, nil
}

// firstResult unwraps the first statement result of a query, tolerating
// empty result sets.
func firstResult[T any](results *[]surrealdb.QueryResult[T]) T {
	var zero T
	if results == nil || len(*results) == 0 {
		return zero
	}
	return (*results)[0].Result
}

// stringSlice coerces the RETURN value of a transaction into a string
// slice. The SDK decodes it as the last statement's untyped result.
func stringSlice(results *[]surrealdb.QueryResult[any]) []string {
	if results == nil || len(*results) == 0 {
		return nil
	}
	raw, ok := (*results)[len(*results)-1].Result.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
