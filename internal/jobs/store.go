// Package jobs orchestrates asynchronous intake jobs over a pluggable
// job store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// ErrNotFound indicates the job id is unknown to the store.
var ErrNotFound = errors.New("job not found")

// Store persists job state and the pending-job queue. Implementations
// must make PopBatch an atomic claim: two concurrent calls never return
// the same id.
type Store interface {
	// Get loads one job by id.
	Get(ctx context.Context, id string) (*models.Job, error)
	// Set writes the full job state, creating it when absent.
	Set(ctx context.Context, id string, job *models.Job) error
	// UpdatePending writes the full job state only while the stored job
	// is still Pending, reporting whether the write happened. The check
	// and the write are one atomic step so a claim and a cancellation
	// racing on the same job cannot both win.
	UpdatePending(ctx context.Context, id string, job *models.Job) (bool, error)
	// Push appends a job id to the pending queue.
	Push(ctx context.Context, id string) error
	// PopBatch claims up to limit pending ids in FIFO order.
	PopBatch(ctx context.Context, limit int) ([]string, error)
	// Remove drops a job id from the pending queue, if present.
	Remove(ctx context.Context, id string) error
	// List returns all stored jobs, newest first.
	List(ctx context.Context) ([]*models.Job, error)
	// Close releases store resources.
	Close(ctx context.Context) error
}

// MemoryStore is the in-process Store. It is the default when no durable
// store is reachable and the workhorse of the test suite. All methods are
// safe for concurrent use; jobs are stored and returned as clones so
// callers never share memory with the store.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]*models.Job
	queue []string
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job)}
}

// Get loads one job by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return job.Clone(), nil
}

// Set writes the full job state.
func (s *MemoryStore) Set(_ context.Context, id string, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[id] = job.Clone()
	return nil
}

// UpdatePending writes the job state only while the stored state is
// still Pending.
func (s *MemoryStore) UpdatePending(_ context.Context, id string, job *models.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok || current.State != models.JobPending {
		return false, nil
	}
	s.jobs[id] = job.Clone()
	return true, nil
}

// Push appends a job id to the pending queue. Pushing an id that is
// already queued is an error.
func (s *MemoryStore) Push(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, queued := range s.queue {
		if queued == id {
			return fmt.Errorf("job %s already queued", id)
		}
	}
	s.queue = append(s.queue, id)
	return nil
}

// PopBatch claims up to limit pending ids in FIFO order. The whole claim
// happens under one lock so concurrent callers split the queue instead
// of double-claiming.
func (s *MemoryStore) PopBatch(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || len(s.queue) == 0 {
		return nil, nil
	}
	n := min(limit, len(s.queue))
	claimed := make([]string, n)
	copy(claimed, s.queue[:n])
	s.queue = append(s.queue[:0], s.queue[n:]...)
	return claimed, nil
}

// Remove drops a job id from the pending queue, if present.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.queue {
		if queued == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

// List returns all stored jobs, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sortJobsNewestFirst(out)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// QueueLen reports how many jobs are waiting. Used by tests and status
// output.
func (s *MemoryStore) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func sortJobsNewestFirst(jobs []*models.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
