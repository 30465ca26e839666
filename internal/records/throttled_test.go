package records

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// flakyStore fails the first failures calls of each operation.
type flakyStore struct {
	inner    Store
	failures int32
	calls    atomic.Int32
	err      error
}

func (s *flakyStore) attempt() error {
	if s.calls.Add(1) <= s.failures {
		return s.err
	}
	return nil
}

func (s *flakyStore) Search(ctx context.Context, query string, limit int) ([]models.Record, error) {
	if err := s.attempt(); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, query, limit)
}

func (s *flakyStore) Create(ctx context.Context, entity models.Entity) (models.RecordRef, error) {
	if err := s.attempt(); err != nil {
		return "", err
	}
	return s.inner.Create(ctx, entity)
}

func (s *flakyStore) Update(ctx context.Context, ref models.RecordRef, entity models.Entity) error {
	if err := s.attempt(); err != nil {
		return err
	}
	return s.inner.Update(ctx, ref, entity)
}

func fastOpts() ThrottledOptions {
	return ThrottledOptions{
		SearchRPS:  1000,
		WriteRPS:   1000,
		Retries:    3,
		RetryDelay: time.Millisecond,
	}
}

func TestThrottledRetriesTransientFailures(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 2, err: errors.New("connection reset")}
	store := NewThrottled(flaky, fastOpts(), nil)

	ref, err := store.Create(context.Background(), models.Entity{Name: "John Smith", Class: "person"})
	if err != nil {
		t.Fatalf("Create() error = %v, want success after retries", err)
	}
	if ref == "" {
		t.Error("Create() returned empty ref")
	}
	if got := flaky.calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestThrottledExhaustsRetries(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 100, err: errors.New("still down")}
	store := NewThrottled(flaky, fastOpts(), nil)

	_, err := store.Search(context.Background(), "john", 5)
	if err == nil {
		t.Fatal("Search() should fail once retries are exhausted")
	}
	// 1 initial attempt + 3 retries.
	if got := flaky.calls.Load(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
}

func TestThrottledDoesNotRetryPermanentFailures(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 100, err: faults.Validation(errors.New("bad entity"))}
	store := NewThrottled(flaky, fastOpts(), nil)

	_, err := store.Create(context.Background(), models.Entity{Name: "x"})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("Create() error = %v, want the validation fault", err)
	}
	if got := flaky.calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (validation is not retryable)", got)
	}
}

func TestThrottledPassesThrough(t *testing.T) {
	ctx := context.Background()
	store := NewThrottled(NewMemoryStore(), fastOpts(), nil)

	ref, err := store.Create(ctx, models.Entity{Name: "Jane Doe", Class: "person"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Update(ctx, ref, models.Entity{Props: map[string]string{models.PropEmail: "jd@example.com"}}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := store.Search(ctx, "jane", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Props[models.PropEmail] != "jd@example.com" {
		t.Errorf("search result = %+v", found)
	}
}
