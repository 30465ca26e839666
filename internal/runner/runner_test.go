package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/scribe-go/internal/faults"
)

func quickOpts() Options {
	return Options{
		BatchSize:            3,
		MaxConcurrentBatches: 2,
		RetryCount:           0,
		RetryDelay:           time.Millisecond,
	}
}

func TestRunAllOrderedResults(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	results, err := RunAll(context.Background(), items, func(_ context.Context, i int) (int, error) {
		return i * 2, nil
	}, quickOpts(), nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("results[%d] not OK: %v", i, r.Err)
		}
		if r.Item != i || r.Output != i*2 {
			t.Errorf("results[%d] = item %d output %d, want item %d output %d", i, r.Item, r.Output, i, i*2)
		}
	}
}

func TestRunAllSizes(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{name: "empty", count: 0},
		{name: "single item", count: 1},
		{name: "partial last batch", count: 7},
		{name: "exact batches", count: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.count)
			for i := range items {
				items[i] = i
			}

			results, err := RunAll(context.Background(), items, func(_ context.Context, i int) (int, error) {
				return i, nil
			}, quickOpts(), nil)
			if err != nil {
				t.Fatalf("RunAll() error = %v", err)
			}
			if len(results) != tt.count {
				t.Fatalf("got %d results, want %d", len(results), tt.count)
			}
			for i, r := range results {
				if !r.OK || r.Output != i {
					t.Errorf("results[%d] = (%d, ok=%v), want (%d, ok=true)", i, r.Output, r.OK, i)
				}
			}
		})
	}
}

func TestRunAllInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "zero batch size", opts: Options{BatchSize: 0, MaxConcurrentBatches: 1}},
		{name: "negative batch size", opts: Options{BatchSize: -1, MaxConcurrentBatches: 1}},
		{name: "zero concurrency", opts: Options{BatchSize: 1, MaxConcurrentBatches: 0}},
		{name: "negative retry count", opts: Options{BatchSize: 1, MaxConcurrentBatches: 1, RetryCount: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunAll(context.Background(), []int{1}, func(_ context.Context, i int) (int, error) {
				return i, nil
			}, tt.opts, nil)
			if !errors.Is(err, faults.ErrValidation) {
				t.Errorf("RunAll() error = %v, want validation fault", err)
			}
		})
	}
}

func TestRunAllRetryExhaustion(t *testing.T) {
	var attempts atomic.Int32
	opts := quickOpts()
	opts.RetryCount = 2

	results, err := RunAll(context.Background(), []int{1}, func(_ context.Context, _ int) (int, error) {
		attempts.Add(1)
		return 0, errors.New("flaky")
	}, opts, nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	// 1 initial attempt + 2 retries.
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if results[0].OK {
		t.Error("result should not be OK")
	}
	if results[0].Retries != 2 {
		t.Errorf("Retries = %d, want 2", results[0].Retries)
	}
	if results[0].Err == nil {
		t.Error("exhausted item should carry its last error")
	}
}

func TestRunAllNonRetryableStopsImmediately(t *testing.T) {
	var attempts atomic.Int32
	opts := quickOpts()
	opts.RetryCount = 5

	results, err := RunAll(context.Background(), []int{1}, func(_ context.Context, _ int) (int, error) {
		attempts.Add(1)
		return 0, faults.Validation(errors.New("malformed"))
	}, opts, nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for validation faults)", got)
	}
	if results[0].Retries != 0 {
		t.Errorf("Retries = %d, want 0", results[0].Retries)
	}
}

func TestRunAllRetryThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	opts := quickOpts()
	opts.RetryCount = 3

	results, err := RunAll(context.Background(), []int{1}, func(_ context.Context, i int) (int, error) {
		if attempts.Add(1) < 3 {
			return 0, errors.New("warming up")
		}
		return i * 10, nil
	}, opts, nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	r := results[0]
	if !r.OK || r.Output != 10 {
		t.Fatalf("result = (%d, ok=%v, err=%v), want (10, ok=true)", r.Output, r.OK, r.Err)
	}
	if r.Retries != 2 {
		t.Errorf("Retries = %d, want 2", r.Retries)
	}
	if r.Err != nil {
		t.Errorf("Err = %v, want nil after eventual success", r.Err)
	}
}

func TestRunAllFailureIsolation(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}
	failing := map[int]bool{2: true, 7: true}

	results, err := RunAll(context.Background(), items, func(_ context.Context, i int) (int, error) {
		if failing[i] {
			return 0, faults.Validation(fmt.Errorf("item %d rejected", i))
		}
		return i, nil
	}, quickOpts(), nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	for i, r := range results {
		if failing[i] {
			if r.OK {
				t.Errorf("results[%d] OK, want failure", i)
			}
			continue
		}
		if !r.OK {
			t.Errorf("results[%d] failed (%v), sibling failures must not leak", i, r.Err)
		}
	}
}

func TestRunAllCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []int{0, 1, 2, 3, 4}
	results, err := RunAll(ctx, items, func(_ context.Context, i int) (int, error) {
		return i, nil
	}, quickOpts(), nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v, cancellation is per-item", err)
	}

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.OK {
			t.Errorf("results[%d] OK, want admission failure", i)
		}
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", i, r.Err)
		}
	}
}

func TestRunAllProgress(t *testing.T) {
	items := make([]int, 10)
	var (
		mu    sync.Mutex
		calls []int
	)

	_, err := RunAll(context.Background(), items, func(_ context.Context, i int) (int, error) {
		return i, nil
	}, quickOpts(), func(completed, total int) {
		if total != len(items) {
			t.Errorf("total = %d, want %d", total, len(items))
		}
		mu.Lock()
		calls = append(calls, completed)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// 10 items, batch size 3: 4 batches, one callback each.
	if len(calls) != 4 {
		t.Fatalf("progress calls = %d, want 4", len(calls))
	}
	max := 0
	for _, c := range calls {
		if c > max {
			max = c
		}
	}
	if max != len(items) {
		t.Errorf("final completed = %d, want %d", max, len(items))
	}
}
