// Package runner executes homogeneous tasks in fixed-size batches under a
// concurrency ceiling, with per-item retries and ordered results.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/scribe-go/internal/faults"
)

// Options configures one RunAll call.
type Options struct {
	// BatchSize is the number of items admitted as one group. Required.
	BatchSize int
	// MaxConcurrentBatches caps how many groups run at once. Required.
	MaxConcurrentBatches int
	// RetryCount is the number of retries per item after the first attempt.
	RetryCount int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
}

// Result holds the outcome for a single input item. Exactly one of Output
// (OK true) and Err (OK false) is meaningful.
type Result[I, O any] struct {
	Item    I
	Output  O
	Err     error
	OK      bool
	Retries int
}

// ProgressFunc receives the completed item count after each batch finishes.
type ProgressFunc func(completed, total int)

// RunAll partitions items into consecutive batches of opts.BatchSize, runs
// at most opts.MaxConcurrentBatches of them concurrently, and runs every
// item within an admitted batch concurrently through a retry wrapper.
//
// The returned slice always has len(items) entries in input order. Item
// failures are captured in their Result and never abort siblings; the
// error return is reserved for contract violations in opts. Cancellation
// is cooperative: once ctx is done no further batches are admitted,
// already-admitted batches run to completion, and unadmitted items are
// recorded as failed with the context error.
func RunAll[I, O any](ctx context.Context, items []I, fn func(context.Context, I) (O, error), opts Options, onProgress ProgressFunc) ([]Result[I, O], error) {
	if opts.BatchSize <= 0 {
		return nil, faults.Validation(fmt.Errorf("batch size must be positive, got %d", opts.BatchSize))
	}
	if opts.MaxConcurrentBatches <= 0 {
		return nil, faults.Validation(fmt.Errorf("max concurrent batches must be positive, got %d", opts.MaxConcurrentBatches))
	}
	if opts.RetryCount < 0 {
		return nil, faults.Validation(fmt.Errorf("retry count must not be negative, got %d", opts.RetryCount))
	}

	total := len(items)
	results := make([]Result[I, O], total)
	if total == 0 {
		return results, nil
	}

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrentBatches))
	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
		completed  int
	)

	for start := 0; start < total; start += opts.BatchSize {
		end := min(start+opts.BatchSize, total)

		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled at the admission gate: stop scheduling and mark
			// everything not yet admitted.
			for i := start; i < total; i++ {
				results[i] = Result[I, O]{Item: items[i], Err: err}
			}
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer sem.Release(1)

			var batch sync.WaitGroup
			for i := start; i < end; i++ {
				batch.Add(1)
				go func(i int) {
					defer batch.Done()
					// Each goroutine owns a distinct index, no lock needed.
					results[i] = runWithRetry(ctx, items[i], fn, opts)
				}(i)
			}
			batch.Wait()

			progressMu.Lock()
			completed += end - start
			done := completed
			progressMu.Unlock()
			if onProgress != nil {
				onProgress(done, total)
			}
		}(start, end)
	}

	wg.Wait()
	return results, nil
}

func runWithRetry[I, O any](ctx context.Context, item I, fn func(context.Context, I) (O, error), opts Options) Result[I, O] {
	res := Result[I, O]{Item: item}
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx, item)
		res.Retries = attempt
		if err == nil {
			res.Output = out
			res.OK = true
			res.Err = nil
			return res
		}
		res.Err = err
		if attempt >= opts.RetryCount || !faults.Retryable(err) {
			return res
		}
		select {
		case <-ctx.Done():
			return res
		case <-time.After(opts.RetryDelay):
		}
	}
}
