package records

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/models"
	"github.com/raphaelgruber/scribe-go/internal/throttle"
)

// ThrottledOptions configures the throttled store decorator.
type ThrottledOptions struct {
	// SearchRPS and WriteRPS cap the request rates per operation family.
	SearchRPS float64
	WriteRPS  float64
	// Retries is how many times a failed call is retried.
	Retries uint64
	// RetryDelay is the fixed pause between retries.
	RetryDelay time.Duration
}

// Throttled wraps a Store with per-operation rate limiting and bounded
// retries. Searches and writes get independent throttles so a burst of
// lookups cannot starve record writes. Non-retryable failures stop the
// retry loop immediately.
type Throttled struct {
	inner     Store
	search    *throttle.Throttle
	write     *throttle.Throttle
	retries   uint64
	delay     time.Duration
	collector *metrics.Collector
}

// NewThrottled decorates a store. collector may be nil.
func NewThrottled(inner Store, opts ThrottledOptions, collector *metrics.Collector) *Throttled {
	if opts.SearchRPS <= 0 {
		opts.SearchRPS = 3
	}
	if opts.WriteRPS <= 0 {
		opts.WriteRPS = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Throttled{
		inner:     inner,
		search:    throttle.New(opts.SearchRPS),
		write:     throttle.New(opts.WriteRPS),
		retries:   opts.Retries,
		delay:     opts.RetryDelay,
		collector: collector,
	}
}

// Search rate-limits and retries the inner search.
func (t *Throttled) Search(ctx context.Context, query string, limit int) ([]models.Record, error) {
	var out []models.Record
	err := t.retry(ctx, func() error {
		t.search.Acquire()
		start := time.Now()
		recs, err := t.inner.Search(ctx, query, limit)
		t.collector.RecordTiming(metrics.OpRecordSearch, time.Since(start))
		out = recs
		return err
	})
	return out, err
}

// Create rate-limits and retries the inner create.
func (t *Throttled) Create(ctx context.Context, entity models.Entity) (models.RecordRef, error) {
	var ref models.RecordRef
	err := t.retry(ctx, func() error {
		t.write.Acquire()
		start := time.Now()
		r, err := t.inner.Create(ctx, entity)
		t.collector.RecordTiming(metrics.OpRecordWrite, time.Since(start))
		ref = r
		return err
	})
	return ref, err
}

// Update rate-limits and retries the inner update.
func (t *Throttled) Update(ctx context.Context, ref models.RecordRef, entity models.Entity) error {
	return t.retry(ctx, func() error {
		t.write.Acquire()
		start := time.Now()
		err := t.inner.Update(ctx, ref, entity)
		t.collector.RecordTiming(metrics.OpRecordWrite, time.Since(start))
		return err
	})
}

func (t *Throttled) retry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err != nil && !faults.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.delay), t.retries),
		ctx,
	)
	return backoff.Retry(wrapped, policy)
}
