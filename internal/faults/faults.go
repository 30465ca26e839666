// Package faults defines the error taxonomy for the intake pipeline and
// the single retryability classifier every retry site uses. Check kinds
// with errors.Is.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel fault kinds.
var (
	// ErrTransient marks network, rate-limit and 5xx-class failures that
	// are safe to retry.
	ErrTransient = errors.New("transient failure")

	// ErrValidation marks malformed input or output. Never retried.
	ErrValidation = errors.New("validation failure")

	// ErrResolution marks a scorer failure. Degrades to a fallback scorer
	// or a zero-confidence non-match; never aborts the owning job.
	ErrResolution = errors.New("resolution failure")

	// ErrPersistence marks a job store failure. Surfaced to the submitter,
	// never silently retried.
	ErrPersistence = errors.New("persistence failure")
)

// Transient tags err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Validation tags err as malformed input/output.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Resolution tags err as a scorer failure.
func Resolution(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrResolution, err)
}

// Persistence tags err as a job store failure.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Retryable is the single retryability decision for the whole pipeline.
// Untagged errors default to retryable so flaky collaborators get the
// benefit of the doubt; validation, resolution and persistence faults and
// context cancellation never do.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrResolution) || errors.Is(err, ErrPersistence) {
		return false
	}
	return true
}

// IsTimeout reports whether err is a network timeout. Used for logging
// detail only; Retryable already treats these as transient.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Sanitize reduces err to a concise single-line message suitable for a
// failed job's user-visible error text. Stack traces, credentials and
// internal paths must never reach the job record.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	const maxLen = 200
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
