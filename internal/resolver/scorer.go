// Package resolver decides whether a newly extracted entity duplicates a
// record already held by the record store.
package resolver

import (
	"context"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// Default resolution constants.
const (
	// DefaultThreshold is the score at or above which a pair is treated
	// as a duplicate.
	DefaultThreshold = 90.0
	// DefaultCandidateLimit caps how many search candidates are scored.
	DefaultCandidateLimit = 10
)

// Decision is the outcome of scoring one candidate pair.
type Decision struct {
	// Score is the similarity confidence in [0,100].
	Score float64
	// IsMatch is the scorer's own duplicate verdict.
	IsMatch bool
	// Reason is a short human-readable explanation.
	Reason string
	// Evidence lists supporting observations, when available.
	Evidence []string
	// SubScores holds optional per-dimension scores from the AI scorer.
	SubScores map[string]float64
	// Fallback is true when a fallback scorer produced this decision.
	Fallback bool
}

// Scorer computes a similarity decision for a pair of entities. Scoring is
// a pure function of (a, b, class) apart from response caching; argument
// order must not affect the outcome.
type Scorer interface {
	Score(ctx context.Context, a, b models.Entity, class string) (Decision, error)
}

// Pair is one candidate pair for batch scoring.
type Pair struct {
	A, B models.Entity
}
