package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// SearchFunc looks up candidate records by name. Implementations come
// from the record store.
type SearchFunc func(ctx context.Context, query string, limit int) ([]models.Record, error)

// Match pairs the winning candidate record with the decision that
// selected it.
type Match struct {
	Record   models.Record
	Decision Decision
}

// Resolver finds the existing record, if any, that a newly extracted
// entity duplicates.
type Resolver struct {
	scorer         Scorer
	candidateLimit int
}

// New creates a resolver. candidateLimit <= 0 selects the default.
func New(scorer Scorer, candidateLimit int) *Resolver {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &Resolver{scorer: scorer, candidateLimit: candidateLimit}
}

// FindExisting searches for candidates by name and scores each against
// the entity. It returns the best-scoring candidate when its score
// reaches the threshold, nil when no candidate qualifies. Scorer failures
// on individual candidates are logged and skipped so one bad pair cannot
// sink the lookup; a search failure is returned as a resolution fault.
func (r *Resolver) FindExisting(ctx context.Context, entity models.Entity, search SearchFunc, threshold float64) (*Match, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	candidates, err := search(ctx, entity.Name, r.candidateLimit)
	if err != nil {
		return nil, faults.Resolution(fmt.Errorf("candidate search for %q: %w", entity.Name, err))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var best *Match
	for _, cand := range candidates {
		d, err := r.scorer.Score(ctx, entity, cand.AsEntity(), entity.Class)
		if err != nil {
			slog.Warn("candidate scoring failed, skipping", "entity", entity.Name, "candidate", cand.Name, "error", err)
			continue
		}
		if best == nil || d.Score > best.Decision.Score {
			best = &Match{Record: cand, Decision: d}
		}
	}

	if best == nil || best.Decision.Score < threshold {
		return nil, nil
	}

	slog.Debug("duplicate resolved",
		"entity", entity.Name,
		"record", string(best.Record.Ref),
		"score", best.Decision.Score,
		"reason", best.Decision.Reason)
	return best, nil
}
