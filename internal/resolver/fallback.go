package resolver

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// FallbackScorer tries the primary scorer and degrades to the fallback
// when the primary fails. Decisions produced by the fallback are tagged
// so callers can tell degraded verdicts apart.
type FallbackScorer struct {
	Primary  Scorer
	Fallback Scorer
}

// NewFallbackScorer chains primary and fallback scorers.
func NewFallbackScorer(primary, fallback Scorer) *FallbackScorer {
	return &FallbackScorer{Primary: primary, Fallback: fallback}
}

// Score delegates to the primary scorer and falls back on error. When
// both scorers fail the primary's decision and error are returned.
func (s *FallbackScorer) Score(ctx context.Context, a, b models.Entity, class string) (Decision, error) {
	d, err := s.Primary.Score(ctx, a, b, class)
	if err == nil {
		return d, nil
	}

	slog.Warn("primary scorer failed, degrading to fallback", "a", a.Name, "b", b.Name, "class", class, "error", err)

	fd, ferr := s.Fallback.Score(ctx, a, b, class)
	if ferr != nil {
		slog.Warn("fallback scorer also failed", "a", a.Name, "b", b.Name, "error", ferr)
		return d, err
	}

	fd.Fallback = true
	fd.Evidence = append(fd.Evidence, "fallback: heuristic scorer used after scoring service error")
	return fd, nil
}
