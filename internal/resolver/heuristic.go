package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// Per-signal confidence constants. These are deliberately independent of
// the resolver's action threshold; deriving one from the other would
// silently change matching behavior.
const (
	scoreExactName    = 100.0
	scoreNormName     = 95.0
	scoreNickname     = 90.0
	scoreSurnameOnly  = 60.0
	scoreEmailMatch   = 95.0
	scorePhoneMatch   = 92.0
	scoreWebsiteMatch = 93.0
	scoreOrgLegal     = 95.0
)

// HeuristicScorer scores entity pairs with local string heuristics: name
// normalization, a nickname table, edit distance and property boosts. It
// is cheap, deterministic and needs no network.
type HeuristicScorer struct {
	// Threshold only feeds the decision's IsMatch verdict; FindExisting
	// applies its own threshold to the score.
	Threshold float64

	Collector *metrics.Collector
}

// NewHeuristicScorer creates a heuristic scorer with the default verdict
// threshold. collector may be nil.
func NewHeuristicScorer(collector *metrics.Collector) *HeuristicScorer {
	return &HeuristicScorer{Threshold: DefaultThreshold, Collector: collector}
}

// Score computes a similarity decision without leaving the process.
func (s *HeuristicScorer) Score(_ context.Context, a, b models.Entity, class string) (Decision, error) {
	start := time.Now()
	score, reason, evidence := nameScore(a.Name, b.Name)

	// Property boosts lift the score when a strong identifier matches.
	boost := func(sc float64, why string) {
		if sc > score {
			score, reason = sc, why
		}
		evidence = append(evidence, why)
	}

	if ea, eb := normalizeEmail(a.Prop(models.PropEmail)), normalizeEmail(b.Prop(models.PropEmail)); ea != "" && ea == eb {
		boost(scoreEmailMatch, "identical email address")
	}
	if pa, pb := normalizePhone(a.Prop(models.PropPhone)), normalizePhone(b.Prop(models.PropPhone)); pa != "" && pa == pb {
		boost(scorePhoneMatch, "identical phone number")
	}
	if wa, wb := normalizeDomain(a.Prop(models.PropWebsite)), normalizeDomain(b.Prop(models.PropWebsite)); wa != "" && wa == wb {
		boost(scoreWebsiteMatch, "identical website domain")
	}
	if strings.EqualFold(class, "organization") {
		if oa, ob := normalizeOrgName(a.Name), normalizeOrgName(b.Name); oa != "" && oa == ob {
			boost(scoreOrgLegal, "organization name match ignoring legal suffix")
		}
	}

	s.Collector.RecordTiming(metrics.OpScoreLocal, time.Since(start))

	return Decision{
		Score:    score,
		IsMatch:  score >= s.threshold(),
		Reason:   reason,
		Evidence: evidence,
	}, nil
}

func (s *HeuristicScorer) threshold() float64 {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return DefaultThreshold
}

// nameScore scores two names through the heuristic ladder: exact,
// normalized, nickname, shared surname, then edit-distance ratio.
func nameScore(a, b string) (score float64, reason string, evidence []string) {
	ta, tb := strings.TrimSpace(a), strings.TrimSpace(b)
	if ta == "" || tb == "" {
		return 0, "missing name", nil
	}
	if strings.EqualFold(ta, tb) {
		return scoreExactName, "exact name match", []string{fmt.Sprintf("%q equals %q ignoring case", a, b)}
	}

	na, nb := normalizeName(ta), normalizeName(tb)
	if na != "" && na == nb {
		return scoreNormName, "name match after normalization", []string{fmt.Sprintf("both normalize to %q", na)}
	}

	fa, fb := strings.Fields(na), strings.Fields(nb)
	if len(fa) >= 2 && len(fb) >= 2 {
		restA, restB := strings.Join(fa[1:], " "), strings.Join(fb[1:], " ")
		if restA == restB && canonicalFirstName(fa[0]) == canonicalFirstName(fb[0]) {
			return scoreNickname, "nickname match", []string{fmt.Sprintf("%q and %q share canonical first name %q", fa[0], fb[0], canonicalFirstName(fa[0]))}
		}
		if fa[len(fa)-1] == fb[len(fb)-1] {
			return scoreSurnameOnly, "same surname, different first name", []string{fmt.Sprintf("shared surname %q", fa[len(fa)-1])}
		}
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 0, "names empty after normalization", nil
	}
	ratio := 1.0 - float64(dist)/float64(longest)
	if ratio < 0 {
		ratio = 0
	}
	return ratio * 100, fmt.Sprintf("edit distance ratio %.2f", ratio), nil
}
