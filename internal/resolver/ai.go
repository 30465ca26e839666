package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/llm"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// Generator is the slice of llm.Model the AI scorer needs.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...llms.CallOption) (string, llm.Usage, error)
}

// AI scorer defaults.
const (
	DefaultCacheSize  = 1024
	DefaultCacheTTL   = time.Hour
	DefaultBatchGroup = 5
)

// AIScorer delegates similarity scoring to a remote model behind a
// time-bounded response cache. The cache key is an order-independent hash
// of the pair plus the entity class, so swapped arguments hit the same
// entry. The expirable LRU is safe for concurrent readers and writers.
type AIScorer struct {
	model     Generator
	cache     *expirable.LRU[string, Decision]
	groupSize int
	collector *metrics.Collector
}

// NewAIScorer creates an AI-assisted scorer. Zero values select the
// defaults; collector may be nil.
func NewAIScorer(model Generator, cacheSize int, ttl time.Duration, groupSize int, collector *metrics.Collector) *AIScorer {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if groupSize <= 0 {
		groupSize = DefaultBatchGroup
	}
	return &AIScorer{
		model:     model,
		cache:     expirable.NewLRU[string, Decision](cacheSize, nil, ttl),
		groupSize: groupSize,
		collector: collector,
	}
}

const scoreSystemPrompt = `You judge whether two extracted entity records describe the same real-world entity.

Respond with a single JSON object, no prose:
{
  "confidence_score": <number 0-100>,
  "is_match": <bool>,
  "match_reason": "<one sentence>",
  "supporting_evidence": ["<observation>", ...],
  "sub_scores": {"name": <0-100>, "contact": <0-100>}
}
"sub_scores" is optional; every other field is required.`

const scoreBatchSystemPrompt = `You judge whether pairs of extracted entity records describe the same real-world entity.
For every numbered pair in the input, emit one verdict.

Respond with a single JSON object, no prose:
{
  "results": [
    {
      "confidence_score": <number 0-100>,
      "is_match": <bool>,
      "match_reason": "<one sentence>",
      "supporting_evidence": ["<observation>", ...],
      "sub_scores": {"name": <0-100>, "contact": <0-100>}
    }
  ]
}
"results" must contain exactly one entry per input pair, in input order.`

// aiVerdict mirrors the structured output contract of the scoring model.
type aiVerdict struct {
	ConfidenceScore    float64            `json:"confidence_score"`
	IsMatch            bool               `json:"is_match"`
	MatchReason        string             `json:"match_reason"`
	SupportingEvidence []string           `json:"supporting_evidence"`
	SubScores          map[string]float64 `json:"sub_scores,omitempty"`
}

// Score returns the cached decision when the pair was scored within the
// TTL, otherwise issues one remote scoring call. On service failure it
// returns a zero-score decision together with a resolution fault so the
// caller (or a fallback decorator) can degrade.
func (s *AIScorer) Score(ctx context.Context, a, b models.Entity, class string) (Decision, error) {
	key := pairKey(a, b, class)
	if d, ok := s.cache.Get(key); ok {
		return d, nil
	}

	start := time.Now()
	raw, usage, err := s.model.GenerateWithSystem(ctx, scoreSystemPrompt, describePair(a, b, class), llms.WithJSONMode())
	s.collector.RecordLLMUsage(metrics.OpScoreAI, time.Since(start), usage.InputTokens, usage.OutputTokens)
	if err != nil {
		return Decision{Reason: "scoring service error"},
			faults.Resolution(fmt.Errorf("score %q vs %q: %w", a.Name, b.Name, err))
	}

	d, err := parseVerdict(raw)
	if err != nil {
		return Decision{Reason: "unusable scoring response"}, err
	}

	s.cache.Add(key, d)
	return d, nil
}

// ScoreBatch scores many pairs, grouping uncached pairs into one remote
// call per group. The cache is consulted and populated per pair. When a
// group response is unusable the group degrades to per-pair Score calls.
// The returned slice always has len(pairs) entries in input order; pairs
// that could not be scored carry a zero-score decision.
func (s *AIScorer) ScoreBatch(ctx context.Context, pairs []Pair, class string) []Decision {
	decisions := make([]Decision, len(pairs))

	var missing []int
	for i, p := range pairs {
		if d, ok := s.cache.Get(pairKey(p.A, p.B, class)); ok {
			decisions[i] = d
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += s.groupSize {
		end := min(start+s.groupSize, len(missing))
		group := missing[start:end]
		if !s.scoreGroup(ctx, pairs, group, class, decisions) {
			// Group call unusable: degrade to singles.
			for _, i := range group {
				d, err := s.Score(ctx, pairs[i].A, pairs[i].B, class)
				if err != nil {
					slog.Warn("batch fallback scoring failed", "a", pairs[i].A.Name, "b", pairs[i].B.Name, "error", err)
				}
				decisions[i] = d
			}
		}
	}
	return decisions
}

// scoreGroup issues one remote call for the given pair indices and fills
// decisions. Returns false when the response could not be used.
func (s *AIScorer) scoreGroup(ctx context.Context, pairs []Pair, group []int, class string, decisions []Decision) bool {
	var sb strings.Builder
	for n, i := range group {
		fmt.Fprintf(&sb, "Pair %d:\n%s\n", n+1, describePair(pairs[i].A, pairs[i].B, class))
	}

	start := time.Now()
	raw, usage, err := s.model.GenerateWithSystem(ctx, scoreBatchSystemPrompt, sb.String(), llms.WithJSONMode())
	s.collector.RecordLLMUsage(metrics.OpScoreAI, time.Since(start), usage.InputTokens, usage.OutputTokens)
	if err != nil {
		slog.Warn("batch scoring call failed", "pairs", len(group), "error", err)
		return false
	}

	var resp struct {
		Results []aiVerdict `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || len(resp.Results) != len(group) {
		slog.Warn("batch scoring response unusable", "pairs", len(group), "got", len(resp.Results), "error", err)
		return false
	}

	for n, i := range group {
		d, err := verdictDecision(resp.Results[n])
		if err != nil {
			slog.Warn("batch verdict invalid, zeroing pair", "a", pairs[i].A.Name, "b", pairs[i].B.Name, "error", err)
			d = Decision{Reason: "unusable scoring response"}
		} else {
			s.cache.Add(pairKey(pairs[i].A, pairs[i].B, class), d)
		}
		decisions[i] = d
	}
	return true
}

func parseVerdict(raw string) (Decision, error) {
	var v aiVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Decision{}, faults.Resolution(fmt.Errorf("malformed scoring response: %w", err))
	}
	return verdictDecision(v)
}

func verdictDecision(v aiVerdict) (Decision, error) {
	if v.ConfidenceScore < 0 || v.ConfidenceScore > 100 {
		return Decision{}, faults.Resolution(fmt.Errorf("confidence score %.1f outside [0,100]", v.ConfidenceScore))
	}
	return Decision{
		Score:     v.ConfidenceScore,
		IsMatch:   v.IsMatch,
		Reason:    v.MatchReason,
		Evidence:  v.SupportingEvidence,
		SubScores: v.SubScores,
	}, nil
}

// describePair renders both entities for the scoring prompt.
func describePair(a, b models.Entity, class string) string {
	return fmt.Sprintf("Class: %s\nA: %s\nB: %s", class, describeEntity(a), describeEntity(b))
}

func describeEntity(e models.Entity) string {
	if len(e.Props) == 0 {
		return e.Name
	}
	keys := make([]string, 0, len(e.Props))
	for k := range e.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(e.Name)
	for _, k := range keys {
		fmt.Fprintf(&sb, "; %s=%s", k, e.Props[k])
	}
	return sb.String()
}

// pairKey builds an order-independent cache key: each side is hashed on
// its own, then the two digests are combined smallest-first.
func pairKey(a, b models.Entity, class string) string {
	ha := xxhash.Sum64String(describeEntity(a))
	hb := xxhash.Sum64String(describeEntity(b))
	if ha > hb {
		ha, hb = hb, ha
	}
	return fmt.Sprintf("%s:%016x:%016x", strings.ToLower(class), ha, hb)
}
