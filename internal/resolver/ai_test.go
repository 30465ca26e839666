package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/llm"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
)

// fakeGenerator returns canned responses and counts calls.
type fakeGenerator struct {
	calls     atomic.Int32
	responses []string
	usage     llm.Usage
	err       error
}

func (f *fakeGenerator) GenerateWithSystem(_ context.Context, _, _ string, _ ...llms.CallOption) (string, llm.Usage, error) {
	n := int(f.calls.Add(1)) - 1
	if f.err != nil {
		return "", llm.Usage{}, f.err
	}
	if n < len(f.responses) {
		return f.responses[n], f.usage, nil
	}
	return f.responses[len(f.responses)-1], f.usage, nil
}

const matchResponse = `{
	"confidence_score": 96,
	"is_match": true,
	"match_reason": "same person",
	"supporting_evidence": ["identical email"],
	"sub_scores": {"name": 90, "contact": 100}
}`

func newTestAIScorer(gen Generator) *AIScorer {
	return NewAIScorer(gen, 16, time.Minute, 2, nil)
}

func TestAIScoreParsesVerdict(t *testing.T) {
	gen := &fakeGenerator{responses: []string{matchResponse}}
	scorer := newTestAIScorer(gen)

	d, err := scorer.Score(context.Background(), person("A", nil), person("B", nil), "person")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if d.Score != 96 || !d.IsMatch {
		t.Errorf("decision = %.1f/%v, want 96/true", d.Score, d.IsMatch)
	}
	if d.Reason != "same person" {
		t.Errorf("Reason = %q", d.Reason)
	}
	if len(d.Evidence) != 1 || d.SubScores["contact"] != 100 {
		t.Errorf("evidence/sub_scores not mapped: %+v", d)
	}
}

func TestAIScoreCachesAcrossArgumentOrder(t *testing.T) {
	gen := &fakeGenerator{responses: []string{matchResponse}}
	scorer := newTestAIScorer(gen)

	a := person("John Smith", map[string]string{"email": "js@example.com"})
	b := person("J. Smith", nil)

	first, err := scorer.Score(context.Background(), a, b, "person")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	// Same pair again, then swapped: both must hit the cache.
	if _, err := scorer.Score(context.Background(), a, b, "person"); err != nil {
		t.Fatalf("repeat Score() error = %v", err)
	}
	swapped, err := scorer.Score(context.Background(), b, a, "person")
	if err != nil {
		t.Fatalf("swapped Score() error = %v", err)
	}

	if got := gen.calls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
	if swapped.Score != first.Score || swapped.IsMatch != first.IsMatch {
		t.Errorf("swapped decision differs: %+v vs %+v", swapped, first)
	}
}

func TestAIScoreBadResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "malformed json", response: "not json at all"},
		{name: "score above range", response: `{"confidence_score": 140, "is_match": true, "match_reason": "x"}`},
		{name: "score below range", response: `{"confidence_score": -5, "is_match": false, "match_reason": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newTestAIScorer(&fakeGenerator{responses: []string{tt.response}})
			d, err := scorer.Score(context.Background(), person("A", nil), person("B", nil), "person")
			if !errors.Is(err, faults.ErrResolution) {
				t.Fatalf("Score() error = %v, want resolution fault", err)
			}
			if d.Score != 0 || d.IsMatch {
				t.Errorf("bad response must yield zero decision, got %+v", d)
			}
		})
	}
}

func TestAIScoreServiceError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	scorer := newTestAIScorer(gen)

	d, err := scorer.Score(context.Background(), person("A", nil), person("B", nil), "person")
	if !errors.Is(err, faults.ErrResolution) {
		t.Fatalf("Score() error = %v, want resolution fault", err)
	}
	if d.IsMatch || d.Score != 0 {
		t.Errorf("failed call must yield zero decision, got %+v", d)
	}

	// Failures are not cached.
	gen.err = nil
	gen.responses = []string{matchResponse}
	if _, err := scorer.Score(context.Background(), person("A", nil), person("B", nil), "person"); err != nil {
		t.Fatalf("recovered Score() error = %v", err)
	}
}

func TestAIScoreRecordsTokenUsage(t *testing.T) {
	collector := metrics.NewCollector()
	gen := &fakeGenerator{
		responses: []string{matchResponse},
		usage:     llm.Usage{InputTokens: 200, OutputTokens: 40},
	}
	scorer := NewAIScorer(gen, 16, time.Minute, 2, collector)

	if _, err := scorer.Score(context.Background(), person("A", nil), person("B", nil), "person"); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	// Cache hits make no remote call and record no usage.
	if _, err := scorer.Score(context.Background(), person("B", nil), person("A", nil), "person"); err != nil {
		t.Fatalf("cached Score() error = %v", err)
	}

	snap := collector.Snapshot().ScoreAI
	if snap == nil || snap.Count != 1 {
		t.Fatalf("score snapshot = %+v, want 1 remote call", snap)
	}
	if snap.TotalInputTokens == nil || *snap.TotalInputTokens != 200 {
		t.Errorf("TotalInputTokens = %v, want 200", snap.TotalInputTokens)
	}
	if snap.TotalOutputTokens == nil || *snap.TotalOutputTokens != 40 {
		t.Errorf("TotalOutputTokens = %v, want 40", snap.TotalOutputTokens)
	}
}

func TestAIScoreBatchGroupsAndCaches(t *testing.T) {
	batchResponse := `{"results": [
		{"confidence_score": 95, "is_match": true, "match_reason": "pair one"},
		{"confidence_score": 20, "is_match": false, "match_reason": "pair two"}
	]}`
	gen := &fakeGenerator{responses: []string{batchResponse}}
	scorer := newTestAIScorer(gen)

	pairs := []Pair{
		{A: person("A1", nil), B: person("B1", nil)},
		{A: person("A2", nil), B: person("B2", nil)},
	}
	decisions := scorer.ScoreBatch(context.Background(), pairs, "person")

	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	if decisions[0].Score != 95 || decisions[1].Score != 20 {
		t.Errorf("decisions out of order: %+v", decisions)
	}
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1 grouped call", got)
	}

	// Both pairs are now cached; individual scoring makes no new calls.
	if _, err := scorer.Score(context.Background(), pairs[1].B, pairs[1].A, "person"); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("remote calls after cached Score = %d, want 1", got)
	}
}

func TestAIScoreBatchDegradesToSingles(t *testing.T) {
	// First (grouped) response is unusable, the per-pair retries succeed.
	gen := &fakeGenerator{responses: []string{
		`{"results": []}`,
		matchResponse,
		matchResponse,
	}}
	scorer := newTestAIScorer(gen)

	pairs := []Pair{
		{A: person("A1", nil), B: person("B1", nil)},
		{A: person("A2", nil), B: person("B2", nil)},
	}
	decisions := scorer.ScoreBatch(context.Background(), pairs, "person")

	for i, d := range decisions {
		if d.Score != 96 {
			t.Errorf("decisions[%d].Score = %.1f, want 96 from single fallback", i, d.Score)
		}
	}
	// 1 failed group call + 2 singles.
	if got := gen.calls.Load(); got != 3 {
		t.Errorf("remote calls = %d, want 3", got)
	}
}
