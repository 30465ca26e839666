// Package extract converts raw transcript text into candidate entities and
// relationships via a structured-output LLM call.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/scribe-go/internal/faults"
	"github.com/raphaelgruber/scribe-go/internal/llm"
	"github.com/raphaelgruber/scribe-go/internal/metrics"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// Generator is the slice of llm.Model the extractor needs.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...llms.CallOption) (string, llm.Usage, error)
}

// Extractor calls the extraction model and validates its output.
type Extractor struct {
	model     Generator
	collector *metrics.Collector
}

// New creates an extractor. collector may be nil.
func New(model Generator, collector *metrics.Collector) *Extractor {
	return &Extractor{model: model, collector: collector}
}

const extractSystemPrompt = `You are an entity extraction engine for meeting and call transcripts.
Extract every distinct person, organization and other named entity mentioned in the transcript.

Respond with a single JSON object, no prose, in this exact shape:
{
  "entities": [
    {"name": "...", "class": "person|organization|...", "props": {"email": "...", "phone": "...", "organization": "...", "website": "..."}}
  ],
  "relationships": [
    {"from": "...", "to": "...", "type": "works_at|mentioned_with|..."}
  ]
}

Rules:
- "name" is required for every entity
- include a prop only when the transcript states it
- "class" is a lowercase free-form label, prefer "person" and "organization"
- relationships reference entities by their "name"`

// Extract converts one transcript payload into candidate entities.
// Malformed or unstructured model output surfaces as a validation fault,
// never as a silently empty result.
func (e *Extractor) Extract(ctx context.Context, payload string) (*models.Extraction, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, faults.Validation(errors.New("empty transcript payload"))
	}

	start := time.Now()
	raw, usage, err := e.model.GenerateWithSystem(ctx, extractSystemPrompt, payload, llms.WithJSONMode())
	duration := time.Since(start)
	e.collector.RecordLLMUsage(metrics.OpExtract, duration, usage.InputTokens, usage.OutputTokens)

	if err != nil {
		slog.Warn("extraction call failed", "duration_ms", duration.Milliseconds(), "error", err)
		return nil, faults.Transient(fmt.Errorf("extraction call: %w", err))
	}

	ext, err := parseExtraction(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("extraction complete",
		"entities", len(ext.Entities),
		"relationships", len(ext.Relationships),
		"duration_ms", duration.Milliseconds())
	return ext, nil
}

// parseExtraction decodes and validates the model output.
func parseExtraction(raw string) (*models.Extraction, error) {
	raw = stripCodeFence(raw)

	var ext models.Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return nil, faults.Validation(fmt.Errorf("malformed extraction output: %w", err))
	}

	for i := range ext.Entities {
		ext.Entities[i].Name = strings.TrimSpace(ext.Entities[i].Name)
		if ext.Entities[i].Name == "" {
			return nil, faults.Validation(fmt.Errorf("extraction output entity %d has no name", i))
		}
		if ext.Entities[i].Class == "" {
			ext.Entities[i].Class = "unknown"
		}
	}
	return &ext, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
