package llm

import "testing"

func TestUsageFromInfo(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		wantIn  int64
		wantOut int64
	}{
		{
			name:    "openai style ints",
			info:    map[string]any{"PromptTokens": 120, "CompletionTokens": 30, "TotalTokens": 150},
			wantIn:  120,
			wantOut: 30,
		},
		{
			name:    "anthropic style keys",
			info:    map[string]any{"InputTokens": 80, "OutputTokens": 20},
			wantIn:  80,
			wantOut: 20,
		},
		{
			name:    "float decoded counts",
			info:    map[string]any{"PromptTokens": float64(64), "CompletionTokens": float64(16)},
			wantIn:  64,
			wantOut: 16,
		},
		{
			name: "no usage reported",
			info: nil,
		},
		{
			name: "unrelated keys only",
			info: map[string]any{"FinishReason": "stop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := usageFromInfo(tt.info)
			if u.InputTokens != tt.wantIn || u.OutputTokens != tt.wantOut {
				t.Errorf("usageFromInfo() = %+v, want in=%d out=%d", u, tt.wantIn, tt.wantOut)
			}
		})
	}
}
