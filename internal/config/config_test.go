package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SurrealDBURL != "ws://localhost:8000/rpc" {
		t.Errorf("SurrealDBURL = %q", cfg.SurrealDBURL)
	}
	if cfg.Workers != 5 || cfg.MaxConcurrentJobs != 5 {
		t.Errorf("orchestration defaults = %d/%d, want 5/5", cfg.Workers, cfg.MaxConcurrentJobs)
	}
	if cfg.DedupThreshold != 90.0 {
		t.Errorf("DedupThreshold = %.1f, want 90.0", cfg.DedupThreshold)
	}
	if cfg.Scorer != ScorerHeuristic {
		t.Errorf("Scorer = %q, want heuristic", cfg.Scorer)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRIBE_WORKERS", "9")
	t.Setenv("SCRIBE_DEDUP_THRESHOLD", "75.5")
	t.Setenv("SCRIBE_POLL_INTERVAL", "250ms")
	t.Setenv("SCRIBE_SCORER", "ai")
	t.Setenv("SCRIBE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workers != 9 {
		t.Errorf("Workers = %d, want 9", cfg.Workers)
	}
	if cfg.DedupThreshold != 75.5 {
		t.Errorf("DedupThreshold = %.1f, want 75.5", cfg.DedupThreshold)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.Scorer != ScorerAI {
		t.Errorf("Scorer = %q, want ai", cfg.Scorer)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("SCRIBE_WORKERS", "not-a-number")
	t.Setenv("SCRIBE_RETRY_DELAY", "soonish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 5 {
		t.Errorf("Workers = %d, want default 5", cfg.Workers)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want default 1s", cfg.RetryDelay)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scribe.yaml")
	yaml := `
workers: 3
dedup_threshold: 80
scorer: ai
log_level: warn
record_search_rps: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// Env sets a value the file overrides, and one it leaves alone.
	t.Setenv("SCRIBE_WORKERS", "9")
	t.Setenv("SCRIBE_MAX_CONCURRENT_JOBS", "7")
	t.Setenv("SCRIBE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want file value 3", cfg.Workers)
	}
	if cfg.MaxConcurrentJobs != 7 {
		t.Errorf("MaxConcurrentJobs = %d, want env value 7 untouched by file", cfg.MaxConcurrentJobs)
	}
	if cfg.DedupThreshold != 80 {
		t.Errorf("DedupThreshold = %.1f, want 80", cfg.DedupThreshold)
	}
	if cfg.Scorer != ScorerAI {
		t.Errorf("Scorer = %q, want ai", cfg.Scorer)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.RecordSearchRPS != 10 {
		t.Errorf("RecordSearchRPS = %.1f, want 10", cfg.RecordSearchRPS)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG", "/nonexistent/scribe.yaml")

	_, err := Load()
	if err == nil {
		t.Error("Load() should fail for an unreadable config file")
	}
}
