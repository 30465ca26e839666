// Package config loads pipeline configuration from environment variables
// with an optional YAML file overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Scorer selection values.
const (
	ScorerHeuristic = "heuristic"
	ScorerAI        = "ai"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection (job store + record store)
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// LLM (extraction + AI scoring)
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AWSRegion       string `yaml:"aws_region"`

	// Orchestration
	Workers           int           `yaml:"workers"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`

	// Batch execution
	BatchSize            int           `yaml:"batch_size"`
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches"`
	RetryCount           int           `yaml:"retry_count"`
	RetryDelay           time.Duration `yaml:"retry_delay"`

	// Entity resolution
	Scorer         string        `yaml:"scorer"`
	DedupThreshold float64       `yaml:"dedup_threshold"`
	CandidateLimit int           `yaml:"candidate_limit"`
	ScoreCacheTTL  time.Duration `yaml:"score_cache_ttl"`
	ScoreCacheSize int           `yaml:"score_cache_size"`
	ScoreBatchSize int           `yaml:"score_batch_size"`

	// Record store pacing
	RecordSearchRPS float64 `yaml:"record_search_rps"`
	RecordWriteRPS  float64 `yaml:"record_write_rps"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, then overlays the
// YAML file named by SCRIBE_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "scribe"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "intake"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("SCRIBE_LLM_PROVIDER", ProviderOllama),
		LLMModel:        getEnv("SCRIBE_LLM_MODEL", "llama3.1"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		Workers:           getEnvInt("SCRIBE_WORKERS", 5),
		MaxConcurrentJobs: getEnvInt("SCRIBE_MAX_CONCURRENT_JOBS", 5),
		PollInterval:      getEnvDuration("SCRIBE_POLL_INTERVAL", time.Second),
		ShutdownGrace:     getEnvDuration("SCRIBE_SHUTDOWN_GRACE", 30*time.Second),

		BatchSize:            getEnvInt("SCRIBE_BATCH_SIZE", 10),
		MaxConcurrentBatches: getEnvInt("SCRIBE_MAX_CONCURRENT_BATCHES", 3),
		RetryCount:           getEnvInt("SCRIBE_RETRY_COUNT", 3),
		RetryDelay:           getEnvDuration("SCRIBE_RETRY_DELAY", time.Second),

		Scorer:         getEnv("SCRIBE_SCORER", ScorerHeuristic),
		DedupThreshold: getEnvFloat("SCRIBE_DEDUP_THRESHOLD", 90.0),
		CandidateLimit: getEnvInt("SCRIBE_CANDIDATE_LIMIT", 10),
		ScoreCacheTTL:  getEnvDuration("SCRIBE_SCORE_CACHE_TTL", time.Hour),
		ScoreCacheSize: getEnvInt("SCRIBE_SCORE_CACHE_SIZE", 1024),
		ScoreBatchSize: getEnvInt("SCRIBE_SCORE_BATCH_SIZE", 5),

		RecordSearchRPS: getEnvFloat("SCRIBE_RECORD_SEARCH_RPS", 3),
		RecordWriteRPS:  getEnvFloat("SCRIBE_RECORD_WRITE_RPS", 3),

		LogFile:  getEnv("SCRIBE_LOG_FILE", "/tmp/scribe.log"),
		LogLevel: parseLogLevel(getEnv("SCRIBE_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("SCRIBE_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// overlayFile applies values from a YAML file over cfg. Keys absent from
// the file keep their env/default values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if level, ok := yamlLogLevel(data); ok {
		c.LogLevel = level
	}
	return nil
}

// yamlLogLevel parses the log_level key separately because slog.Level has
// no YAML unmarshaller.
func yamlLogLevel(data []byte) (slog.Level, bool) {
	var raw struct {
		LogLevel string `yaml:"log_level"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil || raw.LogLevel == "" {
		return slog.LevelInfo, false
	}
	return parseLogLevel(raw.LogLevel), true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
