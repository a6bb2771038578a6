// Package config loads the strand configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/strandhq/strand/internal/ratelimit"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Memory        MemoryConfig        `yaml:"memory"`
	Tools         ToolsConfig         `yaml:"tools"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig selects the chat provider and its credentials.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"STRAND_LLM_PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"STRAND_LLM_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"STRAND_LLM_BASE_URL"`
	Model       string        `yaml:"model" env:"STRAND_LLM_MODEL"`
	FallbackModel string      `yaml:"fallback_model" env:"STRAND_LLM_FALLBACK_MODEL"`
	Temperature float32       `yaml:"temperature" env:"STRAND_LLM_TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"STRAND_LLM_MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"STRAND_LLM_TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"STRAND_LLM_MAX_RETRIES"`
}

// MemoryConfig controls the three memory tiers and prompt assembly.
type MemoryConfig struct {
	// HomeDir holds the markdown memory files and daily logs.
	HomeDir string `yaml:"home_dir" env:"STRAND_MEMORY_HOME"`
	// MaxTurns bounds the conversation ring at 2*MaxTurns messages.
	MaxTurns int `yaml:"max_turns" env:"STRAND_MEMORY_MAX_TURNS"`
	// TokenBudget is the prompt assembly budget in estimated tokens.
	TokenBudget int `yaml:"token_budget" env:"STRAND_MEMORY_TOKEN_BUDGET"`
	// LongTerm selects the long-term backend: noop, lexical, hybrid, markdown.
	LongTerm string `yaml:"long_term" env:"STRAND_MEMORY_LONG_TERM"`
	// CacheTTL bounds staleness of cached markdown sections.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"STRAND_MEMORY_CACHE_TTL"`
	// VectorMaxEntries bounds the hybrid store before LRU eviction.
	VectorMaxEntries int `yaml:"vector_max_entries" env:"STRAND_MEMORY_VECTOR_MAX_ENTRIES"`
	// EmbeddingModel is used by the hybrid store's vector pass.
	EmbeddingModel string `yaml:"embedding_model" env:"STRAND_MEMORY_EMBEDDING_MODEL"`
	// ChunkSize and ChunkOverlap shape document ingestion.
	ChunkSize    int `yaml:"chunk_size" env:"STRAND_MEMORY_CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" env:"STRAND_MEMORY_CHUNK_OVERLAP"`
}

// ToolsConfig controls the execution sandbox.
type ToolsConfig struct {
	// Workspace is the path sandbox root for file tools.
	Workspace string `yaml:"workspace" env:"STRAND_TOOLS_WORKSPACE"`
	// Timeout caps a single tool call.
	Timeout time.Duration `yaml:"timeout" env:"STRAND_TOOLS_TIMEOUT"`
	// MaxConcurrent admits tool calls through the scheduler.
	MaxConcurrent int `yaml:"max_concurrent" env:"STRAND_TOOLS_MAX_CONCURRENT"`
	// ShellAllowlist is the permitted argv[0] set for the shell tool.
	ShellAllowlist []string `yaml:"shell_allowlist" env:"STRAND_TOOLS_SHELL_ALLOWLIST" envSeparator:","`
	// FetchAllowedDomains restricts the fetch tool's targets.
	FetchAllowedDomains []string `yaml:"fetch_allowed_domains" env:"STRAND_TOOLS_FETCH_DOMAINS" envSeparator:","`
	// AuditLog is the JSONL audit trail path; empty disables it.
	AuditLog string `yaml:"audit_log" env:"STRAND_TOOLS_AUDIT_LOG"`
}

// GatewayConfig controls the hub listener and session routing.
type GatewayConfig struct {
	BindAddr          string        `yaml:"bind_addr" env:"STRAND_GATEWAY_BIND_ADDR"`
	AdminAddr         string        `yaml:"admin_addr" env:"STRAND_GATEWAY_ADMIN_ADDR"`
	MaxConnections    int           `yaml:"max_connections" env:"STRAND_GATEWAY_MAX_CONNECTIONS"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"STRAND_GATEWAY_HEARTBEAT"`
	SessionTimeout    time.Duration `yaml:"session_timeout" env:"STRAND_GATEWAY_SESSION_TIMEOUT"`
	MaxContextTurns   int           `yaml:"max_context_turns" env:"STRAND_GATEWAY_MAX_CONTEXT_TURNS"`
	SystemPrompt      string        `yaml:"system_prompt" env:"STRAND_GATEWAY_SYSTEM_PROMPT"`
	MaxConcurrent     int           `yaml:"max_concurrent" env:"STRAND_GATEWAY_MAX_CONCURRENT"`
	// DatabasePath enables the durable session store when set.
	DatabasePath string `yaml:"database_path" env:"STRAND_GATEWAY_DATABASE_PATH"`
	// RateLimit bounds per-user message rates; zero disables limiting.
	RateLimit ratelimit.Config `yaml:"rate_limit"`
}

// TasksConfig controls the background task queue.
type TasksConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" env:"STRAND_TASKS_MAX_CONCURRENT"`
	// DatabasePath enables the durable queue when set.
	DatabasePath string `yaml:"database_path" env:"STRAND_TASKS_DATABASE_PATH"`
}

// ObservabilityConfig controls logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel     string  `yaml:"log_level" env:"STRAND_LOG_LEVEL"`
	LogFormat    string  `yaml:"log_format" env:"STRAND_LOG_FORMAT"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"STRAND_OTLP_ENDPOINT"`
	SamplingRate float64 `yaml:"sampling_rate" env:"STRAND_SAMPLING_RATE"`
}

// Load reads a YAML file, expands ${VAR} references, applies defaults,
// then lets STRAND_* environment variables override. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	if cfg.Memory.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Memory.HomeDir = home + "/.strand"
		} else {
			cfg.Memory.HomeDir = ".strand"
		}
	}
	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 20
	}
	if cfg.Memory.TokenBudget == 0 {
		cfg.Memory.TokenBudget = 8000
	}
	if cfg.Memory.LongTerm == "" {
		cfg.Memory.LongTerm = "markdown"
	}
	if cfg.Memory.CacheTTL == 0 {
		cfg.Memory.CacheTTL = 60 * time.Second
	}
	if cfg.Memory.VectorMaxEntries == 0 {
		cfg.Memory.VectorMaxEntries = 10000
	}
	if cfg.Memory.EmbeddingModel == "" {
		cfg.Memory.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Memory.ChunkSize == 0 {
		cfg.Memory.ChunkSize = 500
	}
	if cfg.Memory.ChunkOverlap == 0 {
		cfg.Memory.ChunkOverlap = 50
	}

	if cfg.Tools.Workspace == "" {
		cfg.Tools.Workspace = "."
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = 30 * time.Second
	}
	if cfg.Tools.MaxConcurrent == 0 {
		cfg.Tools.MaxConcurrent = 4
	}
	if len(cfg.Tools.ShellAllowlist) == 0 {
		cfg.Tools.ShellAllowlist = []string{"ls", "cat", "grep", "head", "tail", "wc", "date", "echo"}
	}

	if cfg.Gateway.BindAddr == "" {
		cfg.Gateway.BindAddr = "127.0.0.1:9000"
	}
	if cfg.Gateway.AdminAddr == "" {
		cfg.Gateway.AdminAddr = "127.0.0.1:9090"
	}
	if cfg.Gateway.MaxConnections == 0 {
		cfg.Gateway.MaxConnections = 1000
	}
	if cfg.Gateway.HeartbeatInterval == 0 {
		cfg.Gateway.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Gateway.SessionTimeout == 0 {
		cfg.Gateway.SessionTimeout = time.Hour
	}
	if cfg.Gateway.MaxContextTurns == 0 {
		cfg.Gateway.MaxContextTurns = 20
	}
	if cfg.Gateway.SystemPrompt == "" {
		cfg.Gateway.SystemPrompt = "You are a helpful AI assistant."
	}
	if cfg.Gateway.MaxConcurrent == 0 {
		cfg.Gateway.MaxConcurrent = 10
	}

	if cfg.Tasks.MaxConcurrent == 0 {
		cfg.Tasks.MaxConcurrent = 2
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.SamplingRate == 0 {
		cfg.Observability.SamplingRate = 1.0
	}
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Memory.LongTerm {
	case "noop", "lexical", "hybrid", "markdown":
	default:
		return fmt.Errorf("unknown long_term backend %q", c.Memory.LongTerm)
	}
	if c.Memory.ChunkOverlap >= c.Memory.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d",
			c.Memory.ChunkOverlap, c.Memory.ChunkSize)
	}
	if c.Memory.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be positive, got %d", c.Memory.MaxTurns)
	}
	if c.Tools.MaxConcurrent < 1 {
		return fmt.Errorf("tools max_concurrent must be positive, got %d", c.Tools.MaxConcurrent)
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in [0,1], got %f", c.Observability.SamplingRate)
	}
	return nil
}
