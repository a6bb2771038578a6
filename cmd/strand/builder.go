package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/strandhq/strand/internal/agent"
	"github.com/strandhq/strand/internal/audit"
	"github.com/strandhq/strand/internal/config"
	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/retry"
	"github.com/strandhq/strand/internal/tools"
)

func buildLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
}

// buildLLMClient assembles the provider chain: an OpenAI-compatible
// client, an optional fallback model, and bounded retries around both.
func buildLLMClient(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (llm.Client, error) {
	primary, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	var client llm.Client = primary
	if cfg.LLM.FallbackModel != "" && cfg.LLM.FallbackModel != cfg.LLM.Model {
		fallback, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.FallbackModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("fallback llm client: %w", err)
		}
		client = llm.NewFallbackClient(client, fallback, logger)
	}

	return llm.NewRetryableClient(client, retry.Config{
		MaxAttempts:  cfg.LLM.MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2,
		Jitter:       true,
	}, logger, metrics), nil
}

func buildRegistry(cfg config.ToolsConfig) *tools.Registry {
	sandbox := tools.NewSandbox(cfg.Workspace)

	registry := tools.NewRegistry()
	registry.Register(tools.EchoTool{})
	registry.Register(tools.ReadFileTool{FS: sandbox})
	registry.Register(tools.WriteFileTool{FS: sandbox})
	registry.Register(tools.ListDirTool{FS: sandbox})
	registry.Register(tools.NewShellTool(cfg.ShellAllowlist, cfg.Timeout))
	registry.Register(tools.NewFetchTool(cfg.FetchAllowedDomains, cfg.Timeout, 0))
	return registry
}

func buildLongTerm(cfg *config.Config) memory.LongTerm {
	mem := cfg.Memory
	root := memory.MemoryRoot(mem.HomeDir)
	switch mem.LongTerm {
	case "noop":
		return memory.NoopLongTerm{}
	case "lexical":
		return memory.NewInMemoryLongTerm(mem.VectorMaxEntries)
	case "hybrid":
		embedder := memory.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, mem.EmbeddingModel)
		return memory.NewVectorLongTerm(embedder, mem.VectorMaxEntries, filepath.Join(root, "vectors.json"))
	default:
		return memory.NewFileLongTerm(memory.LongTermPath(root), mem.VectorMaxEntries)
	}
}

// buildContextFactory returns the constructor the session store uses so
// every session's context carries the configured memory tiers.
func buildContextFactory(cfg *config.Config, longTerm memory.LongTerm) func() *memory.ContextManager {
	mem := cfg.Memory
	root := memory.MemoryRoot(mem.HomeDir)
	return func() *memory.ContextManager {
		return memory.NewContextManager(mem.MaxTurns).
			WithLongTerm(longTerm).
			WithLessonsPath(memory.LessonsPath(root)).
			WithProceduralPath(memory.ProceduralPath(root)).
			WithPreferencesPath(memory.PreferencesPath(root)).
			WithBudget(mem.TokenBudget).
			WithCacheTTL(mem.CacheTTL)
	}
}

func buildLoop(cfg *config.Config, client llm.Client, trail *audit.Trail, logger *observability.Logger, metrics *observability.Metrics) *agent.Loop {
	registry := buildRegistry(cfg.Tools)
	planner := agent.NewPlanner(client, cfg.Gateway.SystemPrompt).WithObservability(logger, metrics)

	return &agent.Loop{
		Planner:           planner,
		Executor:          tools.NewExecutor(registry, cfg.Tools.Timeout, logger, metrics).WithAudit(trail),
		Recovery:          agent.RecoveryEngine{},
		Scheduler:         tools.NewScheduler(cfg.Tools.MaxConcurrent),
		Logger:            logger,
		Metrics:           metrics,
		IncludeToolSchema: true,
	}
}
