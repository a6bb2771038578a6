package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strandhq/strand/internal/agent"
	"github.com/strandhq/strand/internal/config"
	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

// runChat drives an interactive terminal session against the agent loop,
// no server involved. Each turn is appended to the daily memory log so
// later consolidation can fold it into long-term memory.
func runChat(ctx context.Context, configPath string, offline bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	})

	var client llm.Client
	if offline {
		client = llm.NewMockClient()
	} else {
		client, err = buildLLMClient(cfg, logger, nil)
		if err != nil {
			return err
		}
	}

	loop := buildLoop(cfg, client, nil, logger, nil)
	longTerm := buildLongTerm(cfg)
	cm := buildContextFactory(cfg, longTerm)()

	memoryRoot := memory.MemoryRoot(cfg.Memory.HomeDir)
	sessionID := "chat_" + uuid.NewString()[:8]

	fmt.Printf("strand %s (%s/%s)\n", version, client.Provider(), client.Model())
	fmt.Println(`Type a message, "/consolidate" to fold recent logs, or "/quit" to exit.`)

	sink := agent.FuncSink(func(_ context.Context, ev agent.Event) {
		switch ev.Type {
		case agent.EventToolCall:
			fmt.Printf("  [tool] %s %s\n", ev.Tool, string(ev.Args))
		case agent.EventToolFailure:
			fmt.Printf("  [tool error] %s: %s\n", ev.Tool, ev.Reason)
		case agent.EventMessageChunk:
			fmt.Print(ev.Text)
		case agent.EventMessageDone:
			fmt.Println()
		}
	})

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/consolidate":
			result, err := memory.Consolidate(memoryRoot, 7)
			if err != nil {
				fmt.Fprintf(os.Stderr, "consolidate: %v\n", err)
				continue
			}
			fmt.Printf("consolidated %d days into %d blocks\n", len(result.DatesProcessed), result.BlocksAdded)
			continue
		}

		result, err := loop.Run(ctx, cm, input, sink)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		date := time.Now().Format("2006-01-02")
		turn := []models.Message{
			models.UserMessage(input),
			models.AssistantMessage(result.Response),
		}
		if err := memory.AppendDailyLog(memoryRoot, date, sessionID, turn); err != nil {
			logger.Warn(ctx, "daily_log_failed", "error", err.Error())
		}
	}
}
