package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strandhq/strand/internal/audit"
	"github.com/strandhq/strand/internal/config"
	"github.com/strandhq/strand/internal/gateway"
	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/sessions"
	"github.com/strandhq/strand/internal/tasks"
	"github.com/strandhq/strand/pkg/models"
)

// runServe assembles the full gateway and blocks until SIGINT or SIGTERM,
// then drains everything through the shutdown coordinator.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg)
	metrics := observability.NewMetrics()
	_, tracerShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "strand",
		ServiceVersion: version,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
		EnableInsecure: true,
	})

	client, err := buildLLMClient(cfg, logger, metrics)
	if err != nil {
		return err
	}

	var trail *audit.Trail
	if cfg.Tools.AuditLog != "" {
		trail, err = audit.Open(cfg.Tools.AuditLog)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		trail.Record(audit.Event{Type: audit.EventGatewayStartup, Detail: map[string]any{"version": version}})
	}

	loop := buildLoop(cfg, client, trail, logger, metrics)

	longTerm := buildLongTerm(cfg)
	contextFactory := buildContextFactory(cfg, longTerm)

	store := sessions.NewStore(cfg.Gateway.DatabasePath, cfg.Gateway.MaxContextTurns, cfg.Gateway.SessionTimeout, logger)
	if cs, ok := store.(interface {
		SetContextFactory(func() *memory.ContextManager)
	}); ok {
		cs.SetContextFactory(contextFactory)
	}

	queue := buildTaskQueue(cfg, logger, metrics)

	// Background tasks run against a fresh context so they never race a
	// live conversation over the same session's working memory.
	process := func(taskCtx context.Context, task models.BackgroundTask) (string, error) {
		start := time.Now()
		result, err := loop.Run(taskCtx, contextFactory(), task.Instruction, nil)
		ev := audit.Event{
			Type:      audit.EventTaskExecution,
			SessionID: task.SessionID,
			Outcome:   "ok",
			Duration:  time.Since(start).Milliseconds(),
		}
		if err != nil {
			ev.Outcome = "error"
			ev.Error = err.Error()
		}
		trail.Record(ev)
		if err != nil {
			return "", err
		}
		return result.Response, nil
	}
	executor := tasks.NewExecutor(queue, cfg.Tasks.MaxConcurrent, process, logger)

	taskCtx, stopTasks := context.WithCancel(context.Background())
	defer stopTasks()
	executorDone := make(chan struct{})
	go func() {
		executor.Run(taskCtx)
		close(executorDone)
	}()

	runtime := gateway.NewRuntime(loop, store, logger, metrics)
	hub := gateway.NewHub(cfg.Gateway, store, runtime, queue, logger, metrics)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	admin := gateway.NewAdminServer(cfg.Gateway.AdminAddr, hub, logger)
	if err := admin.Start(); err != nil {
		hub.Stop()
		return fmt.Errorf("start admin server: %w", err)
	}

	// Nightly, fold yesterday's transcript logs into long-term memory.
	memoryRoot := memory.MemoryRoot(cfg.Memory.HomeDir)
	consolidator := cron.New()
	if _, err := consolidator.AddFunc("@midnight", func() {
		result, err := memory.Consolidate(memoryRoot, 1)
		if err != nil {
			logger.Warn(context.Background(), "consolidation_failed", "error", err.Error())
			return
		}
		logger.Info(context.Background(), "consolidation_done",
			"days", len(result.DatesProcessed), "blocks", result.BlocksAdded)
	}); err != nil {
		return fmt.Errorf("schedule consolidation: %w", err)
	}
	consolidator.Start()

	logger.Info(ctx, "strand_started",
		"version", version,
		"bind_addr", hub.Addr(),
		"admin_addr", cfg.Gateway.AdminAddr,
		"provider", client.Provider(),
		"model", client.Model(),
	)

	signalCtx, stop := gateway.SignalContext(ctx)
	defer stop()
	<-signalCtx.Done()

	coordinator := gateway.NewShutdownCoordinator(logger)
	coordinator.Register("consolidation_cron", func(cleanupCtx context.Context) error {
		select {
		case <-consolidator.Stop().Done():
			return nil
		case <-cleanupCtx.Done():
			return cleanupCtx.Err()
		}
	})
	coordinator.Register("hub", func(context.Context) error {
		hub.Stop()
		return nil
	})
	coordinator.Register("admin_server", func(cleanupCtx context.Context) error {
		admin.Stop(cleanupCtx)
		return nil
	})
	coordinator.Register("task_executor", func(cleanupCtx context.Context) error {
		stopTasks()
		select {
		case <-executorDone:
			return nil
		case <-cleanupCtx.Done():
			return cleanupCtx.Err()
		}
	})
	coordinator.Register("task_queue", func(context.Context) error {
		return queue.Close()
	})
	if closer, ok := store.(interface{ Close() error }); ok {
		coordinator.Register("session_store", func(context.Context) error {
			return closer.Close()
		})
	}
	if vector, ok := longTerm.(*memory.VectorLongTerm); ok {
		coordinator.Register("memory_snapshot", func(context.Context) error {
			return vector.SaveSnapshot()
		})
	}
	coordinator.Register("audit_trail", func(context.Context) error {
		trail.Record(audit.Event{Type: audit.EventGatewayShutdown})
		return trail.Close()
	})
	coordinator.Register("tracer", tracerShutdown)
	coordinator.RunCleanup()
	return nil
}

func buildTaskQueue(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) *tasks.Queue {
	if cfg.Tasks.DatabasePath == "" {
		return tasks.NewQueue(logger, metrics)
	}
	queue, err := tasks.NewQueueWithDB(cfg.Tasks.DatabasePath, logger, metrics)
	if err != nil {
		logger.Warn(context.Background(), "task_store_fallback", "error", err.Error())
		return tasks.NewQueue(logger, metrics)
	}
	return queue
}
