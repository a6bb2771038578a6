package gateway

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strandhq/strand/internal/observability"
)

const defaultCleanupTimeout = 5 * time.Second

// Cleanup is one named teardown step run at shutdown.
type Cleanup struct {
	Name string
	Run  func(ctx context.Context) error
}

// ShutdownCoordinator runs registered cleanups in order once a shutdown
// signal arrives, each bounded by its own timeout so one stuck step
// cannot hold the process.
type ShutdownCoordinator struct {
	logger   *observability.Logger
	cleanups []Cleanup
	timeout  time.Duration
}

func NewShutdownCoordinator(logger *observability.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{logger: logger, timeout: defaultCleanupTimeout}
}

// WithTimeout sets the per-cleanup deadline.
func (s *ShutdownCoordinator) WithTimeout(d time.Duration) *ShutdownCoordinator {
	s.timeout = d
	return s
}

// Register appends one cleanup. Registration order is execution order.
func (s *ShutdownCoordinator) Register(name string, run func(ctx context.Context) error) {
	s.cleanups = append(s.cleanups, Cleanup{Name: name, Run: run})
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// RunCleanup executes every registered cleanup, logging failures and
// timeouts but never aborting the sequence.
func (s *ShutdownCoordinator) RunCleanup() {
	if s.logger != nil {
		s.logger.Info(context.Background(), "shutdown_started", "cleanups", len(s.cleanups))
	}

	for _, task := range s.cleanups {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		done := make(chan error, 1)
		go func(c Cleanup) {
			done <- c.Run(ctx)
		}(task)

		select {
		case err := <-done:
			if err != nil && s.logger != nil {
				s.logger.Warn(context.Background(), "cleanup_failed", "name", task.Name, "error", err.Error())
			} else if s.logger != nil {
				s.logger.Info(context.Background(), "cleanup_done", "name", task.Name)
			}
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Warn(context.Background(), "cleanup_timeout", "name", task.Name, "timeout", s.timeout.String())
			}
		}
		cancel()
	}

	if s.logger != nil {
		s.logger.Info(context.Background(), "shutdown_complete")
	}
}
