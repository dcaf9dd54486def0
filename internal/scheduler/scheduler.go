// Package scheduler runs the four fixed lifecycle jobs of nexuscore: a
// disk-usage check, telemetry archival, cold-data purge, and sensor-driven
// memory consolidation. Unlike a general-purpose cron runner this package has
// no persisted task table — the job set is fixed and wired at Start.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexuscore/agentd/internal/observability"
	"github.com/nexuscore/agentd/internal/telemetry"
)

// JobFunc runs one pass of a job and returns counts to attach to the
// completion event (e.g. {"archived": 12, "removed": 12}).
type JobFunc func(ctx context.Context) (counts map[string]int64, err error)

// Job pairs a name with its cron schedule and work function.
type Job struct {
	Name     string
	Schedule string // standard 5-field cron expression, empty for on-demand jobs
	Run      JobFunc
}

// Config configures the Scheduler.
type Config struct {
	Bus     *telemetry.Bus
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Scheduler coordinates the lifecycle jobs under a single stop signal.
// Each job is reentrancy-guarded: if a run is still in flight when its next
// trigger fires, the new trigger is skipped rather than queued.
type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. Register jobs with Register before calling Start.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "scheduler")
	}
	return &Scheduler{
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Register adds a cron-triggered job. Call before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Schedule == "" {
		return fmt.Errorf("job %q: scheduled jobs require a cron expression, use RunNow for on-demand jobs", job.Name)
	}
	_, err := s.cron.AddFunc(job.Schedule, func() {
		s.runGuarded(context.Background(), job.Name, job.Run)
	})
	if err != nil {
		return fmt.Errorf("register job %q: %w", job.Name, err)
	}
	return nil
}

// Start begins the cron loop. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()
}

// Stop drains the cron scheduler and waits for in-flight job runs to finish
// (each job is expected to respect ctx cancellation between work units).
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes an on-demand job immediately, subject to the same
// reentrancy guard as scheduled jobs. Used for sensor-driven consolidation.
func (s *Scheduler) RunNow(ctx context.Context, name string, fn JobFunc) {
	s.runGuarded(ctx, name, fn)
}

func (s *Scheduler) runGuarded(ctx context.Context, name string, fn JobFunc) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Debug("job already running, skipping trigger", "job", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()

	start := time.Now()
	s.emit("lifecycle_"+name+"_started", nil)

	counts, err := fn(ctx)

	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	for k, v := range counts {
		fields[k] = v
	}
	status := "completed"
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("job failed", "job", name, "error", err)
		status = "failed"
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSchedulerJob(name, status, time.Since(start).Seconds())
	}
	s.emit("lifecycle_"+name+"_completed", fields)
}

func (s *Scheduler) emit(name string, fields map[string]any) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Info(telemetry.NewTrace(), name, fields)
}
