// Package sched runs the named periodic tasks that make up the pipeline.
//
// Each task is a fixed-period tick function on its own goroutine. A tick
// returning an error is logged and counted but does not stop the task;
// the daemon keeps acquiring data through transient faults. Shutdown is
// graceful with a drain timeout.
package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openpony/ponylog/config"
	"github.com/openpony/ponylog/internal/logging"
)

var log = logging.Component("sched")

// =============================================================================
// Types
// =============================================================================

// TaskFunc executes one tick of a task.
type TaskFunc func(ctx context.Context) error

// Task is a named fixed-period unit of work.
type Task struct {
	Name   string
	Period time.Duration
	Fn     TaskFunc
}

// TaskStats holds per-task counters.
type TaskStats struct {
	Name      string
	Period    time.Duration
	Runs      int64
	Errors    int64
	Overruns  int64
	LastError string
	LastRun   time.Time
}

type taskState struct {
	task Task

	runs     atomic.Int64
	errors   atomic.Int64
	overruns atomic.Int64

	mu        sync.Mutex
	lastError string
	lastRun   time.Time
}

// =============================================================================
// Runner
// =============================================================================

// Runner owns the task goroutines.
//
// Runner is safe for concurrent use. Start may be called once.
type Runner struct {
	mu      sync.Mutex
	tasks   []*taskState
	started bool

	cancel       context.CancelFunc
	group        *errgroup.Group
	drainTimeout time.Duration

	activeTasks atomic.Int32
}

// NewRunner creates an empty runner. drainTimeout zero uses the default.
func NewRunner(drainTimeout time.Duration) *Runner {
	if drainTimeout <= 0 {
		drainTimeout = config.DefaultDrainTimeout
	}
	return &Runner{drainTimeout: drainTimeout}
}

// Register adds a task. Must be called before Start.
func (r *Runner) Register(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task has no name")
	}
	if task.Period <= 0 {
		return fmt.Errorf("task %s: period must be positive, got %v", task.Name, task.Period)
	}
	if task.Fn == nil {
		return fmt.Errorf("task %s: nil tick function", task.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	for _, t := range r.tasks {
		if t.task.Name == task.Name {
			return fmt.Errorf("duplicate task name %s", task.Name)
		}
	}

	r.tasks = append(r.tasks, &taskState{task: task})
	return nil
}

// Start launches every registered task.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	if len(r.tasks) == 0 {
		return fmt.Errorf("no tasks registered")
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.group, ctx = errgroup.WithContext(ctx)

	for _, ts := range r.tasks {
		ts := ts
		r.group.Go(func() error {
			return r.run(ctx, ts)
		})
	}

	log.Info("runner started", "tasks", len(r.tasks))
	return nil
}

// Stop cancels all tasks and waits for them to drain. Uses the configured
// drain timeout.
func (r *Runner) Stop() {
	r.StopWithContext(context.Background())
}

// StopWithContext stops the runner with a custom context. The drain
// timeout is still respected as a maximum.
func (r *Runner) StopWithContext(ctx context.Context) {
	r.mu.Lock()
	if !r.started || r.cancel == nil {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	group := r.group
	r.mu.Unlock()

	log.Info("runner stopping")
	cancel()

	drainCtx, drainCancel := context.WithTimeout(ctx, r.drainTimeout)
	defer drainCancel()

	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("runner stopped gracefully")
	case <-drainCtx.Done():
		log.Warn("runner drain timeout", "active_tasks", r.activeTasks.Load())
	}
}

// =============================================================================
// Task Loop
// =============================================================================

func (r *Runner) run(ctx context.Context, ts *taskState) error {
	log.Debug("task started", "task", ts.task.Name, "period", ts.task.Period)

	// The task name travels in the context so anything logging through
	// logging.WithContext below the tick carries it as an attribute.
	ctx = logging.ContextWithTask(ctx, ts.task.Name)

	ticker := time.NewTicker(ts.task.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx, ts)
		case <-ctx.Done():
			log.Debug("task stopped", "task", ts.task.Name, "runs", ts.runs.Load())
			return nil
		}
	}
}

func (r *Runner) tick(ctx context.Context, ts *taskState) {
	r.activeTasks.Add(1)
	defer r.activeTasks.Add(-1)

	defer func() {
		if rec := recover(); rec != nil {
			ts.errors.Add(1)
			ts.mu.Lock()
			ts.lastError = fmt.Sprintf("panic: %v", rec)
			ts.mu.Unlock()
			logging.WithContext(ctx).Error("panic in task tick", "panic", rec)
		}
	}()

	start := time.Now()
	err := ts.task.Fn(ctx)
	elapsed := time.Since(start)

	ts.runs.Add(1)
	ts.mu.Lock()
	ts.lastRun = start
	if err != nil {
		ts.lastError = err.Error()
	}
	ts.mu.Unlock()

	if err != nil {
		ts.errors.Add(1)
		logging.WithContext(ctx).Error("task tick failed", "error", err)
	}

	if elapsed > ts.task.Period {
		ts.overruns.Add(1)
		logging.WithContext(ctx).Warn("task tick overran its period",
			"period", ts.task.Period,
			"elapsed", elapsed)
	}
}

// =============================================================================
// Stats
// =============================================================================

// Stats returns a snapshot of every task's counters.
func (r *Runner) Stats() []TaskStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]TaskStats, 0, len(r.tasks))
	for _, ts := range r.tasks {
		ts.mu.Lock()
		stats = append(stats, TaskStats{
			Name:      ts.task.Name,
			Period:    ts.task.Period,
			Runs:      ts.runs.Load(),
			Errors:    ts.errors.Load(),
			Overruns:  ts.overruns.Load(),
			LastError: ts.lastError,
			LastRun:   ts.lastRun,
		})
		ts.mu.Unlock()
	}
	return stats
}
