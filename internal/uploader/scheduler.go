// Package uploader moves staged files to object storage. A Scheduler drains a
// fixed queue of tasks with a bounded number of workers; an Uploader supplies
// the task body for each staged file.
package uploader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/italolelis/batch_archiver/internal/logctx"
)

// Task is one unit of work. Run reports the outcome through its error only.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats is the final tally of a scheduler run. Success+Failed is the number of
// tasks that were dispatched; Pending tasks were never started.
type Stats struct {
	Success int
	Failed  int
	Pending int
}

// Snapshot is a point-in-time view of a running scheduler.
type Snapshot struct {
	Queued  int `json:"queued"`
	Active  int `json:"active"`
	Peak    int `json:"peak"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Scheduler runs a fixed list of tasks with at most limit in flight. Each
// worker waits delay between its own successive dispatches; the workers start
// together, so the stagger never lowers the concurrency ceiling.
type Scheduler struct {
	limit int
	delay time.Duration

	mu    sync.Mutex
	queue []Task

	active  atomic.Int64
	peak    atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
}

// NewScheduler builds a scheduler over tasks. The queue is filled once and
// never grows. A limit below one is treated as one.
func NewScheduler(limit int, delay time.Duration, tasks []Task) *Scheduler {
	if limit < 1 {
		limit = 1
	}

	queue := make([]Task, len(tasks))
	copy(queue, tasks)

	return &Scheduler{
		limit: limit,
		delay: delay,
		queue: queue,
	}
}

// Run starts the workers and blocks until all of them have exited, which
// happens once the queue is empty or ctx is cancelled. Tasks still queued at
// that point are reported as pending.
func (s *Scheduler) Run(ctx context.Context) Stats {
	logger := logctx.LoggerFromContext(ctx)

	workers := min(s.limit, s.queued())

	logger.Info("starting upload workers", "workers", workers, "queued", s.queued(), "dispatch_delay", s.delay.String())

	var g errgroup.Group

	for i := range workers {
		g.Go(func() error {
			s.work(ctx, i)

			return nil
		})
	}

	_ = g.Wait()

	stats := Stats{
		Success: int(s.success.Load()),
		Failed:  int(s.failed.Load()),
		Pending: s.queued(),
	}

	logger.Info("upload workers finished",
		"success", stats.Success,
		"failed", stats.Failed,
		"pending", stats.Pending,
		"peak_active", s.peak.Load(),
	)

	return stats
}

// Snapshot can be called concurrently with Run.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Queued:  s.queued(),
		Active:  int(s.active.Load()),
		Peak:    int(s.peak.Load()),
		Success: int(s.success.Load()),
		Failed:  int(s.failed.Load()),
	}
}

func (s *Scheduler) work(ctx context.Context, worker int) {
	logger := logctx.LoggerFromContext(ctx).With("worker", worker)

	for dispatched := 0; ; dispatched++ {
		if ctx.Err() != nil {
			logger.Debug("worker stopping", "reason", ctx.Err())

			return
		}

		task, ok := s.pop()
		if !ok {
			return
		}

		if dispatched > 0 {
			if err := s.stagger(ctx); err != nil {
				s.pushFront(task)

				return
			}
		}

		s.execute(ctx, task)
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	active := s.active.Add(1)
	defer s.active.Add(-1)

	for {
		peak := s.peak.Load()
		if active <= peak || s.peak.CompareAndSwap(peak, active) {
			break
		}
	}

	if err := s.runTask(ctx, task); err != nil {
		s.failed.Add(1)

		return
	}

	s.success.Add(1)
}

func (s *Scheduler) runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logctx.LoggerFromContext(ctx).Error("upload task panicked", "task", task.Name, "panic", r)

			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	return task.Run(ctx)
}

// stagger pauses a worker between two of its own dispatches.
func (s *Scheduler) stagger(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) pop() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Task{}, false
	}

	task := s.queue[0]
	s.queue = s.queue[1:]

	return task, true
}

func (s *Scheduler) pushFront(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append([]Task{task}, s.queue...)
}

func (s *Scheduler) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}
