// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package tick drives the single-threaded simulation clock the runtime
// schedules its periodic work on.
package tick

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/npcforge/npcforge/pkg/errutil"
)

// Scheduler registers repeating work on the tick goroutine.
type Scheduler interface {
	// ScheduleRepeating runs fn every period ticks, first after period ticks.
	ScheduleRepeating(name string, period uint64, fn func()) *Handle
}

// Handle cancels a scheduled task.
type Handle struct {
	loop *Loop
	id   uint64
}

// Cancel stops the task. Cancelling twice is a no-op.
func (h *Handle) Cancel() {
	if h == nil || h.loop == nil {
		return
	}
	h.loop.cancel(h.id)
	h.loop = nil
}

// Active reports whether the task is still scheduled.
func (h *Handle) Active() bool {
	return h != nil && h.loop != nil
}

type task struct {
	id     uint64
	name   string
	period uint64
	start  uint64
	fn     func()
}

// Loop is the host tick source. Step and the scheduling methods must be
// called from a single goroutine; Submit may be called from anywhere.
type Loop struct {
	logger  *slog.Logger
	observe func(elapsed time.Duration)
	tick    uint64
	nextID  uint64
	tasks   map[uint64]*task

	mu      sync.Mutex
	pending []func()
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithStepObserver calls fn with the wall time of every step taken by Run.
func WithStepObserver(fn func(elapsed time.Duration)) Option {
	return func(lp *Loop) { lp.observe = fn }
}

// NewLoop creates a stopped loop at tick zero.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		tasks:  make(map[uint64]*task),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ScheduleRepeating implements Scheduler. A zero period is treated as one.
func (l *Loop) ScheduleRepeating(name string, period uint64, fn func()) *Handle {
	if period == 0 {
		period = 1
	}
	l.nextID++
	l.tasks[l.nextID] = &task{id: l.nextID, name: name, period: period, start: l.tick, fn: fn}
	return &Handle{loop: l, id: l.nextID}
}

func (l *Loop) cancel(id uint64) {
	delete(l.tasks, id)
}

// Current returns the number of ticks stepped so far.
func (l *Loop) Current() uint64 { return l.tick }

// TaskCount returns the number of scheduled tasks.
func (l *Loop) TaskCount() int { return len(l.tasks) }

// Submit queues fn to run on the tick goroutine at the start of the next
// step. It is safe for concurrent use.
func (l *Loop) Submit(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// Step advances the clock by one tick: queued submissions run first,
// then every due task in scheduling order.
func (l *Loop) Step() {
	l.mu.Lock()
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, fn := range queued {
		l.run("submitted", fn)
	}

	l.tick++
	ids := make([]uint64, 0, len(l.tasks))
	for id := range l.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		t, ok := l.tasks[id]
		if !ok {
			// cancelled by an earlier task this tick
			continue
		}
		if (l.tick-t.start)%t.period == 0 {
			l.run(t.name, t.fn)
		}
	}
}

func (l *Loop) run(name string, fn func()) {
	defer errutil.Recover(l.logger, "tick task panicked", "task", name)
	fn()
}

// Run steps the loop every interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return oops.Code("TICK_INTERVAL_INVALID").
			With("interval", interval.String()).
			Errorf("tick interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			l.Step()
			if l.observe != nil {
				l.observe(time.Since(start))
			}
		}
	}
}
