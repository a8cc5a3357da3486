// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package tick

// Lazy holds an optional repeating task that is started on demand and
// cancelled when its owner runs out of work.
type Lazy struct {
	sched  Scheduler
	name   string
	period uint64
	fn     func()
	handle *Handle
}

// NewLazy creates a stopped lazy task.
func NewLazy(sched Scheduler, name string, period uint64, fn func()) *Lazy {
	return &Lazy{sched: sched, name: name, period: period, fn: fn}
}

// Ensure schedules the task if it is not already running.
func (l *Lazy) Ensure() {
	if l.handle.Active() {
		return
	}
	l.handle = l.sched.ScheduleRepeating(l.name, l.period, l.fn)
}

// Stop cancels the task if it is running.
func (l *Lazy) Stop() {
	l.handle.Cancel()
	l.handle = nil
}

// Running reports whether the task is scheduled.
func (l *Lazy) Running() bool {
	return l.handle.Active()
}
