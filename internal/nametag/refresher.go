// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package nametag

import (
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/pkg/errutil"
)

// DefaultPeriod is the refresh period in ticks.
const DefaultPeriod = 20

// NametagRefreshes counts nametag pushes.
// Use RegisterMetrics to register this with a Prometheus registry.
var NametagRefreshes = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "npcforge_nametag_refreshes_total",
		Help: "Total number of dynamic nametag refreshes",
	},
)

// RegisterMetrics registers nametag package metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(NametagRefreshes)
}

// Display shows rendered text above an entity.
type Display interface {
	ShowNameTag(e *entity.Entity, text string)
}

// Host is what the refresher needs from the simulation.
type Host interface {
	Display
	Population
}

// Refresher re-renders registered bindings every period ticks while it has
// any. Not safe for concurrent use.
type Refresher struct {
	lookup   entity.Lookup
	host     Host
	now      func() time.Time
	logger   *slog.Logger
	period   uint64
	task     *tick.Lazy
	bindings map[entity.ID]*Binding
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock replaces time.Now for the {time} and {date} variables.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

// WithPeriod sets the refresh period in ticks.
func WithPeriod(ticks uint64) Option {
	return func(r *Refresher) { r.period = ticks }
}

// NewRefresher creates an idle refresher.
func NewRefresher(lookup entity.Lookup, host Host, sched tick.Scheduler, opts ...Option) *Refresher {
	r := &Refresher{
		lookup:   lookup,
		host:     host,
		now:      time.Now,
		logger:   slog.Default(),
		period:   DefaultPeriod,
		bindings: make(map[entity.ID]*Binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.task = tick.NewLazy(sched, "nametags", r.period, r.Tick)
	return r
}

// Register binds id to b, replacing any previous binding.
func (r *Refresher) Register(id entity.ID, b *Binding) {
	if old, ok := r.bindings[id]; ok && old != b {
		r.release(id, old)
	}
	r.bindings[id] = b
	r.task.Ensure()
}

// Unregister drops the binding of id. Unknown ids are ignored.
func (r *Refresher) Unregister(id entity.ID) {
	b, ok := r.bindings[id]
	if !ok {
		return
	}
	delete(r.bindings, id)
	r.release(id, b)
	if len(r.bindings) == 0 {
		r.task.Stop()
	}
}

// Binding returns the binding of id.
func (r *Refresher) Binding(id entity.ID) (*Binding, bool) {
	b, ok := r.bindings[id]
	return b, ok
}

// Has reports whether id has a binding.
func (r *Refresher) Has(id entity.ID) bool {
	_, ok := r.bindings[id]
	return ok
}

// Count returns the number of bindings.
func (r *Refresher) Count() int { return len(r.bindings) }

// Running reports whether the refresh task is scheduled.
func (r *Refresher) Running() bool { return r.task.Running() }

// Refresh renders and pushes the nametag of one entity immediately.
func (r *Refresher) Refresh(id entity.ID) bool {
	b, ok := r.bindings[id]
	if !ok {
		return false
	}
	e, ok := r.lookup.Get(id)
	if !ok || e.Gone() {
		r.Unregister(id)
		return false
	}
	r.push(e, b, r.now())
	return true
}

// Tick refreshes every binding. Bindings of gone entities are dropped.
func (r *Refresher) Tick() {
	now := r.now()
	for _, id := range slices.Sorted(maps.Keys(r.bindings)) {
		b, ok := r.bindings[id]
		if !ok {
			continue
		}
		e, ok := r.lookup.Get(id)
		if !ok || e.Gone() {
			r.Unregister(id)
			continue
		}
		r.push(e, b, now)
	}
}

func (r *Refresher) push(e *entity.Entity, b *Binding, now time.Time) {
	defer errutil.Recover(r.logger, "nametag refresh failed", "entity_id", int64(e.ID()))
	r.host.ShowNameTag(e, b.Render(e, r.host, now))
	NametagRefreshes.Inc()
}

func (r *Refresher) release(id entity.ID, b *Binding) {
	c, ok := b.Transformer().(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		errutil.LogError(r.logger, "closing nametag transformer", err, "entity_id", int64(id))
	}
}
