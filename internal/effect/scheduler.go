// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package effect

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/pkg/errutil"
)

// DefaultInterval is the firing interval used when none is configured.
const DefaultInterval = 20

// phaseCycle is the number of ticks one pattern rotation takes.
const phaseCycle = 20

// Subscription is one periodic effect attached to an entity.
type Subscription struct {
	Spec      Spec
	Interval  uint64
	LastFired uint64
}

// Scheduler fires particle effects for subscribed entities. It counts its
// own ticks and only holds a tick task while it has subscriptions.
// Not safe for concurrent use.
type Scheduler struct {
	lookup   entity.Lookup
	renderer Renderer
	logger   *slog.Logger
	task     *tick.Lazy
	tick     uint64
	subs     map[entity.ID][]*Subscription
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates an idle scheduler.
func NewScheduler(lookup entity.Lookup, renderer Renderer, sched tick.Scheduler, opts ...Option) *Scheduler {
	s := &Scheduler{
		lookup:   lookup,
		renderer: renderer,
		logger:   slog.Default(),
		subs:     make(map[entity.ID][]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.task = tick.NewLazy(sched, "effects", 1, s.Tick)
	return s
}

// AddParticle subscribes id to spec, firing every interval ticks starting
// interval ticks from now. Intervals below one are raised to one.
func (s *Scheduler) AddParticle(id entity.ID, spec Spec, interval int) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	s.subs[id] = append(s.subs[id], &Subscription{
		Spec:      spec.Normalize(),
		Interval:  uint64(max(interval, 1)),
		LastFired: s.tick,
	})
	EffectSubscriptions.Inc()
	s.task.Ensure()
	return nil
}

// Remove drops every subscription of id.
func (s *Scheduler) Remove(id entity.ID) {
	subs, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	EffectSubscriptions.Sub(float64(len(subs)))
	s.stopIfIdle()
}

// RemoveOne drops the subscription at index and reports whether it existed.
func (s *Scheduler) RemoveOne(id entity.ID, index int) bool {
	subs := s.subs[id]
	if index < 0 || index >= len(subs) {
		return false
	}
	subs = slices.Delete(subs, index, index+1)
	if len(subs) == 0 {
		delete(s.subs, id)
	} else {
		s.subs[id] = subs
	}
	EffectSubscriptions.Dec()
	s.stopIfIdle()
	return true
}

// ClearAll drops every subscription.
func (s *Scheduler) ClearAll() {
	EffectSubscriptions.Sub(float64(s.Count()))
	clear(s.subs)
	s.stopIfIdle()
}

// Has reports whether id has any subscription.
func (s *Scheduler) Has(id entity.ID) bool {
	return len(s.subs[id]) > 0
}

// Subscriptions returns a copy of the subscriptions of id.
func (s *Scheduler) Subscriptions(id entity.ID) []Subscription {
	out := make([]Subscription, 0, len(s.subs[id]))
	for _, sub := range s.subs[id] {
		out = append(out, *sub)
	}
	return out
}

// Count returns the total number of subscriptions.
func (s *Scheduler) Count() int {
	n := 0
	for _, subs := range s.subs {
		n += len(subs)
	}
	return n
}

// EntityCount returns how many entities have subscriptions.
func (s *Scheduler) EntityCount() int { return len(s.subs) }

// TickCount returns the scheduler's own tick counter.
func (s *Scheduler) TickCount() uint64 { return s.tick }

// Running reports whether the tick task is scheduled.
func (s *Scheduler) Running() bool { return s.task.Running() }

// Tick advances the counter and fires every due subscription once.
// Entities that have gone away are dropped.
func (s *Scheduler) Tick() {
	s.tick++
	phase := float64(s.tick%phaseCycle) / phaseCycle

	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		subs, ok := s.subs[id]
		if !ok {
			// removed earlier this tick
			continue
		}
		e, ok := s.lookup.Get(id)
		if !ok || e.Gone() {
			s.Remove(id)
			continue
		}
		for _, sub := range slices.Clone(subs) {
			if s.tick-sub.LastFired < sub.Interval {
				continue
			}
			sub.LastFired = s.tick
			s.fire(e, sub.Spec, phase)
			if _, still := s.subs[id]; !still {
				break
			}
		}
	}
	s.stopIfIdle()
}

func (s *Scheduler) fire(e *entity.Entity, spec Spec, phase float64) {
	defer errutil.Recover(s.logger, "particle effect failed",
		"entity_id", int64(e.ID()), "particle", string(spec.Type))
	s.renderer.Render(e, spec, phase)
	EffectFirings.WithLabelValues(string(spec.Type)).Inc()
}

func (s *Scheduler) stopIfIdle() {
	if len(s.subs) == 0 {
		s.task.Stop()
	}
}
