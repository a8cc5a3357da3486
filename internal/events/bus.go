// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package events publishes entity lifecycle and interaction events to
// synchronous listeners.
package events

import (
	"context"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/pkg/errutil"
)

// Despawn reasons.
const (
	ReasonUnknown   = "unknown"
	ReasonRemoved   = "removed"
	ReasonPermanent = "permanent"
	ReasonClosed    = "closed"
	ReasonShutdown  = "shutdown"
)

// SpawnEvent fires before an entity is announced. Cancelling it aborts
// the spawn.
type SpawnEvent struct {
	Entity    *entity.Entity
	cancelled bool
}

// Cancel vetoes the spawn.
func (e *SpawnEvent) Cancel() { e.cancelled = true }

// Cancelled reports whether a listener vetoed the spawn.
func (e *SpawnEvent) Cancelled() bool { return e.cancelled }

// InteractEvent fires before cooldown and callback handling. Cancelling it
// drops the interaction without recording a cooldown.
type InteractEvent struct {
	Context   context.Context
	Entity    *entity.Entity
	Subject   ulid.ULID
	Type      interaction.Type
	cancelled bool
}

// Cancel vetoes the interaction.
func (e *InteractEvent) Cancel() { e.cancelled = true }

// Cancelled reports whether a listener vetoed the interaction.
func (e *InteractEvent) Cancelled() bool { return e.cancelled }

// DespawnEvent is informational and fires after an entity is removed.
type DespawnEvent struct {
	Entity *entity.Entity
	Reason string
}

type listener[T any] struct {
	match glob.Glob
	fn    func(*T)
}

func (l listener[T]) accepts(k entity.Kind) bool {
	return l.match == nil || l.match.Match(string(k))
}

// Bus dispatches events to listeners in registration order. A listener
// may restrict itself to entity kinds with a glob such as "{zombie,skeleton}".
// Not safe for concurrent use.
type Bus struct {
	logger   *slog.Logger
	spawn    []listener[SpawnEvent]
	interact []listener[InteractEvent]
	despawn  []listener[DespawnEvent]
}

// NewBus creates a bus with no listeners. A nil logger uses slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

func compile(pattern string) (glob.Glob, error) {
	if pattern == "" || pattern == "*" {
		return nil, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.Code(entity.CodeInvalidConfiguration).
			With("pattern", pattern).
			Wrapf(err, "compiling kind filter")
	}
	return g, nil
}

// OnSpawn registers a spawn listener for kinds matching pattern.
func (b *Bus) OnSpawn(pattern string, fn func(*SpawnEvent)) error {
	g, err := compile(pattern)
	if err != nil {
		return err
	}
	b.spawn = append(b.spawn, listener[SpawnEvent]{match: g, fn: fn})
	return nil
}

// OnInteract registers an interaction listener for kinds matching pattern.
func (b *Bus) OnInteract(pattern string, fn func(*InteractEvent)) error {
	g, err := compile(pattern)
	if err != nil {
		return err
	}
	b.interact = append(b.interact, listener[InteractEvent]{match: g, fn: fn})
	return nil
}

// OnDespawn registers a despawn listener for kinds matching pattern.
func (b *Bus) OnDespawn(pattern string, fn func(*DespawnEvent)) error {
	g, err := compile(pattern)
	if err != nil {
		return err
	}
	b.despawn = append(b.despawn, listener[DespawnEvent]{match: g, fn: fn})
	return nil
}

// FireSpawn publishes a spawn event and reports whether it may proceed.
func (b *Bus) FireSpawn(e *entity.Entity) bool {
	ev := &SpawnEvent{Entity: e}
	notify(b, b.spawn, e.Kind(), ev, "spawn")
	return !ev.cancelled
}

// AllowInteract implements interaction.Interceptor.
func (b *Bus) AllowInteract(ctx context.Context, e *entity.Entity, subject ulid.ULID, typ interaction.Type) bool {
	ev := &InteractEvent{Context: ctx, Entity: e, Subject: subject, Type: typ}
	notify(b, b.interact, e.Kind(), ev, "interact")
	return !ev.cancelled
}

// FireDespawn publishes a despawn event. An empty reason becomes "unknown".
func (b *Bus) FireDespawn(e *entity.Entity, reason string) {
	if reason == "" {
		reason = ReasonUnknown
	}
	notify(b, b.despawn, e.Kind(), &DespawnEvent{Entity: e, Reason: reason}, "despawn")
}

func notify[T any](b *Bus, ls []listener[T], kind entity.Kind, ev *T, name string) {
	for _, l := range ls {
		if !l.accepts(kind) {
			continue
		}
		func() {
			defer errutil.Recover(b.logger, "event listener panicked", "event", name)
			l.fn(ev)
		}()
	}
}
