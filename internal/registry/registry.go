// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package registry owns the live entity set and keeps the effect,
// interaction and nametag schedulers consistent with it.
package registry

import (
	"context"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/npcforge/npcforge/internal/effect"
	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/events"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/nametag"
	"github.com/npcforge/npcforge/internal/storage"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/internal/world"
	"github.com/npcforge/npcforge/pkg/errutil"
)

// BehaviourPeriod is how often, in ticks, look-at and immobility run.
const BehaviourPeriod = 5

// Deps are the collaborators a Registry coordinates.
type Deps struct {
	Directory    *entity.Directory
	Host         world.Host
	Scheduler    tick.Scheduler
	Effects      *effect.Scheduler
	Interactions *interaction.Dispatcher
	Nametags     *nametag.Refresher
	Bus          *events.Bus
	// Store is optional; without it persistence calls report failure.
	Store  storage.Store
	Logger *slog.Logger
}

func (d Deps) validate() error {
	missing := func(name string) error {
		return oops.Code(entity.CodeInvalidConfiguration).With("dependency", name).Errorf("registry requires %s", name)
	}
	switch {
	case d.Directory == nil:
		return missing("directory")
	case d.Host == nil:
		return missing("host")
	case d.Scheduler == nil:
		return missing("scheduler")
	case d.Effects == nil:
		return missing("effect scheduler")
	case d.Interactions == nil:
		return missing("interaction dispatcher")
	case d.Nametags == nil:
		return missing("nametag refresher")
	case d.Bus == nil:
		return missing("event bus")
	}
	return nil
}

// Registry creates, tracks and removes entities. Not safe for concurrent
// use; call it from the tick goroutine.
type Registry struct {
	dir          *entity.Directory
	host         world.Host
	effects      *effect.Scheduler
	interactions *interaction.Dispatcher
	nametags     *nametag.Refresher
	bus          *events.Bus
	store        storage.Store
	logger       *slog.Logger
	behaviour    *tick.Lazy
}

// New creates a registry over deps.
func New(deps Deps) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := &Registry{
		dir:          deps.Directory,
		host:         deps.Host,
		effects:      deps.Effects,
		interactions: deps.Interactions,
		nametags:     deps.Nametags,
		bus:          deps.Bus,
		store:        deps.Store,
		logger:       deps.Logger,
	}
	r.behaviour = tick.NewLazy(deps.Scheduler, "behaviour", BehaviourPeriod, r.applyBehaviours)
	return r, nil
}

// Create validates cfg, spawns the entity and registers it with every
// scheduler it asks for.
func (r *Registry) Create(ctx context.Context, cfg Config) (*entity.Entity, error) {
	if err := cfg.Validate(); err != nil {
		SpawnFailures.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if _, ok := r.host.World(cfg.World); !ok {
		SpawnFailures.WithLabelValues("invalid").Inc()
		return nil, entity.ErrInvalidConfiguration("world", "world "+cfg.World+" is not loaded")
	}
	return r.spawn(ctx, r.dir.NextID(), cfg)
}

func (r *Registry) spawn(ctx context.Context, id entity.ID, cfg Config) (*entity.Entity, error) {
	e, err := entity.New(id, cfg.Config)
	if err != nil {
		SpawnFailures.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if !r.bus.FireSpawn(e) {
		r.abandon(e)
		SpawnFailures.WithLabelValues("cancelled").Inc()
		return nil, oops.Code(CodeSpawnCancelled).
			With("entity_id", int64(id)).
			With("type", string(e.Kind())).
			Errorf("spawn of %s cancelled by listener", e.Kind())
	}
	if err := r.host.Announce(e); err != nil {
		r.abandon(e)
		SpawnFailures.WithLabelValues("announce").Inc()
		return nil, oops.Code(CodeAnnounceFailed).
			With("entity_id", int64(id)).
			Wrapf(err, "announcing entity")
	}

	if err := e.Transition(entity.StateActive); err != nil {
		return nil, err
	}
	r.dir.Put(e)
	EntitiesActive.Set(float64(r.dir.Len()))

	if err := r.attach(e, cfg); err != nil {
		r.Remove(ctx, id, false)
		return nil, err
	}
	r.behaviour.Ensure()
	EntitiesSpawned.WithLabelValues(string(e.Kind())).Inc()
	r.logger.DebugContext(ctx, "entity spawned",
		"entity_id", int64(id),
		"type", string(e.Kind()),
		"world", e.World())

	if cfg.Persistent {
		r.Save(ctx, id)
	}
	return e, nil
}

// abandon retires an entity that never became active. Its id stays burned.
func (r *Registry) abandon(e *entity.Entity) {
	if err := e.Transition(entity.StateRemoved); err != nil {
		errutil.LogError(r.logger, "retiring abandoned entity", err)
	}
}

func (r *Registry) attach(e *entity.Entity, cfg Config) error {
	id := e.ID()
	if cfg.OnInteract != nil {
		var err error
		if cfg.InteractCooldown != nil {
			err = r.interactions.RegisterWithCooldown(id, cfg.OnInteract, *cfg.InteractCooldown)
		} else {
			err = r.interactions.Register(id, cfg.OnInteract)
		}
		if err != nil {
			return err
		}
	}
	for _, p := range cfg.Particles {
		if err := r.effects.AddParticle(id, p.Spec, p.Interval); err != nil {
			return err
		}
	}
	if cfg.Nametag != nil {
		r.nametags.Register(id, cfg.Nametag)
		r.nametags.Refresh(id)
	}
	return nil
}

// Get returns the live entity with id.
func (r *Registry) Get(id entity.ID) (*entity.Entity, bool) {
	return r.dir.Get(id)
}

// All returns the live entities ordered by id.
func (r *Registry) All() []*entity.Entity {
	ids := r.dir.IDs()
	out := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.dir.Get(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of live entities.
func (r *Registry) Count() int { return r.dir.Len() }

// Remove despawns id and unregisters it everywhere. Permanent removal
// also deletes the stored record. Unknown ids return false.
func (r *Registry) Remove(ctx context.Context, id entity.ID, permanent bool) bool {
	reason := events.ReasonRemoved
	if permanent {
		reason = events.ReasonPermanent
	}
	return r.remove(ctx, id, permanent, reason)
}

// MarkClosed handles the host dropping an entity on its own. The entity
// is not despawned again.
func (r *Registry) MarkClosed(ctx context.Context, id entity.ID) bool {
	e, ok := r.dir.Get(id)
	if !ok {
		return false
	}
	e.Close()
	return r.remove(ctx, id, false, events.ReasonClosed)
}

func (r *Registry) remove(ctx context.Context, id entity.ID, permanent bool, reason string) bool {
	e, ok := r.dir.Get(id)
	if !ok {
		return false
	}
	if err := e.Transition(entity.StateDespawning); err != nil {
		errutil.LogError(r.logger, "despawning entity", err)
	}
	if !e.Closed() {
		r.host.Despawn(e)
	}

	r.effects.Remove(id)
	r.interactions.Unregister(id)
	r.nametags.Unregister(id)

	if permanent {
		r.deleteRecord(ctx, id)
	}

	r.dir.Delete(id)
	if err := e.Transition(entity.StateRemoved); err != nil {
		errutil.LogError(r.logger, "removing entity", err)
	}
	EntitiesActive.Set(float64(r.dir.Len()))
	if r.dir.Len() == 0 {
		r.behaviour.Stop()
	}

	r.bus.FireDespawn(e, reason)
	r.logger.DebugContext(ctx, "entity removed",
		"entity_id", int64(id),
		"reason", reason)
	return true
}

// RemoveAll removes every live entity and returns how many were removed.
func (r *Registry) RemoveAll(ctx context.Context, permanent bool) int {
	reason := events.ReasonRemoved
	if permanent {
		reason = events.ReasonPermanent
	}
	return r.removeAll(ctx, permanent, reason)
}

// Shutdown removes every live entity with the shutdown reason, keeping
// stored records.
func (r *Registry) Shutdown(ctx context.Context) int {
	return r.removeAll(ctx, false, events.ReasonShutdown)
}

func (r *Registry) removeAll(ctx context.Context, permanent bool, reason string) int {
	n := 0
	for _, id := range r.dir.IDs() {
		if r.remove(ctx, id, permanent, reason) {
			n++
		}
	}
	return n
}

func (r *Registry) deleteRecord(ctx context.Context, id entity.ID) {
	if r.store == nil {
		return
	}
	if _, err := r.store.Delete(ctx, int64(id)); err != nil {
		PersistenceFailures.WithLabelValues("delete").Inc()
		errutil.LogError(r.logger, "deleting entity record", err, "entity_id", int64(id))
	}
}

// Save persists one live entity and reports success.
func (r *Registry) Save(ctx context.Context, id entity.ID) bool {
	if r.store == nil {
		return false
	}
	e, ok := r.dir.Get(id)
	if !ok {
		return false
	}
	if err := r.store.Save(ctx, storage.FromEntity(e)); err != nil {
		PersistenceFailures.WithLabelValues("save").Inc()
		errutil.LogError(r.logger, "saving entity", err, "entity_id", int64(id))
		return false
	}
	return true
}

// SaveAll persists every live entity and returns how many were saved.
func (r *Registry) SaveAll(ctx context.Context) int {
	n := 0
	for _, id := range r.dir.IDs() {
		if r.Save(ctx, id) {
			n++
		}
	}
	return n
}

// Delete removes a stored record without touching live entities.
func (r *Registry) Delete(ctx context.Context, id entity.ID) bool {
	if r.store == nil {
		return false
	}
	existed, err := r.store.Delete(ctx, int64(id))
	if err != nil {
		PersistenceFailures.WithLabelValues("delete").Inc()
		errutil.LogError(r.logger, "deleting entity record", err, "entity_id", int64(id))
		return false
	}
	return existed
}

// LoadAll restores stored entities under their stored ids and returns
// how many were spawned. Records for live ids or unloaded worlds are
// skipped.
func (r *Registry) LoadAll(ctx context.Context) int {
	if r.store == nil {
		return 0
	}
	recs, err := r.store.LoadAll(ctx)
	if err != nil {
		PersistenceFailures.WithLabelValues("load").Inc()
		errutil.LogError(r.logger, "loading entities", err)
		return 0
	}

	n := 0
	for _, rec := range recs {
		id := entity.ID(rec.ID)
		r.dir.Reserve(id)
		if _, live := r.dir.Get(id); live {
			r.logger.WarnContext(ctx, "skipping stored entity with live id", "entity_id", rec.ID)
			continue
		}
		cfg, err := rec.Config()
		if err != nil {
			errutil.LogError(r.logger, "skipping unreadable stored entity", err, "entity_id", rec.ID)
			continue
		}
		if _, ok := r.host.World(cfg.World); !ok {
			r.logger.WarnContext(ctx, "skipping stored entity in unloaded world",
				"entity_id", rec.ID,
				"world", cfg.World)
			continue
		}
		if _, err := r.spawn(ctx, id, Config{Config: cfg}); err != nil {
			errutil.LogError(r.logger, "restoring stored entity", err, "entity_id", rec.ID)
			continue
		}
		n++
	}
	r.logger.InfoContext(ctx, "entities restored", "count", n, "stored", len(recs))
	return n
}

func (r *Registry) applyBehaviours() {
	for _, id := range r.dir.IDs() {
		e, ok := r.dir.Get(id)
		if !ok || e.Gone() {
			continue
		}
		var players []mgl64.Vec3
		if w, ok := r.host.World(e.World()); ok {
			players = world.PlayerPositions(w)
		}
		e.ApplyBehaviours(players)
	}
}
