// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package runtime wires the registry, schedulers and event bus into one
// context owned by the host process.
package runtime

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/npcforge/npcforge/internal/effect"
	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/events"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/nametag"
	"github.com/npcforge/npcforge/internal/registry"
	"github.com/npcforge/npcforge/internal/storage"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/internal/world"
)

// Options configures a Runtime. Host and Scheduler are required.
type Options struct {
	Host      world.Host
	Scheduler tick.Scheduler
	// Store is optional; without it persistence is disabled.
	Store  storage.Store
	Logger *slog.Logger

	// InteractCooldown is the default per-player cooldown.
	InteractCooldown time.Duration
	// CooldownSweepTicks is the period of the expired cooldown sweep.
	CooldownSweepTicks uint64
	// NametagPeriod is the nametag refresh period in ticks.
	NametagPeriod uint64

	// Clock and Rand are overridable for tests.
	Clock func() time.Time
	Rand  *rand.Rand
}

// Runtime is the single context holding every entity subsystem.
type Runtime struct {
	dir          *entity.Directory
	registry     *registry.Registry
	effects      *effect.Scheduler
	interactions *interaction.Dispatcher
	nametags     *nametag.Refresher
	bus          *events.Bus
	logger       *slog.Logger
	initialized  bool
}

// New builds a runtime. Nothing is loaded until Init.
func New(opts Options) (*Runtime, error) {
	if opts.Host == nil || opts.Scheduler == nil {
		return nil, oops.Code(entity.CodeInvalidConfiguration).Errorf("runtime requires a host and a scheduler")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.InteractCooldown == 0 {
		opts.InteractCooldown = interaction.DefaultCooldown
	}
	if opts.CooldownSweepTicks == 0 {
		opts.CooldownSweepTicks = interaction.DefaultSweepPeriod
	}
	if opts.NametagPeriod == 0 {
		opts.NametagPeriod = nametag.DefaultPeriod
	}

	dir := entity.NewDirectory()
	bus := events.NewBus(opts.Logger)
	rt := &Runtime{
		dir:    dir,
		bus:    bus,
		logger: opts.Logger,
		effects: effect.NewScheduler(dir,
			effect.NewPatternRenderer(opts.Host, opts.Rand),
			opts.Scheduler,
			effect.WithLogger(opts.Logger)),
		interactions: interaction.NewDispatcher(dir, opts.Scheduler,
			interaction.WithDefaultCooldown(opts.InteractCooldown),
			interaction.WithTracker(interaction.NewCooldownTracker(opts.Clock)),
			interaction.WithSweepPeriod(opts.CooldownSweepTicks),
			interaction.WithInterceptor(bus),
			interaction.WithLogger(opts.Logger)),
		nametags: nametag.NewRefresher(dir, opts.Host, opts.Scheduler,
			nametag.WithClock(opts.Clock),
			nametag.WithPeriod(opts.NametagPeriod),
			nametag.WithLogger(opts.Logger)),
	}

	reg, err := registry.New(registry.Deps{
		Directory:    dir,
		Host:         opts.Host,
		Scheduler:    opts.Scheduler,
		Effects:      rt.effects,
		Interactions: rt.interactions,
		Nametags:     rt.nametags,
		Bus:          bus,
		Store:        opts.Store,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	rt.registry = reg
	return rt, nil
}

// RegisterMetrics registers every entity subsystem metric with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	registry.RegisterMetrics(reg)
	effect.RegisterMetrics(reg)
	interaction.RegisterMetrics(reg)
	nametag.RegisterMetrics(reg)
}

// Init marks the runtime ready and, when autoLoad is set, restores stored
// entities. It returns the number restored. Only the first call has any
// effect.
func (rt *Runtime) Init(ctx context.Context, autoLoad bool) int {
	if rt.initialized {
		rt.logger.WarnContext(ctx, "runtime already initialized, ignoring")
		return 0
	}
	rt.initialized = true
	if !autoLoad {
		return 0
	}
	return rt.registry.LoadAll(ctx)
}

// Initialized reports whether Init has run.
func (rt *Runtime) Initialized() bool { return rt.initialized }

// Shutdown optionally persists every entity, then removes them all.
// Stored records are kept. It returns the number saved and removed.
func (rt *Runtime) Shutdown(ctx context.Context, persist bool) (saved, removed int) {
	if persist {
		saved = rt.registry.SaveAll(ctx)
	}
	removed = rt.registry.Shutdown(ctx)
	rt.logger.InfoContext(ctx, "entity runtime stopped", "saved", saved, "removed", removed)
	return saved, removed
}

// HandleInteraction routes a player interaction to the entity's callback.
func (rt *Runtime) HandleInteraction(ctx context.Context, id entity.ID, subject ulid.ULID, typ interaction.Type) interaction.Outcome {
	return rt.interactions.HandleAs(ctx, id, subject, typ)
}

// PlayerQuit forgets every cooldown held by subject.
func (rt *Runtime) PlayerQuit(subject ulid.ULID) {
	rt.interactions.Tracker().ClearSubject(subject)
}

// EntityClosed handles the host dropping an entity on its own.
func (rt *Runtime) EntityClosed(ctx context.Context, id entity.ID) bool {
	return rt.registry.MarkClosed(ctx, id)
}

// Builder starts an entity configuration at pos in worldName.
func (rt *Runtime) Builder(worldName string, pos mgl64.Vec3) *registry.Builder {
	return rt.registry.Builder(worldName, pos)
}

// Registry returns the entity registry.
func (rt *Runtime) Registry() *registry.Registry { return rt.registry }

// Effects returns the effect scheduler.
func (rt *Runtime) Effects() *effect.Scheduler { return rt.effects }

// Interactions returns the interaction dispatcher.
func (rt *Runtime) Interactions() *interaction.Dispatcher { return rt.interactions }

// Nametags returns the nametag refresher.
func (rt *Runtime) Nametags() *nametag.Refresher { return rt.nametags }

// Events returns the event bus.
func (rt *Runtime) Events() *events.Bus { return rt.bus }
