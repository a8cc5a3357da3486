// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package interaction routes player interactions to entity callbacks with
// per-player cooldowns.
package interaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/pkg/errutil"
)

var tracer = otel.Tracer("npcforge/interaction")

// DefaultSweepPeriod is how often, in ticks, expired cooldowns are swept.
const DefaultSweepPeriod = 600

// Callback handles an interaction. Returned errors are logged; the
// cooldown is recorded either way unless the callback removed the entity.
type Callback func(ctx context.Context, subject ulid.ULID, e *entity.Entity) error

// Type is the gesture a player used.
type Type string

// Interaction gestures.
const (
	TypeTap        Type = "tap"
	TypeLongPress  Type = "long_press"
	TypeSneakTap   Type = "sneak_tap"
	TypeLeftClick  Type = "left_click"
	TypeRightClick Type = "right_click"
)

// Interceptor can veto an interaction before cooldown and callback logic.
type Interceptor interface {
	AllowInteract(ctx context.Context, e *entity.Entity, subject ulid.ULID, typ Type) bool
}

// Outcome is the result of one dispatch.
type Outcome string

// Dispatch outcomes.
const (
	OutcomeUnregistered Outcome = "unregistered"
	OutcomeStale        Outcome = "stale"
	OutcomeVetoed       Outcome = "vetoed"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeFailed       Outcome = "failed"
	OutcomeFired        Outcome = "fired"
)

type registration struct {
	callback Callback
	cooldown time.Duration
}

// Dispatcher owns the interaction registrations and their cooldowns.
// Not safe for concurrent use.
type Dispatcher struct {
	lookup          entity.Lookup
	tracker         *CooldownTracker
	regs            map[entity.ID]registration
	defaultCooldown time.Duration
	interceptor     Interceptor
	logger          *slog.Logger
	sweepPeriod     uint64
	sweep           *tick.Lazy
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDefaultCooldown sets the cooldown used by Register.
func WithDefaultCooldown(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.defaultCooldown = d }
}

// WithInterceptor installs an interaction veto hook.
func WithInterceptor(i Interceptor) Option {
	return func(disp *Dispatcher) { disp.interceptor = i }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(disp *Dispatcher) { disp.logger = l }
}

// WithTracker supplies the cooldown tracker, mainly to inject a clock.
func WithTracker(t *CooldownTracker) Option {
	return func(disp *Dispatcher) { disp.tracker = t }
}

// WithSweepPeriod sets how often, in ticks, expired cooldowns are swept.
func WithSweepPeriod(ticks uint64) Option {
	return func(disp *Dispatcher) { disp.sweepPeriod = ticks }
}

// NewDispatcher creates a dispatcher with no registrations.
func NewDispatcher(lookup entity.Lookup, sched tick.Scheduler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		lookup:          lookup,
		regs:            make(map[entity.ID]registration),
		defaultCooldown: DefaultCooldown,
		logger:          slog.Default(),
		sweepPeriod:     DefaultSweepPeriod,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracker == nil {
		d.tracker = NewCooldownTracker(nil)
	}
	d.sweep = tick.NewLazy(sched, "cooldown-sweep", d.sweepPeriod, d.sweepExpired)
	return d
}

// Register attaches cb to id with the default cooldown. Registering again
// replaces the previous callback.
func (d *Dispatcher) Register(id entity.ID, cb Callback) error {
	return d.RegisterWithCooldown(id, cb, d.defaultCooldown)
}

// RegisterWithCooldown attaches cb to id with an explicit cooldown.
func (d *Dispatcher) RegisterWithCooldown(id entity.ID, cb Callback, cooldown time.Duration) error {
	if cb == nil {
		return oops.Code(entity.CodeInvalidConfiguration).
			With("entity_id", int64(id)).
			Errorf("interaction callback is required")
	}
	if cooldown < 0 {
		return oops.Code(entity.CodeInvalidConfiguration).
			With("entity_id", int64(id)).
			With("cooldown", cooldown.String()).
			Errorf("interaction cooldown must not be negative")
	}
	d.regs[id] = registration{callback: cb, cooldown: cooldown}
	d.sweep.Ensure()
	return nil
}

// Unregister drops the callback of id and its cooldowns. Unregistering an
// unknown id is a no-op.
func (d *Dispatcher) Unregister(id entity.ID) {
	delete(d.regs, id)
	d.tracker.Clear(id)
	if len(d.regs) == 0 {
		d.sweep.Stop()
	}
}

// Has reports whether id has a callback.
func (d *Dispatcher) Has(id entity.ID) bool {
	_, ok := d.regs[id]
	return ok
}

// Count returns the number of registrations.
func (d *Dispatcher) Count() int { return len(d.regs) }

// Cooldown returns the cooldown configured for id.
func (d *Dispatcher) Cooldown(id entity.ID) (time.Duration, bool) {
	reg, ok := d.regs[id]
	return reg.cooldown, ok
}

// Tracker exposes the cooldown tracker.
func (d *Dispatcher) Tracker() *CooldownTracker { return d.tracker }

// SweepRunning reports whether the cooldown sweep task is scheduled.
func (d *Dispatcher) SweepRunning() bool { return d.sweep.Running() }

// Handle dispatches a tap from subject to entity id.
func (d *Dispatcher) Handle(ctx context.Context, id entity.ID, subject ulid.ULID) Outcome {
	return d.HandleAs(ctx, id, subject, TypeTap)
}

// HandleAs dispatches an interaction of the given gesture type.
func (d *Dispatcher) HandleAs(ctx context.Context, id entity.ID, subject ulid.ULID, typ Type) Outcome {
	ctx, span := tracer.Start(ctx, "interaction.handle",
		trace.WithAttributes(
			attribute.Int64("entity.id", int64(id)),
			attribute.String("interaction.subject", subject.String()),
			attribute.String("interaction.type", string(typ)),
		),
	)
	outcome := d.dispatch(ctx, span, id, subject, typ)
	span.SetAttributes(attribute.String("interaction.outcome", string(outcome)))
	span.End()
	InteractionOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, span trace.Span, id entity.ID, subject ulid.ULID, typ Type) Outcome {
	reg, ok := d.regs[id]
	if !ok {
		return OutcomeUnregistered
	}
	e, ok := d.lookup.Get(id)
	if !ok || e.Gone() {
		d.Unregister(id)
		return OutcomeStale
	}
	if d.interceptor != nil && !d.interceptor.AllowInteract(ctx, e, subject, typ) {
		return OutcomeVetoed
	}
	if d.tracker.IsOnCooldown(id, subject) {
		span.SetAttributes(attribute.Int64("interaction.cooldown_ms",
			d.tracker.Remaining(id, subject).Milliseconds()))
		return OutcomeSuppressed
	}

	err := d.invoke(ctx, reg.callback, subject, e)
	// Recorded even when the callback failed, but not for an entity the
	// callback unregistered or removed.
	if _, still := d.regs[id]; still && !e.Gone() {
		d.tracker.SetCooldown(id, subject, reg.cooldown)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errutil.LogError(d.logger, "interaction callback failed", err,
			"entity_id", int64(id), "subject", subject.String())
		return OutcomeFailed
	}
	return OutcomeFired
}

func (d *Dispatcher) invoke(ctx context.Context, cb Callback, subject ulid.ULID, e *entity.Entity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errutil.PanicError(r)
		}
	}()
	return cb(ctx, subject, e)
}

func (d *Dispatcher) sweepExpired() {
	if n := d.tracker.SweepExpired(); n > 0 {
		d.logger.Debug("swept expired cooldowns", "count", n)
	}
}
