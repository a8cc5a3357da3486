// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package interaction_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/pkg/errutil"
)

type fixture struct {
	dir   *entity.Directory
	loop  *tick.Loop
	clock *fakeClock
	disp  *interaction.Dispatcher
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, opts ...interaction.Option) *fixture {
	t.Helper()
	f := &fixture{
		dir:   entity.NewDirectory(),
		loop:  tick.NewLoop(),
		clock: newFakeClock(),
		logs:  &bytes.Buffer{},
	}
	base := []interaction.Option{
		interaction.WithTracker(interaction.NewCooldownTracker(f.clock.Now)),
		interaction.WithLogger(slog.New(slog.NewJSONHandler(f.logs, nil))),
	}
	f.disp = interaction.NewDispatcher(f.dir, f.loop, append(base, opts...)...)
	return f
}

func (f *fixture) spawn(t *testing.T) *entity.Entity {
	t.Helper()
	e, err := entity.New(f.dir.NextID(), entity.Config{
		Kind:  entity.KindVillager,
		World: "lobby",
		Flags: entity.DefaultFlags(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Transition(entity.StateActive))
	f.dir.Put(e)
	return e
}

func counting(calls *int) interaction.Callback {
	return func(context.Context, ulid.ULID, *entity.Entity) error {
		*calls++
		return nil
	}
}

func TestDispatcher_CooldownSuppressesSpam(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t)
	alice := ulid.Make()
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	ctx := context.Background()
	assert.Equal(t, interaction.OutcomeFired, f.disp.Handle(ctx, e.ID(), alice))
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, interaction.OutcomeSuppressed, f.disp.Handle(ctx, e.ID(), alice))
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, interaction.OutcomeFired, f.disp.Handle(ctx, e.ID(), alice))

	assert.Equal(t, 2, calls)
}

func TestDispatcher_CooldownIsPerSubject(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t)
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	ctx := context.Background()
	f.disp.Handle(ctx, e.ID(), ulid.Make())
	f.disp.Handle(ctx, e.ID(), ulid.Make())
	assert.Equal(t, 2, calls)
}

func TestDispatcher_FailureStillRecordsCooldown(t *testing.T) {
	tests := []struct {
		name     string
		callback interaction.Callback
		logged   string
	}{
		{
			name: "error",
			callback: func(context.Context, ulid.ULID, *entity.Entity) error {
				return errors.New("shop closed")
			},
			logged: "shop closed",
		},
		{
			name: "panic",
			callback: func(context.Context, ulid.ULID, *entity.Entity) error {
				panic("nil map")
			},
			logged: errutil.CodePanic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.spawn(t)
			alice := ulid.Make()
			require.NoError(t, f.disp.Register(e.ID(), tt.callback))

			assert.Equal(t, interaction.OutcomeFailed, f.disp.Handle(context.Background(), e.ID(), alice))
			assert.True(t, f.disp.Tracker().IsOnCooldown(e.ID(), alice))
			assert.Contains(t, f.logs.String(), tt.logged)

			f.clock.Advance(100 * time.Millisecond)
			assert.Equal(t, interaction.OutcomeSuppressed, f.disp.Handle(context.Background(), e.ID(), alice))
		})
	}
}

func TestDispatcher_NoCooldownAfterSelfUnregister(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t)
	alice := ulid.Make()
	require.NoError(t, f.disp.Register(e.ID(), func(_ context.Context, _ ulid.ULID, target *entity.Entity) error {
		f.disp.Unregister(target.ID())
		return nil
	}))

	assert.Equal(t, interaction.OutcomeFired, f.disp.Handle(context.Background(), e.ID(), alice))
	assert.Zero(t, f.disp.Tracker().Count())
	assert.Empty(t, f.disp.Tracker().Active(e.ID()))
	assert.False(t, f.disp.SweepRunning())
}

func TestDispatcher_Unregistered(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t)
	assert.Equal(t, interaction.OutcomeUnregistered, f.disp.Handle(context.Background(), e.ID(), ulid.Make()))
}

func TestDispatcher_StaleRegistrationDropped(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t)
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	f.dir.Delete(e.ID())
	assert.Equal(t, interaction.OutcomeStale, f.disp.Handle(context.Background(), e.ID(), ulid.Make()))
	assert.False(t, f.disp.Has(e.ID()))
	assert.Zero(t, calls)
	assert.False(t, f.disp.SweepRunning())
}

type vetoAll struct{ seen []interaction.Type }

func (v *vetoAll) AllowInteract(_ context.Context, _ *entity.Entity, _ ulid.ULID, typ interaction.Type) bool {
	v.seen = append(v.seen, typ)
	return false
}

func TestDispatcher_VetoSkipsCooldownAndCallback(t *testing.T) {
	veto := &vetoAll{}
	f := newFixture(t, interaction.WithInterceptor(veto))
	e := f.spawn(t)
	alice := ulid.Make()
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	outcome := f.disp.HandleAs(context.Background(), e.ID(), alice, interaction.TypeSneakTap)

	assert.Equal(t, interaction.OutcomeVetoed, outcome)
	assert.Zero(t, calls)
	assert.False(t, f.disp.Tracker().IsOnCooldown(e.ID(), alice))
	assert.Equal(t, []interaction.Type{interaction.TypeSneakTap}, veto.seen)
}

func TestDispatcher_RegisterValidation(t *testing.T) {
	f := newFixture(t)

	err := f.disp.Register(1, nil)
	errutil.AssertErrorCode(t, err, entity.CodeInvalidConfiguration)

	err = f.disp.RegisterWithCooldown(1, func(context.Context, ulid.ULID, *entity.Entity) error { return nil }, -time.Second)
	errutil.AssertErrorCode(t, err, entity.CodeInvalidConfiguration)
	assert.Equal(t, 0, f.disp.Count())
}

func TestDispatcher_CustomCooldown(t *testing.T) {
	f := newFixture(t, interaction.WithDefaultCooldown(2*time.Second))
	first := f.spawn(t)
	second := f.spawn(t)
	noop := func(context.Context, ulid.ULID, *entity.Entity) error { return nil }

	require.NoError(t, f.disp.Register(first.ID(), noop))
	require.NoError(t, f.disp.RegisterWithCooldown(second.ID(), noop, 0))

	got, ok := f.disp.Cooldown(first.ID())
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, got)

	alice := ulid.Make()
	ctx := context.Background()
	assert.Equal(t, interaction.OutcomeFired, f.disp.Handle(ctx, second.ID(), alice))
	assert.Equal(t, interaction.OutcomeFired, f.disp.Handle(ctx, second.ID(), alice), "zero cooldown never suppresses")
}

func TestDispatcher_UnregisterClearsCooldownsAndStopsSweep(t *testing.T) {
	f := newFixture(t, interaction.WithSweepPeriod(10))
	e := f.spawn(t)
	alice := ulid.Make()
	calls := 0

	assert.False(t, f.disp.SweepRunning())
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))
	assert.True(t, f.disp.SweepRunning())

	f.disp.Handle(context.Background(), e.ID(), alice)
	require.Equal(t, 1, f.disp.Tracker().Count())

	f.disp.Unregister(e.ID())
	f.disp.Unregister(e.ID())
	assert.Equal(t, 0, f.disp.Tracker().Count())
	assert.False(t, f.disp.SweepRunning())
	assert.Equal(t, 0, f.loop.TaskCount())
}

func TestDispatcher_SweepTaskEvictsExpired(t *testing.T) {
	f := newFixture(t, interaction.WithSweepPeriod(5))
	e := f.spawn(t)
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	f.disp.Handle(context.Background(), e.ID(), ulid.Make())
	f.disp.Handle(context.Background(), e.ID(), ulid.Make())
	require.Equal(t, 2, f.disp.Tracker().Count())

	f.clock.Advance(time.Second)
	for range 5 {
		f.loop.Step()
	}
	assert.Equal(t, 0, f.disp.Tracker().Count())
}

func TestDispatcher_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	interaction.RegisterMetrics(reg)

	f := newFixture(t)
	e := f.spawn(t)
	calls := 0
	require.NoError(t, f.disp.Register(e.ID(), counting(&calls)))

	fired := interaction.InteractionOutcomes.WithLabelValues(string(interaction.OutcomeFired))
	suppressed := interaction.InteractionOutcomes.WithLabelValues(string(interaction.OutcomeSuppressed))
	firedBefore, suppressedBefore := testutil.ToFloat64(fired), testutil.ToFloat64(suppressed)

	alice := ulid.Make()
	f.disp.Handle(context.Background(), e.ID(), alice)
	f.disp.Handle(context.Background(), e.ID(), alice)

	assert.InDelta(t, firedBefore+1, testutil.ToFloat64(fired), 1e-9)
	assert.InDelta(t, suppressedBefore+1, testutil.ToFloat64(suppressed), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(interaction.CooldownEntries), 1e-9)
}
