// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package nametag_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/nametag"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/internal/world"
	"github.com/npcforge/npcforge/pkg/errutil"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type fixture struct {
	dir       *entity.Directory
	loop      *tick.Loop
	host      *world.Memory
	refresher *nametag.Refresher
	logs      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:  entity.NewDirectory(),
		loop: tick.NewLoop(),
		host: world.NewMemory("lobby"),
		logs: &bytes.Buffer{},
	}
	f.refresher = nametag.NewRefresher(f.dir, f.host, f.loop,
		nametag.WithClock(func() time.Time { return fixedNow }),
		nametag.WithLogger(slog.New(slog.NewJSONHandler(f.logs, nil))),
		nametag.WithPeriod(20))
	return f
}

func (f *fixture) spawn(t *testing.T, name string) *entity.Entity {
	t.Helper()
	e, err := entity.New(f.dir.NextID(), entity.Config{
		Kind:  entity.KindHuman,
		Name:  name,
		World: "lobby",
		Flags: entity.DefaultFlags(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Transition(entity.StateActive))
	require.NoError(t, f.host.Announce(e))
	f.dir.Put(e)
	return e
}

func (f *fixture) step(n int) {
	for range n {
		f.loop.Step()
	}
}

func mustBinding(t *testing.T, template string) *nametag.Binding {
	t.Helper()
	b, err := nametag.NewBinding(template)
	require.NoError(t, err)
	return b
}

func TestBinding_BuiltinsThenCustomThenTransform(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Bob")
	f.host.SetMaxPlayers(40)
	require.NoError(t, f.host.Join("lobby", world.Player{ID: ulid.Make()}))

	b := mustBinding(t, "{entity_name} #{entity_id} {world} {player_count}/{max_players} {date} {time} {rank} {world_name}")
	b.SetVariable("rank", "VIP").SetVariables(map[string]string{"world": "ignored"})
	b.WithTransformer(nametag.TransformFunc(func(text string, _ *entity.Entity) string {
		return strings.ToUpper(text)
	}))

	got := b.Render(e, f.host, fixedNow)
	assert.Equal(t, "BOB #1 LOBBY 1/40 2026-03-14 15:09:26 VIP {WORLD_NAME}", got)
	v, ok := b.Variable("rank")
	require.True(t, ok)
	assert.Equal(t, "VIP", v)
}

func TestBinding_EntityType(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "x")
	b := mustBinding(t, "[{entity_type}]")
	assert.Equal(t, "[Human]", b.Render(e, f.host, fixedNow))

	require.NoError(t, b.SetTemplate("{entity_id}"))
	assert.Equal(t, "{entity_id}", b.Template())
}

func TestRefresher_PushesEveryPeriod(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")
	f.refresher.Register(e.ID(), mustBinding(t, "Online: {player_count}"))

	f.step(19)
	text, _ := f.host.NameTag(e.ID())
	assert.Equal(t, "Guide", text, "no refresh before the first period")

	f.step(1)
	text, _ = f.host.NameTag(e.ID())
	assert.Equal(t, "Online: 0", text)

	require.NoError(t, f.host.Join("lobby", world.Player{ID: ulid.Make()}))
	f.step(20)
	assert.Equal(t, "Online: 1", e.NameTag())
}

func TestRefresher_Quiescence(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")

	assert.False(t, f.refresher.Running())
	f.refresher.Register(e.ID(), mustBinding(t, "{time}"))
	assert.True(t, f.refresher.Running())
	assert.True(t, f.refresher.Has(e.ID()))

	f.refresher.Unregister(e.ID())
	f.refresher.Unregister(e.ID())
	assert.False(t, f.refresher.Running())
	assert.Equal(t, 0, f.loop.TaskCount())
}

func TestRefresher_DropsGoneEntities(t *testing.T) {
	f := newFixture(t)
	gone := f.spawn(t, "Gone")
	kept := f.spawn(t, "Kept")
	f.refresher.Register(gone.ID(), mustBinding(t, "a"))
	f.refresher.Register(kept.ID(), mustBinding(t, "b"))

	f.dir.Delete(gone.ID())
	f.refresher.Tick()

	assert.False(t, f.refresher.Has(gone.ID()))
	assert.Equal(t, "b", kept.NameTag())
	assert.False(t, f.refresher.Refresh(gone.ID()))
	assert.True(t, f.refresher.Refresh(kept.ID()))
}

type closingTransformer struct{ closed int }

func (c *closingTransformer) Transform(text string, _ *entity.Entity) string { return text }
func (c *closingTransformer) Close() error {
	c.closed++
	return nil
}

func TestRefresher_ClosesTransformers(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")

	first := &closingTransformer{}
	second := &closingTransformer{}
	f.refresher.Register(e.ID(), mustBinding(t, "x").WithTransformer(first))
	f.refresher.Register(e.ID(), mustBinding(t, "y").WithTransformer(second))
	assert.Equal(t, 1, first.closed, "replaced binding is released")

	f.refresher.Unregister(e.ID())
	assert.Equal(t, 1, second.closed)
}

func TestRefresher_PanickingTransformIsContained(t *testing.T) {
	f := newFixture(t)
	bad := f.spawn(t, "Bad")
	good := f.spawn(t, "Good")
	f.refresher.Register(bad.ID(), mustBinding(t, "x").WithTransformer(
		nametag.TransformFunc(func(string, *entity.Entity) string { panic("boom") })))
	f.refresher.Register(good.ID(), mustBinding(t, "fine"))

	f.refresher.Tick()

	assert.Equal(t, "fine", good.NameTag())
	assert.Contains(t, f.logs.String(), errutil.CodePanic)
}

func TestLuaTransform(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")

	lt, err := nametag.NewLuaTransform(`
function transform(text, id, world)
  return string.upper(text) .. " @" .. world .. "#" .. id
end`, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, lt.Close()) }()

	assert.Equal(t, "HELLO @lobby#1", lt.Transform("hello", e))
}

func TestLuaTransform_Sandbox(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "os is not loaded", script: `function transform(t) return os.getenv("HOME") end`},
		{name: "io is not loaded", script: `function transform(t) return io.read() end`},
		{name: "dofile is blocked", script: `function transform(t) return dofile("/etc/passwd") end`},
		{name: "runtime error", script: `function transform(t) error("nope") end`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.spawn(t, "Guide")
			var logs bytes.Buffer
			lt, err := nametag.NewLuaTransform(tt.script, slog.New(slog.NewJSONHandler(&logs, nil)))
			require.NoError(t, err)
			defer lt.Close()

			assert.Equal(t, "unchanged", lt.Transform("unchanged", e))
			assert.Contains(t, logs.String(), nametag.CodeLuaTransformInvalid)
		})
	}
}

func TestLuaTransform_InvalidScripts(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "syntax error", script: `function transform(`},
		{name: "missing function", script: `x = 1`},
		{name: "not a function", script: `transform = "text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := nametag.NewLuaTransform(tt.script, nil)
			errutil.AssertErrorCode(t, err, nametag.CodeLuaTransformInvalid)
		})
	}
}

func TestLuaTransform_NilReturnKeepsText(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")
	lt, err := nametag.NewLuaTransform(`function transform(t) end`, nil)
	require.NoError(t, err)
	defer lt.Close()

	assert.Equal(t, "kept", lt.Transform("kept", e))
}

func TestLuaTransform_RunawayScriptIsBounded(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "Guide")
	var logs bytes.Buffer
	lt, err := nametag.NewLuaTransform(`
calls = 0
function transform(t)
  calls = calls + 1
  if calls == 1 then
    while true do end
  end
  return t .. "!"
end`, slog.New(slog.NewJSONHandler(&logs, nil)), nametag.WithLuaTimeout(20*time.Millisecond))
	require.NoError(t, err)
	defer lt.Close()

	start := time.Now()
	assert.Equal(t, "stuck", lt.Transform("stuck", e))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, logs.String(), nametag.CodeLuaTransformInvalid)

	assert.Equal(t, "free!", lt.Transform("free", e), "state is usable after a timeout")
}

func TestLuaTransform_RunawayLoadFails(t *testing.T) {
	_, err := nametag.NewLuaTransform(`while true do end`, nil, nametag.WithLuaTimeout(20*time.Millisecond))
	errutil.AssertErrorCode(t, err, nametag.CodeLuaTransformInvalid)
}
