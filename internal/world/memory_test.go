// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package world_test

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/world"
	"github.com/npcforge/npcforge/pkg/errutil"
)

func newEntity(t *testing.T, id entity.ID, worldName string) *entity.Entity {
	t.Helper()
	e, err := entity.New(id, entity.Config{
		Kind:  entity.KindHuman,
		Name:  "npc",
		World: worldName,
		Flags: entity.DefaultFlags(),
	})
	require.NoError(t, err)
	return e
}

func TestMemory_JoinAndLeave(t *testing.T) {
	host := world.NewMemory("lobby", "arena")
	alice := world.Player{ID: ulid.Make(), Name: "alice", Position: mgl64.Vec3{1, 2, 3}}

	require.NoError(t, host.Join("lobby", alice))
	assert.Equal(t, 1, host.OnlineCount())

	require.NoError(t, host.Join("Arena", alice))
	lobby, ok := host.World("lobby")
	require.True(t, ok)
	assert.Empty(t, lobby.Players())
	arena, ok := host.World("arena")
	require.True(t, ok)
	assert.Equal(t, []mgl64.Vec3{{1, 2, 3}}, world.PlayerPositions(arena))

	host.Leave(alice.ID)
	assert.Equal(t, 0, host.OnlineCount())

	err := host.Join("nether", alice)
	errutil.AssertErrorCode(t, err, "WORLD_NOT_FOUND")
}

func TestMemory_AnnounceAndDespawn(t *testing.T) {
	host := world.NewMemory("lobby")
	e := newEntity(t, 1, "lobby")

	require.NoError(t, host.Announce(e))
	assert.True(t, host.Visible(1))
	text, ok := host.NameTag(1)
	require.True(t, ok)
	assert.Equal(t, "npc", text)

	host.ShowNameTag(e, "Online: 3")
	text, _ = host.NameTag(1)
	assert.Equal(t, "Online: 3", text)
	assert.Equal(t, "Online: 3", e.NameTag())

	host.Despawn(e)
	assert.False(t, host.Visible(1))
	assert.Equal(t, 0, host.VisibleCount())
}

func TestMemory_AnnounceFailures(t *testing.T) {
	host := world.NewMemory("lobby")

	err := host.Announce(newEntity(t, 1, "void"))
	errutil.AssertErrorCode(t, err, "WORLD_NOT_FOUND")

	boom := errors.New("network down")
	host.FailAnnounce(boom)
	require.ErrorIs(t, host.Announce(newEntity(t, 2, "lobby")), boom)

	host.FailAnnounce(nil)
	require.NoError(t, host.Announce(newEntity(t, 3, "lobby")))
}

func TestMemory_ParticlesAreBounded(t *testing.T) {
	host := world.NewMemory("lobby")
	for range 300 {
		host.AddParticle("lobby", mgl64.Vec3{}, "flame")
	}
	assert.Equal(t, 300, host.ParticleCount("flame"))
	assert.Len(t, host.RecentParticles(), 256)
}

func TestMemory_MaxPlayers(t *testing.T) {
	host := world.NewMemory()
	assert.Equal(t, world.DefaultMaxPlayers, host.MaxPlayers())
	host.SetMaxPlayers(50)
	assert.Equal(t, 50, host.MaxPlayers())
}
