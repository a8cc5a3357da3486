// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package world defines the host simulation the runtime places entities
// into, plus an in-memory host used by the daemon and tests.
package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"

	"github.com/npcforge/npcforge/internal/entity"
)

// Player is a connected participant as seen by the runtime.
type Player struct {
	ID       ulid.ULID
	Name     string
	Position mgl64.Vec3
}

// World is a named space holding players.
type World interface {
	Name() string
	Players() []Player
}

// Host is the simulation substrate entities live in.
type Host interface {
	// World looks up a loaded world by name.
	World(name string) (World, bool)
	// OnlineCount returns the number of connected players.
	OnlineCount() int
	// MaxPlayers returns the player capacity.
	MaxPlayers() int
	// Announce makes a new entity visible to every viewer.
	Announce(e *entity.Entity) error
	// Despawn removes an entity from every viewer.
	Despawn(e *entity.Entity)
	// ShowNameTag pushes new nametag text to viewers.
	ShowNameTag(e *entity.Entity, text string)
	// AddParticle emits a particle at pos.
	AddParticle(world string, pos mgl64.Vec3, particle string)
}

// PlayerPositions returns the feet positions of every player in w.
func PlayerPositions(w World) []mgl64.Vec3 {
	players := w.Players()
	out := make([]mgl64.Vec3, len(players))
	for i, p := range players {
		out[i] = p.Position
	}
	return out
}
