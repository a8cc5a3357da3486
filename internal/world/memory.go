// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package world

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/npcforge/npcforge/internal/entity"
)

// DefaultMaxPlayers is the capacity of a Memory host unless overridden.
const DefaultMaxPlayers = 20

// recentParticleLimit bounds the particle history kept by Memory.
const recentParticleLimit = 256

// Particle is one emitted particle recorded by Memory.
type Particle struct {
	World    string
	Position mgl64.Vec3
	Type     string
}

type memoryWorld struct {
	name    string
	players map[ulid.ULID]Player
}

func (w *memoryWorld) Name() string { return w.name }

func (w *memoryWorld) Players() []Player {
	out := slices.Collect(maps.Values(w.players))
	slices.SortFunc(out, func(a, b Player) int { return a.ID.Compare(b.ID) })
	return out
}

// Memory is an in-process Host. It records what the runtime asked it to
// show so callers can inspect it.
type Memory struct {
	mu           sync.RWMutex
	worlds       map[string]*memoryWorld
	maxPlayers   int
	visible      map[entity.ID]*entity.Entity
	nameTags     map[entity.ID]string
	particleHits map[string]int
	recent       []Particle
	announceErr  error
}

// NewMemory creates a host with the given worlds loaded.
func NewMemory(worlds ...string) *Memory {
	m := &Memory{
		worlds:       make(map[string]*memoryWorld),
		maxPlayers:   DefaultMaxPlayers,
		visible:      make(map[entity.ID]*entity.Entity),
		nameTags:     make(map[entity.ID]string),
		particleHits: make(map[string]int),
	}
	for _, name := range worlds {
		m.LoadWorld(name)
	}
	return m
}

// LoadWorld adds an empty world. Loading an existing world is a no-op.
func (m *Memory) LoadWorld(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := m.worlds[key]; ok {
		return
	}
	m.worlds[key] = &memoryWorld{name: name, players: make(map[ulid.ULID]Player)}
}

// SetMaxPlayers changes the reported capacity.
func (m *Memory) SetMaxPlayers(n int) {
	m.mu.Lock()
	m.maxPlayers = n
	m.mu.Unlock()
}

// FailAnnounce makes subsequent Announce calls return err. Pass nil to
// restore normal behaviour.
func (m *Memory) FailAnnounce(err error) {
	m.mu.Lock()
	m.announceErr = err
	m.mu.Unlock()
}

// Join places a player in a world, moving them if already connected.
func (m *Memory) Join(worldName string, p Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.worlds[strings.ToLower(worldName)]
	if !ok {
		return oops.Code("WORLD_NOT_FOUND").With("world", worldName).Errorf("world %q is not loaded", worldName)
	}
	for _, other := range m.worlds {
		delete(other.players, p.ID)
	}
	w.players[p.ID] = p
	return nil
}

// Leave disconnects a player.
func (m *Memory) Leave(id ulid.ULID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.worlds {
		delete(w.players, id)
	}
}

// World implements Host. Names are matched case-insensitively.
func (m *Memory) World(name string) (World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return &memoryWorld{name: w.name, players: maps.Clone(w.players)}, true
}

// OnlineCount implements Host.
func (m *Memory) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, w := range m.worlds {
		n += len(w.players)
	}
	return n
}

// MaxPlayers implements Host.
func (m *Memory) MaxPlayers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxPlayers
}

// Announce implements Host.
func (m *Memory) Announce(e *entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.announceErr != nil {
		return m.announceErr
	}
	if _, ok := m.worlds[strings.ToLower(e.World())]; !ok {
		return oops.Code("WORLD_NOT_FOUND").With("world", e.World()).Errorf("world %q is not loaded", e.World())
	}
	m.visible[e.ID()] = e
	m.nameTags[e.ID()] = e.NameTag()
	return nil
}

// Despawn implements Host.
func (m *Memory) Despawn(e *entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.visible, e.ID())
	delete(m.nameTags, e.ID())
}

// ShowNameTag implements Host.
func (m *Memory) ShowNameTag(e *entity.Entity, text string) {
	e.SetNameTag(text)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visible[e.ID()]; ok {
		m.nameTags[e.ID()] = text
	}
}

// AddParticle implements Host.
func (m *Memory) AddParticle(worldName string, pos mgl64.Vec3, particle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.particleHits[particle]++
	m.recent = append(m.recent, Particle{World: worldName, Position: pos, Type: particle})
	if over := len(m.recent) - recentParticleLimit; over > 0 {
		m.recent = slices.Delete(m.recent, 0, over)
	}
}

// Visible reports whether an entity is currently shown.
func (m *Memory) Visible(id entity.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.visible[id]
	return ok
}

// VisibleCount returns how many entities are shown.
func (m *Memory) VisibleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.visible)
}

// NameTag returns the last text pushed for an entity.
func (m *Memory) NameTag(id entity.ID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.nameTags[id]
	return text, ok
}

// ParticleCount returns how many particles of a type were emitted.
func (m *Memory) ParticleCount(particle string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.particleHits[particle]
}

// RecentParticles returns a copy of the most recent particles.
func (m *Memory) RecentParticles() []Particle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.recent)
}
