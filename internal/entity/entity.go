// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package entity defines the synthetic actors managed by the runtime.
package entity

import (
	"maps"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxScale is the largest size multiplier an entity may have.
const MaxScale = 10.0

// ID is the registry-assigned identifier of an entity.
type ID int64

// Lookup resolves ids to live entities. Schedulers hold ids only and
// re-resolve through a Lookup each time they act.
type Lookup interface {
	Get(id ID) (*Entity, bool)
}

// Flags are the visibility and behaviour toggles of an entity.
type Flags struct {
	NameTagVisible       bool
	NameTagAlwaysVisible bool
	LookAtPlayers        bool
	Collidable           bool
}

// DefaultFlags returns the flags new entities start with.
func DefaultFlags() Flags {
	return Flags{NameTagVisible: true, NameTagAlwaysVisible: true}
}

// Transform is the spatial state of an entity.
type Transform struct {
	World    string
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Scale    float64
}

// Config describes an entity before it is constructed.
type Config struct {
	Kind       Kind
	Name       string
	World      string
	Position   mgl64.Vec3
	Yaw        float64
	Pitch      float64
	Scale      *float64 // nil selects the kind default
	Skin       *Skin
	Flags      Flags
	Profession *int
	Metadata   map[string]any
}

// Validate checks fields that can be judged without a host.
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return ErrInvalidConfiguration("type", "unknown entity type: "+string(c.Kind))
	}
	if strings.TrimSpace(c.World) == "" {
		return ErrInvalidConfiguration("world", "world is required")
	}
	if c.Scale != nil && (*c.Scale <= 0 || *c.Scale > MaxScale) {
		return ErrInvalidConfiguration("scale", "scale must be in (0, 10]")
	}
	if c.Profession != nil {
		if c.Kind != KindVillager {
			return ErrInvalidConfiguration("profession", "only villagers have a profession")
		}
		if err := ValidateProfession(*c.Profession); err != nil {
			return err
		}
	}
	return nil
}

// Entity is a non-player actor. It is owned by the registry and must only
// be touched from the tick goroutine.
type Entity struct {
	id         ID
	kind       Kind
	name       string
	nameTag    string
	transform  Transform
	flags      Flags
	skin       Skin
	profession int
	metadata   map[string]any
	state      State
	closed     bool

	guard    ImmobilityGuard
	rotation RotationHelper
}

// New constructs an entity in the Configuring state. Kind rules are
// applied after the configured flags so fixed kinds cannot be overridden.
func New(id ID, cfg Config) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scale := cfg.Kind.DefaultScale()
	if cfg.Scale != nil {
		scale = *cfg.Scale
	}
	skin := BlankSkin()
	if cfg.Skin != nil {
		skin = cfg.Skin.OrBlank()
	}
	e := &Entity{
		id:      id,
		kind:    cfg.Kind,
		name:    cfg.Name,
		nameTag: cfg.Name,
		transform: Transform{
			World:    cfg.World,
			Position: cfg.Position,
			Yaw:      cfg.Yaw,
			Pitch:    cfg.Pitch,
			Scale:    scale,
		},
		flags:    cfg.Flags,
		skin:     skin,
		metadata: make(map[string]any, len(cfg.Metadata)),
		state:    StateConfiguring,
		guard:    NewImmobilityGuard(cfg.Position),
	}
	if cfg.Profession != nil {
		e.profession = *cfg.Profession
	}
	maps.Copy(e.metadata, cfg.Metadata)
	if cfg.Kind.Fixed() {
		e.flags.LookAtPlayers = false
		e.flags.Collidable = false
		e.flags.NameTagVisible = true
		e.flags.NameTagAlwaysVisible = true
	}
	return e, nil
}

// ID returns the registry id.
func (e *Entity) ID() ID { return e.id }

// Kind returns the immutable variant.
func (e *Entity) Kind() Kind { return e.kind }

// Name returns the configured display name.
func (e *Entity) Name() string { return e.name }

// NameTag returns the text currently shown above the entity.
func (e *Entity) NameTag() string { return e.nameTag }

// SetNameTag replaces the displayed text.
func (e *Entity) SetNameTag(text string) { e.nameTag = text }

// Transform returns a copy of the spatial state.
func (e *Entity) Transform() Transform { return e.transform }

// World returns the name of the world the entity lives in.
func (e *Entity) World() string { return e.transform.World }

// Position returns the current position.
func (e *Entity) Position() mgl64.Vec3 { return e.transform.Position }

// SetPosition moves the entity. The immobility guard may undo this on the
// next behaviour pass.
func (e *Entity) SetPosition(p mgl64.Vec3) { e.transform.Position = p }

// SetRotation updates yaw and pitch.
func (e *Entity) SetRotation(yaw, pitch float64) {
	e.transform.Yaw = yaw
	e.transform.Pitch = pitch
}

// Flags returns the behaviour toggles.
func (e *Entity) Flags() Flags { return e.flags }

// Skin returns the appearance payload.
func (e *Entity) Skin() Skin { return e.skin }

// Profession returns the villager profession index.
func (e *Entity) Profession() int { return e.profession }

// SetProfession changes a villager's profession.
func (e *Entity) SetProfession(p int) error {
	if e.kind != KindVillager {
		return ErrInvalidConfiguration("profession", "only villagers have a profession")
	}
	if err := ValidateProfession(p); err != nil {
		return err
	}
	e.profession = p
	return nil
}

// Meta returns a metadata value.
func (e *Entity) Meta(key string) (any, bool) {
	v, ok := e.metadata[key]
	return v, ok
}

// SetMeta stores a metadata value.
func (e *Entity) SetMeta(key string, value any) { e.metadata[key] = value }

// DeleteMeta removes a metadata value.
func (e *Entity) DeleteMeta(key string) { delete(e.metadata, key) }

// Metadata returns a copy of all metadata.
func (e *Entity) Metadata() map[string]any { return maps.Clone(e.metadata) }

// State returns the lifecycle stage.
func (e *Entity) State() State { return e.state }

// Transition moves the entity to the next lifecycle state.
func (e *Entity) Transition(to State) error {
	if !canMove(e.state, to) {
		return ErrInvalidTransition(e.id, e.state, to)
	}
	e.state = to
	return nil
}

// Close marks the entity as dropped by the host world.
func (e *Entity) Close() { e.closed = true }

// Closed reports whether the host has dropped the entity.
func (e *Entity) Closed() bool { return e.closed }

// Gone reports whether schedulers should stop acting on the entity.
func (e *Entity) Gone() bool { return e.closed || e.state != StateActive }

// Config reconstructs the configuration the entity would be recreated
// from, reflecting its current state.
func (e *Entity) Config() Config {
	skin := e.skin
	scale := e.transform.Scale
	cfg := Config{
		Kind:     e.kind,
		Name:     e.name,
		World:    e.transform.World,
		Position: e.transform.Position,
		Yaw:      e.transform.Yaw,
		Pitch:    e.transform.Pitch,
		Scale:    &scale,
		Skin:     &skin,
		Flags:    e.flags,
		Metadata: e.Metadata(),
	}
	if e.kind == KindVillager {
		p := e.profession
		cfg.Profession = &p
	}
	return cfg
}

// ApplyBehaviours runs the immobility guard and look-at rotation against
// the feet positions of the players in the entity's world. It reports
// whether the transform changed.
func (e *Entity) ApplyBehaviours(players []mgl64.Vec3) bool {
	changed := false
	if pos, moved := e.guard.Enforce(e.transform.Position); moved {
		e.transform.Position = pos
		changed = true
	}
	if e.flags.LookAtPlayers {
		if yaw, pitch, ok := e.rotation.FacePlayers(e.transform.Position, players); ok {
			e.SetRotation(yaw, pitch)
			changed = true
		}
	}
	return changed
}
