// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package storage persists entity records across restarts.
package storage

import (
	"context"
	"maps"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/npcforge/npcforge/internal/entity"
)

// Store is the persistence contract used by the registry.
type Store interface {
	// Save inserts or replaces the record stored under rec.ID.
	Save(ctx context.Context, rec Record) error
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
	// LoadAll returns every stored record ordered by id.
	LoadAll(ctx context.Context) ([]Record, error)
}

// Position is a point in a named world.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	World string  `json:"world" jsonschema:"minLength=1"`
}

// Rotation is a head orientation in degrees.
type Rotation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// SkinRecord is a skin payload; Data is base64 encoded in JSON.
type SkinRecord struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Record is the persisted form of one entity. The id is the map key in
// file documents and a column in databases, so it is not part of the body.
type Record struct {
	ID                   int64          `json:"-"`
	Type                 string         `json:"type" jsonschema:"enum=human,enum=floating_text,enum=pig,enum=cow,enum=sheep,enum=chicken,enum=zombie,enum=skeleton,enum=creeper,enum=villager"`
	Name                 string         `json:"name"`
	Position             Position       `json:"position"`
	Rotation             Rotation       `json:"rotation"`
	Scale                float64        `json:"scale" jsonschema:"exclusiveMinimum=0,maximum=10"`
	NameTagVisible       bool           `json:"nameTagVisible"`
	NameTagAlwaysVisible bool           `json:"nameTagAlwaysVisible"`
	LookAtPlayers        bool           `json:"lookAtPlayers"`
	CanCollide           bool           `json:"canCollide"`
	Skin                 *SkinRecord    `json:"skin,omitempty"`
	Metadata             map[string]any `json:"metadata"`
	Profession           *int           `json:"profession,omitempty" jsonschema:"minimum=0,maximum=5"`
}

// FromEntity snapshots an entity into a record.
func FromEntity(e *entity.Entity) Record {
	tr := e.Transform()
	flags := e.Flags()
	skin := e.Skin()
	rec := Record{
		ID:                   int64(e.ID()),
		Type:                 string(e.Kind()),
		Name:                 e.Name(),
		Position:             Position{X: tr.Position.X(), Y: tr.Position.Y(), Z: tr.Position.Z(), World: tr.World},
		Rotation:             Rotation{Yaw: tr.Yaw, Pitch: tr.Pitch},
		Scale:                tr.Scale,
		NameTagVisible:       flags.NameTagVisible,
		NameTagAlwaysVisible: flags.NameTagAlwaysVisible,
		LookAtPlayers:        flags.LookAtPlayers,
		CanCollide:           flags.Collidable,
		Skin:                 &SkinRecord{Name: skin.Name, Data: skin.Data},
		Metadata:             e.Metadata(),
	}
	if e.Kind() == entity.KindVillager {
		p := e.Profession()
		rec.Profession = &p
	}
	return rec
}

// Config converts a record back into an entity configuration. A missing
// or undersized skin is replaced with a blank one.
func (r Record) Config() (entity.Config, error) {
	kind, err := entity.ParseKind(r.Type)
	if err != nil {
		return entity.Config{}, err
	}
	skin := entity.BlankSkin()
	if r.Skin != nil {
		skin = entity.Skin{Name: r.Skin.Name, Data: r.Skin.Data}.OrBlank()
	}
	cfg := entity.Config{
		Kind:     kind,
		Name:     r.Name,
		World:    r.Position.World,
		Position: mgl64.Vec3{r.Position.X, r.Position.Y, r.Position.Z},
		Yaw:      r.Rotation.Yaw,
		Pitch:    r.Rotation.Pitch,
		Scale:    &r.Scale,
		Skin:     &skin,
		Flags: entity.Flags{
			NameTagVisible:       r.NameTagVisible,
			NameTagAlwaysVisible: r.NameTagAlwaysVisible,
			LookAtPlayers:        r.LookAtPlayers,
			Collidable:           r.CanCollide,
		},
		Metadata: maps.Clone(r.Metadata),
	}
	if kind == entity.KindVillager && r.Profession != nil {
		p := *r.Profession
		cfg.Profession = &p
	}
	if err := cfg.Validate(); err != nil {
		return entity.Config{}, err
	}
	return cfg, nil
}
