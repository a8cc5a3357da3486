// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package registry

import (
	"context"
	"maps"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/npcforge/npcforge/internal/effect"
	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/nametag"
)

// Builder assembles a Config fluently. The first error is kept and
// returned by Spawn or Config; later calls are ignored once it is set.
type Builder struct {
	r   *Registry
	cfg Config
	err error
}

// Builder starts a configuration for an entity at pos in worldName.
// The kind defaults to human.
func (r *Registry) Builder(worldName string, pos mgl64.Vec3) *Builder {
	return &Builder{
		r: r,
		cfg: Config{Config: entity.Config{
			Kind:     entity.KindHuman,
			World:    worldName,
			Position: pos,
			Flags:    entity.DefaultFlags(),
		}},
	}
}

func (b *Builder) kind(k entity.Kind, c entity.Category) *Builder {
	if b.err != nil {
		return b
	}
	if err := entity.RequireCategory(k, c); err != nil {
		b.err = err
		return b
	}
	b.cfg.Kind = k
	return b
}

// Human makes a player-shaped entity.
func (b *Builder) Human() *Builder { return b.kind(entity.KindHuman, entity.CategoryHuman) }

// FloatingText makes a hologram line showing text.
func (b *Builder) FloatingText(text string) *Builder {
	b.kind(entity.KindFloatingText, entity.CategoryFloatingText)
	b.cfg.Name = text
	return b
}

// Animal makes a passive animal of kind k.
func (b *Builder) Animal(k entity.Kind) *Builder { return b.kind(k, entity.CategoryAnimal) }

// Mob makes a hostile-looking mob of kind k.
func (b *Builder) Mob(k entity.Kind) *Builder { return b.kind(k, entity.CategoryMob) }

// Villager makes a villager; see Profession.
func (b *Builder) Villager() *Builder { return b.kind(entity.KindVillager, entity.CategoryVillager) }

// Name sets the display name, which is also the initial nametag.
func (b *Builder) Name(name string) *Builder {
	b.cfg.Name = name
	return b
}

// Skin sets the skin payload. Payloads under entity.MinSkinSize are
// replaced with a blank skin of that name.
func (b *Builder) Skin(name string, data []byte) *Builder {
	b.cfg.Skin = &entity.Skin{Name: name, Data: data}
	return b
}

// Scale sets the size multiplier. Without it the kind default applies.
func (b *Builder) Scale(s float64) *Builder {
	b.cfg.Scale = &s
	return b
}

// Rotation sets yaw and pitch in degrees.
func (b *Builder) Rotation(yaw, pitch float64) *Builder {
	b.cfg.Yaw, b.cfg.Pitch = yaw, pitch
	return b
}

// NameTagVisible toggles the nametag.
func (b *Builder) NameTagVisible(v bool) *Builder {
	b.cfg.Flags.NameTagVisible = v
	return b
}

// NameTagAlwaysVisible shows the nametag through walls.
func (b *Builder) NameTagAlwaysVisible(v bool) *Builder {
	b.cfg.Flags.NameTagAlwaysVisible = v
	return b
}

// LookAtPlayers turns the head towards the nearest player.
func (b *Builder) LookAtPlayers(v bool) *Builder {
	b.cfg.Flags.LookAtPlayers = v
	return b
}

// Collidable toggles collision.
func (b *Builder) Collidable(v bool) *Builder {
	b.cfg.Flags.Collidable = v
	return b
}

// OnInteract sets the interaction callback.
func (b *Builder) OnInteract(cb interaction.Callback) *Builder {
	b.cfg.OnInteract = cb
	return b
}

// InteractCooldown overrides the default per-player cooldown.
func (b *Builder) InteractCooldown(d time.Duration) *Builder {
	b.cfg.InteractCooldown = &d
	return b
}

// Particles adds an effect subscription firing every interval ticks.
func (b *Builder) Particles(spec effect.Spec, interval int) *Builder {
	b.cfg.Particles = append(b.cfg.Particles, Particle{Spec: spec, Interval: interval})
	return b
}

// Metadata stores an opaque key/value pair on the entity.
func (b *Builder) Metadata(key string, value any) *Builder {
	if b.cfg.Metadata == nil {
		b.cfg.Metadata = make(map[string]any)
	}
	b.cfg.Metadata[key] = value
	return b
}

// Profession sets the villager profession.
func (b *Builder) Profession(p int) *Builder {
	b.cfg.Profession = &p
	return b
}

// DynamicNametag parses template and binds it with vars.
func (b *Builder) DynamicNametag(template string, vars map[string]string) *Builder {
	if b.err != nil {
		return b
	}
	binding, err := nametag.NewBinding(template)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Nametag = binding.SetVariables(vars)
	return b
}

// Nametag uses a prepared binding.
func (b *Builder) Nametag(binding *nametag.Binding) *Builder {
	b.cfg.Nametag = binding
	return b
}

// Persistent saves the entity once it spawns.
func (b *Builder) Persistent(v bool) *Builder {
	b.cfg.Persistent = v
	return b
}

// Config returns the assembled configuration.
func (b *Builder) Config() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	cfg := b.cfg
	cfg.Metadata = maps.Clone(b.cfg.Metadata)
	return cfg, cfg.Validate()
}

// Spawn creates the entity.
func (b *Builder) Spawn(ctx context.Context) (*entity.Entity, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return b.r.Create(ctx, cfg)
}
