// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package registry

import (
	"fmt"
	"time"

	"github.com/npcforge/npcforge/internal/effect"
	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/nametag"
)

// Particle is one effect subscription requested at creation time.
type Particle struct {
	Spec     effect.Spec
	Interval int
}

// Config is everything Create needs: the entity itself plus the
// scheduler registrations that come with it.
type Config struct {
	entity.Config

	// OnInteract is invoked when a player interacts with the entity.
	OnInteract interaction.Callback
	// InteractCooldown overrides the dispatcher default when set.
	InteractCooldown *time.Duration
	Particles        []Particle
	// Nametag makes the nametag text dynamic.
	Nametag *nametag.Binding
	// Persistent saves the entity as soon as it is created.
	Persistent bool
}

// Validate checks the entity configuration and every registration.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	for i, p := range c.Particles {
		if err := p.Spec.Validate(); err != nil {
			return entity.ErrInvalidConfiguration(fmt.Sprintf("particles[%d]", i), err.Error())
		}
	}
	if c.InteractCooldown != nil && *c.InteractCooldown < 0 {
		return entity.ErrInvalidConfiguration("interact_cooldown", "must not be negative")
	}
	if c.InteractCooldown != nil && c.OnInteract == nil {
		return entity.ErrInvalidConfiguration("interact_cooldown", "set without an interact callback")
	}
	return nil
}
