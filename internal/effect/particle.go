// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package effect schedules decorative particle emissions around entities.
package effect

import (
	"slices"

	"github.com/samber/oops"
)

// CodeParticleInvalid marks a rejected particle spec.
const CodeParticleInvalid = "PARTICLE_INVALID"

// ParticleType names a particle the host knows how to emit.
type ParticleType string

// Known particle types.
const (
	Heart         ParticleType = "heart"
	HappyVillager ParticleType = "happy_villager"
	AngryVillager ParticleType = "angry_villager"
	Enchant       ParticleType = "enchant"
	Critical      ParticleType = "critical"
	Smoke         ParticleType = "smoke"
	Explode       ParticleType = "explode"
	Flame         ParticleType = "flame"
	Lava          ParticleType = "lava"
	DripWater     ParticleType = "drip_water"
	Portal        ParticleType = "portal"
	Teleport      ParticleType = "teleport"
	Redstone      ParticleType = "redstone"
	DustRed       ParticleType = "dust_red"
	DustGreen     ParticleType = "dust_green"
	DustBlue      ParticleType = "dust_blue"
	DustYellow    ParticleType = "dust_yellow"
	DustPurple    ParticleType = "dust_purple"
	DustWhite     ParticleType = "dust_white"
	DustOrange    ParticleType = "dust_orange"
)

type particleInfo struct {
	category    string
	displayName string
	suggested   string
}

var catalog = map[ParticleType]particleInfo{
	Heart:         {"positive", "Heart", "Love, healing, friendly NPCs"},
	HappyVillager: {"positive", "Happy Villager", "Shops, success, positive feedback"},
	Enchant:       {"positive", "Enchantment", "Magic shops, quest givers, mystical NPCs"},
	Critical:      {"positive", "Critical Hit", "Combat NPCs, training dummies"},
	AngryVillager: {"negative", "Angry Villager", "Guards, warnings, denied access"},
	Smoke:         {"negative", "Smoke", "Damaged NPCs, fire effects"},
	Explode:       {"negative", "Explosion", "Danger zones, explosive NPCs"},
	Flame:         {"elemental", "Flame", "Fire NPCs, hot zones, forges"},
	Lava:          {"elemental", "Lava", "Nether NPCs, extreme heat"},
	DripWater:     {"elemental", "Water Drip", "Water zones, rain effects"},
	Portal:        {"magical", "Portal", "Teleporters, mystical portals"},
	Teleport:      {"magical", "Teleport", "Teleportation NPCs, warpers"},
	Redstone:      {"magical", "Redstone", "Tech NPCs, machinery"},
	DustRed:       {"colored", "Red Dust", "Ruby shops, blood effects, danger"},
	DustGreen:     {"colored", "Green Dust", "Emerald shops, nature, poison"},
	DustBlue:      {"colored", "Blue Dust", "Diamond shops, ice, water"},
	DustYellow:    {"colored", "Yellow Dust", "Gold shops, light, electricity"},
	DustPurple:    {"colored", "Purple Dust", "Amethyst, magic, mystery"},
	DustWhite:     {"colored", "White Dust", "Snow, purity, holiness"},
	DustOrange:    {"colored", "Orange Dust", "Fire, energy, enthusiasm"},
}

// Valid reports whether p is in the catalog.
func (p ParticleType) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Category returns the catalog grouping of p.
func (p ParticleType) Category() string {
	return catalog[p].category
}

// DisplayName returns a human-readable name.
func (p ParticleType) DisplayName() string {
	if info, ok := catalog[p]; ok {
		return info.displayName
	}
	return "Unknown"
}

// SuggestedUse describes where the particle fits.
func (p ParticleType) SuggestedUse() string {
	if info, ok := catalog[p]; ok {
		return info.suggested
	}
	return "General decoration"
}

// ParticleTypes returns every known type in sorted order.
func ParticleTypes() []ParticleType {
	out := make([]ParticleType, 0, len(catalog))
	for p := range catalog {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ParticlesIn returns the sorted types of one category.
func ParticlesIn(category string) []ParticleType {
	var out []ParticleType
	for p, info := range catalog {
		if info.category == category {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Pattern is the spatial arrangement of one emission.
type Pattern string

// Emission patterns.
const (
	PatternSingle   Pattern = "single"
	PatternCircle   Pattern = "circle"
	PatternSpiral   Pattern = "spiral"
	PatternRain     Pattern = "rain"
	PatternFountain Pattern = "fountain"
)

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternSingle, PatternCircle, PatternSpiral, PatternRain, PatternFountain:
		return true
	}
	return false
}

// Density bounds.
const (
	MinDensity = 1
	MaxDensity = 10
)

// Spec describes one particle effect.
type Spec struct {
	Type    ParticleType
	Pattern Pattern
	Density int
	Radius  float64
	Height  float64
}

// DefaultSpec returns a circle of five particles of type p.
func DefaultSpec(p ParticleType) Spec {
	return Spec{Type: p, Pattern: PatternCircle, Density: 5, Radius: 1.0, Height: 2.0}
}

// Normalize clamps density and fills empty fields with defaults.
func (s Spec) Normalize() Spec {
	if s.Pattern == "" {
		s.Pattern = PatternCircle
	}
	if s.Density == 0 {
		s.Density = 5
	}
	s.Density = min(max(s.Density, MinDensity), MaxDensity)
	if s.Radius == 0 {
		s.Radius = 1.0
	}
	if s.Height == 0 {
		s.Height = 2.0
	}
	return s
}

// Validate rejects unknown types and patterns.
func (s Spec) Validate() error {
	if !s.Type.Valid() {
		return oops.Code(CodeParticleInvalid).
			With("particle", string(s.Type)).
			Errorf("unknown particle type %q", s.Type)
	}
	if s.Pattern != "" && !s.Pattern.Valid() {
		return oops.Code(CodeParticleInvalid).
			With("pattern", string(s.Pattern)).
			Errorf("unknown particle pattern %q", s.Pattern)
	}
	if s.Radius < 0 || s.Height < 0 {
		return oops.Code(CodeParticleInvalid).Errorf("radius and height must not be negative")
	}
	return nil
}
