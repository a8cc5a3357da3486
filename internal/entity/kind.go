// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

import (
	"slices"
	"strings"
)

// Kind identifies the concrete actor variant. The set is closed.
type Kind string

// Supported kinds.
const (
	KindHuman        Kind = "human"
	KindFloatingText Kind = "floating_text"
	KindPig          Kind = "pig"
	KindCow          Kind = "cow"
	KindSheep        Kind = "sheep"
	KindChicken      Kind = "chicken"
	KindZombie       Kind = "zombie"
	KindSkeleton     Kind = "skeleton"
	KindCreeper      Kind = "creeper"
	KindVillager     Kind = "villager"
)

// Category groups kinds that share construction rules.
type Category uint8

// Kind categories.
const (
	CategoryHuman Category = iota + 1
	CategoryFloatingText
	CategoryAnimal
	CategoryMob
	CategoryVillager
)

func (c Category) String() string {
	switch c {
	case CategoryHuman:
		return "human"
	case CategoryFloatingText:
		return "floating_text"
	case CategoryAnimal:
		return "animal"
	case CategoryMob:
		return "mob"
	case CategoryVillager:
		return "villager"
	default:
		return "unknown"
	}
}

// kindInfo holds the per-kind behaviour table.
type kindInfo struct {
	category     Category
	displayName  string
	defaultScale float64
	// fixed kinds ignore look-at and collision flags and always show their tag.
	fixed bool
}

var kindTable = map[Kind]kindInfo{
	KindHuman:        {category: CategoryHuman, displayName: "Human", defaultScale: 1.0},
	KindFloatingText: {category: CategoryFloatingText, displayName: "Floating Text", defaultScale: 0.01, fixed: true},
	KindPig:          {category: CategoryAnimal, displayName: "Pig", defaultScale: 1.0},
	KindCow:          {category: CategoryAnimal, displayName: "Cow", defaultScale: 1.2},
	KindSheep:        {category: CategoryAnimal, displayName: "Sheep", defaultScale: 0.9},
	KindChicken:      {category: CategoryAnimal, displayName: "Chicken", defaultScale: 0.7},
	KindZombie:       {category: CategoryMob, displayName: "Zombie", defaultScale: 1.0},
	KindSkeleton:     {category: CategoryMob, displayName: "Skeleton", defaultScale: 1.0},
	KindCreeper:      {category: CategoryMob, displayName: "Creeper", defaultScale: 0.9},
	KindVillager:     {category: CategoryVillager, displayName: "Villager", defaultScale: 1.0},
}

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindTable[k]; !ok {
		return "", ErrInvalidConfiguration("type", "unknown entity type: "+s)
	}
	return k, nil
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// Category returns the category k belongs to, or zero for unknown kinds.
func (k Kind) Category() Category {
	return kindTable[k].category
}

// DisplayName returns a human-readable name.
func (k Kind) DisplayName() string {
	if info, ok := kindTable[k]; ok {
		return info.displayName
	}
	return string(k)
}

// DefaultScale returns the scale a kind spawns with when none is configured.
func (k Kind) DefaultScale() float64 {
	if info, ok := kindTable[k]; ok {
		return info.defaultScale
	}
	return 1.0
}

// Fixed reports whether the kind ignores look-at and collision settings.
func (k Kind) Fixed() bool {
	return kindTable[k].fixed
}

// KindsIn lists the kinds of a category in sorted order.
func KindsIn(c Category) []Kind {
	var out []Kind
	for k, info := range kindTable {
		if info.category == c {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// RequireCategory returns an error unless k belongs to c.
func RequireCategory(k Kind, c Category) error {
	if k.Category() != c {
		return ErrInvalidConfiguration("type",
			"entity type "+string(k)+" is not a valid "+c.String())
	}
	return nil
}

// Villager professions.
const (
	ProfessionFarmer = iota
	ProfessionLibrarian
	ProfessionPriest
	ProfessionBlacksmith
	ProfessionButcher
	ProfessionNitwit
)

var professionNames = [...]string{"Farmer", "Librarian", "Priest", "Blacksmith", "Butcher", "Nitwit"}

// ProfessionName returns the display name of a villager profession.
func ProfessionName(p int) string {
	if p < ProfessionFarmer || p > ProfessionNitwit {
		return "Unknown"
	}
	return professionNames[p]
}

// ValidateProfession checks a villager profession index.
func ValidateProfession(p int) error {
	if p < ProfessionFarmer || p > ProfessionNitwit {
		return ErrInvalidConfiguration("profession", "profession must be between 0 and 5")
	}
	return nil
}
