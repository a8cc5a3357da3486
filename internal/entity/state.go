// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

// State is the lifecycle stage of an entity.
type State uint8

// Lifecycle states. Removed is terminal.
const (
	StateConfiguring State = iota
	StateActive
	StateDespawning
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateActive:
		return "active"
	case StateDespawning:
		return "despawning"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// next lists the legal successor of each state.
var next = map[State]State{
	StateConfiguring: StateActive,
	StateActive:      StateDespawning,
	StateDespawning:  StateRemoved,
}

// canMove reports whether from→to is legal. Configuring may also jump
// straight to Removed when a spawn is vetoed.
func canMove(from, to State) bool {
	if from == StateConfiguring && to == StateRemoved {
		return true
	}
	n, ok := next[from]
	return ok && n == to
}
