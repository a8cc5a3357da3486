// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Look-at tuning.
const (
	LookRange       = 8.0
	PlayerEyeHeight = 1.62
)

// ImmobilityGuard pins an entity to the position it spawned at.
type ImmobilityGuard struct {
	anchor  mgl64.Vec3
	enabled bool
}

// NewImmobilityGuard creates an enabled guard anchored at pos.
func NewImmobilityGuard(pos mgl64.Vec3) ImmobilityGuard {
	return ImmobilityGuard{anchor: pos, enabled: true}
}

// Anchor returns the pinned position.
func (g ImmobilityGuard) Anchor() mgl64.Vec3 { return g.anchor }

// Enabled reports whether the guard is active.
func (g ImmobilityGuard) Enabled() bool { return g.enabled }

// Enforce returns the corrected position and whether a correction was needed.
func (g ImmobilityGuard) Enforce(current mgl64.Vec3) (mgl64.Vec3, bool) {
	if !g.enabled || current.ApproxEqual(g.anchor) {
		return current, false
	}
	return g.anchor, true
}

// RotationHelper computes head rotation toward nearby players.
type RotationHelper struct{}

// Nearest returns the closest target strictly within maxDist of from.
func (RotationHelper) Nearest(from mgl64.Vec3, targets []mgl64.Vec3, maxDist float64) (mgl64.Vec3, bool) {
	best := maxDist * maxDist
	var found mgl64.Vec3
	ok := false
	for _, t := range targets {
		if d := t.Sub(from).LenSqr(); d < best {
			best = d
			found = t
			ok = true
		}
	}
	return found, ok
}

// LookAt returns the yaw and pitch in degrees for facing target from pos.
func (RotationHelper) LookAt(pos, target mgl64.Vec3) (yaw, pitch float64) {
	d := target.Sub(pos)
	yaw = math.Atan2(d.Z(), d.X())/math.Pi*180 - 90
	horizontal := math.Hypot(d.X(), d.Z())
	pitch = -math.Atan2(d.Y(), horizontal) / math.Pi * 180
	return yaw, pitch
}

// FacePlayers turns toward the nearest player head within LookRange.
// players are feet positions. It reports whether the rotation changed.
func (r RotationHelper) FacePlayers(pos mgl64.Vec3, players []mgl64.Vec3) (yaw, pitch float64, ok bool) {
	nearest, found := r.Nearest(pos, players, LookRange)
	if !found {
		return 0, 0, false
	}
	yaw, pitch = r.LookAt(pos, nearest.Add(mgl64.Vec3{0, PlayerEyeHeight, 0}))
	return yaw, pitch, true
}
