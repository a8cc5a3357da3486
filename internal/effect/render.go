// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package effect

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/npcforge/npcforge/internal/entity"
)

// Renderer emits one firing of a spec around an entity. phase is in [0,1)
// and advances with the scheduler tick so patterns appear to rotate.
type Renderer interface {
	Render(e *entity.Entity, spec Spec, phase float64)
}

// ParticleSink receives individual particles.
type ParticleSink interface {
	AddParticle(world string, pos mgl64.Vec3, particle string)
}

// PatternRenderer lays particles out according to the spec pattern.
type PatternRenderer struct {
	sink ParticleSink
	rng  *rand.Rand
}

// NewPatternRenderer creates a renderer writing to sink. A nil rng uses a
// randomly seeded source.
func NewPatternRenderer(sink ParticleSink, rng *rand.Rand) *PatternRenderer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PatternRenderer{sink: sink, rng: rng}
}

// Render implements Renderer.
func (r *PatternRenderer) Render(e *entity.Entity, spec Spec, phase float64) {
	spec = spec.Normalize()
	for _, p := range r.Points(spec, e.Position(), phase) {
		r.sink.AddParticle(e.World(), p, string(spec.Type))
	}
}

// Points computes particle positions for one firing around center.
func (r *PatternRenderer) Points(spec Spec, center mgl64.Vec3, phase float64) []mgl64.Vec3 {
	spec = spec.Normalize()
	n := spec.Density
	offset := phase * 2 * math.Pi

	switch spec.Pattern {
	case PatternSingle:
		return []mgl64.Vec3{center.Add(mgl64.Vec3{0, 1, 0})}

	case PatternSpiral:
		out := make([]mgl64.Vec3, 0, n)
		step := 4 * math.Pi / float64(n)
		rise := spec.Height / float64(n)
		for i := range n {
			out = append(out, center.Add(ring(step*float64(i)+offset, spec.Radius, rise*float64(i))))
		}
		return out

	case PatternRain:
		out := make([]mgl64.Vec3, 0, n)
		for range n {
			angle := mgl64.DegToRad(float64(r.rng.IntN(361)))
			dist := float64(r.rng.IntN(101)) / 100 * spec.Radius
			y := spec.Height + float64(r.rng.IntN(51))/100
			out = append(out, center.Add(ring(angle, dist, y)))
		}
		return out

	case PatternFountain:
		out := make([]mgl64.Vec3, 0, n)
		for range n {
			angle := mgl64.DegToRad(float64(r.rng.IntN(361)))
			dist := float64(30+r.rng.IntN(51)) / 100 * spec.Radius
			y := 0.5 + float64(r.rng.IntN(31))/100
			out = append(out, center.Add(ring(angle, dist, y)))
		}
		return out

	default:
		out := make([]mgl64.Vec3, 0, n)
		step := 2 * math.Pi / float64(n)
		for i := range n {
			out = append(out, center.Add(ring(step*float64(i)+offset, spec.Radius, 1)))
		}
		return out
	}
}

// ring returns the offset of a point on a horizontal circle.
func ring(angle, radius, y float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Cos(angle) * radius, y, math.Sin(angle) * radius}
}
