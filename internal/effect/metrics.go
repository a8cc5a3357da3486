// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package effect

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EffectFirings counts pattern emissions by particle type.
// Use RegisterMetrics to register this with a Prometheus registry.
var EffectFirings = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npcforge_effect_firings_total",
		Help: "Total number of particle effect firings",
	},
	[]string{"particle"},
)

// EffectSubscriptions tracks how many subscriptions are active.
var EffectSubscriptions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "npcforge_effect_subscriptions",
		Help: "Number of active particle effect subscriptions",
	},
)

// RegisterMetrics registers effect package metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EffectFirings)
	reg.MustRegister(EffectSubscriptions)
}
