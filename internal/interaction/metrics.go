// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package interaction

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InteractionOutcomes counts dispatches by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var InteractionOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npcforge_interactions_total",
		Help: "Total number of interaction dispatches by outcome",
	},
	[]string{"outcome"},
)

// CooldownEntries tracks how many cooldown entries are stored.
var CooldownEntries = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "npcforge_cooldown_entries",
		Help: "Number of stored interaction cooldown entries",
	},
)

// RegisterMetrics registers interaction package metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(InteractionOutcomes)
	reg.MustRegister(CooldownEntries)
}
