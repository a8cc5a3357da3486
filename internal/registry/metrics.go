// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EntitiesSpawned counts successful creations and restores by entity type.
var EntitiesSpawned = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npcforge_entities_spawned_total",
		Help: "Total number of entities spawned by type",
	},
	[]string{"type"},
)

// SpawnFailures counts rejected creations by reason.
var SpawnFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npcforge_spawn_failures_total",
		Help: "Total number of failed entity spawns by reason",
	},
	[]string{"reason"},
)

// EntitiesActive tracks the number of live entities.
var EntitiesActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "npcforge_entities_active",
		Help: "Number of live entities",
	},
)

// PersistenceFailures counts store errors by operation.
var PersistenceFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npcforge_persistence_failures_total",
		Help: "Total number of failed store operations",
	},
	[]string{"operation"},
)

// RegisterMetrics registers registry metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EntitiesSpawned)
	reg.MustRegister(SpawnFailures)
	reg.MustRegister(EntitiesActive)
	reg.MustRegister(PersistenceFailures)
}
