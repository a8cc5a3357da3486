// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package registry

// Error codes for spawn failures.
const (
	CodeSpawnCancelled = "SPAWN_CANCELLED"
	CodeAnnounceFailed = "ANNOUNCE_FAILED"
)
