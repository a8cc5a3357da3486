// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

// Error codes for persistence failures.
const (
	CodeStoreReadFailed         = "STORE_READ_FAILED"
	CodeStoreWriteFailed        = "STORE_WRITE_FAILED"
	CodeStoreNotMigrated        = "STORE_NOT_MIGRATED"
	CodeStoreVersionUnsupported = "STORE_VERSION_UNSUPPORTED"
	CodeRecordInvalid           = "RECORD_INVALID"
)
