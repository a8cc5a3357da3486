// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

import (
	"github.com/samber/oops"
)

// Error codes for entity construction and lifecycle failures.
const (
	CodeInvalidConfiguration   = "INVALID_CONFIGURATION"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
)

// ErrInvalidConfiguration creates an error for a rejected configuration field.
func ErrInvalidConfiguration(field, message string) error {
	return oops.Code(CodeInvalidConfiguration).
		With("field", field).
		Errorf("invalid %s: %s", field, message)
}

// ErrInvalidTransition creates an error for an illegal lifecycle change.
func ErrInvalidTransition(id ID, from, to State) error {
	return oops.Code(CodeInvalidStateTransition).
		With("entity_id", int64(id)).
		With("from", from.String()).
		With("to", to.String()).
		Errorf("entity %d cannot move from %s to %s", id, from, to)
}
