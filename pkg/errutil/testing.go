// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test unless err is a non-nil oops error.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode checks the effective code of err. Wrapped errors report
// their deepest code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext checks that err carries key with value in its context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	got, ok := requireOops(t, err).Context()[key]
	if assert.True(t, ok, "context key %q missing from %v", key, err) {
		assert.Equal(t, value, got, "context key %q", key)
	}
}
