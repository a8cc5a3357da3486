// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package errutil holds error logging and assertion helpers shared across
// packages.
package errutil

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// CodePanic marks errors recovered from a panic.
const CodePanic = "PANIC"

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error, args ...any) {
	attrs := append([]any{}, args...)
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	logger.Error(msg, attrs...)
}

// Recover logs a recovered panic. It must be deferred directly:
//
//	defer errutil.Recover(logger, "callback panicked", "entity_id", id)
func Recover(logger *slog.Logger, msg string, args ...any) {
	if r := recover(); r != nil {
		LogError(logger, msg, PanicError(r), args...)
	}
}

// PanicError converts a recovered value into a coded error.
func PanicError(r any) error {
	if err, ok := r.(error); ok {
		return oops.Code(CodePanic).Wrap(err)
	}
	return oops.Code(CodePanic).Errorf("%s", fmt.Sprint(r))
}
