// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package logging builds the daemon's slog logger. Records carry the
// service identity and, when the context holds a span, its trace ids.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Service is the service attribute attached to every record.
const Service = "npcforge"

type spanHandler struct {
	next    slog.Handler
	version string
}

func (h *spanHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", Service),
		slog.String("version", h.version),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs), version: h.version}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name), version: h.version}
}

// New returns a logger writing format ("json" or "text") to w at level.
// A nil w writes to stderr; any format other than "text" is JSON.
func New(version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&spanHandler{next: base, version: version})
}

// Component scopes logger to a named subsystem.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

// SetDefault installs a new logger as the slog default and returns it.
func SetDefault(version, format string, level slog.Level) *slog.Logger {
	logger := New(version, format, level, nil)
	slog.SetDefault(logger)
	return logger
}
