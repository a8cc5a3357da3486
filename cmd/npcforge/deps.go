// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/observability"
	"github.com/npcforge/npcforge/internal/storage"
)

// RunDeps contains injectable dependencies for the run command.
// Nil fields use their default implementations.
type RunDeps struct {
	// StoreOpener opens the configured entity store and returns a closer.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, func(), error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger, regs ...observability.Registration) ObservabilityServer

	// LogOutput receives log records.
	// Default: the command's stderr
	LogOutput io.Writer
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
