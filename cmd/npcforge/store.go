// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/logging"
	"github.com/npcforge/npcforge/internal/storage"
)

// openStore opens the backend named by cfg. Postgres stores must be fully
// migrated and retry transient failures.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	logger = logging.Component(logger, "storage")
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := storage.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		status, err := pg.SchemaStatus(ctx)
		if err == nil {
			err = status.Err()
		}
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		return storage.WithRetry(pg, storage.DefaultRetryAttempts, storage.DefaultRetryBase), pg.Close, nil
	default:
		js := storage.NewJSONStore(cfg.ResolvedStorePath(), storage.WithStoreLogger(logger))
		return js, func() {}, nil
	}
}
