// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/logging"
	"github.com/npcforge/npcforge/internal/storage"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedKeyField is the metadata key holding an entry's seed key.
const seedKeyField = "seed_key"

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// seedFile is the YAML document accepted by seed.
type seedFile struct {
	Entities []seedEntry `yaml:"entities"`
}

// seedEntry describes one entity. Key is a ULID that identifies the entry
// across runs.
type seedEntry struct {
	Key                  string         `yaml:"key"`
	Type                 string         `yaml:"type"`
	Name                 string         `yaml:"name"`
	World                string         `yaml:"world"`
	Position             [3]float64     `yaml:"position"`
	Yaw                  float64        `yaml:"yaw"`
	Pitch                float64        `yaml:"pitch"`
	Scale                *float64       `yaml:"scale"`
	NameTagVisible       *bool          `yaml:"nametag-visible"`
	NameTagAlwaysVisible *bool          `yaml:"nametag-always-visible"`
	LookAtPlayers        bool           `yaml:"look-at-players"`
	Collidable           *bool          `yaml:"collidable"`
	Profession           *int           `yaml:"profession"`
	Metadata             map[string]any `yaml:"metadata"`
}

// record converts the entry into a validated store record with id.
func (e seedEntry) record(id int64) (storage.Record, error) {
	key, err := ulid.Parse(e.Key)
	if err != nil {
		return storage.Record{}, oops.Code("SEED_INVALID").With("key", e.Key).Wrapf(err, "seed key must be a ULID")
	}
	kind, err := entity.ParseKind(e.Type)
	if err != nil {
		return storage.Record{}, err
	}

	flags := entity.DefaultFlags()
	if e.NameTagVisible != nil {
		flags.NameTagVisible = *e.NameTagVisible
	}
	if e.NameTagAlwaysVisible != nil {
		flags.NameTagAlwaysVisible = *e.NameTagAlwaysVisible
	}
	if e.Collidable != nil {
		flags.Collidable = *e.Collidable
	}
	flags.LookAtPlayers = e.LookAtPlayers
	scale := kind.DefaultScale()
	if e.Scale != nil {
		scale = *e.Scale
	}
	metadata := make(map[string]any, len(e.Metadata)+1)
	maps.Copy(metadata, e.Metadata)
	metadata[seedKeyField] = key.String()

	rec := storage.Record{
		ID:                   id,
		Type:                 string(kind),
		Name:                 e.Name,
		Position:             storage.Position{X: e.Position[0], Y: e.Position[1], Z: e.Position[2], World: e.World},
		Rotation:             storage.Rotation{Yaw: e.Yaw, Pitch: e.Pitch},
		Scale:                scale,
		NameTagVisible:       flags.NameTagVisible,
		NameTagAlwaysVisible: flags.NameTagAlwaysVisible,
		LookAtPlayers:        flags.LookAtPlayers,
		CanCollide:           flags.Collidable,
		Metadata:             metadata,
		Profession:           e.Profession,
	}
	if _, err := rec.Config(); err != nil {
		return storage.Record{}, oops.Code("SEED_INVALID").With("key", e.Key).Wrap(err)
	}
	return rec, nil
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Add entities from a YAML file to the store",
		Long: `Writes the entities listed in a YAML file to the configured store.
Each entry carries a ULID key; entries whose key is already stored are
skipped, so running the command repeatedly creates no duplicates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg, nil)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for store operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string, cfg *seedConfig, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.LogOutput == nil {
		deps.LogOutput = cmd.ErrOrStderr()
	}

	appCfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.New(version, appCfg.LogFormat, slog.LevelInfo, deps.LogOutput)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("path", args[0]).Wrap(err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("SEED_INVALID").With("path", args[0]).Wrapf(err, "parsing seed file")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	store, closeStore, err := deps.StoreOpener(ctx, appCfg, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", appCfg.StorageBackend).Wrap(err)
	}
	defer closeStore()

	existing, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	seeded := make(map[string]bool, len(existing))
	var maxID int64
	for _, rec := range existing {
		maxID = max(maxID, rec.ID)
		if key, ok := rec.Metadata[seedKeyField].(string); ok {
			seeded[key] = true
		}
	}

	created, skipped := 0, 0
	inFile := make(map[string]bool, len(doc.Entities))
	for _, entry := range doc.Entities {
		if inFile[entry.Key] {
			return oops.Code("SEED_INVALID").With("key", entry.Key).Errorf("duplicate seed key in %s", args[0])
		}
		inFile[entry.Key] = true

		rec, err := entry.record(maxID + 1)
		if err != nil {
			return err
		}
		key, _ := rec.Metadata[seedKeyField].(string)
		if seeded[key] {
			cmd.Printf("Skipping %s (%s): already seeded\n", entry.Name, key)
			skipped++
			continue
		}
		if err := store.Save(ctx, rec); err != nil {
			return oops.Code("SEED_FAILED").With("key", key).Wrap(err)
		}
		maxID = rec.ID
		created++
		logger.Info("seeded entity", "entity_id", rec.ID, "type", rec.Type, "seed_key", key)
	}

	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}
