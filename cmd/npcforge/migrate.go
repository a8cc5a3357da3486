// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/storage"
)

// migrator is the subset of storage.Migrator used by the migrate commands.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (storage.SchemaStatus, error)
	Force(version int) error
	Close() error
}

// migratorFactory opens a migrator; tests replace it.
var migratorFactory = func(databaseURL string) (migrator, error) {
	return storage.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies every pending migration.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL entity store schema",
		Long: `Apply or roll back migrations of the entities table used by the
postgres storage backend. Requires --database-url.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, migrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, migrateUp)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping stored entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(cmd *cobra.Command, m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations, or roll back n when negative",
		Long: `Apply the next n pending migrations, or roll back the last -n when n
is negative. Separate a negative count with --, as in "migrate steps -- -1".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(cmd *cobra.Command, m migrator) error {
				return migrateSteps(cmd, m, n)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, migrateVersion)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(cmd *cobra.Command, m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*cobra.Command, migrator) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code(config.CodeConfigInvalid).With("key", "database-url").Errorf("database-url is required")
	}

	m, err := migratorFactory(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()
	return fn(cmd, m)
}

func migrateUp(cmd *cobra.Command, m migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	for _, mig := range status.Pending {
		cmd.Printf("Applying %s\n", mig)
	}
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateSteps(cmd *cobra.Command, m migrator, n int) error {
	if err := m.Steps(n); err != nil {
		return err
	}
	status, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Schema version: %d\n", status.Version)
	return nil
}

func migrateVersion(cmd *cobra.Command, m migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}
	if status.Dirty {
		cmd.Printf("Schema version: %d (dirty)\n", status.Version)
	} else {
		cmd.Printf("Schema version: %d\n", status.Version)
	}
	for _, mig := range status.Applied {
		cmd.Printf("  applied  %s\n", mig)
	}
	for _, mig := range status.Pending {
		cmd.Printf("  pending  %s\n", mig)
	}
	return nil
}

// parseForceVersion parses the force argument as a non-negative integer.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrapf(err, "version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

// parseSteps parses a non-zero, possibly negative, step count.
func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Wrapf(err, "steps must be an integer")
	}
	if n == 0 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("steps must not be zero")
	}
	return n, nil
}
