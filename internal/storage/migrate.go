// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir  = "migrations"
	upSuffix       = ".up.sql"
	migrationTable = "schema_migrations"
)

// Migration is one embedded step of the entities schema.
type Migration struct {
	Version uint
	Name    string
}

// String returns the NNNNNN_name form used by the migration files.
func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

var embeddedMigrations = sync.OnceValues(func() ([]Migration, error) {
	return parseMigrations(migrationsFS)
})

func parseMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}
	var out []Migration
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), upSuffix)
		if !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		v, err := strconv.ParseUint(num, 10, 32)
		if !ok || err != nil || v == 0 || name == "" {
			return nil, oops.Code("MIGRATION_LIST_FAILED").
				With("file", entry.Name()).
				Errorf("migration file must be named NNNNNN_name%s", upSuffix)
		}
		out = append(out, Migration{Version: uint(v), Name: name})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// Migrations returns the embedded schema steps in version order.
func Migrations() ([]Migration, error) {
	all, err := embeddedMigrations()
	return slices.Clone(all), err
}

// SchemaStatus describes how far a database is through the embedded
// migrations.
type SchemaStatus struct {
	Version uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// SchemaStatusAt classifies the embedded migrations against version.
func SchemaStatusAt(version uint, dirty bool) (SchemaStatus, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return SchemaStatus{}, err
	}
	st := SchemaStatus{Version: version, Dirty: dirty}
	for _, m := range all {
		if m.Version <= version {
			st.Applied = append(st.Applied, m)
		} else {
			st.Pending = append(st.Pending, m)
		}
	}
	return st, nil
}

// Err returns STORE_NOT_MIGRATED while migrations are pending or the last
// one failed halfway.
func (s SchemaStatus) Err() error {
	switch {
	case s.Dirty:
		return oops.Code(CodeStoreNotMigrated).
			With("version", s.Version).
			Hint("repair the failed migration, then run `npcforge migrate force <version>`").
			Errorf("entities schema is dirty at version %d", s.Version)
	case len(s.Pending) > 0:
		return oops.Code(CodeStoreNotMigrated).
			With("version", s.Version).
			With("pending", len(s.Pending)).
			Hint("run `npcforge migrate up`").
			Errorf("entities schema has %d pending migration(s)", len(s.Pending))
	}
	return nil
}

// migrateIface abstracts golang-migrate so the Migrator can be tested
// without a database.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded migrations to a PostgreSQL database.
type Migrator struct {
	m migrateIface
}

// migrateURL maps postgres URLs onto the pgx5 scheme registered by the
// golang-migrate pgx/v5 driver.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// NewMigrator creates a Migrator for databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.m.Up()); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration, dropping all stored entities.
func (m *Migrator) Down() error {
	if err := ignoreNoChange(m.m.Down()); err != nil {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations, or rolls back -n when n is negative.
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return oops.Code("INVALID_STEPS").Errorf("step count must not be zero")
	}
	if err := ignoreNoChange(m.m.Steps(n)); err != nil {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Status reports the applied version against the embedded migrations.
// A database that was never migrated is at version 0.
func (m *Migrator) Status() (SchemaStatus, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version, dirty, err = 0, false, nil
	}
	if err != nil {
		return SchemaStatus{}, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return SchemaStatusAt(version, dirty)
}

// Force records version as applied without running it, clearing the dirty
// flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
