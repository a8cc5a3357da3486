// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool used by PostgresStore.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps records as JSONB rows in the entities table.
// The schema is managed by Migrator.
type PostgresStore struct {
	pool   poolIface
	logger *slog.Logger
	close  func()
}

// NewPostgresStore wraps an existing pool. A nil logger uses slog.Default.
func NewPostgresStore(pool poolIface, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger, close: func() {}}
}

// OpenPostgres connects a pool to dsn.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code(CodeStoreReadFailed).With("operation", "connect").Wrap(err)
	}
	s := NewPostgresStore(pool, logger)
	s.close = pool.Close
	return s, nil
}

// Close releases the pool when this store opened it.
func (s *PostgresStore) Close() { s.close() }

// SchemaStatus reads the migration version recorded in the database.
// A database without the migrations table is at version 0.
func (s *PostgresStore) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	var (
		version int64
		dirty   bool
	)
	err := s.pool.QueryRow(ctx, `SELECT version, dirty FROM `+migrationTable+` LIMIT 1`).Scan(&version, &dirty)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable:
		version, dirty = 0, false
	case err != nil:
		return SchemaStatus{}, oops.Code(CodeStoreReadFailed).With("operation", "read schema version").Wrap(err)
	}
	return SchemaStatusAt(uint(version), dirty)
}

// classify maps driver errors onto store codes.
func classify(err error, code, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code(CodeStoreNotMigrated).
			With("operation", operation).
			Hint("run `npcforge migrate up`").
			Wrap(err)
	}
	return oops.Code(code).With("operation", operation).Wrap(err)
}

// Save upserts one record.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return oops.Code(CodeStoreWriteFailed).With("id", rec.ID).Wrap(err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (id, record, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		rec.ID, string(body))
	if err != nil {
		return oops.With("id", rec.ID).Wrap(classify(err, CodeStoreWriteFailed, "save entity"))
	}
	return nil
}

// Delete removes one row and reports whether it existed.
func (s *PostgresStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return false, oops.With("id", id).Wrap(classify(err, CodeStoreWriteFailed, "delete entity"))
	}
	return tag.RowsAffected() > 0, nil
}

// LoadAll returns every decodable row ordered by id. Rows failing schema
// validation are logged and skipped.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, record FROM entities ORDER BY id`)
	if err != nil {
		return nil, classify(err, CodeStoreReadFailed, "load entities")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, oops.Code(CodeStoreReadFailed).With("operation", "scan entity").Wrap(err)
		}
		rec, err := DecodeRecord(id, raw)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable entity record", "id", id, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, CodeStoreReadFailed, "iterate entities")
	}
	return out, nil
}
