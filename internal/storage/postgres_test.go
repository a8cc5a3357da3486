// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/pkg/errutil"
)

func pigRecord(t *testing.T, id entity.ID) Record {
	t.Helper()
	e, err := entity.New(id, entity.Config{Kind: entity.KindPig, World: "farm", Position: mgl64.Vec3{1, 2, 3}, Flags: entity.DefaultFlags()})
	require.NoError(t, err)
	return FromEntity(e)
}

func TestPostgresStore_Save(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		errCode string
	}{
		{
			name: "upsert",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO entities`).
					WithArgs(int64(4), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "table missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO entities`).
					WithArgs(int64(4), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
			},
			errCode: CodeStoreNotMigrated,
		},
		{
			name: "driver failure",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO entities`).
					WithArgs(int64(4), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection reset"))
			},
			errCode: CodeStoreWriteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			err = NewPostgresStore(mock, nil).Save(context.Background(), pigRecord(t, 4))
			if tt.errCode != "" {
				errutil.AssertErrorCode(t, err, tt.errCode)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM entities`).WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM entities`).WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	s := NewPostgresStore(mock, nil)
	existed, err := s.Delete(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	good, err := json.Marshal(pigRecord(t, 2))
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"id", "record"}).
		AddRow(int64(2), good).
		AddRow(int64(5), []byte(`{"type":"dragon"}`))
	mock.ExpectQuery(`SELECT id, record FROM entities`).WillReturnRows(rows)

	recs, err := NewPostgresStore(mock, nil).LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].ID)
	assert.Equal(t, "farm", recs[0].Position.World)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadAllNotMigrated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, record FROM entities`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})

	_, err = NewPostgresStore(mock, nil).LoadAll(context.Background())
	errutil.AssertErrorCode(t, err, CodeStoreNotMigrated)
}

func TestPostgresStore_SchemaStatus(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		version uint
		pending int
		errCode string
	}{
		{
			name: "current",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
					WillReturnRows(pgxmock.NewRows([]string{"version", "dirty"}).AddRow(int64(2), false))
			},
			version: 2,
		},
		{
			name: "behind",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
					WillReturnRows(pgxmock.NewRows([]string{"version", "dirty"}).AddRow(int64(1), false))
			},
			version: 1,
			pending: 1,
		},
		{
			name: "never migrated",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
			},
			pending: 2,
		},
		{
			name: "driver failure",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
					WillReturnError(errors.New("connection reset"))
			},
			errCode: CodeStoreReadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			st, err := NewPostgresStore(mock, nil).SchemaStatus(context.Background())
			if tt.errCode != "" {
				errutil.AssertErrorCode(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, st.Version)
			assert.Len(t, st.Pending, tt.pending)
			if tt.pending > 0 {
				errutil.AssertErrorCode(t, st.Err(), CodeStoreNotMigrated)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
