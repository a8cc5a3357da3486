// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/storage"
	"github.com/npcforge/npcforge/pkg/errutil"
)

const seedYAML = `
entities:
  - key: 01HZN3XS000000000000000001
    type: villager
    name: Smith
    world: world
    position: [10, 64, -3]
    profession: 3
    look-at-players: true
    metadata:
      shop: weapons
  - key: 01HZN3XS000000000000000002
    type: floating_text
    name: Welcome!
    world: world
    position: [0, 70, 0]
    nametag-always-visible: false
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunSeed_CreatesThenSkips(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "entities.json")
	seedPath := writeSeed(t, seedYAML)
	cfg := &seedConfig{timeout: 30 * time.Second}

	cmd, out, _ := newTestCmd(t, "--store-path", storePath)
	require.NoError(t, runSeed(cmd, []string{seedPath}, cfg, nil))
	assert.Contains(t, out.String(), "2 created, 0 skipped")

	recs, err := storage.NewJSONStore(storePath).LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	smith := recs[0]
	assert.Equal(t, int64(1), smith.ID)
	assert.Equal(t, string(entity.KindVillager), smith.Type)
	require.NotNil(t, smith.Profession)
	assert.Equal(t, 3, *smith.Profession)
	assert.True(t, smith.LookAtPlayers)
	assert.True(t, smith.NameTagAlwaysVisible, "defaults apply when unset")
	assert.Equal(t, 1.0, smith.Scale)
	assert.Equal(t, "weapons", smith.Metadata["shop"])
	assert.Equal(t, "01HZN3XS000000000000000001", smith.Metadata[seedKeyField])

	sign := recs[1]
	assert.Equal(t, int64(2), sign.ID)
	assert.False(t, sign.NameTagAlwaysVisible)

	cmd, out, _ = newTestCmd(t, "--store-path", storePath)
	require.NoError(t, runSeed(cmd, []string{seedPath}, cfg, nil))
	assert.Contains(t, out.String(), "0 created, 2 skipped")

	recs, err = storage.NewJSONStore(storePath).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRunSeed_IDsFollowExistingRecords(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "entities.json")
	require.NoError(t, storage.NewJSONStore(storePath).Save(context.Background(), storage.Record{
		ID: 41, Type: "pig", Position: storage.Position{World: "world"}, Scale: 1, Metadata: map[string]any{},
	}))

	cmd, _, _ := newTestCmd(t, "--store-path", storePath)
	require.NoError(t, runSeed(cmd, []string{writeSeed(t, seedYAML)}, &seedConfig{timeout: time.Minute}, nil))

	recs, err := storage.NewJSONStore(storePath).LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int64{41, 42, 43}, []int64{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestRunSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			name: "malformed yaml",
			body: "entities: [",
			code: "SEED_INVALID",
		},
		{
			name: "key is not a ulid",
			body: "entities:\n  - {key: smith, type: villager, world: world}\n",
			code: "SEED_INVALID",
		},
		{
			name: "unknown type",
			body: "entities:\n  - {key: 01HZN3XS000000000000000001, type: dragon, world: world}\n",
			code: entity.CodeInvalidConfiguration,
		},
		{
			name: "profession out of range",
			body: "entities:\n  - {key: 01HZN3XS000000000000000001, type: villager, world: world, profession: 9}\n",
			code: entity.CodeInvalidConfiguration,
		},
		{
			name: "zero scale",
			body: "entities:\n  - {key: 01HZN3XS000000000000000001, type: pig, world: world, scale: 0}\n",
			code: entity.CodeInvalidConfiguration,
		},
		{
			name: "duplicate key",
			body: "entities:\n  - {key: 01HZN3XS000000000000000001, type: pig, world: world}\n  - {key: 01HZN3XS000000000000000001, type: cow, world: world}\n",
			code: "SEED_INVALID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, _ := newTestCmd(t, "--store-path", filepath.Join(t.TempDir(), "entities.json"))
			err := runSeed(cmd, []string{writeSeed(t, tt.body)}, &seedConfig{timeout: time.Minute}, nil)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		cmd, _, _ := newTestCmd(t)
		err := runSeed(cmd, []string{filepath.Join(t.TempDir(), "nope.yaml")}, &seedConfig{timeout: time.Minute}, nil)
		errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
	})
}
