// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/pkg/errutil"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FileThenFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := writeFile(t, `
log-format: text
tick-interval: 100ms
interact-cooldown: 2s
nametag-period: 40
worlds: [lobby, arena]
max-players: 50
`)

	cfg, err := config.Load(newFlags(t, "--config", path, "--max-players", "8"))
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 2*time.Second, cfg.InteractCooldown)
	assert.Equal(t, uint64(40), cfg.NametagPeriod)
	assert.Equal(t, []string{"lobby", "arena"}, cfg.Worlds)
	assert.Equal(t, 8, cfg.MaxPlayers, "explicit flags win over the file")
	assert.Equal(t, config.BackendJSON, cfg.StorageBackend, "unset keys keep their default")
}

func TestLoad_DefaultFileFromXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, "npcforge")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("auto-load: false\n"), 0o600))

	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)
	assert.False(t, cfg.AutoLoad)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name string
		args func(t *testing.T) []string
	}{
		{
			name: "missing explicit file",
			args: func(t *testing.T) []string {
				return []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}
			},
		},
		{
			name: "malformed yaml",
			args: func(t *testing.T) []string {
				return []string{"--config", writeFile(t, "worlds: [unterminated\n")}
			},
		},
		{
			name: "postgres without url",
			args: func(*testing.T) []string {
				return []string{"--storage-backend", "postgres"}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(newFlags(t, tt.args(t)...))
			errutil.AssertErrorCode(t, err, config.CodeConfigInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log-format"},
		{"zero tick", func(c *config.Config) { c.TickInterval = 0 }, "tick-interval"},
		{"unknown backend", func(c *config.Config) { c.StorageBackend = "sqlite" }, "storage-backend"},
		{"negative cooldown", func(c *config.Config) { c.InteractCooldown = -time.Second }, "interact-cooldown"},
		{"zero sweep", func(c *config.Config) { c.CooldownSweepTicks = 0 }, "cooldown-sweep-ticks"},
		{"zero nametag period", func(c *config.Config) { c.NametagPeriod = 0 }, "nametag-period"},
		{"no worlds", func(c *config.Config) { c.Worlds = nil }, "worlds"},
		{"no capacity", func(c *config.Config) { c.MaxPlayers = 0 }, "max-players"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, config.CodeConfigInvalid)
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, config.Default().Validate())
	})
}

func TestResolvedStorePath(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = "/srv/npc"
	assert.Equal(t, filepath.Join("/srv/npc", "entities.json"), cfg.ResolvedStorePath())

	cfg.StorePath = "/tmp/custom.json"
	assert.Equal(t, "/tmp/custom.json", cfg.ResolvedStorePath())
}
