// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package config loads daemon settings from defaults, a YAML file and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/npcforge/npcforge/internal/interaction"
	"github.com/npcforge/npcforge/internal/nametag"
	"github.com/npcforge/npcforge/internal/storage"
	"github.com/npcforge/npcforge/internal/xdg"
)

// CodeConfigInvalid marks a configuration that failed to load or validate.
const CodeConfigInvalid = "CONFIG_INVALID"

// Storage backends.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// ConfigFlag names the flag holding the configuration file path.
const ConfigFlag = "config"

// Config holds daemon settings.
type Config struct {
	LogFormat          string        `koanf:"log-format"`
	TickInterval       time.Duration `koanf:"tick-interval"`
	DataDir            string        `koanf:"data-dir"`
	StorageBackend     string        `koanf:"storage-backend"`
	StorePath          string        `koanf:"store-path"`
	DatabaseURL        string        `koanf:"database-url"`
	InteractCooldown   time.Duration `koanf:"interact-cooldown"`
	CooldownSweepTicks uint64        `koanf:"cooldown-sweep-ticks"`
	NametagPeriod      uint64        `koanf:"nametag-period"`
	AutoLoad           bool          `koanf:"auto-load"`
	SaveOnShutdown     bool          `koanf:"save-on-shutdown"`
	MetricsAddr        string        `koanf:"metrics-addr"`
	Worlds             []string      `koanf:"worlds"`
	MaxPlayers         int           `koanf:"max-players"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogFormat:          "json",
		TickInterval:       50 * time.Millisecond,
		StorageBackend:     BackendJSON,
		InteractCooldown:   interaction.DefaultCooldown,
		CooldownSweepTicks: interaction.DefaultSweepPeriod,
		NametagPeriod:      nametag.DefaultPeriod,
		AutoLoad:           true,
		SaveOnShutdown:     true,
		MetricsAddr:        "127.0.0.1:9100",
		Worlds:             []string{"world"},
		MaxPlayers:         20,
	}
}

// RegisterFlags defines every setting as a flag carrying its default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String(ConfigFlag, "", "config file (default $XDG_CONFIG_HOME/npcforge/config.yaml)")
	flags.String("log-format", d.LogFormat, "log format (json, text)")
	flags.Duration("tick-interval", d.TickInterval, "duration of one simulation tick")
	flags.String("data-dir", d.DataDir, "data directory (default $XDG_DATA_HOME/npcforge)")
	flags.String("storage-backend", d.StorageBackend, "entity store backend (json, postgres)")
	flags.String("store-path", d.StorePath, "JSON store document path (default <data-dir>/entities.json)")
	flags.String("database-url", d.DatabaseURL, "PostgreSQL connection string for the postgres backend")
	flags.Duration("interact-cooldown", d.InteractCooldown, "default per-player interaction cooldown")
	flags.Uint64("cooldown-sweep-ticks", d.CooldownSweepTicks, "ticks between expired cooldown sweeps")
	flags.Uint64("nametag-period", d.NametagPeriod, "ticks between dynamic nametag refreshes")
	flags.Bool("auto-load", d.AutoLoad, "restore stored entities at startup")
	flags.Bool("save-on-shutdown", d.SaveOnShutdown, "save every entity before shutting down")
	flags.String("metrics-addr", d.MetricsAddr, "address for the metrics and health endpoints (empty disables)")
	flags.StringSlice("worlds", d.Worlds, "worlds to load in the built-in host")
	flags.Int("max-players", d.MaxPlayers, "player capacity reported by the built-in host")
}

// Load reads the config file named by the config flag, or the default
// file when it exists, then applies flags that were set explicitly.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	path, err := flags.GetString(ConfigFlag)
	if err != nil {
		path = ""
	}
	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return Config{}, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(err, "reading config file")
		}
	} else if explicit || !errors.Is(statErr, fs.ErrNotExist) {
		return Config{}, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(statErr, "reading config file")
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, oops.Code(CodeConfigInvalid).Wrapf(err, "reading flags")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code(CodeConfigInvalid).Wrapf(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and backend requirements.
func (c Config) Validate() error {
	invalid := func(key, msg string) error {
		return oops.Code(CodeConfigInvalid).With("key", key).Errorf("%s: %s", key, msg)
	}
	switch {
	case !slices.Contains([]string{"json", "text"}, c.LogFormat):
		return invalid("log-format", "must be json or text")
	case c.TickInterval <= 0:
		return invalid("tick-interval", "must be positive")
	case c.StorageBackend != BackendJSON && c.StorageBackend != BackendPostgres:
		return invalid("storage-backend", "must be json or postgres")
	case c.StorageBackend == BackendPostgres && c.DatabaseURL == "":
		return invalid("database-url", "required for the postgres backend")
	case c.InteractCooldown < 0:
		return invalid("interact-cooldown", "must not be negative")
	case c.CooldownSweepTicks == 0:
		return invalid("cooldown-sweep-ticks", "must be at least 1")
	case c.NametagPeriod == 0:
		return invalid("nametag-period", "must be at least 1")
	case len(c.Worlds) == 0:
		return invalid("worlds", "at least one world is required")
	case c.MaxPlayers <= 0:
		return invalid("max-players", "must be positive")
	}
	return nil
}

// ResolvedDataDir returns DataDir or the XDG data directory.
func (c Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return xdg.DataDir()
}

// ResolvedStorePath returns StorePath or the default document inside the
// data directory.
func (c Config) ResolvedStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	return filepath.Join(c.ResolvedDataDir(), storage.DefaultFileName)
}
