// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/npcforge/npcforge/internal/config"
)

// NewRootCmd creates the root command. Every setting is a persistent flag
// so subcommands share one configuration.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "npcforge",
		Short: "NPCForge - scripted entities for game worlds",
		Long: `NPCForge runs non-player entities inside a game world: spawning,
particle effects, player interactions with cooldowns, dynamic nametags,
and persistence across restarts.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewValidateStoreCmd())

	return cmd
}
