// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/storage"
)

// validateStoreConfig holds flags of the validate-store command.
type validateStoreConfig struct {
	backup bool
}

// NewValidateStoreCmd creates the validate-store subcommand.
func NewValidateStoreCmd() *cobra.Command {
	cfg := &validateStoreConfig{}
	cmd := &cobra.Command{
		Use:   "validate-store [path]",
		Short: "Check a JSON entity store document without starting the runtime",
		Long: `Validates every record in a JSON store document against the record
schema. Exits non-zero when any record would be skipped at load time.

Useful before deploying a hand-edited store:
  npcforge validate-store ./entities.json

With --backup a timestamped copy is written next to the document first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateStore(cmd, args, cfg)
		},
	}
	cmd.Flags().BoolVar(&cfg.backup, "backup", false, "copy the document to <path>.<timestamp>.bak before validating")
	return cmd
}

func runValidateStore(cmd *cobra.Command, args []string, opts *validateStoreConfig) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		path = cfg.ResolvedStorePath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cmd.Printf("%s: no store document, nothing to validate\n", path)
		return nil
	}
	if err != nil {
		return oops.Code(storage.CodeStoreReadFailed).With("path", path).Wrap(err)
	}

	if opts.backup {
		dst, err := storage.NewJSONStore(path).Backup(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Backup written to %s\n", dst)
	}

	rep, err := storage.Inspect(data)
	if err != nil {
		return err
	}

	format := "version " + rep.Version
	if rep.Legacy {
		format = "legacy (unversioned)"
	}
	cmd.Printf("%s: %s, %d valid records\n", path, format, len(rep.Records))

	if len(rep.Problems) > 0 {
		for _, p := range rep.Problems {
			cmd.PrintErrf("  %s: %v\n", p.Key, p.Err)
		}
		return oops.Code("VALIDATION_FAILED").
			With("path", path).
			Errorf("%d of %d records invalid", len(rep.Problems), len(rep.Problems)+len(rep.Records))
	}
	return nil
}
