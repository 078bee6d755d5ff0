package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/recall/internal/cli"
	"github.com/at-ishikawa/recall/internal/config"
	"github.com/at-ishikawa/recall/internal/datasync"
	"github.com/at-ishikawa/recall/internal/store"
)

type BackendFlag string

// Set implements pflag.Value.
func (b *BackendFlag) Set(v string) error {
	if !slices.Contains(config.Backends(), v) {
		return fmt.Errorf("invalid value %q, valid values are %q", v, config.Backends())
	}
	*b = BackendFlag(v)
	return nil
}

// String implements pflag.Value.
func (b *BackendFlag) String() string {
	if b == nil {
		return ""
	}
	return string(*b)
}

// Type implements pflag.Value.
func (b *BackendFlag) Type() string {
	return "BackendFlag"
}

var (
	_ pflag.Value = (*BackendFlag)(nil)
)

func newSyncCommand() *cobra.Command {
	var from, to BackendFlag
	var dryRun bool
	var updateExisting bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy scheduling records from one store backend to another",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if from == "" {
				from = BackendFlag(cfg.Store.Backend)
			}
			if from == to {
				return fmt.Errorf("source and destination are both %q", from)
			}

			source, sourceCloser, err := store.OpenBackend(ctx, from.String(), cfg, slog.Default())
			if err != nil {
				return fmt.Errorf("store.OpenBackend(%s) > %w", from, err)
			}
			defer func() { _ = sourceCloser.Close() }()

			destination, destinationCloser, err := store.OpenBackend(ctx, to.String(), cfg, slog.Default())
			if err != nil {
				return fmt.Errorf("store.OpenBackend(%s) > %w", to, err)
			}
			defer func() { _ = destinationCloser.Close() }()

			syncer := datasync.NewSyncer(source, destination, cmd.OutOrStdout())
			result, err := syncer.Sync(ctx, datasync.SyncOptions{
				DryRun:         dryRun,
				UpdateExisting: updateExisting,
			})
			if err != nil {
				return fmt.Errorf("syncer.Sync() > %w", err)
			}
			return cli.NewPrinter(cmd.OutOrStdout()).SyncSummary(result, dryRun)
		},
	}

	flags := cmd.Flags()
	flags.Var(&from, "from", fmt.Sprintf("Source backend, defaults to store.backend. Options: %v", config.Backends()))
	flags.Var(&to, "to", fmt.Sprintf("Destination backend. Options: %v", config.Backends()))
	flags.BoolVar(&dryRun, "dry-run", false, "Show what would be copied without writing")
	flags.BoolVar(&updateExisting, "update-existing", false, "Overwrite destination records that have fewer reviews")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
