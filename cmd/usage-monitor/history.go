package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errHistoryDisabled is returned when a command needs the SQLite history
// but storage.sqlite_path is empty.
var errHistoryDisabled = errors.New("usage history is disabled: set storage.sqlite_path")

// fromHistory runs fn against the SQLite history without reading any logs.
func fromHistory(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.SQLitePath == "" {
		return errHistoryDisabled
	}

	a, err := newApp(cmd.Context(), cfg, opts.scope(), cmd.OutOrStdout(), appMode{history: true})
	if err != nil {
		return err
	}
	defer a.close()

	return fn(cmd.Context(), a)
}

func newSyncCmd(opts *options) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new log entries into the SQLite history",
		Long: "Read the bytes appended to each log since the previous sync, store the new " +
			"events in the SQLite history and rebuild the daily and monthly rollups.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.SQLitePath == "" {
				return errHistoryDisabled
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, opts.scope(), cmd.OutOrStdout(), appMode{
				persistOffsets: true,
				history:        true,
			})
			if err != nil {
				return err
			}
			defer a.close()

			if reset {
				if err := a.positions.Clear(); err != nil {
					return fmt.Errorf("failed to clear read offsets: %w", err)
				}
			}

			snap, err := a.load(ctx)
			if err != nil {
				return err
			}

			if err := a.store.RebuildRollups(ctx); err != nil {
				return err
			}

			_, err = fmt.Fprintf(a.out, "Synced %d new events into %s\n", snap.Delta.NewEvents, cfg.Storage.SQLitePath)
			return err
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "forget read offsets and rescan every log from the start")
	return cmd
}
