package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/usage-monitor/pkg/display"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

func newWatchCmd(opts *options) *cobra.Command {
	var (
		refresh time.Duration
		history bool
		record  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the logs and redraw the active block live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if refresh > 0 {
				cfg.Monitoring.RefreshInterval = refresh
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, opts.scope(), cmd.OutOrStdout(), appMode{live: true, history: record})
			if err != nil {
				return err
			}
			defer a.close()

			sub := a.monitor.Subscribe()
			defer a.monitor.Unsubscribe(sub.ID)

			if err := a.monitor.Start(ctx); err != nil {
				return err
			}

			w := &watchView{
				app:   a,
				clear: !history && cfg.Display.Format == string(display.FormatTable) && display.IsTerminal(a.out),
			}

			// The initial sync may have been throttled or sent before the
			// subscriber was ready.
			if err := w.draw(a.monitor.Snapshot()); err != nil {
				return err
			}

			return w.follow(ctx, sub.Updates)
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 0, "periodic redraw interval (default from config)")
	cmd.Flags().BoolVar(&history, "history", false, "append each update instead of redrawing the screen")
	cmd.Flags().BoolVar(&record, "record", false, "also store new events in the SQLite history")
	return cmd
}

// watchView renders snapshots as they arrive.
type watchView struct {
	app   *app
	clear bool
}

// follow draws every update until ctx is canceled or the feed closes.
func (v *watchView) follow(ctx context.Context, updates <-chan monitor.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := v.draw(snap); err != nil {
				return err
			}
		}
	}
}

func (v *watchView) draw(snap monitor.Snapshot) error {
	if v.clear {
		if _, err := fmt.Fprint(v.app.out, clearScreen); err != nil {
			return err
		}
	}
	return v.app.formatter.FormatSnapshot(v.app.out, snap)
}
