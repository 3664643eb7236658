package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/burnrate"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// validDimensions lists the accepted --group-by values.
var validDimensions = []aggregator.Dimension{
	aggregator.DimModel,
	aggregator.DimSession,
	aggregator.DimProject,
	aggregator.DimDate,
	aggregator.DimHour,
}

// report runs fn against a freshly loaded snapshot.
func report(cmd *cobra.Command, opts *options, mode appMode, fn func(ctx context.Context, a *app, snap monitor.Snapshot) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, opts.scope(), cmd.OutOrStdout(), mode)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.load(ctx)
	if err != nil {
		return err
	}

	return fn(ctx, a, snap)
}

// dateRange holds the --since/--until flags.
type dateRange struct {
	since string
	until string
}

func (r *dateRange) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.since, "since", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&r.until, "until", "", "last date to include (YYYY-MM-DD)")
}

// bounds parses the flags; empty flags yield nil bounds.
func (r *dateRange) bounds() (start, end *time.Time, err error) {
	parse := func(name, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		t, err := time.Parse(time.DateOnly, value)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, value)
		}
		return &t, nil
	}

	if start, err = parse("since", r.since); err != nil {
		return nil, nil, err
	}
	if end, err = parse("until", r.until); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("--until %s is before --since %s", r.until, r.since)
	}
	return start, end, nil
}

func newBlocksCmd(opts *options) *cobra.Command {
	var activeOnly, includeGaps bool

	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Show session blocks with burn rate and projections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, snap monitor.Snapshot) error {
				list := snap.Blocks
				if !includeGaps {
					list = lo.Filter(list, func(b usage.SessionBlock, _ int) bool { return !b.IsGap })
				}
				if activeOnly {
					list = lo.Filter(list, func(b usage.SessionBlock, _ int) bool { return b.IsActive })
				}
				return a.formatter.FormatBlocks(a.out, burnrate.Enrich(list, snap.Timestamp), snap.P90Limit)
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "show only the active block")
	cmd.Flags().BoolVar(&includeGaps, "gaps", false, "include idle gap blocks")
	return cmd
}

func newDailyCmd(opts *options) *cobra.Command {
	var (
		dates     dateRange
		fromStore bool
	)

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show usage per day and model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := dates.bounds()
			if err != nil {
				return err
			}
			if fromStore {
				return fromHistory(cmd, opts, func(ctx context.Context, a *app) error {
					rows, err := a.store.DailyUsage(ctx, start, end)
					if err != nil {
						return err
					}
					return a.formatter.FormatDaily(a.out, rows)
				})
			}
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, _ monitor.Snapshot) error {
				return a.formatter.FormatDaily(a.out, aggregator.Daily(a.monitor.Events(), start, end))
			})
		},
	}

	dates.register(cmd)
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read rollups from the SQLite history instead of the logs")
	return cmd
}

func newMonthlyCmd(opts *options) *cobra.Command {
	var (
		dates     dateRange
		fromStore bool
	)

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Show usage per month and model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := dates.bounds()
			if err != nil {
				return err
			}
			if fromStore {
				return fromHistory(cmd, opts, func(ctx context.Context, a *app) error {
					rows, err := a.store.MonthlyUsage(ctx)
					if err != nil {
						return err
					}
					rows = lo.Filter(rows, func(r aggregator.MonthlyRollup, _ int) bool {
						return (start == nil || r.Key() >= start.Format("2006-01")) &&
							(end == nil || r.Key() <= end.Format("2006-01"))
					})
					return a.formatter.FormatMonthly(a.out, rows)
				})
			}
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, _ monitor.Snapshot) error {
				return a.formatter.FormatMonthly(a.out, aggregator.Monthly(a.monitor.Events(), start, end))
			})
		},
	}

	dates.register(cmd)
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read rollups from the SQLite history instead of the logs")
	return cmd
}

func newSummaryCmd(opts *options) *cobra.Command {
	var withAnalysis bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show total usage and cost",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, snap monitor.Snapshot) error {
				if err := a.formatter.FormatSummary(a.out, snap.Summary); err != nil {
					return err
				}
				if !withAnalysis {
					return nil
				}
				return a.formatter.FormatReport(a.out, analysis.Analyze(snap.Blocks, a.estimator))
			})
		},
	}

	cmd.Flags().BoolVar(&withAnalysis, "analysis", false, "add trend, session pattern and cost analysis")
	return cmd
}

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show usage per model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, _ monitor.Snapshot) error {
				return a.formatter.FormatModels(a.out, aggregator.ByModel(a.monitor.Events()))
			})
		},
	}
}

func newResetTimeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-time",
		Short: "Show when the rolling usage window resets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, snap monitor.Snapshot) error {
				info := aggregator.ResetWindow(a.monitor.Events(), snap.Timestamp, a.engine.Duration())
				return a.formatter.FormatReset(a.out, info)
			})
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	var (
		groupBy     string
		model       string
		topN        int
		percentiles bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token statistics, optionally grouped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dims := parseDimensions(groupBy)
			for _, d := range dims {
				if !lo.Contains(validDimensions, aggregator.Dimension(d)) {
					return fmt.Errorf("invalid dimension %q: must be one of %v", d, validDimensions)
				}
			}
			if topN > 0 && !lo.Contains(dims, string(aggregator.DimSession)) {
				dims = append(dims, string(aggregator.DimSession))
			}

			return report(cmd, opts, appMode{}, func(_ context.Context, a *app, _ monitor.Snapshot) error {
				agg := aggregator.New(aggregator.Config{
					GroupBy: lo.Map(dims, func(d string, _ int) aggregator.Dimension {
						return aggregator.Dimension(d)
					}),
					TrackPercentiles: percentiles || a.cfg.Display.ShowPercentiles,
				})

				for _, ev := range a.monitor.Events() {
					if model != "" && ev.Model != model {
						continue
					}
					agg.Add(ev)
				}

				switch {
				case topN > 0:
					return a.formatter.FormatTopSessions(a.out, agg.TopSessions(topN))
				case len(dims) > 0:
					return a.formatter.FormatGroupedStats(a.out, agg.GroupedStats(), dims)
				default:
					return a.formatter.FormatStats(a.out, agg.Stats())
				}
			})
		},
	}

	cmd.Flags().StringVarP(&groupBy, "group-by", "g", "", "group by dimensions (comma-separated: model,session,project,date,hour)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "filter by normalized model name")
	cmd.Flags().IntVar(&topN, "top", 0, "show top N sessions by token usage")
	cmd.Flags().BoolVar(&percentiles, "percentiles", false, "compute p50/p95/p99 token percentiles")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered session log files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, opts.scope(), cmd.OutOrStdout(), appMode{})
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.discovery.Discover()
			if err != nil {
				return fmt.Errorf("failed to discover sessions: %w", err)
			}
			if len(opts.sessions) > 0 {
				sessions = lo.Filter(sessions, func(s discovery.SessionFile, _ int) bool {
					return lo.Contains(opts.sessions, s.SessionID)
				})
			}
			if len(opts.projects) > 0 {
				sessions = lo.Filter(sessions, func(s discovery.SessionFile, _ int) bool {
					return lo.Contains(a.projectDirs, s.ProjectDir)
				})
			}
			return a.formatter.FormatSessions(a.out, sessions)
		},
	}
}
