package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xmhha/usage-monitor/pkg/config"
	"github.com/0xmhha/usage-monitor/pkg/display"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	format     string
	costMode   string
	hoursBack  int
	sessions   []string
	projects   []string
	verbose    bool
	noColor    bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "usage-monitor",
		Short:         "Claude Code token usage monitor",
		Long:          "Track Claude Code token usage and cost per session block, day, month and model.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	flags.StringVarP(&opts.format, "format", "f", "", "output format (table, json, simple)")
	flags.StringVar(&opts.costMode, "cost-mode", "", "cost mode (auto, cached, calculate)")
	flags.IntVar(&opts.hoursBack, "hours-back", -1, "ignore events older than this many hours (0 keeps everything)")
	flags.StringSliceVarP(&opts.sessions, "session", "s", nil, "restrict to these session IDs")
	flags.StringSliceVarP(&opts.projects, "project", "p", nil, "restrict to these projects (working directory or encoded name)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newBlocksCmd(opts),
		newDailyCmd(opts),
		newMonthlyCmd(opts),
		newSummaryCmd(opts),
		newModelsCmd(opts),
		newResetTimeCmd(opts),
		newStatsCmd(opts),
		newListCmd(opts),
		newWatchCmd(opts),
		newSyncCmd(opts),
		newConfigCmd(opts),
	)

	return root
}

// scope narrows the logs a command reads.
type scope struct {
	sessions []string
	projects []string
}

func (o *options) scope() scope {
	return scope{sessions: o.sessions, projects: o.projects}
}

// loadConfig loads the configuration file and applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.format != "" {
		if _, err := display.ParseFormat(o.format); err != nil {
			return nil, err
		}
		cfg.Display.Format = o.format
	}
	if o.costMode != "" {
		mode, err := usage.ParseCostMode(o.costMode)
		if err != nil {
			return nil, err
		}
		cfg.Usage.CostMode = string(mode)
	}
	if o.hoursBack >= 0 {
		cfg.Usage.HoursBack = o.hoursBack
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if o.noColor {
		cfg.Display.ColorEnabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseDimensions splits a comma-separated --group-by value.
func parseDimensions(groupBy string) []string {
	if strings.TrimSpace(groupBy) == "" {
		return nil
	}

	var dims []string
	for _, d := range strings.Split(groupBy, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dims = append(dims, d)
		}
	}
	return dims
}
