package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/blocks"
	"github.com/0xmhha/usage-monitor/pkg/config"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/display"
	"github.com/0xmhha/usage-monitor/pkg/events"
	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/parser"
	"github.com/0xmhha/usage-monitor/pkg/pricing"
	"github.com/0xmhha/usage-monitor/pkg/reader"
	"github.com/0xmhha/usage-monitor/pkg/store"
	"github.com/0xmhha/usage-monitor/pkg/usage"
	"github.com/0xmhha/usage-monitor/pkg/watcher"
)

// priceFetchTimeout bounds the optional LiteLLM download.
const priceFetchTimeout = 10 * time.Second

// appMode selects which optional components an app wires.
type appMode struct {
	// persistOffsets keeps reader offsets in the bbolt database so later
	// runs only read appended bytes. Reports leave it off and reread every
	// log in full.
	persistOffsets bool

	// history opens the SQLite usage store.
	history bool

	// live wires a file watcher for Monitor.Start.
	live bool
}

// app is the fully wired component graph behind one command.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	out       io.Writer
	formatter display.Formatter
	engine    blocks.Engine
	estimator analysis.Estimator
	discovery discovery.Discoverer
	reader    reader.Reader
	positions reader.PositionStore
	monitor   monitor.Monitor
	store     store.Store
	db        *bolt.DB
	clock     func() time.Time

	// projectDirs are the project directories --project resolved to.
	projectDirs []string
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg *config.Config, sc scope, out io.Writer, mode appMode) (*app, error) {
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})

	a := &app{
		cfg:   cfg,
		log:   log,
		out:   out,
		clock: time.Now,
		formatter: display.New(display.Config{
			Format:          display.Format(cfg.Display.Format),
			Color:           cfg.Display.ColorEnabled && display.IsTerminal(out),
			ShowPercentiles: cfg.Display.ShowPercentiles,
		}),
	}

	if err := a.wire(ctx, sc, mode); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) wire(ctx context.Context, sc scope, mode appMode) error {
	cfg := a.cfg

	resolver, err := a.newResolver(ctx)
	if err != nil {
		return err
	}

	if mode.persistOffsets {
		a.db, err = reader.OpenDB(discovery.ExpandHome(cfg.Storage.DBPath))
		if err != nil {
			return err
		}
		a.positions, err = reader.NewBoltPositionStore(a.db)
		if err != nil {
			return fmt.Errorf("failed to initialize position store: %w", err)
		}
	} else {
		a.positions = reader.NewMemoryPositionStore()
	}

	a.reader, err = reader.New(reader.Config{
		PositionStore: a.positions,
		Parser:        parser.New(a.log.Named("parser")),
	}, a.log.Named("reader"))
	if err != nil {
		return fmt.Errorf("failed to initialize reader: %w", err)
	}

	collector, err := events.New(events.Config{
		Resolver:  resolver,
		CostMode:  usage.CostMode(cfg.Usage.CostMode),
		HoursBack: cfg.Usage.HoursBack,
	}, a.log.Named("events"))
	if err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}

	a.engine, err = blocks.New(blocks.Config{Duration: cfg.Usage.BlockDuration})
	if err != nil {
		return err
	}

	a.estimator, err = analysis.New(analysis.Config{
		CommonLimits:    cfg.P90.CommonLimits,
		Threshold:       cfg.P90.LimitThreshold,
		DefaultMinLimit: cfg.P90.DefaultMinLimit,
		CacheTTL:        cfg.P90.CacheTTL,
	}, a.log.Named("analysis"))
	if err != nil {
		return fmt.Errorf("failed to initialize estimator: %w", err)
	}

	a.discovery = discovery.New(discovery.ProjectsDirs(cfg.ClaudeConfigDirs), a.log.Named("discovery"))
	for _, base := range a.discovery.BaseDirs() {
		for _, project := range sc.projects {
			a.projectDirs = append(a.projectDirs, discovery.ProjectDirFor(base, project))
		}
	}

	if mode.history && cfg.Storage.SQLitePath != "" {
		a.store, err = store.Open(store.Config{Path: cfg.Storage.SQLitePath}, a.log.Named("store"))
		if err != nil {
			return err
		}
	}

	var w watcher.Watcher
	if mode.live {
		w, err = watcher.New(watcher.Config{
			DebounceInterval:        cfg.Monitoring.DebounceInterval,
			CircuitBreakerThreshold: cfg.Monitoring.CircuitBreakerThreshold,
		}, a.log.Named("watcher"))
		if err != nil {
			return fmt.Errorf("failed to initialize watcher: %w", err)
		}
	}

	a.monitor, err = monitor.New(monitor.Config{
		Discoverer:      a.discovery,
		Reader:          a.reader,
		Collector:       collector,
		Engine:          a.engine,
		Estimator:       a.estimator,
		Watcher:         w,
		Store:           a.store,
		SessionIDs:      sc.sessions,
		ProjectDirs:     a.projectDirs,
		HoursBack:       cfg.Usage.HoursBack,
		RefreshInterval: cfg.Monitoring.RefreshInterval,
		Hub:             monitor.HubConfig{MinInterval: cfg.Monitoring.BroadcastInterval},
		Clock:           a.clock,
	}, a.log.Named("monitor"))
	if err != nil {
		if w != nil {
			_ = w.Close()
		}
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}

	return nil
}

// newResolver builds the price resolver: the built-in table, then the
// LiteLLM list when enabled, then the overrides file.
func (a *app) newResolver(ctx context.Context) (pricing.Resolver, error) {
	cfg := a.cfg.Pricing
	table := pricing.DefaultTable()

	if cfg.FetchOnline {
		fetchCtx, cancel := context.WithTimeout(ctx, priceFetchTimeout)
		online, err := pricing.FetchLiteLLM(fetchCtx, &http.Client{Timeout: priceFetchTimeout}, "")
		cancel()
		if err != nil {
			a.log.Warn("failed to fetch online prices, using built-in table", "error", err)
		} else {
			table = table.Merge(online)
		}
	}

	if cfg.OverridesFile != "" {
		overrides, err := pricing.LoadFile(discovery.ExpandHome(cfg.OverridesFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load price overrides: %w", err)
		}
		table = table.Merge(overrides)
	}

	return pricing.New(pricing.Config{
		Table:         table,
		FallbackModel: cfg.FallbackModel,
	}, a.log.Named("pricing")), nil
}

// load reads every discovered log and returns the resulting snapshot.
// Finding no sessions is not an error; the snapshot is simply empty.
func (a *app) load(ctx context.Context) (monitor.Snapshot, error) {
	snap, err := a.monitor.Sync(ctx)
	if errors.Is(err, monitor.ErrNoSessions) {
		a.log.Info("no session files found", "dirs", a.discovery.BaseDirs())
		return monitor.Snapshot{Timestamp: a.clock()}, nil
	}
	return snap, err
}

// close releases every opened resource.
func (a *app) close() {
	if a.monitor != nil {
		_ = a.monitor.Close()
	}
	if a.reader != nil {
		if err := a.reader.Close(); err != nil {
			a.log.Error("failed to close reader", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("failed to close store", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("failed to close database", "error", err)
		}
	}
}
