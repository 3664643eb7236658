package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

const dsnPragmas = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"

// sqliteStore implements the Store interface on modernc.org/sqlite.
type sqliteStore struct {
	db     *sql.DB
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the database at cfg.Path and applies the schema.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Store ready for use
//   - ErrEmptyPath if cfg.Path is empty
func Open(cfg Config, log logger.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, ErrEmptyPath
	}

	path := discovery.ExpandHome(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug("usage store opened", "path", path)

	return &sqliteStore{db: db, logger: log}, nil
}

// SaveEvents implements Store.SaveEvents.
func (s *sqliteStore) SaveEvents(ctx context.Context, events []usage.Event) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO usage_events
		(dedup_key, ts_ns, model, input_tokens, output_tokens,
		 cache_creation_tokens, cache_read_tokens, cost_usd, embedded_cost_usd,
		 message_id, request_id, session_id, project_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	update, err := tx.PrepareContext(ctx, `UPDATE usage_events
		SET cost_usd = ?, embedded_cost_usd = ? WHERE dedup_key = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer func() { _ = update.Close() }()

	inserted := 0
	for _, ev := range events {
		key := storageKey(ev)
		embedded := nullFloat(ev.EmbeddedCost)

		res, err := insert.ExecContext(ctx,
			key, ev.Timestamp.UnixNano(), ev.Model,
			ev.Tokens.Input, ev.Tokens.Output, ev.Tokens.CacheCreation, ev.Tokens.CacheRead,
			ev.CostUSD, embedded,
			ev.MessageID, ev.RequestID, ev.SessionID, ev.ProjectPath,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n > 0 {
			inserted++
			continue
		}

		if _, err := update.ExecContext(ctx, ev.CostUSD, embedded, key); err != nil {
			return 0, fmt.Errorf("failed to update event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}

	s.logger.Debug("events saved", "received", len(events), "inserted", inserted)
	return inserted, nil
}

// RebuildRollups implements Store.RebuildRollups.
func (s *sqliteStore) RebuildRollups(ctx context.Context) error {
	events, err := s.Events(ctx, time.Time{})
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	daily := aggregator.Daily(events, nil, nil)
	monthly := aggregator.Monthly(events, nil, nil)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_usage"); err != nil {
		return fmt.Errorf("failed to clear daily rollups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM monthly_usage"); err != nil {
		return fmt.Errorf("failed to clear monthly rollups: %w", err)
	}

	for _, d := range daily {
		_, err := tx.ExecContext(ctx, `INSERT INTO daily_usage
			(date, model, input_tokens, output_tokens, cache_creation_tokens,
			 cache_read_tokens, cost_usd, entry_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.Date, d.Model, d.Tokens.Input, d.Tokens.Output,
			d.Tokens.CacheCreation, d.Tokens.CacheRead, d.CostUSD, d.EntryCount)
		if err != nil {
			return fmt.Errorf("failed to insert daily rollup: %w", err)
		}
	}

	for _, m := range monthly {
		_, err := tx.ExecContext(ctx, `INSERT INTO monthly_usage
			(year, month, model, input_tokens, output_tokens, cache_creation_tokens,
			 cache_read_tokens, cost_usd, entry_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Year, int(m.Month), m.Model, m.Tokens.Input, m.Tokens.Output,
			m.Tokens.CacheCreation, m.Tokens.CacheRead, m.CostUSD, m.EntryCount)
		if err != nil {
			return fmt.Errorf("failed to insert monthly rollup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollups: %w", err)
	}

	s.logger.Debug("rollups rebuilt", "daily_rows", len(daily), "monthly_rows", len(monthly))
	return nil
}

// Events implements Store.Events.
func (s *sqliteStore) Events(ctx context.Context, since time.Time) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var sinceNs int64
	if !since.IsZero() {
		sinceNs = since.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		ts_ns, model, input_tokens, output_tokens, cache_creation_tokens,
		cache_read_tokens, cost_usd, embedded_cost_usd,
		message_id, request_id, session_id, project_path
		FROM usage_events WHERE ts_ns >= ? ORDER BY ts_ns, dedup_key`, sinceNs)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []usage.Event
	for rows.Next() {
		var (
			ev       usage.Event
			tsNs     int64
			embedded sql.NullFloat64
		)
		if err := rows.Scan(
			&tsNs, &ev.Model, &ev.Tokens.Input, &ev.Tokens.Output,
			&ev.Tokens.CacheCreation, &ev.Tokens.CacheRead, &ev.CostUSD, &embedded,
			&ev.MessageID, &ev.RequestID, &ev.SessionID, &ev.ProjectPath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.Timestamp = time.Unix(0, tsNs).UTC()
		if embedded.Valid {
			v := embedded.Float64
			ev.EmbeddedCost = &v
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// DailyUsage implements Store.DailyUsage.
func (s *sqliteStore) DailyUsage(ctx context.Context, start, end *time.Time) ([]aggregator.DailyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT date, model, input_tokens, output_tokens, cache_creation_tokens,
		cache_read_tokens, cost_usd, entry_count FROM daily_usage`

	var (
		where []string
		args  []any
	)
	if start != nil {
		where = append(where, "date >= ?")
		args = append(args, start.UTC().Format(time.DateOnly))
	}
	if end != nil {
		where = append(where, "date <= ?")
		args = append(args, end.UTC().Format(time.DateOnly))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, model"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []aggregator.DailyRollup{}
	for rows.Next() {
		var d aggregator.DailyRollup
		if err := rows.Scan(&d.Date, &d.Model, &d.Tokens.Input, &d.Tokens.Output,
			&d.Tokens.CacheCreation, &d.Tokens.CacheRead, &d.CostUSD, &d.EntryCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

// MonthlyUsage implements Store.MonthlyUsage.
func (s *sqliteStore) MonthlyUsage(ctx context.Context) ([]aggregator.MonthlyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT year, month, model, input_tokens,
		output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd, entry_count
		FROM monthly_usage ORDER BY year, month, model`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []aggregator.MonthlyRollup{}
	for rows.Next() {
		var (
			m     aggregator.MonthlyRollup
			month int
		)
		if err := rows.Scan(&m.Year, &month, &m.Model, &m.Tokens.Input, &m.Tokens.Output,
			&m.Tokens.CacheCreation, &m.Tokens.CacheRead, &m.CostUSD, &m.EntryCount); err != nil {
			return nil, fmt.Errorf("failed to scan monthly usage: %w", err)
		}
		m.Month = time.Month(month)
		out = append(out, m)
	}

	return out, rows.Err()
}

// Close implements Store.Close.
func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// storageKey is the event's dedup key, or a content key for events that
// carry no message and request identifiers.
func storageKey(ev usage.Event) string {
	if key := ev.DedupKey(); key != "" {
		return key
	}

	parts := []string{
		"anon",
		strconv.FormatInt(ev.Timestamp.UnixNano(), 10),
		ev.SessionID,
		ev.Model,
		strconv.Itoa(ev.Tokens.Input),
		strconv.Itoa(ev.Tokens.Output),
		strconv.Itoa(ev.Tokens.CacheCreation),
		strconv.Itoa(ev.Tokens.CacheRead),
	}
	return strings.Join(parts, "|")
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
