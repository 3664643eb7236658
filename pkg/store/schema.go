package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS usage_events (
	dedup_key             TEXT PRIMARY KEY,
	ts_ns                 INTEGER NOT NULL,
	model                 TEXT NOT NULL,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
	cost_usd              REAL NOT NULL DEFAULT 0,
	embedded_cost_usd     REAL,
	message_id            TEXT NOT NULL DEFAULT '',
	request_id            TEXT NOT NULL DEFAULT '',
	session_id            TEXT NOT NULL DEFAULT '',
	project_path          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_usage_events_ts ON usage_events(ts_ns);

CREATE TABLE IF NOT EXISTS daily_usage (
	date                  TEXT NOT NULL,
	model                 TEXT NOT NULL,
	input_tokens          INTEGER NOT NULL,
	output_tokens         INTEGER NOT NULL,
	cache_creation_tokens INTEGER NOT NULL,
	cache_read_tokens     INTEGER NOT NULL,
	cost_usd              REAL NOT NULL,
	entry_count           INTEGER NOT NULL,
	PRIMARY KEY (date, model)
);

CREATE TABLE IF NOT EXISTS monthly_usage (
	year                  INTEGER NOT NULL,
	month                 INTEGER NOT NULL,
	model                 TEXT NOT NULL,
	input_tokens          INTEGER NOT NULL,
	output_tokens         INTEGER NOT NULL,
	cache_creation_tokens INTEGER NOT NULL,
	cache_read_tokens     INTEGER NOT NULL,
	cost_usd              REAL NOT NULL,
	entry_count           INTEGER NOT NULL,
	PRIMARY KEY (year, month, model)
);
`
