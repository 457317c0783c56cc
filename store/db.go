// Package store implements the durable persistence layer of §4.6: one
// sqlite table per record kind, each logical state transition committed as
// a single transaction. Adapted from the teacher's
// `CREATE TABLE IF NOT EXISTS` migration pattern
// (SynapseStrike/store/strategy.go; no `ALTER TABLE` steps are used
// here), generalized from a single
// strategies table to the full trading-engine schema of spec §3/§4.6.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection and every table-scoped store. Subsystems
// that need only a slice of the schema depend on the narrower interfaces
// they define themselves (e.g. strategy.Store); DB is the concrete type
// wired up once in cmd/engine/main.go.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and runs
// the schema migration.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // sqlite: one writer, matches the teacher's usage
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS strategies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			priority INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 0,
			config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_strategies_priority ON strategies(priority)`,

		`CREATE TABLE IF NOT EXISTS announcements (
			ticker TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			price_threshold REAL,
			headline TEXT,
			country TEXT,
			channel TEXT,
			author TEXT,
			direction TEXT,
			source TEXT NOT NULL DEFAULT 'live',
			raw_content TEXT,
			fundamentals TEXT,
			PRIMARY KEY (ticker, timestamp)
		)`,

		`CREATE TABLE IF NOT EXISTS traces (
			trace_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			status TEXT NOT NULL,
			pending_entry_id TEXT,
			active_trade_id TEXT,
			completed_trade_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trace_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			strategy_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_events_trace_id ON trace_events(trace_id)`,

		`CREATE TABLE IF NOT EXISTS pending_entries (
			trade_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			alert_time DATETIME NOT NULL,
			first_price REAL,
			first_price_set BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS active_trades (
			trade_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			entry_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			first_candle_open REAL,
			shares REAL NOT NULL,
			stop_loss_price REAL NOT NULL,
			take_profit_price REAL NOT NULL,
			highest_since_entry REAL NOT NULL,
			last_price REAL,
			last_quote_time DATETIME,
			sell_attempts INTEGER NOT NULL DEFAULT 0,
			needs_manual_exit BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (ticker, strategy_id)
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			broker_order_id TEXT,
			trade_id TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			requested_shares REAL NOT NULL,
			filled_shares REAL NOT NULL DEFAULT 0,
			limit_price REAL,
			avg_fill_price REAL,
			status TEXT NOT NULL,
			active_trade_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_broker_order_id ON orders(broker_order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_trade_id ON orders(trade_id)`,

		`CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			kind TEXT NOT NULL,
			raw_payload TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events(order_id)`,

		`CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			entry_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_price REAL,
			exit_time DATETIME,
			shares REAL NOT NULL,
			exit_reason TEXT NOT NULL,
			return_pct REAL,
			pnl REAL,
			strategy_snapshot TEXT,
			is_paper BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy_id ON trades(strategy_id)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}
	return nil
}
