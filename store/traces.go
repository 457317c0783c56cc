package store

import (
	"database/sql"
	"fmt"
)

// TraceEvent is one row of a trace's lifecycle log (§3).
type TraceEvent struct {
	Kind      string
	Reason    string
	CreatedAt string
}

// Trace is the per-alert audit record (§3): one row per accepted-or-
// rejected alert, not per pending entry, since a single alert can produce
// a pending entry in more than one strategy.
type Trace struct {
	TraceID string
	Ticker  string
	Status  string
	Events  []TraceEvent
}

// CreateTrace inserts a new trace row with status "received" and appends
// the initial "alert_received" event, implementing Alert Service step 5.
func (db *DB) CreateTrace(traceID, ticker string) error {
	_, err := db.conn.Exec(`INSERT INTO traces (trace_id, ticker, status) VALUES (?, ?, 'received')`, traceID, ticker)
	if err != nil {
		return fmt.Errorf("create trace %s: %w", traceID, err)
	}
	return db.AppendTraceEvent(traceID, "alert_received", "")
}

// AppendTraceEvent implements strategy.Store and is also called directly
// by the alert package for ingestion-path events (alert_received,
// alert_deduplicated).
func (db *DB) AppendTraceEvent(traceID, kind, reason string) error {
	_, err := db.conn.Exec(`INSERT INTO trace_events (trace_id, kind, reason) VALUES (?, ?, ?)`, traceID, kind, reason)
	if err != nil {
		return fmt.Errorf("append trace event for %s: %w", traceID, err)
	}
	return db.setTraceStatusFromKind(traceID, kind)
}

// setTraceStatusFromKind updates the trace's summary status field to
// match the most recently observed lifecycle event, per §3's status
// vocabulary: {received, filtered, pending_entry, entry_timeout,
// active_trade, completed, error}.
func (db *DB) setTraceStatusFromKind(traceID, kind string) error {
	status, ok := map[string]string{
		"filter_rejected":       "filtered",
		"pending_entry_created": "pending_entry",
		"entry_timeout":         "entry_timeout",
		"buy_order_submitted":   "pending_entry",
		"active_trade_created":  "active_trade",
		"buy_order_filled":      "active_trade",
		"trade_completed":       "completed",
	}[kind]
	if !ok {
		return nil
	}
	_, err := db.conn.Exec(`UPDATE traces SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE trace_id = ?`, status, traceID)
	if err != nil {
		return fmt.Errorf("update trace %s status: %w", traceID, err)
	}
	return nil
}

// FindTraceByTicker finds the most recent trace for a ticker, used by the
// Alert Service dedupe path to attach an "alert_deduplicated" event to the
// original trace rather than creating a new one.
func (db *DB) FindTraceByTicker(ticker string) (string, error) {
	var traceID string
	err := db.conn.QueryRow(`SELECT trace_id FROM traces WHERE ticker = ? ORDER BY created_at DESC LIMIT 1`, ticker).Scan(&traceID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no trace for %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find trace for %s: %w", ticker, err)
	}
	return traceID, nil
}

// GetTrace loads a trace and its full event log. The admin API has no
// route that calls it.
func (db *DB) GetTrace(traceID string) (*Trace, error) {
	t := &Trace{TraceID: traceID}
	err := db.conn.QueryRow(`SELECT ticker, status FROM traces WHERE trace_id = ?`, traceID).Scan(&t.Ticker, &t.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trace %s: %w", traceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trace %s: %w", traceID, err)
	}

	rows, err := db.conn.Query(`SELECT kind, COALESCE(reason, ''), created_at FROM trace_events WHERE trace_id = ? ORDER BY id ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("list trace events for %s: %w", traceID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e TraceEvent
		if err := rows.Scan(&e.Kind, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		t.Events = append(t.Events, e)
	}
	return t, rows.Err()
}
