package store

import (
	"database/sql"
	"fmt"

	"momentum-engine/strategy"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting the row-level
// helpers below run either standalone or inside a transaction.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error it returns. Used for every state transition that spans
// more than one table write (§4.6: "a write must be atomic with respect to
// the state transition it represents").
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SavePendingEntry implements strategy.Store.
func (db *DB) SavePendingEntry(pe *strategy.PendingEntry) error {
	return savePendingEntry(db.conn, pe)
}

func savePendingEntry(q querier, pe *strategy.PendingEntry) error {
	_, err := q.Exec(`
		INSERT INTO pending_entries (trade_id, ticker, strategy_id, alert_time, first_price, first_price_set)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO UPDATE SET
			first_price = excluded.first_price, first_price_set = excluded.first_price_set
	`, pe.TradeID, pe.Ticker, pe.StrategyID, pe.AlertTime.UTC(), pe.FirstPrice, pe.FirstPriceSet)
	if err != nil {
		return fmt.Errorf("save pending entry %s: %w", pe.TradeID, err)
	}
	return nil
}

// DeletePendingEntry implements strategy.Store.
func (db *DB) DeletePendingEntry(tradeID string) error {
	return deletePendingEntry(db.conn, tradeID)
}

func deletePendingEntry(q querier, tradeID string) error {
	_, err := q.Exec(`DELETE FROM pending_entries WHERE trade_id = ?`, tradeID)
	if err != nil {
		return fmt.Errorf("delete pending entry %s: %w", tradeID, err)
	}
	return nil
}

// SaveActiveTrade implements strategy.Store. An existing row with the same
// trade_id has its mutable fields updated in place.
func (db *DB) SaveActiveTrade(at *strategy.ActiveTrade) error {
	return saveActiveTrade(db.conn, at)
}

func saveActiveTrade(q querier, at *strategy.ActiveTrade) error {
	_, err := q.Exec(`
		INSERT INTO active_trades (
			trade_id, ticker, strategy_id, entry_price, entry_time, first_candle_open,
			shares, stop_loss_price, take_profit_price, highest_since_entry,
			last_price, last_quote_time, sell_attempts, needs_manual_exit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO UPDATE SET
			stop_loss_price = excluded.stop_loss_price,
			take_profit_price = excluded.take_profit_price,
			highest_since_entry = excluded.highest_since_entry,
			last_price = excluded.last_price,
			last_quote_time = excluded.last_quote_time,
			sell_attempts = excluded.sell_attempts,
			needs_manual_exit = excluded.needs_manual_exit
	`, at.TradeID, at.Ticker, at.StrategyID, at.EntryPrice, at.EntryTime.UTC(), at.FirstCandleOpen,
		at.Shares, at.StopLossPrice, at.TakeProfitPrice, at.HighestSinceEntry,
		at.LastPrice, at.LastQuoteTime.UTC(), at.SellAttempts, at.NeedsManualExit)
	if err != nil {
		return fmt.Errorf("save active trade %s: %w", at.TradeID, err)
	}
	return nil
}

// DeleteActiveTrade implements strategy.Store.
func (db *DB) DeleteActiveTrade(tradeID string) error {
	return deleteActiveTrade(db.conn, tradeID)
}

func deleteActiveTrade(q querier, tradeID string) error {
	_, err := q.Exec(`DELETE FROM active_trades WHERE trade_id = ?`, tradeID)
	if err != nil {
		return fmt.Errorf("delete active trade %s: %w", tradeID, err)
	}
	return nil
}

// ListActiveTrades implements strategy.Store: recovery (§4.7) loads every
// ActiveTrade belonging to one strategy at startup.
func (db *DB) ListActiveTrades(strategyID string) ([]*strategy.ActiveTrade, error) {
	rows, err := db.conn.Query(`
		SELECT trade_id, ticker, strategy_id, entry_price, entry_time, first_candle_open,
			shares, stop_loss_price, take_profit_price, highest_since_entry,
			last_price, last_quote_time, sell_attempts, needs_manual_exit
		FROM active_trades WHERE strategy_id = ?
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("list active trades for %s: %w", strategyID, err)
	}
	defer rows.Close()
	return scanActiveTrades(rows)
}

// ListAllActiveTrades returns every ActiveTrade regardless of strategy.
func (db *DB) ListAllActiveTrades() ([]*strategy.ActiveTrade, error) {
	rows, err := db.conn.Query(`
		SELECT trade_id, ticker, strategy_id, entry_price, entry_time, first_candle_open,
			shares, stop_loss_price, take_profit_price, highest_since_entry,
			last_price, last_quote_time, sell_attempts, needs_manual_exit
		FROM active_trades
	`)
	if err != nil {
		return nil, fmt.Errorf("list all active trades: %w", err)
	}
	defer rows.Close()
	return scanActiveTrades(rows)
}

func scanActiveTrades(rows *sql.Rows) ([]*strategy.ActiveTrade, error) {
	var out []*strategy.ActiveTrade
	for rows.Next() {
		at := &strategy.ActiveTrade{}
		var entryTime, lastQuoteTime sql.NullTime
		if err := rows.Scan(&at.TradeID, &at.Ticker, &at.StrategyID, &at.EntryPrice, &entryTime, &at.FirstCandleOpen,
			&at.Shares, &at.StopLossPrice, &at.TakeProfitPrice, &at.HighestSinceEntry,
			&at.LastPrice, &lastQuoteTime, &at.SellAttempts, &at.NeedsManualExit); err != nil {
			return nil, fmt.Errorf("scan active trade: %w", err)
		}
		at.EntryTime = entryTime.Time
		at.LastQuoteTime = lastQuoteTime.Time
		out = append(out, at)
	}
	return out, rows.Err()
}

// SaveOrder inserts one row per in-flight broker order and appends the
// "submitted" OrderEvent, so every transition (including the first)
// produces an audit row. Both writes commit as one transaction. Kept as a
// standalone operation for callers (tests, admin tooling) that don't also
// need to retire a pending-entry/active-trade row in the same transaction;
// strategy.Store's live entry/exit paths use SubmitEntry/SubmitExit instead.
func (db *DB) SaveOrder(order *strategy.PendingOrder, status string) (int64, error) {
	var internalID int64
	err := db.withTx(func(tx *sql.Tx) error {
		id, err := insertOrder(tx, order, status)
		if err != nil {
			return err
		}
		internalID = id
		return appendOrderEvent(tx, id, "submitted", nil)
	})
	return internalID, err
}

func insertOrder(q querier, order *strategy.PendingOrder, status string) (int64, error) {
	res, err := q.Exec(`
		INSERT INTO orders (broker_order_id, trade_id, strategy_id, ticker, side, requested_shares, limit_price, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, order.OrderID, order.TradeID, order.StrategyID, order.Ticker, order.Side, order.Shares, order.LimitPrice, status)
	if err != nil {
		return 0, fmt.Errorf("save order %s: %w", order.OrderID, err)
	}
	internalID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read order internal id: %w", err)
	}
	return internalID, nil
}

// SubmitEntry implements strategy.Store. Persisting a submitted buy order
// and removing the pending entry it replaces is one logical state
// transition (§3 PendingEntry lifecycle, §4.4.3): committing them as two
// independent statements would let a crash between the two leave the same
// trade_id live in both `pending_entries` and `orders`, and recovery would
// have no pending entry to resume evaluating but also no order to
// associate a later fill with. Both writes, plus the "submitted"
// OrderEvent, run in a single transaction.
func (db *DB) SubmitEntry(order *strategy.PendingOrder, pendingTradeID string) (int64, error) {
	var internalID int64
	err := db.withTx(func(tx *sql.Tx) error {
		id, err := insertOrder(tx, order, "submitted")
		if err != nil {
			return err
		}
		if err := appendOrderEvent(tx, id, "submitted", nil); err != nil {
			return err
		}
		if err := deletePendingEntry(tx, pendingTradeID); err != nil {
			return err
		}
		internalID = id
		return nil
	})
	return internalID, err
}

// SubmitExit implements strategy.Store. Mirrors SubmitEntry for the sell
// side (§4.4.6): persisting the submitted sell order and removing the
// ActiveTrade it replaces must commit atomically, or a crash between the
// two leaves an ActiveTrade the engine believes is still open alongside an
// order it has no record of monitoring, or (the other ordering) a sell
// order with no corresponding order-book row once the ActiveTrade is gone.
func (db *DB) SubmitExit(order *strategy.PendingOrder, activeTradeID string) (int64, error) {
	var internalID int64
	err := db.withTx(func(tx *sql.Tx) error {
		id, err := insertOrder(tx, order, "submitted")
		if err != nil {
			return err
		}
		if err := appendOrderEvent(tx, id, "submitted", nil); err != nil {
			return err
		}
		if err := deleteActiveTrade(tx, activeTradeID); err != nil {
			return err
		}
		internalID = id
		return nil
	})
	return internalID, err
}

// UpdateOrderStatus implements strategy.Store. Every status transition is
// also recorded as an OrderEvent (§3 "Each transition... appends an
// immutable OrderEvent row"); callers don't need to call AppendOrderEvent
// separately for plain status changes.
func (db *DB) UpdateOrderStatus(internalID int64, status string) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, internalID); err != nil {
			return fmt.Errorf("update order %d status: %w", internalID, err)
		}
		return appendOrderEvent(tx, internalID, status, nil)
	})
}

// RecordFill updates an order's filled-shares/avg-fill-price fields and
// appends a "fill" OrderEvent carrying the broker's raw payload, keyed by
// the broker-assigned order id (the engine's fill path only has that, not
// the internal id). Both writes commit as one transaction.
func (db *DB) RecordFill(brokerOrderID string, filledShares, avgFillPrice float64, raw []byte) (internalID int64, err error) {
	err = db.withTx(func(tx *sql.Tx) error {
		scanErr := tx.QueryRow(`SELECT id FROM orders WHERE broker_order_id = ?`, brokerOrderID).Scan(&internalID)
		if scanErr == sql.ErrNoRows {
			return fmt.Errorf("fill for unknown order %s: %w", brokerOrderID, ErrNotFound)
		}
		if scanErr != nil {
			return fmt.Errorf("look up order %s: %w", brokerOrderID, scanErr)
		}
		_, execErr := tx.Exec(`
			UPDATE orders SET filled_shares = ?, avg_fill_price = ?, status = 'filled', updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, filledShares, avgFillPrice, internalID)
		if execErr != nil {
			return fmt.Errorf("record fill for order %d: %w", internalID, execErr)
		}
		return appendOrderEvent(tx, internalID, "fill", raw)
	})
	return internalID, err
}

// OrderMeta is the routing information the engine's fill-dispatch path
// needs to find the owning strategy runtime for a broker order id.
type OrderMeta struct {
	StrategyID string
	Side       string
	TradeID    string
}

// GetOrderMeta looks up which strategy and side a broker order id belongs
// to, used by the engine to route an asynchronous FillEvent back to the
// correct strategy.Runtime without runtimes needing to register a global
// order index themselves.
func (db *DB) GetOrderMeta(brokerOrderID string) (OrderMeta, error) {
	var m OrderMeta
	err := db.conn.QueryRow(`SELECT strategy_id, side, trade_id FROM orders WHERE broker_order_id = ?`, brokerOrderID).
		Scan(&m.StrategyID, &m.Side, &m.TradeID)
	if err == sql.ErrNoRows {
		return m, fmt.Errorf("order %s: %w", brokerOrderID, ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("get order meta %s: %w", brokerOrderID, err)
	}
	return m, nil
}

// AppendOrderEvent implements strategy.Store.
func (db *DB) AppendOrderEvent(internalID int64, kind string, raw []byte) error {
	return appendOrderEvent(db.conn, internalID, kind, raw)
}

func appendOrderEvent(q querier, internalID int64, kind string, raw []byte) error {
	var rawStr interface{}
	if raw != nil {
		rawStr = string(raw)
	}
	_, err := q.Exec(`INSERT INTO order_events (order_id, kind, raw_payload) VALUES (?, ?, ?)`, internalID, kind, rawStr)
	if err != nil {
		return fmt.Errorf("append order event for %d: %w", internalID, err)
	}
	return nil
}

// OpenOrdersByBrokerID loads every order still in 'submitted' status,
// keyed by broker order id, mapped to its internal id. Nothing in the
// engine or the admin API calls it; the admin open-orders route reads the
// broker's own open-order list instead.
func (db *DB) OpenOrdersByBrokerID() (map[string]int64, error) {
	rows, err := db.conn.Query(`SELECT broker_order_id, id FROM orders WHERE status IN ('submitted') AND broker_order_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var orderID string
		var id int64
		if err := rows.Scan(&orderID, &id); err != nil {
			return nil, fmt.Errorf("scan open order: %w", err)
		}
		out[orderID] = id
	}
	return out, rows.Err()
}

// SaveCompletedTrade implements strategy.Store.
func (db *DB) SaveCompletedTrade(ct *strategy.CompletedTrade) error {
	return insertCompletedTrade(db.conn, ct)
}

func insertCompletedTrade(q querier, ct *strategy.CompletedTrade) error {
	var exitTime interface{}
	if !ct.ExitTime.IsZero() {
		exitTime = ct.ExitTime.UTC()
	}
	_, err := q.Exec(`
		INSERT INTO trades (trade_id, ticker, strategy_id, entry_price, entry_time, exit_price, exit_time, shares, exit_reason, return_pct, pnl, is_paper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO UPDATE SET
			exit_price = excluded.exit_price, exit_time = excluded.exit_time,
			exit_reason = excluded.exit_reason, return_pct = excluded.return_pct, pnl = excluded.pnl
	`, ct.TradeID, ct.Ticker, ct.StrategyID, ct.EntryPrice, ct.EntryTime.UTC(), ct.ExitPrice, exitTime, ct.Shares, ct.ExitReason, ct.ReturnPct, ct.PnL, ct.IsPaper)
	if err != nil {
		return fmt.Errorf("save completed trade %s: %w", ct.TradeID, err)
	}
	return nil
}

// CompleteTrade implements strategy.Store. Writing the immutable
// CompletedTrade row and removing the ActiveTrade it closes out is one
// state transition (§3/§4.4.7, and the ghost-position paths of §4.4.6/
// §4.7): without a shared transaction, a crash between the insert and the
// delete leaves the same trade_id present in both `trades` and
// `active_trades`. On restart, recovery's ListActiveTrades would resurrect
// an already-completed trade as a live position and resume managing (and
// potentially re-selling) it.
func (db *DB) CompleteTrade(ct *strategy.CompletedTrade, tradeID string) error {
	return db.withTx(func(tx *sql.Tx) error {
		if err := insertCompletedTrade(tx, ct); err != nil {
			return err
		}
		return deleteActiveTrade(tx, tradeID)
	})
}

// ListCompletedTrades returns completed trades ordered most-recent-first,
// used by the admin API's /trades route and cmd/tradectl's `trades` command.
func (db *DB) ListCompletedTrades(limit int) ([]*strategy.CompletedTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT trade_id, ticker, strategy_id, entry_price, entry_time, exit_price, exit_time, shares, exit_reason, return_pct, pnl, is_paper
		FROM trades ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list completed trades: %w", err)
	}
	defer rows.Close()

	var out []*strategy.CompletedTrade
	for rows.Next() {
		ct := &strategy.CompletedTrade{}
		var entryTime, exitTime sql.NullTime
		var exitPrice, returnPct, pnl sql.NullFloat64
		if err := rows.Scan(&ct.TradeID, &ct.Ticker, &ct.StrategyID, &ct.EntryPrice, &entryTime,
			&exitPrice, &exitTime, &ct.Shares, &ct.ExitReason, &returnPct, &pnl, &ct.IsPaper); err != nil {
			return nil, fmt.Errorf("scan completed trade: %w", err)
		}
		ct.EntryTime, ct.ExitTime = entryTime.Time, exitTime.Time
		ct.ExitPrice, ct.ReturnPct, ct.PnL = exitPrice.Float64, returnPct.Float64, pnl.Float64
		out = append(out, ct)
	}
	return out, rows.Err()
}
