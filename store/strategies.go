package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"momentum-engine/strategy"
)

// strategyRow is the JSON shape persisted in the strategies.config column;
// it mirrors strategy.Config field-for-field so the conversion is a plain
// marshal/unmarshal, adapted from the teacher's JSON-blob-config pattern
// (SynapseStrike/store/strategy.go's `Config string` column).
type strategyRow struct {
	Filters strategy.FilterSet  `json:"filters"`
	Entry   strategy.EntryRules `json:"entry"`
	Exit    strategy.ExitRules  `json:"exit"`
	Sizing  strategy.SizingRules `json:"sizing"`
}

func configToRow(cfg strategy.Config) strategyRow {
	return strategyRow{Filters: cfg.Filters, Entry: cfg.Entry, Exit: cfg.Exit, Sizing: cfg.Sizing}
}

// SaveStrategy inserts or replaces a strategy row.
func (db *DB) SaveStrategy(cfg strategy.Config) error {
	blob, err := json.Marshal(configToRow(cfg))
	if err != nil {
		return fmt.Errorf("marshal strategy config: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO strategies (id, name, priority, enabled, config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, priority = excluded.priority,
			enabled = excluded.enabled, config = excluded.config,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.ID, cfg.Name, cfg.Priority, cfg.Enabled, string(blob))
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", cfg.ID, err)
	}
	return nil
}

// SetStrategyEnabled flips the enabled flag for one strategy.
func (db *DB) SetStrategyEnabled(id string, enabled bool) error {
	_, err := db.conn.Exec(`UPDATE strategies SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	return err
}

// SetStrategyPriority assigns a new priority to one strategy. Callers are
// responsible for keeping priorities a total order; the unique index will
// reject a collision.
func (db *DB) SetStrategyPriority(id string, priority int) error {
	_, err := db.conn.Exec(`UPDATE strategies SET priority = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, priority, id)
	return err
}

// DeleteStrategy removes a strategy's configuration row. It does not touch
// any pending entries, active trades, or completed trades already
// attributed to it.
func (db *DB) DeleteStrategy(id string) error {
	_, err := db.conn.Exec(`DELETE FROM strategies WHERE id = ?`, id)
	return err
}

// ListStrategies returns every strategy ordered by priority ascending
// (lower number = earlier), the total order spec §3 requires.
func (db *DB) ListStrategies() ([]strategy.Config, error) {
	rows, err := db.conn.Query(`SELECT id, name, priority, enabled, config FROM strategies ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var out []strategy.Config
	for rows.Next() {
		var id, name, blob string
		var priority int
		var enabled bool
		if err := rows.Scan(&id, &name, &priority, &enabled, &blob); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		var row strategyRow
		if err := json.Unmarshal([]byte(blob), &row); err != nil {
			return nil, fmt.Errorf("unmarshal strategy %s config: %w", id, err)
		}
		out = append(out, strategy.Config{
			ID: id, Name: name, Priority: priority, Enabled: enabled,
			Filters: row.Filters, Entry: row.Entry, Exit: row.Exit, Sizing: row.Sizing,
		})
	}
	return out, rows.Err()
}

// GetStrategy loads a single strategy by id.
func (db *DB) GetStrategy(id string) (strategy.Config, error) {
	var name, blob string
	var priority int
	var enabled bool
	err := db.conn.QueryRow(`SELECT name, priority, enabled, config FROM strategies WHERE id = ?`, id).
		Scan(&name, &priority, &enabled, &blob)
	if err == sql.ErrNoRows {
		return strategy.Config{}, fmt.Errorf("strategy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return strategy.Config{}, fmt.Errorf("get strategy %s: %w", id, err)
	}
	var row strategyRow
	if err := json.Unmarshal([]byte(blob), &row); err != nil {
		return strategy.Config{}, fmt.Errorf("unmarshal strategy %s config: %w", id, err)
	}
	return strategy.Config{
		ID: id, Name: name, Priority: priority, Enabled: enabled,
		Filters: row.Filters, Entry: row.Entry, Exit: row.Exit, Sizing: row.Sizing,
	}, nil
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = fmt.Errorf("not found")
