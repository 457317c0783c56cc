package engine

import (
	"fmt"
	"sort"

	"momentum-engine/broker"
	"momentum-engine/store"
	"momentum-engine/strategy"
)

// StrategyStatus is the admin/status API's and cmd/tradectl's view of one
// loaded strategy (§6.5 `status`, §4.2 admin operations).
type StrategyStatus struct {
	Config        strategy.Config
	PendingCount  int
	ActiveCount   int
	ActiveTickers []string
}

// Status reports every loaded strategy's live counts, in priority order.
func (e *Engine) Status() []StrategyStatus {
	e.mu.RLock()
	ids := append([]string(nil), e.priorities...)
	e.mu.RUnlock()

	out := make([]StrategyStatus, 0, len(ids))
	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt == nil {
			continue
		}
		pending, active := rt.Counts()
		out = append(out, StrategyStatus{
			Config:        rt.Config(),
			PendingCount:  pending,
			ActiveCount:   active,
			ActiveTickers: rt.ActiveTickers(),
		})
	}
	return out
}

// EnableStrategy turns a loaded strategy back on.
func (e *Engine) EnableStrategy(id string) error {
	rt, err := e.lookupRuntime(id)
	if err != nil {
		return err
	}
	rt.Enable()
	return e.db.SetStrategyEnabled(id, true)
}

// DisableStrategy turns a loaded strategy off, unwinding its pending
// entries and active trades (§4.4.8).
func (e *Engine) DisableStrategy(id string) error {
	rt, err := e.lookupRuntime(id)
	if err != nil {
		return err
	}
	rt.Disable()
	return e.db.SetStrategyEnabled(id, false)
}

// SetPriority reassigns a strategy's dispatch priority and re-sorts the
// in-memory order (§3's total order over strategies).
func (e *Engine) SetPriority(id string, priority int) error {
	if _, err := e.lookupRuntime(id); err != nil {
		return err
	}
	if err := e.db.SetStrategyPriority(id, priority); err != nil {
		return err
	}
	return e.reloadPriorities()
}

// reloadPriorities re-reads every strategy's priority from the store and
// re-sorts the dispatch order without rebuilding any Runtime.
func (e *Engine) reloadPriorities() error {
	cfgs, err := e.db.ListStrategies()
	if err != nil {
		return fmt.Errorf("reload priorities: %w", err)
	}
	priorityByID := make(map[string]int, len(cfgs))
	for _, cfg := range cfgs {
		priorityByID[cfg.ID] = cfg.Priority
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sort.Slice(e.priorities, func(i, j int) bool {
		return priorityByID[e.priorities[i]] < priorityByID[e.priorities[j]]
	})
	return nil
}

// ExitAll forces every active trade across every strategy to exit
// immediately at its last known quote price (§6.5 `close-all`).
func (e *Engine) ExitAll() {
	e.mu.RLock()
	ids := append([]string(nil), e.priorities...)
	e.mu.RUnlock()
	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt != nil {
			rt.Disable()
		}
	}
}

// CancelAllOrders cancels every open broker order across every ticker
// (§6.5 `cancel-all`).
func (e *Engine) CancelAllOrders() (int, error) {
	return e.brokerC.CancelAllOrders("")
}

// GetAccountInfo proxies the broker's account snapshot for the status API.
func (e *Engine) GetAccountInfo() (broker.AccountInfo, error) {
	return e.brokerC.GetAccountInfo()
}

// ListCompletedTrades proxies the durable trade history for the status
// API and cmd/tradectl.
func (e *Engine) ListCompletedTrades(limit int) ([]*strategy.CompletedTrade, error) {
	return e.db.ListCompletedTrades(limit)
}

func (e *Engine) lookupRuntime(id string) (*strategy.Runtime, error) {
	e.mu.RLock()
	rt := e.runtimes[id]
	e.mu.RUnlock()
	if rt == nil {
		return nil, fmt.Errorf("strategy %s: %w", id, store.ErrNotFound)
	}
	return rt, nil
}
