package engine

import (
	"context"
	"time"

	"momentum-engine/metrics"
)

// reconcileLoop implements §4.2's periodic reconciliation: fetch the
// broker's position snapshot once per tick and let every runtime decide
// for itself whether any of its ActiveTrades has gone ghost.
func (e *Engine) reconcileLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcileOnce()
		}
	}
}

func (e *Engine) reconcileOnce() {
	metrics.ReconciliationRunsTotal.Inc()

	positions, err := e.brokerC.GetPositions()
	if err != nil {
		e.log.Warnf("⚠️ [Engine] reconciliation failed to fetch broker positions: %v", err)
		return
	}
	atBroker := make(map[string]bool, len(positions))
	for _, p := range positions {
		atBroker[p.Ticker] = true
	}

	e.mu.RLock()
	ids := append([]string(nil), e.priorities...)
	e.mu.RUnlock()

	before := 0
	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt == nil {
			continue
		}
		_, active := rt.Counts()
		before += active
		rt.ReconcileGhosts(atBroker)
	}

	after := 0
	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt == nil {
			continue
		}
		_, active := rt.Counts()
		after += active
	}
	if ghosts := before - after; ghosts > 0 {
		metrics.ReconciliationGhostsTotal.Add(float64(ghosts))
	}
}
