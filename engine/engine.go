// Package engine owns the strategy runtimes, the shared quote provider,
// and the broker client, and routes alerts/quotes/fills between them
// (spec §4.2). Lifecycle and reconciliation are grounded on the teacher's
// auto_trader.go run loop (stop channel, WaitGroup, periodic reconcile),
// generalized from its AI-decision semantics to rule-based momentum
// semantics.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"momentum-engine/announcement"
	"momentum-engine/broker"
	"momentum-engine/logger"
	"momentum-engine/metrics"
	"momentum-engine/quote"
	"momentum-engine/store"
	"momentum-engine/strategy"
)

type alertJob struct {
	announcement announcement.Announcement
	traceID      string
	mentionCount int
	raw          json.RawMessage
}

// Engine is the single constructed value wiring every subsystem together;
// per the "no hidden globals" design note, nothing here is a package-level
// mutable singleton.
type Engine struct {
	db       *store.DB
	brokerC  broker.Broker
	quoteP   *quote.Provider
	candles  *strategy.CandleBook
	interest *interestTracker
	log      *logger.Logger
	isPaper  bool

	reconcileInterval time.Duration

	mu         sync.RWMutex
	runtimes   map[string]*strategy.Runtime // strategy id -> runtime
	priorities []string                     // strategy ids, ascending priority

	alertCh chan alertJob
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	tickersMu sync.Mutex
	tickerCh  map[string]chan quote.Tick
}

// New constructs an Engine. Strategy runtimes are added via LoadStrategy,
// not at construction time, so recovery (§4.7) can run per-strategy as
// each is instantiated.
func New(db *store.DB, b broker.Broker, quoteP *quote.Provider, isPaper bool, reconcileInterval time.Duration, log *logger.Logger) *Engine {
	return &Engine{
		db:                db,
		brokerC:           b,
		quoteP:            quoteP,
		candles:           strategy.NewCandleBook(),
		interest:          newInterestTracker(),
		log:               log,
		isPaper:           isPaper,
		reconcileInterval: reconcileInterval,
		runtimes:          make(map[string]*strategy.Runtime),
		alertCh:           make(chan alertJob, 256),
		stopCh:            make(chan struct{}),
		tickerCh:          make(map[string]chan quote.Tick),
	}
}

// LoadStrategy instantiates a Runtime for an enabled strategy and recovers
// its durable ActiveTrades (§4.7 steps 1–3).
func (e *Engine) LoadStrategy(cfg strategy.Config) error {
	rt := strategy.NewRuntime(cfg, e.brokerC, e.quoteP, e.db, e.interest, e.candles, e.isPaper, e.log.With("strategy:"+cfg.Name))

	trades, err := e.db.ListActiveTrades(cfg.ID)
	if err != nil {
		return fmt.Errorf("load active trades for %s: %w", cfg.Name, err)
	}

	positions, err := e.brokerC.GetPositions()
	if err != nil {
		e.log.Warnf("⚠️ [Engine] failed to fetch broker positions during recovery of %s: %v", cfg.Name, err)
		positions = nil
	}
	atBroker := make(map[string]bool, len(positions))
	for _, p := range positions {
		atBroker[p.Ticker] = true
	}

	for _, t := range trades {
		rt.LoadActiveTrade(t)
		if !e.quoteP.Subscribe(t.Ticker, quote.PriorityActiveTrade) {
			e.log.Warnf("⚠️ [Engine] subscription cap reached recovering %s/%s — trade loaded without live quotes", cfg.Name, t.Ticker)
		}
		if !atBroker[t.Ticker] {
			e.log.Warnf("⚠️ [Engine] recovered active trade %s/%s not found in broker positions; leaving for reconciliation to confirm", cfg.Name, t.Ticker)
		}
	}

	e.mu.Lock()
	e.runtimes[cfg.ID] = rt
	e.priorities = append(e.priorities, cfg.ID)
	e.sortPrioritiesLocked()
	e.mu.Unlock()
	return nil
}

func (e *Engine) sortPrioritiesLocked() {
	sort.Slice(e.priorities, func(i, j int) bool {
		return e.runtimes[e.priorities[i]].Config().Priority < e.runtimes[e.priorities[j]].Config().Priority
	})
}

// Start launches the alert-processing worker, the quote provider's
// receive loop, and the reconciliation timer. It derives its own
// cancelable context from ctx so Stop can unblock quoteP.Run on shutdown
// without depending on the caller canceling ctx first.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.alertWorker()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.quoteP.Run(ctx)
	}()

	e.wg.Add(1)
	go e.reconcileLoop(ctx)
}

// Stop implements the §5 shutdown sequence: set a stop flag, cancel the
// quote provider's run loop, close the quote provider, and wait for every
// worker to drain.
func (e *Engine) Stop() {
	close(e.stopCh)
	if e.cancel != nil {
		e.cancel()
	}
	e.quoteP.Stop()
	e.wg.Wait()
}

// OnAlert implements alert.Dispatch. It enqueues and returns immediately,
// per §4.1 step 6 and §5's HTTP-handler-never-blocks contract.
func (e *Engine) OnAlert(a announcement.Announcement, traceID string, mentionCount int, raw json.RawMessage) {
	select {
	case e.alertCh <- alertJob{announcement: a, traceID: traceID, mentionCount: mentionCount, raw: raw}:
	default:
		e.log.Errorf("❌ [Engine] alert queue full, dropping alert for %s (trace=%s)", a.Ticker, traceID)
	}
}

// alertWorker processes alerts strictly in arrival order (§5): every
// enabled strategy's OnAlert for one alert completes before the next
// alert is processed.
func (e *Engine) alertWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case job := <-e.alertCh:
			e.dispatchAlert(job)
		}
	}
}

func (e *Engine) dispatchAlert(job alertJob) {
	e.mu.RLock()
	ids := append([]string(nil), e.priorities...)
	e.mu.RUnlock()

	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt == nil || !rt.Config().Enabled {
			continue
		}
		accepted := rt.OnAlert(job.announcement, job.traceID, job.mentionCount)
		if accepted {
			metrics.AlertsAcceptedTotal.WithLabelValues(rt.Config().Name).Inc()
		} else {
			metrics.AlertsFilteredTotal.WithLabelValues(rt.Config().Name).Inc()
		}
	}
}

// OnQuote implements quote.Delivery. It builds the shared candle for the
// ticker exactly once, then fans the tick out to every strategy with
// interest in it, dispatched through a per-ticker worker so that slow
// downstream work (broker calls) runs off the receive loop, while
// preserving in-order delivery within one ticker (§5). The hand-off is a
// buffered channel; the receive loop blocks only when that ticker's
// buffer is full.
func (e *Engine) OnQuote(t quote.Tick) {
	ch := e.tickerWorker(t.Ticker)
	ch <- t
}

func (e *Engine) tickerWorker(ticker string) chan quote.Tick {
	e.tickersMu.Lock()
	defer e.tickersMu.Unlock()
	ch, ok := e.tickerCh[ticker]
	if ok {
		return ch
	}
	ch = make(chan quote.Tick, 4096)
	e.tickerCh[ticker] = ch
	e.wg.Add(1)
	go e.runTickerWorker(ticker, ch)
	return ch
}

func (e *Engine) runTickerWorker(ticker string, ch chan quote.Tick) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case t := <-ch:
			e.processTick(t)
		}
	}
}

func (e *Engine) processTick(t quote.Tick) {
	finalized, barFinalized := e.candles.AddTick(t.Ticker, t.Price, t.Volume, t.Timestamp)

	e.mu.RLock()
	ids := append([]string(nil), e.priorities...)
	e.mu.RUnlock()

	for _, id := range ids {
		e.mu.RLock()
		rt := e.runtimes[id]
		e.mu.RUnlock()
		if rt == nil || !rt.HasInterest(t.Ticker) {
			continue
		}
		rt.OnQuote(t.Ticker, t.Price, t.Volume, t.Timestamp, finalized, barFinalized)
	}
}

// OnFill implements broker.FillSink. It routes an asynchronous fill/cancel
// /reject notification back to the strategy runtime that owns the order,
// looked up by broker order id via the durable orders table (§4.5).
func (e *Engine) OnFill(ev broker.FillEvent) {
	meta, err := e.db.GetOrderMeta(ev.OrderID)
	if err != nil {
		e.log.Warnf("⚠️ [Engine] fill for unrouted order %s: %v", ev.OrderID, err)
		return
	}

	e.mu.RLock()
	rt := e.runtimes[meta.StrategyID]
	e.mu.RUnlock()
	if rt == nil {
		e.log.Warnf("⚠️ [Engine] fill for order %s belongs to unknown/disabled strategy %s", ev.OrderID, meta.StrategyID)
		return
	}

	switch ev.Status {
	case broker.OrderStatusFilled, broker.OrderStatusPartial:
		if _, err := e.db.RecordFill(ev.OrderID, ev.FilledShares, ev.FilledPrice, ev.RawPayload); err != nil {
			e.log.Warnf("⚠️ [Engine] failed to record fill for order %s: %v", ev.OrderID, err)
		}
		if meta.Side == string(broker.SideBuy) {
			rt.OnBuyFill(ev.OrderID, ev.FilledShares, ev.FilledPrice, ev.FillTime)
		} else {
			rt.OnSellFill(ev.OrderID, ev.FilledShares, ev.FilledPrice, ev.FillTime)
		}
	case broker.OrderStatusCanceled:
		rt.OnOrderCanceled(ev.OrderID)
	case broker.OrderStatusRejected:
		rt.OnOrderRejected(ev.OrderID)
	}
}
