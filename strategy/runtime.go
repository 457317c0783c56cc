package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"momentum-engine/announcement"
	"momentum-engine/broker"
	"momentum-engine/logger"
	"momentum-engine/metrics"
	"momentum-engine/quote"
)

// Store is the subset of the persistence layer a Runtime needs. The
// concrete implementation lives in package store; Runtime depends only on
// this interface so the two packages don't import each other.
//
// SubmitEntry, SubmitExit and CompleteTrade each wrap two related writes
// (order/trade row plus the pending-entry or active-trade row it replaces)
// in one transaction, so a crash between them can never leave a trade_id
// live in two stores at once (§3, §4.6).
type Store interface {
	SavePendingEntry(*PendingEntry) error
	DeletePendingEntry(tradeID string) error

	SaveActiveTrade(*ActiveTrade) error
	DeleteActiveTrade(tradeID string) error
	ListActiveTrades(strategyID string) ([]*ActiveTrade, error)

	SubmitEntry(order *PendingOrder, pendingTradeID string) (internalID int64, err error)
	SubmitExit(order *PendingOrder, activeTradeID string) (internalID int64, err error)
	UpdateOrderStatus(internalID int64, status string) error
	AppendOrderEvent(internalID int64, kind string, raw []byte) error

	CompleteTrade(ct *CompletedTrade, tradeID string) error

	AppendTraceEvent(traceID, kind, reason string) error
}

// Subscriber is the quote-provider capability a Runtime needs.
type Subscriber interface {
	Subscribe(ticker string, priority quote.Priority) bool
	Unsubscribe(ticker string)
}

// Interest tracks, across every strategy, who currently cares about a
// ticker, so subscriptions can be released exactly when nobody does.
type Interest interface {
	Add(ticker, strategyID string)
	Remove(ticker, strategyID string)
	HasAny(ticker string) bool
}

// Runtime is one enabled strategy's complete live state machine.
type Runtime struct {
	cfg Config

	broker   broker.Broker
	subs     Subscriber
	store    Store
	interest Interest
	candles  *CandleBook
	log      *logger.Logger
	isPaper  bool

	mu            sync.Mutex
	pendingEntry  map[string]*PendingEntry  // trade_id -> entry
	activeTrade   map[string]*ActiveTrade   // trade_id -> trade
	pendingOrder  map[string]*PendingOrder  // order_id -> order
	orderInternal map[string]int64          // order_id -> internal db id
	mentionCount  map[string]int            // ticker -> today's mention count
}

// NewRuntime constructs a Runtime for one strategy. Recovery (loading
// durable ActiveTrades) is performed separately by
// (*engine.Engine).LoadStrategy, which calls LoadActiveTrade for each row
// it reads.
func NewRuntime(cfg Config, b broker.Broker, subs Subscriber, st Store, interest Interest, candles *CandleBook, isPaper bool, log *logger.Logger) *Runtime {
	return &Runtime{
		cfg:           cfg,
		broker:        b,
		subs:          subs,
		store:         st,
		interest:      interest,
		candles:       candles,
		isPaper:       isPaper,
		log:           log,
		pendingEntry:  make(map[string]*PendingEntry),
		activeTrade:   make(map[string]*ActiveTrade),
		pendingOrder:  make(map[string]*PendingOrder),
		orderInternal: make(map[string]int64),
		mentionCount:  make(map[string]int),
	}
}

// Config returns the strategy's configuration.
func (r *Runtime) Config() Config { return r.cfg }

// LoadActiveTrade re-admits a durable ActiveTrade on startup recovery
// (spec §4.7). It does not touch the subscription or broker state; the
// caller is responsible for subscribing the ticker.
func (r *Runtime) LoadActiveTrade(t *ActiveTrade) {
	r.mu.Lock()
	r.activeTrade[t.TradeID] = t
	r.mu.Unlock()
	r.interest.Add(t.Ticker, r.cfg.ID)
	metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Inc()
	if t.NeedsManualExit {
		metrics.NeedsManualExitGauge.Inc()
	}
}

// HasInterest reports whether this strategy currently holds a pending
// entry or active trade on ticker.
func (r *Runtime) HasInterest(ticker string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasInterestLocked(ticker)
}

func (r *Runtime) hasInterestLocked(ticker string) bool {
	for _, pe := range r.pendingEntry {
		if pe.Ticker == ticker {
			return true
		}
	}
	for _, at := range r.activeTrade {
		if at.Ticker == ticker {
			return true
		}
	}
	return false
}

func (r *Runtime) releaseIfIdle(ticker string) {
	r.interest.Remove(ticker, r.cfg.ID)
	if !r.interest.HasAny(ticker) {
		r.subs.Unsubscribe(ticker)
		r.candles.Release(ticker)
	}
}

// RecordMention increments and returns the ticker's intraday mention
// count held by this runtime. OnAlert's mention cap does not read it; the
// cap uses the count the alert package passes to OnAlert. Call sites own
// day-boundary resets.
func (r *Runtime) RecordMention(ticker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mentionCount[ticker]++
	return r.mentionCount[ticker]
}

// OnAlert implements §4.4.1.
func (r *Runtime) OnAlert(a announcement.Announcement, traceID string, mentionCount int) bool {
	if !r.cfg.Enabled {
		return false
	}

	session := announcement.MarketSession(a.Timestamp)
	reason, ok := r.cfg.Filters.PassesFilters(a, FilterInput{Session: session, MentionCount: mentionCount})
	if !ok {
		r.recordTrace(traceID, "filter_rejected", reason)
		return false
	}

	tradeable, tReason := r.broker.IsTradeable(a.Ticker)
	if !tradeable {
		r.recordTrace(traceID, "filter_rejected", "not tradeable: "+tReason)
		return false
	}

	r.mu.Lock()
	alreadyInterested := r.hasInterestLocked(a.Ticker)
	r.mu.Unlock()

	if !alreadyInterested {
		priority := quote.PriorityPendingEntry
		if !r.subs.Subscribe(a.Ticker, priority) {
			r.recordTrace(traceID, "filter_rejected", "subscription_limit")
			return false
		}
	}

	tradeID := uuid.NewString()
	building, hasBuilding := r.candles.Building(a.Ticker)
	entry := &PendingEntry{
		TradeID:    tradeID,
		Ticker:     a.Ticker,
		StrategyID: r.cfg.ID,
		AlertTime:  a.Timestamp,
	}
	if hasBuilding {
		entry.CandleStartAtAlert = building.Minute
	}

	r.mu.Lock()
	r.pendingEntry[tradeID] = entry
	r.mu.Unlock()
	r.interest.Add(a.Ticker, r.cfg.ID)
	metrics.PendingEntriesGauge.WithLabelValues(r.cfg.Name).Inc()

	if err := r.store.SavePendingEntry(entry); err != nil {
		r.log.Errorf("❌ [%s] failed to persist pending entry %s: %v", r.cfg.Name, tradeID, err)
	}
	r.recordTrace(traceID, "pending_entry_created", "")
	return true
}

// OnQuote implements §4.4.2 (candle construction is performed once by the
// caller via CandleBook; this method only evaluates pending entries and
// active trades) and §4.4.5 (exit evaluation).
func (r *Runtime) OnQuote(ticker string, price, volume float64, quoteTime time.Time, finalizedBar CandleBar, barFinalized bool) {
	if !r.HasInterest(ticker) {
		return
	}
	r.evaluatePendingEntries(ticker, price, quoteTime)
	r.evaluateExits(ticker, price, quoteTime)
}

func (r *Runtime) evaluatePendingEntries(ticker string, price float64, quoteTime time.Time) {
	r.mu.Lock()
	var candidates []*PendingEntry
	for _, pe := range r.pendingEntry {
		if pe.Ticker == ticker {
			candidates = append(candidates, pe)
		}
	}
	r.mu.Unlock()

	for _, pe := range candidates {
		r.evaluateOnePendingEntry(pe, price, quoteTime)
	}
}

func (r *Runtime) evaluateOnePendingEntry(pe *PendingEntry, price float64, quoteTime time.Time) {
	elapsedMinutes := quoteTime.Sub(pe.AlertTime).Minutes()
	if elapsedMinutes > r.cfg.Entry.EntryWindowMinutes {
		r.abandonPendingEntry(pe)
		return
	}

	if !pe.FirstPriceSet {
		r.mu.Lock()
		pe.FirstPrice = price
		pe.FirstPriceSet = true
		r.mu.Unlock()
	}

	if r.cfg.Entry.ConsecGreenCandles == 0 {
		r.executeEntry(pe, price, quoteTime, "no_candle_req")
		return
	}

	completed := r.candles.Completed(pe.Ticker)
	streak := r.candles.TrailingGreenStreak(pe.Ticker, r.cfg.Entry.MinCandleVolume)
	if streak >= r.cfg.Entry.ConsecGreenCandles {
		r.executeEntry(pe, price, quoteTime, "completed_N_green")
		return
	}

	building, hasBuilding := r.candles.Building(pe.Ticker)
	if hasBuilding && building.IsGreen() && building.MeetsVolume(r.cfg.Entry.MinCandleVolume) {
		if streak+1 >= r.cfg.Entry.ConsecGreenCandles {
			r.executeEntry(pe, price, quoteTime, "early_entry_N_green")
			return
		}
	}
	_ = completed
}

func (r *Runtime) abandonPendingEntry(pe *PendingEntry) {
	r.mu.Lock()
	delete(r.pendingEntry, pe.TradeID)
	r.mu.Unlock()
	metrics.PendingEntriesGauge.WithLabelValues(r.cfg.Name).Dec()
	if err := r.store.DeletePendingEntry(pe.TradeID); err != nil {
		r.log.Warnf("⚠️ [%s] failed to delete pending entry %s: %v", r.cfg.Name, pe.TradeID, err)
	}
	r.releaseIfIdle(pe.Ticker)
}

// executeEntry implements §4.4.3.
func (r *Runtime) executeEntry(pe *PendingEntry, price float64, quoteTime time.Time, trigger string) {
	stopLoss := r.cfg.Exit.ComputeStopLoss(price, pe.FirstPrice, pe.FirstPriceSet)
	takeProfit := r.cfg.Exit.ComputeTakeProfit(price)

	completed := r.candles.Completed(pe.Ticker)
	building, hasBuilding := r.candles.Building(pe.Ticker)
	elapsed := 0.0
	if hasBuilding {
		elapsed = quoteTime.Sub(building.Minute).Seconds()
	}
	shares := r.cfg.Sizing.ComputeShares(price, completed, building, hasBuilding, elapsed)
	if shares <= 0 {
		r.log.Warnf("⚠️ [%s] sizing produced 0 shares for %s, aborting entry", r.cfg.Name, pe.Ticker)
		r.abandonPendingEntry(pe)
		return
	}

	order, err := r.broker.Buy(pe.Ticker, shares, price)
	if err != nil {
		r.log.Errorf("❌ [%s] buy submit failed for %s: %v", r.cfg.Name, pe.Ticker, err)
		r.abandonPendingEntry(pe)
		return
	}

	po := &PendingOrder{
		OrderID:     order.OrderID,
		TradeID:     pe.TradeID,
		Ticker:      pe.Ticker,
		StrategyID:  r.cfg.ID,
		Side:        "buy",
		Shares:      shares,
		LimitPrice:  price,
		SubmittedAt: quoteTime,
	}
	po.takeProfit = takeProfit // stashed for OnBuyFill
	if stopLoss != r.cfg.Exit.ComputeStopLoss(price, 0, false) {
		po.stopLoss = stopLoss // open-derived: OnBuyFill keeps it as-is
	}

	internalID, err := r.store.SubmitEntry(po, pe.TradeID)
	if err != nil {
		r.log.Errorf("❌ [%s] failed to persist order for %s: %v", r.cfg.Name, pe.Ticker, err)
	}

	r.mu.Lock()
	r.pendingOrder[po.OrderID] = po
	r.orderInternal[po.OrderID] = internalID
	delete(r.pendingEntry, pe.TradeID)
	r.mu.Unlock()
	metrics.PendingEntriesGauge.WithLabelValues(r.cfg.Name).Dec()

	r.log.Infof("🚀 [%s] entry trigger=%s ticker=%s shares=%.2f price=%.2f", r.cfg.Name, trigger, pe.Ticker, shares, price)
}

// OnBuyFill implements §4.4.4.
func (r *Runtime) OnBuyFill(orderID string, filledShares, filledPrice float64, fillTime time.Time) {
	r.mu.Lock()
	po, ok := r.pendingOrder[orderID]
	internalID := r.orderInternal[orderID]
	if ok {
		delete(r.pendingOrder, orderID)
		delete(r.orderInternal, orderID)
	}
	r.mu.Unlock()
	if !ok {
		r.log.Warnf("⚠️ [%s] buy fill for unknown order %s", r.cfg.Name, orderID)
		return
	}

	if err := r.store.UpdateOrderStatus(internalID, "filled"); err != nil {
		r.log.Warnf("⚠️ [%s] failed to mark order %d filled: %v", r.cfg.Name, internalID, err)
	}

	takeProfit := r.cfg.Exit.ComputeTakeProfit(filledPrice)
	stopLoss := po.stopLoss
	if stopLoss == 0 {
		stopLoss = r.cfg.Exit.ComputeStopLoss(filledPrice, 0, false)
	}

	trade := &ActiveTrade{
		TradeID:           po.TradeID,
		Ticker:            po.Ticker,
		StrategyID:        r.cfg.ID,
		EntryPrice:        filledPrice,
		EntryTime:         fillTime,
		Shares:            filledShares,
		StopLossPrice:     stopLoss,
		TakeProfitPrice:   takeProfit,
		HighestSinceEntry: filledPrice,
		LastPrice:         filledPrice,
		LastQuoteTime:     fillTime,
	}

	r.mu.Lock()
	r.activeTrade[trade.TradeID] = trade
	r.mu.Unlock()
	metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Inc()

	if err := r.store.SaveActiveTrade(trade); err != nil {
		r.log.Errorf("❌ [%s] failed to persist active trade %s: %v", r.cfg.Name, trade.TradeID, err)
	}
	r.log.Infof("✅ [%s] buy filled ticker=%s shares=%.2f price=%.2f", r.cfg.Name, po.Ticker, filledShares, filledPrice)
}

// OnOrderCanceled / OnOrderRejected release an in-flight buy that never
// became a position.
func (r *Runtime) OnOrderCanceled(orderID string) { r.dropPendingOrder(orderID, "canceled") }
func (r *Runtime) OnOrderRejected(orderID string) { r.dropPendingOrder(orderID, "rejected") }

func (r *Runtime) dropPendingOrder(orderID, status string) {
	r.mu.Lock()
	po, ok := r.pendingOrder[orderID]
	internalID := r.orderInternal[orderID]
	if ok {
		delete(r.pendingOrder, orderID)
		delete(r.orderInternal, orderID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.UpdateOrderStatus(internalID, status); err != nil {
		r.log.Warnf("⚠️ [%s] failed to mark order %d %s: %v", r.cfg.Name, internalID, status, err)
	}
	if po.Side == "buy" {
		r.releaseIfIdle(po.Ticker)
	}
}

// evaluateExits implements §4.4.5.
func (r *Runtime) evaluateExits(ticker string, price float64, quoteTime time.Time) {
	r.mu.Lock()
	var candidates []*ActiveTrade
	for _, at := range r.activeTrade {
		if at.Ticker == ticker {
			candidates = append(candidates, at)
		}
	}
	r.mu.Unlock()

	for _, at := range candidates {
		r.evaluateOneExit(at, price, quoteTime)
	}
}

func (r *Runtime) evaluateOneExit(at *ActiveTrade, price float64, quoteTime time.Time) {
	r.mu.Lock()
	at.LastPrice = price
	at.LastQuoteTime = quoteTime
	if price > at.HighestSinceEntry {
		at.HighestSinceEntry = price
	}
	needsManual := at.NeedsManualExit
	r.mu.Unlock()

	if needsManual {
		return
	}

	var exitReason string
	var exitPrice float64

	switch {
	case price >= at.TakeProfitPrice:
		exitReason, exitPrice = "take_profit", at.TakeProfitPrice
	case price <= at.StopLossPrice:
		exitReason, exitPrice = "stop_loss", at.StopLossPrice
	case r.cfg.Exit.TrailingStopPct > 0:
		trailLevel := at.HighestSinceEntry * (1 - r.cfg.Exit.TrailingStopPct/100)
		if price <= trailLevel {
			exitReason, exitPrice = "trailing_stop", trailLevel
		}
	}
	if exitReason == "" && r.cfg.Exit.TimeoutMinutes > 0 && quoteTime.Sub(at.EntryTime).Minutes() >= r.cfg.Exit.TimeoutMinutes {
		exitReason, exitPrice = "timeout", price
	}
	if exitReason == "" {
		return
	}

	r.executeExit(at, exitPrice, exitReason, quoteTime)
}

// executeExit implements §4.4.6.
func (r *Runtime) executeExit(at *ActiveTrade, exitPrice float64, exitReason string, quoteTime time.Time) {
	r.mu.Lock()
	for _, po := range r.pendingOrder {
		if po.TradeID == at.TradeID && po.Side == "sell" {
			r.mu.Unlock()
			return // sell already in flight
		}
	}
	attempts := at.SellAttempts
	r.mu.Unlock()

	if attempts > 0 {
		if open, err := r.existingOpenSell(at.Ticker); err == nil && open {
			r.mu.Lock()
			delete(r.activeTrade, at.TradeID)
			r.mu.Unlock()
			metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Dec()
			r.releaseIfIdle(at.Ticker)
			return
		}
	}

	order, err := r.broker.Sell(at.Ticker, at.Shares, exitPrice)
	if err != nil {
		r.handleSellError(at, exitReason, err)
		return
	}

	po := &PendingOrder{
		OrderID:     order.OrderID,
		TradeID:     at.TradeID,
		Ticker:      at.Ticker,
		StrategyID:  r.cfg.ID,
		Side:        "sell",
		Shares:      at.Shares,
		LimitPrice:  exitPrice,
		SubmittedAt: quoteTime,
		EntryPrice:  at.EntryPrice,
		EntryTime:   at.EntryTime,
		ExitReason:  exitReason,
	}
	internalID, err := r.store.SubmitExit(po, at.TradeID)
	if err != nil {
		r.log.Errorf("❌ [%s] failed to persist sell order for %s: %v", r.cfg.Name, at.Ticker, err)
	}

	r.mu.Lock()
	r.pendingOrder[po.OrderID] = po
	r.orderInternal[po.OrderID] = internalID
	delete(r.activeTrade, at.TradeID)
	r.mu.Unlock()
	metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Dec()

	r.log.Infof("🛑 [%s] exit submitted ticker=%s reason=%s price=%.2f", r.cfg.Name, at.Ticker, exitReason, exitPrice)
}

func (r *Runtime) existingOpenSell(ticker string) (bool, error) {
	orders, err := r.broker.GetOpenOrders()
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Ticker == ticker && o.Side == broker.SideSell {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runtime) handleSellError(at *ActiveTrade, exitReason string, err error) {
	if isGhostPositionError(err) {
		completed := &CompletedTrade{
			TradeID:    at.TradeID,
			Ticker:     at.Ticker,
			StrategyID: r.cfg.ID,
			EntryPrice: at.EntryPrice,
			EntryTime:  at.EntryTime,
			ExitPrice:  0,
			ExitTime:   time.Now().UTC(),
			Shares:     at.Shares,
			ExitReason: "position_not_found",
			IsPaper:    r.isPaper,
		}
		if err := r.store.CompleteTrade(completed, at.TradeID); err != nil {
			r.log.Errorf("❌ [%s] failed to persist ghost-position trade %s: %v", r.cfg.Name, at.TradeID, err)
		}
		metrics.TradesCompletedTotal.WithLabelValues("position_not_found").Inc()
		r.mu.Lock()
		delete(r.activeTrade, at.TradeID)
		r.mu.Unlock()
		metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Dec()
		r.releaseIfIdle(at.Ticker)
		r.log.Warnf("👻 [%s] ghost position detected for %s, closed at zero P&L", r.cfg.Name, at.Ticker)
		return
	}

	r.mu.Lock()
	at.SellAttempts++
	attempts := at.SellAttempts
	newlyManual := false
	if attempts >= 3 && !at.NeedsManualExit {
		at.NeedsManualExit = true
		newlyManual = true
	}
	r.mu.Unlock()
	if newlyManual {
		metrics.NeedsManualExitGauge.Inc()
	}

	if attempts >= 3 {
		r.log.Errorf("🛑 [%s] %s needs manual exit after %d failed sell attempts: %v", r.cfg.Name, at.Ticker, attempts, err)
	} else {
		r.log.Warnf("⚠️ [%s] sell attempt %d failed for %s: %v", r.cfg.Name, attempts, at.Ticker, err)
	}
}

func isGhostPositionError(err error) bool {
	return err != nil && broker.IsGhostPositionError(err)
}

// OnSellFill implements §4.4.7.
func (r *Runtime) OnSellFill(orderID string, filledShares, filledPrice float64, fillTime time.Time) {
	r.mu.Lock()
	po, ok := r.pendingOrder[orderID]
	internalID := r.orderInternal[orderID]
	if ok {
		delete(r.pendingOrder, orderID)
		delete(r.orderInternal, orderID)
	}
	r.mu.Unlock()
	if !ok {
		r.log.Warnf("⚠️ [%s] sell fill for unknown order %s", r.cfg.Name, orderID)
		return
	}

	returnPct := (filledPrice - po.EntryPrice) / po.EntryPrice * 100
	pnl := (filledPrice - po.EntryPrice) * filledShares

	if err := r.store.UpdateOrderStatus(internalID, "filled"); err != nil {
		r.log.Warnf("⚠️ [%s] failed to mark sell order %d filled: %v", r.cfg.Name, internalID, err)
	}

	completed := &CompletedTrade{
		TradeID:    po.TradeID,
		Ticker:     po.Ticker,
		StrategyID: r.cfg.ID,
		EntryPrice: po.EntryPrice,
		EntryTime:  po.EntryTime,
		ExitPrice:  filledPrice,
		ExitTime:   fillTime,
		Shares:     filledShares,
		ExitReason: po.ExitReason,
		ReturnPct:  returnPct,
		PnL:        pnl,
		IsPaper:    r.isPaper,
	}
	if err := r.store.CompleteTrade(completed, po.TradeID); err != nil {
		r.log.Errorf("❌ [%s] failed to persist completed trade %s: %v", r.cfg.Name, po.TradeID, err)
	}
	metrics.TradesCompletedTotal.WithLabelValues(po.ExitReason).Inc()
	metrics.TradePnLTotal.WithLabelValues(r.cfg.Name).Add(pnl)
	r.releaseIfIdle(po.Ticker)
	r.log.Infof("📉 [%s] sell filled ticker=%s return=%.2f%% pnl=%.2f reason=%s", r.cfg.Name, po.Ticker, returnPct, pnl, po.ExitReason)
}

// Disable implements §4.4.8.
func (r *Runtime) Disable() {
	r.mu.Lock()
	r.cfg.Enabled = false
	pendingEntries := make([]*PendingEntry, 0, len(r.pendingEntry))
	for _, pe := range r.pendingEntry {
		pendingEntries = append(pendingEntries, pe)
	}
	activeTrades := make([]*ActiveTrade, 0, len(r.activeTrade))
	for _, at := range r.activeTrade {
		activeTrades = append(activeTrades, at)
	}
	r.mu.Unlock()

	for _, pe := range pendingEntries {
		r.abandonPendingEntry(pe)
	}
	for _, at := range activeTrades {
		r.executeExit(at, at.LastPrice, "strategy_disabled", time.Now().UTC())
	}
}

// Enable flips a disabled strategy back on. It has no side effects beyond
// the flag itself; new alerts begin producing pending entries again on
// the next OnAlert call.
func (r *Runtime) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Enabled = true
}

func (r *Runtime) recordTrace(traceID, kind, reason string) {
	if traceID == "" {
		return
	}
	if err := r.store.AppendTraceEvent(traceID, kind, reason); err != nil {
		r.log.Warnf("⚠️ [%s] failed to append trace event: %v", r.cfg.Name, err)
	}
}

// ReconcileGhosts implements the engine's reconciliation loop (§4.2): any
// ActiveTrade whose ticker is absent from a freshly fetched broker
// position snapshot is a ghost and is cleanly removed, the same way
// handleSellError treats a confirmed "position not found" response — a
// zero-P&L CompletedTrade row, no sell attempt (there is nothing to sell).
func (r *Runtime) ReconcileGhosts(brokerTickers map[string]bool) {
	r.mu.Lock()
	var ghosts []*ActiveTrade
	for _, at := range r.activeTrade {
		if !brokerTickers[at.Ticker] {
			ghosts = append(ghosts, at)
		}
	}
	r.mu.Unlock()

	for _, at := range ghosts {
		completed := &CompletedTrade{
			TradeID:    at.TradeID,
			Ticker:     at.Ticker,
			StrategyID: r.cfg.ID,
			EntryPrice: at.EntryPrice,
			EntryTime:  at.EntryTime,
			ExitTime:   time.Now().UTC(),
			Shares:     at.Shares,
			ExitReason: "position_not_found",
			IsPaper:    r.isPaper,
		}
		if err := r.store.CompleteTrade(completed, at.TradeID); err != nil {
			r.log.Errorf("❌ [%s] failed to persist ghost-position trade %s: %v", r.cfg.Name, at.TradeID, err)
		}
		metrics.TradesCompletedTotal.WithLabelValues("position_not_found").Inc()
		r.mu.Lock()
		delete(r.activeTrade, at.TradeID)
		r.mu.Unlock()
		metrics.ActiveTradesGauge.WithLabelValues(r.cfg.Name).Dec()
		r.releaseIfIdle(at.Ticker)
		r.log.Warnf("👻 [%s] reconciliation found ghost position %s, closed at zero P&L", r.cfg.Name, at.Ticker)
	}
}

// ActiveTickers returns the distinct tickers this strategy currently holds
// an ActiveTrade on, used by the admin/status API.
func (r *Runtime) ActiveTickers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, at := range r.activeTrade {
		if !seen[at.Ticker] {
			seen[at.Ticker] = true
			out = append(out, at.Ticker)
		}
	}
	return out
}

// Counts returns the current pending-entry and active-trade counts, used
// by the admin/status API and metrics reporting.
func (r *Runtime) Counts() (pending, active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingEntry), len(r.activeTrade)
}
