package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-engine/announcement"
	"momentum-engine/broker"
	"momentum-engine/engine"
	"momentum-engine/logger"
	"momentum-engine/quote"
	"momentum-engine/store"
	"momentum-engine/strategy"
)

// fakeBroker implements broker.Broker with in-memory bookkeeping, enough to
// drive the engine's dispatch/recovery paths without a real Alpaca account.
type fakeBroker struct {
	positions []broker.Position
	orders    []broker.Order
	nextID    int
}

func (f *fakeBroker) Buy(ticker string, shares, limitPrice float64) (broker.Order, error) {
	f.nextID++
	o := broker.Order{OrderID: "ord-" + ticker, Ticker: ticker, Side: broker.SideBuy, Shares: shares, Status: broker.OrderStatusNew}
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeBroker) Sell(ticker string, shares, limitPrice float64) (broker.Order, error) {
	o := broker.Order{OrderID: "ord-sell-" + ticker, Ticker: ticker, Side: broker.SideSell, Shares: shares, Status: broker.OrderStatusNew}
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeBroker) CancelOrder(orderID string) error            { return nil }
func (f *fakeBroker) CancelAllOrders(ticker string) (int, error)   { return 0, nil }
func (f *fakeBroker) GetPosition(ticker string) (*broker.Position, error) {
	for _, p := range f.positions {
		if p.Ticker == ticker {
			pp := p
			return &pp, nil
		}
	}
	return nil, nil
}
func (f *fakeBroker) GetPositions() ([]broker.Position, error) { return f.positions, nil }
func (f *fakeBroker) GetOpenOrders() ([]broker.Order, error)   { return f.orders, nil }
func (f *fakeBroker) GetQuote(ticker string) (broker.Quote, error) {
	return broker.Quote{Ticker: ticker, Last: 10, Bid: 9.99, Ask: 10.01}, nil
}
func (f *fakeBroker) GetAccountInfo() (broker.AccountInfo, error) {
	return broker.AccountInfo{Equity: 100000, Cash: 100000, BuyingPower: 100000}, nil
}
func (f *fakeBroker) IsTradeable(ticker string) (bool, string) { return true, "" }
func (f *fakeBroker) IsPaper() bool                            { return true }
func (f *fakeBroker) Name() string                             { return "fake" }

func permissiveConfig(id string, priority int) strategy.Config {
	return strategy.Config{
		ID: id, Name: id, Priority: priority, Enabled: true,
		Entry: strategy.EntryRules{ConsecGreenCandles: 1, EntryWindowMinutes: 5},
		Exit:  strategy.ExitRules{TakeProfitPct: 10, StopLossPct: 5},
		Sizing: strategy.SizingRules{Mode: strategy.SizingFixed, FixedStake: 100},
	}
}

func newTestEngine(t *testing.T) (*engine.Engine, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b := &fakeBroker{}
	qp := quote.NewProvider("http://example.invalid/key", "wss://example.invalid/ws", nil, logger.Nop())
	eng := engine.New(db, b, qp, true, time.Hour, logger.Nop())
	return eng, db
}

func TestLoadStrategyAddsStatusEntry(t *testing.T) {
	eng, db := newTestEngine(t)
	cfg := permissiveConfig("s1", 10)
	require.NoError(t, db.SaveStrategy(cfg))
	require.NoError(t, eng.LoadStrategy(cfg))

	statuses := eng.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "s1", statuses[0].Config.ID)
	assert.Equal(t, 0, statuses[0].PendingCount)
}

func TestStatusOrderedByPriority(t *testing.T) {
	eng, db := newTestEngine(t)
	low := permissiveConfig("low", 20)
	high := permissiveConfig("high", 5)
	require.NoError(t, db.SaveStrategy(low))
	require.NoError(t, db.SaveStrategy(high))
	require.NoError(t, eng.LoadStrategy(low))
	require.NoError(t, eng.LoadStrategy(high))

	statuses := eng.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "high", statuses[0].Config.ID)
	assert.Equal(t, "low", statuses[1].Config.ID)
}

func TestEnableDisableStrategy(t *testing.T) {
	eng, db := newTestEngine(t)
	cfg := permissiveConfig("s1", 10)
	require.NoError(t, db.SaveStrategy(cfg))
	require.NoError(t, eng.LoadStrategy(cfg))

	require.NoError(t, eng.DisableStrategy("s1"))
	got, err := db.GetStrategy("s1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.NoError(t, eng.EnableStrategy("s1"))
	got, err = db.GetStrategy("s1")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
}

func TestEnableStrategyUnknownIDErrors(t *testing.T) {
	eng, _ := newTestEngine(t)
	err := eng.EnableStrategy("nonexistent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPriorityReordersStatus(t *testing.T) {
	eng, db := newTestEngine(t)
	a := permissiveConfig("a", 10)
	b := permissiveConfig("b", 20)
	require.NoError(t, db.SaveStrategy(a))
	require.NoError(t, db.SaveStrategy(b))
	require.NoError(t, eng.LoadStrategy(a))
	require.NoError(t, eng.LoadStrategy(b))

	require.NoError(t, eng.SetPriority("b", 1))

	statuses := eng.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "b", statuses[0].Config.ID)
}

func TestGetAccountInfoProxiesBroker(t *testing.T) {
	eng, _ := newTestEngine(t)
	info, err := eng.GetAccountInfo()
	require.NoError(t, err)
	assert.Equal(t, 100000.0, info.Equity)
}

func TestOnAlertDispatchesToLoadedStrategy(t *testing.T) {
	eng, db := newTestEngine(t)
	cfg := permissiveConfig("s1", 10)
	require.NoError(t, db.SaveStrategy(cfg))
	require.NoError(t, eng.LoadStrategy(cfg))

	eng.Start(context.Background())
	defer eng.Stop()

	a := announcement.Announcement{Ticker: "ABCD", Timestamp: time.Now(), PriceThreshold: 5}
	eng.OnAlert(a, "trace-1", 1, nil)

	require.Eventually(t, func() bool {
		statuses := eng.Status()
		return len(statuses) == 1 && statuses[0].PendingCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}
