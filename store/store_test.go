package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-engine/announcement"
	"momentum-engine/strategy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGetStrategyRoundTrips(t *testing.T) {
	db := openTestDB(t)

	cfg := strategy.Config{
		ID: "s1", Name: "momentum-1", Priority: 10, Enabled: true,
		Filters: strategy.FilterSet{MinPrice: 1, MaxPrice: 20},
		Entry:   strategy.EntryRules{ConsecGreenCandles: 2},
		Exit:    strategy.ExitRules{TakeProfitPct: 10, StopLossPct: 5},
		Sizing:  strategy.SizingRules{Mode: strategy.SizingFixed, FixedStake: 500},
	}
	require.NoError(t, db.SaveStrategy(cfg))

	got, err := db.GetStrategy("s1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	assert.Equal(t, cfg.Priority, got.Priority)
	assert.True(t, got.Enabled)
	assert.Equal(t, cfg.Filters, got.Filters)
	assert.Equal(t, cfg.Exit, got.Exit)
}

func TestGetStrategyNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetStrategy("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStrategiesOrderedByPriority(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveStrategy(strategy.Config{ID: "b", Name: "b", Priority: 20}))
	require.NoError(t, db.SaveStrategy(strategy.Config{ID: "a", Name: "a", Priority: 10}))

	list, err := db.ListStrategies()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestSetStrategyEnabledAndPriority(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveStrategy(strategy.Config{ID: "s1", Name: "s1", Priority: 10, Enabled: false}))

	require.NoError(t, db.SetStrategyEnabled("s1", true))
	require.NoError(t, db.SetStrategyPriority("s1", 99))

	got, err := db.GetStrategy("s1")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, 99, got.Priority)
}

func TestDeleteStrategy(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveStrategy(strategy.Config{ID: "s1", Name: "s1", Priority: 10}))
	require.NoError(t, db.DeleteStrategy("s1"))

	_, err := db.GetStrategy("s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingEntrySaveAndDelete(t *testing.T) {
	db := openTestDB(t)
	pe := &strategy.PendingEntry{TradeID: "t1", Ticker: "ABCD", StrategyID: "s1", AlertTime: time.Now()}
	require.NoError(t, db.SavePendingEntry(pe))
	require.NoError(t, db.DeletePendingEntry("t1"))
}

func TestActiveTradeSaveListAndDelete(t *testing.T) {
	db := openTestDB(t)
	at := &strategy.ActiveTrade{
		TradeID: "t1", Ticker: "ABCD", StrategyID: "s1",
		EntryPrice: 10, EntryTime: time.Now(), Shares: 100,
		StopLossPrice: 9.5, TakeProfitPrice: 11, HighestSinceEntry: 10,
	}
	require.NoError(t, db.SaveActiveTrade(at))

	list, err := db.ListActiveTrades("s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ABCD", list[0].Ticker)

	all, err := db.ListAllActiveTrades()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, db.DeleteActiveTrade("t1"))
	list, err = db.ListActiveTrades("s1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderLifecycleAndFillRouting(t *testing.T) {
	db := openTestDB(t)
	order := &strategy.PendingOrder{
		OrderID: "broker-123", TradeID: "t1", StrategyID: "s1",
		Ticker: "ABCD", Side: "buy", Shares: 100, LimitPrice: 10,
	}
	internalID, err := db.SaveOrder(order, "submitted")
	require.NoError(t, err)
	assert.Positive(t, internalID)

	meta, err := db.GetOrderMeta("broker-123")
	require.NoError(t, err)
	assert.Equal(t, "s1", meta.StrategyID)
	assert.Equal(t, "buy", meta.Side)
	assert.Equal(t, "t1", meta.TradeID)

	gotID, err := db.RecordFill("broker-123", 100, 10.05, []byte(`{"event":"fill"}`))
	require.NoError(t, err)
	assert.Equal(t, internalID, gotID)
}

func TestRecordFillUnknownOrder(t *testing.T) {
	db := openTestDB(t)
	_, err := db.RecordFill("nonexistent", 1, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompletedTradeSaveAndList(t *testing.T) {
	db := openTestDB(t)
	ct := &strategy.CompletedTrade{
		TradeID: "t1", Ticker: "ABCD", StrategyID: "s1",
		EntryPrice: 10, EntryTime: time.Now(),
		ExitPrice: 11, ExitTime: time.Now(), Shares: 100,
		ExitReason: "take_profit", ReturnPct: 10, PnL: 100, IsPaper: true,
	}
	require.NoError(t, db.SaveCompletedTrade(ct))

	list, err := db.ListCompletedTrades(10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "take_profit", list[0].ExitReason)
}

func TestSaveAnnouncementIgnoresDuplicateKey(t *testing.T) {
	db := openTestDB(t)
	ts := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	a := announcement.Announcement{Ticker: "ABCD", Timestamp: ts, PriceThreshold: 5.0, Headline: "headline", Country: "US", Source: "live"}
	require.NoError(t, db.SaveAnnouncement(a))

	dup := a
	dup.PriceThreshold = 6.0
	dup.Headline = "different headline"
	require.NoError(t, db.SaveAnnouncement(dup))
}

func TestCreateTraceAndAppendEvent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateTrace("trace-1", "ABCD"))
	require.NoError(t, db.AppendTraceEvent("trace-1", "filter_rejected", "price too low"))

	tr, err := db.GetTrace("trace-1")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", tr.Ticker)
	assert.Equal(t, "filtered", tr.Status)
	assert.Len(t, tr.Events, 2)
}
