package strategy

import (
	"sync"
	"time"
)

// CandleBar is one minute's OHLCV summary (spec §3), built from
// second-resolution quote ticks.
type CandleBar struct {
	Minute time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsGreen reports whether the bar closed above its open.
func (c CandleBar) IsGreen() bool { return c.Close > c.Open }

// MeetsVolume reports whether the bar's volume meets or exceeds threshold
// (exact equality counts as meeting it, per the spec's boundary cases).
func (c CandleBar) MeetsVolume(threshold float64) bool { return c.Volume >= threshold }

type tickerCandles struct {
	completed []CandleBar
	building  *CandleBar
}

// CandleBook is the per-ticker candle state shared across every strategy
// watching a ticker (spec §4.4.2: "shared across all strategies on this
// ticker, but equally evaluated by each"). It is adapted from the
// teacher's mutex-guarded per-ticker collector, stripped of VWAP analytics
// and generalized to plain minute-bucket bar construction.
type CandleBook struct {
	mu      sync.RWMutex
	tickers map[string]*tickerCandles
}

// NewCandleBook constructs an empty book.
func NewCandleBook() *CandleBook {
	return &CandleBook{tickers: make(map[string]*tickerCandles)}
}

func truncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// AddTick folds one quote tick into the ticker's candle state. It returns
// the just-finalized bar (ok=true) if this tick began a new minute.
func (b *CandleBook) AddTick(ticker string, price, volume float64, quoteTime time.Time) (finalized CandleBar, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tc, exists := b.tickers[ticker]
	if !exists {
		tc = &tickerCandles{}
		b.tickers[ticker] = tc
	}

	minute := truncateToMinute(quoteTime)

	if tc.building == nil {
		tc.building = &CandleBar{Minute: minute, Open: price, High: price, Low: price, Close: price, Volume: volume}
		return CandleBar{}, false
	}

	if !tc.building.Minute.Equal(minute) {
		finalized = *tc.building
		tc.completed = append(tc.completed, finalized)
		tc.building = &CandleBar{Minute: minute, Open: price, High: price, Low: price, Close: price, Volume: volume}
		return finalized, true
	}

	if price > tc.building.High {
		tc.building.High = price
	}
	if price < tc.building.Low {
		tc.building.Low = price
	}
	tc.building.Close = price
	tc.building.Volume += volume
	return CandleBar{}, false
}

// Completed returns a copy of the completed-candle list for ticker, oldest
// first.
func (b *CandleBook) Completed(ticker string) []CandleBar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tc, ok := b.tickers[ticker]
	if !ok {
		return nil
	}
	out := make([]CandleBar, len(tc.completed))
	copy(out, tc.completed)
	return out
}

// Building returns the currently-building candle for ticker, if any.
func (b *CandleBook) Building(ticker string) (CandleBar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tc, ok := b.tickers[ticker]
	if !ok || tc.building == nil {
		return CandleBar{}, false
	}
	return *tc.building, true
}

// TrailingGreenStreak counts the trailing run of completed candles that are
// green and meet the volume threshold — the "completed_N_green" count in
// §4.4.2 step 4.
func (b *CandleBook) TrailingGreenStreak(ticker string, minVolume float64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tc, ok := b.tickers[ticker]
	if !ok {
		return 0
	}
	count := 0
	for i := len(tc.completed) - 1; i >= 0; i-- {
		bar := tc.completed[i]
		if bar.IsGreen() && bar.MeetsVolume(minVolume) {
			count++
			continue
		}
		break
	}
	return count
}

// Release drops all candle state for ticker, called once no strategy has
// any pending entry or active trade on it.
func (b *CandleBook) Release(ticker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tickers, ticker)
}
