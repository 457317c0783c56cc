package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleBookBuildsFirstMinuteWithoutFinalizing(t *testing.T) {
	b := NewCandleBook()
	minute := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	_, finalized := b.AddTick("ABCD", 10.00, 100, minute)
	assert.False(t, finalized)

	bar, ok := b.Building("ABCD")
	require.True(t, ok)
	assert.Equal(t, 10.00, bar.Open)
	assert.Equal(t, 100.0, bar.Volume)
}

func TestCandleBookFinalizesOnMinuteRollover(t *testing.T) {
	b := NewCandleBook()
	start := time.Date(2026, 1, 1, 9, 30, 10, 0, time.UTC)

	b.AddTick("ABCD", 10.00, 100, start)
	b.AddTick("ABCD", 10.50, 50, start.Add(20*time.Second))
	finalized, ok := b.AddTick("ABCD", 11.00, 25, start.Add(61*time.Second))
	require.True(t, ok)

	assert.Equal(t, 10.00, finalized.Open)
	assert.Equal(t, 10.50, finalized.High)
	assert.Equal(t, 10.00, finalized.Low)
	assert.Equal(t, 10.50, finalized.Close)
	assert.Equal(t, 150.0, finalized.Volume)
	assert.True(t, finalized.IsGreen())

	completed := b.Completed("ABCD")
	require.Len(t, completed, 1)
	assert.Equal(t, finalized, completed[0])

	building, ok := b.Building("ABCD")
	require.True(t, ok)
	assert.Equal(t, 11.00, building.Open)
}

func TestCandleBarMeetsVolume(t *testing.T) {
	bar := CandleBar{Volume: 5000}
	assert.True(t, bar.MeetsVolume(5000))
	assert.True(t, bar.MeetsVolume(4999))
	assert.False(t, bar.MeetsVolume(5001))
}

func TestTrailingGreenStreakStopsAtFirstNonQualifyingBar(t *testing.T) {
	b := NewCandleBook()
	tc := &tickerCandles{completed: []CandleBar{
		{Open: 1, Close: 1.1, Volume: 6000}, // green, but before the break
		{Open: 1, Close: 0.9, Volume: 6000}, // red, breaks streak
		{Open: 1, Close: 1.2, Volume: 6000}, // green, qualifies
		{Open: 1, Close: 1.3, Volume: 6000}, // green, qualifies (newest)
	}}
	b.tickers["ABCD"] = tc

	assert.Equal(t, 2, b.TrailingGreenStreak("ABCD", 5000))
}

func TestTrailingGreenStreakRequiresVolumeThreshold(t *testing.T) {
	b := NewCandleBook()
	b.tickers["ABCD"] = &tickerCandles{completed: []CandleBar{
		{Open: 1, Close: 1.1, Volume: 100},
	}}
	assert.Equal(t, 0, b.TrailingGreenStreak("ABCD", 5000))
}

func TestCandleBookReleaseClearsState(t *testing.T) {
	b := NewCandleBook()
	b.AddTick("ABCD", 10, 100, time.Now())
	b.Release("ABCD")

	_, ok := b.Building("ABCD")
	assert.False(t, ok)
	assert.Empty(t, b.Completed("ABCD"))
}
