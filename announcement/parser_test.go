package announcement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	ts := time.Date(2025, 12, 18, 14, 30, 45, 0, time.UTC)
	line := "BNKK  < $.50c  - Bonk, Inc. Provides 2026 Guidance... - Link  ~  :flag_us:  |  Float: 139 M  |  IO: 6.04%  |  MC: 26.8 M"

	a, ok := ParseLine(line, ts)
	require.True(t, ok)
	assert.Equal(t, "BNKK", a.Ticker)
	assert.InDelta(t, 0.50, a.PriceThreshold, 1e-9)
	assert.Equal(t, "Bonk, Inc. Provides 2026 Guidance...", a.Headline)
	assert.Equal(t, "US", a.Country)
	require.True(t, a.FloatKnown)
	assert.InDelta(t, 139_000_000, a.FloatShares, 1e-6)
	require.True(t, a.IOKnown)
	assert.InDelta(t, 6.04, a.IOPercent, 1e-9)
	require.True(t, a.MarketCapKnown)
	assert.InDelta(t, 26_800_000, a.MarketCap, 1e-6)
	assert.False(t, a.RegSHO)
	assert.False(t, a.HighCTB)
}

func TestParseLineWholeDollarPrice(t *testing.T) {
	a, ok := ParseLine("FGNX  < $4  - FG Nexus Announces Deal - Link  ~  :flag_us:", time.Now())
	require.True(t, ok)
	assert.InDelta(t, 4.0, a.PriceThreshold, 1e-9)
}

func TestParseLineFlagsAndShortInterest(t *testing.T) {
	line := "ABCD < $1.25 - Some Filing - Link ~ :flag_ca: | SI: 42.5% | High CTB | Reg SHO"
	a, ok := ParseLine(line, time.Now())
	require.True(t, ok)
	assert.Equal(t, "CA", a.Country)
	require.True(t, a.ShortIntKnown)
	assert.InDelta(t, 42.5, a.ShortInterest, 1e-9)
	assert.True(t, a.HighCTB)
	assert.True(t, a.RegSHO)
}

func TestParseLineDirectionArrow(t *testing.T) {
	a, ok := ParseLine("↑ABCD < $1.00 - Headline - Link ~ :flag_us:", time.Now())
	require.True(t, ok)
	assert.Equal(t, "up", a.Direction)
}

func TestParseLineNoTickerDropped(t *testing.T) {
	_, ok := ParseLine("not a valid line at all", time.Now())
	assert.False(t, ok)
}

func TestParseLineNoPriceDropped(t *testing.T) {
	_, ok := ParseLine("ABCD - Headline without a price - Link", time.Now())
	assert.False(t, ok)
}

func TestClassifyHeadlineFinancing(t *testing.T) {
	isFinancing, tags := ClassifyHeadline("Company Announces Public Offering of Common Stock")
	assert.True(t, isFinancing)
	assert.Contains(t, tags, "offering")
}

func TestClassifyHeadlineNotFinancing(t *testing.T) {
	isFinancing, tags := ClassifyHeadline("Company Wins FDA Approval for New Drug")
	assert.False(t, isFinancing)
	assert.Empty(t, tags)
}

func TestParseValueWithSuffix(t *testing.T) {
	cases := map[string]float64{
		"139 M": 139_000_000,
		"3.9 M": 3_900_000,
		"490 k": 490_000,
		"7.7 B": 7_700_000_000,
		"12":    12,
	}
	for in, want := range cases {
		got, ok := ParseValueWithSuffix(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1)
	}
}
