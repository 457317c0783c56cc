package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMentionTrackerIncrementsPerTicker(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	m := newMentionTracker(loc)

	at := time.Date(2026, 1, 5, 10, 0, 0, 0, loc)
	assert.Equal(t, 1, m.Record("ABCD", at))
	assert.Equal(t, 2, m.Record("ABCD", at))
	assert.Equal(t, 1, m.Record("WXYZ", at))
}

func TestMentionTrackerResetsOnNewTradingDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	m := newMentionTracker(loc)

	day1 := time.Date(2026, 1, 5, 10, 0, 0, 0, loc)
	day2 := time.Date(2026, 1, 6, 10, 0, 0, 0, loc)

	m.Record("ABCD", day1)
	m.Record("ABCD", day1)
	assert.Equal(t, 1, m.Record("ABCD", day2))
}
