package announcement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func etTime(hour, min int) time.Time {
	loc, _ := time.LoadLocation("America/New_York")
	return time.Date(2025, 6, 10, hour, min, 0, 0, loc) // Tuesday
}

func TestMarketSession(t *testing.T) {
	assert.Equal(t, SessionClosed, MarketSession(etTime(3, 59)))
	assert.Equal(t, SessionPremarket, MarketSession(etTime(4, 0)))
	assert.Equal(t, SessionPremarket, MarketSession(etTime(9, 29)))
	assert.Equal(t, SessionMarket, MarketSession(etTime(9, 30)))
	assert.Equal(t, SessionMarket, MarketSession(etTime(15, 59)))
	assert.Equal(t, SessionPostmarket, MarketSession(etTime(16, 0)))
	assert.Equal(t, SessionPostmarket, MarketSession(etTime(19, 59)))
	assert.Equal(t, SessionClosed, MarketSession(etTime(20, 0)))
}

func TestMarketSessionWeekend(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	saturday := time.Date(2025, 6, 14, 10, 0, 0, 0, loc)
	assert.Equal(t, SessionClosed, MarketSession(saturday))
}
