package announcement

import "time"

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// time/tzdata is blank-imported by cmd/engine and cmd/tradectl so
		// this should never fail at runtime; fall back to UTC rather than
		// panic if it somehow does.
		loc = time.UTC
	}
	newYork = loc
}

// MarketSession classifies t (any timezone) into a trading session using
// the America/New_York wall-clock boundaries:
//
//	premarket  04:00–09:30
//	market     09:30–16:00
//	postmarket 16:00–20:00
//	closed     everything else (including weekends)
func MarketSession(t time.Time) Session {
	et := t.In(newYork)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return SessionClosed
	}

	minuteOfDay := et.Hour()*60 + et.Minute()
	const (
		premarketStart = 4 * 60
		marketOpen     = 9*60 + 30
		marketClose    = 16 * 60
		postmarketEnd  = 20 * 60
	)

	switch {
	case minuteOfDay >= premarketStart && minuteOfDay < marketOpen:
		return SessionPremarket
	case minuteOfDay >= marketOpen && minuteOfDay < marketClose:
		return SessionMarket
	case minuteOfDay >= marketClose && minuteOfDay < postmarketEnd:
		return SessionPostmarket
	default:
		return SessionClosed
	}
}
