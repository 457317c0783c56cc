// Package announcement holds the parsed, structured form of an alert's
// chat content, plus the market-session calculation used by strategy
// filters.
package announcement

import "time"

// Announcement is the immutable, content-addressed record produced by the
// Alert Service for every accepted alert. It is never mutated after
// creation; a second alert for the same (Ticker, Timestamp) is a duplicate,
// not a revision.
type Announcement struct {
	Ticker    string
	Timestamp time.Time

	PriceThreshold float64
	Headline       string
	Country        string
	Channel        string
	Author         string
	Direction      string // "", "up", "up_right"

	// Fundamentals, present only when the chat line carried them.
	FloatShares     float64
	FloatKnown      bool
	IOPercent       float64
	IOKnown         bool
	MarketCap       float64
	MarketCapKnown  bool
	ShortInterest   float64
	ShortIntKnown   bool
	RegSHO          bool
	HighCTB         bool

	// HeadlineIsFinancing and HeadlineFinancingTags are derived, not
	// parsed directly off the wire; see ClassifyHeadline.
	HeadlineIsFinancing  bool
	HeadlineFinancingTags []string

	SourceMessage string
	Source        string // "live" (vs. an offline importer's label)
}

// Session identifies the trading session a timestamp falls in, per the
// America/New_York market calendar.
type Session string

const (
	SessionPremarket  Session = "premarket"
	SessionMarket     Session = "market"
	SessionPostmarket Session = "postmarket"
	SessionClosed     Session = "closed"
)
