// Package strategy implements the per-strategy state machine: filter
// evaluation, candle construction, and the entry/exit lifecycle described
// in spec §4.4.
package strategy

import "time"

// SizingMode selects how Config computes share counts.
type SizingMode string

const (
	SizingFixed      SizingMode = "fixed"
	SizingVolumePct  SizingMode = "volume_pct"
)

// FilterSet is the per-strategy set of alert filters evaluated in §4.4.1.
type FilterSet struct {
	AllowedChannels      []string // empty = allow all
	AllowedDirections    []string // empty = allow all
	AllowedSessions      []string // empty = allow all; values from announcement.Session
	MinPrice             float64
	MaxPrice             float64 // 0 = no cap
	CountryBlacklist     []string
	ExcludeFinancing     bool
	MaxIntradayMentions  int // 0 = unlimited
}

// EntryRules is the §4.4.2/§4.4.3 entry configuration.
type EntryRules struct {
	ConsecGreenCandles int
	MinCandleVolume    float64
	EntryWindowMinutes float64
}

// ExitRules is the §4.4.5 exit configuration.
type ExitRules struct {
	TakeProfitPct     float64
	StopLossPct       float64
	StopLossFromOpen  bool
	TrailingStopPct   float64 // 0 disables trailing stop
	TimeoutMinutes    float64 // 0 disables timeout exit
}

// SizingRules is the §4.4.3 position-sizing configuration.
type SizingRules struct {
	Mode        SizingMode
	FixedStake  float64
	VolumePct   float64
	MaxStake    float64
}

// Config is one strategy's full, user-editable configuration.
type Config struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool

	Filters FilterSet
	Entry   EntryRules
	Exit    ExitRules
	Sizing  SizingRules
}

// PendingEntry is one per accepted-but-not-yet-filled alert (spec §3).
type PendingEntry struct {
	TradeID    string
	Ticker     string
	StrategyID string

	AlertTime     time.Time
	FirstPrice    float64
	FirstPriceSet bool

	CandleStartAtAlert time.Time // the minute the building candle was on when alert arrived
}

// ActiveTrade is one per filled long position (spec §3).
type ActiveTrade struct {
	TradeID    string
	Ticker     string
	StrategyID string

	EntryPrice      float64
	EntryTime       time.Time
	FirstCandleOpen float64
	Shares          float64

	StopLossPrice   float64
	TakeProfitPrice float64

	HighestSinceEntry float64
	LastPrice         float64
	LastQuoteTime     time.Time

	SellAttempts     int
	NeedsManualExit  bool
}

// PendingOrder is one per in-flight broker order, keyed by broker order_id
// (spec §3).
type PendingOrder struct {
	OrderID    string
	TradeID    string
	Ticker     string
	StrategyID string
	Side       string // "buy" or "sell"
	Shares     float64
	LimitPrice float64
	SubmittedAt time.Time

	// Sell-only context, used to build a CompletedTrade on fill.
	EntryPrice float64
	EntryTime  time.Time
	ExitReason string

	// Buy-only context, stashed between executeEntry and OnBuyFill so the
	// fill handler can keep an open-derived stop rather than recomputing
	// it from the (possibly slipped) fill price.
	stopLoss   float64
	takeProfit float64
}

// CompletedTrade is the immutable historical record (spec §3).
type CompletedTrade struct {
	TradeID    string
	Ticker     string
	StrategyID string

	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	Shares     float64
	ExitReason string
	ReturnPct  float64
	PnL        float64
	IsPaper    bool
}
