// Package broker defines the capability surface the engine needs from an
// execution venue, and the Alpaca-shaped REST implementation of it.
package broker

import "time"

// Position is an open position as reported by the broker.
type Position struct {
	Ticker          string
	Shares          float64
	AvgEntryPrice   float64
	MarketValue     float64
	UnrealizedPL    float64
	UnrealizedPLPct float64
}

// OrderSide is "buy" or "sell".
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus mirrors the broker's lifecycle vocabulary.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partially_filled"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a broker order as reported by the broker (not the durable
// store's Order row, which carries additional engine-side bookkeeping).
type Order struct {
	OrderID     string
	Ticker      string
	Side        OrderSide
	Shares      float64
	OrderType   string
	Status      OrderStatus
	FilledPrice float64
	FilledAt    time.Time
}

// Quote is a point-in-time price read.
type Quote struct {
	Ticker    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64
	Timestamp time.Time
}

// AccountInfo summarizes the broker account.
type AccountInfo struct {
	Equity       float64
	Cash         float64
	BuyingPower  float64
}

// FillEvent is pushed to the engine asynchronously as broker orders
// transition. Submitted orders are matched back to engine state by
// OrderID.
type FillEvent struct {
	OrderID       string
	Ticker        string
	Status        OrderStatus
	FilledShares  float64
	FilledPrice   float64
	FillTime      time.Time
	RejectReason  string
	RawPayload    []byte // broker's raw order payload, when available (§3 OrderEvent.raw_data)
}

// FillSink receives asynchronous fill/cancel/reject notifications. The
// broker client is constructed with one of these rather than exposing a
// mutable callback field, per the "no callbacks via attribute assignment"
// design note.
type FillSink interface {
	OnFill(FillEvent)
}

// Broker is the capability surface §4.5 requires. Paper vs. live is a
// construction-time decision; this interface is identical either way.
type Broker interface {
	Buy(ticker string, shares float64, limitPrice float64) (Order, error)
	Sell(ticker string, shares float64, limitPrice float64) (Order, error)
	CancelOrder(orderID string) error
	CancelAllOrders(ticker string) (int, error)

	GetPosition(ticker string) (*Position, error)
	GetPositions() ([]Position, error)
	GetOpenOrders() ([]Order, error)
	GetQuote(ticker string) (Quote, error)
	GetAccountInfo() (AccountInfo, error)

	// IsTradeable reports whether the broker will currently accept orders
	// for ticker (halted/delisted tickers return false).
	IsTradeable(ticker string) (bool, string)

	IsPaper() bool
	Name() string
}

// ErrInsufficientQuantity and ErrPositionNotFound are the two broker
// rejection shapes that the strategy runtime treats as ghost-position
// evidence rather than a retryable failure (§4.4.6 / §7).
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	ErrInsufficientQuantity = sentinelError("insufficient quantity")
	ErrPositionNotFound     = sentinelError("position does not exist")
)
