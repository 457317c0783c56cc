package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-engine/logger"
)

type fakeDelivery struct {
	ticks []Tick
}

func (f *fakeDelivery) OnQuote(t Tick) { f.ticks = append(f.ticks, t) }

func newTestProvider(delivery Delivery, cap int) *Provider {
	return NewProvider("http://example.invalid/key", "wss://example.invalid/ws", delivery, logger.Nop(), WithSubscriptionCap(cap))
}

func TestTickerFromCode(t *testing.T) {
	assert.Equal(t, "AAPL", tickerFromCode("NASDAQ:AAPL"))
	assert.Equal(t, "ABCD", tickerFromCode("ABCD"))
	assert.Equal(t, "WXYZ", tickerFromCode("EXCH:SUB:WXYZ"))
}

func TestSubscribeWithinCapGrantsImmediately(t *testing.T) {
	p := newTestProvider(&fakeDelivery{}, 2)
	assert.True(t, p.Subscribe("AAAA", PriorityPendingEntry))
	assert.True(t, p.IsSubscribed("AAAA"))
}

func TestSubscribeAlreadySubscribedReturnsTrue(t *testing.T) {
	p := newTestProvider(&fakeDelivery{}, 2)
	p.Subscribe("AAAA", PriorityPendingEntry)
	assert.True(t, p.Subscribe("AAAA", PriorityPendingEntry))
}

func TestSubscribeBeyondCapQueues(t *testing.T) {
	p := newTestProvider(&fakeDelivery{}, 1)
	p.Subscribe("AAAA", PriorityPendingEntry)
	assert.False(t, p.Subscribe("BBBB", PriorityPendingEntry))
	assert.False(t, p.IsSubscribed("BBBB"))
}

func TestUnsubscribePromotesQueuedWaiter(t *testing.T) {
	p := newTestProvider(&fakeDelivery{}, 1)
	p.Subscribe("AAAA", PriorityPendingEntry)
	p.Subscribe("BBBB", PriorityPendingEntry)

	p.Unsubscribe("AAAA")
	assert.True(t, p.IsSubscribed("BBBB"))
	assert.False(t, p.IsSubscribed("AAAA"))
}

func TestSubscribeActiveTradePriorityDrainsBeforePendingEntry(t *testing.T) {
	p := newTestProvider(&fakeDelivery{}, 1)
	p.Subscribe("AAAA", PriorityPendingEntry)
	p.Subscribe("PENDING1", PriorityPendingEntry)
	p.Subscribe("ACTIVE1", PriorityActiveTrade)

	p.Unsubscribe("AAAA")
	assert.True(t, p.IsSubscribed("ACTIVE1"), "active-trade waiter should be promoted ahead of an earlier-queued pending entry")
}

func TestHandleMessageSeriesBar(t *testing.T) {
	d := &fakeDelivery{}
	p := newTestProvider(d, 10)

	msg := []byte(`{"code":"NASDAQ:AAPL","series":[{"time":1700000000,"close":150.25,"volume":1000}]}`)
	p.handleMessage(msg)

	require.Len(t, d.ticks, 1)
	assert.Equal(t, "AAPL", d.ticks[0].Ticker)
	assert.InDelta(t, 150.25, d.ticks[0].Price, 1e-9)
	assert.InDelta(t, 1000, d.ticks[0].Volume, 1e-9)
}

func TestHandleMessageDataShape(t *testing.T) {
	d := &fakeDelivery{}
	p := newTestProvider(d, 10)

	msg := []byte(`{"data":[{"code":"ABCD","last_price":5.50,"volume":200}]}`)
	p.handleMessage(msg)

	require.Len(t, d.ticks, 1)
	assert.Equal(t, "ABCD", d.ticks[0].Ticker)
	assert.InDelta(t, 5.50, d.ticks[0].Price, 1e-9)
}

func TestHandleMessageHeartbeatIsIgnored(t *testing.T) {
	d := &fakeDelivery{}
	p := newTestProvider(d, 10)

	p.handleMessage([]byte(`{"server_time":1700000000}`))
	assert.Empty(t, d.ticks)
}

func TestHandleMessageVendorErrorIsIgnored(t *testing.T) {
	d := &fakeDelivery{}
	p := newTestProvider(d, 10)

	p.handleMessage([]byte(`{"error":"bad subscription"}`))
	assert.Empty(t, d.ticks)
}

func TestHandleMessageZeroPriceBarIsSkipped(t *testing.T) {
	d := &fakeDelivery{}
	p := newTestProvider(d, 10)

	p.handleMessage([]byte(`{"code":"ABCD","series":[{"time":1700000000,"close":0,"volume":10}]}`))
	assert.Empty(t, d.ticks)
}
