// Package quote implements the bounded, priority-aware WebSocket quote
// subscription multiplexer described in spec §4.3.
package quote

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"momentum-engine/logger"
	"momentum-engine/metrics"
)

// Tick is a single (ticker, price, volume, time) observation delivered to
// the engine. The receive loop invokes the configured Delivery port
// synchronously and in order per ticker; the port's callback must be
// bounded in duration.
type Tick struct {
	Ticker    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Delivery is the typed port the quote provider pushes ticks through,
// replacing the teacher's pattern of writing an on_quote callback field.
type Delivery interface {
	OnQuote(Tick)
}

// Priority distinguishes why a ticker is wanted, used to decide who gets a
// subscription slot when the cap is reached.
type Priority int

const (
	PriorityPendingEntry Priority = iota
	PriorityActiveTrade
)

type waiter struct {
	ticker   string
	priority Priority
}

// Option configures a Provider at construction time, adapted from the
// teacher's functional-options HTTP client constructors.
type Option func(*Provider)

func WithSubscriptionCap(n int) Option {
	return func(p *Provider) { p.cap = n }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(p *Provider) { p.dialer = d }
}

func WithPingInterval(d time.Duration) Option {
	return func(p *Provider) { p.pingInterval = d }
}

// Provider is the process-wide multiplexer over a single WebSocket
// connection to the market-data vendor.
type Provider struct {
	keyURL string
	wsURL  string
	apiKey string

	cap          int
	pingInterval time.Duration
	dialer       *websocket.Dialer

	delivery Delivery
	log      *logger.Logger

	mu            sync.Mutex
	subscriptions map[string]bool
	pending       *list.List // ordered list of *waiter, highest priority drained first
	conn          *websocket.Conn
	connected     bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProvider builds a quote provider. keyURL is polled once per connect
// attempt to obtain a fresh vendor credential; wsURL is the websocket
// endpoint the credential is valid against.
func NewProvider(keyURL, wsURL string, delivery Delivery, log *logger.Logger, opts ...Option) *Provider {
	p := &Provider{
		keyURL:        keyURL,
		wsURL:         wsURL,
		cap:           30,
		pingInterval:  25 * time.Second,
		dialer:        websocket.DefaultDialer,
		delivery:      delivery,
		log:           log,
		subscriptions: make(map[string]bool),
		pending:       list.New(),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe requests a subscription slot for ticker. If already
// subscribed, returns true immediately. If the cap has not been reached,
// the ticker is added and a subscribe frame sent. Otherwise it is queued
// (by priority) and false is returned — the caller MUST NOT accept a new
// pending entry for this ticker.
func (p *Provider) Subscribe(ticker string, priority Priority) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscriptions[ticker] {
		return true
	}
	if len(p.subscriptions) < p.cap {
		p.subscriptions[ticker] = true
		p.sendSubscriptionsLocked()
		metrics.SubscriptionsGauge.Set(float64(len(p.subscriptions)))
		return true
	}
	p.enqueueLocked(ticker, priority)
	metrics.SubscriptionDeniedTotal.Inc()
	return false
}

func (p *Provider) enqueueLocked(ticker string, priority Priority) {
	for e := p.pending.Front(); e != nil; e = e.Next() {
		if e.Value.(*waiter).ticker == ticker {
			return
		}
	}
	w := &waiter{ticker: ticker, priority: priority}
	if priority == PriorityActiveTrade {
		// active trades are drained first: insert before the first
		// pending-entry waiter.
		for e := p.pending.Front(); e != nil; e = e.Next() {
			if e.Value.(*waiter).priority == PriorityPendingEntry {
				p.pending.InsertBefore(w, e)
				return
			}
		}
	}
	p.pending.PushBack(w)
}

// Unsubscribe removes ticker from the active set and promotes the
// highest-priority queued waiter, if any.
func (p *Provider) Unsubscribe(ticker string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.subscriptions[ticker] {
		return
	}
	delete(p.subscriptions, ticker)

	if e := p.pending.Front(); e != nil {
		w := p.pending.Remove(e).(*waiter)
		p.subscriptions[w.ticker] = true
	}
	p.sendSubscriptionsLocked()
	metrics.SubscriptionsGauge.Set(float64(len(p.subscriptions)))
}

// IsSubscribed reports whether ticker currently holds a live slot.
func (p *Provider) IsSubscribed(ticker string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscriptions[ticker]
}

type subscriptionMsg struct {
	Code        string `json:"code"`
	Type        string `json:"type"`
	BarType     string `json:"bar_type"`
	BarInterval int    `json:"bar_interval"`
	Extended    bool   `json:"extended"`
	RecentBars  bool   `json:"recent_bars"`
}

type subscribeFrame struct {
	APIKey        string             `json:"api_key"`
	Subscriptions []subscriptionMsg  `json:"subscriptions"`
}

// sendSubscriptionsLocked re-sends the full subscription set, matching the
// vendor's protocol of a full-set resend on every change and on reconnect.
func (p *Provider) sendSubscriptionsLocked() {
	if p.conn == nil {
		return
	}
	frame := subscribeFrame{APIKey: p.apiKey}
	for ticker := range p.subscriptions {
		frame.Subscriptions = append(frame.Subscriptions, subscriptionMsg{
			Code:        ticker,
			Type:        "series",
			BarType:     "second",
			BarInterval: 1,
			Extended:    true,
		})
	}
	if err := p.conn.WriteJSON(frame); err != nil {
		p.log.Warnf("⚠️ [Quote] failed to send subscriptions: %v", err)
	}
}

// Run connects and consumes messages until ctx is canceled, reconnecting
// with exponential backoff (capped at 60s) on any error or close.
func (p *Provider) Run(ctx context.Context) {
	delay := 1 * time.Second
	const maxDelay = 60 * time.Second
	first := true

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !first {
			metrics.QuoteReconnectsTotal.Inc()
		}
		first = false

		if err := p.connectAndRun(ctx); err != nil {
			p.log.Warnf("⚠️ [Quote] connection error: %v (retrying in %s)", err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (p *Provider) fetchKey() (string, error) {
	resp, err := http.Get(p.keyURL)
	if err != nil {
		return "", fmt.Errorf("fetch vendor key: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read vendor key response: %w", err)
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse vendor key response: %w", err)
	}
	return out.Key, nil
}

func (p *Provider) connectAndRun(ctx context.Context) error {
	key, err := p.fetchKey()
	if err != nil {
		return err
	}

	conn, _, err := p.dialer.DialContext(ctx, p.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	p.mu.Lock()
	p.apiKey = key
	p.conn = conn
	p.connected = true
	p.sendSubscriptionsLocked()
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.connected = false
		p.conn = nil
		p.mu.Unlock()
	}()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	p.wg.Add(1)
	go p.heartbeatLoop(heartbeatCtx, conn)
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		p.handleMessage(data)
	}
}

func (p *Provider) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type seriesBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type inboundMessage struct {
	ServerTime int64       `json:"server_time"`
	Error      string      `json:"error"`
	Code       string      `json:"code"`
	Series     []seriesBar `json:"series"`
	Data       []struct {
		Code      string  `json:"code"`
		LastPrice float64 `json:"last_price"`
		Volume    float64 `json:"volume"`
	} `json:"data"`
}

func (p *Provider) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.log.Warnf("⚠️ [Quote] unparsable message: %v", err)
		return
	}
	if msg.Error != "" {
		p.log.Warnf("⚠️ [Quote] vendor error: %s", msg.Error)
		return
	}
	if msg.ServerTime != 0 && msg.Code == "" && len(msg.Series) == 0 && len(msg.Data) == 0 {
		return // heartbeat
	}
	if msg.Code != "" && len(msg.Series) > 0 {
		ticker := tickerFromCode(msg.Code)
		for _, bar := range msg.Series {
			if bar.Close <= 0 {
				continue
			}
			p.delivery.OnQuote(Tick{
				Ticker:    ticker,
				Price:     bar.Close,
				Volume:    bar.Volume,
				Timestamp: time.Unix(bar.Time, 0).UTC(),
			})
		}
		return
	}
	for _, d := range msg.Data {
		if d.LastPrice <= 0 {
			continue
		}
		p.delivery.OnQuote(Tick{
			Ticker:    tickerFromCode(d.Code),
			Price:     d.LastPrice,
			Volume:    d.Volume,
			Timestamp: time.Now().UTC(),
		})
	}
}

func tickerFromCode(code string) string {
	for i := len(code) - 1; i >= 0; i-- {
		if code[i] == ':' {
			return code[i+1:]
		}
	}
	return code
}

// Stop closes the provider's stop channel. Run does not watch that
// channel: the receive loop ends only when the context passed to Run is
// canceled.
func (p *Provider) Stop() {
	close(p.stopCh)
}
