package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"momentum-engine/logger"
	"momentum-engine/metrics"
)

// AlpacaBroker implements Broker against the Alpaca equities REST API.
type AlpacaBroker struct {
	apiKey    string
	secretKey string
	baseURL   string
	dataURL   string
	isPaper   bool

	client *retryablehttp.Client
	log    *logger.Logger

	sink FillSink

	mu         sync.Mutex
	knownOrder map[string]OrderStatus // orderID -> last status seen by the poller
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewAlpacaBroker builds a broker client. sink receives fill/cancel/reject
// notifications from a background poller started by StartFillPolling.
func NewAlpacaBroker(apiKey, secretKey string, isPaper bool, sink FillSink, log *logger.Logger) *AlpacaBroker {
	baseURL := "https://api.alpaca.markets"
	if isPaper {
		baseURL = "https://paper-api.alpaca.markets"
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.HTTPClient.Timeout = 30 * time.Second

	return &AlpacaBroker{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		dataURL:    "https://data.alpaca.markets",
		isPaper:    isPaper,
		client:     client,
		log:        log,
		sink:       sink,
		knownOrder: make(map[string]OrderStatus),
		stopCh:     make(chan struct{}),
	}
}

func (b *AlpacaBroker) doRequest(method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := retryablehttp.NewRequest(method, b.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", b.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", b.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// classifyAPIError maps Alpaca's order-rejection bodies onto the sentinel
// errors the strategy runtime checks for ghost-position handling.
func classifyAPIError(status int, body []byte) error {
	msg := string(body)
	switch {
	case bytes.Contains(body, []byte("insufficient qty")) || bytes.Contains(body, []byte("insufficient quantity")):
		return fmt.Errorf("%w: %s", ErrInsufficientQuantity, msg)
	case bytes.Contains(body, []byte("position does not exist")) || bytes.Contains(body, []byte("404")):
		return fmt.Errorf("%w: %s", ErrPositionNotFound, msg)
	default:
		return fmt.Errorf("alpaca API error (status %d): %s", status, msg)
	}
}

func (b *AlpacaBroker) submitOrder(ticker string, side OrderSide, shares, limitPrice float64) (Order, error) {
	order := map[string]interface{}{
		"symbol":        ticker,
		"qty":           strconv.FormatFloat(shares, 'f', -1, 64),
		"side":          string(side),
		"type":          "limit",
		"time_in_force": "day",
		"limit_price":   strconv.FormatFloat(limitPrice, 'f', 2, 64),
	}

	resp, err := b.doRequest("POST", "/v2/orders", order)
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(string(side)).Inc()
		return Order{}, err
	}
	metrics.OrdersSubmittedTotal.WithLabelValues(string(side)).Inc()

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return Order{}, fmt.Errorf("parse order response: %w", err)
	}

	o := Order{
		Ticker:      ticker,
		Side:        side,
		Shares:      shares,
		OrderType:   "limit",
		Status:      OrderStatusNew,
		FilledPrice: limitPrice,
	}
	if id, ok := raw["id"].(string); ok {
		o.OrderID = id
	}
	b.log.Infof("📊 [Alpaca] Submitted %s order: %s qty=%.4f limit=$%.2f id=%s", side, ticker, shares, limitPrice, o.OrderID)

	b.mu.Lock()
	b.knownOrder[o.OrderID] = OrderStatusNew
	b.mu.Unlock()

	return o, nil
}

func (b *AlpacaBroker) Buy(ticker string, shares float64, limitPrice float64) (Order, error) {
	return b.submitOrder(ticker, SideBuy, shares, limitPrice)
}

func (b *AlpacaBroker) Sell(ticker string, shares float64, limitPrice float64) (Order, error) {
	return b.submitOrder(ticker, SideSell, shares, limitPrice)
}

func (b *AlpacaBroker) CancelOrder(orderID string) error {
	_, err := b.doRequest("DELETE", "/v2/orders/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	b.log.Infof("🚫 [Alpaca] Canceled order %s", orderID)
	return nil
}

func (b *AlpacaBroker) CancelAllOrders(ticker string) (int, error) {
	path := "/v2/orders"
	if ticker != "" {
		path += "?symbols=" + ticker
	}
	resp, err := b.doRequest("DELETE", path, nil)
	if err != nil {
		return 0, err
	}
	var results []map[string]interface{}
	_ = json.Unmarshal(resp, &results)
	return len(results), nil
}

func (b *AlpacaBroker) GetPosition(ticker string) (*Position, error) {
	resp, err := b.doRequest("GET", "/v2/positions/"+ticker, nil)
	if err != nil {
		if isPositionNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse position: %w", err)
	}
	pos := positionFromRaw(raw)
	return &pos, nil
}

func (b *AlpacaBroker) GetPositions() ([]Position, error) {
	resp, err := b.doRequest("GET", "/v2/positions", nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	out := make([]Position, 0, len(raw))
	for _, r := range raw {
		out = append(out, positionFromRaw(r))
	}
	return out, nil
}

func positionFromRaw(pos map[string]interface{}) Position {
	p := Position{}
	if s, ok := pos["symbol"].(string); ok {
		p.Ticker = s
	}
	if v, ok := pos["qty"].(string); ok {
		p.Shares, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pos["avg_entry_price"].(string); ok {
		p.AvgEntryPrice, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pos["market_value"].(string); ok {
		p.MarketValue, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pos["unrealized_pl"].(string); ok {
		p.UnrealizedPL, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pos["unrealized_plpc"].(string); ok {
		pct, _ := strconv.ParseFloat(v, 64)
		p.UnrealizedPLPct = pct * 100
	}
	return p
}

func isPositionNotFound(err error) bool {
	return errors.Is(err, ErrPositionNotFound)
}

// IsGhostPositionError reports whether err is one of the broker rejection
// shapes (§4.4.6/§7) that imply the broker already has no position to act
// on: insufficient quantity, or the position not existing at all.
func IsGhostPositionError(err error) bool {
	return errors.Is(err, ErrInsufficientQuantity) || errors.Is(err, ErrPositionNotFound)
}

func (b *AlpacaBroker) GetOpenOrders() ([]Order, error) {
	resp, err := b.doRequest("GET", "/v2/orders?status=open", nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse open orders: %w", err)
	}
	out := make([]Order, 0, len(raw))
	for _, r := range raw {
		out = append(out, orderFromRaw(r))
	}
	return out, nil
}

func orderFromRaw(raw map[string]interface{}) Order {
	o := Order{}
	if v, ok := raw["id"].(string); ok {
		o.OrderID = v
	}
	if v, ok := raw["symbol"].(string); ok {
		o.Ticker = v
	}
	if v, ok := raw["side"].(string); ok {
		o.Side = OrderSide(v)
	}
	if v, ok := raw["qty"].(string); ok {
		o.Shares, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := raw["type"].(string); ok {
		o.OrderType = v
	}
	if v, ok := raw["status"].(string); ok {
		o.Status = OrderStatus(v)
	}
	if v, ok := raw["filled_avg_price"].(string); ok && v != "" {
		o.FilledPrice, _ = strconv.ParseFloat(v, 64)
	}
	return o
}

func (b *AlpacaBroker) GetQuote(ticker string) (Quote, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", b.dataURL, ticker)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("APCA-API-KEY-ID", b.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", b.secretKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return Quote{}, err
	}

	trade, ok := result["trade"].(map[string]interface{})
	if !ok {
		return Quote{}, fmt.Errorf("no trade data for %s", ticker)
	}
	q := Quote{Ticker: ticker, Timestamp: time.Now().UTC()}
	if p, ok := trade["p"].(float64); ok {
		q.Last = p
	}
	if v, ok := trade["s"].(float64); ok {
		q.Volume = v
	}
	return q, nil
}

func (b *AlpacaBroker) GetAccountInfo() (AccountInfo, error) {
	resp, err := b.doRequest("GET", "/v2/account", nil)
	if err != nil {
		return AccountInfo{}, err
	}
	var account map[string]interface{}
	if err := json.Unmarshal(resp, &account); err != nil {
		return AccountInfo{}, fmt.Errorf("parse account: %w", err)
	}
	info := AccountInfo{}
	if v, ok := account["equity"].(string); ok {
		info.Equity, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := account["cash"].(string); ok {
		info.Cash, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := account["buying_power"].(string); ok {
		info.BuyingPower, _ = strconv.ParseFloat(v, 64)
	}
	return info, nil
}

func (b *AlpacaBroker) IsTradeable(ticker string) (bool, string) {
	resp, err := b.doRequest("GET", "/v2/assets/"+ticker, nil)
	if err != nil {
		return false, fmt.Sprintf("asset lookup failed: %v", err)
	}
	var asset map[string]interface{}
	if err := json.Unmarshal(resp, &asset); err != nil {
		return false, "asset lookup failed: unparsable response"
	}
	tradable, _ := asset["tradable"].(bool)
	status, _ := asset["status"].(string)
	if !tradable || status != "active" {
		return false, fmt.Sprintf("not tradeable (status=%s, tradable=%v)", status, tradable)
	}
	return true, "tradeable"
}

func (b *AlpacaBroker) IsPaper() bool { return b.isPaper }
func (b *AlpacaBroker) Name() string  { return "alpaca" }

// StartFillPolling starts a background poller that watches open orders and
// pushes FillEvent notifications to the configured sink, grounded on the
// teacher's WaitForFill polling pattern generalized from a single order to
// the engine's whole open-order book.
func (b *AlpacaBroker) StartFillPolling(ctx context.Context, interval time.Duration) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.pollOnce()
			}
		}
	}()
}

func (b *AlpacaBroker) pollOnce() {
	orders, err := b.GetOpenOrders()
	if err != nil {
		b.log.Warnf("⚠️ [Alpaca] poll open orders failed: %v", err)
		return
	}
	open := make(map[string]bool, len(orders))
	for _, o := range orders {
		open[o.OrderID] = true
		b.mu.Lock()
		last, seen := b.knownOrder[o.OrderID]
		b.mu.Unlock()
		if seen && last == o.Status {
			continue
		}
		b.mu.Lock()
		b.knownOrder[o.OrderID] = o.Status
		b.mu.Unlock()
		if o.Status == OrderStatusFilled || o.Status == OrderStatusPartial {
			b.sink.OnFill(FillEvent{
				OrderID:      o.OrderID,
				Ticker:       o.Ticker,
				Status:       o.Status,
				FilledShares: o.Shares,
				FilledPrice:  o.FilledPrice,
				FillTime:     time.Now().UTC(),
			})
		}
	}
	// orders that disappeared from the open list since last poll and were
	// not already reported filled are either filled or terminal; a
	// dedicated per-order GET resolves the final status.
	b.mu.Lock()
	tracked := make([]string, 0, len(b.knownOrder))
	for id, status := range b.knownOrder {
		if status == OrderStatusFilled || status == OrderStatusCanceled || status == OrderStatusRejected {
			continue
		}
		tracked = append(tracked, id)
	}
	b.mu.Unlock()
	for _, id := range tracked {
		if open[id] {
			continue
		}
		b.resolveTerminalOrder(id)
	}
}

func (b *AlpacaBroker) resolveTerminalOrder(orderID string) {
	resp, err := b.doRequest("GET", "/v2/orders/"+orderID, nil)
	if err != nil {
		return
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return
	}
	o := orderFromRaw(raw)
	b.mu.Lock()
	b.knownOrder[orderID] = o.Status
	b.mu.Unlock()
	switch o.Status {
	case OrderStatusFilled:
		b.sink.OnFill(FillEvent{OrderID: orderID, Ticker: o.Ticker, Status: o.Status, FilledShares: o.Shares, FilledPrice: o.FilledPrice, FillTime: time.Now().UTC(), RawPayload: resp})
	case OrderStatusCanceled, OrderStatusRejected:
		b.sink.OnFill(FillEvent{OrderID: orderID, Ticker: o.Ticker, Status: o.Status, FillTime: time.Now().UTC(), RejectReason: string(o.Status), RawPayload: resp})
	}
}

// Stop halts the fill poller.
func (b *AlpacaBroker) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}
