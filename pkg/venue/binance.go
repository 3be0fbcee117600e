package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/driftarb/pkg/models"
)

const (
	binanceLiveURL    = "https://api.binance.com"
	binanceTestnetURL = "https://testnet.binance.vision"

	binanceLiveWSURL    = "wss://stream.binance.com:9443"
	binanceTestnetWSURL = "wss://stream.testnet.binance.vision"
)

// SpotClient talks to the Binance spot venue (testnet by default). Public
// price endpoints work without credentials; order placement requires them
// and a successful Connect.
type SpotClient struct {
	auth       *HMACAuthenticator
	baseURL    string
	wsURL      string
	testnet    bool
	httpClient *http.Client
	logger     *logrus.Logger

	mu         sync.RWMutex
	connected  bool
	lastPrices map[string]models.Ticker
}

func NewSpotClient(apiKey, apiSecret string, testnet bool, logger *logrus.Logger) *SpotClient {
	baseURL, wsURL := binanceLiveURL, binanceLiveWSURL
	if testnet {
		baseURL, wsURL = binanceTestnetURL, binanceTestnetWSURL
	}

	return &SpotClient{
		auth:       NewHMACAuthenticator(apiKey, apiSecret),
		baseURL:    baseURL,
		wsURL:      wsURL,
		testnet:    testnet,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		lastPrices: make(map[string]models.Ticker),
	}
}

// Connect verifies the trading credentials against the account endpoint.
// Without credentials the client stays in public, price-only mode.
func (c *SpotClient) Connect(ctx context.Context) error {
	if !c.auth.HasCredentials() {
		c.logger.Warn("No spot venue credentials, public access only")
		return nil
	}

	balances, err := c.Balances(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify spot venue account: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.WithField("balances", balances).Info("Connected to spot venue")
	return nil
}

func (c *SpotClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

type bookTickerMessage struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// NewStream builds a websocket stream client feeding this client's price
// cache with bookTicker updates for the given symbols. GetTicker serves
// cached stream prices while they are fresh.
func (c *SpotClient) NewStream(symbols []string, reconnectWait time.Duration, maxReconnects int) *StreamClient {
	stream := NewStreamClient(c.wsURL, reconnectWait, maxReconnects, c.logger)
	for _, symbol := range symbols {
		stream.RegisterHandler(strings.ToLower(symbol)+"@bookTicker", c.handleBookTicker)
	}
	return stream
}

func (c *SpotClient) handleBookTicker(data json.RawMessage) {
	var msg bookTickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.WithError(err).Error("Failed to decode bookTicker message")
		return
	}

	bid, err1 := decimal.NewFromString(msg.BidPrice)
	ask, err2 := decimal.NewFromString(msg.AskPrice)
	if err1 != nil || err2 != nil {
		return
	}

	ticker := models.Ticker{
		Symbol:    msg.Symbol,
		BidPrice:  bid,
		AskPrice:  ask,
		LastPrice: bid.Add(ask).Div(decimal.NewFromInt(2)),
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.lastPrices[msg.Symbol] = ticker
	c.mu.Unlock()
}

type restTickerResponse struct {
	Symbol    string `json:"symbol"`
	BidPrice  string `json:"bidPrice"`
	BidQty    string `json:"bidQty"`
	AskPrice  string `json:"askPrice"`
	AskQty    string `json:"askQty"`
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
}

// GetTicker returns the latest price for a symbol, preferring a fresh
// stream update over a REST round trip.
func (c *SpotClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	c.mu.RLock()
	cached, ok := c.lastPrices[symbol]
	c.mu.RUnlock()
	if ok && time.Since(cached.Timestamp) < 10*time.Second {
		return &cached, nil
	}

	var resp restTickerResponse
	query := url.Values{"symbol": {symbol}}
	if err := c.get(ctx, "/api/v3/ticker/24hr", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get ticker for %s: %w", symbol, err)
	}

	ticker := models.Ticker{Symbol: resp.Symbol, Timestamp: time.Now()}
	var err error
	if ticker.BidPrice, err = decimal.NewFromString(resp.BidPrice); err != nil {
		return nil, fmt.Errorf("malformed bid price for %s: %w", symbol, err)
	}
	if ticker.AskPrice, err = decimal.NewFromString(resp.AskPrice); err != nil {
		return nil, fmt.Errorf("malformed ask price for %s: %w", symbol, err)
	}
	if ticker.LastPrice, err = decimal.NewFromString(resp.LastPrice); err != nil {
		return nil, fmt.Errorf("malformed last price for %s: %w", symbol, err)
	}
	ticker.BidSize, _ = decimal.NewFromString(resp.BidQty)
	ticker.AskSize, _ = decimal.NewFromString(resp.AskQty)
	ticker.Volume24h, _ = decimal.NewFromString(resp.Volume)

	c.mu.Lock()
	c.lastPrices[symbol] = ticker
	c.mu.Unlock()

	return &ticker, nil
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Side        string `json:"side"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
}

// PlaceOrder submits a market order. Returns nil without error when the
// client has no trading credentials, matching alert-only operation.
func (c *SpotClient) PlaceOrder(ctx context.Context, symbol string, side models.OrderSide, quantity decimal.Decimal) (*models.Order, error) {
	if !c.Connected() {
		return nil, nil
	}

	// Venue lot sizes vary per symbol; five decimals clears the common
	// ones without an exchangeInfo round trip.
	quantity = quantity.RoundDown(5)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("order quantity rounds to zero for %s", symbol)
	}

	query := url.Values{
		"symbol":   {symbol},
		"side":     {string(side)},
		"type":     {"MARKET"},
		"quantity": {quantity.String()},
	}

	var resp orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to place %s order for %s: %w", side, symbol, err)
	}

	executed, err := decimal.NewFromString(resp.ExecutedQty)
	if err != nil {
		executed = quantity
	}

	order := &models.Order{
		OrderID:      fmt.Sprintf("%d", resp.OrderID),
		Symbol:       resp.Symbol,
		Side:         side,
		Type:         models.OrderTypeMarket,
		RequestedQty: quantity,
		ExecutedQty:  executed,
		Status:       models.OrderStatus(resp.Status),
		Testnet:      c.testnet,
		CreatedAt:    time.Now(),
	}

	c.logger.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"status":   order.Status,
		"executed": order.ExecutedQty,
	}).Info("Spot order placed")

	return order, nil
}

type accountResponse struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

// Balances returns all non-zero free balances on the account.
func (c *SpotClient) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	var resp accountResponse
	if err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get account balances: %w", err)
	}

	balances := make(map[string]decimal.Decimal)
	for _, b := range resp.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil || !free.IsPositive() {
			continue
		}
		balances[b.Asset] = free
	}
	return balances, nil
}

func (c *SpotClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *SpotClient) signedRequest(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	query.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	payload := query.Encode()
	payload += "&signature=" + c.auth.Sign(payload)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+payload, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.auth.APIKey())

	return c.do(req, out)
}

func (c *SpotClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("venue returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
