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
)

const driftDevnetDataURL = "https://data.devnet.drift.trade"

// PerpClient reads perp market prices from the Drift data gateway. The
// gateway authenticates with short-lived ES256 bearer tokens; without a
// key the client stays disconnected and the pair's perp leg has no feed.
type PerpClient struct {
	auth       *JWTAuthenticator
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger

	mu        sync.RWMutex
	connected bool
}

func NewPerpClient(baseURL string, auth *JWTAuthenticator, logger *logrus.Logger) *PerpClient {
	if baseURL == "" {
		baseURL = driftDevnetDataURL
	}

	return &PerpClient{
		auth:       auth,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Connect probes the gateway health endpoint.
func (c *PerpClient) Connect(ctx context.Context) error {
	if c.auth == nil {
		c.logger.Warn("No perp gateway key configured")
		return nil
	}

	if err := c.get(ctx, "/v2/health", nil, nil); err != nil {
		return fmt.Errorf("failed to reach perp gateway: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("Connected to perp gateway")
	return nil
}

func (c *PerpClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

type markPriceResponse struct {
	Market string `json:"market"`
	Price  string `json:"price"`
}

// GetMarkPrice returns the oracle-adjusted mark price for a perp market,
// e.g. "SOL-PERP".
func (c *PerpClient) GetMarkPrice(ctx context.Context, market string) (decimal.Decimal, error) {
	var resp markPriceResponse
	query := url.Values{"market": {market}}
	if err := c.get(ctx, "/v2/markPrice", query, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get mark price for %s: %w", market, err)
	}

	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed mark price for %s: %w", market, err)
	}
	return price, nil
}

func (c *PerpClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	if c.auth != nil {
		token, err := c.auth.Bearer(http.MethodGet, req.URL.Host, req.URL.Path)
		if err != nil {
			return fmt.Errorf("failed to generate bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

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
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
