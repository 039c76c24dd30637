package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
	"github.com/Luganodes/Solana-Indexer/internal/infra/rpc"
)

// DefaultBaseURL is the public CoinGecko API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Cache is the optional day-price cache; the redis client implements it.
type Cache interface {
	GetPrice(ctx context.Context, day string) (float64, bool, error)
	SetPrice(ctx context.Context, day string, price float64) error
}

// Config holds price oracle settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Backoff rpc.BackoffConfig
}

// Client fetches the historical SOL/USD price for a UTC day.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    rpc.BackoffConfig
	cache      Cache
	log        *slog.Logger
}

// NewClient creates a price oracle client. cache may be nil.
func NewClient(cfg Config, cache Cache, log *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.Backoff
	if backoff.InitialDelay == 0 {
		backoff = rpc.DefaultBackoff
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    backoff,
		cache:      cache,
		log:        log.With("component", "price"),
	}
}

// SolPriceAt returns the SOL/USD price for the UTC day containing the
// given unix-millisecond timestamp. Resolved prices are cached per day
// when a cache is configured; historical day prices never change.
func (c *Client) SolPriceAt(ctx context.Context, timestamp int64) (float64, error) {
	day := formatDay(timestamp)

	if c.cache != nil {
		price, ok, err := c.cache.GetPrice(ctx, day)
		if err != nil {
			c.log.Warn("price cache read failed", "day", day, "error", err)
		} else if ok {
			metrics.PriceLookupsTotal.WithLabelValues("cache").Inc()
			return price, nil
		}
	}

	price, err := c.fetch(ctx, day)
	if err != nil {
		return 0, err
	}
	metrics.PriceLookupsTotal.WithLabelValues("api").Inc()

	if c.cache != nil {
		if err := c.cache.SetPrice(ctx, day, price); err != nil {
			c.log.Warn("price cache write failed", "day", day, "error", err)
		}
	}
	return price, nil
}

func (c *Client) fetch(ctx context.Context, day string) (float64, error) {
	endpoint := fmt.Sprintf("%s/coins/solana/history?date=%s&localization=false",
		c.baseURL, url.QueryEscape(day))

	var price float64
	err := rpc.WithBackoff(ctx, c.backoff, c.log, "price-history", func() error {
		p, err := c.fetchOnce(ctx, endpoint)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fetch price for %s: %w", day, err)
	}
	return price, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		MarketData struct {
			CurrentPrice struct {
				USD float64 `json:"usd"`
			} `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	return payload.MarketData.CurrentPrice.USD, nil
}

// formatDay renders a unix-millisecond timestamp as the D-M-YYYY day
// parameter the oracle expects.
func formatDay(timestamp int64) string {
	t := time.UnixMilli(timestamp).UTC()
	return fmt.Sprintf("%d-%d-%d", t.Day(), int(t.Month()), t.Year())
}
