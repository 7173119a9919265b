package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cryptobuddy/internal/cache"
	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when CoinGecko does not know the requested coin
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx response from CoinGecko
type HTTPError struct {
	StatusCode int
	Path       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("CoinGecko %s returned status %d", e.Path, e.StatusCode)
}

// Unwrap maps a 404 to ErrNotFound
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// SnapshotSink receives every live top-coins listing
type SnapshotSink interface {
	RecordSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error
}

// TTLs holds the freshness window of each cached data type
type TTLs struct {
	Top      time.Duration
	Coin     time.Duration
	Global   time.Duration
	Trending time.Duration
	Search   time.Duration
	Chart    time.Duration
}

// CoinGeckoClient handles CoinGecko API interactions behind a TTL cache
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logrus.Entry

	cache cache.Store
	ttls  TTLs
	now   func() time.Time
	sink  SnapshotSink

	// Bounds the number of live fetches in flight
	slots chan struct{}
}

// Option customizes a CoinGeckoClient
type Option func(*CoinGeckoClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *CoinGeckoClient) { c.httpClient = hc }
}

// WithClock replaces time.Now for freshness checks
func WithClock(now func() time.Time) Option {
	return func(c *CoinGeckoClient) { c.now = now }
}

// WithSnapshotSink registers a sink for live top-coin listings
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(c *CoinGeckoClient) { c.sink = sink }
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg *config.CoinGeckoConfig, store cache.Store, logger *logrus.Logger, opts ...Option) *CoinGeckoClient {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	if store == nil {
		store = cache.NewMemoryCache()
	}

	client := &CoinGeckoClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger.WithField("component", "coingecko"),
		cache:   store,
		ttls: TTLs{
			Top:      cfg.TopTTL,
			Coin:     cfg.CoinTTL,
			Global:   cfg.GlobalTTL,
			Trending: cfg.TrendingTTL,
			Search:   cfg.SearchTTL,
			Chart:    cfg.ChartTTL,
		},
		now:   time.Now,
		slots: make(chan struct{}, maxConcurrent),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// GetTopCryptocurrencies fetches the top coins ordered by market cap
func (c *CoinGeckoClient) GetTopCryptocurrencies(ctx context.Context, limit int) ([]models.MarketSnapshot, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > 250 {
		limit = 250
	}

	live := false
	key := fmt.Sprintf("top-cryptos-%d", limit)
	coins, err := cached(ctx, c, key, c.ttls.Top, func(ctx context.Context) ([]models.MarketSnapshot, error) {
		params := url.Values{}
		params.Set("vs_currency", "usd")
		params.Set("order", "market_cap_desc")
		params.Set("per_page", strconv.Itoa(limit))
		params.Set("page", "1")
		params.Set("sparkline", "false")
		params.Set("price_change_percentage", "24h,7d,30d")

		var out []models.MarketSnapshot
		if err := c.getJSON(ctx, "/coins/markets", params, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch top cryptocurrencies: %w", err)
		}
		live = true
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	if live && c.sink != nil {
		if err := c.sink.RecordSnapshots(ctx, coins); err != nil {
			c.logger.WithError(err).Warn("Failed to record market snapshots")
		}
	}

	return coins, nil
}

// GetCryptocurrencyData fetches detail for a single coin id
func (c *CoinGeckoClient) GetCryptocurrencyData(ctx context.Context, coinID string) (*models.CoinDetail, error) {
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	if coinID == "" {
		return nil, fmt.Errorf("coin id is required")
	}

	key := fmt.Sprintf("crypto-%s", coinID)
	return cached(ctx, c, key, c.ttls.Coin, func(ctx context.Context) (*models.CoinDetail, error) {
		params := url.Values{}
		params.Set("localization", "false")
		params.Set("tickers", "false")
		params.Set("market_data", "true")
		params.Set("community_data", "false")
		params.Set("developer_data", "false")
		params.Set("sparkline", "false")

		var out models.CoinDetail
		if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID), params, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch coin %s: %w", coinID, err)
		}
		return &out, nil
	})
}

// GetGlobalMarketData fetches aggregate market statistics
func (c *CoinGeckoClient) GetGlobalMarketData(ctx context.Context) (*models.GlobalMarketSnapshot, error) {
	return cached(ctx, c, "global-market", c.ttls.Global, func(ctx context.Context) (*models.GlobalMarketSnapshot, error) {
		var out struct {
			Data models.GlobalMarketSnapshot `json:"data"`
		}
		if err := c.getJSON(ctx, "/global", nil, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch global market data: %w", err)
		}
		return &out.Data, nil
	})
}

// GetTrendingCryptocurrencies fetches the coins trending in search
func (c *CoinGeckoClient) GetTrendingCryptocurrencies(ctx context.Context) ([]models.TrendingCoin, error) {
	return cached(ctx, c, "trending", c.ttls.Trending, func(ctx context.Context) ([]models.TrendingCoin, error) {
		var out struct {
			Coins []struct {
				Item models.TrendingCoin `json:"item"`
			} `json:"coins"`
		}
		if err := c.getJSON(ctx, "/search/trending", nil, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch trending coins: %w", err)
		}

		coins := make([]models.TrendingCoin, 0, len(out.Coins))
		for _, coin := range out.Coins {
			coins = append(coins, coin.Item)
		}
		return coins, nil
	})
}

// SearchCryptocurrency looks coins up by free text. An empty result is not
// an error.
func (c *CoinGeckoClient) SearchCryptocurrency(ctx context.Context, query string) ([]models.SearchCoin, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.SearchCoin{}, nil
	}

	key := fmt.Sprintf("search-%s", query)
	return cached(ctx, c, key, c.ttls.Search, func(ctx context.Context) ([]models.SearchCoin, error) {
		params := url.Values{}
		params.Set("query", query)

		var out struct {
			Coins []models.SearchCoin `json:"coins"`
		}
		if err := c.getJSON(ctx, "/search", params, &out); err != nil {
			return nil, fmt.Errorf("failed to search %q: %w", query, err)
		}
		if out.Coins == nil {
			out.Coins = []models.SearchCoin{}
		}
		return out.Coins, nil
	})
}

// GetMarketChart fetches the USD price history of a coin over days
func (c *CoinGeckoClient) GetMarketChart(ctx context.Context, coinID string, days int) (*models.MarketChart, error) {
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	if coinID == "" {
		return nil, fmt.Errorf("coin id is required")
	}
	if days < 1 {
		return nil, fmt.Errorf("invalid chart range: %d days", days)
	}

	key := fmt.Sprintf("chart-%s-%d", coinID, days)
	return cached(ctx, c, key, c.ttls.Chart, func(ctx context.Context) (*models.MarketChart, error) {
		params := url.Values{}
		params.Set("vs_currency", "usd")
		params.Set("days", strconv.Itoa(days))

		var out struct {
			Prices [][]float64 `json:"prices"`
		}
		if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", params, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch market chart for %s: %w", coinID, err)
		}

		chart := &models.MarketChart{
			CoinID: coinID,
			Days:   days,
			Prices: make([]models.PricePoint, 0, len(out.Prices)),
		}
		for _, p := range out.Prices {
			if len(p) < 2 {
				continue
			}
			chart.Prices = append(chart.Prices, models.PricePoint{
				Timestamp: time.UnixMilli(int64(p[0])).UTC(),
				Price:     p[1],
			})
		}
		return chart, nil
	})
}

// cached serves key from the cache while it is fresh, otherwise performs a
// live fetch under a concurrency slot. A failed fetch falls back to the
// stale entry when one exists.
func cached[T any](ctx context.Context, c *CoinGeckoClient, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	stale, ok := c.lookup(ctx, key, ttl)
	if ok {
		var value T
		if err := json.Unmarshal(stale.Value, &value); err == nil {
			return value, nil
		}
	}

	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-c.slots }()

	// Another caller may have refreshed the key while we waited
	if entry, ok := c.lookup(ctx, key, ttl); ok {
		var value T
		if err := json.Unmarshal(entry.Value, &value); err == nil {
			return value, nil
		}
	} else if entry != nil {
		stale = entry
	}

	value, err := fetch(ctx)
	if err != nil {
		if stale != nil {
			var fallback T
			if jerr := json.Unmarshal(stale.Value, &fallback); jerr == nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"key": key,
					"age": c.now().Sub(stale.FetchedAt).Round(time.Second).String(),
				}).Warn("Serving stale market data")
				return fallback, nil
			}
		}
		return zero, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return value, nil
	}
	if err := c.cache.Set(ctx, key, cache.Entry{Value: data, FetchedAt: c.now()}); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to store cache entry")
	}

	return value, nil
}

// lookup returns the cached entry for key and whether it is still fresh.
// Cache read failures are logged and treated as a miss.
func (c *CoinGeckoClient) lookup(ctx context.Context, key string, ttl time.Duration) (*cache.Entry, bool) {
	entry, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to read cache entry")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return entry, entry.Fresh(c.now(), ttl)
}

// getJSON performs a GET against the API and decodes the JSON body
func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Milliseconds(),
	}).Debug("CoinGecko request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Path: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
