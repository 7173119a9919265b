package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryptobuddy/internal/cache"
	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
	"github.com/sirupsen/logrus/hooks/test"
)

const topCoinsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":64000.5,"market_cap":1260000000000,"market_cap_rank":1,
   "total_volume":32000000000,"price_change_percentage_24h":2.5,"price_change_percentage_7d_in_currency":4.1,
   "price_change_percentage_30d_in_currency":12.3,"circulating_supply":19600000,"max_supply":21000000,
   "ath":73000,"ath_change_percentage":-12.3,"last_updated":"2024-03-01T12:00:00.000Z"},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3400.2,"market_cap":408000000000,"market_cap_rank":2,
   "total_volume":15000000000,"price_change_percentage_24h":-1.2,"max_supply":null,"last_updated":"2024-03-01T12:00:00.000Z"}
]`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testConfig(baseURL string) *config.CoinGeckoConfig {
	return &config.CoinGeckoConfig{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxConcurrent: 3,
		TopTTL:        2 * time.Minute,
		CoinTTL:       3 * time.Minute,
		GlobalTTL:     5 * time.Minute,
		TrendingTTL:   5 * time.Minute,
		SearchTTL:     5 * time.Minute,
		ChartTTL:      5 * time.Minute,
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*CoinGeckoClient, *fakeClock) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger, _ := test.NewNullLogger()

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewCoinGeckoClient(testConfig(srv.URL), cache.NewMemoryCache(), logger, opts...), clock
}

func TestGetTopCryptocurrenciesCachesWithinTTL(t *testing.T) {
	var calls int32
	client, clock := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "2" {
			t.Errorf("expected per_page=2, got %s", got)
		}
		w.Write([]byte(topCoinsBody))
	}))

	ctx := context.Background()
	first, err := client.GetTopCryptocurrencies(ctx, 2)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	clock.Advance(119 * time.Second)
	second, err := client.GetTopCryptocurrencies(ctx, 2)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single HTTP call, got %d", n)
	}
	if len(first) != 2 || len(second) != 2 || second[0].ID != "bitcoin" {
		t.Fatalf("unexpected results %+v / %+v", first, second)
	}
	if second[0].PriceChange7d != 4.1 || second[0].MaxSupply == nil || second[1].MaxSupply != nil {
		t.Errorf("fields not decoded: %+v", second[0])
	}

	clock.Advance(2 * time.Second)
	if _, err := client.GetTopCryptocurrencies(ctx, 2); err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", n)
	}
}

func TestStaleValueServedOnError(t *testing.T) {
	var fail atomic.Bool
	client, clock := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"active_cryptocurrencies":9000,"markets":900,"total_market_cap":{"usd":1700000000000},
			"total_volume":{"usd":89200000000},"market_cap_percentage":{"btc":52.1},"market_cap_change_percentage_24h_usd":1.5}}`))
	}))

	ctx := context.Background()
	if _, err := client.GetGlobalMarketData(ctx); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}

	fail.Store(true)
	clock.Advance(10 * time.Minute)

	global, err := client.GetGlobalMarketData(ctx)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if global.TotalMarketCapUSD() != 1.7e12 || global.Dominance("btc") != 52.1 {
		t.Errorf("unexpected stale value %+v", global)
	}
}

func TestErrorWithoutStaleValuePropagates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetTrendingCryptocurrencies(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("500 must not be reported as not found")
	}
}

func TestGetCryptocurrencyDataNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.GetCryptocurrencyData(context.Background(), "no-such-coin")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCryptocurrencyDataSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-demo-api-key") != "demo-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Path != "/coins/cardano" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"cardano","symbol":"ada","name":"Cardano","market_cap_rank":9,
			"market_data":{"current_price":{"usd":0.62},"market_cap":{"usd":22000000000},"total_volume":{"usd":500000000},
			"price_change_percentage_24h":3.2,"price_change_percentage_7d":-4.5}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "demo-key"
	logger, _ := test.NewNullLogger()
	client := NewCoinGeckoClient(cfg, nil, logger)

	coin, err := client.GetCryptocurrencyData(context.Background(), "Cardano")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if coin.PriceUSD() != 0.62 || coin.MarketData.PriceChange7d != -4.5 || coin.MarketCapRank != 9 {
		t.Errorf("unexpected coin %+v", coin)
	}
}

func TestSearchAndTrending(t *testing.T) {
	var searchCalls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			atomic.AddInt32(&searchCalls, 1)
			if q := r.URL.Query().Get("query"); q != "sol" {
				t.Errorf("expected normalized query, got %q", q)
			}
			w.Write([]byte(`{"coins":[{"id":"solana","name":"Solana","symbol":"SOL","market_cap_rank":5}]}`))
		case "/search/trending":
			w.Write([]byte(`{"coins":[{"item":{"id":"pepe","name":"Pepe","symbol":"PEPE","market_cap_rank":30}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	results, err := client.SearchCryptocurrency(ctx, "  SOL ")
	if err != nil || len(results) != 1 || results[0].ID != "solana" {
		t.Fatalf("unexpected search result %+v, %v", results, err)
	}
	if _, err := client.SearchCryptocurrency(ctx, "sol"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&searchCalls); n != 1 {
		t.Errorf("expected normalized key to hit cache, got %d calls", n)
	}

	empty, err := client.SearchCryptocurrency(ctx, "   ")
	if err != nil || len(empty) != 0 {
		t.Errorf("blank query should yield empty result, got %+v, %v", empty, err)
	}

	trending, err := client.GetTrendingCryptocurrencies(ctx)
	if err != nil || len(trending) != 1 || trending[0].Symbol != "PEPE" {
		t.Fatalf("unexpected trending %+v, %v", trending, err)
	}
}

func TestGetMarketChart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" || r.URL.Query().Get("days") != "7" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"prices":[[1709251200000,61000.1],[1709337600000,62000.2]]}`))
	}))

	chart, err := client.GetMarketChart(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(chart.Prices) != 2 || chart.Prices[1].Price != 62000.2 {
		t.Fatalf("unexpected chart %+v", chart)
	}
	if !chart.Prices[0].Timestamp.Equal(time.UnixMilli(1709251200000)) {
		t.Errorf("unexpected timestamp %s", chart.Prices[0].Timestamp)
	}

	if _, err := client.GetMarketChart(context.Background(), "bitcoin", 0); err == nil {
		t.Error("expected error for zero-day range")
	}
}

// blockingHandler holds every /coins/{id} request until release is closed
// and answers /global immediately
type blockingHandler struct {
	inFlight int32
	peak     int32
	release  chan struct{}
}

func (h *blockingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/global" {
		w.Write([]byte(`{"data":{"active_cryptocurrencies":9000,"total_market_cap":{"usd":1700000000000}}}`))
		return
	}

	n := atomic.AddInt32(&h.inFlight, 1)
	for {
		p := atomic.LoadInt32(&h.peak)
		if n <= p || atomic.CompareAndSwapInt32(&h.peak, p, n) {
			break
		}
	}
	<-h.release
	atomic.AddInt32(&h.inFlight, -1)
	w.Write([]byte(`{"id":"x","market_data":{}}`))
}

// waitInFlight polls until n requests are held by the handler
func waitInFlight(t *testing.T, h *blockingHandler, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&h.inFlight) < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d fetches in flight, saw %d", n, atomic.LoadInt32(&h.inFlight))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startCoinFetches(t *testing.T, client *CoinGeckoClient, ids ...string) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := client.GetCryptocurrencyData(context.Background(), id); err != nil {
				t.Errorf("fetch %s failed: %v", id, err)
			}
		}(id)
	}
	return &wg
}

func TestConcurrentFetchesAreBounded(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{})}
	client, _ := newTestClient(t, h)

	wg := startCoinFetches(t, client, "a", "b", "c", "d", "e", "f")

	waitInFlight(t, h, 3)
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&h.inFlight); n != 3 {
		t.Fatalf("expected exactly 3 fetches in flight while slots are held, saw %d", n)
	}

	close(h.release)
	wg.Wait()

	if p := atomic.LoadInt32(&h.peak); p != 3 {
		t.Fatalf("expected a peak of 3 concurrent fetches, saw %d", p)
	}
}

func TestFreshHitDoesNotWaitForSlot(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{})}
	client, _ := newTestClient(t, h)
	ctx := context.Background()

	if _, err := client.GetGlobalMarketData(ctx); err != nil {
		t.Fatalf("warm global cache: %v", err)
	}

	wg := startCoinFetches(t, client, "a", "b", "c", "d")
	defer func() {
		close(h.release)
		wg.Wait()
	}()
	waitInFlight(t, h, 3)

	done := make(chan error, 1)
	go func() {
		_, err := client.GetGlobalMarketData(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("fresh hit failed: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("fresh cache hit waited for a fetch slot")
	}
}

func TestSlotWaitHonorsContext(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{})}
	client, _ := newTestClient(t, h)

	wg := startCoinFetches(t, client, "a", "b", "c")
	defer func() {
		close(h.release)
		wg.Wait()
	}()
	waitInFlight(t, h, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.GetCryptocurrencyData(ctx, "z"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while waiting for a slot, got %v", err)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *recordingSink) RecordSnapshots(_ context.Context, snapshots []models.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func TestSnapshotSinkReceivesLiveListingsOnly(t *testing.T) {
	sink := &recordingSink{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(topCoinsBody))
	}), WithSnapshotSink(sink))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.GetTopCryptocurrencies(ctx, 2); err != nil {
			t.Fatal(err)
		}
	}

	if sink.calls != 1 {
		t.Errorf("expected one recorded listing, got %d", sink.calls)
	}
}
