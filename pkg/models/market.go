package models

import (
	"time"
)

// MarketSnapshot is one row of the CoinGecko /coins/markets listing
type MarketSnapshot struct {
	ID                  string    `json:"id"`
	Symbol              string    `json:"symbol"`
	Name                string    `json:"name"`
	CurrentPrice        float64   `json:"current_price"`
	MarketCap           float64   `json:"market_cap"`
	MarketCapRank       int       `json:"market_cap_rank"`
	TotalVolume         float64   `json:"total_volume"`
	PriceChange24h      float64   `json:"price_change_percentage_24h"`
	PriceChange7d       float64   `json:"price_change_percentage_7d_in_currency"`
	PriceChange30d      float64   `json:"price_change_percentage_30d_in_currency"`
	CirculatingSupply   float64   `json:"circulating_supply"`
	MaxSupply           *float64  `json:"max_supply"` // null for uncapped coins
	ATH                 float64   `json:"ath"`
	ATHChangePercentage float64   `json:"ath_change_percentage"`
	LastUpdated         time.Time `json:"last_updated"`
}

// CoinDetail is the subset of /coins/{id} used by the assistant
type CoinDetail struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol"`
	Name          string         `json:"name"`
	MarketCapRank int            `json:"market_cap_rank"`
	MarketData    CoinMarketData `json:"market_data"`
}

// CoinMarketData holds per-currency market figures of a coin
type CoinMarketData struct {
	CurrentPrice      map[string]float64 `json:"current_price"`
	MarketCap         map[string]float64 `json:"market_cap"`
	TotalVolume       map[string]float64 `json:"total_volume"`
	High24h           map[string]float64 `json:"high_24h"`
	Low24h            map[string]float64 `json:"low_24h"`
	ATH               map[string]float64 `json:"ath"`
	PriceChange24h    float64            `json:"price_change_percentage_24h"`
	PriceChange7d     float64            `json:"price_change_percentage_7d"`
	PriceChange30d    float64            `json:"price_change_percentage_30d"`
	CirculatingSupply float64            `json:"circulating_supply"`
	LastUpdated       time.Time          `json:"last_updated"`
}

// PriceUSD returns the current USD price
func (c *CoinDetail) PriceUSD() float64 {
	return c.MarketData.CurrentPrice["usd"]
}

// MarketCapUSD returns the USD market capitalization
func (c *CoinDetail) MarketCapUSD() float64 {
	return c.MarketData.MarketCap["usd"]
}

// VolumeUSD returns the 24h USD trading volume
func (c *CoinDetail) VolumeUSD() float64 {
	return c.MarketData.TotalVolume["usd"]
}

// GlobalMarketSnapshot is the aggregate view of the whole crypto market
type GlobalMarketSnapshot struct {
	ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
	Markets                int                `json:"markets"`
	TotalMarketCap         map[string]float64 `json:"total_market_cap"`
	TotalVolume            map[string]float64 `json:"total_volume"`
	MarketCapPercentage    map[string]float64 `json:"market_cap_percentage"` // dominance by symbol
	MarketCapChange24hUSD  float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt              int64              `json:"updated_at"` // unix seconds
}

// TotalMarketCapUSD returns the total market cap in USD
func (g *GlobalMarketSnapshot) TotalMarketCapUSD() float64 {
	return g.TotalMarketCap["usd"]
}

// TotalVolumeUSD returns the total 24h volume in USD
func (g *GlobalMarketSnapshot) TotalVolumeUSD() float64 {
	return g.TotalVolume["usd"]
}

// Dominance returns the market share of a coin symbol (e.g. "btc")
func (g *GlobalMarketSnapshot) Dominance(symbol string) float64 {
	return g.MarketCapPercentage[symbol]
}

// TrendingCoin is an entry of the trending search list
type TrendingCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// SearchCoin is a coin candidate returned by free-text search
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// PricePoint is one sample of a historical price series
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// MarketChart is a historical USD price series for one coin
type MarketChart struct {
	CoinID string       `json:"coin_id"`
	Days   int          `json:"days"`
	Prices []PricePoint `json:"prices"`
}
