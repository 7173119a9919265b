package models

// PriceTrend is the coarse price direction recorded for a coin
type PriceTrend string

const (
	TrendRising  PriceTrend = "rising"
	TrendStable  PriceTrend = "stable"
	TrendFalling PriceTrend = "falling"
)

// Tier is a high/medium/low bucket used for market cap and energy use
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// CryptoFact is the static profile of a coin used for offline recommendations
type CryptoFact struct {
	PriceTrend          PriceTrend `json:"price_trend"`
	MarketCap           Tier       `json:"market_cap"`
	EnergyUse           Tier       `json:"energy_use"`
	SustainabilityScore int        `json:"sustainability_score"` // 0-10
}

// SustainabilityInfo describes the environmental profile of a coin
type SustainabilityInfo struct {
	Score       int    `json:"score"` // 0-10
	Reason      string `json:"reason"`
	Consensus   string `json:"consensus"`
	EnergyPerTx string `json:"energy_per_tx"`
}
