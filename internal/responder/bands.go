package responder

import "math"

// SentimentBand labels a percent price change
type SentimentBand struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

// Sentiment maps a percent change to one of eight bands. A boundary value
// belongs to the higher band.
func Sentiment(change float64) SentimentBand {
	switch {
	case change >= 10:
		return SentimentBand{"extremely bullish", "🚀"}
	case change >= 5:
		return SentimentBand{"strongly bullish", "📈"}
	case change >= 2:
		return SentimentBand{"bullish", "🟢"}
	case change >= 0:
		return SentimentBand{"slightly bullish", "↗️"}
	case change >= -2:
		return SentimentBand{"slightly bearish", "↘️"}
	case change >= -5:
		return SentimentBand{"bearish", "🔴"}
	case change >= -10:
		return SentimentBand{"strongly bearish", "📉"}
	default:
		return SentimentBand{"extreme bearish", "⚠️"}
	}
}

// Risk levels derived from the 30 day change magnitude
const (
	RiskExtreme   = "EXTREME"
	RiskHigh      = "HIGH"
	RiskMedium    = "MEDIUM"
	RiskLowMedium = "LOW-MEDIUM"
	RiskLow       = "LOW"
)

// RiskLevel grades the magnitude of a 30 day percent change. Thresholds
// are strict, so exactly 50 is HIGH.
func RiskLevel(change30d float64) string {
	magnitude := math.Abs(change30d)

	switch {
	case magnitude > 50:
		return RiskExtreme
	case magnitude > 30:
		return RiskHigh
	case magnitude > 15:
		return RiskMedium
	case magnitude > 5:
		return RiskLowMedium
	default:
		return RiskLow
	}
}

// SustainabilityRecommendation turns a 0-10 score into advice
func SustainabilityRecommendation(score int) string {
	switch {
	case score >= 8:
		return "✅ **Excellent choice for eco-conscious investors!** This cryptocurrency demonstrates strong environmental responsibility."
	case score >= 6:
		return "👍 **Good sustainability profile.** A solid choice for environmentally aware investors."
	case score >= 4:
		return "⚠️ **Moderate environmental impact.** Consider the trade-offs between returns and sustainability."
	default:
		return "🚨 **High environmental impact.** Consider more sustainable alternatives if environmental factors are important to you."
	}
}

// marketSentiment describes the whole market from the 24h cap change and
// bitcoin dominance
func marketSentiment(capChange, btcDominance float64) string {
	var line string
	switch {
	case capChange > 2:
		line = "🚀 **Strong bullish market** with significant capital inflow.\n"
	case capChange > 0:
		line = "📈 **Moderately bullish** with positive momentum.\n"
	case capChange > -2:
		line = "⚖️ **Neutral market** with mixed signals.\n"
	default:
		line = "📉 **Bearish sentiment** with capital outflow.\n"
	}

	if btcDominance > 50 {
		return line + "₿ **Bitcoin dominance is high**, suggesting flight to safety or altcoin weakness."
	}
	return line + "🌟 **Altcoin season potential** with lower Bitcoin dominance."
}
