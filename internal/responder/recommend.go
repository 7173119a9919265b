package responder

import (
	"errors"
	"fmt"
	"math"

	"github.com/cryptobuddy/pkg/models"
)

// ErrInsufficientData is returned when a price series is too short to
// analyze
var ErrInsufficientData = errors.New("insufficient price data")

// TrendAnalysis summarizes a historical price series
type TrendAnalysis struct {
	Trend         string  `json:"trend"`
	ChangePercent float64 `json:"change_percent"`
	Volatility    float64 `json:"volatility"` // mean absolute step change, percent
	RiskLevel     string  `json:"risk_level"`
	StartPrice    float64 `json:"start_price"`
	EndPrice      float64 `json:"end_price"`
}

// AnalyzeTrend classifies the direction and volatility of a chart
func AnalyzeTrend(chart *models.MarketChart) (*TrendAnalysis, error) {
	if chart == nil || len(chart.Prices) < 2 {
		return nil, ErrInsufficientData
	}

	start := chart.Prices[0].Price
	end := chart.Prices[len(chart.Prices)-1].Price
	if start == 0 {
		return nil, ErrInsufficientData
	}
	change := (end - start) / start * 100

	var sum float64
	var steps int
	for i := 1; i < len(chart.Prices); i++ {
		prev := chart.Prices[i-1].Price
		if prev == 0 {
			continue
		}
		sum += math.Abs((chart.Prices[i].Price - prev) / prev * 100)
		steps++
	}
	var volatility float64
	if steps > 0 {
		volatility = sum / float64(steps)
	}

	analysis := &TrendAnalysis{
		ChangePercent: round2(change),
		Volatility:    round2(volatility),
		StartPrice:    round2(start),
		EndPrice:      round2(end),
	}

	switch {
	case change > 10:
		analysis.Trend = "strongly bullish"
	case change > 3:
		analysis.Trend = "bullish"
	case change > -3:
		analysis.Trend = "sideways"
	case change > -10:
		analysis.Trend = "bearish"
	default:
		analysis.Trend = "strongly bearish"
	}

	switch {
	case volatility > 15:
		analysis.RiskLevel = "very high"
	case volatility > 10:
		analysis.RiskLevel = "high"
	case volatility > 5:
		analysis.RiskLevel = "medium"
	default:
		analysis.RiskLevel = "low"
	}

	return analysis, nil
}

// Recommendation is the scored verdict on a single coin
type Recommendation struct {
	Coin           string         `json:"coin"`
	Verdict        string         `json:"verdict"`
	Score          int            `json:"score"`
	Reasons        []string       `json:"reasons"`
	RiskWarning    string         `json:"risk_warning"`
	MarketCapRank  int            `json:"market_cap_rank"`
	Trend          *TrendAnalysis `json:"trend"`
	Sustainability int            `json:"sustainability"`
}

// Recommend scores rank, recent trend, volatility and sustainability into
// a verdict from STRONG BUY to STRONG SELL
func Recommend(coin string, detail *models.CoinDetail, chart *models.MarketChart) (*Recommendation, error) {
	if detail == nil {
		return nil, fmt.Errorf("coin detail is required")
	}

	trend, err := AnalyzeTrend(chart)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		Coin:          coin,
		MarketCapRank: detail.MarketCapRank,
		Trend:         trend,
	}

	rank := detail.MarketCapRank
	if rank <= 0 {
		rank = 999
	}
	switch {
	case rank <= 10:
		rec.add(3, "Top 10 cryptocurrency by market cap")
	case rank <= 50:
		rec.add(2, "Established cryptocurrency (top 50)")
	case rank <= 100:
		rec.add(1, "Mid-cap cryptocurrency")
	default:
		rec.add(-1, "Small-cap cryptocurrency (higher risk)")
	}

	switch trend.Trend {
	case "strongly bullish":
		rec.add(2, "Strong upward price momentum")
	case "bullish":
		rec.add(1, "Positive price trend")
	case "strongly bearish":
		rec.add(-2, "Strong downward price trend")
	case "bearish":
		rec.add(-1, "Negative price trend")
	}

	switch trend.RiskLevel {
	case "very high":
		rec.add(-2, "Very high volatility (extreme risk)")
	case "high":
		rec.add(-1, "High volatility")
	case "low":
		rec.add(1, "Low volatility (more stable)")
	}

	rec.Sustainability = 5
	if info, ok := LookupSustainability(coin); ok {
		rec.Sustainability = info.Score
	}
	switch {
	case rec.Sustainability >= 8:
		rec.add(1, "Highly sustainable (eco-friendly)")
	case rec.Sustainability <= 3:
		rec.add(-1, "Low sustainability score")
	}

	switch {
	case rec.Score >= 4:
		rec.Verdict, rec.RiskWarning = "STRONG BUY", "Consider for long-term investment"
	case rec.Score >= 2:
		rec.Verdict, rec.RiskWarning = "BUY", "Good investment potential with moderate risk"
	case rec.Score >= 0:
		rec.Verdict, rec.RiskWarning = "HOLD", "Mixed signals - proceed with caution"
	case rec.Score >= -2:
		rec.Verdict, rec.RiskWarning = "WEAK SELL", "High risk - consider reducing position"
	default:
		rec.Verdict, rec.RiskWarning = "STRONG SELL", "Very high risk - avoid or exit position"
	}

	return rec, nil
}

func (r *Recommendation) add(points int, reason string) {
	r.Score += points
	r.Reasons = append(r.Reasons, reason)
}

// PickKind names the criterion a static pick optimizes
type PickKind string

const (
	PickProfitability  PickKind = "profitability"
	PickSustainability PickKind = "sustainability"
	PickBalanced       PickKind = "balanced"
)

// StaticPick is the best coin of the fact table for one criterion
type StaticPick struct {
	Kind   PickKind `json:"kind"`
	Coin   string   `json:"coin"`
	Score  float64  `json:"score"`
	Reason string   `json:"reason"`
}

func profitabilityScore(f models.CryptoFact) float64 {
	var score float64
	switch f.PriceTrend {
	case models.TrendRising:
		score += 40
	case models.TrendStable:
		score += 20
	}
	switch f.MarketCap {
	case models.TierHigh:
		score += 30
	case models.TierMedium:
		score += 20
	default:
		score += 10
	}
	return score
}

func sustainabilityScore(f models.CryptoFact) float64 {
	score := float64(f.SustainabilityScore * 10)
	switch f.EnergyUse {
	case models.TierLow:
		score += 20
	case models.TierMedium:
		score += 10
	}
	return math.Min(score, 100)
}

// BestPick scans the fact table for the highest scoring coin; the first
// coin wins ties
func BestPick(kind PickKind) StaticPick {
	var best NamedFact
	bestScore := -1.0

	for _, nf := range cryptoFacts {
		var score float64
		switch kind {
		case PickProfitability:
			score = profitabilityScore(nf.Fact)
		case PickSustainability:
			score = sustainabilityScore(nf.Fact)
		default:
			score = (profitabilityScore(nf.Fact) + sustainabilityScore(nf.Fact)) / 2
		}
		if score > bestScore {
			best, bestScore = nf, score
		}
	}

	pick := StaticPick{Kind: kind, Coin: best.Name, Score: bestScore}
	switch kind {
	case PickProfitability:
		pick.Reason = fmt.Sprintf("%s shows strong profitability potential with %s price trends and %s market cap. 📈",
			best.Name, best.Fact.PriceTrend, best.Fact.MarketCap)
	case PickSustainability:
		pick.Reason = fmt.Sprintf("%s is your eco-friendly choice with a sustainability score of %d/10 and %s energy usage. 🌱",
			best.Name, best.Fact.SustainabilityScore, best.Fact.EnergyUse)
	default:
		pick.Kind = PickBalanced
		pick.Reason = fmt.Sprintf("%s offers the best balance of profitability and sustainability. It's %s in price with a %d/10 sustainability score. ⚖️",
			best.Name, best.Fact.PriceTrend, best.Fact.SustainabilityScore)
	}
	return pick
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
