package responder

import (
	"strings"
	"testing"
)

func TestSentimentBoundaries(t *testing.T) {
	tests := []struct {
		change float64
		label  string
	}{
		{25, "extremely bullish"},
		{10, "extremely bullish"},
		{9.99, "strongly bullish"},
		{5, "strongly bullish"},
		{2, "bullish"},
		{1.99, "slightly bullish"},
		{0, "slightly bullish"},
		{-0.01, "slightly bearish"},
		{-2, "slightly bearish"},
		{-2.01, "bearish"},
		{-5, "bearish"},
		{-10, "strongly bearish"},
		{-10.01, "extreme bearish"},
	}

	for _, tt := range tests {
		if got := Sentiment(tt.change); got.Label != tt.label {
			t.Errorf("Sentiment(%v) = %q, want %q", tt.change, got.Label, tt.label)
		}
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	tests := []struct {
		change float64
		want   string
	}{
		{50.01, RiskExtreme},
		{-60, RiskExtreme},
		{50, RiskHigh},
		{30.5, RiskHigh},
		{30, RiskMedium},
		{-15.5, RiskMedium},
		{15, RiskLowMedium},
		{5.1, RiskLowMedium},
		{5, RiskLow},
		{0, RiskLow},
	}

	for _, tt := range tests {
		if got := RiskLevel(tt.change); got != tt.want {
			t.Errorf("RiskLevel(%v) = %s, want %s", tt.change, got, tt.want)
		}
	}
}

func TestSustainabilityRecommendation(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{9, "Excellent"},
		{8, "Excellent"},
		{6, "Good sustainability"},
		{4, "Moderate"},
		{3, "High environmental impact"},
	}

	for _, tt := range tests {
		if got := SustainabilityRecommendation(tt.score); !strings.Contains(got, tt.want) {
			t.Errorf("SustainabilityRecommendation(%d) = %q, want it to mention %q", tt.score, got, tt.want)
		}
	}
}

func TestMarketSentiment(t *testing.T) {
	got := marketSentiment(3, 55)
	if !strings.Contains(got, "Strong bullish") || !strings.Contains(got, "dominance is high") {
		t.Errorf("unexpected sentiment: %q", got)
	}

	got = marketSentiment(-4, 40)
	if !strings.Contains(got, "Bearish") || !strings.Contains(got, "Altcoin season") {
		t.Errorf("unexpected sentiment: %q", got)
	}
}

func TestLookupTables(t *testing.T) {
	info, ok := LookupSustainability("Bitcoin")
	if !ok || info.Score != 3 || info.EnergyPerTx != "741 kWh" {
		t.Errorf("unexpected bitcoin sustainability: %+v, %v", info, ok)
	}
	if _, ok := LookupSustainability("dogecoin"); ok {
		t.Error("dogecoin should not have a sustainability entry")
	}

	fact, ok := LookupFact("cardano")
	if !ok || fact.Name != "Cardano" || fact.Fact.SustainabilityScore != 8 {
		t.Errorf("unexpected cardano fact: %+v, %v", fact, ok)
	}

	facts := CryptoFacts()
	facts[0].Name = "changed"
	if CryptoFacts()[0].Name != "Bitcoin" {
		t.Error("CryptoFacts must return a copy")
	}
}
