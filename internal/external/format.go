package external

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders a USD price with precision that grows as the price
// shrinks, e.g. $0.00012345, $0.5321, $64,123.45
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)

	switch {
	case price < 0.000001:
		return "$" + d.StringFixed(8)
	case price < 0.01:
		return "$" + d.StringFixed(6)
	case price < 1:
		return "$" + d.StringFixed(4)
	case price < 100:
		return "$" + d.StringFixed(2)
	default:
		return "$" + groupThousands(d.StringFixed(2))
	}
}

// FormatMarketCap renders a USD amount with a T/B/M suffix
func FormatMarketCap(value float64) string {
	d := decimal.NewFromFloat(value)

	switch {
	case value >= 1e12:
		return "$" + d.Div(decimal.New(1, 12)).StringFixed(2) + "T"
	case value >= 1e9:
		return "$" + d.Div(decimal.New(1, 9)).StringFixed(2) + "B"
	case value >= 1e6:
		return "$" + d.Div(decimal.New(1, 6)).StringFixed(2) + "M"
	default:
		return "$" + groupThousands(d.Round(0).String())
	}
}

// FormatVolume renders a trading volume the same way as a market cap
func FormatVolume(value float64) string {
	return FormatMarketCap(value)
}

// FormatPercentage renders a signed percentage with two decimals
func FormatPercentage(pct float64) string {
	s := decimal.NewFromFloat(pct).StringFixed(2)
	if pct > 0 {
		s = "+" + s
	}
	return s + "%"
}

// groupThousands inserts comma separators into the integer part of a
// decimal string
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + b.String() + frac
}
