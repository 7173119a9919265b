package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sentiment is the coarse tone of a query
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var (
	positiveWords = regexp.MustCompile(`\b(good|great|excellent|amazing|bullish|up|rise|rising|gain|gains|profit|buy|moon)\b`)
	negativeWords = regexp.MustCompile(`\b(bad|terrible|awful|bearish|down|fall|falling|loss|losses|crash|sell|avoid|dump)\b`)

	numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	punctuation   = regexp.MustCompile(`[^\w\s]`)

	timeframes = []struct {
		label   string
		pattern *regexp.Regexp
	}{
		{"1h", regexp.MustCompile(`\b1\s*hour\b|\b1h\b|\bhourly\b`)},
		{"24h", regexp.MustCompile(`\b24\s*hours?\b|\b24h\b|\bdaily\b|\btoday\b`)},
		{"7d", regexp.MustCompile(`\b7\s*days?\b|\b7d\b|\bweek(ly)?\b`)},
		{"30d", regexp.MustCompile(`\b30\s*days?\b|\b30d\b|\bmonth(ly)?\b`)},
		{"1y", regexp.MustCompile(`\b1\s*years?\b|\b1y\b|\byear(ly)?\b|\bannual\b`)},
	}

	stopWords = map[string]struct{}{
		"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {}, "and": {},
		"or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {}, "of": {}, "as": {},
		"by": {}, "you": {}, "your": {}, "are": {}, "can": {}, "what": {}, "how": {},
	}

	questionWords = []string{"what", "when", "where", "who", "why", "how", "which", "should", "can", "will", "is", "are", "do", "does"}
)

// AnalyzeSentiment counts positive and negative words in the query
func AnalyzeSentiment(query string) Sentiment {
	lowered := strings.ToLower(query)
	positive := len(positiveWords.FindAllString(lowered, -1))
	negative := len(negativeWords.FindAllString(lowered, -1))

	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// ExtractTimeframe returns the first timeframe label (1h, 24h, 7d, 30d,
// 1y) mentioned in the query
func ExtractTimeframe(query string) (string, bool) {
	lowered := strings.ToLower(query)
	for _, tf := range timeframes {
		if tf.pattern.MatchString(lowered) {
			return tf.label, true
		}
	}
	return "", false
}

// ExtractNumbers returns every number literal in the query
func ExtractNumbers(query string) []float64 {
	var numbers []float64
	for _, m := range numberPattern.FindAllString(query, -1) {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// NormalizeQuery lowercases, strips punctuation and collapses whitespace
func NormalizeQuery(query string) string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(query), " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// ExtractKeywords returns the normalized words longer than two characters
// that are not stop words
func ExtractKeywords(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(NormalizeQuery(query)) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// IsQuestion reports whether the query starts with a question word or
// contains a question mark
func IsQuestion(query string) bool {
	if strings.Contains(query, "?") {
		return true
	}

	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ",.!'")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

// GenerateSuggestions proposes up to three follow-up prompts
func (c *Classifier) GenerateSuggestions(query string) []string {
	classification := c.Classify(query)
	coins := c.ExtractCryptoNames(query)

	var suggestions []string
	if len(coins) > 0 {
		coin := coins[0]
		suggestions = append(suggestions,
			fmt.Sprintf("What's the current price of %s?", coin),
			fmt.Sprintf("Is %s a good investment?", coin),
			fmt.Sprintf("%s sustainability analysis", coin),
		)
	}

	if classification.Has(IntentComparison) && len(coins) >= 2 {
		suggestions = append(suggestions, fmt.Sprintf("Compare %s vs %s in detail", coins[0], coins[1]))
	}

	if classification.Has(IntentInvestment) {
		suggestions = append(suggestions,
			"Best cryptocurrencies for long-term growth",
			"Crypto portfolio diversification strategy",
			"Risk assessment for crypto investments",
		)
	}

	if len(suggestions) == 0 && !classification.CryptoRelated {
		suggestions = append(suggestions,
			"What's the price of Bitcoin?",
			"Which crypto is most sustainable?",
			"Compare Ethereum vs Cardano",
		)
	}

	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}
