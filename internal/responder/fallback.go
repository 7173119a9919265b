package responder

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cryptobuddy/internal/classifier"
)

// minFallbackLength is the shortest stage output accepted as an answer
const minFallbackLength = 20

var (
	timeQuery        = regexp.MustCompile(`what time|current time|time is it|today's date|what's the date|what day`)
	weatherQuery     = regexp.MustCompile(`\b(weather|forecast|temperature|rain(ing)?|sunny)\b`)
	programmingQuery = regexp.MustCompile(`\b(code|coding|programming|programmer|javascript|python|golang|react|software)\b`)
)

type fallbackStage struct {
	name string
	run  func(ctx context.Context, query string) (string, bool)
}

func (g *Generator) fallbackStages() []fallbackStage {
	var stages []fallbackStage
	if g.completer != nil {
		stages = append(stages, fallbackStage{"completion", g.completion})
	}
	return append(stages,
		fallbackStage{"arithmetic", arithmeticAnswer},
		fallbackStage{"time", g.timeAnswer},
		fallbackStage{"weather", cannedAnswer(weatherQuery, "🌤️ I don't have access to live weather data, but a local forecast service will give you accurate conditions. While you're here, want to check how the crypto market weather looks today?")},
		fallbackStage{"programming", cannedAnswer(programmingQuery, "💻 Programming is a great skill! Many developers build on blockchains today with Solidity for Ethereum, Rust for Solana, and Go for infrastructure. Ask me about blockchain technology if you want a crypto angle.")},
	)
}

// general walks the non-crypto fallback chain; the first stage with a long
// enough answer wins and the generic reply closes the chain
func (g *Generator) general(ctx context.Context, query string) Reply {
	for _, stage := range g.fallbackStages() {
		text, ok := stage.run(ctx, query)
		if !ok || utf8.RuneCountInString(text) < minFallbackLength {
			continue
		}
		return Reply{
			Kind:       KindGeneral,
			Payload:    &GeneralPayload{Stage: stage.name, Text: text},
			Confidence: 0.7,
		}
	}

	return Reply{
		Kind:       KindGeneral,
		Payload:    &GeneralPayload{Stage: "generic", Text: genericAnswer(query)},
		Confidence: 0.6,
	}
}

func (g *Generator) completion(ctx context.Context, query string) (string, bool) {
	text, err := g.completer.Complete(ctx, query)
	if err != nil {
		g.logger.WithError(err).Debug("Completion failed, continuing fallback chain")
		return "", false
	}
	return strings.TrimSpace(text), true
}

func arithmeticAnswer(_ context.Context, query string) (string, bool) {
	expr, ok := arithmeticExpression(query)
	if !ok {
		return "", false
	}
	value, err := evaluate(expr)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("The answer to %s is %s 🧮", expr, value.String()), true
}

func (g *Generator) timeAnswer(_ context.Context, query string) (string, bool) {
	if !timeQuery.MatchString(strings.ToLower(query)) {
		return "", false
	}
	now := g.now()
	return fmt.Sprintf("🕐 It's currently %s on %s.", now.Format("3:04 PM"), now.Format("Monday, January 2, 2006")), true
}

func cannedAnswer(pattern *regexp.Regexp, text string) func(context.Context, string) (string, bool) {
	return func(_ context.Context, query string) (string, bool) {
		if !pattern.MatchString(strings.ToLower(query)) {
			return "", false
		}
		return text, true
	}
}

func genericAnswer(query string) string {
	keywords := classifier.ExtractKeywords(query)
	if len(keywords) == 0 {
		return "That's an interesting question! I'm CryptoBuddy, and I'm at my best with cryptocurrency topics. Ask me about prices, sustainability, or investment ideas."
	}
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return fmt.Sprintf("You asked about %s. That's outside my crypto expertise, but I'd love to help with cryptocurrency prices, market trends, or sustainability analysis!",
		strings.Join(keywords, ", "))
}
