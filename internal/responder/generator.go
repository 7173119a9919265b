package responder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cryptobuddy/internal/classifier"
	"github.com/cryptobuddy/internal/external"
	"github.com/cryptobuddy/pkg/models"
)

const (
	sourceLive   = "CoinGecko API"
	sourceStatic = "CryptoBuddy knowledge base"

	maxComparedCoins = 3
	strongMoveAbove  = 5.0
	stableMoveBelow  = 2.0
	chartDays        = 7
)

var profitQuery = regexp.MustCompile(`\b(profit\w*|gains?|growth|rising|trending)\b`)

// MarketData is the subset of the market data client the generator needs
type MarketData interface {
	GetTopCryptocurrencies(ctx context.Context, limit int) ([]models.MarketSnapshot, error)
	GetCryptocurrencyData(ctx context.Context, coinID string) (*models.CoinDetail, error)
	GetGlobalMarketData(ctx context.Context) (*models.GlobalMarketSnapshot, error)
	GetTrendingCryptocurrencies(ctx context.Context) ([]models.TrendingCoin, error)
	SearchCryptocurrency(ctx context.Context, query string) ([]models.SearchCoin, error)
	GetMarketChart(ctx context.Context, coinID string, days int) (*models.MarketChart, error)
}

// Completer produces a free-form answer for non-crypto questions
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator turns a classified query into a Reply
type Generator struct {
	market    MarketData
	completer Completer
	logger    *logrus.Entry

	now  func() time.Time
	pick func(n int) int
}

// Option customizes a Generator
type Option func(*Generator)

// WithClock replaces time.Now for news dates and the time fallback
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithInsightPicker replaces the random choice of the help insight
func WithInsightPicker(pick func(n int) int) Option {
	return func(g *Generator) { g.pick = pick }
}

// New creates a Generator. completer may be nil.
func New(market MarketData, completer Completer, logger *logrus.Logger, opts ...Option) *Generator {
	g := &Generator{
		market:    market,
		completer: completer,
		logger:    logger.WithField("component", "responder"),
		now:       time.Now,
		pick:      rand.Intn,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Respond dispatches on the primary intent of the classification. Errors
// come only from market data fetches that had no fallback.
func (g *Generator) Respond(ctx context.Context, query string, c classifier.Classification) (Reply, error) {
	switch c.Primary() {
	case classifier.IntentGreeting:
		return conversational(KindGreeting), nil
	case classifier.IntentFarewell:
		return conversational(KindFarewell), nil
	case classifier.IntentThanks:
		return conversational(KindThanks), nil
	case classifier.IntentCapabilities:
		return conversational(KindCapabilities), nil
	case classifier.IntentHelp:
		return g.help(), nil
	case classifier.IntentPrice:
		return g.price(ctx, c)
	case classifier.IntentMarketAnalysis:
		return g.marketAnalysis(ctx)
	case classifier.IntentSustainability:
		return g.sustainability(c), nil
	case classifier.IntentInvestment:
		return g.investment(ctx, query, c)
	case classifier.IntentComparison:
		return g.comparison(ctx, c)
	case classifier.IntentTechnical:
		return g.technical(ctx, c), nil
	case classifier.IntentNews:
		return g.news(ctx)
	case classifier.IntentEducation:
		return g.education(query, c), nil
	}

	if c.CryptoRelated {
		return g.cryptoGeneral(ctx, c)
	}
	return g.general(ctx, query), nil
}

func conversational(kind Kind) Reply {
	return Reply{Kind: kind, Confidence: 0.95}
}

func (g *Generator) help() Reply {
	return Reply{
		Kind:       KindHelp,
		Payload:    &HelpPayload{Insight: insights[g.pick(len(insights))]},
		Sources:    []string{sourceStatic},
		Confidence: 0.95,
	}
}

// resolveCoin maps a canonical coin name to a provider id, falling back to
// the name itself when search has no hit
func (g *Generator) resolveCoin(ctx context.Context, name string) (string, error) {
	results, err := g.market.SearchCryptocurrency(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", name, err)
	}
	if len(results) == 0 {
		return name, nil
	}
	return results[0].ID, nil
}

func (g *Generator) coinDetail(ctx context.Context, name string) (*models.CoinDetail, error) {
	id, err := g.resolveCoin(ctx, name)
	if err != nil {
		return nil, err
	}
	return g.market.GetCryptocurrencyData(ctx, id)
}

func (g *Generator) price(ctx context.Context, c classifier.Classification) (Reply, error) {
	if len(c.Coins) > 0 {
		coin := c.Coins[0]
		detail, err := g.coinDetail(ctx, coin)
		if err == nil {
			return Reply{
				Kind: KindCoinPrice,
				Payload: &CoinPricePayload{
					Coin:      detail,
					Sentiment: Sentiment(detail.MarketData.PriceChange24h),
					Risk:      RiskLevel(detail.MarketData.PriceChange30d),
				},
				Sources:    []string{sourceLive},
				Confidence: 0.95,
			}, nil
		}
		g.logger.WithError(err).WithField("coin", coin).Warn("Failed to fetch coin detail, showing overview")
	}

	top, err := g.market.GetTopCryptocurrencies(ctx, 5)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to fetch top coins: %w", err)
	}

	return Reply{
		Kind:       KindTopPrices,
		Payload:    &TopPricesPayload{Coins: top},
		Sources:    []string{sourceLive},
		Confidence: 0.9,
	}, nil
}

func (g *Generator) marketAnalysis(ctx context.Context) (Reply, error) {
	var (
		global   *models.GlobalMarketSnapshot
		top      []models.MarketSnapshot
		trending []models.TrendingCoin
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		global, err = g.market.GetGlobalMarketData(egCtx)
		return err
	})
	eg.Go(func() (err error) {
		top, err = g.market.GetTopCryptocurrencies(egCtx, 10)
		return err
	})
	eg.Go(func() (err error) {
		trending, err = g.market.GetTrendingCryptocurrencies(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Reply{}, fmt.Errorf("failed to fetch market overview: %w", err)
	}

	payload := &MarketAnalysisPayload{Global: global, Top: top, Trending: trending}
	for _, coin := range top {
		switch {
		case coin.PriceChange24h > 0:
			payload.Gainers++
		case coin.PriceChange24h < 0:
			payload.Losers++
		}
	}

	return Reply{
		Kind:       KindMarketAnalysis,
		Payload:    payload,
		Sources:    []string{sourceLive},
		Confidence: 0.9,
	}, nil
}

func (g *Generator) sustainability(c classifier.Classification) Reply {
	for _, coin := range c.Coins {
		if info, ok := LookupSustainability(coin); ok {
			return Reply{
				Kind:       KindCoinSustainability,
				Payload:    &CoinSustainabilityPayload{Coin: coin, Info: info},
				Sources:    []string{sourceStatic},
				Confidence: 0.9,
			}
		}
	}

	ranking := make([]RankedCoin, 0, len(sustainabilityTable))
	for _, e := range sustainabilityTable {
		ranking = append(ranking, RankedCoin{Coin: e.coin, Score: e.info.Score})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})
	if len(ranking) > 5 {
		ranking = ranking[:5]
	}

	return Reply{
		Kind:       KindSustainabilityRanking,
		Payload:    &SustainabilityRankingPayload{Ranking: ranking, Pick: BestPick(PickSustainability)},
		Sources:    []string{sourceStatic},
		Confidence: 0.9,
	}
}

func (g *Generator) investment(ctx context.Context, query string, c classifier.Classification) (Reply, error) {
	if len(c.Coins) > 0 {
		reply, err := g.recommendation(ctx, c.Coins[0])
		if err == nil {
			return reply, nil
		}
		g.logger.WithError(err).WithField("coin", c.Coins[0]).Warn("Failed to score coin, showing overview")
	}

	var (
		global *models.GlobalMarketSnapshot
		top    []models.MarketSnapshot
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		top, err = g.market.GetTopCryptocurrencies(egCtx, 10)
		return err
	})
	eg.Go(func() (err error) {
		global, err = g.market.GetGlobalMarketData(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Reply{}, fmt.Errorf("failed to fetch investment overview: %w", err)
	}

	payload := &InvestmentPayload{Global: global, Top: top, Pick: BestPick(PickBalanced)}
	if profitQuery.MatchString(strings.ToLower(query)) {
		payload.Pick = BestPick(PickProfitability)
	}
	for _, coin := range top {
		if coin.PriceChange24h > strongMoveAbove && len(payload.Strong) < 3 {
			payload.Strong = append(payload.Strong, coin)
		}
		if math.Abs(coin.PriceChange24h) < stableMoveBelow && len(payload.Stable) < 3 {
			payload.Stable = append(payload.Stable, coin)
		}
	}

	return Reply{
		Kind:       KindInvestment,
		Payload:    payload,
		Sources:    []string{sourceLive, sourceStatic},
		Confidence: 0.85,
	}, nil
}

func (g *Generator) recommendation(ctx context.Context, coin string) (Reply, error) {
	id, err := g.resolveCoin(ctx, coin)
	if err != nil {
		return Reply{}, err
	}

	var (
		detail *models.CoinDetail
		chart  *models.MarketChart
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		detail, err = g.market.GetCryptocurrencyData(egCtx, id)
		return err
	})
	eg.Go(func() (err error) {
		chart, err = g.market.GetMarketChart(egCtx, id, chartDays)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Reply{}, err
	}

	rec, err := Recommend(coin, detail, chart)
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		Kind:       KindRecommendation,
		Payload:    &RecommendationPayload{Detail: detail, Recommendation: rec},
		Sources:    []string{sourceLive, sourceStatic},
		Confidence: 0.85,
	}, nil
}

func (g *Generator) comparison(ctx context.Context, c classifier.Classification) (Reply, error) {
	usage := Reply{Kind: KindComparisonUsage, Confidence: 0.8}

	coins := c.Coins
	if len(coins) < 2 {
		return usage, nil
	}
	if len(coins) > maxComparedCoins {
		coins = coins[:maxComparedCoins]
	}

	details := make([]*models.CoinDetail, len(coins))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, coin := range coins {
		i, coin := i, coin
		eg.Go(func() error {
			detail, err := g.coinDetail(egCtx, coin)
			if errors.Is(err, external.ErrNotFound) {
				g.logger.WithField("coin", coin).Debug("Coin not found, dropping from comparison")
				return nil
			}
			if err != nil {
				return err
			}
			details[i] = detail
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Reply{}, fmt.Errorf("failed to fetch coins for comparison: %w", err)
	}

	payload := &ComparisonPayload{}
	for i, detail := range details {
		if detail == nil {
			continue
		}
		compared := ComparedCoin{Name: coins[i], Detail: detail}
		if info, ok := LookupSustainability(coins[i]); ok {
			compared.Sustainability = &info
		}
		payload.Coins = append(payload.Coins, compared)
	}
	if len(payload.Coins) < 2 {
		return usage, nil
	}

	return Reply{
		Kind:       KindComparison,
		Payload:    payload,
		Sources:    []string{sourceLive, sourceStatic},
		Confidence: 0.9,
	}, nil
}

func (g *Generator) technical(ctx context.Context, c classifier.Classification) Reply {
	payload := &TechnicalPayload{}
	sources := []string{sourceStatic}

	if len(c.Coins) > 0 {
		coin := c.Coins[0]
		trend, err := g.coinTrend(ctx, coin)
		if err != nil {
			g.logger.WithError(err).WithField("coin", coin).Warn("Failed to analyze price trend")
		} else {
			payload.Coin, payload.Trend = coin, trend
			sources = append([]string{sourceLive}, sources...)
		}
	}

	return Reply{Kind: KindTechnical, Payload: payload, Sources: sources, Confidence: 0.8}
}

func (g *Generator) coinTrend(ctx context.Context, coin string) (*TrendAnalysis, error) {
	id, err := g.resolveCoin(ctx, coin)
	if err != nil {
		return nil, err
	}
	chart, err := g.market.GetMarketChart(ctx, id, chartDays)
	if err != nil {
		return nil, err
	}
	return AnalyzeTrend(chart)
}

func (g *Generator) news(ctx context.Context) (Reply, error) {
	global, err := g.market.GetGlobalMarketData(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to fetch global market data: %w", err)
	}

	return Reply{
		Kind:       KindNews,
		Payload:    &NewsPayload{Articles: newsFeed(g.now()), Global: global},
		Sources:    []string{sourceStatic, sourceLive},
		Confidence: 0.8,
	}, nil
}

func (g *Generator) education(query string, c classifier.Classification) Reply {
	lowered := strings.ToLower(query)
	for _, topic := range educationTopics {
		if strings.Contains(lowered, topic.key) {
			return Reply{
				Kind:       KindEducationTopic,
				Payload:    &EducationPayload{Topic: topic.key, Text: topic.text},
				Sources:    []string{sourceStatic},
				Confidence: 0.9,
			}
		}
	}

	if fact, ok := g.mentionedFact(c); ok {
		return coinFact(fact)
	}

	return Reply{Kind: KindEducationHub, Sources: []string{sourceStatic}, Confidence: 0.8}
}

func (g *Generator) cryptoGeneral(ctx context.Context, c classifier.Classification) (Reply, error) {
	if fact, ok := g.mentionedFact(c); ok {
		return coinFact(fact), nil
	}

	var (
		global *models.GlobalMarketSnapshot
		top    []models.MarketSnapshot
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		global, err = g.market.GetGlobalMarketData(egCtx)
		return err
	})
	eg.Go(func() (err error) {
		top, err = g.market.GetTopCryptocurrencies(egCtx, 5)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Reply{}, fmt.Errorf("failed to fetch market overview: %w", err)
	}

	return Reply{
		Kind:       KindWelcome,
		Payload:    &WelcomePayload{Global: global, Top: top},
		Sources:    []string{sourceLive},
		Confidence: 0.8,
	}, nil
}

func (g *Generator) mentionedFact(c classifier.Classification) (NamedFact, bool) {
	for _, coin := range c.Coins {
		if fact, ok := LookupFact(coin); ok {
			return fact, true
		}
	}
	return NamedFact{}, false
}

func coinFact(fact NamedFact) Reply {
	return Reply{
		Kind:       KindCoinFact,
		Payload:    &CoinFactPayload{Fact: fact},
		Sources:    []string{sourceStatic},
		Confidence: 0.85,
	}
}
