package responder

import (
	"fmt"
	"strings"

	"github.com/cryptobuddy/internal/external"
	"github.com/cryptobuddy/pkg/models"
)

// Kind tags the payload carried by a Reply
type Kind string

const (
	KindCoinPrice             Kind = "coin_price"
	KindTopPrices             Kind = "top_prices"
	KindMarketAnalysis        Kind = "market_analysis"
	KindCoinSustainability    Kind = "coin_sustainability"
	KindSustainabilityRanking Kind = "sustainability_ranking"
	KindInvestment            Kind = "investment"
	KindRecommendation        Kind = "recommendation"
	KindComparison            Kind = "comparison"
	KindComparisonUsage       Kind = "comparison_usage"
	KindTechnical             Kind = "technical"
	KindNews                  Kind = "news"
	KindEducationTopic        Kind = "education_topic"
	KindEducationHub          Kind = "education_hub"
	KindGreeting              Kind = "greeting"
	KindFarewell              Kind = "farewell"
	KindThanks                Kind = "thanks"
	KindHelp                  Kind = "help"
	KindCapabilities          Kind = "capabilities"
	KindWelcome               Kind = "welcome"
	KindCoinFact              Kind = "coin_fact"
	KindGeneral               Kind = "general"
	KindApology               Kind = "apology"
)

// Reply is a generated answer before rendering
type Reply struct {
	Kind       Kind        `json:"kind"`
	Payload    interface{} `json:"payload,omitempty"`
	Sources    []string    `json:"sources,omitempty"`
	Confidence float64     `json:"confidence"`
}

// CoinPricePayload is a single coin quote with its 24h sentiment and 30d risk
type CoinPricePayload struct {
	Coin      *models.CoinDetail `json:"coin"`
	Sentiment SentimentBand      `json:"sentiment"`
	Risk      string             `json:"risk"`
}

// TopPricesPayload lists the largest coins when no coin was named
type TopPricesPayload struct {
	Coins []models.MarketSnapshot `json:"coins"`
}

// MarketAnalysisPayload joins the global snapshot, top coins and trending list
type MarketAnalysisPayload struct {
	Global   *models.GlobalMarketSnapshot `json:"global"`
	Top      []models.MarketSnapshot      `json:"top"`
	Trending []models.TrendingCoin        `json:"trending"`
	Gainers  int                          `json:"gainers"`
	Losers   int                          `json:"losers"`
}

// CoinSustainabilityPayload is the static sustainability entry of one coin
type CoinSustainabilityPayload struct {
	Coin string                    `json:"coin"`
	Info models.SustainabilityInfo `json:"info"`
}

// RankedCoin is one line of the sustainability ranking
type RankedCoin struct {
	Coin  string `json:"coin"`
	Score int    `json:"score"`
}

// SustainabilityRankingPayload ranks the table by score
type SustainabilityRankingPayload struct {
	Ranking []RankedCoin `json:"ranking"`
	Pick    StaticPick   `json:"pick"`
}

// InvestmentPayload groups top coins into strong and stable performers
type InvestmentPayload struct {
	Global *models.GlobalMarketSnapshot `json:"global"`
	Top    []models.MarketSnapshot      `json:"top"`
	Strong []models.MarketSnapshot      `json:"strong"`
	Stable []models.MarketSnapshot      `json:"stable"`
	Pick   StaticPick                   `json:"pick"`
}

// RecommendationPayload scores a named coin from its detail and chart
type RecommendationPayload struct {
	Detail         *models.CoinDetail `json:"detail"`
	Recommendation *Recommendation    `json:"recommendation"`
}

// ComparedCoin is one side of a comparison
type ComparedCoin struct {
	Name           string                     `json:"name"`
	Detail         *models.CoinDetail         `json:"detail"`
	Sustainability *models.SustainabilityInfo `json:"sustainability,omitempty"`
}

// ComparisonPayload holds the coins found for a comparison
type ComparisonPayload struct {
	Coins []ComparedCoin `json:"coins"`
}

// TechnicalPayload carries an optional trend analysis for the named coin
type TechnicalPayload struct {
	Coin  string         `json:"coin,omitempty"`
	Trend *TrendAnalysis `json:"trend,omitempty"`
}

// NewsPayload is the headline feed with a market snapshot
type NewsPayload struct {
	Articles []NewsArticle               `json:"articles"`
	Global   *models.GlobalMarketSnapshot `json:"global"`
}

// EducationPayload is the primer text of one education topic
type EducationPayload struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// HelpPayload adds a random tip to the help text
type HelpPayload struct {
	Insight string `json:"insight"`
}

// WelcomePayload opens a general crypto question with a market overview
type WelcomePayload struct {
	Global *models.GlobalMarketSnapshot `json:"global"`
	Top    []models.MarketSnapshot      `json:"top"`
}

// CoinFactPayload reports the static fact entry of a coin
type CoinFactPayload struct {
	Fact NamedFact `json:"fact"`
}

// GeneralPayload carries the text produced by the non-crypto fallback
// chain and the stage that produced it
type GeneralPayload struct {
	Stage string `json:"stage"`
	Text  string `json:"text"`
}

var disclaimerKinds = map[Kind]bool{
	KindCoinPrice:      true,
	KindTopPrices:      true,
	KindMarketAnalysis: true,
	KindInvestment:     true,
	KindRecommendation: true,
}

// Render turns a Reply into chat text
func Render(r Reply) string {
	text := render(r)
	if disclaimerKinds[r.Kind] {
		text += "\n\n" + Disclaimer
	}
	return text
}

func render(r Reply) string {
	switch p := r.Payload.(type) {
	case *CoinPricePayload:
		return renderCoinPrice(p)
	case *TopPricesPayload:
		return renderTopPrices(p)
	case *MarketAnalysisPayload:
		return renderMarketAnalysis(p)
	case *CoinSustainabilityPayload:
		return fmt.Sprintf("🌱 **%s Sustainability Analysis**\n\n♻️ **Sustainability Score:** %d/10\n⚙️ **Consensus:** %s\n⚡ **Energy per Transaction:** %s\n📝 **Analysis:** %s\n\n%s",
			displayName(p.Coin), p.Info.Score, p.Info.Consensus, p.Info.EnergyPerTx, p.Info.Reason, SustainabilityRecommendation(p.Info.Score))
	case *SustainabilityRankingPayload:
		return renderRanking(p)
	case *InvestmentPayload:
		return renderInvestment(p)
	case *RecommendationPayload:
		return renderRecommendation(p)
	case *ComparisonPayload:
		return renderComparison(p)
	case *TechnicalPayload:
		return renderTechnical(p)
	case *NewsPayload:
		return renderNews(p)
	case *EducationPayload:
		return p.Text
	case *HelpPayload:
		return "I can help you with crypto analysis! Try asking me:\n\n🔹 \"Which crypto is most sustainable?\"\n🔹 \"What's the best crypto for profit?\"\n🔹 \"Tell me about Bitcoin\"\n🔹 \"Compare Ethereum vs Cardano\"\n🔹 \"What should I invest in?\"\n\n" + p.Insight
	case *WelcomePayload:
		return renderWelcome(p)
	case *CoinFactPayload:
		return renderCoinFact(p.Fact)
	case *GeneralPayload:
		return p.Text
	}

	switch r.Kind {
	case KindComparisonUsage:
		return "⚖️ **Cryptocurrency Comparison**\n\nI can help you compare different cryptocurrencies! Try asking:\n• \"Compare Bitcoin vs Ethereum\"\n• \"Bitcoin vs Cardano vs Solana\"\n• \"Which is better, ETH or ADA?\"\n\nI'll provide detailed analysis including price, market cap, performance, and sustainability factors."
	case KindEducationHub:
		return "🎓 **Crypto Education Hub**\n\nI can explain various cryptocurrency concepts! Ask me about:\n\n🔗 **Blockchain Technology**\n🏦 **DeFi (Decentralized Finance)**\n🎨 **NFTs (Non-Fungible Tokens)**\n⛏️ **Mining & Consensus**\n🥩 **Staking**\n🔒 **Security & Wallets**\n\nJust ask: \"What is blockchain?\" or \"Explain DeFi\" and I'll provide detailed explanations!"
	case KindGreeting:
		return "Hello again! 👋 Ready to explore some crypto opportunities? Ask me about sustainability, profitability, or any specific coin you're curious about!"
	case KindFarewell:
		return "Goodbye! 👋 Thanks for chatting with CryptoBuddy. Come back anytime for the latest crypto insights and analysis!"
	case KindThanks:
		return "You're welcome! 😊 Remember, I'm always here to help you make informed crypto decisions. " + Disclaimer
	case KindCapabilities:
		return "🤖 **What I Can Do**\n\n📊 Real-time prices and market analysis\n🌱 Sustainability assessments\n💼 Investment guidance and coin scoring\n⚖️ Side-by-side coin comparisons\n📈 Technical analysis primers\n📰 Crypto news highlights\n🎓 Explanations of blockchain concepts\n\nJust ask in plain English!"
	case KindApology:
		return Apology
	}

	return Apology
}

func renderCoinPrice(p *CoinPricePayload) string {
	c := p.Coin
	md := c.MarketData
	return fmt.Sprintf("📊 **%s (%s) Price Analysis**\n\n"+
		"💰 **Current Price:** %s\n"+
		"📈 **24h Change:** %s\n"+
		"📅 **7d Change:** %s\n"+
		"🏆 **Market Cap:** %s\n"+
		"💧 **24h Volume:** %s\n"+
		"📊 **Market Rank:** #%d\n"+
		"🎲 **30d Risk Level:** %s\n\n"+
		"%s **Sentiment:** %s",
		c.Name, strings.ToUpper(c.Symbol),
		external.FormatPrice(c.PriceUSD()),
		external.FormatPercentage(md.PriceChange24h),
		external.FormatPercentage(md.PriceChange7d),
		external.FormatMarketCap(c.MarketCapUSD()),
		external.FormatVolume(c.VolumeUSD()),
		c.MarketCapRank,
		p.Risk,
		p.Sentiment.Emoji, displayName(p.Sentiment.Label),
	)
}

func renderTopPrices(p *TopPricesPayload) string {
	lines := make([]string, 0, len(p.Coins))
	for _, c := range p.Coins {
		lines = append(lines, fmt.Sprintf("• **%s**: %s (%s) %s",
			c.Name, external.FormatPrice(c.CurrentPrice), external.FormatPercentage(c.PriceChange24h), Sentiment(c.PriceChange24h).Emoji))
	}
	return "📊 **Top Cryptocurrency Prices**\n\n" + strings.Join(lines, "\n") +
		"\n\n💡 *Tip: Ask me about a specific cryptocurrency for detailed analysis!*"
}

func renderMarketAnalysis(p *MarketAnalysisPayload) string {
	g := p.Global
	var b strings.Builder
	b.WriteString("🌍 **Global Crypto Market Analysis**\n\n")
	fmt.Fprintf(&b, "💰 **Total Market Cap:** %s\n", external.FormatMarketCap(g.TotalMarketCapUSD()))
	fmt.Fprintf(&b, "💧 **24h Volume:** %s\n", external.FormatVolume(g.TotalVolumeUSD()))
	fmt.Fprintf(&b, "📊 **24h Change:** %s\n", external.FormatPercentage(g.MarketCapChange24hUSD))
	fmt.Fprintf(&b, "₿ **Bitcoin Dominance:** %.1f%%\n\n", g.Dominance("btc"))
	b.WriteString("📈 **Market Sentiment:**\n")
	fmt.Fprintf(&b, "• %d coins gaining\n", p.Gainers)
	fmt.Fprintf(&b, "• %d coins declining\n\n", p.Losers)

	if len(p.Trending) > 0 {
		names := make([]string, 0, 5)
		for i, t := range p.Trending {
			if i == 5 {
				break
			}
			names = append(names, fmt.Sprintf("%s (%s)", t.Name, strings.ToUpper(t.Symbol)))
		}
		fmt.Fprintf(&b, "🔥 **Trending:** %s\n\n", strings.Join(names, ", "))
	}

	b.WriteString(marketSentiment(g.MarketCapChange24hUSD, g.Dominance("btc")))
	return b.String()
}

func renderRanking(p *SustainabilityRankingPayload) string {
	lines := make([]string, 0, len(p.Ranking))
	for i, r := range p.Ranking {
		lines = append(lines, fmt.Sprintf("%d. **%s** - %d/10", i+1, displayName(r.Coin), r.Score))
	}
	return "🌱 **Most Sustainable Cryptocurrencies**\n\n" + strings.Join(lines, "\n") + "\n\n" +
		"💡 **Key Factors:**\n• Consensus mechanism (PoS > PoW)\n• Energy efficiency\n• Carbon footprint\n• Network optimization\n\n" +
		"🎯 " + p.Pick.Reason + "\n\n" +
		"🌍 *Choose eco-friendly options for a sustainable crypto future!*"
}

func renderInvestment(p *InvestmentPayload) string {
	trend := "Bearish"
	if p.Global.MarketCapChange24hUSD > 0 {
		trend = "Bullish"
	}

	var b strings.Builder
	b.WriteString("💼 **Investment Analysis & Recommendations**\n\n")
	fmt.Fprintf(&b, "📊 **Current Market:** %s sentiment\n\n", trend)

	b.WriteString("🚀 **Strong Performers (24h):**\n")
	if len(p.Strong) == 0 {
		b.WriteString("• None above +5% today\n")
	}
	for _, c := range p.Strong {
		fmt.Fprintf(&b, "• %s: %s\n", c.Name, external.FormatPercentage(c.PriceChange24h))
	}

	b.WriteString("\n⚖️ **Stable Options:**\n")
	if len(p.Stable) == 0 {
		b.WriteString("• No top coin moved less than 2% today\n")
	}
	for _, c := range p.Stable {
		fmt.Fprintf(&b, "• %s: %s\n", c.Name, external.FormatPercentage(c.PriceChange24h))
	}

	fmt.Fprintf(&b, "\n🎯 **Top Pick:** %s\n\n", p.Pick.Reason)
	b.WriteString("💡 **Investment Strategy Tips:**\n" +
		"• Diversify across different cryptocurrencies\n" +
		"• Consider dollar-cost averaging (DCA)\n" +
		"• Only invest what you can afford to lose\n" +
		"• Research fundamentals, not just price movements\n" +
		"• Consider both growth potential and sustainability")
	return b.String()
}

func renderRecommendation(p *RecommendationPayload) string {
	rec := p.Recommendation
	d := p.Detail

	var b strings.Builder
	fmt.Fprintf(&b, "💼 **%s (%s) Investment Score**\n\n", d.Name, strings.ToUpper(d.Symbol))
	fmt.Fprintf(&b, "🎯 **Recommendation:** %s (score %d)\n", rec.Verdict, rec.Score)
	fmt.Fprintf(&b, "💰 **Current Price:** %s\n", external.FormatPrice(d.PriceUSD()))
	fmt.Fprintf(&b, "📊 **Market Rank:** #%d\n", rec.MarketCapRank)
	fmt.Fprintf(&b, "📈 **7d Trend:** %s (%s)\n", rec.Trend.Trend, external.FormatPercentage(rec.Trend.ChangePercent))
	fmt.Fprintf(&b, "🎲 **Volatility:** %s (%.2f%% avg move)\n", rec.Trend.RiskLevel, rec.Trend.Volatility)
	fmt.Fprintf(&b, "🌱 **Sustainability:** %d/10\n\n", rec.Sustainability)
	b.WriteString("**Key Factors:**\n")
	for _, reason := range rec.Reasons {
		fmt.Fprintf(&b, "• %s\n", reason)
	}
	fmt.Fprintf(&b, "\n⚠️ %s", rec.RiskWarning)
	return b.String()
}

func renderComparison(p *ComparisonPayload) string {
	blocks := make([]string, 0, len(p.Coins))
	for _, c := range p.Coins {
		d := c.Detail
		block := fmt.Sprintf("**%s (%s)**\n• Price: %s\n• Market Cap: %s\n• 24h Change: %s\n• Rank: #%d",
			d.Name, strings.ToUpper(d.Symbol),
			external.FormatPrice(d.PriceUSD()),
			external.FormatMarketCap(d.MarketCapUSD()),
			external.FormatPercentage(d.MarketData.PriceChange24h),
			d.MarketCapRank)
		if c.Sustainability != nil {
			block += fmt.Sprintf("\n• Sustainability: %d/10", c.Sustainability.Score)
		}
		blocks = append(blocks, block)
	}

	return "⚖️ **Cryptocurrency Comparison**\n\n" + strings.Join(blocks, "\n\n") + "\n\n" + comparisonInsights(p.Coins)
}

func comparisonInsights(coins []ComparedCoin) string {
	largest, best := coins[0], coins[0]
	var greenest *ComparedCoin
	for i := range coins {
		c := coins[i]
		if c.Detail.MarketCapUSD() > largest.Detail.MarketCapUSD() {
			largest = c
		}
		if c.Detail.MarketData.PriceChange24h > best.Detail.MarketData.PriceChange24h {
			best = c
		}
		if c.Sustainability != nil && (greenest == nil || c.Sustainability.Score > greenest.Sustainability.Score) {
			greenest = &coins[i]
		}
	}

	insights := []string{
		fmt.Sprintf("🏆 **%s** has the largest market cap, indicating higher stability and adoption.", largest.Detail.Name),
		fmt.Sprintf("📈 **%s** is the top 24h performer with %s.", best.Detail.Name, external.FormatPercentage(best.Detail.MarketData.PriceChange24h)),
	}
	if greenest != nil {
		insights = append(insights, fmt.Sprintf("🌱 **%s** is the most sustainable option here (%d/10, %s).",
			greenest.Detail.Name, greenest.Sustainability.Score, greenest.Sustainability.Consensus))
	}

	return "💡 **Key Insights:**\n• " + strings.Join(insights, "\n• ")
}

func renderTechnical(p *TechnicalPayload) string {
	var b strings.Builder
	b.WriteString("📈 **Technical Analysis Insights**\n\n")
	if p.Trend != nil {
		fmt.Fprintf(&b, "📊 **%s, last 7 days:**\n", displayName(p.Coin))
		fmt.Fprintf(&b, "• Trend: %s (%s)\n", p.Trend.Trend, external.FormatPercentage(p.Trend.ChangePercent))
		fmt.Fprintf(&b, "• Range: %s → %s\n", external.FormatPrice(p.Trend.StartPrice), external.FormatPrice(p.Trend.EndPrice))
		fmt.Fprintf(&b, "• Volatility: %s (%.2f%% avg move)\n\n", p.Trend.RiskLevel, p.Trend.Volatility)
	}
	b.WriteString("🔍 **Key Technical Indicators to Watch:**\n" +
		"• **RSI (Relative Strength Index):** Measures overbought/oversold conditions\n" +
		"• **MACD:** Shows trend changes and momentum\n" +
		"• **Support/Resistance:** Key price levels to monitor\n" +
		"• **Volume:** Confirms price movements\n\n" +
		"💡 **Pro Tips:**\n" +
		"• Combine multiple indicators for better signals\n" +
		"• Consider fundamental analysis alongside technicals\n" +
		"• Use proper risk management strategies\n\n" +
		"📚 *For detailed charts and real-time technical analysis, I recommend using TradingView or similar platforms.*")
	return b.String()
}

func renderNews(p *NewsPayload) string {
	items := make([]string, 0, len(p.Articles))
	for i, a := range p.Articles {
		items = append(items, fmt.Sprintf("%d. **%s**\n   %s\n   *%s - %s*",
			i+1, a.Title, a.Description, a.Source, a.PublishedAt.Format("Jan 2, 2006")))
	}
	return "📰 **Latest Crypto News & Updates**\n\n" + strings.Join(items, "\n\n") + "\n\n" +
		"📊 **Market Snapshot:**\n" +
		fmt.Sprintf("• Total Market Cap: %s\n", external.FormatMarketCap(p.Global.TotalMarketCapUSD())) +
		fmt.Sprintf("• 24h Change: %s\n\n", external.FormatPercentage(p.Global.MarketCapChange24hUSD)) +
		"💡 *Stay informed with the latest developments in the crypto space!*"
}

func renderWelcome(p *WelcomePayload) string {
	trend := "📉 Bearish"
	if p.Global.MarketCapChange24hUSD > 0 {
		trend = "📈 Bullish"
	}
	return "👋 **Welcome to CryptoBuddy!**\n\nI'm your AI-powered cryptocurrency assistant. I can help you with:\n\n" +
		"📊 **Real-time market data and analysis**\n💰 **Price tracking**\n🌱 **Sustainability assessments**\n💼 **Investment guidance**\n⚖️ **Cryptocurrency comparisons**\n📰 **Latest crypto news**\n🎓 **Educational content**\n\n" +
		"**Current Market Overview:**\n" +
		fmt.Sprintf("• Total Market Cap: %s\n", external.FormatMarketCap(p.Global.TotalMarketCapUSD())) +
		fmt.Sprintf("• Bitcoin Dominance: %.1f%%\n", p.Global.Dominance("btc")) +
		fmt.Sprintf("• Market Trend: %s\n\n", trend) +
		topCoins(p.Top) +
		"💡 **Try asking me:**\n" +
		"• \"What's the price of Bitcoin?\"\n" +
		"• \"Which crypto is most sustainable?\"\n" +
		"• \"Compare Ethereum vs Cardano\"\n" +
		"• \"Should I invest in crypto?\"\n" +
		"• \"Latest crypto news\""
}

func renderCoinFact(nf NamedFact) string {
	trendEmoji := map[models.PriceTrend]string{
		models.TrendRising:  "📈",
		models.TrendStable:  "➡️",
		models.TrendFalling: "📉",
	}[nf.Fact.PriceTrend]
	energyEmoji := map[models.Tier]string{
		models.TierLow:    "🟢",
		models.TierMedium: "🟡",
		models.TierHigh:   "🔴",
	}[nf.Fact.EnergyUse]

	return fmt.Sprintf("%s Analysis 📊:\n• Price Trend: %s %s\n• Market Cap: %s\n• Energy Use: %s %s\n• Sustainability Score: %d/10 🌱",
		nf.Name, nf.Fact.PriceTrend, trendEmoji, nf.Fact.MarketCap, nf.Fact.EnergyUse, energyEmoji, nf.Fact.SustainabilityScore)
}

func topCoins(coins []models.MarketSnapshot) string {
	if len(coins) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("**Top Coins:**\n")
	for _, c := range coins {
		fmt.Fprintf(&b, "• %s: %s (%s)\n", c.Name, external.FormatPrice(c.CurrentPrice), external.FormatPercentage(c.PriceChange24h))
	}
	b.WriteString("\n")
	return b.String()
}

// displayName capitalizes a canonical coin name
func displayName(coin string) string {
	if coin == "" {
		return coin
	}
	return strings.ToUpper(coin[:1]) + coin[1:]
}
