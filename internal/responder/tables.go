package responder

import (
	"strings"
	"time"

	"github.com/cryptobuddy/pkg/models"
)

const (
	// Greeting opens every new conversation
	Greeting = "Hey there! 👋 I'm CryptoBuddy, your AI-powered financial sidekick! I'm here to help you navigate the crypto world with smart insights on profitability and sustainability. What would you like to know?"

	// Disclaimer is appended to price, market and investment replies
	Disclaimer = "⚠️ Remember: Crypto investments are high-risk. Always do your own research and never invest more than you can afford to lose!"

	// Apology replaces any reply that failed to generate
	Apology = "I'm experiencing some technical difficulties accessing real-time data. Let me provide you with some general crypto insights instead. What specific aspect of cryptocurrency would you like to learn about?"
)

// NamedFact is a CryptoFact together with the coin it describes
type NamedFact struct {
	Name string            `json:"name"`
	Fact models.CryptoFact `json:"fact"`
}

// cryptoFacts is built once and never mutated
var cryptoFacts = []NamedFact{
	{"Bitcoin", models.CryptoFact{PriceTrend: models.TrendRising, MarketCap: models.TierHigh, EnergyUse: models.TierHigh, SustainabilityScore: 3}},
	{"Ethereum", models.CryptoFact{PriceTrend: models.TrendStable, MarketCap: models.TierHigh, EnergyUse: models.TierMedium, SustainabilityScore: 6}},
	{"Cardano", models.CryptoFact{PriceTrend: models.TrendRising, MarketCap: models.TierMedium, EnergyUse: models.TierLow, SustainabilityScore: 8}},
	{"Solana", models.CryptoFact{PriceTrend: models.TrendRising, MarketCap: models.TierMedium, EnergyUse: models.TierLow, SustainabilityScore: 7}},
	{"Polkadot", models.CryptoFact{PriceTrend: models.TrendStable, MarketCap: models.TierMedium, EnergyUse: models.TierLow, SustainabilityScore: 7}},
	{"Chainlink", models.CryptoFact{PriceTrend: models.TrendRising, MarketCap: models.TierMedium, EnergyUse: models.TierMedium, SustainabilityScore: 6}},
}

// CryptoFacts returns a copy of the static fact table in table order
func CryptoFacts() []NamedFact {
	out := make([]NamedFact, len(cryptoFacts))
	copy(out, cryptoFacts)
	return out
}

// LookupFact finds the fact entry for a coin name, case-insensitively
func LookupFact(name string) (NamedFact, bool) {
	for _, f := range cryptoFacts {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return NamedFact{}, false
}

type sustainabilityEntry struct {
	coin string
	info models.SustainabilityInfo
}

// The market data API carries no sustainability fields, so these scores
// are maintained by hand
var sustainabilityTable = []sustainabilityEntry{
	{"bitcoin", models.SustainabilityInfo{Score: 3, Reason: "High energy consumption due to Proof of Work consensus", Consensus: "Proof of Work", EnergyPerTx: "741 kWh"}},
	{"ethereum", models.SustainabilityInfo{Score: 8, Reason: "Transitioned to Proof of Stake, significantly reducing energy usage", Consensus: "Proof of Stake", EnergyPerTx: "0.0026 kWh"}},
	{"cardano", models.SustainabilityInfo{Score: 9, Reason: "Built with Proof of Stake from inception, highly energy efficient", Consensus: "Proof of Stake", EnergyPerTx: "0.0015 kWh"}},
	{"solana", models.SustainabilityInfo{Score: 7, Reason: "Proof of History + Proof of Stake, relatively energy efficient", Consensus: "Proof of History + PoS", EnergyPerTx: "0.00051 kWh"}},
	{"polkadot", models.SustainabilityInfo{Score: 8, Reason: "Nominated Proof of Stake consensus, low energy consumption", Consensus: "Nominated Proof of Stake", EnergyPerTx: "0.0017 kWh"}},
	{"chainlink", models.SustainabilityInfo{Score: 6, Reason: "Runs on Ethereum, inherits its sustainability improvements", Consensus: "Ethereum (Proof of Stake)", EnergyPerTx: "inherits Ethereum"}},
	{"polygon", models.SustainabilityInfo{Score: 8, Reason: "Layer 2 solution with Proof of Stake, very energy efficient", Consensus: "Proof of Stake", EnergyPerTx: "0.00079 kWh"}},
	{"avalanche", models.SustainabilityInfo{Score: 7, Reason: "Avalanche consensus protocol, moderate energy usage", Consensus: "Avalanche consensus", EnergyPerTx: "0.0005 kWh"}},
}

// LookupSustainability returns the sustainability profile of a coin
func LookupSustainability(coin string) (models.SustainabilityInfo, bool) {
	coin = strings.ToLower(coin)
	for _, e := range sustainabilityTable {
		if e.coin == coin {
			return e.info, true
		}
	}
	return models.SustainabilityInfo{}, false
}

// NewsArticle is a headline shown by the news handler
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   string    `json:"sentiment"`
}

// newsFeed returns the canned headlines dated relative to now
func newsFeed(now time.Time) []NewsArticle {
	return []NewsArticle{
		{
			Title:       "Bitcoin Reaches New All-Time High Amid Institutional Adoption",
			Description: "Major corporations continue to add Bitcoin to their treasury reserves, driving unprecedented demand.",
			Source:      "CryptoNews",
			PublishedAt: now.Add(-2 * time.Hour),
			Sentiment:   "positive",
		},
		{
			Title:       "Ethereum Staking Rewards Attract Long-term Investors",
			Description: "The transition to proof-of-stake has created new opportunities for passive income generation.",
			Source:      "BlockchainDaily",
			PublishedAt: now.Add(-4 * time.Hour),
			Sentiment:   "positive",
		},
		{
			Title:       "Regulatory Clarity Boosts Altcoin Market Confidence",
			Description: "Recent regulatory developments provide clearer guidelines for cryptocurrency operations.",
			Source:      "CryptoRegulatory",
			PublishedAt: now.Add(-6 * time.Hour),
			Sentiment:   "positive",
		},
	}
}

type educationTopic struct {
	key  string
	text string
}

var educationTopics = []educationTopic{
	{"blockchain", "🔗 **Blockchain Technology**\n\nA blockchain is a distributed ledger that maintains a continuously growing list of records (blocks) linked using cryptography. Each block contains a hash of the previous block, timestamp, and transaction data.\n\n**Key Features:**\n• Decentralization\n• Immutability\n• Transparency\n• Security through cryptography"},
	{"defi", "🏦 **Decentralized Finance (DeFi)**\n\nDeFi refers to financial services built on blockchain networks, primarily Ethereum. It aims to recreate traditional financial systems without intermediaries.\n\n**Popular DeFi Applications:**\n• Lending & Borrowing (Aave, Compound)\n• Decentralized Exchanges (Uniswap, SushiSwap)\n• Yield Farming\n• Liquidity Mining"},
	{"nft", "🎨 **Non-Fungible Tokens (NFTs)**\n\nNFTs are unique digital assets that represent ownership of specific items or content on the blockchain.\n\n**Use Cases:**\n• Digital Art\n• Gaming Assets\n• Virtual Real Estate\n• Collectibles\n• Identity Verification"},
	{"mining", "⛏️ **Cryptocurrency Mining**\n\nMining is the process of validating transactions and adding them to the blockchain while earning rewards.\n\n**Types:**\n• Proof of Work (Bitcoin)\n• Proof of Stake (Ethereum)\n• Other consensus mechanisms"},
	{"staking", "🥩 **Staking**\n\nStaking means locking coins to help secure a Proof of Stake network. Validators are chosen to produce blocks in proportion to their stake and earn rewards for honest participation.\n\n**Things to Know:**\n• Rewards vary by network\n• Staked funds may have lock-up periods\n• Misbehaving validators can be slashed"},
	{"wallet", "🔒 **Crypto Wallets**\n\nA wallet stores the private keys that control your coins. Whoever holds the keys controls the funds.\n\n**Wallet Types:**\n• Hardware wallets (most secure)\n• Software and mobile wallets\n• Exchange custodial wallets\n\n**Golden Rule:** never share your seed phrase."},
}

var insights = []string{
	"Did you know? Proof-of-Stake cryptocurrencies typically use 99% less energy than Bitcoin! 🌱",
	"Market cap matters! Higher market cap usually means more stability but potentially lower growth rates. 📊",
	"Always look at both price trends AND sustainability for long-term success! 🎯",
	"The crypto market is highly volatile - never invest more than you can afford to lose! ⚠️",
	"Diversification is key! Don't put all your eggs in one crypto basket. 🥚",
}
