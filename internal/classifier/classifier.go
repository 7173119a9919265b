package classifier

import (
	"regexp"
	"strings"
)

// Intent is a classification tag describing what a query asks for
type Intent string

const (
	IntentPrice          Intent = "price"
	IntentMarketAnalysis Intent = "market-analysis"
	IntentSustainability Intent = "sustainability"
	IntentInvestment     Intent = "investment"
	IntentComparison     Intent = "comparison"
	IntentTechnical      Intent = "technical"
	IntentNews           Intent = "news"
	IntentEducation      Intent = "education"
	IntentGreeting       Intent = "greeting"
	IntentFarewell       Intent = "farewell"
	IntentThanks         Intent = "thanks"
	IntentHelp           Intent = "help"
	IntentCapabilities   Intent = "capabilities"
	IntentGeneral        Intent = "general"
)

// Complexity grades a query by length, coin mentions and matched intents
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Rule associates an intent with the patterns that select it
type Rule struct {
	Intent   Intent
	Patterns []*regexp.Regexp
}

// Matches reports whether any pattern matches the lowercased query
func (r Rule) Matches(lowered string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(lowered) {
			return true
		}
	}
	return false
}

// Classification is the result of classifying one query
type Classification struct {
	Intents        []Intent `json:"intents"`
	Conversational bool     `json:"conversational"`
	CryptoRelated  bool     `json:"crypto_related"`
	Coins          []string `json:"coins"`
}

// Primary returns the first matched intent
func (c Classification) Primary() Intent {
	if len(c.Intents) == 0 {
		return IntentGeneral
	}
	return c.Intents[0]
}

// Has reports whether intent was matched
func (c Classification) Has(intent Intent) bool {
	for _, i := range c.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// alias maps the patterns naming a coin to its canonical name
type alias struct {
	name    string
	pattern *regexp.Regexp
}

// Classifier maps free text to intents with ordered rule tables. It holds
// no state and is safe for concurrent use.
type Classifier struct {
	conversational []Rule
	domain         []Rule
	cryptoKeywords *regexp.Regexp
	aliases        []alias

	openingGreeting *regexp.Regexp
	requestWords    *regexp.Regexp
}

// New creates a classifier with the built-in rule tables
func New() *Classifier {
	return &Classifier{
		conversational: conversationalRules(),
		domain:         domainRules(),
		cryptoKeywords: regexp.MustCompile(`\b(crypto|cryptocurrenc|coin|token|blockchain|defi|nfts?\b|mining|miner|staking|stake|wallet|market|price|invest|trad(e|ing)|exchange|altcoin|portfolio|sustainab|eco-?friendly|hodl|bull|bear|satoshi|web3|dex\b|consensus|proof of (work|stake)|rsi\b|macd\b|halving)`),
		aliases:        aliasTable(),

		openingGreeting: regexp.MustCompile(`^(hi|hello|hey|hiya|howdy|greetings|good (morning|afternoon|evening|day))\b[^?\d]*$`),
		requestWords:    regexp.MustCompile(`\b(what|why|when|where|which|who|can|could|should|would|tell|show|explain|give|calculate)\b`),
	}
}

// Classify evaluates conversational rules first and short-circuits on a
// match. Otherwise the crypto relevance gate decides whether the domain
// rules run at all.
func (c *Classifier) Classify(query string) Classification {
	lowered := strings.ToLower(strings.TrimSpace(query))

	var intents []Intent
	for _, rule := range c.conversational {
		if rule.Matches(lowered) {
			intents = append(intents, rule.Intent)
		}
	}
	if len(intents) > 0 {
		return Classification{Intents: intents, Conversational: true}
	}

	coins := c.extract(lowered)
	cryptoRelated := c.isCryptoRelated(lowered, coins)

	// "Hey, good morning!" greets; "hey, show me bitcoin" does not
	if !cryptoRelated && c.openingGreeting.MatchString(lowered) && !c.requestWords.MatchString(lowered) {
		return Classification{Intents: []Intent{IntentGreeting}, Conversational: true}
	}

	if !cryptoRelated {
		return Classification{Intents: []Intent{IntentGeneral}}
	}

	for _, rule := range c.domain {
		if rule.Matches(lowered) {
			intents = append(intents, rule.Intent)
		}
	}
	if len(intents) == 0 {
		intents = []Intent{IntentGeneral}
	}

	return Classification{
		Intents:       intents,
		CryptoRelated: true,
		Coins:         coins,
	}
}

// IsCryptoRelated reports whether the query mentions a coin or any crypto
// keyword
func (c *Classifier) IsCryptoRelated(query string) bool {
	lowered := strings.ToLower(query)
	return c.isCryptoRelated(lowered, c.extract(lowered))
}

func (c *Classifier) isCryptoRelated(lowered string, coins []string) bool {
	return len(coins) > 0 || c.cryptoKeywords.MatchString(lowered)
}

// ExtractCryptoName returns the first coin named in the query, in alias
// table order
func (c *Classifier) ExtractCryptoName(query string) (string, bool) {
	lowered := strings.ToLower(query)
	for _, a := range c.aliases {
		if a.pattern.MatchString(lowered) {
			return a.name, true
		}
	}
	return "", false
}

// ExtractCryptoNames returns every coin named in the query, in alias table
// order
func (c *Classifier) ExtractCryptoNames(query string) []string {
	return c.extract(strings.ToLower(query))
}

func (c *Classifier) extract(lowered string) []string {
	var names []string
	for _, a := range c.aliases {
		if a.pattern.MatchString(lowered) {
			names = append(names, a.name)
		}
	}
	return names
}

// QueryComplexity grades a query; it only tunes the reply delay
func (c *Classifier) QueryComplexity(query string) Complexity {
	words := len(strings.Fields(query))
	coins := len(c.ExtractCryptoNames(query))
	intents := len(c.Classify(query).Intents)

	switch {
	case words < 5 && coins <= 1 && intents <= 1:
		return ComplexitySimple
	case words < 15 && coins <= 2 && intents <= 2:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

func rule(intent Intent, patterns ...string) Rule {
	r := Rule{Intent: intent}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile(p))
	}
	return r
}

// Greetings and help requests here only count when they are the whole
// message so that "hi, what's the BTC price?" still reaches the price
// handler. Classify also accepts chattier openers with no request in them.
func conversationalRules() []Rule {
	return []Rule{
		rule(IntentGreeting,
			`^(hi|hello|hey|hiya|howdy|greetings|yo|sup)( there| again| buddy| cryptobuddy)?\W*$`,
			`^good (morning|afternoon|evening|day)\W*$`,
			`^(hi|hello|hey)\W+how are you\W*$`,
			`^what'?s up\W*$`,
		),
		rule(IntentFarewell,
			`^(bye|goodbye|good bye|see you|see ya|farewell|cya|later|quit|exit)\b`,
			`\b(goodbye|bye for now|see you later|talk to you later)\b`,
			`\bgood ?night\b`,
		),
		rule(IntentThanks,
			`\b(thanks|thank you|thank u|thx|ty|cheers|appreciate it)\b`,
		),
		rule(IntentHelp,
			`^(help|commands|menu|\?)\W*$`,
			`\bwhat can i ask\b`,
			`\bhow do i use (you|this)\b`,
			`\b(show|list)( me)?( the)? commands\b`,
		),
		rule(IntentCapabilities,
			`\bwhat can you do\b`,
			`\bwho are you\b`,
			`\bwhat are you\b`,
			`\byour (features|capabilities|abilities)\b`,
			`\bwhat do you know\b`,
		),
	}
}

// domainRules is ordered: handlers dispatch on the first intent matched
func domainRules() []Rule {
	return []Rule{
		rule(IntentPrice,
			`\bprices?\b`,
			`\bcosts?\b`,
			`\bworth\b`,
			`\bvalue\b`,
			`\btrading (at|for)\b`,
			`\bhow much is\b`,
			`\bcurrent(ly)?\b`,
		),
		rule(IntentMarketAnalysis,
			`\bmarkets?\b`,
			`\bmarket ?cap\b`,
			`\bvolume\b`,
			`\btrend(s|ing)?\b`,
			`\banalysis\b`,
			`\bperformance\b`,
			`\bdominance\b`,
		),
		rule(IntentSustainability,
			`sustainab`,
			`\beco\b`,
			`\beco-?friendly\b`,
			`\bgreen(er|est)?\b`,
			`environment`,
			`\benergy\b`,
			`\bcarbon\b`,
			`\bclimate\b`,
		),
		rule(IntentInvestment,
			`\binvest`,
			`\bbuy\b`,
			`\bsell\b`,
			`\bportfolio\b`,
			`\bprofit`,
			`\bbest\b`,
			`\brecommend`,
			`\bshould i\b`,
		),
		rule(IntentComparison,
			`\bcompare`,
			`\bvs\b`,
			`\bversus\b`,
			`\bdifference\b`,
			`\bbetter\b`,
			`\bwhich\b`,
		),
		rule(IntentTechnical,
			`\btechnical\b`,
			`\bcharts?\b`,
			`\bsupport\b`,
			`\bresistance\b`,
			`\brsi\b`,
			`\bmacd\b`,
			`\bfibonacci\b`,
			`\bindicators?\b`,
		),
		rule(IntentNews,
			`\bnews\b`,
			`\blatest\b`,
			`\bupdates?\b`,
			`\bhappening\b`,
			`\brecent\b`,
			`\btoday\b`,
		),
		rule(IntentEducation,
			`\bwhat is\b`,
			`\bhow does\b`,
			`\bexplain`,
			`\blearn`,
			`\bunderstand`,
			`\bblockchain\b`,
			`\bdefi\b`,
			`\bnfts?\b`,
			`\bmining\b`,
			`\bstaking\b`,
			`\bwallets?\b`,
		),
	}
}

// aliasTable is ordered; extraction results follow this order. Tickers
// are matched on word boundaries so "sol" does not match "solution".
func aliasTable() []alias {
	table := []struct {
		name     string
		patterns string
	}{
		{"bitcoin", `\b(bitcoins?|bit coin|btc)\b`},
		{"ethereum", `\b(ethereum|ether|eth)\b`},
		{"cardano", `\b(cardano|ada)\b`},
		{"solana", `\b(solana|sol)\b`},
		{"polkadot", `\b(polkadot|dot)\b`},
		{"chainlink", `\b(chainlink|link)\b`},
		{"polygon", `\b(polygon|matic)\b`},
		{"avalanche", `\b(avalanche|avax)\b`},
		{"binance", `\b(binance coin|binance|bnb)\b`},
		{"ripple", `\b(ripple|xrp)\b`},
		{"dogecoin", `\b(dogecoin|doge)\b`},
		{"litecoin", `\b(litecoin|ltc)\b`},
	}

	aliases := make([]alias, 0, len(table))
	for _, entry := range table {
		aliases = append(aliases, alias{name: entry.name, pattern: regexp.MustCompile(entry.patterns)})
	}
	return aliases
}
