package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptobuddy/internal/app"
	"github.com/cryptobuddy/internal/external"
)

var (
	topLimit     int
	historyHours int
)

// marketCmd groups the market data lookups
var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Query live market data",
	Long: `Query CoinGecko market data through the cached client.

Examples:
  cryptobuddy market top --limit 20
  cryptobuddy market global
  cryptobuddy market trending
  cryptobuddy market search cardano
  cryptobuddy market coin bitcoin
  cryptobuddy market history bitcoin --hours 48   # requires InfluxDB`,
}

var marketTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the top coins by market cap",
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		coins, err := a.Market().GetTopCryptocurrencies(ctx, topLimit)
		if err != nil {
			return err
		}

		fmt.Printf("%-5s %-20s %-8s %-16s %-12s %-10s\n", "RANK", "NAME", "SYMBOL", "PRICE", "MARKET CAP", "24H")
		for _, c := range coins {
			fmt.Printf("%-5d %-20s %-8s %-16s %-12s %-10s\n",
				c.MarketCapRank, c.Name, strings.ToUpper(c.Symbol),
				external.FormatPrice(c.CurrentPrice),
				external.FormatMarketCap(c.MarketCap),
				external.FormatPercentage(c.PriceChange24h))
		}
		return nil
	}),
}

var marketGlobalCmd = &cobra.Command{
	Use:   "global",
	Short: "Show the global market snapshot",
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		g, err := a.Market().GetGlobalMarketData(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Total market cap:   %s (%s)\n", external.FormatMarketCap(g.TotalMarketCapUSD()), external.FormatPercentage(g.MarketCapChange24hUSD))
		fmt.Printf("24h volume:         %s\n", external.FormatVolume(g.TotalVolumeUSD()))
		fmt.Printf("BTC dominance:      %.1f%%\n", g.Dominance("btc"))
		fmt.Printf("ETH dominance:      %.1f%%\n", g.Dominance("eth"))
		fmt.Printf("Active currencies:  %d\n", g.ActiveCryptocurrencies)
		return nil
	}),
}

var marketTrendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show trending coins",
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		coins, err := a.Market().GetTrendingCryptocurrencies(ctx)
		if err != nil {
			return err
		}

		for i, c := range coins {
			fmt.Printf("%2d. %-20s %-8s rank %d\n", i+1, c.Name, strings.ToUpper(c.Symbol), c.MarketCapRank)
		}
		return nil
	}),
}

var marketSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search coins by name or symbol",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		coins, err := a.Market().SearchCryptocurrency(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Printf("Found %d coins\n", len(coins))
		for _, c := range coins {
			fmt.Printf("%-25s %-20s %-8s rank %d\n", c.ID, c.Name, strings.ToUpper(c.Symbol), c.MarketCapRank)
		}
		return nil
	}),
}

var marketCoinCmd = &cobra.Command{
	Use:   "coin [id]",
	Short: "Show details of one coin",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		c, err := a.Market().GetCryptocurrencyData(ctx, strings.ToLower(args[0]))
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s), rank #%d\n", c.Name, strings.ToUpper(c.Symbol), c.MarketCapRank)
		fmt.Printf("Price:       %s\n", external.FormatPrice(c.PriceUSD()))
		fmt.Printf("Market cap:  %s\n", external.FormatMarketCap(c.MarketCapUSD()))
		fmt.Printf("Volume 24h:  %s\n", external.FormatVolume(c.VolumeUSD()))
		fmt.Printf("Change:      24h %s  7d %s  30d %s\n",
			external.FormatPercentage(c.MarketData.PriceChange24h),
			external.FormatPercentage(c.MarketData.PriceChange7d),
			external.FormatPercentage(c.MarketData.PriceChange30d))
		return nil
	}),
}

var marketHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show recorded price snapshots from InfluxDB",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		if a.Influx() == nil {
			return fmt.Errorf("InfluxDB is disabled, set INFLUXDB_ENABLED=true")
		}

		to := time.Now()
		from := to.Add(-time.Duration(historyHours) * time.Hour)
		points, err := a.Influx().PriceHistory(ctx, strings.ToLower(args[0]), from, to)
		if err != nil {
			return err
		}

		for _, p := range points {
			fmt.Printf("%s  %s\n", p.Timestamp.Local().Format("2006-01-02 15:04"), external.FormatPrice(p.Price))
		}
		fmt.Printf("\nTotal: %d snapshots\n", len(points))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(marketCmd)

	marketCmd.AddCommand(marketTopCmd)
	marketCmd.AddCommand(marketGlobalCmd)
	marketCmd.AddCommand(marketTrendingCmd)
	marketCmd.AddCommand(marketSearchCmd)
	marketCmd.AddCommand(marketCoinCmd)
	marketCmd.AddCommand(marketHistoryCmd)

	marketTopCmd.Flags().IntVar(&topLimit, "limit", 10, "Number of coins")
	marketHistoryCmd.Flags().IntVar(&historyHours, "hours", 24, "Hours of history")
}

// withApp runs fn against an initialized application that is closed
// afterwards
func withApp(fn func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		if !verbose {
			setLevel(log, "warn")
		}

		application := app.New(cfg, log)
		if err := application.Initialize(); err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := context.WithTimeout(application.GetContext(), 30*time.Second)
		defer cancel()

		return fn(ctx, application, args)
	}
}
