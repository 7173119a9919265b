package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/logger"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cryptobuddy",
	Short: "Conversational crypto market assistant",
	Long: `CryptoBuddy answers natural-language questions about cryptocurrencies.

Features:
• Live prices, market overview and trending coins from CoinGecko
• Sustainability analysis and investment scoring
• Coin comparisons, education topics and a news digest
• Chat history per user over a pluggable key-value store
• REST and WebSocket APIs, with turn events published to NATS`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadRuntime loads .env and the environment configuration, then builds the
// logger. --verbose forces debug logging.
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	if _, err := config.LoadDotEnv(); err != nil && verbose {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}

func setLevel(log *logrus.Logger, level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(l)
	return nil
}
