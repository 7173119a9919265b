package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptobuddy/internal/app"
)

var (
	serverPort int
	serverHost string
	logLevel   string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the CryptoBuddy API server",
	Long: `Start the CryptoBuddy API server.

This will start:
• REST API under /api/v1 (chat, sessions, auth, market data)
• WebSocket chat endpoint at /api/v1/ws
• CoinGecko client with memory or Redis cache
• Optional InfluxDB snapshot recording and NATS turn events

Examples:
  cryptobuddy server                    # Start with default settings
  cryptobuddy server --port 9090        # Start on custom port
  cryptobuddy server --log-level debug  # Enable debug logging`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides SERVER_PORT)")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "", "Server host (overrides SERVER_HOST)")
	serverCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" && !verbose {
		if err := setLevel(log, logLevel); err != nil {
			return err
		}
	}

	log.Info("🚀 Starting CryptoBuddy server")

	application := app.New(cfg, log)

	if err := application.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}

	if err := application.Start(); err != nil {
		log.WithError(err).Error("Failed to start application")
		application.Close()
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-interrupt
	log.WithField("signal", sig.String()).Info("🛑 Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if err := application.Stop(); err != nil {
			log.WithError(err).Error("❌ Application shutdown error")
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		log.Info("✅ Application shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn("⚠️ Shutdown timeout - forcing exit")
		os.Exit(1)
	}

	return nil
}
