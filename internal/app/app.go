package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/api"
	"github.com/cryptobuddy/internal/cache"
	"github.com/cryptobuddy/internal/chat"
	"github.com/cryptobuddy/internal/classifier"
	"github.com/cryptobuddy/internal/database"
	"github.com/cryptobuddy/internal/external"
	"github.com/cryptobuddy/internal/messaging"
	"github.com/cryptobuddy/internal/responder"
	"github.com/cryptobuddy/internal/services"
	"github.com/cryptobuddy/internal/session"
	"github.com/cryptobuddy/internal/storage"
	"github.com/cryptobuddy/internal/websocket"
	"github.com/cryptobuddy/pkg/config"
)

// cacheRetention is how long Redis keeps market entries past their TTL as
// stale fallbacks
const cacheRetention = 24 * time.Hour

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Backing services, nil when not configured
	redis  *cache.RedisClient
	mysql  *database.MySQLClient
	influx *database.InfluxRecorder
	nats   *messaging.NATSClient
	sqlite *storage.SQLiteStore

	// Core components
	kv           storage.KV
	memCache     *cache.MemoryCache
	market       *external.CoinGeckoClient
	classifier   *classifier.Classifier
	generator    *responder.Generator
	sessions     *session.Store
	orchestrator *chat.Orchestrator
	sockets      *websocket.Manager
	apiServer    *api.Server
	poller       *services.SnapshotPoller
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize connects the configured backends and wires every component
func (a *App) Initialize() error {
	if err := a.initializeBackends(); err != nil {
		a.closeConnections()
		return fmt.Errorf("failed to initialize backends: %w", err)
	}

	if err := a.initializeStorage(); err != nil {
		a.closeConnections()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.initializeMarket()
	a.initializeChat()
	a.initializeAPIServer()

	return nil
}

// Start starts serving HTTP and WebSocket traffic
func (a *App) Start() error {
	errCh := make(chan error, 1)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start API server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	if a.poller != nil {
		if err := a.poller.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start snapshot poller: %w", err)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"address": a.cfg.GetServerAddr(),
		"storage": a.cfg.Storage.Backend,
		"cache":   a.cfg.CoinGecko.CacheBackend,
	}).Info("CryptoBuddy started")

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if a.poller != nil {
		if err := a.poller.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping snapshot poller")
		}
	}

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	a.closeConnections()

	a.logger.Info("Application stopped successfully")
	return nil
}

// Close releases backend connections without touching the HTTP server
func (a *App) Close() {
	a.cancel()
	a.closeConnections()
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

// Orchestrator returns the conversation orchestrator
func (a *App) Orchestrator() *chat.Orchestrator {
	return a.orchestrator
}

// Market returns the market data client
func (a *App) Market() *external.CoinGeckoClient {
	return a.market
}

// Sessions returns the session store
func (a *App) Sessions() *session.Store {
	return a.sessions
}

// Influx returns the snapshot recorder, nil when InfluxDB is disabled
func (a *App) Influx() *database.InfluxRecorder {
	return a.influx
}

// NATS returns the turn event client, nil when NATS is disabled
func (a *App) NATS() *messaging.NATSClient {
	return a.nats
}

func (a *App) initializeBackends() error {
	if a.cfg.CoinGecko.CacheBackend == "redis" || a.cfg.Storage.Backend == "redis" {
		redisClient, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.redis = redisClient
	}

	if a.cfg.Storage.Backend == "mysql" {
		mysqlClient, err := database.NewMySQLClient(&a.cfg.MySQL, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		a.mysql = mysqlClient
	}

	if a.cfg.InfluxDB.Enabled {
		a.influx = database.NewInfluxRecorder(&a.cfg.InfluxDB, a.logger)
		if err := a.influx.Health(a.ctx); err != nil {
			return fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
	}

	if a.cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nats = natsClient
	}

	return nil
}

func (a *App) initializeStorage() error {
	switch a.cfg.Storage.Backend {
	case "memory":
		a.kv = storage.NewMemoryStore()
	case "sqlite":
		store, err := storage.NewSQLiteStore(a.cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		a.sqlite = store
		a.kv = store
	case "redis":
		a.kv = storage.NewRedisStore(a.redis.Client(), a.cfg.Chat.Namespace)
	case "mysql":
		if _, err := a.mysql.Migrate(a.ctx, false); err != nil {
			return err
		}
		a.kv = storage.NewMySQLStore(a.mysql.DB())
	default:
		return fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}

	a.sessions = session.NewStore(a.kv, a.cfg.Chat.Namespace, a.logger)
	return nil
}

func (a *App) initializeMarket() {
	var store cache.Store
	if a.cfg.CoinGecko.CacheBackend == "redis" {
		store = cache.NewRedisCache(a.redis.Client(), a.cfg.Chat.Namespace, cacheRetention)
	} else {
		a.memCache = cache.NewMemoryCache()
		store = a.memCache
	}

	var opts []external.Option
	if a.influx != nil {
		opts = append(opts, external.WithSnapshotSink(a.influx))
	}

	a.market = external.NewCoinGeckoClient(&a.cfg.CoinGecko, store, a.logger, opts...)

	if a.influx != nil {
		a.poller = services.NewSnapshotPoller(a.market, a.cfg.InfluxDB.SnapshotInterval, a.cfg.InfluxDB.SnapshotLimit, a.logger)
	}
}

func (a *App) initializeChat() {
	var completer responder.Completer
	if a.cfg.OpenAI.Enabled {
		completer = external.NewOpenAICompleter(&a.cfg.OpenAI, a.logger)
	}

	a.classifier = classifier.New()
	a.generator = responder.New(a.market, completer, a.logger)

	var publisher chat.Publisher = messaging.NopPublisher{}
	if a.nats != nil {
		publisher = a.nats
	}

	a.orchestrator = chat.NewOrchestrator(a.cfg.Chat, a.classifier, a.generator, a.sessions, a.logger,
		chat.WithPublisher(publisher))
}

func (a *App) initializeAPIServer() {
	a.sockets = websocket.NewManager(a.orchestrator, a.logger)

	checks := make(map[string]api.HealthCheck)
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.mysql != nil {
		checks["mysql"] = a.mysql.Health
	}
	if a.sqlite != nil {
		checks["sqlite"] = a.sqlite.Health
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx.Health
	}
	if nc := a.nats; nc != nil {
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	}

	deps := api.Dependencies{
		Market:   a.market,
		Sessions: a.sessions,
		Turns:    a.orchestrator,
		Sockets:  a.sockets,
		Checks:   checks,
	}
	if a.influx != nil {
		deps.History = a.influx
	}
	if a.memCache != nil {
		deps.CacheSize = a.memCache.Len
	}

	a.apiServer = api.NewServer(a.cfg, a.logger, deps)
}

func (a *App) closeConnections() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing NATS")
		}
		a.nats = nil
	}
	if a.influx != nil {
		a.influx.Close()
		a.influx = nil
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing SQLite")
		}
		a.sqlite = nil
	}
	if a.mysql != nil {
		if err := a.mysql.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing MySQL")
		}
		a.mysql = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing Redis")
		}
		a.redis = nil
	}
}
