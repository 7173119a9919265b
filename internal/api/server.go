package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/chat"
	"github.com/cryptobuddy/internal/responder"
	"github.com/cryptobuddy/internal/session"
	"github.com/cryptobuddy/internal/websocket"
	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/logger"
	"github.com/cryptobuddy/pkg/models"
)

// TurnHandler answers one chat turn
type TurnHandler interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// PriceHistory serves recorded market snapshots
type PriceHistory interface {
	PriceHistory(ctx context.Context, coinID string, from, to time.Time) ([]models.PricePoint, error)
}

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies are the components the API serves
type Dependencies struct {
	Market   responder.MarketData
	Sessions *session.Store
	Turns    TurnHandler
	Sockets  *websocket.Manager
	History  PriceHistory // nil when InfluxDB is disabled
	Checks   map[string]HealthCheck

	// CacheSize reports the in-memory market cache size, nil for Redis
	CacheSize func() int
}

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	market   responder.MarketData
	sessions *session.Store
	turns    TurnHandler
	sockets  *websocket.Manager
	history  PriceHistory
	checks   map[string]HealthCheck

	cacheSize func() int
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		market:   deps.Market,
		sessions: deps.Sessions,
		turns:    deps.Turns,
		sockets:  deps.Sockets,
		history:  deps.History,
		checks:   deps.Checks,

		cacheSize: deps.CacheSize,
	}

	s.setupRoutes()

	return s
}

// Handler returns the routed handler. CORS wraps the router so preflight
// requests are answered before route matching.
func (s *Server) Handler() http.Handler {
	if s.cfg.Security.CORSEnabled {
		return s.corsMiddleware(s.router)
	}
	return s.router
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Authentication
	apiV1.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	apiV1.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	apiV1.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	apiV1.HandleFunc("/auth/me", s.handleMe).Methods("GET")

	// Chat
	apiV1.HandleFunc("/chat", s.handleChat).Methods("POST")
	apiV1.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	apiV1.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	apiV1.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	apiV1.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Market data
	apiV1.HandleFunc("/market/top", s.handleTop).Methods("GET")
	apiV1.HandleFunc("/market/global", s.handleGlobal).Methods("GET")
	apiV1.HandleFunc("/market/trending", s.handleTrending).Methods("GET")
	apiV1.HandleFunc("/market/search", s.handleSearch).Methods("GET")
	apiV1.HandleFunc("/market/coins/{id}", s.handleCoin).Methods("GET")
	apiV1.HandleFunc("/market/coins/{id}/history", s.handleHistory).Methods("GET")
	apiV1.HandleFunc("/facts", s.handleFacts).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, use a different port: --port %d", s.cfg.Server.Port, s.cfg.Server.Port+1)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	if s.sockets != nil {
		s.sockets.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// handleHealth reports the status of every configured backing service
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	services := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		services[name] = "healthy"
	}

	clients := 0
	if s.sockets != nil {
		clients = s.sockets.ConnectionCount()
	}

	body := map[string]interface{}{
		"status":            status,
		"services":          services,
		"websocket_clients": clients,
		"timestamp":         time.Now().Unix(),
	}
	if s.cacheSize != nil {
		body["cache_entries"] = s.cacheSize()
	}

	writeJSON(w, http.StatusOK, body)
}

// handleWebSocket upgrades to the streaming chat protocol
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.sockets == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket chat unavailable")
		return
	}
	s.sockets.HandleWebSocket(w, r)
}
