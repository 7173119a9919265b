package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cryptobuddy/internal/responder"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	defaultHours    = 24
	maxHours        = 24 * 30
)

// coinIDPattern matches CoinGecko coin ids such as "bitcoin" or "matic-network"
var coinIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// coinID reads the {id} path variable, lowercased; ok is false for ids that
// cannot be a CoinGecko coin
func coinID(r *http.Request) (string, bool) {
	id := strings.ToLower(mux.Vars(r)["id"])
	return id, coinIDPattern.MatchString(id)
}

// queryInt reads a positive integer parameter, clamped to max
func queryInt(r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultTopLimit, maxTopLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	coins, err := s.market.GetTopCryptocurrencies(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coins": coins,
		"count": len(coins),
	})
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	global, err := s.market.GetGlobalMarketData(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, global)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := s.market.GetTrendingCryptocurrencies(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coins": trending,
		"count": len(trending),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	coins, err := s.market.SearchCryptocurrency(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coins": coins,
		"count": len(coins),
	})
}

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	id, ok := coinID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid coin id")
		return
	}

	coin, err := s.market.GetCryptocurrencyData(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coin)
}

// handleHistory serves recorded snapshots for a coin over the last ?hours=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "price history is not enabled")
		return
	}

	id, ok := coinID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid coin id")
		return
	}

	hours, ok := queryInt(r, "hours", defaultHours, maxHours)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be a positive integer")
		return
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	points, err := s.history.PriceHistory(r.Context(), id, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coin":   id,
		"from":   from.UTC(),
		"to":     to.UTC(),
		"points": points,
	})
}

// handleFacts serves the static coin fact table
func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	facts := responder.CryptoFacts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"facts": facts,
		"count": len(facts),
	})
}
