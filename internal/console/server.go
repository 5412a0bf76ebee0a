package console

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"botfeed/internal/bot"
	"botfeed/internal/config"
	"botfeed/internal/fx"
	"botfeed/internal/model"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	defaultRecent    = 20
)

// Source exposes the live entity states of an engine and the roster it was
// built with.
type Source[S, R any] interface {
	States() map[string]S
	Roster() []R
}

// PoolLedger exposes pool balances and their recent transactions.
type PoolLedger interface {
	Pools() []string
	Balance(poolID string) (decimal.Decimal, bool)
	Recent(poolID string, n int) []model.PoolTransaction
}

type poolView struct {
	ID      string                  `json:"id"`
	Balance decimal.Decimal         `json:"balance"`
	Recent  []model.PoolTransaction `json:"recent"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Server is the HTTP and websocket front of the feed.
type Server struct {
	logger     *slog.Logger
	bots       Source[bot.State, bot.Profile]
	fx         Source[fx.State, fx.Agent]
	pools      PoolLedger
	logHub     *hub[model.LogEntry]
	poolHub    *hub[model.PoolTransaction]
	upgrader   websocket.Upgrader
	corsOrigin string
}

// NewServer builds a console over the given sources. Any source may be nil.
func NewServer(logger *slog.Logger, cfg config.ServerConfig, bots Source[bot.State, bot.Profile], fxs Source[fx.State, fx.Agent], pools PoolLedger) *Server {
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		logger:     logger,
		bots:       bots,
		fx:         fxs,
		pools:      pools,
		logHub:     newHub[model.LogEntry](),
		poolHub:    newHub[model.PoolTransaction](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		corsOrigin: origin,
	}
}

// PublishLog forwards entry to every /ws/logs client.
func (s *Server) PublishLog(entry model.LogEntry) {
	s.logHub.Broadcast(entry)
}

// PublishPoolTransaction forwards tx to every /ws/pool client.
func (s *Server) PublishPoolTransaction(tx model.PoolTransaction) {
	s.poolHub.Broadcast(tx)
}

// Routes returns the console's handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/bots", s.withCORS(http.HandlerFunc(s.handleBots)))
	mux.Handle("/api/bots/roster", s.withCORS(http.HandlerFunc(s.handleBotRoster)))
	mux.Handle("/api/fx", s.withCORS(http.HandlerFunc(s.handleFX)))
	mux.Handle("/api/fx/roster", s.withCORS(http.HandlerFunc(s.handleFXRoster)))
	mux.Handle("/api/pools", s.withCORS(http.HandlerFunc(s.handlePools)))
	mux.Handle("/ws/logs", s.withCORS(http.HandlerFunc(s.handleLogStream)))
	mux.Handle("/ws/pool", s.withCORS(http.HandlerFunc(s.handlePoolStream)))
	return mux
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var states map[string]bot.State
	if s.bots != nil {
		states = s.bots.States()
	}
	writeJSON(w, http.StatusOK, sortedValues(states))
}

func (s *Server) handleFX(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var states map[string]fx.State
	if s.fx != nil {
		states = s.fx.States()
	}
	writeJSON(w, http.StatusOK, sortedValues(states))
}

func (s *Server) handleBotRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	roster := []bot.Profile{}
	if s.bots != nil {
		roster = append(roster, s.bots.Roster()...)
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) handleFXRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	roster := []fx.Agent{}
	if s.fx != nil {
		roster = append(roster, s.fx.Roster()...)
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := defaultRecent
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	views := []poolView{}
	if s.pools != nil {
		for _, id := range s.pools.Pools() {
			balance, _ := s.pools.Balance(id)
			views = append(views, poolView{ID: id, Balance: balance, Recent: s.pools.Recent(id, limit)})
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	sub := s.logHub.Subscribe(subscriberBuffer)
	defer s.logHub.Unsubscribe(sub)
	stream(s, w, r, "log", sub)
}

func (s *Server) handlePoolStream(w http.ResponseWriter, r *http.Request) {
	sub := s.poolHub.Subscribe(subscriberBuffer)
	defer s.poolHub.Unsubscribe(sub)
	stream(s, w, r, "pool", sub)
}

// stream copies sub to the websocket until either side goes away. The
// subscription is taken before the upgrade so nothing published after the
// handshake is missed.
func stream[T any](s *Server, w http.ResponseWriter, r *http.Request, kind string, sub *subscription[T]) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err, "path", r.URL.Path)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case value, ok := <-sub.ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundMessage{Type: kind, Data: value}); err != nil {
				s.logger.Debug("Websocket client gone", "error", err, "path", r.URL.Path)
				return
			}
		}
	}
}

func sortedValues[T any](states map[string]T) []T {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, states[id])
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
