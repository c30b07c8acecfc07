// Package realtime pushes ledger change notifications to an owner's open
// websocket sessions.
package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/olahol/melody"

	"gastos/internal/auth"
	"gastos/internal/ports"
)

const (
	ownerKey = "owner_id"

	// EventExpensesChanged is the only message type sent to clients.
	EventExpensesChanged = "expenses.changed"
)

// Message is the JSON frame sent after a create or delete.
type Message struct {
	Type      string `json:"type"`
	Op        string `json:"op"`
	ExpenseID string `json:"expense_id"`
	Month     string `json:"month"`
}

type Hub struct {
	m      *melody.Melody
	logger *slog.Logger
}

// NewHub configures a websocket hub. Upgrades are accepted from the
// request's own host and from allowedOrigins; "*" allows any origin.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	m := melody.New()
	m.Config.MaxMessageSize = 4096
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second
	m.Upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r, allowedOrigins)
	}

	h := &Hub{m: m, logger: logger}

	m.HandleConnect(func(s *melody.Session) {
		owner, _ := s.Get(ownerKey)
		h.logger.Debug("Websocket session opened", "owner_id", owner, "sessions", m.Len())
	})
	m.HandleDisconnect(func(s *melody.Session) {
		owner, _ := s.Get(ownerKey)
		h.logger.Debug("Websocket session closed", "owner_id", owner)
	})
	m.HandleError(func(s *melody.Session, err error) {
		owner, _ := s.Get(ownerKey)
		h.logger.Warn("Websocket error", "owner_id", owner, "error", err)
	})

	return h
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP upgrades an authenticated request. The owner comes from the
// request context set by auth.Verifier.Middleware.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.m.HandleRequestWithKeys(w, r, map[string]any{ownerKey: owner}); err != nil {
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", "owner_id", owner, "error", err)
	}
}

// NotifyOwner implements ports.Notifier. Only sessions of ownerID receive
// the message.
func (h *Hub) NotifyOwner(ownerID string, ev ports.ExpenseChanged) error {
	if h.m.IsClosed() {
		return nil
	}
	msg, err := json.Marshal(Message{
		Type:      EventExpensesChanged,
		Op:        string(ev.Op),
		ExpenseID: ev.ExpenseID,
		Month:     ev.Month.String(),
	})
	if err != nil {
		return err
	}
	err = h.m.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, ok := s.Get(ownerKey)
		return ok && id == ownerID
	})
	if errors.Is(err, melody.ErrClosed) {
		return nil
	}
	return err
}

// Sessions is the number of open sessions across all owners.
func (h *Hub) Sessions() int { return h.m.Len() }

func (h *Hub) Close() error {
	if h.m.IsClosed() {
		return nil
	}
	return h.m.Close()
}
