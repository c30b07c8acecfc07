package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gastos/internal/auth"
	"gastos/internal/core"
	"gastos/internal/ports"
)

// withQueryOwner stands in for the JWT middleware.
func withQueryOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o := r.URL.Query().Get("owner"); o != "" {
			r = r.WithContext(auth.WithOwner(r.Context(), o))
		}
		next.ServeHTTP(w, r)
	})
}

func dial(t *testing.T, srv *httptest.Server, owner string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?owner=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", owner, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSessions(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Sessions() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d sessions, have %d", n, h.Sessions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyOwnerOnlyReachesOwner(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	srv := httptest.NewServer(withQueryOwner(hub))
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitSessions(t, hub, 2)

	err := hub.NotifyOwner("alice", ports.ExpenseChanged{
		Op:        ports.OpCreated,
		OwnerID:   "alice",
		ExpenseID: "e-1",
		Month:     core.MonthSelector{Year: 2024, Month: time.March},
	})
	if err != nil {
		t.Fatalf("NotifyOwner: %v", err)
	}

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := alice.ReadMessage()
	if err != nil {
		t.Fatalf("alice read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Message{Type: EventExpensesChanged, Op: "created", ExpenseID: "e-1", Month: "2024-03"}
	if msg != want {
		t.Fatalf("got %+v, want %+v", msg, want)
	}

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatalf("bob must not receive alice's notification")
	}
}

func TestServeHTTPRequiresOwner(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"no origin", "", nil, true},
		{"same host", "http://example.com", nil, true},
		{"listed", "https://app.example.org", []string{"https://app.example.org"}, true},
		{"wildcard", "https://evil.test", []string{"*"}, true},
		{"foreign", "https://evil.test", []string{"https://app.example.org"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originAllowed(r, tt.allowed); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotifyAfterClose(t *testing.T) {
	hub := NewHub(nil, nil)
	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := hub.NotifyOwner("alice", ports.ExpenseChanged{}); err != nil {
		t.Fatalf("notify after close should be a no-op, got %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
