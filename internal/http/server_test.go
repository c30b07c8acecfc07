package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/aggregate"
	"gastos/internal/auth"
	"gastos/internal/core"
	"gastos/internal/insight"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/realtime"
	"gastos/internal/services"
	"gastos/internal/storage/memory"
)

const testSecret = "test-secret-with-at-least-32-bytes!!"

var fixedNow = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *Server
	svc      *services.ExpenseService
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	agg := aggregate.New(aggregate.WithClock(func() time.Time { return fixedNow }))
	svc := services.NewExpenseService(memory.New(), agg, nil)
	v, err := auth.NewVerifier(testSecret, "", "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	opts.Service = svc
	opts.Verifier = v
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, svc: svc, verifier: v}
}

func (e *testEnv) token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := e.verifier.Issue(owner, "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, owner))
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, owner, amount string, c core.Category, desc, date string) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	exp, err := e.svc.CreateExpense(context.Background(), owner, services.NewExpense{
		Amount:      decimal.RequireFromString(amount),
		Category:    c,
		Description: desc,
		Date:        d,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return exp
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: security headers not applied", path)
		}
	}

	body := decode[map[string]any](t, env.do(t, http.MethodGet, "/readyz", "", ""))
	checks := body["checks"].(map[string]any)
	if checks["store"] != "ok" || checks["insights"] != "disabled" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/v1/expenses", "alice",
		`{"amount":"10","category":"COMIDA","date":"2024-03-01"}`)

	rr := env.do(t, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "expenses_created_total 1") {
		t.Fatalf("metrics missing created counter:\n%s", rr.Body.String())
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/api/v1/categories", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decode[struct {
		Categories []categoryView `json:"categories"`
	}](t, rr)

	want := []string{"FACTURAS", "HIPOTECA", "COMIDA", "OCIO", "EXTRAS"}
	if len(body.Categories) != len(want) {
		t.Fatalf("got %d categories", len(body.Categories))
	}
	for i, c := range body.Categories {
		if c.Code != want[i] || c.Label == "" || c.Color == "" {
			t.Errorf("category %d = %+v", i, c)
		}
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/api/v1/expenses", "/api/v1/dashboard", "/api/v1/insights"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/v1/expenses", "alice",
		`{"amount":"12,5","category":"comida","description":"  Mercado ","date":"2024-03-05"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[expenseView](t, rr)
	if got.Amount != "12.50" || got.AmountFormatted != "12,50 €" {
		t.Errorf("amount = %q / %q", got.Amount, got.AmountFormatted)
	}
	if got.Category != "COMIDA" || got.CategoryLabel != "Comida" {
		t.Errorf("category = %q / %q", got.Category, got.CategoryLabel)
	}
	if got.Description != "Mercado" || got.Date != "2024-03-05" {
		t.Errorf("unexpected expense %+v", got)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/expenses/"+got.ID {
		t.Errorf("Location = %q", loc)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/expenses", "alice",
		"amount=7&category=OCIO&date=2024-03-06")
	if rr.Code != http.StatusCreated {
		t.Fatalf("form body: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFields []string
	}{
		{
			name:       "missing fields",
			body:       `{"description":"x"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"amount", "category", "date"},
		},
		{
			name:       "zero amount",
			body:       `{"amount":"0","category":"OCIO","date":"2024-03-01"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"amount"},
		},
		{
			name:       "unknown category",
			body:       `{"amount":"5","category":"VIAJES","date":"2024-03-01"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"category"},
		},
		{
			name:       "bad date",
			body:       `{"amount":"5","category":"OCIO","date":"01/03/2024"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"date"},
		},
		{
			name:       "description too long",
			body:       `{"amount":"5","category":"OCIO","date":"2024-03-01","description":"` + strings.Repeat("ñ", 201) + `"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"description"},
		},
		{
			name:       "malformed json",
			body:       `{"amount":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/expenses", "alice", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			fields := map[string]bool{}
			for _, d := range body.Details {
				fields[d.Field] = true
			}
			for _, f := range tt.wantFields {
				if !fields[f] {
					t.Errorf("missing detail for %q in %+v", f, body.Details)
				}
			}
		})
	}

	list, _ := env.svc.ListExpenses(context.Background(), "alice", services.ListFilter{})
	if len(list) != 0 {
		t.Fatalf("rejected requests must not store anything, have %d", len(list))
	}
}

func TestListExpenses(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seed(t, "alice", "100", core.Food, "Mercadona", "2024-02-10")
	env.seed(t, "alice", "50", core.Leisure, "Concierto", "2024-03-20")
	env.seed(t, "alice", "20", core.Food, "Fruteria", "2024-03-02")
	env.seed(t, "bob", "999", core.Food, "Ajeno", "2024-03-02")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all newest first", "", []string{"Concierto", "Fruteria", "Mercadona"}},
		{"month filter", "?month=2&year=2024", []string{"Concierto", "Fruteria"}},
		{"search by description", "?q=MERCA", []string{"Mercadona"}},
		{"search by category label", "?q=ocio", []string{"Concierto"}},
		{"search within month", "?q=comida&month=1", []string{"Mercadona"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/v1/expenses"+tt.query, "alice", "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			got := decode[expenseListView](t, rr)
			if got.Count != len(tt.want) {
				t.Fatalf("got %d expenses, want %d: %+v", got.Count, len(tt.want), got.Expenses)
			}
			for i, e := range got.Expenses {
				if e.Description != tt.want[i] {
					t.Errorf("expense %d = %q, want %q", i, e.Description, tt.want[i])
				}
			}
		})
	}

	rr := env.do(t, http.MethodGet, "/api/v1/expenses?month=12", "alice", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid month: status=%d", rr.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t, Options{})
	exp := env.seed(t, "alice", "10", core.Extras, "Regalo", "2024-03-01")

	if rr := env.do(t, http.MethodDelete, "/api/v1/expenses/"+exp.ID, "bob", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("other owner: status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/expenses/not-a-uuid", "alice", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("bad id: status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/expenses/"+exp.ID, "alice", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/expenses/"+exp.ID, "alice", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d", rr.Code)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seed(t, "alice", "100", core.Food, "Compra", "2024-02-10")
	env.seed(t, "alice", "100", core.Food, "Compra", "2024-03-05")
	env.seed(t, "alice", "50", core.Leisure, "Concierto", "2024-03-20")

	// No parameters: the current month of the fixed clock, March 2024.
	rr := env.do(t, http.MethodGet, "/api/v1/dashboard", "alice", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	d := decode[dashboardView](t, rr)

	if d.Month.Month != 2 || d.Month.Year != 2024 || d.Month.Label != "Marzo" {
		t.Errorf("month = %+v", d.Month)
	}
	if d.Total != "150.00" || d.TotalFormatted != "150,00 €" || d.Count != 2 {
		t.Errorf("total = %q %q count=%d", d.Total, d.TotalFormatted, d.Count)
	}
	if len(d.Breakdown.Categories) != 2 {
		t.Fatalf("breakdown = %+v", d.Breakdown.Categories)
	}
	food := d.Breakdown.Categories[0]
	if food.Category != "COMIDA" || food.Amount != "100.00" || food.Share.String() != "66.7" {
		t.Errorf("food entry = %+v", food)
	}

	c := d.Comparison
	if c.Previous != "100.00" || c.Delta != "50.00" || c.Percentage.String() != "50.0" || c.Trend != "up" {
		t.Errorf("comparison = %+v", c)
	}
	if c.PreviousMonth.Month != 1 {
		t.Errorf("previous month = %+v", c.PreviousMonth)
	}

	if len(d.Trend.Months) != aggregate.TrailingMonths {
		t.Fatalf("trend has %d points", len(d.Trend.Months))
	}
	last := d.Trend.Months[len(d.Trend.Months)-1]
	if last.Month.Key != "2024-03" || last.Total != "150.00" {
		t.Errorf("last trend point = %+v", last)
	}
}

func TestDashboardViews(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seed(t, "alice", "30", core.Bills, "Luz", "2024-01-05")

	rr := env.do(t, http.MethodGet, "/api/v1/dashboard/breakdown?month=0&year=2024", "alice", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("breakdown status=%d", rr.Code)
	}
	b := decode[breakdownView](t, rr)
	if b.Total != "30.00" || len(b.Categories) != 1 || b.Categories[0].Share.String() != "100.0" {
		t.Errorf("breakdown = %+v", b)
	}

	// January compares against December of the year before.
	rr = env.do(t, http.MethodGet, "/api/v1/dashboard/comparison?month=0&year=2024", "alice", "")
	c := decode[comparisonView](t, rr)
	if c.PreviousMonth.Key != "2023-12" || c.Percentage.String() != "0.0" || c.Trend != "up" {
		t.Errorf("comparison = %+v", c)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/dashboard/trend", "alice", "")
	tr := decode[trendView](t, rr)
	if len(tr.Months) != aggregate.TrailingMonths || tr.Months[0].Month.Key != "2023-10" {
		t.Errorf("trend = %+v", tr.Months)
	}

	for _, q := range []string{"?month=12", "?month=-1", "?month=abc", "?year=0"} {
		rr := env.do(t, http.MethodGet, "/api/v1/dashboard"+q, "alice", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestInsightWithoutProvider(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/api/v1/insights", "alice", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	in := decode[insightView](t, rr)
	if in.Source != string(insight.SourceEmpty) || in.Text != insight.NoExpensesMessage {
		t.Errorf("empty month insight = %+v", in)
	}

	env.seed(t, "alice", "40", core.Leisure, "Cine", "2024-03-02")
	rr = env.do(t, http.MethodPost, "/api/v1/insights/refresh", "alice", "")
	in = decode[insightView](t, rr)
	if in.Source != string(insight.SourceFallback) || in.Text != insight.MissingKeyMessage {
		t.Errorf("fallback insight = %+v", in)
	}
	if in.Month.Key != "2024-03" {
		t.Errorf("insight month = %+v", in.Month)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: ratelimit.Config{
		RequestsPerMinute: 1,
		CleanupInterval:   time.Hour,
		StaleAfter:        time.Hour,
	}})
	body := `{"amount":"1","category":"OCIO","date":"2024-03-01"}`

	if rr := env.do(t, http.MethodPost, "/api/v1/expenses", "alice", body); rr.Code != http.StatusCreated {
		t.Fatalf("first write: status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/v1/expenses", "alice", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}
	if decode[ErrorBody](t, rr).Error == "" {
		t.Errorf("expected JSON error body")
	}

	for i := 0; i < 3; i++ {
		if rr := env.do(t, http.MethodGet, "/api/v1/expenses", "alice", ""); rr.Code != http.StatusOK {
			t.Fatalf("reads must not be limited, status=%d", rr.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodPut, "/api/v1/expenses", "alice", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestWebsocketRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{Hub: realtime.NewHub(nil, nil)})
	if rr := env.do(t, http.MethodGet, "/ws", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	noHub := newTestEnv(t, Options{})
	if rr := noHub.do(t, http.MethodGet, "/ws", "alice", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("without a hub /ws must not exist, got %d", rr.Code)
	}
}
