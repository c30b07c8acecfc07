package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gastos/internal/core"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the store answers and the server can serve
// traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.svc.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.svc.InsightsEnabled() {
		checks["insights"] = "ok"
	} else {
		checks["insights"] = "disabled"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}
	if s.hub != nil {
		checks["websocket"] = map[string]any{
			"sessions": s.hub.Sessions(),
			"status":   "ok",
		}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	suspicious, blocked := s.detector.Stats()
	sessions := 0
	if s.hub != nil {
		sessions = s.hub.Sessions()
	}

	w.WriteHeader(http.StatusOK)

	// Prometheus text exposition format.
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_microseconds Average request duration\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP expenses_created_total Expenses created through the API\n")
	fmt.Fprintf(w, "# TYPE expenses_created_total counter\n")
	fmt.Fprintf(w, "expenses_created_total %d\n\n", s.expensesCreated.Load())

	fmt.Fprintf(w, "# HELP expenses_deleted_total Expenses deleted through the API\n")
	fmt.Fprintf(w, "# TYPE expenses_deleted_total counter\n")
	fmt.Fprintf(w, "expenses_deleted_total %d\n\n", s.expensesDeleted.Load())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", s.limiter.Hits())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", suspicious)

	fmt.Fprintf(w, "# HELP blocked_requests_total Suspicious requests rejected\n")
	fmt.Fprintf(w, "# TYPE blocked_requests_total counter\n")
	fmt.Fprintf(w, "blocked_requests_total %d\n\n", blocked)

	fmt.Fprintf(w, "# HELP websocket_sessions Open websocket sessions\n")
	fmt.Fprintf(w, "# TYPE websocket_sessions gauge\n")
	fmt.Fprintf(w, "websocket_sessions %d\n\n", sessions)

	if stats, ok := s.svc.DashboardCacheStats(); ok {
		fmt.Fprintf(w, "# HELP dashboard_cache_hits_total Dashboards served from the memo\n")
		fmt.Fprintf(w, "# TYPE dashboard_cache_hits_total counter\n")
		fmt.Fprintf(w, "dashboard_cache_hits_total %d\n\n", stats.Hits)

		fmt.Fprintf(w, "# HELP dashboard_cache_misses_total Dashboards computed from the store\n")
		fmt.Fprintf(w, "# TYPE dashboard_cache_misses_total counter\n")
		fmt.Fprintf(w, "dashboard_cache_misses_total %d\n\n", stats.Misses)

		fmt.Fprintf(w, "# HELP dashboard_cache_entries Dashboards held in the memo\n")
		fmt.Fprintf(w, "# TYPE dashboard_cache_entries gauge\n")
		fmt.Fprintf(w, "dashboard_cache_entries %d\n\n", stats.Size)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.Categories()
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryView(c))
	}
	NewJSONResponse().Body(map[string]any{"categories": out}).Write(w)
}
