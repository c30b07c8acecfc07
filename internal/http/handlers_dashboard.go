package http

import (
	"context"
	"errors"
	"net/http"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/log"
)

// dashboardFor resolves the month from the query and computes its
// dashboard. It writes the error response itself and reports false when
// the caller must stop.
func (s *Server) dashboardFor(w http.ResponseWriter, r *http.Request) (aggregate.Dashboard, bool) {
	sel, err := ParseMonthParams(r.URL.Query(), s.svc.CurrentMonth())
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return aggregate.Dashboard{}, false
	}

	d, err := s.svc.Dashboard(r.Context(), ownerOf(r), sel)
	if err != nil {
		if !errors.Is(err, core.ErrInvalidMonth) && !errors.Is(err, context.Canceled) {
			s.logFailure(r, "Failed to build dashboard", err, log.OpAggregate)
		}
		ErrorFromDomain(err).Write(w)
		return aggregate.Dashboard{}, false
	}
	return d, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(newDashboardView(d)).Write(w)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(newBreakdownView(d.Month, d.Breakdown)).Write(w)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(newComparisonView(d.Comparison)).Write(w)
}

// handleTrend serves the trailing series. It is anchored on the current
// month whatever month the query selects.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(newTrendView(d.Trailing, d.AnchoredAt)).Write(w)
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	s.writeInsight(w, r, false)
}

// handleRefreshInsight asks the provider again, bypassing the cache.
func (s *Server) handleRefreshInsight(w http.ResponseWriter, r *http.Request) {
	s.writeInsight(w, r, true)
}

func (s *Server) writeInsight(w http.ResponseWriter, r *http.Request, refresh bool) {
	sel, err := ParseMonthParams(r.URL.Query(), s.svc.CurrentMonth())
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}

	in, err := s.svc.Insight(r.Context(), ownerOf(r), sel, refresh)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logFailure(r, "Failed to generate insight", err, log.OpGenerate)
		}
		ErrorFromDomain(err).Write(w)
		return
	}
	NewJSONResponse().Body(newInsightView(sel, in)).Write(w)
}
