package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/ports"
	"gastos/internal/services"
)

// handleListExpenses returns the caller's expenses, newest first. "q"
// filters by description or category label; "month" and "year" restrict
// the list to one month when either is present.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := services.ListFilter{Query: sanitizeInput(query.Get("q"))}

	if query.Has("month") || query.Has("year") {
		sel, err := ParseMonthParams(query, s.svc.CurrentMonth())
		if err != nil {
			ErrorFromDomain(err).Write(w)
			return
		}
		filter.Month = &sel
	}

	expenses, err := s.svc.ListExpenses(r.Context(), ownerOf(r), filter)
	if err != nil {
		s.logFailure(r, "Failed to list expenses", err, log.OpList)
		ErrorFromDomain(err).Write(w)
		return
	}
	NewJSONResponse().Body(newExpenseListView(expenses)).Write(w)
}

// handleCreateExpense accepts a JSON body or a url-encoded form with
// amount, category, description and date.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
			return
		}
		BadRequestError("malformed request body").Write(w)
		return
	}

	req := parseCreateExpense(parser)
	if details := ValidateRequest(req); len(details) > 0 {
		ValidationErrorResponse(details).Write(w)
		return
	}
	in, err := req.toNewExpense()
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}

	exp, err := s.svc.CreateExpense(r.Context(), ownerOf(r), in)
	if err != nil {
		if isDomainError(err) {
			ErrorFromDomain(err).Write(w)
			return
		}
		s.logFailure(r, "Failed to save expense", err, log.OpCreate)
		InternalServerError("could not save the expense").Write(w)
		return
	}
	s.expensesCreated.Add(1)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/expenses/"+exp.ID).
		Body(newExpenseView(exp)).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		NotFoundError("expense not found").Write(w)
		return
	}

	if err := s.svc.DeleteExpense(r.Context(), ownerOf(r), id); err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logFailure(r, "Failed to delete expense", err, log.OpDelete)
		}
		ErrorFromDomain(err).Write(w)
		return
	}
	s.expensesDeleted.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrUnknownCategory,
		core.ErrDescriptionTooLong,
		core.ErrInvalidMonth,
		core.ErrEmptyOwner,
		ports.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) logFailure(r *http.Request, msg string, err error, op string) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		log.FieldError, err,
		log.FieldOperation, op,
		log.FieldPath, r.URL.Path)
}
