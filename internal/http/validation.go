package http

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"gastos/internal/core"
	"gastos/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := core.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// createExpenseRequest is the expense form as sent by the client.
type createExpenseRequest struct {
	Amount      string `validate:"required,max=32,amount"`
	Category    string `validate:"required,category"`
	Description string `validate:"max=200"`
	Date        string `validate:"required,datetime=2006-01-02"`
}

func parseCreateExpense(p *RequestBodyParser) createExpenseRequest {
	return createExpenseRequest{
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Date:        p.Get("date"),
	}
}

// ValidateRequest returns nil when obj passes its struct tags.
func ValidateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Field: "", Message: err.Error(), Type: "invalid"}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   jsonFieldName(fe.Field()),
			Message: getErrorMsg(fe),
			Type:    fe.Tag(),
		})
	}
	return out
}

func jsonFieldName(field string) string {
	switch field {
	case "Amount":
		return "amount"
	case "Category":
		return "category"
	case "Description":
		return "description"
	case "Date":
		return "date"
	default:
		return field
	}
}

func getErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Value is too long (max " + fe.Param() + " characters)"
	case "datetime":
		return "Date must use the YYYY-MM-DD format"
	case "category":
		return "Unknown category"
	case "amount":
		return "Amount must be a positive number with at most two decimals"
	default:
		return "Invalid value"
	}
}

// toNewExpense converts a request that already passed ValidateRequest.
// The parse errors are still returned since the domain rules are the
// final word.
func (req createExpenseRequest) toNewExpense() (services.NewExpense, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return services.NewExpense{}, err
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		return services.NewExpense{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return services.NewExpense{}, err
	}
	return services.NewExpense{
		Amount:      amount,
		Category:    cat,
		Description: req.Description,
		Date:        date,
	}, nil
}
