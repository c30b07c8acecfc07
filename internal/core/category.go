package core

import (
	"fmt"
	"strings"
)

// Category is the closed set of expense classifications. The zero value is
// not a category.
type Category int

const (
	Bills Category = iota + 1
	Mortgage
	Food
	Leisure
	Extras
)

var categories = [...]Category{Bills, Mortgage, Food, Leisure, Extras}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

func (c Category) Valid() bool {
	return c >= Bills && c <= Extras
}

// Code is the stored and wire representation.
func (c Category) Code() string {
	switch c {
	case Bills:
		return "FACTURAS"
	case Mortgage:
		return "HIPOTECA"
	case Food:
		return "COMIDA"
	case Leisure:
		return "OCIO"
	case Extras:
		return "EXTRAS"
	}
	return ""
}

// Label is the Spanish display name.
func (c Category) Label() string {
	switch c {
	case Bills:
		return "Facturas"
	case Mortgage:
		return "Hipoteca"
	case Food:
		return "Comida"
	case Leisure:
		return "Ocio"
	case Extras:
		return "Extras"
	}
	return ""
}

// Color is the chart color as a hex string.
func (c Category) Color() string {
	switch c {
	case Bills:
		return "#3b82f6"
	case Mortgage:
		return "#6366f1"
	case Food:
		return "#10b981"
	case Leisure:
		return "#f59e0b"
	case Extras:
		return "#ef4444"
	}
	return ""
}

func (c Category) String() string {
	if code := c.Code(); code != "" {
		return code
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory accepts a code or a label, case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(s, c.Code()) || strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.Code()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
