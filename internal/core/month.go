package core

import (
	"fmt"
	"time"
)

var monthNamesES = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthNameES returns the Spanish name of m, or "" for an invalid month.
func MonthNameES(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNamesES[m-1]
}

// MonthSelector identifies one calendar month.
type MonthSelector struct {
	Year  int
	Month time.Month
}

// SelectorFromIndex builds a selector from a 0-based month index, the
// representation used by the HTTP API (0 = January).
func SelectorFromIndex(index, year int) (MonthSelector, error) {
	if index < 0 || index > 11 {
		return MonthSelector{}, fmt.Errorf("%w: index %d", ErrInvalidMonth, index)
	}
	return MonthSelector{Year: year, Month: time.Month(index + 1)}, nil
}

// SelectorOf returns the month containing t in t's own location.
func SelectorOf(t time.Time) MonthSelector {
	return MonthSelector{Year: t.Year(), Month: t.Month()}
}

func (s MonthSelector) Validate() error {
	if s.Month < time.January || s.Month > time.December {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, int(s.Month))
	}
	return nil
}

// Index is the 0-based month.
func (s MonthSelector) Index() int {
	return int(s.Month) - 1
}

// Previous returns the month before s; January wraps to December of the
// previous year.
func (s MonthSelector) Previous() MonthSelector {
	if s.Month == time.January {
		return MonthSelector{Year: s.Year - 1, Month: time.December}
	}
	return MonthSelector{Year: s.Year, Month: s.Month - 1}
}

func (s MonthSelector) Next() MonthSelector {
	if s.Month == time.December {
		return MonthSelector{Year: s.Year + 1, Month: time.January}
	}
	return MonthSelector{Year: s.Year, Month: s.Month + 1}
}

// Contains reports whether d falls in the month, comparing month and year only.
func (s MonthSelector) Contains(d Date) bool {
	return d.Month() == s.Month && d.Year() == s.Year
}

func (s MonthSelector) Label() string {
	return MonthNameES(s.Month)
}

func (s MonthSelector) String() string {
	return fmt.Sprintf("%04d-%02d", s.Year, int(s.Month))
}
