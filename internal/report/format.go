// Package report renders optimization results as text tables and spreadsheets.
package report

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders minor-unit amounts of one currency for one locale.
type Formatter struct {
	unit    currency.Unit
	scale   int
	pattern string
	printer *message.Printer
}

// NewFormatter creates a formatter for an ISO 4217 code.
func NewFormatter(code string, tag language.Tag) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		unit:    unit,
		scale:   scale,
		pattern: fmt.Sprintf("%%s %%.%df", scale),
		printer: message.NewPrinter(tag),
	}, nil
}

// Code returns the ISO code of the formatter's currency.
func (f *Formatter) Code() string {
	return f.unit.String()
}

// Major converts a minor-unit amount into major units.
func (f *Formatter) Major(minor int64) float64 {
	return float64(minor) / math.Pow10(f.scale)
}

// Format renders a minor-unit amount, e.g. "EUR 12.34".
func (f *Formatter) Format(minor int64) string {
	return f.printer.Sprintf(f.pattern, f.unit.String(), f.Major(minor))
}
