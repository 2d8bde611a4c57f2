package optimizer

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// DefaultReferenceCurrency is the currency all prices are compared in.
const DefaultReferenceCurrency = "EUR"

// Converter normalizes prices into one reference currency using a static rate table.
// Rates express how many reference units one unit of the source currency is worth.
type Converter struct {
	reference currency.Unit
	rates     map[currency.Unit]float64
}

// NewConverter creates a converter for the given reference currency and rate table.
// The reference currency always has rate 1.
func NewConverter(reference string, rates map[string]float64) (*Converter, error) {
	ref, err := currency.ParseISO(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference currency %q: %w", reference, err)
	}

	c := &Converter{
		reference: ref,
		rates:     map[currency.Unit]float64{ref: 1},
	}
	for code, rate := range rates {
		unit, err := currency.ParseISO(code)
		if err != nil {
			return nil, fmt.Errorf("invalid currency %q: %w", code, err)
		}
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return nil, fmt.Errorf("invalid rate for %s: %v", code, rate)
		}
		if unit == ref {
			continue
		}
		c.rates[unit] = rate
	}
	return c, nil
}

// MustNewConverter is like NewConverter but panics on error.
func MustNewConverter(reference string, rates map[string]float64) *Converter {
	c, err := NewConverter(reference, rates)
	if err != nil {
		panic(err)
	}
	return c
}

// Reference returns the ISO code of the reference currency.
func (c *Converter) Reference() string {
	return c.reference.String()
}

// Normalize converts a price record into the reference currency.
// Records already in the reference currency are returned unchanged, which makes
// Normalize idempotent. An empty currency is treated as the reference currency.
func (c *Converter) Normalize(p PriceRecord) (PriceRecord, error) {
	code := strings.TrimSpace(p.Currency)
	if code == "" {
		p.Currency = c.reference.String()
		return p, nil
	}

	unit, err := currency.ParseISO(code)
	if err != nil {
		return p, fmt.Errorf("invalid currency %q: %w", p.Currency, err)
	}
	if unit == c.reference {
		p.Currency = c.reference.String()
		return p, nil
	}

	rate, ok := c.rates[unit]
	if !ok {
		return p, fmt.Errorf("no conversion rate for %s", unit)
	}

	p.Price = c.convertMinor(p.Price, unit, rate)
	p.Currency = c.reference.String()
	return p, nil
}

// convertMinor converts an amount in minor units of src into minor units of the reference.
func (c *Converter) convertMinor(amount int64, src currency.Unit, rate float64) int64 {
	srcScale, _ := currency.Standard.Rounding(src)
	refScale, _ := currency.Standard.Rounding(c.reference)

	major := float64(amount) / math.Pow10(srcScale)
	return int64(math.Round(major * rate * math.Pow10(refScale)))
}
