package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterNormalize(t *testing.T) {
	c, err := NewConverter("EUR", map[string]float64{"USD": 0.9, "JPY": 0.006})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   PriceRecord
		want int64
	}{
		{"reference", PriceRecord{Price: 1234, Currency: "EUR"}, 1234},
		{"empty currency", PriceRecord{Price: 1234}, 1234},
		{"lowercase code", PriceRecord{Price: 1000, Currency: "usd"}, 900},
		{"two decimals", PriceRecord{Price: 1000, Currency: "USD"}, 900},
		{"zero decimals", PriceRecord{Price: 1000, Currency: "JPY"}, 600},
		{"rounding", PriceRecord{Price: 333, Currency: "USD"}, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Price)
			assert.Equal(t, "EUR", got.Currency)
		})
	}
}

func TestConverterNormalizeIsIdempotent(t *testing.T) {
	c := MustNewConverter("EUR", map[string]float64{"USD": 0.9})

	once, err := c.Normalize(PriceRecord{ProductID: "p", ShopID: "s", Price: 1999, Currency: "USD"})
	require.NoError(t, err)
	twice, err := c.Normalize(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestConverterRejectsUnknownCurrency(t *testing.T) {
	c := MustNewConverter("EUR", nil)

	_, err := c.Normalize(PriceRecord{Price: 100, Currency: "GBP"})
	assert.Error(t, err)

	_, err = c.Normalize(PriceRecord{Price: 100, Currency: "NOPE"})
	assert.Error(t, err)
}

func TestNewConverterValidation(t *testing.T) {
	_, err := NewConverter("XXXX", nil)
	assert.Error(t, err)

	_, err = NewConverter("EUR", map[string]float64{"USD": 0})
	assert.Error(t, err)

	c, err := NewConverter("eur", map[string]float64{"EUR": 2})
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Reference())
}
