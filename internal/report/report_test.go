package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/kosarica/basket-service/internal/optimizer"
)

func int64p(v int64) *int64 { return &v }

func testResult() *optimizer.Result {
	return &optimizer.Result{
		RunID:                "run-1",
		OK:                   true,
		Strategy:             optimizer.StrategyExhaustive,
		Evaluated:            9,
		SubstitutesUsed:      1,
		OptimizationsApplied: 1,
		Plan: &optimizer.Plan{
			LineItems: []*optimizer.LineItem{
				{ProductID: "milk-c", Name: "Store milk", ShopID: "konzum", Quantity: 2, RequestedQuantity: 2, UnitPrice: 100, Total: 200, IsSubstitute: true, SubstituteReason: "cheaper"},
				{ProductID: "apples", Name: "Apples", ShopID: "konzum", Quantity: 4, RequestedQuantity: 2, UnitPrice: 250, Total: 1000},
			},
			Shops: []*optimizer.ShopSummary{
				{ShopID: "konzum", Subtotal: 1200, ShippingCost: 0, FreeShippingThreshold: int64p(1000), BaseShippingCost: 300},
			},
			TotalCost: 1200,
			ShopCount: 1,
		},
		QuantitySuggestions: []*optimizer.QuantitySuggestion{
			{ShopID: "konzum", ProductID: "apples", AddedUnits: 2, NewQuantity: 4, AdditionalCost: 500, ShippingSaved: 300, NetSavings: -200},
		},
	}
}

func TestFormatterFormat(t *testing.T) {
	tests := []struct {
		minor int64
		code  string
		want  string
	}{
		{12340, "EUR", "EUR 123.40"},
		{5, "EUR", "EUR 0.05"},
		{600, "JPY", "JPY 600"},
		{-250, "USD", "USD -2.50"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			f, err := NewFormatter(tt.code, language.English)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Format(tt.minor))
		})
	}
}

func TestNewFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewFormatter("euro", language.English)
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	f, err := NewFormatter("EUR", language.English)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testResult(), f))

	out := buf.String()
	assert.Contains(t, out, "Store milk")
	assert.Contains(t, out, "substitute: cheaper")
	assert.Contains(t, out, "+2 for free shipping")
	assert.Contains(t, out, "EUR 12.00")
	assert.Contains(t, out, "exhaustive (9 evaluated)")
}

func TestWriteTableFailure(t *testing.T) {
	f, err := NewFormatter("EUR", language.English)
	require.NoError(t, err)

	res := &optimizer.Result{
		Reason:     optimizer.ReasonShopLimitInfeasible,
		Suggestion: &optimizer.Suggestion{MinShopsRequired: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, res, f))
	assert.Contains(t, buf.String(), "No plan: shop_limit_infeasible")
	assert.Contains(t, buf.String(), "At least 3 shops")
}

func TestWriteXLSX(t *testing.T) {
	f, err := NewFormatter("EUR", language.English)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testResult(), f))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{SheetPlan, SheetShops, SheetSummary}, book.GetSheetList())

	plan, err := book.GetRows(SheetPlan)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, "Product", plan[0][0])
	assert.Equal(t, "Store milk", plan[1][0])
	assert.Equal(t, "konzum", plan[1][2])

	total, err := book.GetCellValue(SheetPlan, "G3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "10", total)

	shops, err := book.GetRows(SheetShops)
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.Equal(t, "konzum", shops[1][0])

	summary, err := book.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Run", "run-1"}, summary[0])
	assert.Equal(t, []string{"Currency", "EUR"}, summary[2])
}

func TestWriteXLSXFailure(t *testing.T) {
	f, err := NewFormatter("EUR", language.English)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, &optimizer.Result{Reason: optimizer.ReasonNoOffers}, f))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	plan, err := book.GetRows(SheetPlan)
	require.NoError(t, err)
	assert.Len(t, plan, 1)

	reason, err := book.GetCellValue(SheetSummary, "B8")
	require.NoError(t, err)
	assert.Equal(t, "no_offers", reason)
}
