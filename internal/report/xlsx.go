package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kosarica/basket-service/internal/optimizer"
)

// Sheet names of the workbook written by WriteXLSX.
const (
	SheetPlan    = "Plan"
	SheetShops   = "Shops"
	SheetSummary = "Summary"
)

// WriteXLSX writes a result as a workbook with Plan, Shops and Summary sheets.
// Amounts are written as numbers in major units.
func WriteXLSX(out io.Writer, res *optimizer.Result, f *Formatter) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", SheetPlan); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetShops, SheetSummary} {
		if _, err := book.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	decimals := "0.00"
	if f.scale == 0 {
		decimals = "0"
	}
	money, err := book.NewStyle(&excelize.Style{CustomNumFmt: &decimals})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	plan := [][]any{{"Product", "Product ID", "Shop", "Quantity", "Requested", "Unit price", "Total", "Substitute", "Note"}}
	shops := [][]any{{"Shop", "Subtotal", "Shipping", "Free shipping from", "Total"}}
	if p := res.Plan; p != nil {
		for _, item := range p.LineItems {
			plan = append(plan, []any{
				item.Name, item.ProductID, item.ShopID, item.Quantity, item.RequestedQuantity,
				f.Major(item.UnitPrice), f.Major(item.Total), item.IsSubstitute, itemNote(item),
			})
		}
		for _, shop := range p.Shops {
			var threshold any
			if shop.FreeShippingThreshold != nil {
				threshold = f.Major(*shop.FreeShippingThreshold)
			}
			shops = append(shops, []any{
				shop.ShopID, f.Major(shop.Subtotal), f.Major(shop.ShippingCost), threshold, f.Major(shop.Total()),
			})
		}
	}

	summary := [][]any{
		{"Run", res.RunID},
		{"OK", res.OK},
		{"Currency", f.Code()},
		{"Strategy", res.Strategy.String()},
		{"Evaluated", res.Evaluated},
		{"Substitutes used", res.SubstitutesUsed},
		{"Quantity optimizations", res.OptimizationsApplied},
	}
	if res.Plan != nil {
		summary = append(summary,
			[]any{"Total cost", f.Major(res.Plan.TotalCost)},
			[]any{"Shops", res.Plan.ShopCount},
		)
	} else {
		summary = append(summary, []any{"Reason", res.Reason.String()})
		if res.Suggestion != nil {
			summary = append(summary, []any{"Shops needed", res.Suggestion.MinShopsRequired})
		}
	}
	for _, need := range res.Unfulfillable {
		summary = append(summary, []any{"Unavailable", need.DisplayName()})
	}

	if err := writeRows(book, SheetPlan, plan); err != nil {
		return err
	}
	if err := writeRows(book, SheetShops, shops); err != nil {
		return err
	}
	if err := writeRows(book, SheetSummary, summary); err != nil {
		return err
	}

	styles := []struct {
		sheet, from, to string
		style           int
		apply           bool
	}{
		{SheetPlan, "A1", "I1", header, true},
		{SheetShops, "A1", "E1", header, true},
		{SheetPlan, "F2", fmt.Sprintf("G%d", len(plan)), money, len(plan) > 1},
		{SheetShops, "B2", fmt.Sprintf("E%d", len(shops)), money, len(shops) > 1},
	}
	for _, st := range styles {
		if !st.apply {
			continue
		}
		if err := book.SetCellStyle(st.sheet, st.from, st.to, st.style); err != nil {
			return fmt.Errorf("failed to style %s: %w", st.sheet, err)
		}
	}

	if err := book.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(book *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
