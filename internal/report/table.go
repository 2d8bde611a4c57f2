package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kosarica/basket-service/internal/optimizer"
)

// WriteTable prints a result as aligned text tables.
func WriteTable(out io.Writer, res *optimizer.Result, f *Formatter) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	if !res.OK {
		fmt.Fprintf(w, "No plan: %s\n", res.Reason)
		if res.Suggestion != nil {
			fmt.Fprintf(w, "At least %d shops are needed to cover the basket.\n", res.Suggestion.MinShopsRequired)
		}
		writeUnfulfillable(w, res)
		return w.Flush()
	}

	p := res.Plan
	fmt.Fprintln(w, "PRODUCT\tSHOP\tQTY\tUNIT\tTOTAL\tNOTE")
	fmt.Fprintln(w, "-------\t----\t---\t----\t-----\t----")
	for _, item := range p.LineItems {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			item.Name, item.ShopID, item.Quantity, f.Format(item.UnitPrice), f.Format(item.Total), itemNote(item))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SHOP\tSUBTOTAL\tSHIPPING\tTOTAL")
	fmt.Fprintln(w, "----\t--------\t--------\t-----")
	for _, shop := range p.Shops {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shop.ShopID, f.Format(shop.Subtotal), f.Format(shop.ShippingCost), f.Format(shop.Total()))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total:\t%s\n", f.Format(p.TotalCost))
	fmt.Fprintf(w, "Shops:\t%d\n", p.ShopCount)
	fmt.Fprintf(w, "Strategy:\t%s (%d evaluated)\n", res.Strategy, res.Evaluated)
	fmt.Fprintf(w, "Substitutes used:\t%d\n", res.SubstitutesUsed)

	for _, q := range res.QuantitySuggestions {
		fmt.Fprintf(w, "Added %d x %s at %s for free shipping, saving %s\n",
			q.AddedUnits, q.ProductID, q.ShopID, f.Format(q.NetSavings))
	}
	writeUnfulfillable(w, res)

	return w.Flush()
}

func writeUnfulfillable(w io.Writer, res *optimizer.Result) {
	for _, need := range res.Unfulfillable {
		fmt.Fprintf(w, "Not available anywhere:\t%s (x%d)\n", need.DisplayName(), need.Quantity)
	}
}

func itemNote(item *optimizer.LineItem) string {
	switch {
	case item.IsSubstitute:
		if item.SubstituteReason != "" {
			return "substitute: " + item.SubstituteReason
		}
		return "substitute"
	case item.Quantity > item.RequestedQuantity:
		return fmt.Sprintf("+%d for free shipping", item.Quantity-item.RequestedQuantity)
	default:
		return ""
	}
}
