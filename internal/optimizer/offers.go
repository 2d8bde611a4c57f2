package optimizer

import (
	"fmt"
	"sort"
)

// shopPrice is a normalized price for one product at one shop.
type shopPrice struct {
	ShopID string
	Price  int64
}

// priceIndex maps productID -> prices at every shop that lists it.
type priceIndex map[string][]shopPrice

// buildPriceIndex indexes normalized price records by product, keeping input order.
func buildPriceIndex(prices []PriceRecord) priceIndex {
	idx := make(priceIndex)
	for _, p := range prices {
		idx[p.ProductID] = append(idx[p.ProductID], shopPrice{ShopID: p.ShopID, Price: p.Price})
	}
	return idx
}

// OfferExpander produces the ranked offers for each Need.
type OfferExpander struct {
	registry         SubstituteRegistry
	prices           priceIndex
	basketProducts   map[string]bool
	allowSubstitutes bool
	maxSubstitutes   int
	pruneThreshold   int
}

// NewOfferExpander creates an expander over normalized prices.
func NewOfferExpander(registry SubstituteRegistry, prices []PriceRecord, needs []*Need, settings Settings, pruneThreshold int) *OfferExpander {
	if registry == nil {
		registry = noRegistry{}
	}
	basket := make(map[string]bool)
	for _, need := range needs {
		for _, id := range need.ProductIDs() {
			basket[id] = true
		}
	}
	return &OfferExpander{
		registry:         registry,
		prices:           buildPriceIndex(prices),
		basketProducts:   basket,
		allowSubstitutes: settings.AllowSubstitutes,
		maxSubstitutes:   settings.MaxSubstitutesPerNeed,
		pruneThreshold:   pruneThreshold,
	}
}

// Expand returns the offers for a need sorted ascending by unit price.
// Original products come first among equal prices.
func (e *OfferExpander) Expand(need *Need) []*Offer {
	var offers []*Offer
	best := int64(-1) // -1 indicates no original price

	for _, productID := range need.ProductIDs() {
		for _, sp := range e.prices[productID] {
			offers = append(offers, &Offer{
				ShopID:    sp.ShopID,
				ProductID: productID,
				UnitPrice: sp.Price,
			})
			if best < 0 || sp.Price < best {
				best = sp.Price
			}
		}
	}

	if e.substitutesPermitted(need) {
		offers = append(offers, e.substituteOffers(need, best)...)
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].UnitPrice < offers[j].UnitPrice
	})

	if len(offers) > e.pruneThreshold {
		offers = pruneDominated(offers)
	}
	return offers
}

func (e *OfferExpander) substitutesPermitted(need *Need) bool {
	return e.allowSubstitutes && need.Policy.AllowSubstitutes && need.HasSubstitutes && e.maxSubstitutes > 0
}

// substituteOffers returns shop prices of ranked alternatives that pass the price cap.
// Without an original price (best < 0) every alternative price is accepted.
func (e *OfferExpander) substituteOffers(need *Need, best int64) []*Offer {
	alternatives := e.alternatives(need)
	if len(alternatives) == 0 {
		return nil
	}

	limit := float64(best) * (1 + need.Policy.MaxPriceIncreasePercent/100)

	var offers []*Offer
	for _, alt := range alternatives {
		for _, sp := range e.prices[alt.ProductID] {
			var reason string
			if best < 0 {
				reason = "original unavailable"
			} else {
				if float64(sp.Price) > limit {
					continue
				}
				delta := 0.0
				if best > 0 {
					delta = (float64(sp.Price) - float64(best)) / float64(best) * 100
				}
				reason = fmt.Sprintf("%+.1f%% vs best original, priority %d", delta, alt.Priority)
			}
			offers = append(offers, &Offer{
				ShopID:       sp.ShopID,
				ProductID:    alt.ProductID,
				UnitPrice:    sp.Price,
				IsSubstitute: true,
				Reason:       reason,
			})
		}
	}
	return offers
}

// alternatives collects the ranked alternatives of every product behind the need,
// excluding products already in the basket, capped at maxSubstitutes.
func (e *OfferExpander) alternatives(need *Need) []Alternative {
	var all []Alternative
	for _, productID := range need.ProductIDs() {
		all = append(all, e.registry.Alternatives(productID)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority < all[j].Priority
	})

	seen := make(map[string]bool, len(all))
	out := make([]Alternative, 0, e.maxSubstitutes)
	for _, alt := range all {
		if len(out) >= e.maxSubstitutes {
			break
		}
		if e.basketProducts[alt.ProductID] || seen[alt.ProductID] {
			continue
		}
		seen[alt.ProductID] = true
		out = append(out, alt)
	}
	return out
}

// pruneDominated keeps only the cheapest offer per shop. Offers must be sorted by price.
func pruneDominated(offers []*Offer) []*Offer {
	seen := make(map[string]bool)
	out := offers[:0]
	for _, o := range offers {
		if seen[o.ShopID] {
			continue
		}
		seen[o.ShopID] = true
		out = append(out, o)
	}
	return out
}
