package optimizer

// QuantityOptimizer looks for single-line quantity increases that push a shop
// over its free-shipping threshold for less than the shipping it saves.
type QuantityOptimizer struct {
	scorer   *Scorer
	rules    map[string]ShopRule
	settings Settings
	steps    []int
	trace    *tracer
}

// NewQuantityOptimizer creates a quantity optimizer bound to the plan's scorer.
func NewQuantityOptimizer(scorer *Scorer, rules map[string]ShopRule, settings Settings, steps []int, trace *tracer) *QuantityOptimizer {
	return &QuantityOptimizer{
		scorer:   scorer,
		rules:    rules,
		settings: settings,
		steps:    steps,
		trace:    trace,
	}
}

type increment struct {
	item       *LineItem
	units      int
	additional int64
	efficiency float64
}

// Apply mutates the plan in place and returns the increments applied,
// at most one per shop. Quantities are only ever increased.
func (q *QuantityOptimizer) Apply(plan *Plan) []*QuantitySuggestion {
	var applied []*QuantitySuggestion

	for _, shop := range plan.Shops {
		rule, ok := q.rules[shop.ShopID]
		if !ok || rule.FreeShippingThreshold == nil || rule.ShippingCost == nil {
			continue
		}
		threshold, shipping := *rule.FreeShippingThreshold, *rule.ShippingCost
		if threshold <= 0 || shipping < 0 {
			q.trace.add("quantity", "skipping shop with malformed shipping rule",
				"shop_id", shop.ShopID,
				"threshold", threshold,
				"shipping_cost", shipping,
			)
			continue
		}
		if shop.Subtotal >= threshold || shipping == 0 {
			continue
		}

		missing := threshold - shop.Subtotal
		potential := shipping - missing
		required := q.settings.MinSavingsThreshold
		if tightened := missing * 2; tightened < required {
			required = tightened
		}
		if potential < required {
			continue
		}

		best := q.bestIncrement(plan, shop.ShopID, missing)
		if best == nil {
			continue
		}
		net := shipping - best.additional
		if net <= 0 {
			q.trace.add("quantity", "increment does not pay for itself",
				"shop_id", shop.ShopID,
				"product_id", best.item.ProductID,
				"units", best.units,
				"net_savings", net,
			)
			continue
		}

		best.item.Quantity += best.units
		best.item.Total += best.additional
		shop.Subtotal += best.additional
		q.scorer.Reprice(plan)

		applied = append(applied, &QuantitySuggestion{
			ShopID:         shop.ShopID,
			ProductID:      best.item.ProductID,
			AddedUnits:     best.units,
			NewQuantity:    best.item.Quantity,
			AdditionalCost: best.additional,
			ShippingSaved:  shipping,
			NetSavings:     net,
		})
		q.trace.add("quantity", "increment applied",
			"shop_id", shop.ShopID,
			"product_id", best.item.ProductID,
			"units", best.units,
			"net_savings", net,
		)
	}
	return applied
}

// bestIncrement returns the qualifying increment with the highest
// missing/additional efficiency among the shop's non-group lines.
func (q *QuantityOptimizer) bestIncrement(plan *Plan, shopID string, missing int64) *increment {
	var best *increment
	for _, item := range plan.LineItems {
		if item.ShopID != shopID || item.IsGroup || item.UnitPrice <= 0 {
			continue
		}
		limit := float64(item.RequestedQuantity) * q.settings.MaxQuantityMultiplier
		for _, step := range q.steps {
			if step <= 0 {
				continue
			}
			additional := item.UnitPrice * int64(step)
			if additional < missing {
				continue
			}
			if float64(item.Quantity+step) > limit+1e-9 {
				continue
			}
			efficiency := float64(missing) / float64(additional)
			if best == nil || efficiency > best.efficiency {
				best = &increment{item: item, units: step, additional: additional, efficiency: efficiency}
			}
		}
	}
	return best
}
