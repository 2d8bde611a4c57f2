package optimizer

// Scorer converts an assignment (one offer index per need) into a priced plan
// and a scalar score. Lower scores are better.
type Scorer struct {
	needs    []*Need
	offers   [][]*Offer
	rules    map[string]ShopRule
	settings Settings
	config   *Config
	catalog  ProductCatalog
}

// NewScorer creates a scorer for one optimization run.
func NewScorer(needs []*Need, offers [][]*Offer, rules map[string]ShopRule, settings Settings, config *Config, catalog ProductCatalog) *Scorer {
	if catalog == nil {
		catalog = noCatalog{}
	}
	return &Scorer{
		needs:    needs,
		offers:   offers,
		rules:    rules,
		settings: settings,
		config:   config,
		catalog:  catalog,
	}
}

// Score returns the score of an assignment without building the full plan.
func (s *Scorer) Score(assign []int) int64 {
	subtotals := make(map[string]int64, len(assign))
	for needIdx, offerIdx := range assign {
		o := s.offers[needIdx][offerIdx]
		subtotals[o.ShopID] += o.UnitPrice * int64(s.needs[needIdx].Quantity)
	}

	var total int64
	for shopID, subtotal := range subtotals {
		total += subtotal + s.shipping(shopID, subtotal)
	}
	return s.scoreOf(total, len(subtotals))
}

// Plan builds the priced plan for an assignment.
func (s *Scorer) Plan(assign []int) *Plan {
	plan := &Plan{
		LineItems: make([]*LineItem, 0, len(assign)),
	}

	byShop := make(map[string]*ShopSummary)
	for needIdx, offerIdx := range assign {
		need := s.needs[needIdx]
		o := s.offers[needIdx][offerIdx]

		item := &LineItem{
			NeedIndex:         needIdx,
			ProductID:         o.ProductID,
			Name:              s.nameFor(need, o),
			ShopID:            o.ShopID,
			Quantity:          need.Quantity,
			RequestedQuantity: need.Quantity,
			UnitPrice:         o.UnitPrice,
			Total:             o.UnitPrice * int64(need.Quantity),
			IsSubstitute:      o.IsSubstitute,
			IsGroup:           need.Kind == NeedSubstituteGroup,
			SubstituteReason:  o.Reason,
		}
		plan.LineItems = append(plan.LineItems, item)

		summary, ok := byShop[o.ShopID]
		if !ok {
			summary = &ShopSummary{ShopID: o.ShopID}
			if rule, ok := s.rules[o.ShopID]; ok {
				summary.FreeShippingThreshold = rule.FreeShippingThreshold
				if rule.ShippingCost != nil {
					summary.BaseShippingCost = *rule.ShippingCost
				}
			}
			byShop[o.ShopID] = summary
			plan.Shops = append(plan.Shops, summary)
		}
		summary.Subtotal += item.Total
	}

	s.Reprice(plan)
	return plan
}

// Reprice recomputes shipping, totals and score of a plan from its line items' shop subtotals.
func (s *Scorer) Reprice(plan *Plan) {
	plan.TotalCost = 0
	for _, summary := range plan.Shops {
		summary.ShippingCost = s.shipping(summary.ShopID, summary.Subtotal)
		plan.TotalCost += summary.Total()
	}
	plan.ShopCount = len(plan.Shops)
	plan.Score = s.scoreOf(plan.TotalCost, plan.ShopCount)
}

// shipping returns the shipping charge for a shop subtotal.
func (s *Scorer) shipping(shopID string, subtotal int64) int64 {
	if !s.settings.ConsiderFreeShipping {
		return 0
	}
	rule, ok := s.rules[shopID]
	if !ok || !rule.charges() {
		return 0
	}
	if subtotal >= *rule.FreeShippingThreshold {
		return 0
	}
	return *rule.ShippingCost
}

func (s *Scorer) scoreOf(total int64, shops int) int64 {
	switch s.settings.Priority {
	case PriorityFewestShops:
		return int64(shops)*s.config.FewestShopsWeight + total
	case PriorityBalanced:
		extra := int64(shops - 1)
		if extra < 0 {
			extra = 0
		}
		return total + extra*s.config.ExtraShopPenalty
	default:
		return total
	}
}

// nameFor resolves the display name for the product bought for a need.
func (s *Scorer) nameFor(need *Need, o *Offer) string {
	for _, line := range need.Lines {
		if line.ProductID == o.ProductID && line.Name != "" {
			return line.Name
		}
	}
	if name := s.catalog.NameOf(o.ProductID); name != "" {
		return name
	}
	return o.ProductID
}

// distinctShops counts the shops used by an assignment.
func distinctShops(offers [][]*Offer, assign []int) int {
	seen := make(map[string]struct{}, len(assign))
	for needIdx, offerIdx := range assign {
		seen[offers[needIdx][offerIdx].ShopID] = struct{}{}
	}
	return len(seen)
}
