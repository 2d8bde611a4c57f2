package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// thresholdPlan builds a plan at shop A with a 5.00 x2 line and an 82.00 x1
// line: subtotal 92.00 against a 100.00 free-shipping threshold.
func thresholdPlan(shipping int64, multiplier float64) (*QuantityOptimizer, *Plan) {
	offers := [][]*Offer{
		{{ShopID: "A", ProductID: "apples", UnitPrice: 500}},
		{{ShopID: "A", ProductID: "coffee", UnitPrice: 8200}},
	}
	needs := []*Need{
		{Kind: NeedIndividual, Quantity: 2, Lines: []*BasketLine{line("apples", 2)}},
		{Kind: NeedIndividual, Quantity: 1, Lines: []*BasketLine{line("coffee", 1)}},
	}
	rules := map[string]ShopRule{"A": shippingRule(10000, shipping)}
	settings := DefaultSettings()
	settings.MaxQuantityMultiplier = multiplier

	scorer := NewScorer(needs, offers, rules, settings, Defaults(), nil)
	plan := scorer.Plan([]int{0, 0})
	return NewQuantityOptimizer(scorer, rules, settings, Defaults().QuantitySteps, testEvents()), plan
}

func TestQuantityOptimizerBreakEvenIsNotApplied(t *testing.T) {
	qo, plan := thresholdPlan(1000, 3)
	require.Equal(t, int64(9200), plan.Shop("A").Subtotal)
	before := plan.TotalCost

	// Gap 8.00: +2 apples cost 10.00 and save exactly 10.00 shipping.
	applied := qo.Apply(plan)
	assert.Empty(t, applied)
	assert.Equal(t, before, plan.TotalCost)
	assert.Equal(t, 2, plan.LineItems[0].Quantity)
}

func TestQuantityOptimizerAppliesBestIncrement(t *testing.T) {
	qo, plan := thresholdPlan(1100, 3)
	before := plan.TotalCost
	require.Equal(t, int64(10300), before)

	applied := qo.Apply(plan)
	require.Len(t, applied, 1)

	s := applied[0]
	assert.Equal(t, "A", s.ShopID)
	assert.Equal(t, "apples", s.ProductID)
	assert.Equal(t, 2, s.AddedUnits)
	assert.Equal(t, 4, s.NewQuantity)
	assert.Equal(t, int64(1000), s.AdditionalCost)
	assert.Equal(t, int64(1100), s.ShippingSaved)
	assert.Equal(t, int64(100), s.NetSavings)

	assert.Equal(t, 4, plan.LineItems[0].Quantity)
	assert.Equal(t, 2, plan.LineItems[0].RequestedQuantity)
	assert.Equal(t, int64(2000), plan.LineItems[0].Total)
	assert.Equal(t, int64(10200), plan.Shop("A").Subtotal)
	assert.Equal(t, int64(0), plan.Shop("A").ShippingCost)
	assert.Equal(t, int64(10200), plan.TotalCost)
}

func TestQuantityOptimizerRespectsMultiplier(t *testing.T) {
	// With a 1.5x cap apples may only grow from 2 to 3 units, which leaves a gap.
	// Coffee can grow from 1 to 1.5, so no step fits either.
	qo, plan := thresholdPlan(1100, 1.5)

	assert.Empty(t, qo.Apply(plan))
	assert.Equal(t, int64(10300), plan.TotalCost)
}

func TestQuantityOptimizerSkipsSmallSavings(t *testing.T) {
	qo, plan := thresholdPlan(850, 3)

	// Potential saving 0.50 is below the 1.00 minimum.
	assert.Empty(t, qo.Apply(plan))
}

func TestQuantityOptimizerSkipsGroupLinesAndMalformedRules(t *testing.T) {
	offers := [][]*Offer{{{ShopID: "A", ProductID: "milk", UnitPrice: 500}}, {{ShopID: "B", ProductID: "tea", UnitPrice: 500}}}
	needs := []*Need{
		{Kind: NeedSubstituteGroup, Quantity: 2, Lines: []*BasketLine{line("milk", 1), line("milk-b", 1)}},
		{Kind: NeedIndividual, Quantity: 1, Lines: []*BasketLine{line("tea", 1)}},
	}
	rules := map[string]ShopRule{
		"A": shippingRule(1200, 1000),
		"B": shippingRule(0, 1000),
	}
	settings := DefaultSettings()
	scorer := NewScorer(needs, offers, rules, settings, Defaults(), nil)
	plan := scorer.Plan([]int{0, 0})
	events := testEvents()

	qo := NewQuantityOptimizer(scorer, rules, settings, Defaults().QuantitySteps, events)
	assert.Empty(t, qo.Apply(plan))

	var malformed bool
	for _, ev := range events.events {
		if ev.Stage == "quantity" && ev.Attrs["shop_id"] == "B" {
			malformed = true
		}
	}
	assert.True(t, malformed)
}

func TestQuantityOptimizerNeverIncreasesCost(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	rules := map[string]ShopRule{
		"Aa": shippingRule(3000, 490),
		"Ba": shippingRule(2500, 390),
		"Ca": shippingRule(4000, 990),
	}

	for round := 0; round < 50; round++ {
		offers := randomOffers(rng, 5, 3, 3)
		needs := individualNeeds(offers, 1+rng.Intn(3))
		settings := DefaultSettings()
		settings.MinSavingsThreshold = 0
		scorer := NewScorer(needs, offers, rules, settings, Defaults(), nil)

		assign := make([]int, len(offers))
		for i := range assign {
			assign[i] = rng.Intn(len(offers[i]))
		}
		plan := scorer.Plan(assign)
		before := plan.TotalCost
		quantities := make([]int, len(plan.LineItems))
		for i, item := range plan.LineItems {
			quantities[i] = item.Quantity
		}

		NewQuantityOptimizer(scorer, rules, settings, Defaults().QuantitySteps, testEvents()).Apply(plan)

		assert.LessOrEqual(t, plan.TotalCost, before)
		for i, item := range plan.LineItems {
			assert.GreaterOrEqual(t, item.Quantity, quantities[i])
		}
	}
}
