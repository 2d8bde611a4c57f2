package optimizer

import (
	"math/rand"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// testRegistry is an in-memory SubstituteRegistry. Group members are listed
// best first; a member's priority is its position.
type testRegistry struct {
	groupOf map[string]string
	members map[string][]string
}

func newTestRegistry(groups map[string][]string) *testRegistry {
	r := &testRegistry{groupOf: make(map[string]string), members: groups}
	for groupID, members := range groups {
		for _, id := range members {
			r.groupOf[id] = groupID
		}
	}
	return r
}

func (r *testRegistry) GroupOf(productID string) (string, bool) {
	g, ok := r.groupOf[productID]
	return g, ok
}

func (r *testRegistry) Alternatives(productID string) []Alternative {
	groupID, ok := r.groupOf[productID]
	if !ok {
		return nil
	}
	var out []Alternative
	for i, id := range r.members[groupID] {
		if id != productID {
			out = append(out, Alternative{ProductID: id, Priority: i})
		}
	}
	return out
}

func (r *testRegistry) Members(groupID string) []string {
	return r.members[groupID]
}

type testCatalog map[string]string

func (c testCatalog) NameOf(productID string) string { return c[productID] }

func price(productID, shopID string, cents int64) PriceRecord {
	return PriceRecord{ProductID: productID, ShopID: shopID, Price: cents, Currency: "EUR"}
}

func int64p(v int64) *int64 { return &v }

func line(productID string, quantity int) *BasketLine {
	return &BasketLine{
		ProductID: productID,
		Name:      productID,
		Quantity:  quantity,
		Substitutes: SubstitutePolicy{
			AllowSubstitutes:        true,
			MaxPriceIncreasePercent: 20,
		},
	}
}

func shippingRule(threshold, cost int64) ShopRule {
	return ShopRule{FreeShippingThreshold: int64p(threshold), ShippingCost: int64p(cost)}
}

func offer(shopID string, cents int64) *Offer {
	return &Offer{ShopID: shopID, ProductID: "p-" + shopID, UnitPrice: cents}
}

// individualNeeds builds one individual need of the given quantity per offer list.
func individualNeeds(offers [][]*Offer, quantity int) []*Need {
	needs := make([]*Need, len(offers))
	for i := range offers {
		needs[i] = &Need{Kind: NeedIndividual, Quantity: quantity, Lines: []*BasketLine{line("p", quantity)}}
	}
	return needs
}

func newTestProblem(offers [][]*Offer, rules map[string]ShopRule, settings Settings, maxShops int) *searchProblem {
	config := Defaults()
	needs := individualNeeds(offers, 1)
	return &searchProblem{
		offers:   offers,
		maxShops: maxShops,
		scorer:   NewScorer(needs, offers, rules, settings, config, nil),
		config:   config,
		seed:     settings.Seed,
	}
}

// randomOffers builds needs×perNeed offers spread over shops with prices
// in [100, 1100), sorted ascending like the expander does.
func randomOffers(rng *rand.Rand, needs, perNeed, shops int) [][]*Offer {
	out := make([][]*Offer, needs)
	for i := range out {
		used := make(map[int]bool)
		for len(out[i]) < perNeed {
			s := rng.Intn(shops)
			if used[s] {
				continue
			}
			used[s] = true
			out[i] = append(out[i], offer(shopName(s), int64(100+rng.Intn(1000))))
		}
		sortOffers(out[i])
	}
	return out
}

func sortOffers(offers []*Offer) {
	for i := 1; i < len(offers); i++ {
		for j := i; j > 0 && offers[j].UnitPrice < offers[j-1].UnitPrice; j-- {
			offers[j], offers[j-1] = offers[j-1], offers[j]
		}
	}
}

func shopName(i int) string {
	return string(rune('A'+i%26)) + string(rune('a'+i/26))
}

// bruteForce returns the minimum score over every assignment within the shop limit.
func bruteForce(p *searchProblem) (int64, bool) {
	assign := make([]int, len(p.offers))
	found := false
	var best int64
	for {
		if p.valid(assign) {
			score := p.scorer.Score(assign)
			if !found || score < best {
				best, found = score, true
			}
		}
		i := 0
		for i < len(assign) {
			assign[i]++
			if assign[i] < len(p.offers[i]) {
				break
			}
			assign[i] = 0
			i++
		}
		if i == len(assign) {
			return best, found
		}
	}
}

func testEvents() *tracer {
	return newTracer(zerolog.Nop())
}

var testSpans = otel.Tracer("optimizer_test")
