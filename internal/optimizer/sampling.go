package optimizer

import (
	"context"
	"math/rand"
	"sort"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// weightedPicker draws offer indices per need with weight 1/(price+1),
// favouring cheap offers without excluding expensive ones.
type weightedPicker struct {
	cumulative [][]float64
}

func newWeightedPicker(offers [][]*Offer) *weightedPicker {
	p := &weightedPicker{cumulative: make([][]float64, len(offers))}
	for i, needOffers := range offers {
		cum := make([]float64, len(needOffers))
		var sum float64
		for j, o := range needOffers {
			sum += 1 / float64(o.UnitPrice+1)
			cum[j] = sum
		}
		p.cumulative[i] = cum
	}
	return p
}

// pick draws one offer index for need i.
func (p *weightedPicker) pick(rng *rand.Rand, i int) int {
	cum := p.cumulative[i]
	target := rng.Float64() * cum[len(cum)-1]
	j := sort.SearchFloat64s(cum, target)
	if j >= len(cum) {
		j = len(cum) - 1
	}
	return j
}

// draw fills assign with one weighted draw per need.
func (p *weightedPicker) draw(rng *rand.Rand, assign []int) {
	for i := range assign {
		assign[i] = p.pick(rng, i)
	}
}

// sampling runs three phases: the all-cheapest assignment, enumeration over
// subsets of the most frequent shops, and weighted random draws spread over
// parallel workers. Worker results are reduced in worker order.
func (p *searchProblem) sampling(ctx context.Context, t *bestTracker) {
	p.simple(t)
	if ctx.Err() != nil {
		return
	}

	p.sampleShopSubsets(ctx, t)
	if ctx.Err() != nil {
		return
	}

	workers := p.config.SamplingWorkers
	if workers < 1 {
		workers = 1
	}
	picker := newWeightedPicker(p.offers)
	results := make([]*bestTracker, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		budget := share(p.config.SampleBudget, workers, w)
		attempts := share(p.config.SampleAttemptCap, workers, w)
		g.Go(func() error {
			local, err := p.sampleWorker(gctx, picker, p.seed+int64(w), budget, attempts)
			results[w] = local
			return err
		})
	}
	// Interrupted workers still hand back what they found.
	if err := g.Wait(); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}

	for _, local := range results {
		if local != nil {
			t.merge(local)
		}
	}
}

// share splits total into n near-equal parts and returns part w.
func share(total, n, w int) int {
	part := total / n
	if w < total%n {
		part++
	}
	return part
}

// sampleWorker returns the context error when it stopped before its budget ran out.
func (p *searchProblem) sampleWorker(ctx context.Context, picker *weightedPicker, seed int64, budget, attempts int) (*bestTracker, error) {
	local := &bestTracker{}
	rng := rand.New(rand.NewSource(seed))
	assign := make([]int, len(p.offers))

	accepted := 0
	for attempt := 0; attempt < attempts && accepted < budget; attempt++ {
		if attempt%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return local, err
			}
		}
		picker.draw(rng, assign)
		if !p.valid(assign) {
			continue
		}
		accepted++
		local.consider(assign, p.scorer.Score(assign))
	}
	return local, nil
}

// sampleShopSubsets restricts the search to every k-subset of the most frequent
// shops, where k is the shop limit. Each need keeps its top-K offers inside the
// subset; small restricted products are enumerated, large ones contribute their
// cheapest assignment.
func (p *searchProblem) sampleShopSubsets(ctx context.Context, t *bestTracker) {
	top := p.frequentShops()
	k := p.maxShops
	if k > len(top) {
		k = len(top)
	}
	if k == 0 {
		return
	}

	restricted := make([][]int, len(p.offers))
	assign := make([]int, len(p.offers))

	forEachCombination(len(top), k, func(combo []int) bool {
		if ctx.Err() != nil {
			return false
		}

		inSubset := make(map[string]bool, k)
		for _, idx := range combo {
			inSubset[top[idx]] = true
		}

		for i, needOffers := range p.offers {
			restricted[i] = restricted[i][:0]
			for j, o := range needOffers {
				if !inSubset[o.ShopID] {
					continue
				}
				restricted[i] = append(restricted[i], j)
				if len(restricted[i]) >= p.config.SamplingTopK {
					break
				}
			}
			if len(restricted[i]) == 0 {
				return true
			}
		}

		if restrictedSpace(restricted, p.config.SubsetEnumerationLimit) <= p.config.SubsetEnumerationLimit {
			enumerateRestricted(restricted, assign, func(a []int) {
				t.consider(a, p.scorer.Score(a))
			})
			return true
		}

		for i := range restricted {
			assign[i] = restricted[i][0]
		}
		t.consider(assign, p.scorer.Score(assign))
		return true
	})
}

// frequentShops returns the shops offering the most needs, capped at
// max(SamplingTopShops, maxShops). Ties are broken by shop ID.
func (p *searchProblem) frequentShops() []string {
	coverage := make(map[string]int)
	for _, needOffers := range p.offers {
		seen := make(map[string]bool, len(needOffers))
		for _, o := range needOffers {
			if !seen[o.ShopID] {
				seen[o.ShopID] = true
				coverage[o.ShopID]++
			}
		}
	}

	shops := make([]string, 0, len(coverage))
	for shopID := range coverage {
		shops = append(shops, shopID)
	}
	sort.Slice(shops, func(i, j int) bool {
		if coverage[shops[i]] != coverage[shops[j]] {
			return coverage[shops[i]] > coverage[shops[j]]
		}
		return shops[i] < shops[j]
	})

	limit := p.config.SamplingTopShops
	if p.maxShops > limit {
		limit = p.maxShops
	}
	if len(shops) > limit {
		shops = shops[:limit]
	}
	return shops
}

// forEachCombination calls fn with every k-combination of [0,n) in
// lexicographic order until fn returns false.
func forEachCombination(n, k int, fn func(combo []int) bool) {
	if k <= 0 || k > n {
		return
	}
	combo := make([]int, k)
	for i := range combo {
		combo[i] = i
	}
	for {
		if !fn(combo) {
			return
		}
		i := k - 1
		for i >= 0 && combo[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		combo[i]++
		for j := i + 1; j < k; j++ {
			combo[j] = combo[j-1] + 1
		}
	}
}

func restrictedSpace(restricted [][]int, limit int) int {
	size := 1
	for _, r := range restricted {
		size *= len(r)
		if size > limit {
			return limit + 1
		}
	}
	return size
}

// enumerateRestricted visits the cartesian product of restricted index lists.
func enumerateRestricted(restricted [][]int, assign []int, visit func([]int)) {
	var walk func(i int)
	walk = func(i int) {
		if i == len(restricted) {
			visit(assign)
			return
		}
		for _, j := range restricted[i] {
			assign[i] = j
			walk(i + 1)
		}
	}
	walk(0)
}
