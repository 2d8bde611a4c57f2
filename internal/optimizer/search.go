package optimizer

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ctxCheckInterval is how many evaluations run between context checks.
const ctxCheckInterval = 256

// candidate is a scored assignment: assign[i] indexes offers[i].
type candidate struct {
	assign []int
	score  int64
}

// bestTracker keeps the lowest-scored candidate. Ties keep the first one seen.
type bestTracker struct {
	best      *candidate
	evaluated int
}

// consider scores nothing itself; it records a scored assignment and
// returns true when it became the new best. assign is copied.
func (t *bestTracker) consider(assign []int, score int64) bool {
	t.evaluated++
	if t.best != nil && score >= t.best.score {
		return false
	}
	t.best = &candidate{assign: append([]int(nil), assign...), score: score}
	return true
}

// merge folds another tracker in. Used to reduce parallel workers in a fixed order.
func (t *bestTracker) merge(other *bestTracker) {
	t.evaluated += other.evaluated
	if other.best == nil {
		return
	}
	if t.best == nil || other.best.score < t.best.score {
		t.best = other.best
	}
}

// searchProblem is the shared state of every strategy for one run.
type searchProblem struct {
	offers   [][]*Offer
	maxShops int
	scorer   *Scorer
	config   *Config
	seed     int64
}

// valid reports whether an assignment respects the shop limit.
func (p *searchProblem) valid(assign []int) bool {
	return distinctShops(p.offers, assign) <= p.maxShops
}

// searchSpace returns Π|offers| saturated at limit+1, or at math.MaxInt when
// limit+1 does not fit.
func searchSpace(offers [][]*Offer, limit int) int {
	over := limit
	if over < math.MaxInt {
		over++
	}
	size := 1
	for _, needOffers := range offers {
		n := len(needOffers)
		if n == 0 {
			return 0
		}
		if size > limit/n {
			return over
		}
		size *= n
	}
	return size
}

// selectStrategy picks the primary strategy from the estimated search-space size.
func selectStrategy(offers [][]*Offer, maxShops, maxCombinations int, config *Config) Strategy {
	if searchSpace(offers, maxCombinations) <= maxCombinations {
		return StrategyExhaustive
	}
	if len(shopUniverse(offers)) <= maxShops*config.SamplingShopRatio {
		return StrategySampling
	}
	return StrategyGenetic
}

// strategyChain returns the primary strategy followed by its fallbacks.
func strategyChain(primary Strategy) []Strategy {
	switch primary {
	case StrategyExhaustive:
		return []Strategy{StrategyExhaustive}
	case StrategySampling:
		return []Strategy{StrategySampling, StrategyGenetic, StrategyLocalSearch, StrategySimple}
	default:
		return []Strategy{StrategyGenetic, StrategyLocalSearch, StrategySimple}
	}
}

// searchRun is the result of running the strategy chain.
type searchRun struct {
	best      *candidate
	strategy  Strategy
	evaluated int
	attempted []Strategy
}

// run executes the strategy chain until one strategy yields a valid candidate.
// It only returns an error when the caller's context is done.
func (p *searchProblem) run(ctx context.Context, primary Strategy, spans trace.Tracer, metrics *MetricsRecorder, events *tracer) (*searchRun, error) {
	out := &searchRun{}

	for _, strategy := range strategyChain(primary) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		runCtx, cancel := context.WithTimeout(ctx, p.config.SearchTimeout)
		spanCtx, span := spans.Start(runCtx, "optimizer.strategy."+strategy.String())

		t := &bestTracker{}
		p.runStrategy(spanCtx, strategy, t)

		span.SetAttributes(
			attribute.Int("evaluated", t.evaluated),
			attribute.Bool("found", t.best != nil),
		)
		deadlineHit := errors.Is(runCtx.Err(), context.DeadlineExceeded)
		span.End()
		cancel()

		out.evaluated += t.evaluated
		out.attempted = append(out.attempted, strategy)
		metrics.RecordStrategyRun(strategy.String(), time.Since(start), t.evaluated)
		events.add("search", "strategy finished",
			"strategy", strategy.String(),
			"evaluated", t.evaluated,
			"found", t.best != nil,
			"deadline_hit", deadlineHit,
		)

		if t.best != nil && p.valid(t.best.assign) {
			out.best = t.best
			out.strategy = strategy
			return out, nil
		}
	}

	return out, ctx.Err()
}

func (p *searchProblem) runStrategy(ctx context.Context, strategy Strategy, t *bestTracker) {
	switch strategy {
	case StrategyExhaustive:
		p.exhaustive(ctx, t)
	case StrategySampling:
		p.sampling(ctx, t)
	case StrategyGenetic:
		p.genetic(ctx, t)
	case StrategyLocalSearch:
		p.localSearch(ctx, t)
	case StrategySimple:
		p.simple(t)
	}
}

// exhaustive enumerates the cartesian product of offers depth-first, pruning
// branches that already exceed the shop limit, and scores every full assignment.
func (p *searchProblem) exhaustive(ctx context.Context, t *bestTracker) {
	n := len(p.offers)
	assign := make([]int, n)
	shopUse := make(map[string]int)
	distinct := 0

	var dfs func(i int) bool
	dfs = func(i int) bool {
		if i == n {
			t.consider(assign, p.scorer.Score(assign))
			if t.evaluated%ctxCheckInterval == 0 && ctx.Err() != nil {
				return false
			}
			return true
		}
		for j, o := range p.offers[i] {
			opened := shopUse[o.ShopID] == 0
			if opened && distinct >= p.maxShops {
				continue
			}
			shopUse[o.ShopID]++
			if opened {
				distinct++
			}
			assign[i] = j

			cont := dfs(i + 1)

			shopUse[o.ShopID]--
			if opened {
				distinct--
			}
			if !cont {
				return false
			}
		}
		return true
	}
	dfs(0)
}

// simple takes the cheapest offer for every need. It is only usable when
// that assignment already respects the shop limit.
func (p *searchProblem) simple(t *bestTracker) {
	assign := make([]int, len(p.offers))
	if p.valid(assign) {
		t.consider(assign, p.scorer.Score(assign))
	}
}

// repair brings an assignment back under the shop limit by keeping its most
// frequent shops and moving every other slot to the cheapest offer at a kept
// shop. It returns false when some slot has no offer at any kept shop.
func (p *searchProblem) repair(assign []int) ([]int, bool) {
	if p.valid(assign) {
		return assign, true
	}

	freq := make(map[string]int)
	firstSeen := make(map[string]int)
	var shops []string
	for needIdx, offerIdx := range assign {
		shopID := p.offers[needIdx][offerIdx].ShopID
		if _, ok := freq[shopID]; !ok {
			firstSeen[shopID] = len(shops)
			shops = append(shops, shopID)
		}
		freq[shopID]++
	}
	sort.SliceStable(shops, func(i, j int) bool {
		if freq[shops[i]] != freq[shops[j]] {
			return freq[shops[i]] > freq[shops[j]]
		}
		return firstSeen[shops[i]] < firstSeen[shops[j]]
	})

	kept := make(map[string]bool, p.maxShops)
	for _, shopID := range shops[:p.maxShops] {
		kept[shopID] = true
	}

	for needIdx, offerIdx := range assign {
		if kept[p.offers[needIdx][offerIdx].ShopID] {
			continue
		}
		replacement := -1
		for j, o := range p.offers[needIdx] {
			if kept[o.ShopID] {
				replacement = j
				break
			}
		}
		if replacement < 0 {
			return nil, false
		}
		assign[needIdx] = replacement
	}
	return assign, true
}
