package optimizer

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExhaustiveMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rules := map[string]ShopRule{
		"Aa": shippingRule(1500, 300),
		"Ba": shippingRule(2000, 450),
		"Ca": shippingRule(800, 200),
	}

	for round := 0; round < 25; round++ {
		offers := randomOffers(rng, 4, 3, 6)
		for _, priority := range []Priority{PriorityLowestTotalCost, PriorityFewestShops, PriorityBalanced} {
			settings := DefaultSettings()
			settings.Priority = priority
			for maxShops := 1; maxShops <= 3; maxShops++ {
				p := newTestProblem(offers, rules, settings, maxShops)

				want, feasible := bruteForce(p)
				tracker := &bestTracker{}
				p.exhaustive(context.Background(), tracker)

				if !feasible {
					assert.Nil(t, tracker.best)
					continue
				}
				require.NotNil(t, tracker.best)
				assert.Equal(t, want, tracker.best.score, "round %d priority %s max %d", round, priority, maxShops)
				assert.LessOrEqual(t, distinctShops(offers, tracker.best.assign), maxShops)
			}
		}
	}
}

func TestExhaustiveTwoNeedsThreeShops(t *testing.T) {
	offers := [][]*Offer{
		{offer("A", 300), offer("B", 350), offer("C", 400)},
		{offer("C", 100), offer("A", 250), offer("B", 260)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 2)

	tracker := &bestTracker{}
	p.exhaustive(context.Background(), tracker)

	require.NotNil(t, tracker.best)
	assert.LessOrEqual(t, tracker.evaluated, 9)
	assert.Equal(t, int64(400), tracker.best.score)
	assert.Equal(t, []int{0, 0}, tracker.best.assign)
}

func TestExhaustiveKeepsFirstOnTies(t *testing.T) {
	offers := [][]*Offer{{offer("A", 100), offer("B", 100)}}
	p := newTestProblem(offers, nil, DefaultSettings(), 1)

	tracker := &bestTracker{}
	p.exhaustive(context.Background(), tracker)

	require.NotNil(t, tracker.best)
	assert.Equal(t, []int{0}, tracker.best.assign)
}

func TestSelectStrategy(t *testing.T) {
	config := Defaults()
	rng := rand.New(rand.NewSource(1))

	small := randomOffers(rng, 3, 3, 5)
	assert.Equal(t, StrategyExhaustive, selectStrategy(small, 2, 10000, config))

	narrow := randomOffers(rng, 12, 4, 8)
	assert.Equal(t, StrategySampling, selectStrategy(narrow, 2, 10000, config))

	wide := randomOffers(rng, 12, 4, 20)
	assert.Equal(t, StrategyGenetic, selectStrategy(wide, 2, 10000, config))
}

func TestSearchSpaceSaturates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	offers := randomOffers(rng, 30, 5, 10)

	assert.Equal(t, 10001, searchSpace(offers, 10000))
	assert.Equal(t, 0, searchSpace([][]*Offer{{offer("A", 1)}, {}}, 10000))
	assert.Equal(t, 6, searchSpace([][]*Offer{{offer("A", 1), offer("B", 1)}, {offer("A", 1), offer("B", 1), offer("C", 1)}}, 10000))
	assert.Equal(t, 6, searchSpace([][]*Offer{{offer("A", 1), offer("B", 1)}, {offer("A", 1), offer("B", 1), offer("C", 1)}}, 6))
	assert.Equal(t, 6, searchSpace([][]*Offer{{offer("A", 1), offer("B", 1)}, {offer("A", 1), offer("B", 1), offer("C", 1)}}, 5))
}

func TestSearchSpaceDoesNotOverflow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	offers := randomOffers(rng, 40, 5, 10)

	assert.Equal(t, math.MaxInt, searchSpace(offers, math.MaxInt))
	assert.Equal(t, 25, searchSpace(offers[:2], math.MaxInt))
}

func TestStochasticStrategiesRespectShopLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	offers := randomOffers(rng, 10, 4, 8)

	strategies := map[string]func(p *searchProblem, t *bestTracker){
		"sampling":     func(p *searchProblem, t *bestTracker) { p.sampling(context.Background(), t) },
		"genetic":      func(p *searchProblem, t *bestTracker) { p.genetic(context.Background(), t) },
		"local_search": func(p *searchProblem, t *bestTracker) { p.localSearch(context.Background(), t) },
	}

	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			for _, maxShops := range []int{2, 3, 5} {
				p := newTestProblem(offers, nil, DefaultSettings(), maxShops)
				tracker := &bestTracker{}
				run(p, tracker)

				if tracker.best == nil {
					continue
				}
				assert.LessOrEqual(t, distinctShops(offers, tracker.best.assign), maxShops)
				assert.Equal(t, p.scorer.Score(tracker.best.assign), tracker.best.score)
			}
		})
	}
}

func TestStochasticStrategiesAreDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	offers := randomOffers(rng, 10, 4, 8)
	settings := DefaultSettings()

	runs := map[string]func(p *searchProblem, t *bestTracker){
		"sampling": func(p *searchProblem, t *bestTracker) { p.sampling(context.Background(), t) },
		"genetic":  func(p *searchProblem, t *bestTracker) { p.genetic(context.Background(), t) },
	}

	for name, run := range runs {
		t.Run(name, func(t *testing.T) {
			first := &bestTracker{}
			run(newTestProblem(offers, nil, settings, 3), first)
			second := &bestTracker{}
			run(newTestProblem(offers, nil, settings, 3), second)

			require.NotNil(t, first.best)
			require.NotNil(t, second.best)
			assert.Equal(t, first.best.assign, second.best.assign)
			assert.Equal(t, first.best.score, second.best.score)
			assert.Equal(t, first.evaluated, second.evaluated)
		})
	}
}

func TestStochasticStrategiesNeverBeatOptimum(t *testing.T) {
	offers := [][]*Offer{
		{offer("B", 100), offer("A", 120), offer("C", 130)},
		{offer("B", 90), offer("D", 95), offer("A", 100)},
		{offer("C", 80), offer("D", 85), offer("A", 110)},
		{offer("A", 70), offer("C", 75), offer("B", 90)},
		{offer("D", 60), offer("A", 65), offer("B", 100)},
		{offer("B", 50), offer("C", 55), offer("A", 58)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 2)

	optimum, feasible := bruteForce(p)
	require.True(t, feasible)

	for _, strategy := range []Strategy{StrategySampling, StrategyGenetic, StrategyLocalSearch} {
		tracker := &bestTracker{}
		p.runStrategy(context.Background(), strategy, tracker)
		require.NotNil(t, tracker.best, strategy.String())
		assert.GreaterOrEqual(t, tracker.best.score, optimum, strategy.String())
	}
}

func TestSamplingFindsOptimumOnSmallInstance(t *testing.T) {
	offers := [][]*Offer{
		{offer("A", 100), offer("B", 120), offer("C", 130)},
		{offer("B", 100), offer("C", 110), offer("A", 200)},
		{offer("C", 100), offer("A", 150), offer("B", 160)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 1)

	optimum, feasible := bruteForce(p)
	require.True(t, feasible)

	tracker := &bestTracker{}
	p.sampling(context.Background(), tracker)
	require.NotNil(t, tracker.best)
	assert.Equal(t, optimum, tracker.best.score)
}

func TestSampleWorkerReportsCancellation(t *testing.T) {
	offers := [][]*Offer{
		{offer("A", 100), offer("B", 120)},
		{offer("B", 100), offer("A", 110)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 2)
	picker := newWeightedPicker(offers)

	local, err := p.sampleWorker(context.Background(), picker, 1, 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 10, local.evaluated)
	require.NotNil(t, local.best)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	local, err = p.sampleWorker(ctx, picker, 1, 10, 1000)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, local.evaluated)
	assert.Nil(t, local.best)
}

func TestRepair(t *testing.T) {
	offers := [][]*Offer{
		{offer("A", 100), offer("B", 100)},
		{offer("A", 100), offer("C", 100)},
		{offer("B", 100), offer("A", 300)},
		{offer("C", 100)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 2)

	// A, C, B, C: C is used twice, A and B once each, A seen first.
	repaired, ok := p.repair([]int{0, 1, 0, 0})
	require.True(t, ok)
	assert.True(t, p.valid(repaired))
	assert.Equal(t, []int{0, 1, 1, 0}, repaired)

	p.maxShops = 1
	_, ok = p.repair([]int{0, 1, 0, 0})
	assert.False(t, ok)
}

func TestGreedyConstruct(t *testing.T) {
	offers := [][]*Offer{
		{offer("A", 100), offer("B", 90)},
		{offer("B", 100)},
		{offer("C", 50), offer("B", 200)},
	}
	p := newTestProblem(offers, nil, DefaultSettings(), 1)

	assign, ok := p.greedyConstruct()
	require.True(t, ok)
	assert.Equal(t, []int{1, 0, 1}, assign)

	p.offers[1] = []*Offer{offer("D", 100)}
	_, ok = p.greedyConstruct()
	assert.False(t, ok)
}

func TestRunFallsBackAndReportsExhaustion(t *testing.T) {
	offers := [][]*Offer{{offer("A", 100)}, {offer("B", 100)}}
	p := newTestProblem(offers, nil, DefaultSettings(), 1)

	run, err := p.run(context.Background(), StrategyGenetic, testSpans, nil, testEvents())
	require.NoError(t, err)
	assert.Nil(t, run.best)
	assert.Equal(t, []Strategy{StrategyGenetic, StrategyLocalSearch, StrategySimple}, run.attempted)
}

func TestRunReturnsContextError(t *testing.T) {
	offers := [][]*Offer{{offer("A", 100)}}
	p := newTestProblem(offers, nil, DefaultSettings(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.run(ctx, StrategyExhaustive, testSpans, nil, testEvents())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEachCombination(t *testing.T) {
	var got [][]int
	forEachCombination(4, 2, func(combo []int) bool {
		got = append(got, append([]int(nil), combo...))
		return true
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)
}

func TestShare(t *testing.T) {
	total := 0
	for w := 0; w < 3; w++ {
		total += share(10, 3, w)
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 4, share(10, 3, 0))
	assert.Equal(t, 3, share(10, 3, 2))
}
