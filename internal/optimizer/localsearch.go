package optimizer

import (
	"context"
	"math/rand"
	"sort"
)

// move reassigns need to offer.
type move struct {
	need  int
	offer int
}

// greedyConstruct builds a valid assignment needs-first, handling the most
// constrained needs (fewest offers) first. Each need takes its cheapest offer
// at an already opened shop, or opens a new shop while the limit allows.
func (p *searchProblem) greedyConstruct() ([]int, bool) {
	order := make([]int, len(p.offers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(p.offers[order[a]]) < len(p.offers[order[b]])
	})

	assign := make([]int, len(p.offers))
	open := make(map[string]bool, p.maxShops)
	for _, needIdx := range order {
		chosen := -1
		for j, o := range p.offers[needIdx] {
			if open[o.ShopID] {
				chosen = j
				break
			}
		}
		if chosen < 0 {
			if len(open) >= p.maxShops {
				return nil, false
			}
			chosen = 0
			open[p.offers[needIdx][0].ShopID] = true
		}
		assign[needIdx] = chosen
	}
	return assign, true
}

// localSearch starts from the greedy construction (or the repaired cheapest
// assignment when greedy gets stuck) and applies the best
// improving single-slot swap until no neighbour improves, the iteration
// budget runs out, or patience is exhausted on sampled neighbourhoods.
func (p *searchProblem) localSearch(ctx context.Context, t *bestTracker) {
	current, ok := p.greedyConstruct()
	if !ok {
		current, ok = p.repair(make([]int, len(p.offers)))
	}
	if !ok {
		return
	}
	currentScore := p.scorer.Score(current)
	t.consider(current, currentScore)

	rng := rand.New(rand.NewSource(p.seed))
	neighbourhood := p.neighbourhood()
	full := len(neighbourhood) <= p.config.NeighborhoodSampleSize

	streak := 0
	trial := make([]int, len(current))
	for iter := 0; iter < p.config.LocalSearchIterations; iter++ {
		if ctx.Err() != nil {
			return
		}

		moves := neighbourhood
		if !full {
			moves = sampleMoves(rng, neighbourhood, p.config.NeighborhoodSampleSize)
		}

		bestMove := move{need: -1}
		bestScore := currentScore
		for _, m := range moves {
			if current[m.need] == m.offer {
				continue
			}
			copy(trial, current)
			trial[m.need] = m.offer
			if !p.valid(trial) {
				continue
			}
			score := p.scorer.Score(trial)
			t.consider(trial, score)
			if score < bestScore {
				bestScore = score
				bestMove = m
			}
		}

		if bestMove.need < 0 {
			if full {
				return
			}
			streak++
			if streak >= p.config.LocalSearchPatience {
				return
			}
			continue
		}

		streak = 0
		current[bestMove.need] = bestMove.offer
		currentScore = bestScore
	}
}

// neighbourhood lists every (need, offer) pair for needs with more than one offer.
func (p *searchProblem) neighbourhood() []move {
	var moves []move
	for i, needOffers := range p.offers {
		if len(needOffers) < 2 {
			continue
		}
		for j := range needOffers {
			moves = append(moves, move{need: i, offer: j})
		}
	}
	return moves
}

func sampleMoves(rng *rand.Rand, moves []move, n int) []move {
	out := make([]move, n)
	for i := range out {
		out[i] = moves[rng.Intn(len(moves))]
	}
	return out
}
