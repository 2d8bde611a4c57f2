package optimizer

import (
	"context"
	"math/rand"
)

type individual struct {
	genes []int
	score int64
}

// genetic evolves a population of assignments. Fitness is 1/(1+score), so
// comparing scores directly is equivalent. Individuals breaking the shop
// limit are repaired; when repair fails the better parent survives instead.
func (p *searchProblem) genetic(ctx context.Context, t *bestTracker) {
	rng := rand.New(rand.NewSource(p.seed))
	population := p.initialPopulation(ctx, rng, t)
	if len(population) == 0 {
		return
	}

	for gen := 0; gen < p.config.Generations; gen++ {
		if ctx.Err() != nil {
			return
		}

		next := make([]*individual, 0, len(population))
		next = append(next, fittest(population))

		for len(next) < len(population) {
			a := p.tournament(rng, population)
			b := p.tournament(rng, population)

			child := crossover(rng, a.genes, b.genes)
			if rng.Float64() < p.config.MutationRate {
				p.mutate(rng, child)
			}

			repaired, ok := p.repair(child)
			if !ok {
				parent := a
				if b.score < a.score {
					parent = b
				}
				next = append(next, parent)
				continue
			}

			score := p.scorer.Score(repaired)
			t.consider(repaired, score)
			next = append(next, &individual{genes: repaired, score: score})
		}
		population = next
	}
}

// initialPopulation rejection-samples valid assignments. When none is found,
// the greedy construction seeds the population on its own.
func (p *searchProblem) initialPopulation(ctx context.Context, rng *rand.Rand, t *bestTracker) []*individual {
	size := p.config.PopulationSize
	attempts := size * p.config.InitAttemptsPerIndividual
	picker := newWeightedPicker(p.offers)

	population := make([]*individual, 0, size)
	for attempt := 0; attempt < attempts && len(population) < size; attempt++ {
		if attempt%ctxCheckInterval == 0 && ctx.Err() != nil {
			break
		}
		genes := make([]int, len(p.offers))
		picker.draw(rng, genes)
		if !p.valid(genes) {
			continue
		}
		score := p.scorer.Score(genes)
		t.consider(genes, score)
		population = append(population, &individual{genes: genes, score: score})
	}

	if len(population) == 0 {
		if genes, ok := p.greedyConstruct(); ok {
			score := p.scorer.Score(genes)
			t.consider(genes, score)
			population = append(population, &individual{genes: genes, score: score})
		}
	}
	return population
}

func (p *searchProblem) tournament(rng *rand.Rand, population []*individual) *individual {
	size := p.config.TournamentSize
	if size < 1 {
		size = 1
	}
	var best *individual
	for i := 0; i < size; i++ {
		c := population[rng.Intn(len(population))]
		if best == nil || c.score < best.score {
			best = c
		}
	}
	return best
}

// crossover takes each gene from either parent with equal probability.
func crossover(rng *rand.Rand, a, b []int) []int {
	child := make([]int, len(a))
	for i := range child {
		if rng.Intn(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child
}

// mutate reassigns one random slot to a random offer.
func (p *searchProblem) mutate(rng *rand.Rand, genes []int) {
	i := rng.Intn(len(genes))
	genes[i] = rng.Intn(len(p.offers[i]))
}

func fittest(population []*individual) *individual {
	best := population[0]
	for _, ind := range population[1:] {
		if ind.score < best.score {
			best = ind
		}
	}
	return best
}
