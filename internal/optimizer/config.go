package optimizer

import "time"

// Config holds the engine tunables for the basket optimizer.
// It is loaded from environment variables or a config file.
type Config struct {
	// Validation limits
	MaxBasketLines int `mapstructure:"max_basket_lines" env:"MAX_BASKET_LINES" default:"100"`

	// Offer expansion
	DominancePruneThreshold int `mapstructure:"dominance_prune_threshold" env:"DOMINANCE_PRUNE_THRESHOLD" default:"8"`

	// Scoring (minor units)
	FewestShopsWeight int64 `mapstructure:"fewest_shops_weight" env:"FEWEST_SHOPS_WEIGHT" default:"100000"`
	ExtraShopPenalty  int64 `mapstructure:"extra_shop_penalty" env:"EXTRA_SHOP_PENALTY" default:"500"`

	// Smart sampling
	SamplingShopRatio      int `mapstructure:"sampling_shop_ratio" env:"SAMPLING_SHOP_RATIO" default:"4"`
	SamplingTopShops       int `mapstructure:"sampling_top_shops" env:"SAMPLING_TOP_SHOPS" default:"8"`
	SamplingTopK           int `mapstructure:"sampling_top_k" env:"SAMPLING_TOP_K" default:"3"`
	SubsetEnumerationLimit int `mapstructure:"subset_enumeration_limit" env:"SUBSET_ENUMERATION_LIMIT" default:"256"`
	SampleBudget           int `mapstructure:"sample_budget" env:"SAMPLE_BUDGET" default:"5000"`
	SampleAttemptCap       int `mapstructure:"sample_attempt_cap" env:"SAMPLE_ATTEMPT_CAP" default:"50000"`
	SamplingWorkers        int `mapstructure:"sampling_workers" env:"SAMPLING_WORKERS" default:"4"`

	// Genetic algorithm
	PopulationSize            int     `mapstructure:"population_size" env:"POPULATION_SIZE" default:"50"`
	Generations               int     `mapstructure:"generations" env:"GENERATIONS" default:"100"`
	MutationRate              float64 `mapstructure:"mutation_rate" env:"MUTATION_RATE" default:"0.2"`
	TournamentSize            int     `mapstructure:"tournament_size" env:"TOURNAMENT_SIZE" default:"3"`
	InitAttemptsPerIndividual int     `mapstructure:"init_attempts_per_individual" env:"INIT_ATTEMPTS_PER_INDIVIDUAL" default:"20"`

	// Local search
	LocalSearchIterations  int `mapstructure:"local_search_iterations" env:"LOCAL_SEARCH_ITERATIONS" default:"200"`
	LocalSearchPatience    int `mapstructure:"local_search_patience" env:"LOCAL_SEARCH_PATIENCE" default:"10"`
	NeighborhoodSampleSize int `mapstructure:"neighborhood_sample_size" env:"NEIGHBORHOOD_SAMPLE_SIZE" default:"500"`

	// Deadline for a single strategy run
	SearchTimeout time.Duration `mapstructure:"search_timeout" env:"SEARCH_TIMEOUT" default:"2s"`

	// Candidate increments tried by the quantity optimizer
	QuantitySteps []int `mapstructure:"quantity_steps" env:"QUANTITY_STEPS" default:"[1,2,3,5,10]"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		MaxBasketLines:            100,
		DominancePruneThreshold:   8,
		FewestShopsWeight:         100000, // 1000.00 in minor units
		ExtraShopPenalty:          500,    // 5.00 in minor units
		SamplingShopRatio:         4,
		SamplingTopShops:          8,
		SamplingTopK:              3,
		SubsetEnumerationLimit:    256,
		SampleBudget:              5000,
		SampleAttemptCap:          50000,
		SamplingWorkers:           4,
		PopulationSize:            50,
		Generations:               100,
		MutationRate:              0.2,
		TournamentSize:            3,
		InitAttemptsPerIndividual: 20,
		LocalSearchIterations:     200,
		LocalSearchPatience:       10,
		NeighborhoodSampleSize:    500,
		SearchTimeout:             2 * time.Second,
		QuantitySteps:             []int{1, 2, 3, 5, 10},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.MaxBasketLines < 1 {
		return ErrInvalidConfig{Field: "max_basket_lines", Reason: "must be at least 1"}
	}
	if c.DominancePruneThreshold < 1 {
		return ErrInvalidConfig{Field: "dominance_prune_threshold", Reason: "must be at least 1"}
	}
	if c.FewestShopsWeight < 0 || c.ExtraShopPenalty < 0 {
		return ErrInvalidConfig{Field: "fewest_shops_weight", Reason: "score weights must be non-negative"}
	}
	if c.SamplingShopRatio < 1 {
		return ErrInvalidConfig{Field: "sampling_shop_ratio", Reason: "must be at least 1"}
	}
	if c.SamplingTopShops < 1 || c.SamplingTopK < 1 {
		return ErrInvalidConfig{Field: "sampling_top_shops", Reason: "top shops and top k must be at least 1"}
	}
	if c.SampleBudget < 1 {
		return ErrInvalidConfig{Field: "sample_budget", Reason: "must be at least 1"}
	}
	if c.SampleAttemptCap < c.SampleBudget {
		return ErrInvalidConfig{Field: "sample_attempt_cap", Reason: "must be >= sample_budget"}
	}
	if c.SamplingWorkers < 1 {
		return ErrInvalidConfig{Field: "sampling_workers", Reason: "must be at least 1"}
	}
	if c.PopulationSize < 2 {
		return ErrInvalidConfig{Field: "population_size", Reason: "must be at least 2"}
	}
	if c.Generations < 1 {
		return ErrInvalidConfig{Field: "generations", Reason: "must be at least 1"}
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return ErrInvalidConfig{Field: "mutation_rate", Reason: "must be between 0 and 1"}
	}
	if c.TournamentSize < 1 {
		return ErrInvalidConfig{Field: "tournament_size", Reason: "must be at least 1"}
	}
	if c.LocalSearchIterations < 1 || c.LocalSearchPatience < 1 {
		return ErrInvalidConfig{Field: "local_search_iterations", Reason: "iterations and patience must be at least 1"}
	}
	if c.NeighborhoodSampleSize < 1 {
		return ErrInvalidConfig{Field: "neighborhood_sample_size", Reason: "must be at least 1"}
	}
	if c.SearchTimeout <= 0 {
		return ErrInvalidConfig{Field: "search_timeout", Reason: "must be positive"}
	}
	if len(c.QuantitySteps) == 0 {
		return ErrInvalidConfig{Field: "quantity_steps", Reason: "must not be empty"}
	}
	for _, step := range c.QuantitySteps {
		if step < 1 {
			return ErrInvalidConfig{Field: "quantity_steps", Reason: "steps must be positive"}
		}
	}
	return nil
}

// ErrInvalidConfig is returned when the configuration is invalid.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return e.Field + ": " + e.Reason
}
