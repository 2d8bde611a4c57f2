package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kosarica/basket-service/internal/optimizer"

// Optimizer turns a basket, prices and shop rules into a purchase plan.
// It holds no per-request state and is safe for concurrent use.
type Optimizer struct {
	registry  SubstituteRegistry
	catalog   ProductCatalog
	converter *Converter
	config    *Config
	metrics   *MetricsRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
}

var _ BasketOptimizer = (*Optimizer)(nil)

// NewOptimizer creates an optimizer. Nil collaborators fall back to an empty
// registry, an empty catalog, a EUR-only converter and the default config.
func NewOptimizer(registry SubstituteRegistry, catalog ProductCatalog, converter *Converter, config *Config, metrics *MetricsRecorder) *Optimizer {
	if registry == nil {
		registry = noRegistry{}
	}
	if catalog == nil {
		catalog = noCatalog{}
	}
	if converter == nil {
		converter = MustNewConverter(DefaultReferenceCurrency, nil)
	}
	if config == nil {
		config = Defaults()
	}
	return &Optimizer{
		registry:  registry,
		catalog:   catalog,
		converter: converter,
		config:    config,
		metrics:   metrics,
		logger:    log.With().Str("component", "basket_optimizer").Logger(),
		tracer:    otel.Tracer(tracerName),
	}
}

// Optimize runs the full pipeline: aggregate needs, expand offers, check
// feasibility, search, price the winner and apply quantity suggestions.
//
// The error return is reserved for invalid requests and context cancellation.
// Empty baskets, missing offers and infeasible shop limits come back as a
// Result with OK=false and a Reason.
func (o *Optimizer) Optimize(ctx context.Context, req *OptimizeRequest) (*Result, error) {
	if req == nil {
		return nil, ErrInvalidRequest{Field: "request", Reason: "is required", Index: -1}
	}
	if err := req.Validate(o.config.MaxBasketLines); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := o.logger.With().Str("run_id", res.RunID).Logger()
	events := newTracer(logger)

	ctx, span := o.tracer.Start(ctx, "optimizer.Optimize", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Int("lines", len(req.Lines)),
	))
	defer span.End()

	err := o.optimize(ctx, req, res, events)
	res.Trace = events.events

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Optimization aborted")
		return nil, err
	}

	reason := res.Reason.String()
	if res.OK {
		reason = "ok"
	}
	span.SetAttributes(
		attribute.String("strategy", res.Strategy.String()),
		attribute.String("reason", reason),
		attribute.Int("evaluated", res.Evaluated),
	)
	o.metrics.RecordOptimization(res.Strategy.String(), reason, time.Since(start))

	e := logger.Info().
		Str("reason", reason).
		Str("strategy", res.Strategy.String()).
		Int("evaluated", res.Evaluated).
		Dur("duration", time.Since(start))
	if res.Plan != nil {
		e = e.Int64("total_cost", res.Plan.TotalCost).Int("shops", res.Plan.ShopCount)
	}
	e.Msg("Optimization finished")

	return res, nil
}

func (o *Optimizer) optimize(ctx context.Context, req *OptimizeRequest, res *Result, events *tracer) error {
	settings := req.Settings
	lines := o.prepareLines(req.Lines)

	needs, err := AggregateNeeds(lines, o.registry, settings.AllowSubstitutes)
	if errors.Is(err, ErrEmptyBasket) {
		res.Reason = ReasonEmptyBasket
		events.add("aggregate", "basket empty")
		return nil
	}
	if err != nil {
		return err
	}
	o.metrics.RecordBasket(len(lines), len(needs))
	events.add("aggregate", "needs aggregated", "lines", len(lines), "needs", len(needs))

	prices := o.normalizePrices(req.Prices, events)

	expander := NewOfferExpander(o.registry, prices, needs, settings, o.config.DominancePruneThreshold)
	var (
		fulfilled []*Need
		offers    [][]*Offer
	)
	for _, need := range needs {
		needOffers := expander.Expand(need)
		if len(needOffers) == 0 {
			res.Unfulfillable = append(res.Unfulfillable, need)
			events.add("offers", "need has no offers", "need", need.DisplayName())
			continue
		}
		fulfilled = append(fulfilled, need)
		offers = append(offers, needOffers)
	}
	if len(fulfilled) == 0 {
		res.Reason = ReasonNoOffers
		return nil
	}

	universe := len(shopUniverse(offers))
	maxShops := settings.MaxShops
	if maxShops <= 0 || maxShops > universe {
		maxShops = universe
	}

	// Needs without offers were split off above, so the cover is always complete.
	minShops, _ := MinShopsRequired(offers)
	events.add("feasibility", "minimum shops computed",
		"min_shops", minShops,
		"max_shops", maxShops,
		"shops", universe,
	)
	if minShops > maxShops {
		res.Reason = ReasonShopLimitInfeasible
		res.Suggestion = &Suggestion{MinShopsRequired: minShops}
		return nil
	}

	scorer := NewScorer(fulfilled, offers, req.ShopRules, settings, o.config, o.catalog)
	problem := &searchProblem{
		offers:   offers,
		maxShops: maxShops,
		scorer:   scorer,
		config:   o.config,
		seed:     settings.Seed,
	}

	primary := selectStrategy(offers, maxShops, settings.MaxCombinations, o.config)
	events.add("search", "strategy selected",
		"strategy", primary.String(),
		"space", searchSpace(offers, settings.MaxCombinations),
	)

	run, err := problem.run(ctx, primary, o.tracer, o.metrics, events)
	res.Evaluated = run.evaluated
	if err != nil {
		return err
	}
	if run.best == nil {
		res.Reason = ReasonSearchExhausted
		return nil
	}

	plan := scorer.Plan(run.best.assign)
	if settings.SuggestQuantities && settings.ConsiderFreeShipping {
		before := plan.TotalCost
		qo := NewQuantityOptimizer(scorer, req.ShopRules, settings, o.config.QuantitySteps, events)
		res.QuantitySuggestions = qo.Apply(plan)
		res.OptimizationsApplied = len(res.QuantitySuggestions)
		if len(res.QuantitySuggestions) > 0 {
			events.add("quantity", "plan repriced", "before", before, "after", plan.TotalCost)
		}
	}

	for _, item := range plan.LineItems {
		if item.IsSubstitute {
			res.SubstitutesUsed++
		}
	}
	o.metrics.RecordPlan(res.SubstitutesUsed, res.OptimizationsApplied)

	res.OK = true
	res.Plan = plan
	res.Strategy = run.strategy
	return nil
}

// prepareLines copies the request lines so the caller's data is never mutated,
// and fills missing display names from the catalog.
func (o *Optimizer) prepareLines(lines []*BasketLine) []*BasketLine {
	out := make([]*BasketLine, len(lines))
	for i, line := range lines {
		cp := *line
		if cp.Name == "" {
			if name := o.catalog.NameOf(cp.ProductID); name != "" {
				cp.Name = name
			} else {
				cp.Name = cp.ProductID
			}
		}
		out[i] = &cp
	}
	return out
}

// normalizePrices converts every price into the reference currency, dropping
// records that cannot be converted or carry a negative price.
func (o *Optimizer) normalizePrices(prices []PriceRecord, events *tracer) []PriceRecord {
	out := make([]PriceRecord, 0, len(prices))
	dropped := 0
	for _, p := range prices {
		n, err := o.converter.Normalize(p)
		if err != nil {
			dropped++
			events.add("normalize", "dropping price", "product_id", p.ProductID, "shop_id", p.ShopID, "error", err.Error())
			continue
		}
		if n.Price < 0 {
			dropped++
			events.add("normalize", "dropping negative price", "product_id", p.ProductID, "shop_id", p.ShopID)
			continue
		}
		out = append(out, n)
	}
	if dropped > 0 {
		events.add("normalize", "prices dropped", "dropped", dropped, "kept", len(out))
	}
	return out
}
