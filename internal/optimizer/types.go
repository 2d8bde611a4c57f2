package optimizer

import (
	"fmt"
	"strings"
)

// OptimizeRequest contains the parameters for basket optimization.
type OptimizeRequest struct {
	Lines     []*BasketLine       // Requested basket lines
	Prices    []PriceRecord       // Latest price per product/shop
	ShopRules map[string]ShopRule // Delivery rules per shop
	Settings  Settings            // Per-request optimization settings
}

// BasketLine represents a single requested product in the basket.
type BasketLine struct {
	ProductID   string           // Catalog product identifier
	Name        string           // Display name (resolved from catalog when empty)
	Quantity    int              // Quantity requested (must be > 0)
	Substitutes SubstitutePolicy // Per-line substitute preferences
}

// SubstitutePolicy describes whether and how a line may be fulfilled by a substitute.
type SubstitutePolicy struct {
	AllowSubstitutes        bool
	MaxPriceIncreasePercent float64
}

// merge returns the most restrictive combination of two policies.
func (p SubstitutePolicy) merge(other SubstitutePolicy) SubstitutePolicy {
	out := SubstitutePolicy{
		AllowSubstitutes:        p.AllowSubstitutes && other.AllowSubstitutes,
		MaxPriceIncreasePercent: p.MaxPriceIncreasePercent,
	}
	if other.MaxPriceIncreasePercent < out.MaxPriceIncreasePercent {
		out.MaxPriceIncreasePercent = other.MaxPriceIncreasePercent
	}
	return out
}

// NeedKind distinguishes a plain product need from a merged substitute group.
type NeedKind int

const (
	NeedIndividual NeedKind = iota
	NeedSubstituteGroup
)

// String returns the external token for the kind.
func (k NeedKind) String() string {
	switch k {
	case NeedIndividual:
		return "individual"
	case NeedSubstituteGroup:
		return "substitute_group"
	default:
		return "unknown"
	}
}

// Need is one unit of basket demand fulfilled by exactly one Offer.
type Need struct {
	Kind           NeedKind
	GroupID        string        // Registry group (empty when the product has none)
	Quantity       int           // Total units required
	Lines          []*BasketLine // Basket lines merged into this need, in basket order
	Policy         SubstitutePolicy
	HasSubstitutes bool // Product belongs to a registry group
}

// ProductIDs returns the distinct products of the lines behind this need.
func (n *Need) ProductIDs() []string {
	seen := make(map[string]bool, len(n.Lines))
	ids := make([]string, 0, len(n.Lines))
	for _, line := range n.Lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		ids = append(ids, line.ProductID)
	}
	return ids
}

// DisplayName joins the names of the merged lines.
func (n *Need) DisplayName() string {
	names := make([]string, 0, len(n.Lines))
	for _, line := range n.Lines {
		names = append(names, line.Name)
	}
	return strings.Join(names, " / ")
}

// Offer is a priced, shop-specific way to fulfill one unit of a Need.
type Offer struct {
	ShopID       string
	ProductID    string
	UnitPrice    int64 // Minor units of the reference currency
	IsSubstitute bool
	Reason       string // Advisory justification for substitutes
}

// ShopRule holds the delivery configuration of a shop.
// A nil field means the rule is absent.
type ShopRule struct {
	FreeShippingThreshold *int64
	ShippingCost          *int64
}

// charges reports whether shipping is modelled for this shop at all.
func (r ShopRule) charges() bool {
	return r.FreeShippingThreshold != nil && r.ShippingCost != nil && *r.ShippingCost > 0
}

// PriceRecord is a raw price row as returned by the catalog.
type PriceRecord struct {
	ProductID string
	ShopID    string
	Price     int64  // Minor units of Currency
	Currency  string // ISO 4217 code
}

// LineItem is the purchase of one Need at one shop.
type LineItem struct {
	NeedIndex         int
	ProductID         string
	Name              string
	ShopID            string
	Quantity          int // Units bought (may exceed RequestedQuantity after quantity optimization)
	RequestedQuantity int // Units originally required
	UnitPrice         int64
	Total             int64
	IsSubstitute      bool
	IsGroup           bool
	SubstituteReason  string
}

// ShopSummary aggregates the line items bought at one shop.
type ShopSummary struct {
	ShopID                string
	Subtotal              int64
	ShippingCost          int64
	FreeShippingThreshold *int64
	BaseShippingCost      int64 // Configured cost before free-shipping is applied
}

// Total returns the subtotal plus shipping for this shop.
func (s *ShopSummary) Total() int64 {
	return s.Subtotal + s.ShippingCost
}

// Plan is a fully priced assignment of Offers to Needs (CombinationResult).
type Plan struct {
	LineItems []*LineItem
	Shops     []*ShopSummary
	TotalCost int64
	ShopCount int
	Score     int64
}

// Shop returns the summary for a shop, or nil.
func (p *Plan) Shop(shopID string) *ShopSummary {
	for _, s := range p.Shops {
		if s.ShopID == shopID {
			return s
		}
	}
	return nil
}

// QuantitySuggestion records one applied free-shipping quantity increase.
type QuantitySuggestion struct {
	ShopID         string
	ProductID      string
	AddedUnits     int
	NewQuantity    int
	AdditionalCost int64
	ShippingSaved  int64
	NetSavings     int64
}

// FailureReason enumerates why an optimization produced no plan.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonEmptyBasket
	ReasonNoOffers
	ReasonShopLimitInfeasible
	ReasonSearchExhausted
)

// String returns the external token for the reason.
func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonEmptyBasket:
		return "empty_basket"
	case ReasonNoOffers:
		return "no_offers"
	case ReasonShopLimitInfeasible:
		return "shop_limit_infeasible"
	case ReasonSearchExhausted:
		return "search_exhausted"
	default:
		return "unknown"
	}
}

// Suggestion is an actionable remediation hint for an infeasible request.
type Suggestion struct {
	MinShopsRequired int
}

// Result is the outcome of one optimization call.
type Result struct {
	RunID                string
	OK                   bool
	Plan                 *Plan
	OptimizationsApplied int
	SubstitutesUsed      int
	QuantitySuggestions  []*QuantitySuggestion
	Reason               FailureReason
	Suggestion           *Suggestion
	Unfulfillable        []*Need  // Needs with no offer at all ("needs completion")
	Strategy             Strategy // Strategy that produced the plan
	Evaluated            int      // Candidate assignments scored
	Trace                []TraceEvent
}

// Priority selects how candidate plans are ranked.
type Priority int

const (
	PriorityLowestTotalCost Priority = iota
	PriorityFewestShops
	PriorityBalanced
)

// String returns the external token for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLowestTotalCost:
		return "lowest_total_cost"
	case PriorityFewestShops:
		return "fewest_shops"
	case PriorityBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// ParsePriority converts the external token into a Priority.
// An empty string selects PriorityLowestTotalCost.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lowest_total_cost":
		return PriorityLowestTotalCost, nil
	case "fewest_shops":
		return PriorityFewestShops, nil
	case "balanced":
		return PriorityBalanced, nil
	default:
		return 0, ErrInvalidRequest{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s), Index: -1}
	}
}

// Strategy identifies the search algorithm that produced a plan.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExhaustive
	StrategySampling
	StrategyGenetic
	StrategyLocalSearch
	StrategySimple
)

// String returns the label used in results and metrics.
func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyExhaustive:
		return "exhaustive"
	case StrategySampling:
		return "sampling"
	case StrategyGenetic:
		return "genetic"
	case StrategyLocalSearch:
		return "local_search"
	case StrategySimple:
		return "simple"
	default:
		return "unknown"
	}
}

// Settings are the per-request optimization options.
type Settings struct {
	Priority              Priority
	MaxShops              int     // <= 0 means no limit
	SuggestQuantities     bool    // Run the free-shipping quantity optimizer
	MinSavingsThreshold   int64   // Minimum worthwhile saving in minor units
	MaxQuantityMultiplier float64 // Cap on new_quantity / original_quantity
	ConsiderFreeShipping  bool    // Model shipping costs and thresholds
	MaxCombinations       int     // Search-space cap for the exhaustive strategy

	AllowSubstitutes        bool    // Global substitute toggle
	MaxPriceIncreasePercent float64 // Default cap for lines without their own
	MaxSubstitutesPerNeed   int

	Seed int64 // Random seed for the stochastic strategies
}

// MaxCombinationsLimit is the largest search-space cap a request may ask for.
const MaxCombinationsLimit = 10_000_000

// DefaultSettings returns the default optimization settings.
func DefaultSettings() Settings {
	return Settings{
		Priority:                PriorityLowestTotalCost,
		MaxShops:                3,
		SuggestQuantities:       true,
		MinSavingsThreshold:     100, // 1.00 in minor units
		MaxQuantityMultiplier:   2.0,
		ConsiderFreeShipping:    true,
		MaxCombinations:         10000,
		AllowSubstitutes:        true,
		MaxPriceIncreasePercent: 20.0,
		MaxSubstitutesPerNeed:   3,
		Seed:                    42,
	}
}

// Validate validates the optimization request and returns an error if invalid.
// An empty basket is not an error; it is reported as a Result.
func (r *OptimizeRequest) Validate(maxLines int) error {
	if len(r.Lines) > maxLines {
		return ErrInvalidRequest{Field: "lines", Reason: "exceeds maximum allowed", Index: -1}
	}
	for i, line := range r.Lines {
		if line == nil || strings.TrimSpace(line.ProductID) == "" {
			return ErrInvalidRequest{Field: "lines", Reason: fmt.Sprintf("line at index %d has invalid productID", i), Index: i}
		}
		if line.Quantity <= 0 {
			return ErrInvalidRequest{Field: "lines", Reason: fmt.Sprintf("line at index %d has invalid quantity", i), Index: i}
		}
		if line.Substitutes.MaxPriceIncreasePercent < 0 {
			return ErrInvalidRequest{Field: "lines", Reason: fmt.Sprintf("line at index %d has negative price increase cap", i), Index: i}
		}
	}
	s := r.Settings
	if s.MaxCombinations < 1 {
		return ErrInvalidRequest{Field: "settings.maxCombinations", Reason: "must be at least 1", Index: -1}
	}
	if s.MaxCombinations > MaxCombinationsLimit {
		return ErrInvalidRequest{Field: "settings.maxCombinations", Reason: fmt.Sprintf("must not exceed %d", MaxCombinationsLimit), Index: -1}
	}
	if s.MaxSubstitutesPerNeed < 0 {
		return ErrInvalidRequest{Field: "settings.maxSubstitutesPerNeed", Reason: "must be non-negative", Index: -1}
	}
	if s.MaxPriceIncreasePercent < 0 {
		return ErrInvalidRequest{Field: "settings.maxPriceIncreasePercent", Reason: "must be non-negative", Index: -1}
	}
	if s.MinSavingsThreshold < 0 {
		return ErrInvalidRequest{Field: "settings.minSavingsThreshold", Reason: "must be non-negative", Index: -1}
	}
	return nil
}

// ErrInvalidRequest is returned when the optimization request is invalid.
type ErrInvalidRequest struct {
	Field  string
	Reason string
	Index  int
}

func (e ErrInvalidRequest) Error() string {
	return e.Field + ": " + e.Reason
}
