package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/optimizer"
)

// ============================================================================
// Basket Optimization Endpoints
// ============================================================================

// OptimizeRequest is the body of POST /internal/basket/optimize.
// Exactly one of BasketID and Lines must be set.
type OptimizeRequest struct {
	BasketID string                    `json:"basketId,omitempty" example:"weekly"`
	Lines    []catalog.LineDocument    `json:"lines,omitempty"`
	Settings *catalog.SettingsDocument `json:"settings,omitempty"`
}

// LineItemResponse is one purchase in a plan.
type LineItemResponse struct {
	ProductID         string `json:"productId"`
	Name              string `json:"name"`
	ShopID            string `json:"shopId"`
	Quantity          int    `json:"quantity"`
	RequestedQuantity int    `json:"requestedQuantity"`
	UnitPrice         int64  `json:"unitPrice"`
	Total             int64  `json:"total"`
	IsSubstitute      bool   `json:"isSubstitute"`
	IsGroup           bool   `json:"isGroup"`
	SubstituteReason  string `json:"substituteReason,omitempty"`
}

// ShopResponse summarizes the items bought at one shop.
type ShopResponse struct {
	ShopID                string `json:"shopId"`
	Subtotal              int64  `json:"subtotal"`
	ShippingCost          int64  `json:"shippingCost"`
	FreeShippingThreshold *int64 `json:"freeShippingThreshold,omitempty"`
	Total                 int64  `json:"total"`
}

// PlanResponse is a priced purchase plan. Amounts are in minor units.
type PlanResponse struct {
	LineItems []*LineItemResponse `json:"lineItems"`
	Shops     []*ShopResponse     `json:"shops"`
	TotalCost int64               `json:"totalCost"`
	ShopCount int                 `json:"shopCount"`
	Currency  string              `json:"currency"`
}

// QuantitySuggestionResponse is one applied free-shipping quantity increase.
type QuantitySuggestionResponse struct {
	ShopID         string `json:"shopId"`
	ProductID      string `json:"productId"`
	AddedUnits     int    `json:"addedUnits"`
	NewQuantity    int    `json:"newQuantity"`
	AdditionalCost int64  `json:"additionalCost"`
	ShippingSaved  int64  `json:"shippingSaved"`
	NetSavings     int64  `json:"netSavings"`
}

// UnfulfillableResponse names a need with no offer in any shop.
type UnfulfillableResponse struct {
	ProductIDs []string `json:"productIds"`
	Quantity   int      `json:"quantity"`
	Kind       string   `json:"kind"`
}

// TraceEventResponse is one diagnostic step of a run.
type TraceEventResponse struct {
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// OptimizeResponse is the outcome of an optimization. Failures such as an
// infeasible shop limit are reported with ok=false and a reason, not as errors.
type OptimizeResponse struct {
	RunID                string                        `json:"runId"`
	OK                   bool                          `json:"ok"`
	Reason               string                        `json:"reason,omitempty" enums:"empty_basket,no_offers,shop_limit_infeasible,search_exhausted"`
	MinShopsRequired     int                           `json:"minShopsRequired,omitempty"`
	Plan                 *PlanResponse                 `json:"plan,omitempty"`
	OptimizationsApplied int                           `json:"optimizationsApplied"`
	SubstitutesUsed      int                           `json:"substitutesUsed"`
	QuantitySuggestions  []*QuantitySuggestionResponse `json:"quantitySuggestions,omitempty"`
	Unfulfillable        []*UnfulfillableResponse      `json:"unfulfillable,omitempty"`
	Strategy             string                        `json:"strategy"`
	Evaluated            int                           `json:"evaluated"`
	Snapshot             time.Time                     `json:"snapshotLoadedAt"`
	Cached               bool                          `json:"cached"`
	Trace                []*TraceEventResponse         `json:"trace,omitempty"`
}

// BasketStore loads stored baskets.
type BasketStore interface {
	LoadBasket(ctx context.Context, basketID string) (*catalog.BasketDocument, error)
}

// BasketConfig configures the basket endpoints.
type BasketConfig struct {
	Defaults       optimizer.Settings
	MemoTTL        time.Duration // Zero disables memoization
	MaxConcurrent  int64         // Concurrent optimizations; <= 0 means unlimited
	AcquireTimeout time.Duration // How long a request waits for a slot
	IncludeTrace   bool
}

// BasketService holds the collaborators of the basket endpoints.
type BasketService struct {
	cache     *catalog.SnapshotCache
	store     BasketStore
	converter *optimizer.Converter
	engine    *optimizer.Config
	metrics   *optimizer.MetricsRecorder
	config    BasketConfig
	memo      *gocache.Cache
	slots     *semaphore.Weighted
}

// NewBasketService creates the basket endpoint service. store may be nil when
// baskets are only sent inline.
func NewBasketService(cache *catalog.SnapshotCache, store BasketStore, converter *optimizer.Converter, engine *optimizer.Config, metrics *optimizer.MetricsRecorder, config BasketConfig) *BasketService {
	s := &BasketService{
		cache:     cache,
		store:     store,
		converter: converter,
		engine:    engine,
		metrics:   metrics,
		config:    config,
	}
	if config.MemoTTL > 0 {
		s.memo = gocache.New(config.MemoTTL, 2*config.MemoTTL)
	}
	if config.MaxConcurrent > 0 {
		s.slots = semaphore.NewWeighted(config.MaxConcurrent)
	}
	return s
}

// Global basket service (initialized by the application)
var basketService *BasketService

// InitBasket installs the basket service used by the handlers.
// This should be called during application startup
func InitBasket(s *BasketService) {
	basketService = s
}

// OptimizeBasket handles basket optimization
// @Summary Optimize a basket
// @Description Finds the cheapest way to buy a basket across shops, honoring the shop limit, substitutes and free-shipping thresholds
// @Tags basket
// @Accept json
// @Produce json
// @Param request body OptimizeRequest true "Stored basket id or inline lines, plus settings"
// @Success 200 {object} OptimizeResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Basket not found"
// @Failure 503 {object} map[string]string "Catalog unavailable or optimizer busy"
// @Failure 504 {object} map[string]string "Optimization timed out"
// @Router /internal/basket/optimize [post]
func OptimizeBasket(c *gin.Context) {
	if basketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Basket service not initialized"})
		return
	}

	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := basketService.Optimize(c.Request.Context(), &req)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("component", "basket_handler").Msg("Optimization failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, resp)
}

var (
	errBasketSource = errors.New("exactly one of basketId and lines is required")
	errBusy         = errors.New("optimizer busy")
	errNoStore      = errors.New("stored baskets are not configured")
)

// Optimize resolves the request against the current snapshot and runs the optimizer.
func (s *BasketService) Optimize(ctx context.Context, req *OptimizeRequest) (*OptimizeResponse, error) {
	hasID := strings.TrimSpace(req.BasketID) != ""
	if hasID == (len(req.Lines) > 0) {
		return nil, errBasketSource
	}

	base := s.config.Defaults
	lineDocs := req.Lines
	if hasID {
		if s.store == nil {
			return nil, errNoStore
		}
		stored, err := s.store.LoadBasket(ctx, req.BasketID)
		if err != nil {
			return nil, err
		}
		lineDocs = stored.Lines
		if base, err = stored.Settings.Apply(base); err != nil {
			return nil, err
		}
	}

	// Request settings override the stored basket's.
	settings, err := req.Settings.Apply(base)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, lineDocs, settings)
}

func (s *BasketService) run(ctx context.Context, lineDocs []catalog.LineDocument, settings optimizer.Settings) (*OptimizeResponse, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	lines := catalog.BuildLines(lineDocs, settings)
	key, err := memoKey(snap, lines, settings)
	if err != nil {
		return nil, err
	}
	if s.memo != nil {
		if hit, ok := s.memo.Get(key); ok {
			cached := *hit.(*OptimizeResponse)
			cached.Cached = true
			return &cached, nil
		}
	}

	if s.slots != nil {
		acquireCtx := ctx
		if s.config.AcquireTimeout > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(ctx, s.config.AcquireTimeout)
			defer cancel()
		}
		if err := s.slots.Acquire(acquireCtx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errBusy
		}
		defer s.slots.Release(1)
	}

	opt := optimizer.NewOptimizer(snap, snap, s.converter, s.engine, s.metrics)
	res, err := opt.Optimize(ctx, snap.Request(lines, settings))
	if err != nil {
		return nil, err
	}

	resp := NewOptimizeResponse(res, s.converter.Reference(), s.config.IncludeTrace)
	resp.Snapshot = snap.LoadedAt()
	if s.memo != nil {
		s.memo.SetDefault(key, resp)
	}
	return resp, nil
}

// memoKey identifies a request against one snapshot.
func memoKey(snap *catalog.Snapshot, lines []*optimizer.BasketLine, settings optimizer.Settings) (string, error) {
	payload, err := json.Marshal(struct {
		Lines    []*optimizer.BasketLine
		Settings optimizer.Settings
	}{lines, settings})
	if err != nil {
		return "", fmt.Errorf("failed to encode memo key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%d:%s", snap.Source(), snap.LoadedAt().UnixNano(), hex.EncodeToString(sum[:])), nil
}

func errorStatus(err error) (int, string) {
	var invalid optimizer.ErrInvalidRequest
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, errBasketSource):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrBasketNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errNoStore):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, catalog.ErrSnapshotUnavailable), errors.Is(err, catalog.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "Catalog unavailable"
	case errors.Is(err, errBusy):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Optimization timed out"
	case errors.Is(err, context.Canceled):
		return 499, "Request cancelled"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// NewOptimizeResponse converts an optimizer result into its wire form.
func NewOptimizeResponse(res *optimizer.Result, currency string, includeTrace bool) *OptimizeResponse {
	resp := &OptimizeResponse{
		RunID:                res.RunID,
		OK:                   res.OK,
		Reason:               res.Reason.String(),
		OptimizationsApplied: res.OptimizationsApplied,
		SubstitutesUsed:      res.SubstitutesUsed,
		Strategy:             res.Strategy.String(),
		Evaluated:            res.Evaluated,
	}
	if res.Suggestion != nil {
		resp.MinShopsRequired = res.Suggestion.MinShopsRequired
	}

	if p := res.Plan; p != nil {
		plan := &PlanResponse{
			LineItems: make([]*LineItemResponse, len(p.LineItems)),
			Shops:     make([]*ShopResponse, len(p.Shops)),
			TotalCost: p.TotalCost,
			ShopCount: p.ShopCount,
			Currency:  currency,
		}
		for i, item := range p.LineItems {
			plan.LineItems[i] = &LineItemResponse{
				ProductID:         item.ProductID,
				Name:              item.Name,
				ShopID:            item.ShopID,
				Quantity:          item.Quantity,
				RequestedQuantity: item.RequestedQuantity,
				UnitPrice:         item.UnitPrice,
				Total:             item.Total,
				IsSubstitute:      item.IsSubstitute,
				IsGroup:           item.IsGroup,
				SubstituteReason:  item.SubstituteReason,
			}
		}
		for i, shop := range p.Shops {
			plan.Shops[i] = &ShopResponse{
				ShopID:                shop.ShopID,
				Subtotal:              shop.Subtotal,
				ShippingCost:          shop.ShippingCost,
				FreeShippingThreshold: shop.FreeShippingThreshold,
				Total:                 shop.Total(),
			}
		}
		resp.Plan = plan
	}

	for _, q := range res.QuantitySuggestions {
		resp.QuantitySuggestions = append(resp.QuantitySuggestions, &QuantitySuggestionResponse{
			ShopID:         q.ShopID,
			ProductID:      q.ProductID,
			AddedUnits:     q.AddedUnits,
			NewQuantity:    q.NewQuantity,
			AdditionalCost: q.AdditionalCost,
			ShippingSaved:  q.ShippingSaved,
			NetSavings:     q.NetSavings,
		})
	}

	for _, need := range res.Unfulfillable {
		resp.Unfulfillable = append(resp.Unfulfillable, &UnfulfillableResponse{
			ProductIDs: need.ProductIDs(),
			Quantity:   need.Quantity,
			Kind:       need.Kind.String(),
		})
	}

	if includeTrace {
		for _, ev := range res.Trace {
			resp.Trace = append(resp.Trace, &TraceEventResponse{
				Stage:   ev.Stage,
				Message: ev.Message,
				Attrs:   ev.Attrs,
			})
		}
	}
	return resp
}

// ============================================================================
// Catalog Cache Endpoints
// ============================================================================

// CacheHealth reports the state of the catalog snapshot cache
// @Summary Catalog cache health
// @Tags basket
// @Produce json
// @Success 200 {object} catalog.CacheHealth
// @Failure 503 {object} catalog.CacheHealth "No snapshot loaded"
// @Router /internal/basket/cache/health [get]
func CacheHealth(c *gin.Context) {
	if basketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Basket service not initialized"})
		return
	}

	health := basketService.cache.Health()
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// CacheRefresh reloads the catalog snapshot
// @Summary Refresh catalog cache
// @Tags basket
// @Produce json
// @Success 200 {object} catalog.CacheHealth
// @Failure 503 {object} map[string]string "Reload failed"
// @Router /internal/basket/cache/refresh [post]
func CacheRefresh(c *gin.Context) {
	if basketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Basket service not initialized"})
		return
	}

	if c.Query("resetBreaker") == "true" {
		basketService.cache.ResetCircuitBreaker()
	}

	if _, err := basketService.cache.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to refresh cache: " + err.Error()})
		return
	}
	if basketService.memo != nil {
		basketService.memo.Flush()
	}

	c.JSON(http.StatusOK, basketService.cache.Health())
}
