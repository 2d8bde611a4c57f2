package catalog

import (
	"github.com/kosarica/basket-service/internal/optimizer"
)

// PriceDocument is one price row in a snapshot document. Price is in minor units.
type PriceDocument struct {
	ProductID string `json:"productId" jsonschema:"required"`
	ShopID    string `json:"shopId" jsonschema:"required"`
	Price     int64  `json:"price" jsonschema:"required,minimum=0"`
	Currency  string `json:"currency,omitempty" jsonschema:"minLength=3,maxLength=3"`
}

// ShopDocument carries a shop's delivery rule. Absent fields mean no rule.
type ShopDocument struct {
	ID                    string `json:"id" jsonschema:"required"`
	Name                  string `json:"name,omitempty"`
	FreeShippingThreshold *int64 `json:"freeShippingThreshold,omitempty"`
	ShippingCost          *int64 `json:"shippingCost,omitempty"`
}

// ProductDocument names a product.
type ProductDocument struct {
	ID   string `json:"id" jsonschema:"required"`
	Name string `json:"name"`
}

// SnapshotDocument is the on-disk catalog used by the CLI and by seeding.
type SnapshotDocument struct {
	Prices   []PriceDocument   `json:"prices"`
	Shops    []ShopDocument    `json:"shops,omitempty"`
	Groups   []Group           `json:"groups,omitempty"`
	Products []ProductDocument `json:"products,omitempty"`
}

// Snapshot converts the document into an immutable snapshot.
func (d *SnapshotDocument) Snapshot(source string) *Snapshot {
	prices := make([]optimizer.PriceRecord, len(d.Prices))
	for i, p := range d.Prices {
		prices[i] = optimizer.PriceRecord{
			ProductID: p.ProductID,
			ShopID:    p.ShopID,
			Price:     p.Price,
			Currency:  p.Currency,
		}
	}

	rules := make(map[string]optimizer.ShopRule, len(d.Shops))
	for _, s := range d.Shops {
		rules[s.ID] = optimizer.ShopRule{
			FreeShippingThreshold: s.FreeShippingThreshold,
			ShippingCost:          s.ShippingCost,
		}
	}

	names := make(map[string]string, len(d.Products))
	for _, p := range d.Products {
		names[p.ID] = p.Name
	}

	return NewSnapshot(source, prices, rules, d.Groups, names)
}

// LineDocument is one requested basket line.
// Missing substitute fields fall back to the request settings.
type LineDocument struct {
	ProductID               string   `json:"productId" jsonschema:"required" example:"milk-2l"`
	Name                    string   `json:"name,omitempty" example:"Fresh milk 2L"`
	Quantity                int      `json:"quantity" jsonschema:"required,minimum=1" example:"2"`
	AllowSubstitutes        *bool    `json:"allowSubstitutes,omitempty"`
	MaxPriceIncreasePercent *float64 `json:"maxPriceIncreasePercent,omitempty" jsonschema:"minimum=0"`
}

// SubstituteSettingsDocument holds the substitute sub-options.
type SubstituteSettingsDocument struct {
	AllowSubstitutes        *bool    `json:"allowSubstitutes,omitempty"`
	MaxPriceIncreasePercent *float64 `json:"maxPriceIncreasePercent,omitempty" jsonschema:"minimum=0"`
	MaxSubstitutesPerNeed   *int     `json:"maxSubstitutesPerNeed,omitempty" jsonschema:"minimum=0"`
}

// SettingsDocument is the external form of the optimization settings.
// Every field is optional; absent fields keep their defaults.
type SettingsDocument struct {
	Priority              *string                     `json:"priority,omitempty" jsonschema:"enum=lowest_total_cost,enum=fewest_shops,enum=balanced"`
	MaxShops              *int                        `json:"maxShops,omitempty"`
	SuggestQuantities     *bool                       `json:"suggestQuantities,omitempty"`
	MinSavingsThreshold   *int64                      `json:"minSavingsThreshold,omitempty" jsonschema:"minimum=0"`
	MaxQuantityMultiplier *float64                    `json:"maxQuantityMultiplier,omitempty" jsonschema:"minimum=1"`
	ConsiderFreeShipping  *bool                       `json:"considerFreeShipping,omitempty"`
	MaxCombinations       *int                        `json:"maxCombinations,omitempty" jsonschema:"minimum=1"`
	Substitutes           *SubstituteSettingsDocument `json:"substitutes,omitempty"`
	Seed                  *int64                      `json:"seed,omitempty"`
}

// Apply overlays the document on base and returns the resulting settings.
func (d *SettingsDocument) Apply(base optimizer.Settings) (optimizer.Settings, error) {
	out := base
	if d == nil {
		return out, nil
	}
	if d.Priority != nil {
		p, err := optimizer.ParsePriority(*d.Priority)
		if err != nil {
			return out, err
		}
		out.Priority = p
	}
	if d.MaxShops != nil {
		out.MaxShops = *d.MaxShops
	}
	if d.SuggestQuantities != nil {
		out.SuggestQuantities = *d.SuggestQuantities
	}
	if d.MinSavingsThreshold != nil {
		out.MinSavingsThreshold = *d.MinSavingsThreshold
	}
	if d.MaxQuantityMultiplier != nil {
		out.MaxQuantityMultiplier = *d.MaxQuantityMultiplier
	}
	if d.ConsiderFreeShipping != nil {
		out.ConsiderFreeShipping = *d.ConsiderFreeShipping
	}
	if d.MaxCombinations != nil {
		out.MaxCombinations = *d.MaxCombinations
	}
	if d.Seed != nil {
		out.Seed = *d.Seed
	}
	if sub := d.Substitutes; sub != nil {
		if sub.AllowSubstitutes != nil {
			out.AllowSubstitutes = *sub.AllowSubstitutes
		}
		if sub.MaxPriceIncreasePercent != nil {
			out.MaxPriceIncreasePercent = *sub.MaxPriceIncreasePercent
		}
		if sub.MaxSubstitutesPerNeed != nil {
			out.MaxSubstitutesPerNeed = *sub.MaxSubstitutesPerNeed
		}
	}
	return out, nil
}

// BuildLines converts line documents into basket lines. Lines without their
// own substitute policy allow substitutes up to the settings' price cap.
func BuildLines(docs []LineDocument, settings optimizer.Settings) []*optimizer.BasketLine {
	lines := make([]*optimizer.BasketLine, len(docs))
	for i, d := range docs {
		policy := optimizer.SubstitutePolicy{
			AllowSubstitutes:        true,
			MaxPriceIncreasePercent: settings.MaxPriceIncreasePercent,
		}
		if d.AllowSubstitutes != nil {
			policy.AllowSubstitutes = *d.AllowSubstitutes
		}
		if d.MaxPriceIncreasePercent != nil {
			policy.MaxPriceIncreasePercent = *d.MaxPriceIncreasePercent
		}
		lines[i] = &optimizer.BasketLine{
			ProductID:   d.ProductID,
			Name:        d.Name,
			Quantity:    d.Quantity,
			Substitutes: policy,
		}
	}
	return lines
}

// BasketDocument is a stored or on-disk basket with its optimization settings.
type BasketDocument struct {
	ID       string           `json:"id,omitempty"`
	Lines    []LineDocument   `json:"lines"`
	Settings SettingsDocument `json:"settings,omitempty"`
}

// Resolve applies the basket's settings on top of base and builds its lines.
func (b *BasketDocument) Resolve(base optimizer.Settings) ([]*optimizer.BasketLine, optimizer.Settings, error) {
	settings, err := b.Settings.Apply(base)
	if err != nil {
		return nil, settings, err
	}
	return BuildLines(b.Lines, settings), settings, nil
}
