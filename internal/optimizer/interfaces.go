package optimizer

import (
	"context"
)

// Alternative is a ranked substitute product.
// Lower Priority values rank higher (0 = primary).
type Alternative struct {
	ProductID string
	Priority  int
}

// SubstituteRegistry defines the interface for substitute group lookups.
// The registry is owned by the catalog; the optimizer only reads it.
type SubstituteRegistry interface {
	// GroupOf returns the substitute group of a product, if it has one.
	GroupOf(productID string) (string, bool)

	// Alternatives returns the other products of the product's group,
	// sorted by priority (best first). The product itself is excluded.
	Alternatives(productID string) []Alternative

	// Members returns all product IDs of a group.
	Members(groupID string) []string
}

// ProductCatalog resolves display information for products.
type ProductCatalog interface {
	// NameOf returns the display name of a product, or "" if unknown.
	NameOf(productID string) string
}

// BasketOptimizer is the main interface for basket optimization operations.
type BasketOptimizer interface {
	// Optimize turns a basket plus prices and shop rules into a purchase plan.
	Optimize(ctx context.Context, req *OptimizeRequest) (*Result, error)
}

// noRegistry is used when no registry is configured.
type noRegistry struct{}

func (noRegistry) GroupOf(string) (string, bool)     { return "", false }
func (noRegistry) Alternatives(string) []Alternative { return nil }
func (noRegistry) Members(string) []string           { return nil }

// noCatalog is used when no catalog is configured.
type noCatalog struct{}

func (noCatalog) NameOf(string) string { return "" }
