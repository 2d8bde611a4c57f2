package catalog

import (
	"errors"
	"sort"
	"time"

	"github.com/kosarica/basket-service/internal/optimizer"
)

var (
	// ErrSnapshotUnavailable is returned when no catalog snapshot has been loaded yet.
	ErrSnapshotUnavailable = errors.New("catalog snapshot unavailable")

	// ErrBasketNotFound is returned when a stored basket does not exist.
	ErrBasketNotFound = errors.New("basket not found")
)

// Member is one product of a substitute group with its rank.
// Lower priorities rank higher.
type Member struct {
	ProductID string `json:"productId"`
	Priority  int    `json:"priority"`
}

// Group is a set of interchangeable products.
type Group struct {
	ID      string   `json:"id"`
	Members []Member `json:"members"`
}

// Snapshot is an immutable view of the catalog: latest prices, shop delivery
// rules, substitute groups and product names. It is built once and then only
// read, so it is safe for concurrent use.
type Snapshot struct {
	prices  []optimizer.PriceRecord
	rules   map[string]optimizer.ShopRule
	groupOf map[string]string
	members map[string][]Member
	names   map[string]string

	loadedAt time.Time
	source   string
}

var (
	_ optimizer.SubstituteRegistry = (*Snapshot)(nil)
	_ optimizer.ProductCatalog     = (*Snapshot)(nil)
)

// NewSnapshot builds a snapshot. Group members are ranked by priority, ties
// keeping their input order. A product listed in more than one group stays in
// the first one.
func NewSnapshot(source string, prices []optimizer.PriceRecord, rules map[string]optimizer.ShopRule, groups []Group, names map[string]string) *Snapshot {
	s := &Snapshot{
		prices:   prices,
		rules:    rules,
		groupOf:  make(map[string]string),
		members:  make(map[string][]Member, len(groups)),
		names:    names,
		loadedAt: time.Now(),
		source:   source,
	}
	if s.rules == nil {
		s.rules = make(map[string]optimizer.ShopRule)
	}
	if s.names == nil {
		s.names = make(map[string]string)
	}

	for _, g := range groups {
		members := make([]Member, 0, len(g.Members))
		for _, m := range g.Members {
			if _, taken := s.groupOf[m.ProductID]; taken {
				continue
			}
			s.groupOf[m.ProductID] = g.ID
			members = append(members, m)
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Priority < members[j].Priority
		})
		s.members[g.ID] = append(s.members[g.ID], members...)
	}
	return s
}

// GroupOf returns the substitute group of a product.
func (s *Snapshot) GroupOf(productID string) (string, bool) {
	g, ok := s.groupOf[productID]
	return g, ok
}

// Alternatives returns the other members of the product's group, best first.
func (s *Snapshot) Alternatives(productID string) []optimizer.Alternative {
	groupID, ok := s.groupOf[productID]
	if !ok {
		return nil
	}
	members := s.members[groupID]
	out := make([]optimizer.Alternative, 0, len(members))
	for _, m := range members {
		if m.ProductID == productID {
			continue
		}
		out = append(out, optimizer.Alternative{ProductID: m.ProductID, Priority: m.Priority})
	}
	return out
}

// Members returns every product of a group, best first.
func (s *Snapshot) Members(groupID string) []string {
	members := s.members[groupID]
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.ProductID
	}
	return out
}

// NameOf returns the display name of a product, or "".
func (s *Snapshot) NameOf(productID string) string {
	return s.names[productID]
}

// Prices returns the latest price records. Callers must not modify the slice.
func (s *Snapshot) Prices() []optimizer.PriceRecord {
	return s.prices
}

// ShopRules returns the delivery rules by shop. Callers must not modify the map.
func (s *Snapshot) ShopRules() map[string]optimizer.ShopRule {
	return s.rules
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Source names where the snapshot came from (file path or "postgres").
func (s *Snapshot) Source() string {
	return s.source
}

// Stats summarizes the snapshot contents.
type Stats struct {
	Prices int `json:"prices"`
	Shops  int `json:"shops"`
	Groups int `json:"groups"`
	Names  int `json:"products"`
}

// Stats returns the number of records in the snapshot.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Prices: len(s.prices),
		Shops:  len(s.rules),
		Groups: len(s.members),
		Names:  len(s.names),
	}
}

// Request assembles an optimization request for a basket against this snapshot.
func (s *Snapshot) Request(lines []*optimizer.BasketLine, settings optimizer.Settings) *optimizer.OptimizeRequest {
	return &optimizer.OptimizeRequest{
		Lines:     lines,
		Prices:    s.prices,
		ShopRules: s.rules,
		Settings:  settings,
	}
}
