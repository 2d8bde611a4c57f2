package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/basket-service/internal/optimizer"
)

func testSnapshot() *Snapshot {
	groups := []Group{
		{ID: "milk", Members: []Member{
			{ProductID: "milk-c", Priority: 2},
			{ProductID: "milk-a", Priority: 0},
			{ProductID: "milk-b", Priority: 1},
		}},
		{ID: "dairy", Members: []Member{
			{ProductID: "milk-a", Priority: 0},
			{ProductID: "yoghurt", Priority: 0},
		}},
	}
	return NewSnapshot("test", nil, nil, groups, map[string]string{"milk-a": "Fresh milk"})
}

func TestSnapshotRanksGroupMembers(t *testing.T) {
	s := testSnapshot()

	assert.Equal(t, []string{"milk-a", "milk-b", "milk-c"}, s.Members("milk"))

	alts := s.Alternatives("milk-b")
	require.Len(t, alts, 2)
	assert.Equal(t, optimizer.Alternative{ProductID: "milk-a", Priority: 0}, alts[0])
	assert.Equal(t, optimizer.Alternative{ProductID: "milk-c", Priority: 2}, alts[1])
}

func TestSnapshotProductStaysInFirstGroup(t *testing.T) {
	s := testSnapshot()

	group, ok := s.GroupOf("milk-a")
	require.True(t, ok)
	assert.Equal(t, "milk", group)
	assert.Equal(t, []string{"yoghurt"}, s.Members("dairy"))
}

func TestSnapshotUnknownProduct(t *testing.T) {
	s := testSnapshot()

	_, ok := s.GroupOf("bread")
	assert.False(t, ok)
	assert.Nil(t, s.Alternatives("bread"))
	assert.Empty(t, s.Members("bread"))
	assert.Equal(t, "", s.NameOf("bread"))
	assert.Equal(t, "Fresh milk", s.NameOf("milk-a"))
}

func TestSnapshotRequest(t *testing.T) {
	prices := []optimizer.PriceRecord{{ProductID: "a", ShopID: "A", Price: 100, Currency: "EUR"}}
	s := NewSnapshot("test", prices, nil, nil, nil)

	lines := []*optimizer.BasketLine{{ProductID: "a", Quantity: 1}}
	req := s.Request(lines, optimizer.DefaultSettings())

	assert.Equal(t, lines, req.Lines)
	assert.Equal(t, prices, req.Prices)
	assert.NotNil(t, req.ShopRules)
	assert.Equal(t, Stats{Prices: 1}, s.Stats())
}
