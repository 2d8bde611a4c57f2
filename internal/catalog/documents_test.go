package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/basket-service/internal/optimizer"
)

func TestLoadSnapshotFile(t *testing.T) {
	s, err := LoadSnapshotFile("testdata/snapshot.json")
	require.NoError(t, err)

	assert.Equal(t, "testdata/snapshot.json", s.Source())
	assert.Equal(t, Stats{Prices: 4, Shops: 2, Groups: 1, Names: 2}, s.Stats())
	assert.Equal(t, []string{"milk-a", "milk-b"}, s.Members("milk"))
	assert.Equal(t, "White bread", s.NameOf("bread"))

	konzum := s.ShopRules()["konzum"]
	require.NotNil(t, konzum.FreeShippingThreshold)
	assert.Equal(t, int64(5000), *konzum.FreeShippingThreshold)
	assert.Equal(t, int64(399), *konzum.ShippingCost)

	lidl := s.ShopRules()["lidl"]
	assert.Nil(t, lidl.FreeShippingThreshold)
	assert.Nil(t, lidl.ShippingCost)
}

func TestLoadSnapshotFileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prices": [], "stores": []}`), 0o644))

	_, err := LoadSnapshotFile(path)
	assert.Error(t, err)
}

func TestLoadSnapshotFileMissing(t *testing.T) {
	_, err := LoadSnapshotFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBasketDocumentResolve(t *testing.T) {
	doc, err := LoadBasketFile("testdata/basket.json")
	require.NoError(t, err)

	lines, settings, err := doc.Resolve(optimizer.DefaultSettings())
	require.NoError(t, err)

	assert.Equal(t, optimizer.PriorityFewestShops, settings.Priority)
	assert.Equal(t, 1, settings.MaxShops)
	assert.Equal(t, 10.0, settings.MaxPriceIncreasePercent)
	assert.True(t, settings.SuggestQuantities)

	require.Len(t, lines, 2)
	assert.Equal(t, "milk-a", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Substitutes.AllowSubstitutes)
	assert.Equal(t, 10.0, lines[0].Substitutes.MaxPriceIncreasePercent)
	assert.False(t, lines[1].Substitutes.AllowSubstitutes)
}

func TestSettingsDocumentApply(t *testing.T) {
	base := optimizer.DefaultSettings()

	t.Run("nil keeps base", func(t *testing.T) {
		var doc *SettingsDocument
		out, err := doc.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, base, out)
	})

	t.Run("overrides", func(t *testing.T) {
		maxShops := 0
		seed := int64(7)
		off := false
		perNeed := 1
		doc := &SettingsDocument{
			MaxShops:             &maxShops,
			Seed:                 &seed,
			ConsiderFreeShipping: &off,
			Substitutes:          &SubstituteSettingsDocument{AllowSubstitutes: &off, MaxSubstitutesPerNeed: &perNeed},
		}
		out, err := doc.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, 0, out.MaxShops)
		assert.Equal(t, int64(7), out.Seed)
		assert.False(t, out.ConsiderFreeShipping)
		assert.False(t, out.AllowSubstitutes)
		assert.Equal(t, 1, out.MaxSubstitutesPerNeed)
		assert.Equal(t, base.MaxCombinations, out.MaxCombinations)
	})

	t.Run("unknown priority", func(t *testing.T) {
		p := "cheapest"
		_, err := (&SettingsDocument{Priority: &p}).Apply(base)
		var invalid optimizer.ErrInvalidRequest
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "priority", invalid.Field)
	})
}

func TestBuildLinesDefaults(t *testing.T) {
	settings := optimizer.DefaultSettings()
	settings.MaxPriceIncreasePercent = 15

	limit := 5.0
	lines := BuildLines([]LineDocument{
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 3, MaxPriceIncreasePercent: &limit},
	}, settings)

	require.Len(t, lines, 2)
	assert.Equal(t, optimizer.SubstitutePolicy{AllowSubstitutes: true, MaxPriceIncreasePercent: 15}, lines[0].Substitutes)
	assert.Equal(t, optimizer.SubstitutePolicy{AllowSubstitutes: true, MaxPriceIncreasePercent: 5}, lines[1].Substitutes)
}
