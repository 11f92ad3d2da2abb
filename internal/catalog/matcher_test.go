package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	productsByGTIN map[string]Product
	itemsBySKU     map[string]SupplierItem
	candidates     []Product
}

func (f *fakeIndex) ProductByGTIN(_ context.Context, gtin string) (Product, error) {
	if p, ok := f.productsByGTIN[gtinKey(gtin)]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (f *fakeIndex) SupplierItemBySKU(_ context.Context, supplierID uuid.UUID, sku string) (SupplierItem, error) {
	if it, ok := f.itemsBySKU[strings.ToLower(sku)]; ok && it.SupplierID == supplierID {
		return it, nil
	}
	return SupplierItem{}, ErrNotFound
}

func (f *fakeIndex) ProductsByNameTokens(_ context.Context, _ []string, _ int) ([]Product, error) {
	return f.candidates, nil
}

func TestMatchGTINTierWins(t *testing.T) {
	productID := uuid.New()
	idx := &fakeIndex{
		productsByGTIN: map[string]Product{
			gtinKey("4006381333931"): {ID: productID, Name: "Gauze Pads 10x10"},
		},
		itemsBySKU: map[string]SupplierItem{
			"gz-100": {ID: uuid.New(), ProductID: uuid.New()},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	result, err := m.Match(context.Background(), uuid.New(), ImportRow{GTIN: "4006381333931", SKU: "GZ-100", Name: "Gauze Pads"})
	require.NoError(t, err)
	require.Equal(t, productID, result.ProductID)
	require.Equal(t, MatchGTINExact, result.Method)
	require.Equal(t, 1.0, result.Confidence)
}

func TestMatchGTINEquivalentAcrossLengths(t *testing.T) {
	productID := uuid.New()
	idx := &fakeIndex{
		productsByGTIN: map[string]Product{
			gtinKey("4006381333931"): {ID: productID},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	// Same article coded as GTIN-14 with a leading zero.
	result, err := m.Match(context.Background(), uuid.New(), ImportRow{GTIN: "04006381333931", Name: "Gauze"})
	require.NoError(t, err)
	require.Equal(t, productID, result.ProductID)
	require.Equal(t, MatchGTINExact, result.Method)
}

func TestMatchInvalidGTINFallsThroughToSKU(t *testing.T) {
	supplierID := uuid.New()
	productID := uuid.New()
	idx := &fakeIndex{
		itemsBySKU: map[string]SupplierItem{
			"gz-100": {ID: uuid.New(), SupplierID: supplierID, ProductID: productID},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	result, err := m.Match(context.Background(), supplierID, ImportRow{GTIN: "123", SKU: "GZ-100", Name: "Gauze"})
	require.NoError(t, err)
	require.Equal(t, productID, result.ProductID)
	require.Equal(t, MatchSKUExact, result.Method)
	require.Equal(t, 0.95, result.Confidence)
}

func TestMatchSKUScopedToSupplier(t *testing.T) {
	idx := &fakeIndex{
		itemsBySKU: map[string]SupplierItem{
			"gz-100": {ID: uuid.New(), SupplierID: uuid.New(), ProductID: uuid.New()},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	result, err := m.Match(context.Background(), uuid.New(), ImportRow{SKU: "GZ-100", Name: "zzzz"})
	require.NoError(t, err)
	require.Equal(t, MatchNone, result.Method)
	require.False(t, result.Matched())
}

func TestMatchFuzzyNameAboveFloor(t *testing.T) {
	productID := uuid.New()
	idx := &fakeIndex{
		candidates: []Product{
			{ID: productID, Name: "Nitrile Examination Gloves", Brand: "MediSafe"},
			{ID: uuid.New(), Name: "Surgical Mask Type IIR", Brand: "ProtecPro"},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	result, err := m.Match(context.Background(), uuid.New(), ImportRow{Name: "Examination Gloves Nitrile", Brand: "MediSafe"})
	require.NoError(t, err)
	require.Equal(t, productID, result.ProductID)
	require.Equal(t, MatchFuzzyName, result.Method)
	require.Greater(t, result.Confidence, 0.5)
	require.LessOrEqual(t, result.Confidence, 1.0)
}

func TestMatchFuzzyBelowFloorIsNoMatch(t *testing.T) {
	idx := &fakeIndex{
		candidates: []Product{
			{ID: uuid.New(), Name: "Ultrasound Gel Bottle"},
		},
	}
	m := NewMatcher(idx, MatcherConfig{})

	result, err := m.Match(context.Background(), uuid.New(), ImportRow{Name: "Wooden Tongue Depressor"})
	require.NoError(t, err)
	require.Equal(t, MatchNone, result.Method)
	require.False(t, result.Matched())
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "sterile gauze 10x10cm", NormalizeName("  Sterile Gauze, 10x10cm!  ", ""))
	require.Equal(t, "kompressen steril hartmann", NormalizeName("Kompressen (steril)", "Hartmann"))
	// Diacritics fold to their base letters.
	require.Equal(t, "uberzug fur arzte", NormalizeName("Überzug für Ärzte", ""))
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, Similarity("nitrile gloves", "nitrile gloves"))
	require.Equal(t, 0.0, Similarity("", "nitrile gloves"))

	// Reordered tokens score via Dice overlap.
	require.Equal(t, 1.0, Similarity("gloves nitrile", "nitrile gloves"))

	// A small typo keeps Levenshtein similarity high.
	require.Greater(t, Similarity("nitrile gloves", "nitrile glovse"), 0.8)

	// Unrelated names stay low.
	require.Less(t, Similarity("nitrile gloves", "ultrasound gel"), 0.4)
}
