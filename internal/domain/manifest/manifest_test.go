package manifest

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

func testCatalog() tariff.Catalog {
	return tariff.NewCatalog([]tariff.CatalogItem{
		{ID: "shirt", Name: "Shirt", Category: "Men", Unit: tariff.UnitPiece, Kind: tariff.KindStandard},
		{ID: "blanket", Name: "Blanket", Category: "Household", Unit: tariff.UnitWeight, Kind: tariff.KindStandard},
	})
}

func TestCatalogEntry(t *testing.T) {
	e, err := CatalogEntry(testCatalog(), "shirt", 2, decimal.Zero, SelectIronOnly)
	require.NoError(t, err)
	assert.Equal(t, "Shirt", e.Name())
	assert.Equal(t, tariff.UnitPiece, e.Unit())
	assert.False(t, e.IsManual())

	_, err = CatalogEntry(testCatalog(), "tux", 1, decimal.Zero, SelectStandard)
	var nf *ItemNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "tux", nf.ItemID)
}

func TestEntry_Validate(t *testing.T) {
	item := testCatalog()["shirt"]

	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{"no item", Entry{Quantity: 1}, ErrNoItem},
		{"both item kinds", Entry{Item: &item, Manual: &ManualItem{Name: "x"}, Quantity: 1}, ErrNoItem},
		{"zero quantity", Entry{Item: &item, Selection: SelectStandard}, ErrInvalidQuantity},
		{"negative weight", Entry{Item: &item, Quantity: 1, Weight: decimal.NewFromInt(-1), Selection: SelectStandard}, ErrInvalidWeight},
		{"manual without name", Entry{Manual: &ManualItem{Unit: tariff.UnitPiece}, Quantity: 1}, ErrManualName},
		{"manual negative rate", Entry{Manual: &ManualItem{Name: "Rug", Unit: tariff.UnitPiece, Rate: decimal.NewFromInt(-5)}, Quantity: 1}, ErrInvalidRate},
		{"quantity above cap", Entry{Item: &item, Quantity: tariff.MaxQuantity + 1, Selection: SelectStandard}, ErrInvalidQuantity},
		{"quantity near max int", Entry{Item: &item, Quantity: math.MaxInt, Selection: SelectStandard}, ErrInvalidQuantity},
		{"weight above cap", Entry{Item: &item, Quantity: 1, Weight: decimal.RequireFromString("1000.001"), Selection: SelectStandard}, ErrInvalidWeight},
		{"weight huge exponent", Entry{Item: &item, Quantity: 1, Weight: decimal.RequireFromString("1e20000000"), Selection: SelectStandard}, ErrInvalidWeight},
		{"weight tiny exponent", Entry{Item: &item, Quantity: 1, Weight: decimal.RequireFromString("1e-20000000"), Selection: SelectStandard}, ErrInvalidWeight},
		{"weight too precise", Entry{Item: &item, Quantity: 1, Weight: decimal.RequireFromString("1.2345"), Selection: SelectStandard}, ErrInvalidWeight},
		{"manual rate above cap", Entry{Manual: &ManualItem{Name: "Rug", Unit: tariff.UnitPiece, Rate: decimal.NewFromInt(1_000_001)}, Quantity: 1}, ErrInvalidRate},
		{"manual rate huge exponent", Entry{Manual: &ManualItem{Name: "Rug", Unit: tariff.UnitPiece, Rate: decimal.RequireFromString("1e20000000")}, Quantity: 1}, ErrInvalidRate},
		{"manual rate fractional paise", Entry{Manual: &ManualItem{Name: "Rug", Unit: tariff.UnitPiece, Rate: decimal.RequireFromString("10.005")}, Quantity: 1}, ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.entry.Validate(), tt.wantErr)
		})
	}

	require.Error(t, Entry{Item: &item, Quantity: 1, Selection: "Steam"}.Validate())
	require.NoError(t, Entry{Manual: &ManualItem{Name: "Rug", Unit: tariff.UnitWeight, Rate: decimal.NewFromInt(30)}, Quantity: 1}.Validate())
	require.NoError(t, Entry{Item: &item, Quantity: tariff.MaxQuantity, Weight: decimal.RequireFromString("1000.000"), Selection: SelectStandard}.Validate())
}

func TestManifest_AddRemove(t *testing.T) {
	c := testCatalog()
	shirt, err := CatalogEntry(c, "shirt", 1, decimal.Zero, SelectStandard)
	require.NoError(t, err)
	blanket, err := CatalogEntry(c, "blanket", 1, decimal.NewFromInt(2), SelectStandard)
	require.NoError(t, err)

	m, err := New(shirt, blanket)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	require.ErrorIs(t, m.Add(Entry{}), ErrNoItem)
	require.Equal(t, 2, m.Len())

	require.NoError(t, m.Remove(0))
	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Blanket", entries[0].Name())

	require.ErrorIs(t, m.Remove(5), ErrOutOfRange)
}

func TestBulkPile(t *testing.T) {
	assert.False(t, BulkPile{}.Active())
	assert.True(t, BulkPile{Weight: decimal.NewFromFloat(0.5), Service: BulkWashIron}.Active())

	for _, w := range []string{"-1", "1000.5", "1e20000000", "2.0001"} {
		require.ErrorIs(t, BulkPile{Weight: decimal.RequireFromString(w), Service: BulkWashFold}.Validate(), ErrInvalidWeight, w)
	}
	require.NoError(t, BulkPile{Weight: decimal.RequireFromString("999.999"), Service: BulkWashFold}.Validate())
	require.Error(t, BulkPile{Weight: decimal.NewFromInt(1), Service: "Steam"}.Validate())
	require.NoError(t, BulkPile{}.Validate())

	s, err := ParseBulkService("")
	require.NoError(t, err)
	assert.Equal(t, BulkWashFold, s)
}

func TestParseSelection(t *testing.T) {
	s, err := ParseSelection("")
	require.NoError(t, err)
	assert.Equal(t, SelectStandard, s)

	s, err = ParseSelection("Dry Clean")
	require.NoError(t, err)
	assert.Equal(t, SelectDryClean, s)

	_, err = ParseSelection("dry clean")
	require.Error(t, err)
}
