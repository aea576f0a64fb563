package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-analytics/pkg/models"
)

// one@x has a single order in the window, two@x has two.
func productItems() []models.LineItem {
	return []models.LineItem{
		{OrderID: 10, Email: "one@x", ProductID: 1, Name: "Tea", Quantity: 2, LineTotal: dec("10")},
		{OrderID: 20, Email: "two@x", ProductID: 1, Name: "Tea (old)", Quantity: 1, LineTotal: dec("5")},
		{OrderID: 21, Email: "two@x", ProductID: 2, Name: "Mug", Quantity: 3, LineTotal: dec("30")},
		{OrderID: 30, Email: "", ProductID: 3, Name: "Guest", Quantity: 1, LineTotal: dec("99")},
	}
}

func productCounts() map[string]int {
	return map[string]int{"one@x": 1, "two@x": 2}
}

func TestKeepItemsForFilter(t *testing.T) {
	items, counts := productItems(), productCounts()

	assert.Equal(t, map[uint64]struct{}{10: {}, 20: {}, 21: {}}, KeepItemsForFilter(items, counts, FilterAll))
	assert.Equal(t, map[uint64]struct{}{10: {}}, KeepItemsForFilter(items, counts, FilterNew))
	assert.Equal(t, map[uint64]struct{}{20: {}, 21: {}}, KeepItemsForFilter(items, counts, FilterReturning))
}

func TestAggregateProducts_AllBuyers(t *testing.T) {
	items := productItems()
	rep := AggregateProducts(march(), FilterAll, items, KeepItemsForFilter(items, productCounts(), FilterAll))

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, uint64(2), rep.Rows[0].ProductID)
	assert.Equal(t, "30.00", rep.Rows[0].NetSales.StringFixed(2))
	assert.Equal(t, uint64(1), rep.Rows[1].ProductID)
	assert.Equal(t, 3, rep.Rows[1].Units)
	assert.Equal(t, "15.00", rep.Rows[1].NetSales.StringFixed(2))
	assert.Equal(t, "Tea (old)", rep.Rows[1].Name, "the greatest name wins")
}

func TestAggregateProducts_TwoOrderBuyerNeverNew(t *testing.T) {
	items := productItems()
	rep := AggregateProducts(march(), FilterNew, items, KeepItemsForFilter(items, productCounts(), FilterNew))

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, uint64(1), rep.Rows[0].ProductID)
	assert.Equal(t, 2, rep.Rows[0].Units)
	_, ok := rep.Row(2)
	assert.False(t, ok)
}

func TestAggregateProducts_StableOnTies(t *testing.T) {
	items := []models.LineItem{
		{OrderID: 1, Email: "a@x", ProductID: 5, Name: "B", Quantity: 1, LineTotal: dec("10")},
		{OrderID: 1, Email: "a@x", ProductID: 4, Name: "A", Quantity: 1, LineTotal: dec("10")},
	}
	rep := AggregateProducts(march(), FilterAll, items, map[uint64]struct{}{1: {}})
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, uint64(5), rep.Rows[0].ProductID)
	assert.Equal(t, uint64(4), rep.Rows[1].ProductID)
}

func TestCompareProducts(t *testing.T) {
	main := &models.ProductReport{Rows: []models.ProductRow{
		{ProductID: 1, Name: "Tea", Units: 6, NetSales: dec("60")},
		{ProductID: 2, Name: "Mug", Units: 2, NetSales: dec("20")},
	}}
	prev := &models.ProductReport{Rows: []models.ProductRow{
		{ProductID: 1, Name: "Tea", Units: 4, NetSales: dec("80")},
	}}

	got := CompareProducts(main, prev)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].PreviousUnits)
	assert.Equal(t, 50.0, got[0].UnitsChange)
	assert.Equal(t, -25.0, got[0].NetSalesChange)
	assert.Equal(t, 0, got[1].PreviousUnits)
	assert.Equal(t, 100.0, got[1].UnitsChange)
	assert.Equal(t, 100.0, got[1].NetSalesChange)

	alone := CompareProducts(main, nil)
	assert.Equal(t, 100.0, alone[0].NetSalesChange)
}

func TestNormalizeFilter(t *testing.T) {
	assert.Equal(t, FilterNew, NormalizeFilter("new"))
	assert.Equal(t, FilterReturning, NormalizeFilter("returning"))
	assert.Equal(t, FilterAll, NormalizeFilter("bogus"))
	assert.Equal(t, "Returning Clients Only", FilterLabel(FilterReturning))
}
