package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"wc-analytics/pkg/models"
)

// Buyer filters for product analysis.
const (
	FilterAll       = "all"
	FilterNew       = "new"
	FilterReturning = "returning"
)

// NormalizeFilter maps unknown filters to FilterAll.
func NormalizeFilter(f string) string {
	switch f {
	case FilterNew, FilterReturning:
		return f
	}
	return FilterAll
}

// FilterLabel is the human label of a buyer filter.
func FilterLabel(f string) string {
	switch f {
	case FilterNew:
		return "New Clients Only"
	case FilterReturning:
		return "Returning Clients Only"
	}
	return "All Clients"
}

// MatchesFilter applies the window-local rule to a buyer with n orders inside the window.
func MatchesFilter(n int, filter string) bool {
	switch filter {
	case FilterNew:
		return IsPeriodNewBuyer(n)
	case FilterReturning:
		return IsPeriodReturningBuyer(n)
	}
	return n > 0
}

// KeepItemsForFilter selects the orders whose buyer matches filter, given each
// buyer's order count inside the window. Items without an email are dropped.
func KeepItemsForFilter(items []models.LineItem, periodCounts map[string]int, filter string) map[uint64]struct{} {
	keep := map[uint64]struct{}{}
	for _, it := range items {
		if it.Email == "" {
			continue
		}
		if MatchesFilter(periodCounts[it.Email], filter) {
			keep[it.OrderID] = struct{}{}
		}
	}
	return keep
}

// AggregateProducts sums units and net sales per product over the kept orders,
// sorted by net sales descending.
func AggregateProducts(window models.DateRange, filter string, items []models.LineItem, keep map[uint64]struct{}) *models.ProductReport {
	rep := &models.ProductReport{Range: window, Filter: filter, Rows: []models.ProductRow{}}
	idx := map[uint64]int{}
	for _, it := range items {
		if _, ok := keep[it.OrderID]; !ok {
			continue
		}
		i, ok := idx[it.ProductID]
		if !ok {
			i = len(rep.Rows)
			idx[it.ProductID] = i
			rep.Rows = append(rep.Rows, models.ProductRow{ProductID: it.ProductID, Name: it.Name, NetSales: decimal.Zero})
		}
		row := &rep.Rows[i]
		row.Units += it.Quantity
		row.NetSales = row.NetSales.Add(it.LineTotal)
		if it.Name > row.Name {
			row.Name = it.Name
		}
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool {
		return rep.Rows[i].NetSales.GreaterThan(rep.Rows[j].NetSales)
	})
	return rep
}

// ProductDelta is one product row paired with its comparison values.
type ProductDelta struct {
	models.ProductRow
	PreviousUnits    int             `json:"previous_units"`
	PreviousNetSales decimal.Decimal `json:"previous_net_sales"`
	UnitsChange      float64         `json:"units_change"`
	NetSalesChange   float64         `json:"net_sales_change"`
}

// CompareProducts pairs every main row with the comparison row of the same product,
// using zero when the product did not sell in the comparison window.
func CompareProducts(main, compare *models.ProductReport) []ProductDelta {
	out := make([]ProductDelta, 0, len(main.Rows))
	for _, row := range main.Rows {
		d := ProductDelta{ProductRow: row, PreviousNetSales: decimal.Zero}
		if compare != nil {
			if prev, ok := compare.Row(row.ProductID); ok {
				d.PreviousUnits = prev.Units
				d.PreviousNetSales = prev.NetSales
			}
		}
		d.UnitsChange = DeltaInt(row.Units, d.PreviousUnits)
		d.NetSalesChange = DeltaDecimal(row.NetSales, d.PreviousNetSales)
		out = append(out, d)
	}
	return out
}
