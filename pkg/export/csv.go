// Package export writes reports as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"wc-analytics/pkg/calculator"
	"wc-analytics/pkg/models"
)

// BOM makes spreadsheet applications read the file as UTF-8.
const BOM = "\xEF\xBB\xBF"

// Tabs accepted by FileName and the exporters.
const (
	TabClients  = "clients"
	TabProducts = "products"
)

var printer = message.NewPrinter(language.English)

// FileName is the attachment name for a report exported on day.
func FileName(tab string, day time.Time) string {
	return fmt.Sprintf("report-%s-%s.csv", tab, day.Format("2006-01-02"))
}

// ClientCSV writes the client report sections, with comparison columns and
// sections when cmp.Compare is set.
func ClientCSV(w io.Writer, cmp models.ClientComparison) error {
	main, prev := cmp.Main, cmp.Compare
	if main == nil {
		return fmt.Errorf("export: missing main report")
	}

	var rows [][]string
	add := func(r ...string) { rows = append(rows, r) }

	add("Client Analysis Report")
	add("Period: " + main.Range.Name)
	if prev != nil {
		add("Comparison Period: " + prev.Range.Name)
	}
	add()

	/* KEY METRICS → */
	if prev != nil {
		add("Metric", "Current Period", "Comparison Period", "Change (%)")
	} else {
		add("Metric", "Current Period")
	}
	counts := []struct {
		label string
		get   func(*models.ClientReport) int
	}{
		{"Total Orders", func(r *models.ClientReport) int { return r.TotalOrders }},
		{"Unique Clients", func(r *models.ClientReport) int { return r.UniqueCustomers }},
		{"New Clients", func(r *models.ClientReport) int { return r.NewCustomers }},
		{"Returning Clients", func(r *models.ClientReport) int { return r.ReturningCustomers() }},
	}
	for _, m := range counts {
		row := []string{m.label, strconv.Itoa(m.get(main))}
		if prev != nil {
			row = append(row, strconv.Itoa(m.get(prev)), percent(calculator.DeltaInt(m.get(main), m.get(prev))))
		}
		add(row...)
	}

	/* REVENUE → */
	add()
	add("Revenue Analysis")
	if prev != nil {
		add("Metric", "Current Amount", "Comparison Amount", "Change (%)")
	} else {
		add("Metric", "Current Amount")
	}
	revenue := []struct {
		label string
		get   func(*models.ClientReport) decimal.Decimal
		delta bool
	}{
		{"Total Revenue (Net)", func(r *models.ClientReport) decimal.Decimal { return r.TotalRevenue }, true},
		{"Total Tax", func(r *models.ClientReport) decimal.Decimal { return r.TotalTax }, false},
		{"New Customer Revenue", func(r *models.ClientReport) decimal.Decimal { return r.RevenueNewCustomers }, true},
		{"Returning Customer Revenue", func(r *models.ClientReport) decimal.Decimal { return r.RevenueReturningCustomers }, true},
	}
	for _, m := range revenue {
		row := []string{m.label, Money(m.get(main))}
		if prev != nil {
			change := "-"
			if m.delta {
				change = percent(calculator.DeltaDecimal(m.get(main), m.get(prev)))
			}
			row = append(row, Money(m.get(prev)), change)
		}
		add(row...)
	}

	/* INSIGHTS → */
	insights := func(title string, r *models.ClientReport) {
		add()
		add(title + r.Range.Name)
		add("Type", "Count", "Avg Revenue", "Percentage")
		add("New Customers", strconv.Itoa(r.NewCustomers),
			calculator.AverageRevenuePerNewCustomer(r).StringFixed(2),
			percent(calculator.NewCustomerShare(r)))
		add("Returning Customers", strconv.Itoa(r.ReturningCustomers()),
			calculator.AverageRevenuePerReturningCustomer(r).StringFixed(2),
			percent(calculator.ReturningCustomerShare(r)))
	}
	insights("Customer Insights - Current Period: ", main)
	if prev != nil {
		insights("Customer Insights - Comparison Period: ", prev)
	}

	/* SEGMENTS → */
	segments := func(title string, r *models.ClientReport, segs []models.Segment) {
		add()
		add(title + r.Range.Name)
		add("Customer Type", "Range", "Count", "Percentage")
		for _, s := range segs {
			add(s.Label, s.Range, strconv.Itoa(s.Count), percent(s.Percentage))
		}
	}
	segments("Segments (Lifetime) - Current Period: ", main, main.LifetimeSegments)
	if prev != nil {
		segments("Segments (Lifetime) - Comparison Period: ", prev, prev.LifetimeSegments)
	}
	segments("Segments (Selected Period) - Current Period: ", main, main.PeriodSegments)
	if prev != nil {
		segments("Segments (Selected Period) - Comparison Period: ", prev, prev.PeriodSegments)
	}

	/* PAYMENTS → */
	payments := func(title string, r *models.ClientReport) {
		add()
		add(title + r.Range.Name)
		add("Method", "Count", "Percentage")
		for _, pm := range r.PaymentMethods {
			add(pm.Title, strconv.Itoa(pm.Count), percent(calculator.PaymentShare(r, pm)))
		}
	}
	payments("Payment Methods - Current Period: ", main)
	if prev != nil {
		payments("Payment Methods - Comparison Period: ", prev)
	}

	return write(w, rows)
}

// ProductCSV writes the product rows, adding previous values and changes when
// cmp.Compare is set.
func ProductCSV(w io.Writer, cmp models.ProductComparison) error {
	if cmp.Main == nil {
		return fmt.Errorf("export: missing main report")
	}

	rows := [][]string{
		{"Product Analysis Report"},
		{"Filter: " + cmp.Main.Filter},
		{"Period: " + cmp.Main.Range.Name},
		{},
	}
	header := []string{"Product Name", "Current Units", "Current Revenue"}
	if cmp.Compare != nil {
		header = append(header, "Previous Units", "Previous Revenue", "Units Change %", "Revenue Change %")
	}
	rows = append(rows, header)

	for _, d := range calculator.CompareProducts(cmp.Main, cmp.Compare) {
		row := []string{d.Name, strconv.Itoa(d.Units), d.NetSales.StringFixed(2)}
		if cmp.Compare != nil {
			row = append(row,
				strconv.Itoa(d.PreviousUnits),
				d.PreviousNetSales.StringFixed(2),
				percent(d.UnitsChange),
				percent(d.NetSalesChange))
		}
		rows = append(rows, row)
	}
	return write(w, rows)
}

// Money formats an amount with two decimals and thousands separators.
func Money(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func write(w io.Writer, rows [][]string) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
