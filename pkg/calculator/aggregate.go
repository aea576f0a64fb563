package calculator

import (
	"github.com/shopspring/decimal"

	"wc-analytics/pkg/models"
)

// CustomerHistory is the lifetime view of the store, built once per report.
type CustomerHistory struct {
	Lifetime models.LifetimeIndex // email → all-time qualifying orders
	Existing models.CustomerSet   // emails with a qualifying order before the window start
}

// EmptyClientReport is the renderable zero report for window.
func EmptyClientReport(window models.DateRange) *models.ClientReport {
	return &models.ClientReport{
		Range:                     window,
		GrossRevenue:              decimal.Zero,
		TotalTax:                  decimal.Zero,
		TotalRevenue:              decimal.Zero,
		RevenueNewCustomers:       decimal.Zero,
		RevenueReturningCustomers: decimal.Zero,
		AverageOrderValue:         decimal.Zero,
		LifetimeSegments:          EmptySegments(),
		PeriodSegments:            EmptySegments(),
		PaymentMethods:            []models.PaymentMethodCount{},
	}
}

// Aggregate computes the client report for the orders of one window.
// Every order counts toward TotalOrders; orders without a billing email are
// otherwise ignored.
func Aggregate(window models.DateRange, orders []models.Order, hist CustomerHistory, titles GatewayTitles, keywords []string) *models.ClientReport {
	rep := EmptyClientReport(window)
	if len(orders) == 0 {
		return rep
	}
	rep.TotalOrders = len(orders)

	var (
		periodCounts = map[string]int{}
		newCustomers = map[string]struct{}{}
		payments     = map[string]int{}
		paymentOrder []string
	)

	for _, o := range orders {
		if o.Email == "" {
			continue
		}
		if _, seen := periodCounts[o.Email]; !seen && IsNewCustomer(o.Email, hist.Existing) {
			newCustomers[o.Email] = struct{}{}
		}
		periodCounts[o.Email]++

		if o.PaymentMethod != "" {
			if _, ok := payments[o.PaymentMethod]; !ok {
				paymentOrder = append(paymentOrder, o.PaymentMethod)
			}
			payments[o.PaymentMethod]++
		}

		net := o.NetRevenue()
		rep.GrossRevenue = rep.GrossRevenue.Add(o.Total)
		rep.TotalTax = rep.TotalTax.Add(o.TaxTotal())
		rep.TotalRevenue = rep.TotalRevenue.Add(net)
		if IsNewCustomer(o.Email, hist.Existing) {
			rep.RevenueNewCustomers = rep.RevenueNewCustomers.Add(net)
		} else {
			rep.RevenueReturningCustomers = rep.RevenueReturningCustomers.Add(net)
		}
	}

	rep.UniqueCustomers = len(periodCounts)
	rep.NewCustomers = len(newCustomers)
	rep.AverageOrderValue = AverageOrderValue(rep.TotalRevenue, rep.TotalOrders)

	raw := make([]models.PaymentMethodCount, 0, len(paymentOrder))
	for _, m := range paymentOrder {
		raw = append(raw, models.PaymentMethodCount{Method: m, Count: payments[m]})
	}
	rep.PaymentMethods = NormalizePaymentMethods(raw, titles, keywords)

	rep.LifetimeSegments = ClassifyLifetime(periodCounts, hist.Lifetime)
	rep.PeriodSegments = ClassifyPeriod(periodCounts)
	return rep
}

// AverageOrderValue is net revenue over orders, two decimals, zero without orders.
func AverageOrderValue(net decimal.Decimal, orders int) decimal.Decimal {
	if orders <= 0 {
		return decimal.Zero
	}
	return net.Div(decimal.NewFromInt(int64(orders))).Round(2)
}

// NewCustomerShare is the percentage of unique customers that are new, one decimal.
func NewCustomerShare(r *models.ClientReport) float64 {
	return percentOf(r.NewCustomers, r.UniqueCustomers)
}

// ReturningCustomerShare is 100 minus the new share, matching the exported insight rows.
func ReturningCustomerShare(r *models.ClientReport) float64 {
	if r.UniqueCustomers == 0 {
		return 0
	}
	return round1(100 - NewCustomerShare(r))
}

// AverageRevenuePerNewCustomer divides new-customer revenue by new customers.
func AverageRevenuePerNewCustomer(r *models.ClientReport) decimal.Decimal {
	return AverageOrderValue(r.RevenueNewCustomers, r.NewCustomers)
}

// AverageRevenuePerReturningCustomer divides returning revenue by returning customers.
func AverageRevenuePerReturningCustomer(r *models.ClientReport) decimal.Decimal {
	return AverageOrderValue(r.RevenueReturningCustomers, r.ReturningCustomers())
}

// RevenueShare is part as a percentage of the report's net revenue.
func RevenueShare(r *models.ClientReport, part decimal.Decimal) float64 {
	if !r.TotalRevenue.IsPositive() {
		return 0
	}
	return part.Div(r.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

// PaymentShare is a payment method's orders as a percentage of all orders.
func PaymentShare(r *models.ClientReport, pm models.PaymentMethodCount) float64 {
	return percentOf(pm.Count, r.TotalOrders)
}
