package models

import (
	"time"

	"github.com/shopspring/decimal"
)

/*
LOAD → typed rows read from the WooCommerce tables.
*/

// Order is a shop_order row joined with the postmeta keys the reports need.
type Order struct {
	ID             uint64
	Email          string // lower-cased _billing_email, may be empty
	PlacedAt       time.Time
	Status         string
	Total          decimal.Decimal
	Tax            decimal.Decimal
	ShippingTax    decimal.Decimal
	CartTax        decimal.Decimal
	PaymentMethod  string
	CustomerUserID uint64 // 0 for guest checkouts
}

// TaxTotal is order tax + shipping tax + cart tax.
func (o Order) TaxTotal() decimal.Decimal {
	return o.Tax.Add(o.ShippingTax).Add(o.CartTax)
}

// NetRevenue is the order total minus every tax component.
func (o Order) NetRevenue() decimal.Decimal {
	return o.Total.Sub(o.TaxTotal())
}

// LineItem is one line_item of an order in the window, with the buyer email attached.
type LineItem struct {
	OrderID   uint64
	Email     string
	ProductID uint64
	Name      string
	Quantity  int
	LineTotal decimal.Decimal
}

// LifetimeIndex maps a normalized email to its all-time qualifying order count.
type LifetimeIndex map[string]int

// CustomerSet is a set of normalized emails.
type CustomerSet map[string]struct{}

// Has reports whether email is in the set.
func (s CustomerSet) Has(email string) bool {
	_, ok := s[email]
	return ok
}

/*
COMPUTE → report structures.
*/

// DateRange is a closed window [Start, End] with day-level bounds.
type DateRange struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Name   string    `json:"name"`
	Preset string    `json:"preset"`
}

// Segment is one of the fixed order-sequence buckets.
type Segment struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Range      string  `json:"range"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PaymentMethodCount is a gateway id with the number of orders paid through it.
type PaymentMethodCount struct {
	Method string `json:"method"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
}

// ClientReport holds the client analysis metrics for one window.
type ClientReport struct {
	Range                     DateRange            `json:"range"`
	TotalOrders               int                  `json:"total_orders"`
	UniqueCustomers           int                  `json:"unique_customers"`
	NewCustomers              int                  `json:"new_customers"`
	GrossRevenue              decimal.Decimal      `json:"gross_revenue"`
	TotalTax                  decimal.Decimal      `json:"total_tax"`
	TotalRevenue              decimal.Decimal      `json:"total_revenue"` // net
	RevenueNewCustomers       decimal.Decimal      `json:"revenue_new_customers"`
	RevenueReturningCustomers decimal.Decimal      `json:"revenue_returning_customers"`
	AverageOrderValue         decimal.Decimal      `json:"average_order_value"`
	LifetimeSegments          []Segment            `json:"lifetime_segments"`
	PeriodSegments            []Segment            `json:"period_segments"`
	PaymentMethods            []PaymentMethodCount `json:"payment_methods"`
}

// ReturningCustomers is unique customers minus new customers.
func (r *ClientReport) ReturningCustomers() int {
	return r.UniqueCustomers - r.NewCustomers
}

// ProductRow is the per-product total for a window.
type ProductRow struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	NetSales  decimal.Decimal `json:"net_sales"`
}

// ProductReport is the product analysis for one window and buyer filter.
type ProductReport struct {
	Range  DateRange    `json:"range"`
	Filter string       `json:"filter"`
	Rows   []ProductRow `json:"rows"`
}

// Row returns the row for productID, if present.
func (r *ProductReport) Row(productID uint64) (ProductRow, bool) {
	for _, row := range r.Rows {
		if row.ProductID == productID {
			return row, true
		}
	}
	return ProductRow{}, false
}

// ClientComparison pairs a main report with an optional comparison report.
type ClientComparison struct {
	Main    *ClientReport `json:"main"`
	Compare *ClientReport `json:"compare,omitempty"`
}

// ProductComparison pairs a main product report with an optional comparison report.
type ProductComparison struct {
	Main    *ProductReport `json:"main"`
	Compare *ProductReport `json:"compare,omitempty"`
}

/*
REFERRAL → coupon entities.
*/

// Coupon is a shop_coupon post with its typed meta.
type Coupon struct {
	ID                uint64
	Code              string
	DiscountType      string
	Amount            decimal.Decimal
	IndividualUse     bool
	UsageLimit        int
	UsageLimitPerUser int
	UsageCount        int
	ReferrerUserID    uint64
	EmailRestrictions []string
	ExpiresAt         *time.Time
}

// User is the subset of a WordPress user the referral flow needs.
type User struct {
	ID    uint64
	Login string
	Email string
}

// ReferralOrder is a completed order as seen by the reward flow.
type ReferralOrder struct {
	ID             uint64
	CustomerUserID uint64
	CouponCodes    []string
	Processed      bool
}

// Coupon statuses shown to the referrer.
const (
	CouponUsed      = "USED"
	CouponExpired   = "EXPIRED"
	CouponAvailable = "AVAILABLE"
)

// Status reports whether the coupon was used, has expired or is still available at now.
func (c Coupon) Status(now time.Time) string {
	if c.UsageCount > 0 {
		return CouponUsed
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return CouponExpired
	}
	return CouponAvailable
}

/*
CONFIG → report parameters.
*/

// ReportRequest is what a caller asks for: the main preset, an optional comparison and a buyer filter.
type ReportRequest struct {
	Tab                string `form:"tab"` // "clients" or "products"
	Preset             string `form:"preset"`
	CustomStart        string `form:"custom_start"`
	CustomEnd          string `form:"custom_end"`
	CompareTo          string `form:"compare_to"`
	CompareCustomStart string `form:"compare_custom_start"`
	CompareCustomEnd   string `form:"compare_custom_end"`
	ClientFilter       string `form:"client_filter"` // all | new | returning
}
