package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wc-analytics/pkg/calculator"
	"wc-analytics/pkg/export"
	"wc-analytics/pkg/models"
	"wc-analytics/pkg/referral"
)

// ClientReportView is the client report payload with the comparison changes in percent.
type ClientReportView struct {
	models.ClientComparison
	Insights Insights           `json:"insights"`
	Changes  map[string]float64 `json:"changes,omitempty"`
}

// Insights are the derived new/returning figures of the main window.
type Insights struct {
	NewShare                  float64 `json:"new_share"`
	ReturningShare            float64 `json:"returning_share"`
	AvgRevenueNewCustomer     string  `json:"avg_revenue_new_customer"`
	AvgRevenueReturningClient string  `json:"avg_revenue_returning_customer"`
}

// ProductReportView is the product report payload.
type ProductReportView struct {
	models.ProductComparison
	FilterLabel string                    `json:"filter_label"`
	Rows        []calculator.ProductDelta `json:"rows,omitempty"`
}

func (h *handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.opts.Timeout)
}

func (h *handler) request(c *gin.Context) (models.ReportRequest, bool) {
	var req models.ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid query parameters"))
		return req, false
	}
	return req, true
}

func (h *handler) health(c *gin.Context) {
	if h.opts.Ping != nil {
		ctx, cancel := h.withTimeout(c)
		defer cancel()
		if err := h.opts.Ping(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse(c, "Database unreachable"))
			return
		}
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "ok", nil))
}

func (h *handler) clients(c *gin.Context, req models.ReportRequest) models.ClientComparison {
	ctx, cancel := h.withTimeout(c)
	defer cancel()
	main, compare := h.opts.Ranges.ResolveRequest(req)
	return h.opts.Reports.CompareClients(ctx, main, compare)
}

func (h *handler) products(c *gin.Context, req models.ReportRequest) models.ProductComparison {
	ctx, cancel := h.withTimeout(c)
	defer cancel()
	main, compare := h.opts.Ranges.ResolveRequest(req)
	return h.opts.Reports.CompareProducts(ctx, main, compare, req.ClientFilter)
}

func (h *handler) clientReport(c *gin.Context) {
	req, ok := h.request(c)
	if !ok {
		return
	}
	cmp := h.clients(c, req)
	c.JSON(http.StatusOK, SuccessResponse(c, "Client analysis", clientView(cmp)))
}

func clientView(cmp models.ClientComparison) ClientReportView {
	m := cmp.Main
	view := ClientReportView{
		ClientComparison: cmp,
		Insights: Insights{
			NewShare:                  calculator.NewCustomerShare(m),
			ReturningShare:            calculator.ReturningCustomerShare(m),
			AvgRevenueNewCustomer:     calculator.AverageRevenuePerNewCustomer(m).StringFixed(2),
			AvgRevenueReturningClient: calculator.AverageRevenuePerReturningCustomer(m).StringFixed(2),
		},
	}
	if p := cmp.Compare; p != nil {
		view.Changes = map[string]float64{
			"total_orders":                calculator.DeltaInt(m.TotalOrders, p.TotalOrders),
			"unique_customers":            calculator.DeltaInt(m.UniqueCustomers, p.UniqueCustomers),
			"new_customers":               calculator.DeltaInt(m.NewCustomers, p.NewCustomers),
			"returning_customers":         calculator.DeltaInt(m.ReturningCustomers(), p.ReturningCustomers()),
			"total_revenue":               calculator.DeltaDecimal(m.TotalRevenue, p.TotalRevenue),
			"revenue_new_customers":       calculator.DeltaDecimal(m.RevenueNewCustomers, p.RevenueNewCustomers),
			"revenue_returning_customers": calculator.DeltaDecimal(m.RevenueReturningCustomers, p.RevenueReturningCustomers),
			"average_order_value":         calculator.DeltaDecimal(m.AverageOrderValue, p.AverageOrderValue),
		}
	}
	return view
}

func (h *handler) productReport(c *gin.Context) {
	req, ok := h.request(c)
	if !ok {
		return
	}
	cmp := h.products(c, req)
	view := ProductReportView{ProductComparison: cmp, FilterLabel: calculator.FilterLabel(cmp.Main.Filter)}
	if cmp.Compare != nil {
		view.Rows = calculator.CompareProducts(cmp.Main, cmp.Compare)
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Product analysis", view))
}

func (h *handler) exportCSV(c *gin.Context) {
	req, ok := h.request(c)
	if !ok {
		return
	}
	tab := c.Param("tab")
	if tab == "client" {
		tab = export.TabClients
	}

	var buf bytes.Buffer
	var err error
	switch tab {
	case export.TabClients:
		err = export.ClientCSV(&buf, h.clients(c, req))
	case export.TabProducts:
		err = export.ProductCSV(&buf, h.products(c, req))
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Unknown export tab"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse(c, "Export failed"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(tab, h.opts.Now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid id"))
		return 0, false
	}
	return id, true
}

func (h *handler) referralCode(c *gin.Context) {
	userID, ok := idParam(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	code, err := h.opts.Referrals.EnsureReferralCode(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Referral code", gin.H{"user_id": userID, "code": code}))
}

func (h *handler) earnedCoupons(c *gin.Context) {
	userID, ok := idParam(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	coupons, err := h.opts.Referrals.EarnedCoupons(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if coupons == nil {
		coupons = []referral.EarnedCoupon{}
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Earned coupons", coupons))
}

func (h *handler) orderCompleted(c *gin.Context) {
	orderID, ok := idParam(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	reward, err := h.opts.Referrals.ProcessCompletedOrder(ctx, orderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if reward == nil {
		c.JSON(http.StatusOK, SuccessResponse(c, "No referral reward", nil))
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse(c, "Referral reward sent", reward))
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, referral.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse(c, "User not found"))
	case errors.Is(err, referral.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse(c, "Order not found"))
	default:
		_ = c.Error(err)
		h.opts.Log.Error("referral request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse(c, "Internal error"))
	}
}
