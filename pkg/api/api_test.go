package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-analytics/pkg/api"
	"wc-analytics/pkg/calculator"
	"wc-analytics/pkg/database"
	"wc-analytics/pkg/database/dbtest"
	"wc-analytics/pkg/daterange"
	"wc-analytics/pkg/export"
	"wc-analytics/pkg/referral"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     bool            `json:"error"`
	RequestID string          `json:"request_id"`
}

type fixture struct {
	db     *dbtest.DB
	router *gin.Engine
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 10, 0, 0, 0, time.UTC) }

	db.AddOrder(dbtest.Order{Email: "alice@example.com", PlacedAt: day(1, 5), Total: "50", PaymentMethod: "bacs"})
	db.AddOrder(dbtest.Order{Email: "alice@example.com", PlacedAt: day(3, 4), Total: "122", Tax: "22", PaymentMethod: "stripe",
		Items: []dbtest.Item{{ProductID: 7, Name: "Tea", Qty: 2, LineTotal: "100"}}})
	db.AddOrder(dbtest.Order{Email: "bob@example.com", PlacedAt: day(3, 6), Total: "60", Tax: "10", PaymentMethod: "bacs",
		Items: []dbtest.Item{{ProductID: 8, Name: "Mug", Qty: 1, LineTotal: "50"}}})
	db.AddOrder(dbtest.Order{Email: "bob@example.com", PlacedAt: day(3, 20), Total: "30", PaymentMethod: "bacs",
		Items: []dbtest.Item{{ProductID: 7, Name: "Tea", Qty: 1, LineTotal: "30"}}})
	db.AddOrder(dbtest.Order{Email: "carol@example.com", PlacedAt: day(2, 14), Total: "40", PaymentMethod: "bacs",
		Items: []dbtest.Item{{ProductID: 7, Name: "Tea", Qty: 1, LineTotal: "40"}}})

	orders := database.NewOrderStore(db.DB, db.Tables, nil, 0, time.UTC)
	runner := &calculator.Runner{
		Orders: orders,
		Items:  database.NewProductStore(db.DB, orders),
		Titles: calculator.TitleMap{"bacs": "Direct bank transfer"},
	}
	referrals := referral.NewService(database.NewCouponStore(db.DB, db.Tables, time.UTC), referral.DefaultSettings(), nil)

	ranges := daterange.New(time.UTC)
	ranges.Now = func() time.Time { return now }

	router := api.NewRouter(api.Options{
		Reports:   runner,
		Referrals: referrals,
		Ranges:    ranges,
		Now:       func() time.Time { return now },
		Ping:      db.PingContext,
	})
	return &fixture{db: db, router: router}
}

func (f *fixture) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	f.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	w, env := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", env.Message)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, w.Header().Get("X-Request-ID"))
}

func TestHealthz_DatabaseDown(t *testing.T) {
	router := api.NewRouter(api.Options{Ping: func(context.Context) error { return errors.New("down") }})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClientReport_LastMonthWithPreviousPeriod(t *testing.T) {
	f := setup(t)
	w, env := f.do(t, http.MethodGet, "/api/v1/reports/clients?compare_to=previous_period")
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Main struct {
			TotalOrders     int    `json:"total_orders"`
			UniqueCustomers int    `json:"unique_customers"`
			NewCustomers    int    `json:"new_customers"`
			TotalRevenue    string `json:"total_revenue"`
			Range           struct {
				Name string `json:"name"`
			} `json:"range"`
			PaymentMethods []struct {
				Method string `json:"method"`
				Title  string `json:"title"`
				Count  int    `json:"count"`
			} `json:"payment_methods"`
		} `json:"main"`
		Compare *struct {
			TotalOrders int `json:"total_orders"`
		} `json:"compare"`
		Changes  map[string]float64 `json:"changes"`
		Insights struct {
			NewShare float64 `json:"new_share"`
		} `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))

	assert.Equal(t, "Last Month", view.Main.Range.Name)
	assert.Equal(t, 3, view.Main.TotalOrders)
	assert.Equal(t, 2, view.Main.UniqueCustomers)
	assert.Equal(t, 1, view.Main.NewCustomers)
	assert.Equal(t, 50.0, view.Insights.NewShare)
	require.Len(t, view.Main.PaymentMethods, 2)
	assert.Equal(t, "Direct bank transfer", view.Main.PaymentMethods[0].Title)
	assert.Equal(t, calculator.CombinedCardsMethod, view.Main.PaymentMethods[1].Method)

	require.NotNil(t, view.Compare)
	assert.Equal(t, 1, view.Compare.TotalOrders)
	assert.Equal(t, 200.0, view.Changes["total_orders"])
}

func TestProductReport_ReturningFilter(t *testing.T) {
	f := setup(t)
	w, env := f.do(t, http.MethodGet, "/api/v1/reports/products?client_filter=returning")
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Main struct {
			Filter string `json:"filter"`
			Rows   []struct {
				ProductID uint64 `json:"product_id"`
				Units     int    `json:"units"`
			} `json:"rows"`
		} `json:"main"`
		FilterLabel string `json:"filter_label"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "returning", view.Main.Filter)
	assert.Equal(t, "Returning Clients Only", view.FilterLabel)
	require.Len(t, view.Main.Rows, 2, "only bob has two orders in the window")
	assert.Equal(t, uint64(8), view.Main.Rows[0].ProductID)
}

func TestExportCSV(t *testing.T) {
	f := setup(t)
	w, _ := f.do(t, http.MethodGet, "/api/v1/exports/products?compare_to=previous_period")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report-products-2024-04-10.csv"`, w.Header().Get("Content-Disposition"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, export.BOM))
	assert.Contains(t, body, "Product Name,Current Units,Current Revenue,Previous Units,Previous Revenue,Units Change %,Revenue Change %")
	assert.Contains(t, body, "Tea,3,130.00,1,40.00,200%,225%")

	w, _ = f.do(t, http.MethodGet, "/api/v1/exports/client")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Client Analysis Report")

	w, env := f.do(t, http.MethodGet, "/api/v1/exports/orders")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.Error)
}

func TestReferralFlow(t *testing.T) {
	f := setup(t)
	referrer := f.db.AddUser("anna", "anna@example.com")
	friend := f.db.AddUser("luca", "luca@example.com")

	w, env := f.do(t, http.MethodPost, "/api/v1/referrals/users/"+itoa(referrer)+"/code")
	require.Equal(t, http.StatusOK, w.Code)
	var code struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &code))
	require.Len(t, code.Code, 8)

	orderID := f.db.AddOrder(dbtest.Order{Email: "luca@example.com", PlacedAt: now, Total: "40", CustomerUser: friend, Coupons: []string{code.Code}})
	w, _ = f.do(t, http.MethodPost, "/api/v1/orders/"+itoa(orderID)+"/completed")
	assert.Equal(t, http.StatusCreated, w.Code)

	w, env = f.do(t, http.MethodPost, "/api/v1/orders/"+itoa(orderID)+"/completed")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No referral reward", env.Message)

	w, env = f.do(t, http.MethodGet, "/api/v1/referrals/users/"+itoa(referrer)+"/coupons")
	require.Equal(t, http.StatusOK, w.Code)
	var coupons []referral.EarnedCoupon
	require.NoError(t, json.Unmarshal(env.Data, &coupons))
	require.Len(t, coupons, 1)
	assert.True(t, strings.HasPrefix(coupons[0].Code, "GIFT-"))
}

func TestReferralErrors(t *testing.T) {
	f := setup(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/referrals/users/999/code")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", env.Message)

	w, _ = f.do(t, http.MethodPost, "/api/v1/orders/999/completed")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/referrals/users/abc/coupons")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
