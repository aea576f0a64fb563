// Package api exposes the reports, CSV exports and referral flow over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wc-analytics/pkg/daterange"
	"wc-analytics/pkg/models"
	"wc-analytics/pkg/referral"
)

// Reports computes report comparisons; *calculator.Runner implements it.
type Reports interface {
	CompareClients(ctx context.Context, main models.DateRange, compare *models.DateRange) models.ClientComparison
	CompareProducts(ctx context.Context, main models.DateRange, compare *models.DateRange, filter string) models.ProductComparison
}

// Referrals runs the referral flow; *referral.Service implements it.
type Referrals interface {
	EnsureReferralCode(ctx context.Context, userID uint64) (string, error)
	ProcessCompletedOrder(ctx context.Context, orderID uint64) (*referral.Reward, error)
	EarnedCoupons(ctx context.Context, userID uint64) ([]referral.EarnedCoupon, error)
}

// Options wires the router.
type Options struct {
	Reports   Reports
	Referrals Referrals
	Ranges    *daterange.Resolver
	Log       *zap.Logger
	Origins   []string
	Timeout   time.Duration
	Ping      func(ctx context.Context) error
	Now       func() time.Time
}

type handler struct {
	opts Options
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Ranges == nil {
		opts.Ranges = daterange.New(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	h := &handler{opts: opts}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(opts.Log))
	router.Use(cors.New(corsConfig(opts.Origins)))

	router.GET("/healthz", h.health)

	v1 := router.Group("/api/v1")
	reports := v1.Group("/reports")
	reports.GET("/clients", h.clientReport)
	reports.GET("/products", h.productReport)
	v1.GET("/exports/:tab", h.exportCSV)

	if opts.Referrals != nil {
		v1.POST("/referrals/users/:id/code", h.referralCode)
		v1.GET("/referrals/users/:id/coupons", h.earnedCoupons)
		v1.POST("/orders/:id/completed", h.orderCompleted)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", "Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
