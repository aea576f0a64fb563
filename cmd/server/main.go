package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wc-analytics/pkg/api"
	"wc-analytics/pkg/calculator"
	"wc-analytics/pkg/config"
	"wc-analytics/pkg/database"
	"wc-analytics/pkg/daterange"
	"wc-analytics/pkg/logger"
	"wc-analytics/pkg/referral"
)

func main() {
	envFile := flag.String("env", ".env", "fichier .env optionnel")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if cfg.DSN == "" {
		zl.Fatal("WC_ANALYTICS_DSN is required")
	}
	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, _ := cfg.Location()
	db, driver, err := database.Open(cfg.DSN, cfg.Timezone)
	if err != nil {
		zl.Fatal("open db", zap.Error(err))
	}
	defer db.Close()
	zl.Info("connected", zap.String("driver", driver))

	tables, err := database.NewTables(cfg.TablePrefix)
	if err != nil {
		zl.Fatal("tables", zap.Error(err))
	}
	orders := database.NewOrderStore(db, tables, cfg.Statuses(), cfg.MaxRows, loc)
	runner := &calculator.Runner{
		Orders:   orders,
		Items:    database.NewProductStore(db, orders),
		Titles:   cfg.Titles(),
		Keywords: cfg.Keywords(),
		MaxRows:  cfg.MaxRows,
		Log:      zl.Named("reports"),
	}
	settings, _ := cfg.Referral()
	referrals := referral.NewService(database.NewCouponStore(db, tables, loc), settings, zl.Named("referral"))

	router := api.NewRouter(api.Options{
		Reports:   runner,
		Referrals: referrals,
		Ranges:    daterange.New(loc),
		Log:       zl.Named("http"),
		Origins:   cfg.Origins(),
		Ping:      db.PingContext,
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("listening", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	zl.Info("stopped")
}
