package calculator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"wc-analytics/pkg/models"
)

// OrderSource is the read side of the order store used by reports.
type OrderSource interface {
	CountOrders(ctx context.Context, window models.DateRange) (int, error)
	LoadOrders(ctx context.Context, window models.DateRange) ([]models.Order, error)
	LifetimeIndex(ctx context.Context) (models.LifetimeIndex, error)
	ExistingCustomers(ctx context.Context, before time.Time) (models.CustomerSet, error)
	PeriodCounts(ctx context.Context, window models.DateRange) (map[string]int, error)
}

// LineItemSource loads the line items of a window.
type LineItemSource interface {
	LoadLineItems(ctx context.Context, window models.DateRange) ([]models.LineItem, error)
}

// Runner builds reports from the stores. Store failures never escape a report:
// they are logged and the empty report for the window is returned.
type Runner struct {
	Orders   OrderSource
	Items    LineItemSource
	Titles   GatewayTitles
	Keywords []string
	MaxRows  int
	Log      *zap.Logger

	// Progress, when set, receives a progress bar over the report stages.
	Progress io.Writer
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

type barFunc func(stages int, desc string) *progressbar.ProgressBar

func silentBar(stages int, desc string) *progressbar.ProgressBar {
	return progressbar.DefaultSilent(int64(stages), desc)
}

func (r *Runner) bar(stages int, desc string) *progressbar.ProgressBar {
	if r.Progress == nil {
		return silentBar(stages, desc)
	}
	return progressbar.NewOptions(stages,
		progressbar.OptionSetWriter(r.Progress),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// ClientReport computes the client analysis for window. It never returns nil.
func (r *Runner) ClientReport(ctx context.Context, window models.DateRange) *models.ClientReport {
	return r.clientReportOrEmpty(ctx, window, r.bar)
}

func (r *Runner) clientReportOrEmpty(ctx context.Context, window models.DateRange, bar barFunc) *models.ClientReport {
	rep, err := r.clientReport(ctx, window, bar)
	if err != nil {
		r.log().Error("client report failed",
			zap.String("window", window.Name),
			zap.Time("start", window.Start),
			zap.Time("end", window.End),
			zap.Error(err))
		return EmptyClientReport(window)
	}
	return rep
}

func (r *Runner) clientReport(ctx context.Context, window models.DateRange, newBar barFunc) (*models.ClientReport, error) {
	bar := newBar(4, "clients "+window.Name)
	defer bar.Finish()

	total, err := r.checkVolume(ctx, window)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	orders, err := r.Orders.LoadOrders(ctx, window)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)
	if len(orders) == 0 {
		return EmptyClientReport(window), nil
	}

	lifetime, err := r.Orders.LifetimeIndex(ctx)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	existing, err := r.Orders.ExistingCustomers(ctx, window.Start)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	rep := Aggregate(window, orders, CustomerHistory{Lifetime: lifetime, Existing: existing}, r.Titles, r.Keywords)
	if total > rep.TotalOrders {
		// orders were cut at the row cap; the count covers the whole window
		rep.TotalOrders = total
		rep.AverageOrderValue = AverageOrderValue(rep.TotalRevenue, total)
	}
	r.log().Info("client report",
		zap.String("window", window.Name),
		zap.Int("orders", rep.TotalOrders),
		zap.Int("customers", rep.UniqueCustomers),
		zap.Int("new_customers", rep.NewCustomers),
		zap.String("net_revenue", rep.TotalRevenue.StringFixed(2)))
	return rep, nil
}

// checkVolume counts the window's orders and warns when they exceed the row cap.
func (r *Runner) checkVolume(ctx context.Context, window models.DateRange) (int, error) {
	n, err := r.Orders.CountOrders(ctx, window)
	if err != nil {
		return 0, err
	}
	if r.MaxRows > 0 && n > r.MaxRows {
		r.log().Warn("window exceeds row cap, report is truncated",
			zap.String("window", window.Name),
			zap.Int("orders", n),
			zap.Int("max_rows", r.MaxRows))
	}
	return n, nil
}

// ProductReport computes the product analysis for window under filter. It never returns nil.
func (r *Runner) ProductReport(ctx context.Context, window models.DateRange, filter string) *models.ProductReport {
	return r.productReportOrEmpty(ctx, window, filter, r.bar)
}

func (r *Runner) productReportOrEmpty(ctx context.Context, window models.DateRange, filter string, bar barFunc) *models.ProductReport {
	filter = NormalizeFilter(filter)
	rep, err := r.productReport(ctx, window, filter, bar)
	if err != nil {
		r.log().Error("product report failed",
			zap.String("window", window.Name),
			zap.String("filter", filter),
			zap.Error(err))
		return &models.ProductReport{Range: window, Filter: filter, Rows: []models.ProductRow{}}
	}
	return rep
}

func (r *Runner) productReport(ctx context.Context, window models.DateRange, filter string, newBar barFunc) (*models.ProductReport, error) {
	if r.Items == nil {
		return nil, fmt.Errorf("no line item source configured")
	}
	bar := newBar(2, "products "+window.Name)
	defer bar.Finish()

	counts, err := r.Orders.PeriodCounts(ctx, window)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	items, err := r.Items.LoadLineItems(ctx, window)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	rep := AggregateProducts(window, filter, items, KeepItemsForFilter(items, counts, filter))
	r.log().Info("product report",
		zap.String("window", window.Name),
		zap.String("filter", filter),
		zap.Int("products", len(rep.Rows)))
	return rep, nil
}

// CompareClients computes the main and comparison reports concurrently.
// Compare is nil when compare is nil. Only the main window drives Progress.
func (r *Runner) CompareClients(ctx context.Context, main models.DateRange, compare *models.DateRange) models.ClientComparison {
	var (
		out models.ClientComparison
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		out.Main = r.ClientReport(ctx, main)
	}()
	if compare != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Compare = r.clientReportOrEmpty(ctx, *compare, silentBar)
		}()
	}
	wg.Wait()
	return out
}

// CompareProducts computes the main and comparison product reports concurrently.
func (r *Runner) CompareProducts(ctx context.Context, main models.DateRange, compare *models.DateRange, filter string) models.ProductComparison {
	var (
		out models.ProductComparison
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		out.Main = r.ProductReport(ctx, main, filter)
	}()
	if compare != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Compare = r.productReportOrEmpty(ctx, *compare, filter, silentBar)
		}()
	}
	wg.Wait()
	return out
}
