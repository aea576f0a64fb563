// Package daterange turns report presets into closed day-level windows.
package daterange

import (
	"fmt"
	"strings"
	"time"

	"wc-analytics/pkg/models"
)

// Presets accepted by Resolve.
const (
	Today         = "today"
	Yesterday     = "yesterday"
	WeekToDate    = "week_to_date"
	LastWeek      = "last_week"
	MonthToDate   = "month_to_date"
	LastMonth     = "last_month"
	QuarterToDate = "quarter_to_date"
	LastQuarter   = "last_quarter"
	YearToDate    = "year_to_date"
	LastYear      = "last_year"
	Custom        = "custom"
)

// Comparison presets accepted by ResolveComparison.
const (
	PreviousPeriod = "previous_period"
	PreviousYear   = "previous_year"
)

var customLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Resolver resolves presets relative to Now in Location.
type Resolver struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a Resolver on the wall clock in loc (time.Local when nil).
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{Now: time.Now, Location: loc}
}

func (r *Resolver) today() time.Time {
	now := r.Now().In(r.Location)
	return startOfDay(now)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func window(start, end time.Time, name, preset string) models.DateRange {
	return models.DateRange{Start: startOfDay(start), End: endOfDay(end), Name: name, Preset: preset}
}

// Resolve returns the window for preset. Unknown presets fall back to month to date,
// and a custom preset with an unparsable bound falls back to month to date as well.
func (r *Resolver) Resolve(preset, customStart, customEnd string) models.DateRange {
	today := r.today()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.Location)

	switch preset {
	case Today:
		return window(today, today, "Today", preset)
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return window(y, y, "Yesterday", preset)
	case WeekToDate:
		return window(mondayOf(today), today, "Week to Date", preset)
	case LastWeek:
		monday := mondayOf(today).AddDate(0, 0, -7)
		return window(monday, monday.AddDate(0, 0, 6), "Last Week", preset)
	case MonthToDate:
		return window(monthStart, today, "Month to Date", preset)
	case LastMonth:
		first := monthStart.AddDate(0, -1, 0)
		return window(first, monthStart.AddDate(0, 0, -1), "Last Month", preset)
	case QuarterToDate:
		return window(quarterStart(today), today, "Quarter to Date", preset)
	case LastQuarter:
		start := quarterStart(today).AddDate(0, -3, 0)
		return window(start, start.AddDate(0, 3, -1), "Last Quarter", preset)
	case YearToDate:
		return window(time.Date(today.Year(), 1, 1, 0, 0, 0, 0, r.Location), today, "Year to Date", preset)
	case LastYear:
		y := today.Year() - 1
		return window(time.Date(y, 1, 1, 0, 0, 0, 0, r.Location), time.Date(y, 12, 31, 0, 0, 0, 0, r.Location), "Last Year", preset)
	case Custom:
		if strings.TrimSpace(customStart) == "" || strings.TrimSpace(customEnd) == "" {
			return window(monthStart, today, "Month to Date", MonthToDate)
		}
		start, errS := r.parseDay(customStart)
		end, errE := r.parseDay(customEnd)
		if errS != nil || errE != nil {
			return window(monthStart, today, "Month to Date (Fallback)", MonthToDate)
		}
		return window(start, end, customName(start, end), preset)
	default:
		return window(monthStart, today, "Month to Date", MonthToDate)
	}
}

// ResolveComparison returns the window main is compared against, or nil when compare
// is empty, unknown, or a custom comparison without usable bounds.
func (r *Resolver) ResolveComparison(compare string, main models.DateRange, customStart, customEnd string) *models.DateRange {
	switch compare {
	case Custom:
		if strings.TrimSpace(customStart) == "" || strings.TrimSpace(customEnd) == "" {
			return nil
		}
		start, errS := r.parseDay(customStart)
		end, errE := r.parseDay(customEnd)
		if errS != nil || errE != nil {
			return nil
		}
		w := window(start, end, customName(start, end), compare)
		return &w
	case PreviousYear:
		if main.Start.IsZero() || main.End.IsZero() {
			return nil
		}
		w := window(main.Start.AddDate(-1, 0, 0), main.End.AddDate(-1, 0, 0), "Previous Year", compare)
		return &w
	case PreviousPeriod:
		if main.Start.IsZero() || main.End.IsZero() {
			return nil
		}
		start := startOfDay(main.Start.In(r.Location))
		span := daysBetween(start, startOfDay(main.End.In(r.Location)))
		w := models.DateRange{
			Start:  start.AddDate(0, 0, -span),
			End:    start.Add(-time.Second),
			Name:   "Previous Period",
			Preset: compare,
		}
		return &w
	default:
		return nil
	}
}

func (r *Resolver) parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range customLayouts {
		if t, err := time.ParseInLocation(layout, s, r.Location); err == nil {
			return startOfDay(t.In(r.Location)), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func customName(start, end time.Time) string {
	return fmt.Sprintf("Custom (%s - %s)", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006"))
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func quarterStart(t time.Time) time.Time {
	month := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(month), 1, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, both at midnight.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// ResolveRequest resolves the main window of req, last month when no preset is
// given, and its optional comparison window.
func (r *Resolver) ResolveRequest(req models.ReportRequest) (models.DateRange, *models.DateRange) {
	preset := req.Preset
	if preset == "" {
		preset = LastMonth
	}
	main := r.Resolve(preset, req.CustomStart, req.CustomEnd)
	return main, r.ResolveComparison(req.CompareTo, main, req.CompareCustomStart, req.CompareCustomEnd)
}
