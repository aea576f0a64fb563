package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// wallClock scans a DATETIME column as a wall-clock time in loc, whatever the driver
// hands back (time.Time from mysql parseTime or sqlite3, text otherwise).
type wallClock struct {
	loc  *time.Location
	Time time.Time
}

func (w *wallClock) Scan(src any) error {
	loc := w.loc
	if loc == nil {
		loc = time.Local
	}
	switch v := src.(type) {
	case nil:
		w.Time = time.Time{}
		return nil
	case time.Time:
		w.Time = time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), 0, loc)
		return nil
	case []byte:
		return w.parse(string(v), loc)
	case string:
		return w.parse(v, loc)
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (w *wallClock) parse(s string, loc *time.Location) error {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	w.Time = t
	return nil
}

// parseMoney reads a postmeta amount; empty or malformed values count as zero.
func parseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// quantities are sometimes stored as "2.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
