package calculator

import (
	"fmt"
	"math"

	"wc-analytics/pkg/models"
)

// Segment keys, in display order.
const (
	SegmentNew       = "new_customers"
	SegmentReturning = "returning_2"
	SegmentLoyal     = "loyal_customers"
)

const loyalThreshold = 11

// EmptySegments returns the eleven buckets with zero counts.
func EmptySegments() []models.Segment {
	segs := []models.Segment{
		{Key: SegmentNew, Label: "New Customers", Range: "First-time customers", Min: 1, Max: 1},
		{Key: SegmentReturning, Label: "Returning Customers", Range: "2nd order overall", Min: 2, Max: 2},
	}
	for n := 3; n <= 10; n++ {
		segs = append(segs, models.Segment{
			Key:   fmt.Sprintf("repeat_%d", n),
			Label: "Returning Customers",
			Range: ordinal(n) + " order",
			Min:   n,
			Max:   n,
		})
	}
	return append(segs, models.Segment{
		Key: SegmentLoyal, Label: "Returning Customers", Range: "10+ orders", Min: loyalThreshold, Max: 9999,
	})
}

// SegmentKey maps an order-sequence number to its bucket. Zero and negative
// numbers belong to no bucket.
func SegmentKey(n int) (string, bool) {
	switch {
	case n <= 0:
		return "", false
	case n == 1:
		return SegmentNew, true
	case n == 2:
		return SegmentReturning, true
	case n <= 10:
		return fmt.Sprintf("repeat_%d", n), true
	default:
		return SegmentLoyal, true
	}
}

// ClassifyLifetime buckets every customer seen in the window by their all-time order count.
func ClassifyLifetime(periodCounts map[string]int, lifetime models.LifetimeIndex) []models.Segment {
	seq := make(map[string]int, len(periodCounts))
	for email := range periodCounts {
		seq[email] = lifetime[email]
	}
	return classify(seq)
}

// ClassifyPeriod buckets every customer seen in the window by their order count inside it.
func ClassifyPeriod(periodCounts map[string]int) []models.Segment {
	return classify(periodCounts)
}

func classify(seq map[string]int) []models.Segment {
	segs := EmptySegments()
	idx := make(map[string]int, len(segs))
	for i, s := range segs {
		idx[s.Key] = i
	}

	classified := 0
	for email, n := range seq {
		if email == "" {
			continue
		}
		key, ok := SegmentKey(n)
		if !ok {
			continue
		}
		segs[idx[key]].Count++
		classified++
	}

	for i := range segs {
		segs[i].Percentage = percentOf(segs[i].Count, classified)
	}
	return segs
}

// IsNewCustomer applies the lifetime-first-order rule: a customer is new when no
// qualifying order of theirs predates the window.
func IsNewCustomer(email string, existing models.CustomerSet) bool {
	return !existing.Has(email)
}

// IsPeriodNewBuyer applies the window-local rule used by product analysis:
// exactly one order inside the window.
func IsPeriodNewBuyer(ordersInWindow int) bool {
	return ordersInWindow == 1
}

// IsPeriodReturningBuyer is the window-local counterpart: more than one order inside the window.
func IsPeriodReturningBuyer(ordersInWindow int) bool {
	return ordersInWindow > 1
}

func percentOf(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}
