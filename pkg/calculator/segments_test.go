package calculator

import (
	"math"
	"testing"

	"wc-analytics/pkg/models"
)

func TestSegmentKey(t *testing.T) {
	cases := []struct {
		n    int
		key  string
		want bool
	}{
		{1, "new_customers", true},
		{2, "returning_2", true},
		{3, "repeat_3", true},
		{10, "repeat_10", true},
		{11, "loyal_customers", true},
		{250, "loyal_customers", true},
		{0, "", false},
		{-3, "", false},
	}
	for _, c := range cases {
		key, ok := SegmentKey(c.n)
		if key != c.key || ok != c.want {
			t.Fatalf("SegmentKey(%d) = %q, %v; want %q, %v", c.n, key, ok, c.key, c.want)
		}
	}
}

func TestEmptySegments_Layout(t *testing.T) {
	segs := EmptySegments()
	if len(segs) != 11 {
		t.Fatalf("got %d buckets, want 11", len(segs))
	}
	if segs[0].Range != "First-time customers" || segs[1].Range != "2nd order overall" {
		t.Fatalf("unexpected leading ranges: %q, %q", segs[0].Range, segs[1].Range)
	}
	if segs[2].Key != "repeat_3" || segs[2].Range != "3rd order" {
		t.Fatalf("unexpected third bucket: %+v", segs[2])
	}
	if last := segs[10]; last.Key != SegmentLoyal || last.Range != "10+ orders" || last.Min != 11 {
		t.Fatalf("unexpected loyal bucket: %+v", last)
	}
}

func sumSegments(segs []models.Segment) (int, float64) {
	var (
		n   int
		pct float64
	)
	for _, s := range segs {
		n += s.Count
		pct += s.Percentage
	}
	return n, pct
}

func TestClassifyLifetime_CountsAndPercentages(t *testing.T) {
	period := map[string]int{"a@x": 1, "b@x": 1, "c@x": 2, "d@x": 1, "e@x": 1, "f@x": 1}
	lifetime := models.LifetimeIndex{"a@x": 1, "b@x": 2, "c@x": 12, "d@x": 4, "e@x": 1, "f@x": 10}

	segs := ClassifyLifetime(period, lifetime)
	n, pct := sumSegments(segs)
	if n != 6 {
		t.Fatalf("classified %d customers, want 6", n)
	}
	if math.Abs(pct-100) > 0.1+1e-9 {
		t.Fatalf("percentages sum to %.1f", pct)
	}
	byKey := map[string]models.Segment{}
	for _, s := range segs {
		byKey[s.Key] = s
	}
	if byKey["new_customers"].Count != 2 || byKey["new_customers"].Percentage != 33.3 {
		t.Fatalf("new bucket = %+v", byKey["new_customers"])
	}
	if byKey["repeat_10"].Count != 1 || byKey["loyal_customers"].Count != 1 || byKey["repeat_4"].Count != 1 {
		t.Fatalf("unexpected buckets: %+v", segs)
	}
}

func TestClassifyLifetime_MissingLifetimeIsExcluded(t *testing.T) {
	segs := ClassifyLifetime(map[string]int{"a@x": 1, "ghost@x": 1}, models.LifetimeIndex{"a@x": 3})
	n, pct := sumSegments(segs)
	if n != 1 || pct != 100 {
		t.Fatalf("got n=%d pct=%.1f, want 1 and 100", n, pct)
	}
}

func TestClassifyPeriod_Empty(t *testing.T) {
	segs := ClassifyPeriod(nil)
	n, pct := sumSegments(segs)
	if n != 0 || pct != 0 {
		t.Fatalf("empty classification gave n=%d pct=%.1f", n, pct)
	}
}

func TestNewCustomerRulesStayDistinct(t *testing.T) {
	existing := models.CustomerSet{"old@x": {}}
	// A customer known before the window with one order in it is returning for
	// client revenue but a new buyer for product analysis.
	if IsNewCustomer("old@x", existing) {
		t.Fatal("old@x should not be new under the lifetime rule")
	}
	if !IsPeriodNewBuyer(1) {
		t.Fatal("one order in window should be a new buyer under the window-local rule")
	}
	if IsPeriodNewBuyer(2) || !IsPeriodReturningBuyer(2) {
		t.Fatal("two orders in window should be a returning buyer")
	}
	if !IsNewCustomer("fresh@x", existing) {
		t.Fatal("fresh@x should be new")
	}
}
