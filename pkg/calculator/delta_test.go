package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDelta(t *testing.T) {
	cases := []struct {
		cur, prev, want float64
	}{
		{0, 0, 0},
		{5, 0, 100},
		{50, 100, -50},
		{150, 100, 50},
		{1, 3, -66.7},
		{-5, 0, 0},
	}
	for _, c := range cases {
		if got := Delta(c.cur, c.prev); got != c.want {
			t.Fatalf("Delta(%v, %v) = %v, want %v", c.cur, c.prev, got, c.want)
		}
	}
}

func TestDeltaDecimal(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	if got := DeltaDecimal(d("110.00"), d("100.00")); got != 10 {
		t.Fatalf("got %v, want 10", got)
	}
	if got := DeltaDecimal(d("0"), d("0")); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
	if got := DeltaDecimal(d("12.34"), decimal.Zero); got != 100 {
		t.Fatalf("got %v, want 100", got)
	}
	if got := DeltaInt(3, 4); got != -25 {
		t.Fatalf("got %v, want -25", got)
	}
}
