package calculator

import "github.com/shopspring/decimal"

// Delta is the percentage change from previous to current, rounded to one decimal.
// A zero baseline yields 100 when current is positive and 0 otherwise.
func Delta(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round1((current - previous) / previous * 100)
}

// DeltaInt is Delta over counts.
func DeltaInt(current, previous int) float64 {
	return Delta(float64(current), float64(previous))
}

// DeltaDecimal is Delta over money; the division happens in decimal before rounding.
func DeltaDecimal(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	pct := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	return pct.Round(1).InexactFloat64()
}
