package criteria

import "github.com/wonny/sentinel/backend/internal/external/kis"

// maPeriods are the moving-average windows checked for 정배열.
var maPeriods = []int{5, 10, 20, 60, 120}

// ema computes the exponential moving average over closes (oldest first),
// seeded with the simple average of the first period values.
// 데이터가 period 미만이면 ok=false.
func ema(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}

	var seed float64
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)

	multiplier := 2.0 / float64(period+1)
	value := seed
	for _, c := range closes[period:] {
		value = (c-value)*multiplier + value
	}
	return value, true
}

// chronologicalCloses extracts closes oldest-first from latest-first bars,
// skipping zero rows.
func chronologicalCloses(bars []kis.DailyBar) []float64 {
	closes := make([]float64, 0, len(bars))
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close > 0 {
			closes = append(closes, bars[i].Close)
		}
	}
	return closes
}
