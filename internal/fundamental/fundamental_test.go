package fundamental

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/internal/external/kis"
)

// barsFromCloses builds latest-first bars from oldest-first closes.
func barsFromCloses(closes ...float64) []kis.DailyBar {
	bars := make([]kis.DailyBar, len(closes))
	for i, c := range closes {
		bars[len(closes)-1-i] = kis.DailyBar{
			Date:  fmt.Sprintf("202608%02d", i+1),
			Close: c,
		}
	}
	return bars
}

func TestRSIAllGainsSaturates(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10000 + float64(i)*100
	}
	assert.InDelta(t, 100.0, rsi(closes, rsiPeriod), 0.001)
}

func TestRSIBalancedMovesNearMidline(t *testing.T) {
	// 동일 폭으로 오르내리면 RSI는 50 부근
	closes := make([]float64, 40)
	closes[0] = 10000
	for i := 1; i < len(closes); i++ {
		if i%2 == 0 {
			closes[i] = closes[i-1] - 100
		} else {
			closes[i] = closes[i-1] + 100
		}
	}
	got := rsi(closes, rsiPeriod)
	assert.Greater(t, got, 40.0)
	assert.Less(t, got, 60.0)
}

func TestRSIInsufficientBars(t *testing.T) {
	assert.Zero(t, rsi([]float64{100, 101, 102}, rsiPeriod))
}

func TestBuildDerivesPEG(t *testing.T) {
	snap := &kis.PriceSnapshot{
		PER: 12.0, PBR: 1.4, EPS: 5800, BPS: 49000,
		MarketCap: 400_000_000_000, Week52High: 71000,
	}
	ratios := []kis.FinancialRatio{
		{Period: "202506", EPSGrowth: 24.0},
		{Period: "202503", EPSGrowth: 11.0},
	}

	f := Build("005930", snap, ratios, nil)
	assert.Equal(t, 12.0, f.PER)
	assert.Equal(t, 24.0, f.EPSGrowth, "최신 분기 성장률 사용")
	assert.InDelta(t, 0.5, f.PEG, 0.001)
}

func TestBuildPEGRequiresPositiveGrowth(t *testing.T) {
	snap := &kis.PriceSnapshot{PER: 12.0}

	f := Build("005930", snap, []kis.FinancialRatio{{EPSGrowth: -3.5}}, nil)
	assert.Zero(t, f.PEG)

	f = Build("005930", snap, nil, nil)
	assert.Zero(t, f.PEG)
}

func TestBuildToleratesMissingInputs(t *testing.T) {
	f := Build("005930", nil, nil, nil)
	require.Equal(t, "005930", f.Code)
	assert.Zero(t, f.PER)
	assert.Zero(t, f.RSI14)
}

func TestBuildComputesRSIFromLatestFirstBars(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10000 + float64(i)*50
	}
	f := Build("005930", nil, nil, barsFromCloses(closes...))
	assert.InDelta(t, 100.0, f.RSI14, 0.001)
}
