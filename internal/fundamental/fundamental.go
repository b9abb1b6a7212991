// Package fundamental derives per-stock fundamental indicators from the
// current-price snapshot, 재무비율, and daily bars. 순수 함수만.
package fundamental

import (
	"github.com/wonny/sentinel/backend/internal/external/kis"
)

const rsiPeriod = 14

// Fundamental is the exported per-stock fundamentals view.
type Fundamental struct {
	Code       string  `json:"code"`
	PER        float64 `json:"per,omitempty"`
	PBR        float64 `json:"pbr,omitempty"`
	EPS        float64 `json:"eps,omitempty"`
	BPS        float64 `json:"bps,omitempty"`
	EPSGrowth  float64 `json:"eps_growth,omitempty"` // 최근 분기 EPS 증가율 %
	PEG        float64 `json:"peg,omitempty"`        // PER / EPS 증가율
	RSI14      float64 `json:"rsi_14,omitempty"`
	MarketCap  int64   `json:"market_cap,omitempty"`
	Week52High float64 `json:"week_52_high,omitempty"`
}

// Build assembles one stock's fundamentals. 어느 입력이든 비어 있을 수 있고,
// 없는 값은 0으로 남는다.
func Build(code string, snap *kis.PriceSnapshot, ratios []kis.FinancialRatio, bars []kis.DailyBar) Fundamental {
	f := Fundamental{Code: code}

	if snap != nil {
		f.PER = snap.PER
		f.PBR = snap.PBR
		f.EPS = snap.EPS
		f.BPS = snap.BPS
		f.MarketCap = snap.MarketCap
		f.Week52High = snap.Week52High
	}

	if len(ratios) > 0 {
		f.EPSGrowth = ratios[0].EPSGrowth
	}
	// PEG는 성장률이 양수일 때만 의미가 있다
	if f.PER > 0 && f.EPSGrowth > 0 {
		f.PEG = f.PER / f.EPSGrowth
	}

	f.RSI14 = rsi(chronologicalCloses(bars), rsiPeriod)
	return f
}

// rsi computes the Wilder-smoothed RSI over chronological closes.
// period+1개 미만이면 0.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// chronologicalCloses reverses latest-first bars into oldest-first closes,
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
