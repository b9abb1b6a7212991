package criteria

import (
	"fmt"
	"strings"

	"github.com/wonny/sentinel/backend/internal/external/kis"
)

// 호가 단위가 바뀌는 가격 경계 (원).
var tickBoundaries = []float64{2000, 5000, 20000, 50000, 200000, 500000}

// 심리적 라운드 넘버: 가격대별 단위.
var roundLevels = []struct {
	threshold float64
	unit      float64
}{
	{500_000, 100_000},
	{100_000, 50_000},
	{50_000, 10_000},
	{20_000, 5_000},
	{10_000, 1_000},
	{5_000, 500},
	{1_000, 100},
}

const (
	reasonNoPrice = "현재가 데이터 없음"
	reasonNoBars  = "일봉 데이터 없음"
)

func won(v float64) string {
	return formatComma(int64(v))
}

func formatComma(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// HighBreakout: 최근 6개월(≤120영업일) 최고가 또는 52주 신고가 돌파.
func (e *Engine) HighBreakout(current float64, bars []kis.DailyBar, week52High float64) CriterionResult {
	if current <= 0 {
		return insufficient(reasonNoPrice)
	}

	var highs []float64
	limit := len(bars)
	if limit > 120 {
		limit = 120
	}
	for _, bar := range bars[:limit] {
		if bar.High > 0 {
			highs = append(highs, bar.High)
		}
	}
	if len(highs) == 0 && week52High <= 0 {
		return insufficient(reasonNoBars)
	}

	result := CriterionResult{}
	if len(highs) > 0 {
		sixMonthHigh := highs[0]
		for _, h := range highs[1:] {
			if h > sixMonthHigh {
				sixMonthHigh = h
			}
		}
		if current >= sixMonthHigh {
			result.Met = true
			result.Reason = fmt.Sprintf("6개월 최고가 %s원 돌파 (현재가 %s원)", won(sixMonthHigh), won(current))
		} else {
			result.Reason = fmt.Sprintf("6개월 최고가 %s원 미달 (현재가 %s원)", won(sixMonthHigh), won(current))
		}
	}

	if week52High > 0 && current >= week52High {
		result.Met = true
		result.Details = map[string]any{"is_52w_high": true}
		result.Reason = fmt.Sprintf("52주 신고가 경신 (기존 %s원 → 현재 %s원)", won(week52High), won(current))
	}

	if result.Reason == "" {
		result.Reason = fmt.Sprintf("52주 신고가 %s원 미달 (현재가 %s원)", won(week52High), won(current))
	}
	return result
}

// MomentumHistory: 과거(당일 제외) 상한가 이력 또는 대형 거래대금일(+10%
// 이상 장중 상승) 이력.
func (e *Engine) MomentumHistory(bars []kis.DailyBar) CriterionResult {
	if len(bars) < 2 {
		return insufficient("과거 일봉 데이터 부족")
	}

	var reasons []string
	var hadLimitUp, hadBigDay bool

	// bars는 최신순. 가장 최근 봉(당일)은 제외하고 본다.
	past := bars[1:]
	for i, bar := range past {
		if bar.Close <= 0 {
			continue
		}

		// 전일 종가 대비 등락률
		if i+1 < len(past) && past[i+1].Close > 0 && !hadLimitUp {
			changeRate := (bar.Close - past[i+1].Close) / past[i+1].Close * 100
			if changeRate >= e.cfg.LimitUpRate {
				hadLimitUp = true
				reasons = append(reasons, fmt.Sprintf("상한가 기록 (%s, +%.1f%%)", bar.FormattedDate(), changeRate))
			}
		}

		// 대형 거래대금 + 장중 강세
		if !hadBigDay && bar.Open > 0 && bar.TradingValue >= e.cfg.BigDayTradingValue {
			intraday := (bar.Close - bar.Open) / bar.Open * 100
			if intraday >= e.cfg.BigDayIntradayRate {
				hadBigDay = true
				reasons = append(reasons, fmt.Sprintf("거래대금 %s원 + 장중 +%.1f%% (%s)",
					formatComma(bar.TradingValue), intraday, bar.FormattedDate()))
			}
		}

		if hadLimitUp && hadBigDay {
			break
		}
	}

	if len(reasons) > 0 {
		return CriterionResult{Met: true, Reason: strings.Join(reasons, " | ")}
	}
	return CriterionResult{Reason: fmt.Sprintf("과거 %d일 내 상한가/대형 거래대금일 없음", len(past))}
}

// ResistanceBreakout: 호가 단위 경계 또는 라운드 넘버를 전일 종가와 현재가
// 사이에서 넘어섰는지.
func (e *Engine) ResistanceBreakout(current, prevClose float64) CriterionResult {
	if current <= 0 {
		return insufficient(reasonNoPrice)
	}
	if prevClose <= 0 {
		return insufficient("전일 종가 데이터 없음")
	}

	var reasons []string

	for _, boundary := range tickBoundaries {
		if prevClose < boundary && boundary <= current {
			reasons = append(reasons, fmt.Sprintf("호가 단위 변경 구간 %s원 돌파 (전일 %s → 현재 %s)",
				won(boundary), won(prevClose), won(current)))
			break
		}
	}

	for _, level := range roundLevels {
		if current >= level.threshold {
			nextRound := (float64(int64(prevClose/level.unit)) + 1) * level.unit
			if prevClose < nextRound && nextRound <= current {
				reasons = append(reasons, fmt.Sprintf("심리적 저항선 %s원 돌파", won(nextRound)))
			}
			break
		}
	}

	if len(reasons) > 0 {
		return CriterionResult{Met: true, Reason: strings.Join(reasons, " | ")}
	}
	return CriterionResult{Reason: fmt.Sprintf("저항선 돌파 없음 (전일 %s → 현재 %s)", won(prevClose), won(current))}
}

// MAAlignment: 현재가 > EMA5 > EMA10 > EMA20 > EMA60 > EMA120 정배열.
// 종가 120개 미만이면 데이터 부족으로 판정한다.
func (e *Engine) MAAlignment(current float64, bars []kis.DailyBar) CriterionResult {
	if current <= 0 {
		return insufficient(reasonNoPrice)
	}

	closes := chronologicalCloses(bars)
	if len(closes) < maPeriods[len(maPeriods)-1] {
		return insufficient(fmt.Sprintf("이동평균 계산 불가 (데이터 부족: %d일분)", len(closes)))
	}

	values := map[string]any{}
	mas := make([]float64, 0, len(maPeriods))
	for _, period := range maPeriods {
		v, ok := ema(closes, period)
		if !ok {
			return insufficient(fmt.Sprintf("이동평균 계산 불가 (데이터 부족: %d일분)", len(closes)))
		}
		mas = append(mas, v)
		values[fmt.Sprintf("ema%d", period)] = int64(v)
	}

	aligned := true
	prev := current
	for _, v := range mas {
		if prev <= v {
			aligned = false
			break
		}
		prev = v
	}

	result := CriterionResult{Met: aligned, Details: values}
	if aligned {
		parts := []string{fmt.Sprintf("현재가(%s)", won(current))}
		for i, period := range maPeriods {
			parts = append(parts, fmt.Sprintf("EMA%d(%s)", period, won(mas[i])))
		}
		result.Reason = strings.Join(parts, " > ") + " 정배열"
	} else {
		parts := make([]string, 0, len(maPeriods))
		for i, period := range maPeriods {
			parts = append(parts, fmt.Sprintf("EMA%d:%s", period, won(mas[i])))
		}
		result.Reason = "정배열 미충족 (" + strings.Join(parts, " | ") + ")"
	}
	return result
}

// InvestorFlow: 외국인·기관 동시 순매수.
func (e *Engine) InvestorFlow(flow *kis.InvestorFlow) CriterionResult {
	if flow == nil {
		return insufficient("투자자별 매매동향 데이터 없음")
	}

	var parts []string
	if flow.ForeignNet != 0 {
		parts = append(parts, fmt.Sprintf("외국인 %+d주", flow.ForeignNet))
	}
	if flow.InstitutionNet != 0 {
		parts = append(parts, fmt.Sprintf("기관 %+d주", flow.InstitutionNet))
	}
	reason := strings.Join(parts, " | ")
	if reason == "" {
		reason = "외국인/기관 순매수 없음"
	}

	return CriterionResult{
		Met:    flow.ForeignNet > 0 && flow.InstitutionNet > 0,
		Reason: reason,
	}
}

// ProgramTrading: 프로그램 순매수.
func (e *Engine) ProgramTrading(netBuy int64, present bool) CriterionResult {
	if !present {
		return insufficient("프로그램 매매 데이터 없음")
	}
	switch {
	case netBuy > 0:
		return CriterionResult{Met: true, Reason: fmt.Sprintf("프로그램 순매수 +%s주", formatComma(netBuy))}
	case netBuy < 0:
		return CriterionResult{Reason: fmt.Sprintf("프로그램 순매도 %s주", formatComma(netBuy))}
	default:
		return CriterionResult{Reason: "프로그램 순매수 없음"}
	}
}

// Top30TradingValue: 당일 거래대금 TOP30 포함 여부.
func (e *Engine) Top30TradingValue(code string, top30 map[string]struct{}) CriterionResult {
	if _, ok := top30[code]; ok {
		return CriterionResult{Met: true, Reason: "당일 거래대금 TOP30 포함"}
	}
	return CriterionResult{Reason: "당일 거래대금 TOP30 미포함"}
}

// MarketCapBand: 시가총액이 설정 밴드 안인지 (양끝 포함).
func (e *Engine) MarketCapBand(marketCap int64) CriterionResult {
	if marketCap <= 0 {
		return insufficient("시가총액 데이터 없음")
	}
	met := marketCap >= e.cfg.MarketCapFloor && marketCap <= e.cfg.MarketCapCeil
	reason := fmt.Sprintf("시가총액 %s원", formatComma(marketCap))
	if met {
		reason += " (밴드 내)"
	} else {
		reason += fmt.Sprintf(" (밴드 %s~%s원 밖)", formatComma(e.cfg.MarketCapFloor), formatComma(e.cfg.MarketCapCeil))
	}
	return CriterionResult{Met: met, Reason: reason}
}

// ShortSelling: 공매도 비중 경고. met이어도 all_met 집계에서는 제외되는
// 경고 전용 규칙. 시세 데이터 자체가 없으면 "공매도 미미"와 구분해
// Insufficient로 표시한다.
func (e *Engine) ShortSelling(ratio float64, volume int64, present bool) CriterionResult {
	if !present {
		return insufficient("공매도 데이터 없음")
	}
	if ratio <= 0 && volume <= 0 {
		return CriterionResult{Warning: true, Reason: "공매도 미미"}
	}
	met := ratio >= e.cfg.ShortRatioWarn
	reason := fmt.Sprintf("공매도 비중 %.1f%% (%s주)", ratio, formatComma(volume))
	if met {
		reason += fmt.Sprintf(" (경고 기준 %.1f%% 이상)", e.cfg.ShortRatioWarn)
	}
	return CriterionResult{Met: met, Warning: true, Reason: reason}
}

func insufficient(reason string) CriterionResult {
	return CriterionResult{Insufficient: true, Reason: reason}
}
