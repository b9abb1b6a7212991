package criteria

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

func testEngine() *Engine {
	return NewEngine(DefaultConfig(), logger.Nop())
}

// barsFromCloses builds latest-first bars from chronological closes.
// 고가는 종가와 같게 둔다.
func barsFromCloses(closes ...float64) []kis.DailyBar {
	bars := make([]kis.DailyBar, 0, len(closes))
	for i := len(closes) - 1; i >= 0; i-- {
		bars = append(bars, kis.DailyBar{
			Date:  "20260801",
			Open:  closes[i],
			High:  closes[i],
			Low:   closes[i],
			Close: closes[i],
		})
	}
	return bars
}

func TestHighBreakoutSixMonthHigh(t *testing.T) {
	e := testEngine()

	bars := make([]kis.DailyBar, 120)
	for i := range bars {
		bars[i] = kis.DailyBar{Date: "20260801", High: 65000, Close: 64000}
	}
	bars[60].High = 69500 // 구간 내 최고가

	result := e.HighBreakout(70000, bars, 71000)

	assert.True(t, result.Met)
	assert.False(t, result.Insufficient)
	// 52주 신고가(71,000)는 미달이지만 6개월 최고가 돌파로 충족
	assert.Contains(t, result.Reason, "69,500")
	assert.Contains(t, result.Reason, "70,000")
}

func TestHighBreakout52WeekHigh(t *testing.T) {
	e := testEngine()
	bars := barsFromCloses(60000, 61000, 62000)

	result := e.HighBreakout(72000, bars, 71000)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "52주 신고가")
	assert.Equal(t, true, result.Details["is_52w_high"])
}

func TestHighBreakoutNotMet(t *testing.T) {
	e := testEngine()
	bars := []kis.DailyBar{{Date: "20260801", High: 75000, Close: 74000}}

	result := e.HighBreakout(70000, bars, 80000)
	assert.False(t, result.Met)
	assert.NotEmpty(t, result.Reason)
}

func TestHighBreakoutInsufficientData(t *testing.T) {
	e := testEngine()

	result := e.HighBreakout(0, nil, 0)
	assert.False(t, result.Met)
	assert.True(t, result.Insufficient)

	result = e.HighBreakout(70000, nil, 0)
	assert.True(t, result.Insufficient)
}

func TestMomentumHistoryLimitUp(t *testing.T) {
	e := testEngine()
	// 최신순: 당일 1300 (제외), 1290은 전일 1000 대비 +29%
	bars := barsFromCloses(990, 1000, 1290, 1300)

	result := e.MomentumHistory(bars)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "상한가")
}

func TestMomentumHistoryIgnoresToday(t *testing.T) {
	e := testEngine()
	// 당일만 +29% — 과거 이력이 아니므로 미충족
	bars := barsFromCloses(1000, 1010, 1300)

	result := e.MomentumHistory(bars)
	assert.False(t, result.Met)
}

func TestMomentumHistoryBigTradingValueDay(t *testing.T) {
	e := testEngine()
	bars := []kis.DailyBar{
		{Date: "20260825", Open: 11600, Close: 11700}, // 당일
		{Date: "20260824", Open: 10000, Close: 11500, TradingValue: 60_000_000_000},
		{Date: "20260823", Open: 9900, Close: 10000},
	}

	result := e.MomentumHistory(bars)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "거래대금")
}

func TestMomentumHistoryInsufficient(t *testing.T) {
	e := testEngine()
	result := e.MomentumHistory(nil)
	assert.True(t, result.Insufficient)
}

func TestResistanceBreakoutTickBoundary(t *testing.T) {
	e := testEngine()

	result := e.ResistanceBreakout(50500, 49500)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "50,000")
}

func TestResistanceBreakoutRoundNumber(t *testing.T) {
	e := testEngine()

	// 1만원대: 1천 단위 라운드 넘버. 12,900 → 13,100은 13,000 돌파
	result := e.ResistanceBreakout(13100, 12900)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "13,000")
}

func TestResistanceBreakoutNotCrossed(t *testing.T) {
	e := testEngine()

	result := e.ResistanceBreakout(12500, 12100)
	assert.False(t, result.Met)
	assert.NotEmpty(t, result.Reason)
}

func TestResistanceBreakoutMissingPrevClose(t *testing.T) {
	e := testEngine()
	result := e.ResistanceBreakout(12500, 0)
	assert.True(t, result.Insufficient)
}

func TestMAAlignmentMet(t *testing.T) {
	e := testEngine()

	// 꾸준한 상승 시계열 → 단기 EMA가 장기 EMA보다 항상 위
	closes := make([]float64, 130)
	for i := range closes {
		closes[i] = 10000 + float64(i)*100
	}
	bars := barsFromCloses(closes...)

	result := e.MAAlignment(30000, bars)
	assert.True(t, result.Met)
	assert.Contains(t, result.Reason, "정배열")
	assert.NotEmpty(t, result.Details)
}

func TestMAAlignmentNotMet(t *testing.T) {
	e := testEngine()

	// 하락 시계열 → 역배열
	closes := make([]float64, 130)
	for i := range closes {
		closes[i] = 30000 - float64(i)*100
	}
	bars := barsFromCloses(closes...)

	result := e.MAAlignment(15000, bars)
	assert.False(t, result.Met)
	assert.False(t, result.Insufficient)
	assert.Contains(t, result.Reason, "정배열 미충족")
}

func TestMAAlignmentInsufficientData(t *testing.T) {
	e := testEngine()
	bars := barsFromCloses(10000, 10100, 10200)

	result := e.MAAlignment(10300, bars)
	assert.False(t, result.Met)
	assert.True(t, result.Insufficient)
	assert.Contains(t, result.Reason, "데이터 부족")
}

func TestInvestorFlowRule(t *testing.T) {
	e := testEngine()

	met := e.InvestorFlow(&kis.InvestorFlow{ForeignNet: 120_000, InstitutionNet: 35_000})
	assert.True(t, met.Met)
	assert.Contains(t, met.Reason, "외국인")
	assert.Contains(t, met.Reason, "기관")

	oneSided := e.InvestorFlow(&kis.InvestorFlow{ForeignNet: 120_000, InstitutionNet: -5_000})
	assert.False(t, oneSided.Met)

	missing := e.InvestorFlow(nil)
	assert.True(t, missing.Insufficient)
}

func TestProgramTradingRule(t *testing.T) {
	e := testEngine()

	assert.True(t, e.ProgramTrading(50_000, true).Met)
	assert.False(t, e.ProgramTrading(-50_000, true).Met)
	assert.False(t, e.ProgramTrading(0, true).Met)
	assert.True(t, e.ProgramTrading(0, false).Insufficient)
}

func TestTop30Rule(t *testing.T) {
	e := testEngine()
	top30 := map[string]struct{}{"005930": {}}

	assert.True(t, e.Top30TradingValue("005930", top30).Met)
	assert.False(t, e.Top30TradingValue("000660", top30).Met)
}

func TestMarketCapBandRule(t *testing.T) {
	e := testEngine()

	assert.True(t, e.MarketCapBand(500_000_000_000).Met)
	assert.False(t, e.MarketCapBand(100_000_000_000).Met)  // 바닥 밑
	assert.False(t, e.MarketCapBand(20_000_000_000_000).Met) // 천장 위
	assert.True(t, e.MarketCapBand(0).Insufficient)

	// 양끝 포함
	assert.True(t, e.MarketCapBand(DefaultConfig().MarketCapFloor).Met)
	assert.True(t, e.MarketCapBand(DefaultConfig().MarketCapCeil).Met)
}

func TestShortSellingRule(t *testing.T) {
	e := testEngine()

	warn := e.ShortSelling(7.2, 1_500_000, true)
	assert.True(t, warn.Met)
	assert.True(t, warn.Warning)

	low := e.ShortSelling(2.4, 300_000, true)
	assert.False(t, low.Met)
	assert.True(t, low.Warning)
	assert.Contains(t, low.Reason, "2.4%")
}

func TestShortSellingDistinguishesMissingFromNegligible(t *testing.T) {
	e := testEngine()

	// 시세 자체가 없으면 데이터 부족
	missing := e.ShortSelling(0, 0, false)
	assert.True(t, missing.Insufficient)
	assert.False(t, missing.Warning)

	// 시세는 있는데 공매도가 0이면 미미 — 데이터 부족이 아니다
	negligible := e.ShortSelling(0, 0, true)
	assert.False(t, negligible.Insufficient)
	assert.True(t, negligible.Warning)
	assert.Contains(t, negligible.Reason, "미미")
}

func TestCriterionDeterminism(t *testing.T) {
	e := testEngine()
	bars := barsFromCloses(990, 1000, 1290, 1300)

	first := e.MomentumHistory(bars)
	second := e.MomentumHistory(bars)
	assert.True(t, reflect.DeepEqual(first, second))

	r1 := e.ResistanceBreakout(50500, 49500)
	r2 := e.ResistanceBreakout(50500, 49500)
	assert.True(t, reflect.DeepEqual(r1, r2))
}

// allMetData builds inputs that satisfy every non-warning rule.
func allMetData(shortRatio float64) StockData {
	closes := make([]float64, 130)
	for i := range closes {
		closes[i] = 10000 + float64(i)*100
	}
	bars := barsFromCloses(closes...)
	// 과거 상한가 하루 주입 (당일 제외 구간)
	bars[5].Close = bars[6].Close * 1.30

	return StockData{
		Snapshot: &kis.PriceSnapshot{
			Price:         50500,
			PrevClose:     49500,
			Week52High:    50000,
			MarketCap:     500_000_000_000,
			ProgramNetBuy: 10_000,
			ShortRatio:    shortRatio,
			ShortVolume:   1_000_000,
		},
		Bars: bars,
		Flow: &kis.InvestorFlow{ForeignNet: 1000, InstitutionNet: 1000},
	}
}

func TestAllMetExcludesShortSellingWarning(t *testing.T) {
	e := testEngine()
	top30 := map[string]struct{}{"005930": {}}

	// 공매도 경고까지 met이어도 all_met은 true
	verdict := e.Evaluate("005930", "삼성전자", allMetData(8.0), top30)
	require.True(t, verdict.Results[RuleShortSelling].Met)
	assert.True(t, verdict.AllMet, "warning rule must not gate all_met")

	// 비경고 규칙 하나라도 미충족이면 all_met false
	data := allMetData(8.0)
	data.Flow = nil
	verdict = e.Evaluate("005930", "삼성전자", data, top30)
	assert.False(t, verdict.AllMet)
}

func TestEvaluateAllSkipsBlankCodes(t *testing.T) {
	e := testEngine()
	candidates := []kis.RankedStock{
		{Code: "005930", Name: "삼성전자"},
		{Code: "", Name: "이름만 있는 종목"},
	}

	verdicts := e.EvaluateAll(candidates, map[string]StockData{}, nil)
	assert.Len(t, verdicts, 1)
	assert.Contains(t, verdicts, "005930")
}

func TestEvaluateAllDegradesPerStock(t *testing.T) {
	e := testEngine()
	candidates := []kis.RankedStock{
		{Code: "005930", Name: "삼성전자"},
		{Code: "000660", Name: "SK하이닉스"},
	}
	data := map[string]StockData{
		"005930": allMetData(1.0),
		// 000660은 데이터 없음 — 판정은 저하되지만 맵에는 존재해야 함
	}

	verdicts := e.EvaluateAll(candidates, data, map[string]struct{}{"005930": {}})
	require.Len(t, verdicts, 2)

	degraded := verdicts["000660"]
	assert.False(t, degraded.AllMet)
	for _, result := range degraded.Results {
		assert.NotEmpty(t, result.Reason, "every result needs a reason even without data")
	}
}

func TestRuleOrderStable(t *testing.T) {
	order := RuleOrder()
	assert.Len(t, order, 9)
	assert.Equal(t, RuleHighBreakout, order[0])
	assert.Equal(t, RuleShortSelling, order[8])
}

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte("short_ratio_warn: 7.5\nmarket_cap_floor: 100000000000\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7.5, cfg.ShortRatioWarn)
	assert.Equal(t, int64(100_000_000_000), cfg.MarketCapFloor)
	// 나머지는 기본값 유지
	assert.Equal(t, 29.0, cfg.LimitUpRate)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shrot_ratio_warn: 7.5\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
