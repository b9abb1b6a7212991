// Package criteria evaluates the nine stock-selection rules and aggregates
// per-stock verdicts. 모든 평가자는 순수 함수 — I/O 없음, 입력만으로 결정.
package criteria

import (
	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// Rule names, used as keys in StockVerdict.Results and in the export JSON.
const (
	RuleHighBreakout       = "high_breakout"
	RuleMomentumHistory    = "momentum_history"
	RuleResistanceBreakout = "resistance_breakout"
	RuleMAAlignment        = "ma_alignment"
	RuleInvestorFlow       = "investor_flow"
	RuleProgramTrading     = "program_trading"
	RuleTop30TradingValue  = "trading_value_top30"
	RuleMarketCapBand      = "market_cap_band"
	RuleShortSelling       = "short_selling"
)

// ruleOrder is the stable evaluation/serialization order.
var ruleOrder = []string{
	RuleHighBreakout,
	RuleMomentumHistory,
	RuleResistanceBreakout,
	RuleMAAlignment,
	RuleInvestorFlow,
	RuleProgramTrading,
	RuleTop30TradingValue,
	RuleMarketCapBand,
	RuleShortSelling,
}

// CriterionResult is the outcome of one rule for one stock.
// Reason은 미충족이어도 항상 채운다. 데이터 부족은 Insufficient로 실패와
// 구분된다.
type CriterionResult struct {
	Met          bool           `json:"met"`
	Warning      bool           `json:"warning,omitempty"`
	Insufficient bool           `json:"insufficient_data,omitempty"`
	Reason       string         `json:"reason"`
	Details      map[string]any `json:"details,omitempty"`
}

// StockVerdict aggregates the nine results for one stock.
type StockVerdict struct {
	Code    string                     `json:"code"`
	Name    string                     `json:"name"`
	Results map[string]CriterionResult `json:"results"`
	// AllMet은 경고 전용 규칙(공매도)을 제외한 전 규칙 충족 여부.
	AllMet bool `json:"all_met"`
}

// MetCount returns how many non-warning rules are met.
func (v StockVerdict) MetCount() int {
	n := 0
	for name, r := range v.Results {
		if name == RuleShortSelling {
			continue
		}
		if r.Met {
			n++
		}
	}
	return n
}

// StockData is the per-stock input slice for evaluation. 어느 필드든 비어
// 있을 수 있다 — 부분 데이터가 정상 케이스.
type StockData struct {
	Snapshot *kis.PriceSnapshot
	Bars     []kis.DailyBar // 최신순
	Flow     *kis.InvestorFlow
}

// Engine evaluates candidates against the configured thresholds.
type Engine struct {
	cfg    Config
	logger *logger.Logger
}

// NewEngine creates an evaluation engine.
func NewEngine(cfg Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: log}
}

// Evaluate builds the verdict for a single stock.
func (e *Engine) Evaluate(code, name string, data StockData, top30 map[string]struct{}) StockVerdict {
	var (
		current    float64
		prevClose  float64
		week52High float64
		marketCap  int64
		programNet int64
		shortRatio float64
		shortVol   int64
		hasSnap    bool
	)
	if data.Snapshot != nil {
		hasSnap = true
		current = data.Snapshot.Price
		prevClose = data.Snapshot.PrevClose
		week52High = data.Snapshot.Week52High
		marketCap = data.Snapshot.MarketCap
		programNet = data.Snapshot.ProgramNetBuy
		shortRatio = data.Snapshot.ShortRatio
		shortVol = data.Snapshot.ShortVolume
	}

	results := map[string]CriterionResult{
		RuleHighBreakout:       e.HighBreakout(current, data.Bars, week52High),
		RuleMomentumHistory:    e.MomentumHistory(data.Bars),
		RuleResistanceBreakout: e.ResistanceBreakout(current, prevClose),
		RuleMAAlignment:        e.MAAlignment(current, data.Bars),
		RuleInvestorFlow:       e.InvestorFlow(data.Flow),
		RuleProgramTrading:     e.ProgramTrading(programNet, hasSnap),
		RuleTop30TradingValue:  e.Top30TradingValue(code, top30),
		RuleMarketCapBand:      e.MarketCapBand(marketCap),
		RuleShortSelling:       e.ShortSelling(shortRatio, shortVol, hasSnap),
	}

	allMet := true
	for _, ruleName := range ruleOrder {
		if ruleName == RuleShortSelling {
			continue // 경고 전용, 집계 제외
		}
		if !results[ruleName].Met {
			allMet = false
			break
		}
	}

	return StockVerdict{
		Code:    code,
		Name:    name,
		Results: results,
		AllMet:  allMet,
	}
}

// EvaluateAll evaluates every candidate with a non-empty code.
// 코드 없는 종목은 보고할 키가 없으므로 조용히 건너뛴다 (유일한 무보고
// 스킵 케이스). 개별 종목의 데이터 결함은 해당 종목 판정만 저하시킨다.
func (e *Engine) EvaluateAll(candidates []kis.RankedStock, data map[string]StockData, top30 map[string]struct{}) map[string]StockVerdict {
	verdicts := make(map[string]StockVerdict, len(candidates))

	for _, candidate := range candidates {
		if candidate.Code == "" {
			continue
		}
		verdict := e.Evaluate(candidate.Code, candidate.Name, data[candidate.Code], top30)
		verdicts[candidate.Code] = verdict

		if verdict.AllMet {
			e.logger.WithFields(map[string]interface{}{
				"code": candidate.Code,
				"name": candidate.Name,
			}).Info("Stock meets all criteria")
		}
	}
	return verdicts
}

// RuleOrder exposes the stable rule ordering for exporters.
func RuleOrder() []string {
	out := make([]string, len(ruleOrder))
	copy(out, ruleOrder)
	return out
}
