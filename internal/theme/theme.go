// Package theme classifies the day's market into themes and leader stocks
// via an external LLM service. 베스트에포트 — 분석 실패는 결과 저하일 뿐
// 파이프라인을 중단시키지 않는다.
package theme

import "context"

// LeaderStock is one representative stock inside a theme.
type LeaderStock struct {
	Priority int    `json:"priority"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// Theme groups leader stocks under a market narrative.
type Theme struct {
	Name         string        `json:"theme_name"`
	Reason       string        `json:"reason,omitempty"`
	LeaderStocks []LeaderStock `json:"leader_stocks"`
}

// Analysis is the full classification result.
type Analysis struct {
	AnalyzedAt    string  `json:"analyzed_at"`
	MarketSummary string  `json:"market_summary"`
	Themes        []Theme `json:"themes"`
}

// Service is the theme classification boundary. 구현이 어떻게 답을 만드는지는
// 호출자가 알 필요 없다. 실패 시 (nil, error)를 돌려주고 호출자는 분석 없이
// 진행한다.
type Service interface {
	Analyze(ctx context.Context, marketContext string) (*Analysis, error)
}
