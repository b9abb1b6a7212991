// Package ranking merges and cross-filters the KIS ranking lists into the
// candidate universe. 순수 함수만 — 네트워크/상태 없음.
package ranking

import (
	"github.com/wonny/sentinel/backend/internal/external/kis"
)

// MergeUniverse deduplicates ranked lists by stock code, keeping the
// first-seen entry. 스캔 순서가 우선순위다: 거래량 → 거래대금 → 등락률
// 순으로 넘기는 것이 호출 규약.
func MergeUniverse(lists ...[]kis.RankedStock) []kis.RankedStock {
	seen := make(map[string]struct{})
	var merged []kis.RankedStock

	for _, list := range lists {
		for _, stock := range list {
			if stock.Code == "" {
				continue
			}
			if _, ok := seen[stock.Code]; ok {
				continue
			}
			seen[stock.Code] = struct{}{}
			merged = append(merged, stock)
		}
	}
	return merged
}

// FilterCross returns the stocks of a whose code also appears in b,
// preserving a's order. "상승 AND 거래량 상위" 같은 교집합 후보군을 만든다.
func FilterCross(a, b []kis.RankedStock) []kis.RankedStock {
	codes := make(map[string]struct{}, len(b))
	for _, stock := range b {
		if stock.Code != "" {
			codes[stock.Code] = struct{}{}
		}
	}

	var out []kis.RankedStock
	for _, stock := range a {
		if _, ok := codes[stock.Code]; ok {
			out = append(out, stock)
		}
	}
	return out
}

// Codes extracts the code set of a list, skipping blanks.
func Codes(list []kis.RankedStock) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, stock := range list {
		if stock.Code != "" {
			set[stock.Code] = struct{}{}
		}
	}
	return set
}

// TopN returns the first n entries (or fewer).
func TopN(list []kis.RankedStock, n int) []kis.RankedStock {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
