package kis

import (
	"strconv"
	"strings"
)

// KIS 응답의 숫자 필드는 전부 문자열이고, 빈 문자열/공백이 흔하다.
// 파싱 실패는 0으로 처리한다 — 부분 데이터가 정상 케이스.

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
