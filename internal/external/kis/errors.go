package kis

import (
	"fmt"
	"strings"
	"time"
)

// ReissueLimitError is returned by Refresh when the 23-hour reissue ceiling
// has not elapsed since the last successful issuance.
// KIS는 토큰 발급을 하루 1회로 제한한다 — 이 에러는 조용히 삼키면 안 됨.
type ReissueLimitError struct {
	IssuedAt  time.Time
	Remaining time.Duration
}

func (e *ReissueLimitError) Error() string {
	return fmt.Sprintf("kis: token reissue limited, %s remaining (last issued %s UTC)",
		e.Remaining.Round(time.Minute), e.IssuedAt.Format("2006-01-02 15:04:05"))
}

// AuthError marks a request rejected for authentication reasons.
// Executor가 1회 재발급-재시도의 트리거로 사용한다.
type AuthError struct {
	StatusCode int
	Msg        string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("kis: authentication rejected (status %d): %s", e.StatusCode, e.Msg)
}

// RequestError is a generic upstream failure distinct from authentication.
// 자동 재시도 대상이 아니다.
type RequestError struct {
	StatusCode int
	Code       string // msg_cd
	Msg        string // msg1
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kis: request failed (status %d): %s - %s", e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("kis: request failed (status %d): %s", e.StatusCode, e.Msg)
}

// isTokenExpiredMsg reports whether an upstream error message indicates an
// expired or invalid token. KIS는 한국어 메시지("기간이 만료된 token 입니다")를
// 돌려주므로 한국어/영어 패턴을 모두 본다.
func isTokenExpiredMsg(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "만료") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "expired")
}
