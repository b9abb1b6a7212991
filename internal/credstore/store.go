package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCredentialMissing is returned when neither the durable store nor the
// environment provides a usable app key/secret pair.
var ErrCredentialMissing = errors.New("credstore: KIS app key/secret not configured")

// ErrTokenNotFound is returned by a backend when no token record exists yet.
var ErrTokenNotFound = errors.New("credstore: no cached token")

// Credential holds the KIS OAuth application credential.
// 프로세스 수명 동안 불변.
type Credential struct {
	AppKey    string
	AppSecret string
}

// Validate checks that both parts are present.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.AppKey) == "" || strings.TrimSpace(c.AppSecret) == "" {
		return ErrCredentialMissing
	}
	return nil
}

// MaskedKey returns the app key with the middle obscured, for logging.
func (c Credential) MaskedKey() string {
	if len(c.AppKey) <= 8 {
		return "NOT_SET"
	}
	return c.AppKey[:4] + "****" + c.AppKey[len(c.AppKey)-4:]
}

// tokenTimeLayout is ISO-8601 without an offset. 토큰 시각은 모두 naive UTC로
// 저장하며 이 포맷으로 왕복되어야 한다.
const tokenTimeLayout = "2006-01-02T15:04:05"

// TokenRecord is the persisted OAuth token state.
// 교체는 항상 레코드 전체 단위 — 부분 수정 없음.
type TokenRecord struct {
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// FormatTokenTime renders t in the cache wire format (naive UTC).
func FormatTokenTime(t time.Time) string {
	return t.UTC().Format(tokenTimeLayout)
}

// ParseTokenTime accepts the naive layout plus RFC3339 variants ("Z" or
// offset suffix) and normalizes to naive UTC.
func ParseTokenTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(tokenTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC), nil
	}
	// 소수점 초가 붙은 ISO 문자열 대응
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("credstore: unparsable token time %q", s)
}

// Store persists a single token record keyed by service.
// 구현체: PostgresStore(공유 저장소), FileStore(로컬 캐시), Chain(둘 결합).
type Store interface {
	// LoadToken returns the cached record or ErrTokenNotFound.
	LoadToken(ctx context.Context) (TokenRecord, error)
	// SaveToken replaces the record wholesale.
	SaveToken(ctx context.Context, rec TokenRecord) error
}
