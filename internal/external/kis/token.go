package kis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/sentinel/backend/internal/credstore"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

const (
	// 실제 만료 10분 전부터 STALE로 취급. 단 STALE 토큰도 일단 사용한다 —
	// 재발급은 하루 1회 제한이라 API가 거부할 때만 갱신.
	expirySafetyMargin = 10 * time.Minute

	// 발급 후 23시간 이내에는 재발급 금지 (24시간 제한의 경계 레이스 회피).
	reissueInterval = 23 * time.Hour

	defaultExpiresIn = 86400 // KIS 토큰 기본 유효기간 (초)
)

// TokenManager owns the OAuth token lifecycle.
// ⭐ SSOT: 토큰 발급/캐시는 여기서만
type TokenManager struct {
	cred    credstore.Credential
	store   credstore.Store
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger

	mu     sync.Mutex
	rec    credstore.TokenRecord
	loaded bool

	now func() time.Time // 테스트 주입용
}

// NewTokenManager validates the credential and returns a manager. The cached
// token is loaded lazily on first use. 발급 호출도 재발급 한도 계산에
// 들어가므로 전송 계층 재시도는 끈다.
func NewTokenManager(cred credstore.Credential, store credstore.Store, httpClient *httputil.Client, baseURL string, log *logger.Logger) (*TokenManager, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &TokenManager{
		cred:    cred,
		store:   store,
		http:    httpClient.DisableRetry(),
		baseURL: baseURL,
		logger:  log,
		now:     time.Now,
	}, nil
}

// loadLocked pulls the cached record from the store once. mu held.
func (m *TokenManager) loadLocked(ctx context.Context) {
	if m.loaded {
		return
	}
	m.loaded = true

	rec, err := m.store.LoadToken(ctx)
	if err != nil {
		if !errors.Is(err, credstore.ErrTokenNotFound) {
			m.logger.WithError(err).Warn("Token cache load failed, starting without cached token")
		}
		return
	}
	m.rec = rec

	remaining := rec.ExpiresAt.Sub(m.now().UTC())
	if remaining > expirySafetyMargin {
		m.logger.WithFields(map[string]interface{}{
			"remaining_hours": fmt.Sprintf("%.1f", remaining.Hours()),
		}).Info("Cached KIS token loaded")
	} else {
		m.logger.Info("Cached KIS token loaded (stale, will reissue on rejection)")
	}
}

// validLocked reports whether the in-memory token is inside the safety margin.
func (m *TokenManager) validLocked() bool {
	if m.rec.AccessToken == "" {
		return false
	}
	return m.now().UTC().Before(m.rec.ExpiresAt.Add(-expirySafetyMargin))
}

// Token returns a usable access token. A stale token is returned as-is —
// 무효 여부는 API 거부로만 판정한다. 토큰이 아예 없을 때만 발급을 시도한다.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadLocked(ctx)

	if m.validLocked() {
		return m.rec.AccessToken, nil
	}
	if m.rec.AccessToken != "" {
		m.logger.Debug("KIS token stale, using anyway")
		return m.rec.AccessToken, nil
	}

	if err := m.refreshLocked(ctx, false); err != nil {
		return "", err
	}
	return m.rec.AccessToken, nil
}

// Refresh issues a new token, honoring the 23-hour ceiling.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)
	return m.refreshLocked(ctx, false)
}

// ForceRefresh bypasses the ceiling. 기존 토큰이 무효화된 것이 확실한 경우
// 전용 — Executor의 실패 처리 경로에서 논리 호출당 최대 1회만 부른다.
func (m *TokenManager) ForceRefresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)
	m.logger.Warn("Forcing KIS token reissue (cached token presumed invalidated)")
	return m.refreshLocked(ctx, true)
}

// refreshLocked performs the issuance. mu held.
func (m *TokenManager) refreshLocked(ctx context.Context, force bool) error {
	if !force && !m.rec.IssuedAt.IsZero() {
		elapsed := m.now().UTC().Sub(m.rec.IssuedAt)
		if elapsed < reissueInterval {
			return &ReissueLimitError{
				IssuedAt:  m.rec.IssuedAt,
				Remaining: reissueInterval - elapsed,
			}
		}
	}

	rec, err := m.issue(ctx)
	if err != nil {
		return err
	}

	// 공유 저장소 → 로컬 순으로 저장이 끝나야 성공이다. 저장 실패는 전파하되
	// 발급 자체는 이미 일어났으므로 메모리에는 유지한다 — 재발급 한도 보호.
	if err := m.store.SaveToken(ctx, rec); err != nil {
		m.rec = rec
		return fmt.Errorf("kis: persist token: %w", err)
	}
	m.rec = rec

	m.logger.WithFields(map[string]interface{}{
		"expires_at": credstore.FormatTokenTime(rec.ExpiresAt),
	}).Info("KIS access token issued")
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// issue calls the OAuth endpoint. 네트워크 에러는 가공 없이 전파 —
// 발급 시도 중에는 stale 토큰 폴백이 없다.
func (m *TokenManager) issue(ctx context.Context) (credstore.TokenRecord, error) {
	url := m.baseURL + "/oauth2/tokenP"
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     m.cred.AppKey,
		"appsecret":  m.cred.AppSecret,
	}

	resp, err := m.http.PostJSON(ctx, url, body)
	if err != nil {
		return credstore.TokenRecord{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return credstore.TokenRecord{}, &RequestError{
			StatusCode: resp.StatusCode,
			Msg:        string(raw),
		}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return credstore.TokenRecord{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return credstore.TokenRecord{}, fmt.Errorf("token response missing access_token")
	}

	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	issuedAt := m.now().UTC().Truncate(time.Second)
	return credstore.TokenRecord{
		AccessToken: tok.AccessToken,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// TokenStatus is a read-only view for the status endpoint and CLI.
type TokenStatus struct {
	HasToken       bool    `json:"has_token"`
	Valid          bool    `json:"is_valid"`
	CanRefresh     bool    `json:"can_refresh"`
	IssuedAt       string  `json:"issued_at,omitempty"`
	ExpiresAt      string  `json:"expires_at,omitempty"`
	RemainingHours float64 `json:"remaining_hours"`
}

// Status reports the current token state.
func (m *TokenManager) Status(ctx context.Context) TokenStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)

	status := TokenStatus{
		HasToken: m.rec.AccessToken != "",
		Valid:    m.validLocked(),
	}
	if m.rec.IssuedAt.IsZero() {
		status.CanRefresh = true
	} else {
		status.CanRefresh = m.now().UTC().Sub(m.rec.IssuedAt) >= reissueInterval
		status.IssuedAt = credstore.FormatTokenTime(m.rec.IssuedAt) + "Z"
	}
	if !m.rec.ExpiresAt.IsZero() {
		status.ExpiresAt = credstore.FormatTokenTime(m.rec.ExpiresAt) + "Z"
		remaining := m.rec.ExpiresAt.Sub(m.now().UTC()).Hours()
		if remaining > 0 {
			status.RemainingHours = remaining
		}
	}
	return status
}
