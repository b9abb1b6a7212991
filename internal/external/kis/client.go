package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// Client handles communication with the KIS (한국투자증권) Open API.
// ⭐ SSOT: KIS API 호출은 이 클라이언트에서만
//
// 호출 정책: 낙관적 사용 + 거부 시 반응적 재발급. 토큰 발급이 하루 1회로
// 제한되므로 절대 선제적으로 갱신하지 않고, API가 거부했을 때만 논리 호출당
// 최대 1회 재발급-재시도한다.
type Client struct {
	tokens  *TokenManager
	pacer   *Pacer
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewClient wires the executor. 시도 횟수는 Executor가 직접 세므로 전달받은
// httpClient의 전송 계층 재시도는 여기서 끈다.
func NewClient(tokens *TokenManager, pacer *Pacer, httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		tokens:  tokens,
		pacer:   pacer,
		http:    httpClient.DisableRetry(),
		baseURL: baseURL,
		logger:  log,
	}
}

// Tokens exposes the lifecycle manager for the status endpoint and CLI.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

const maxAttempts = 2 // 최초 1회 + 재발급 후 재시도 1회, 그 이상은 없다

// Do executes one logical API call and returns the raw response body on
// success (rt_cd == "0").
func (c *Client) Do(ctx context.Context, method, path, trID string, params url.Values, body any) (json.RawMessage, error) {
	for attempt := 1; ; attempt++ {
		raw, err := c.attempt(ctx, method, path, trID, params, body)
		if err == nil {
			return raw, nil
		}

		var authErr *AuthError
		if !errors.As(err, &authErr) || attempt == maxAttempts {
			return nil, err
		}

		c.logger.WithFields(map[string]interface{}{
			"tr_id":  trID,
			"status": authErr.StatusCode,
			"msg":    authErr.Msg,
		}).Warn("KIS rejected token, reissuing and retrying once")

		if err := c.tokens.Refresh(ctx); err != nil {
			var limitErr *ReissueLimitError
			if !errors.As(err, &limitErr) {
				return nil, err
			}
			// 제한에 걸렸지만 토큰이 무효화된 게 확실하므로 강제 재발급.
			if err := c.tokens.ForceRefresh(ctx); err != nil {
				return nil, err
			}
		}
	}
}

// attempt performs exactly one network call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, path, trID string, params url.Values, body any) (json.RawMessage, error) {
	if err := c.pacer.Acquire(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.buildRequest(ctx, method, path, trID, token, params, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kis: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kis: read response: %w", err)
	}

	return c.classify(resp.StatusCode, raw)
}

// classify interprets the three authentication-failure signals:
// 401, rt_cd 실패 + 만료 메시지, 비-200 + 만료 메시지.
func (c *Client) classify(status int, raw []byte) (json.RawMessage, error) {
	var env envelope
	_ = json.Unmarshal(raw, &env) // 본문이 JSON이 아니어도 분류는 진행

	if status == http.StatusUnauthorized {
		return nil, &AuthError{StatusCode: status, Msg: env.Msg1}
	}

	if status == http.StatusOK {
		if env.RtCd == "0" {
			return raw, nil
		}
		if isTokenExpiredMsg(env.Msg1) {
			return nil, &AuthError{StatusCode: status, Msg: env.Msg1}
		}
		return nil, &RequestError{StatusCode: status, Code: env.MsgCd, Msg: env.Msg1}
	}

	msg := env.Msg1
	if msg == "" {
		msg = string(raw)
	}
	if isTokenExpiredMsg(msg) {
		return nil, &AuthError{StatusCode: status, Msg: msg}
	}
	return nil, &RequestError{StatusCode: status, Code: env.MsgCd, Msg: msg}
}

func (c *Client) buildRequest(ctx context.Context, method, path, trID, token string, params url.Values, body any) (*http.Request, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("kis: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("kis: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.tokens.cred.AppKey)
	req.Header.Set("appsecret", c.tokens.cred.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("tr_cont", "")
	req.Header.Set("custtype", "P") // 개인

	return req, nil
}
