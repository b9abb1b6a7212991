// Package exim fetches daily exchange rates from the 한국수출입은행 open API.
package exim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
	"github.com/wonny/sentinel/backend/pkg/redis"
)

// 주요 통화만 추린다. JPY는 100엔 단위로 고시된다.
var majorCurrencies = map[string]bool{
	"USD":      true,
	"JPY(100)": true,
	"EUR":      true,
	"CNY":      true,
}

var currencyOrder = map[string]int{"USD": 0, "JPY": 1, "EUR": 2, "CNY": 3}

// Rate is one currency quote.
type Rate struct {
	Currency     string  `json:"currency"`
	CurrencyName string  `json:"currency_name"`
	Rate         float64 `json:"rate"` // 매매기준율
	TTB          float64 `json:"ttb"`  // 전신환매입률
	TTS          float64 `json:"tts"`  // 전신환매도율
	Is100        bool    `json:"is_100"`
}

// Rates is the full quote set for one base date.
type Rates struct {
	SearchDate string `json:"search_date"` // yyyyMMdd, 실제 고시 기준일
	FetchedAt  string `json:"timestamp"`
	Rates      []Rate `json:"rates"`
}

// Client calls the exchange-rate endpoint.
// ⭐ SSOT: 환율 조회는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.EximConfig
	limiter    *redis.RateLimiter // nil이면 프로세스 간 공유 budget 없음
}

// NewClient creates an exchange-rate client.
func NewClient(cfg config.EximConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
	}
}

// WithSharedLimiter adds the cross-process 분당 호출 budget.
func (c *Client) WithSharedLimiter(limiter *redis.RateLimiter) *Client {
	c.limiter = limiter
	return c
}

type rateRow struct {
	CurUnit  string `json:"cur_unit"`
	CurName  string `json:"cur_nm"`
	DealBasR string `json:"deal_bas_r"`
	TTB      string `json:"ttb"`
	TTS      string `json:"tts"`
}

// GetRates fetches rates for date (당일이면 time.Now 기준). 주말/공휴일에는
// 고시가 없으므로 최대 7일 전까지 거슬러 올라간다.
func (c *Client) GetRates(ctx context.Context, date time.Time) (*Rates, error) {
	base := date
	for daysBack := 0; daysBack <= 7; daysBack++ {
		searchDate := base.AddDate(0, 0, -daysBack).Format("20060102")

		rows, err := c.fetch(ctx, searchDate)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue // 휴장일 — 전일로 폴백
		}

		rates := c.filterMajor(rows)
		sort.Slice(rates, func(i, j int) bool {
			return currencyOrder[rates[i].Currency] < currencyOrder[rates[j].Currency]
		})

		if daysBack > 0 {
			c.logger.WithFields(map[string]interface{}{
				"search_date": searchDate,
				"days_back":   daysBack,
			}).Info("Exchange rates fell back to previous business day")
		}

		return &Rates{
			SearchDate: searchDate,
			FetchedAt:  time.Now().Format("2006-01-02 15:04:05"),
			Rates:      rates,
		}, nil
	}

	return nil, fmt.Errorf("exim: no rates published within the last 7 days")
}

func (c *Client) fetch(ctx context.Context, searchDate string) ([]rateRow, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, redis.EximRateLimit); err != nil {
			return nil, fmt.Errorf("exim: rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("authkey", c.cfg.AuthKey)
	params.Set("searchdate", searchDate)
	params.Set("data", "AP01")

	resp, err := c.httpClient.Get(ctx, c.cfg.BaseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("exim: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exim: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exim: read response: %w", err)
	}

	// 휴장일에는 빈 배열 또는 "null"이 온다
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var rows []rateRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("exim: decode response: %w", err)
	}
	return rows, nil
}

func (c *Client) filterMajor(rows []rateRow) []Rate {
	rates := make([]Rate, 0, len(majorCurrencies))
	for _, row := range rows {
		if !majorCurrencies[row.CurUnit] {
			continue
		}
		rates = append(rates, Rate{
			Currency:     strings.TrimSuffix(row.CurUnit, "(100)"),
			CurrencyName: row.CurName,
			Rate:         parseNumber(row.DealBasR),
			TTB:          parseNumber(row.TTB),
			TTS:          parseNumber(row.TTS),
			Is100:        strings.Contains(row.CurUnit, "(100)"),
		})
	}
	return rates
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
