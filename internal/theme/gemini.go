package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

const maxRetriesPerKey = 3

// GeminiService implements Service against the Gemini generateContent API.
// 무료 티어 쿼터 분산을 위해 키 여러 개를 순환하며, 429/503에서만 백오프
// 후 재시도하고 소진되면 다음 키로 넘어간다.
type GeminiService struct {
	cfg        config.GeminiConfig
	httpClient *httputil.Client
	logger     *logger.Logger

	sleep func(time.Duration) // 테스트 주입용
}

// NewGeminiService creates the classification service.
func NewGeminiService(cfg config.GeminiConfig, httpClient *httputil.Client, log *logger.Logger) *GeminiService {
	return &GeminiService{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log,
		sleep:      time.Sleep,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze runs the classification prompt over the rotating key set.
func (s *GeminiService) Analyze(ctx context.Context, marketContext string) (*Analysis, error) {
	if len(s.cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("theme: no Gemini API keys configured")
	}
	if strings.TrimSpace(marketContext) == "" {
		return nil, fmt.Errorf("theme: empty market context")
	}

	prompt := buildPrompt(marketContext)

	for keyIdx, apiKey := range s.cfg.APIKeys {
		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			analysis, status, err := s.call(ctx, prompt, apiKey)
			if err == nil && analysis != nil {
				return analysis, nil
			}

			if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
				if attempt < maxRetriesPerKey {
					wait := time.Duration(1<<attempt) * time.Second
					s.logger.WithFields(map[string]interface{}{
						"key":     keyIdx + 1,
						"attempt": attempt,
						"status":  status,
					}).Warn("Gemini quota hit, backing off")
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					default:
						s.sleep(wait)
					}
					continue
				}
				// 이 키는 소진 — 다음 키로
				s.logger.WithField("key", keyIdx+1).Warn("Gemini key exhausted, rotating")
				break
			}

			if err != nil {
				return nil, err
			}
			// 파싱 가능한 JSON이 안 나온 경우 한 번 더
			if attempt == maxRetriesPerKey {
				break
			}
		}
	}

	return nil, fmt.Errorf("theme: analysis failed with all %d keys", len(s.cfg.APIKeys))
}

// call performs one HTTP attempt. 반환 status는 HTTP 오류 분기용 (0이면 무관).
func (s *GeminiService) call(ctx context.Context, prompt, apiKey string) (*Analysis, int, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Tools:    []geminiTool{{}},
		Config:   geminiGenConfig{Temperature: 0.5},
	}

	resp, err := s.httpClient.PostJSON(ctx, s.cfg.BaseURL+"?key="+apiKey, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("theme: gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("theme: gemini status %d", resp.StatusCode)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, 0, fmt.Errorf("theme: decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, 0, nil
	}

	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	parsed := extractJSON(text.String())
	if parsed == nil {
		return nil, 0, nil
	}

	parsed.AnalyzedAt = time.Now().Format("2006-01-02 15:04:05")
	return parsed, 0, nil
}

var (
	jsonFenceRe  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	plainFenceRe = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	braceRe      = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls the analysis JSON out of LLM prose. 코드펜스 우선,
// 없으면 본문에서 중괄호 블록을 찾는다.
func extractJSON(text string) *Analysis {
	candidates := [][]string{
		jsonFenceRe.FindStringSubmatch(text),
		plainFenceRe.FindStringSubmatch(text),
	}
	for _, m := range candidates {
		if len(m) == 2 && strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
			if a := tryParse(m[1]); a != nil {
				return a
			}
		}
	}
	if m := braceRe.FindString(text); m != "" {
		return tryParse(m)
	}
	return nil
}

func tryParse(raw string) *Analysis {
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil
	}
	if a.MarketSummary == "" && len(a.Themes) == 0 {
		return nil
	}
	return &a
}

func buildPrompt(marketContext string) string {
	var b strings.Builder
	b.WriteString("당신은 한국 주식시장 테마 분석가입니다. 아래 시장 데이터를 바탕으로 ")
	b.WriteString("오늘의 주도 테마와 테마별 대장주를 분석하세요.\n\n")
	b.WriteString("## 시장 데이터\n")
	b.WriteString(marketContext)
	b.WriteString("\n\n## 출력 형식 (JSON만, 다른 텍스트 없이)\n")
	b.WriteString(`{
  "market_summary": "오늘 시장 흐름 요약 (2~3문장)",
  "themes": [
    {
      "theme_name": "테마명",
      "reason": "테마 선정 근거",
      "leader_stocks": [
        {"priority": 1, "name": "종목명", "code": "종목코드", "reason": "선정 근거"}
      ]
    }
  ]
}`)
	return b.String()
}
