package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// 텔레그램 메시지 길이 한도. 넘어가면 호출자가 분할해서 보내야 한다.
const telegramMaxLength = 4096

// Telegram sends messages through the Bot API.
// ⭐ SSOT: 텔레그램 발송은 여기서만
type Telegram struct {
	cfg        config.TelegramConfig
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewTelegram creates the Telegram notifier.
func NewTelegram(cfg config.TelegramConfig, httpClient *httputil.Client, log *logger.Logger) *Telegram {
	return &Telegram{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log,
		baseURL:    "https://api.telegram.org",
	}
}

// Configured reports whether a token and chat are set.
func (t *Telegram) Configured() bool {
	return t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one message with HTML formatting.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return fmt.Errorf("notify: telegram token/chat not configured")
	}
	if runes := []rune(text); len(runes) > telegramMaxLength {
		text = string(runes[:telegramMaxLength])
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.BotToken)
	payload := map[string]string{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	resp, err := t.httpClient.PostJSON(ctx, url, payload)
	if err != nil {
		return fmt.Errorf("notify: telegram request: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("notify: decode telegram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !tr.OK {
		return fmt.Errorf("notify: telegram rejected message (status %d): %s", resp.StatusCode, tr.Description)
	}
	return nil
}

var _ Notifier = (*Telegram)(nil)
