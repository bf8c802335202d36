package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/utils"
)

// Client sends messages through the Telegram Bot API. It only covers
// sendMessage; delivery is fire-and-check, retries are the caller's call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFromEnv builds a client from TELEGRAM_BOT_TOKEN. The token is required:
// without it the fan-out has no delivery path.
func NewFromEnv(logger *zap.Logger) (*Client, error) {
	token := utils.Env("TELEGRAM_BOT_TOKEN", "")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return &Client{
		baseURL: utils.Env("TELEGRAM_API_URL", "https://api.telegram.org"),
		token:   token,
		httpClient: &http.Client{
			Timeout: utils.EnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		logger: logger,
	}, nil
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers htmlText to recipientID with HTML parsing and link previews
// disabled.
func (c *Client) Send(ctx context.Context, recipientID int64, htmlText string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                recipientID,
		Text:                  htmlText,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode sendMessage request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer utils.DrainAndClose(resp.Body)

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode sendMessage response (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram rejected message for %d: %s", recipientID, out.Description)
	}

	c.logger.Debug("Sent telegram message", zap.Int64("chatId", recipientID))
	return nil
}
