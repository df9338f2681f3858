package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/coinpulse/internal/retry"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	ParseMode      = "MarkdownV2"
	TestMessage    = "🚀 Test message from bot!"
	CaptionLimit   = 1024
	MessageLimit   = 4096
)

// APIError is a non-2xx answer from the Bot API.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// ClientError reports a 4xx rejection other than rate limiting, e.g. a bad photo URL
// or malformed markup. Retrying the same payload will not help.
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

type Client struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	retry   retry.RetryConfig
	log     *slog.Logger
}

func NewClient(token, chatID string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		log:     log,
	}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

func (c *Client) WithRetry(cfg retry.RetryConfig) *Client {
	c.retry = cfg
	return c
}

// SendMessage posts MarkdownV2 text with link previews disabled.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               ParseMode,
		"disable_web_page_preview": true,
	}
	return c.send(ctx, "sendMessage", payload)
}

// SendPhoto posts a photo by URL with a MarkdownV2 caption.
func (c *Client) SendPhoto(ctx context.Context, photoURL, caption string) error {
	payload := map[string]interface{}{
		"chat_id":    c.chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": ParseMode,
	}
	return c.send(ctx, "sendPhoto", payload)
}

func (c *Client) SendTest(ctx context.Context) error {
	return c.SendMessage(ctx, Escape(TestMessage))
}

func (c *Client) send(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	attempt := 0
	err = retry.WithRetry(ctx, c.retry, func() error {
		attempt++
		err := c.sendOnce(ctx, method, body)
		if err == nil {
			return nil
		}
		c.log.Warn("telegram send failed", "method", method, "attempt", attempt, "err", err)
		if apiErr, ok := err.(*APIError); ok && apiErr.ClientError() {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	c.log.Debug("telegram message sent", "method", method, "attempt", attempt)
	return nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) sendOnce(ctx context.Context, method string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var out apiResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK || !out.OK {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: out.Description}
	}
	return nil
}
