package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/coinpulse/internal/news"
	"github.com/deusflow/coinpulse/internal/telegram"
)

const (
	hashtags = "#Crypto #Bitcoin #Altcoins"
	ellipsis = "…"
)

// Messenger is the chat transport. *telegram.Client satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, photoURL, caption string) error
	SendTest(ctx context.Context) error
}

// PriceSource renders the market footer. It must not fail; *market.Client satisfies it.
type PriceSource interface {
	Snippet(ctx context.Context) string
}

type Publisher struct {
	messenger Messenger
	prices    PriceSource
	log       *slog.Logger
}

func NewPublisher(m Messenger, prices PriceSource, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{messenger: m, prices: prices, log: log}
}

// Publish sends p as a captioned photo when it has a lead image, otherwise as text.
// A photo the transport rejects outright is resent once as text.
func (p *Publisher) Publish(ctx context.Context, post news.Post) error {
	prices := p.prices.Snippet(ctx)

	if post.LeadImage != "" {
		caption := FitMessage(post.Title, post.Summary, prices, post.Link, telegram.CaptionLimit)
		err := p.messenger.SendPhoto(ctx, post.LeadImage, caption)
		if err == nil {
			return nil
		}
		var apiErr *telegram.APIError
		if !errors.As(err, &apiErr) || !apiErr.ClientError() {
			return fmt.Errorf("send photo: %w", err)
		}
		p.log.Warn("photo rejected, sending as text", "link", post.Link, "image", post.LeadImage, "err", err)
	}

	text := FitMessage(post.Title, post.Summary, prices, post.Link, telegram.MessageLimit)
	if err := p.messenger.SendMessage(ctx, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (p *Publisher) SendTest(ctx context.Context) error {
	return p.messenger.SendTest(ctx)
}

// FormatMessage builds the MarkdownV2 notification body.
func FormatMessage(title, summary, prices, link string) string {
	var b strings.Builder

	b.WriteString("🔥 *" + telegram.Escape(title) + "* 🔥\n\n")
	b.WriteString(telegram.Escape(summary) + "\n\n")
	b.WriteString("📊 *Market Update*:\n")
	b.WriteString(telegram.Escape(prices) + "\n\n")
	b.WriteString("[Read More](" + telegram.EscapeURL(link) + ") " + telegram.Escape("| "+hashtags))

	return b.String()
}

// FitMessage is FormatMessage with the summary shortened until the result fits in
// limit runes. Title, prices and link are never cut.
func FitMessage(title, summary, prices, link string, limit int) string {
	msg := FormatMessage(title, summary, prices, link)
	over := utf8.RuneCountInString(msg) - limit
	if over <= 0 {
		return msg
	}

	runes := []rune(strings.TrimSpace(summary))
	n := len(runes)
	for n > 0 && over > 0 {
		// escaping can only grow text, so cut at least the overflow each round
		n -= over
		if n < 0 {
			n = 0
		}
		short := strings.TrimSpace(string(runes[:n]))
		if short != "" {
			short += ellipsis
		}
		msg = FormatMessage(title, short, prices, link)
		over = utf8.RuneCountInString(msg) - limit
	}
	return msg
}
