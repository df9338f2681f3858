// Package market fetches spot quotes for the message footer.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultURL     = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd&include_24hr_change=true"
	DefaultTimeout = 10 * time.Second
	Unavailable    = "BTC/ETH: Price data unavailable"
	maxRespBytes   = 64 * 1024
)

var ErrMissingQuote = errors.New("missing quote")

type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Change24h decimal.Decimal
}

// String renders e.g. "BTC: $64250.5 (-1.3%)".
func (q Quote) String() string {
	return fmt.Sprintf("%s: $%s (%s%%)", q.Symbol, q.Price.String(), q.Change24h.StringFixed(1))
}

type coin struct {
	id     string
	symbol string
}

var coins = []coin{
	{id: "bitcoin", symbol: "BTC"},
	{id: "ethereum", symbol: "ETH"},
}

type Client struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(url string, timeout time.Duration, log *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: url, client: &http.Client{}, timeout: timeout, log: log}
}

type priceEntry struct {
	USD       *decimal.Decimal `json:"usd"`
	Change24h *decimal.Decimal `json:"usd_24h_change"`
}

// Quotes returns BTC then ETH.
func (c *Client) Quotes(ctx context.Context) ([]Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	var data map[string]priceEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRespBytes)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	quotes := make([]Quote, 0, len(coins))
	for _, c := range coins {
		e, ok := data[c.id]
		if !ok || e.USD == nil || e.Change24h == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingQuote, c.id)
		}
		quotes = append(quotes, Quote{Symbol: c.symbol, Price: *e.USD, Change24h: *e.Change24h})
	}
	return quotes, nil
}

// Snippet never fails: any error yields the Unavailable placeholder.
func (c *Client) Snippet(ctx context.Context) string {
	quotes, err := c.Quotes(ctx)
	if err != nil {
		c.log.Warn("price fetch error", "err", err)
		return Unavailable
	}
	lines := make([]string, len(quotes))
	for i, q := range quotes {
		lines[i] = q.String()
	}
	return strings.Join(lines, "\n")
}
