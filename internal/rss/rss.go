package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/coinpulse/internal/news"
)

// DefaultFeeds is the built-in, ordered source list.
var DefaultFeeds = []string{
	"https://cointelegraph.com/rss",
	"https://cryptopanic.com/news/rss/",
	"https://beincrypto.com/feed/",
	"https://coinjournal.net/feed/",
}

var ErrNoEntries = errors.New("feed has no entries")

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	feeds := make([]string, 0, len(cfg.Feeds))
	for _, u := range cfg.Feeds {
		if u = strings.TrimSpace(u); u != "" {
			feeds = append(feeds, u)
		}
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%s lists no feeds", path)
	}
	return feeds, nil
}

// Reader downloads and parses one feed at a time.
type Reader struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewReader(timeout time.Duration) *Reader {
	parser := gofeed.NewParser()
	parser.UserAgent = "Mozilla/5.0 (compatible; coinpulse/1.0; +https://github.com/deusflow/coinpulse)"
	parser.Client = &http.Client{Timeout: timeout}
	return &Reader{parser: parser, timeout: timeout}
}

// Latest returns at most limit entries of the feed, newest first.
func (r *Reader) Latest(ctx context.Context, feedURL string, limit int) ([]news.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", feedURL, err)
	}
	if len(feed.Items) == 0 {
		return nil, ErrNoEntries
	}

	return newest(toEntries(feedURL, feed.Items), limit), nil
}

func toEntries(source string, items []*gofeed.Item) []news.Entry {
	entries := make([]news.Entry, 0, len(items))
	for _, it := range items {
		if it == nil || strings.TrimSpace(it.Link) == "" {
			continue
		}
		e := news.Entry{
			Title:  strings.TrimSpace(it.Title),
			Link:   strings.TrimSpace(it.Link),
			Source: source,
		}
		switch {
		case it.PublishedParsed != nil:
			e.PublishedAt = it.PublishedParsed
		case it.UpdatedParsed != nil:
			e.PublishedAt = it.UpdatedParsed
		}
		entries = append(entries, e)
	}
	return entries
}

// newest orders entries by publish time when every entry carries one; otherwise
// the feed's own order is trusted.
func newest(entries []news.Entry, limit int) []news.Entry {
	dated := true
	for _, e := range entries {
		if e.PublishedAt == nil {
			dated = false
			break
		}
	}
	if dated {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PublishedAt.After(*entries[j].PublishedAt)
		})
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
