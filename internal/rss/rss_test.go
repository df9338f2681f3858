package rss

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Crypto Wire</title>
  <link>https://example.com</link>
  <description>test</description>
  <item><title>Oldest</title><link>https://example.com/1</link><pubDate>Mon, 01 Jan 2024 08:00:00 +0000</pubDate></item>
  <item><title>Newest</title><link>https://example.com/3</link><pubDate>Wed, 03 Jan 2024 08:00:00 +0000</pubDate></item>
  <item><title>Middle</title><link>https://example.com/2</link><pubDate>Tue, 02 Jan 2024 08:00:00 +0000</pubDate></item>
  <item><title>No link</title><pubDate>Tue, 02 Jan 2024 09:00:00 +0000</pubDate></item>
</channel>
</rss>`

const emptyFeed = `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`

func TestLatestSortsAndLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	entries, err := NewReader(5*time.Second).Latest(context.Background(), srv.URL, 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Title != "Newest" || entries[1].Title != "Middle" {
		t.Fatalf("order = %q, %q; want Newest, Middle", entries[0].Title, entries[1].Title)
	}
	if entries[0].Source != srv.URL {
		t.Fatalf("Source = %q, want %q", entries[0].Source, srv.URL)
	}
	if entries[0].PublishedAt == nil {
		t.Fatalf("PublishedAt not parsed")
	}
}

func TestLatestEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	_, err := NewReader(5*time.Second).Latest(context.Background(), srv.URL, 5)
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
}

func TestLatestParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewReader(5*time.Second).Latest(context.Background(), srv.URL, 5); err == nil {
		t.Fatalf("expected error for failing feed")
	}
}

func TestLoadFeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	content := "feeds:\n  - https://a.example/rss\n  - \"  \"\n  - https://b.example/feed\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	feeds, err := LoadFeeds(path)
	if err != nil {
		t.Fatalf("LoadFeeds: %v", err)
	}
	if len(feeds) != 2 || feeds[0] != "https://a.example/rss" || feeds[1] != "https://b.example/feed" {
		t.Fatalf("feeds = %v", feeds)
	}

	if _, err := LoadFeeds(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
