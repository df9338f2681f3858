package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/deusflow/coinpulse/internal/news"
)

const (
	DefaultTimeout   = 20 * time.Second
	maxBodyBytes     = 5 << 20
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

var (
	ErrNoContent  = errors.New("no extractable content")
	ErrHTTPStatus = errors.New("unexpected http status")

	reWhitespace = regexp.MustCompile(`\s+`)
)

// Fetcher downloads a page and extracts its readable text and lead image.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch gets the article behind link. An empty extraction is reported as ErrNoContent.
func (f *Fetcher) Fetch(ctx context.Context, link string) (news.Article, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return news.Article{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return news.Article{}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return news.Article{}, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return news.Article{}, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return news.Article{}, fmt.Errorf("read body: %w", err)
	}

	// redirects may have moved us
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL
	}

	article := Extract(raw, pageURL)
	if article.Text == "" {
		return article, ErrNoContent
	}
	return article, nil
}

// Extract pulls text, title and lead image out of raw HTML.
func Extract(raw []byte, pageURL *url.URL) news.Article {
	article := news.Article{URL: pageURL.String()}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return article
	}

	var readable *goquery.Document
	if parsed, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil && parsed.Content != "" {
		article.Title = strings.TrimSpace(parsed.Title)
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(parsed.Content)); err == nil {
			doc.Find("script, style, figure figcaption, aside").Remove()
			readable = doc
			article.Text = collapse(doc.Text())
		}
	}

	if article.Text == "" {
		article.Text = extractGenericContent(page)
	}
	if article.Title == "" {
		article.Title = extractTitle(page)
	}
	article.LeadImage = leadImage(page, readable, pageURL)

	return article
}

// extractGenericContent is universal parser for any site
func extractGenericContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"article p",
		".article p",
		".post-content p",
		".entry-content p",
		".content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		paragraphs = paragraphs[:0]
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := collapse(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"meta[property='og:title']",
		"h1",
		"title",
	}

	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		title := sel.AttrOr("content", "")
		if title == "" {
			title = sel.Text()
		}
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}

	return ""
}

// leadImage prefers the page's declared share image, then the first image of the
// readable content.
func leadImage(page, readable *goquery.Document, base *url.URL) string {
	metas := []string{
		"meta[property='og:image']",
		"meta[property='og:image:url']",
		"meta[name='twitter:image']",
		"meta[name='twitter:image:src']",
	}
	for _, selector := range metas {
		if v, ok := page.Find(selector).First().Attr("content"); ok {
			if abs := absolute(base, v); abs != "" {
				return abs
			}
		}
	}

	for _, doc := range []*goquery.Document{readable, page} {
		if doc == nil {
			continue
		}
		if v, ok := doc.Find("img[src]").First().Attr("src"); ok {
			if abs := absolute(base, v); abs != "" {
				return abs
			}
		}
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func collapse(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
