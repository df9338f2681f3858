// Package app wires feed polling, dedup, summarization and publishing into one loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deusflow/coinpulse/internal/dedup"
	"github.com/deusflow/coinpulse/internal/metrics"
	"github.com/deusflow/coinpulse/internal/news"
	"github.com/deusflow/coinpulse/internal/scraper"
	"github.com/deusflow/coinpulse/internal/summary"
)

const (
	entriesPerFeed      = 5
	DefaultPollInterval = 15 * time.Minute
)

type FeedReader interface {
	Latest(ctx context.Context, feedURL string, limit int) ([]news.Entry, error)
}

type ArticleFetcher interface {
	Fetch(ctx context.Context, link string) (news.Article, error)
}

// Deduper is the seen-content cache. *dedup.Cache satisfies it.
type Deduper interface {
	IsUnique(ctx context.Context, fp dedup.Fingerprint) (bool, error)
	MarkSeen(ctx context.Context, fp dedup.Fingerprint) error
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) summary.Summary
}

type Poster interface {
	Publish(ctx context.Context, post news.Post) error
}

// Outcome is what happened to one feed entry.
type Outcome int

const (
	Published Outcome = iota
	SkippedEmpty
	SkippedFetchError
	SkippedDuplicate
	SkippedStoreError
	PublishFailed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case SkippedEmpty:
		return "skipped_empty"
	case SkippedFetchError:
		return "skipped_fetch_error"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedStoreError:
		return "skipped_store_error"
	case PublishFailed:
		return "publish_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// CycleReport summarizes one pass over all feeds.
type CycleReport struct {
	FeedsOK     int
	FeedsFailed int
	Outcomes    map[Outcome]int
	Duration    time.Duration
}

func (r CycleReport) Count(o Outcome) int { return r.Outcomes[o] }

type Pipeline struct {
	feeds      []string
	reader     FeedReader
	fetcher    ArticleFetcher
	dedup      Deduper
	summarizer Summarizer
	poster     Poster
	metrics    *metrics.Metrics
	log        *slog.Logger
	interval   time.Duration
}

type Deps struct {
	Feeds      []string
	Reader     FeedReader
	Fetcher    ArticleFetcher
	Dedup      Deduper
	Summarizer Summarizer
	Poster     Poster
	Metrics    *metrics.Metrics
	Log        *slog.Logger
	Interval   time.Duration
}

func NewPipeline(d Deps) *Pipeline {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Interval <= 0 {
		d.Interval = DefaultPollInterval
	}
	return &Pipeline{
		feeds:      d.Feeds,
		reader:     d.Reader,
		fetcher:    d.Fetcher,
		dedup:      d.Dedup,
		summarizer: d.Summarizer,
		poster:     d.Poster,
		metrics:    d.Metrics,
		log:        d.Log,
		interval:   d.Interval,
	}
}

// Run repeats RunCycle every interval until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	p.log.Info("poller started", "feeds", len(p.feeds), "interval", p.interval)
	for {
		if ctx.Err() != nil {
			p.log.Info("poller stopped")
			return
		}

		report := p.RunCycle(ctx)
		p.log.Info("cycle finished",
			"duration", report.Duration,
			"feeds_ok", report.FeedsOK,
			"feeds_failed", report.FeedsFailed,
			"published", report.Count(Published),
			"duplicates", report.Count(SkippedDuplicate),
		)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("poller stopped")
			return
		case <-timer.C:
		}
	}
}

// RunCycle polls every feed once. Failures never escape a single entry or feed.
func (p *Pipeline) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	report := CycleReport{Outcomes: make(map[Outcome]int)}

	for _, feedURL := range p.feeds {
		if ctx.Err() != nil {
			break
		}

		entries, err := p.reader.Latest(ctx, feedURL, entriesPerFeed)
		if err != nil {
			p.log.Warn("feed skipped", "feed", feedURL, "err", err)
			p.metrics.IncFeedErrors()
			report.FeedsFailed++
			continue
		}
		p.metrics.IncFeedsFetched()
		report.FeedsOK++

		if len(entries) > entriesPerFeed {
			entries = entries[:entriesPerFeed]
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				break
			}
			report.Outcomes[p.processSafe(ctx, entry)]++
		}
	}

	report.Duration = time.Since(start)
	p.metrics.RecordCycle(report.Duration)
	if n := report.Count(SkippedStoreError) + report.Count(PublishFailed); n > 0 {
		p.metrics.SetError(fmt.Sprintf("%d entries failed on dedup store or publish", n))
	}
	return report
}

func (p *Pipeline) processSafe(ctx context.Context, entry news.Entry) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while processing entry", "link", entry.Link, "panic", r)
			outcome = SkippedFetchError
		}
	}()
	outcome = p.process(ctx, entry)
	p.log.Debug("entry processed", "link", entry.Link, "outcome", outcome.String())
	return outcome
}

func (p *Pipeline) process(ctx context.Context, entry news.Entry) Outcome {
	log := p.log.With("link", entry.Link)

	article, err := p.fetcher.Fetch(ctx, entry.Link)
	if err != nil && !errors.Is(err, scraper.ErrNoContent) {
		log.Warn("article fetch failed", "err", err)
		return SkippedFetchError
	}
	text := strings.TrimSpace(article.Text)
	if text == "" {
		log.Info("empty article skipped")
		p.metrics.IncEmptyArticles()
		return SkippedEmpty
	}
	p.metrics.IncArticlesProcessed()

	fp := dedup.Of(text)
	unique, err := p.dedup.IsUnique(ctx, fp)
	if err != nil {
		log.Error("dedup check failed, skipping entry", "fingerprint", fp.String(), "err", err)
		p.metrics.IncDedupErrors()
		return SkippedStoreError
	}
	if !unique {
		log.Debug("duplicate skipped", "fingerprint", fp.String())
		p.metrics.IncDuplicatesFiltered()
		return SkippedDuplicate
	}

	sum := p.summarizer.Summarize(ctx, text)
	if sum.Fallback {
		p.metrics.IncSummaryFallbacks()
	}

	post := news.Post{
		Title:     entry.Title,
		Link:      entry.Link,
		Summary:   sum.Text,
		LeadImage: article.LeadImage,
	}
	if err := p.poster.Publish(ctx, post); err != nil {
		log.Error("publish failed", "title", entry.Title, "err", err)
		p.metrics.IncPublishFailures()
		return PublishFailed
	}
	p.metrics.IncMessagesSent()
	log.Info("published", "title", entry.Title, "provider", sum.Provider)

	if err := p.dedup.MarkSeen(ctx, fp); err != nil {
		log.Error("mark seen failed", "fingerprint", fp.String(), "err", err)
		p.metrics.IncDedupErrors()
	}
	return Published
}
