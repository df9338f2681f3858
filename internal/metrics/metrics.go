package metrics

import (
	"sync"
	"time"
)

// Metrics collects pipeline counters. Safe for concurrent use.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsFetched       int64
	FeedErrors         int64
	ArticlesProcessed  int64
	EmptyArticles      int64
	DuplicatesFiltered int64
	DedupErrors        int64
	SummaryFallbacks   int64
	MessagesSent       int64
	PublishFailures    int64
	HeartbeatFailures  int64

	// Timings
	LastCycleDuration    time.Duration
	AverageCycleDuration time.Duration
	TotalCycleDuration   time.Duration
	CycleCount           int64

	// Status
	LastCycleTime time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
}

func (m *Metrics) IncFeedsFetched()       { m.add(&m.FeedsFetched) }
func (m *Metrics) IncFeedErrors()         { m.add(&m.FeedErrors) }
func (m *Metrics) IncArticlesProcessed()  { m.add(&m.ArticlesProcessed) }
func (m *Metrics) IncEmptyArticles()      { m.add(&m.EmptyArticles) }
func (m *Metrics) IncDuplicatesFiltered() { m.add(&m.DuplicatesFiltered) }
func (m *Metrics) IncDedupErrors()        { m.add(&m.DedupErrors) }
func (m *Metrics) IncSummaryFallbacks()   { m.add(&m.SummaryFallbacks) }
func (m *Metrics) IncMessagesSent()       { m.add(&m.MessagesSent) }
func (m *Metrics) IncPublishFailures()    { m.add(&m.PublishFailures) }
func (m *Metrics) IncHeartbeatFailures()  { m.add(&m.HeartbeatFailures) }

// RecordCycle stores the duration of a finished polling cycle and marks the service healthy.
func (m *Metrics) RecordCycle(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCycleDuration = duration
	m.TotalCycleDuration += duration
	m.CycleCount++
	m.AverageCycleDuration = m.TotalCycleDuration / time.Duration(m.CycleCount)

	m.LastCycleTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_fetched":       m.FeedsFetched,
		"feed_errors":         m.FeedErrors,
		"articles_processed":  m.ArticlesProcessed,
		"empty_articles":      m.EmptyArticles,
		"duplicates_filtered": m.DuplicatesFiltered,
		"dedup_errors":        m.DedupErrors,
		"summary_fallbacks":   m.SummaryFallbacks,
		"messages_sent":       m.MessagesSent,
		"publish_failures":    m.PublishFailures,
		"heartbeat_failures":  m.HeartbeatFailures,
		"cycles":              m.CycleCount,
		"last_cycle_ms":       m.LastCycleDuration.Milliseconds(),
		"average_cycle_ms":    m.AverageCycleDuration.Milliseconds(),
		"last_cycle_time":     m.LastCycleTime.Format(time.RFC3339),
		"last_error_time":     m.LastErrorTime.Format(time.RFC3339),
		"last_error":          m.LastError,
		"is_healthy":          m.IsHealthy,
	}
}
