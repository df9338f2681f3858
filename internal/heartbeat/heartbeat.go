// Package heartbeat pings the service's own liveness endpoint so an idle-sleeping
// host keeps the process awake.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultInterval = 14 * time.Minute
	RequestTimeout  = 10 * time.Second
	Path            = "/keepalive"
)

// FailureCounter records failed pings. *metrics.Metrics satisfies it.
type FailureCounter interface {
	IncHeartbeatFailures()
}

type Pinger struct {
	cron     *cron.Cron
	target   string
	interval time.Duration
	client   *http.Client
	failures FailureCounter
	log      *slog.Logger
}

func New(baseURL string, interval time.Duration, failures FailureCounter, log *slog.Logger) (*Pinger, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("heartbeat: base url is empty")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pinger{
		cron:     cron.New(),
		target:   strings.TrimSuffix(baseURL, "/") + Path,
		interval: interval,
		client:   &http.Client{Timeout: RequestTimeout},
		failures: failures,
		log:      log,
	}

	if _, err := p.cron.AddFunc("@every "+interval.String(), p.runOnce); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pinger) Target() string { return p.target }

// Start schedules pings in the background.
func (p *Pinger) Start() {
	p.log.Info("heartbeat started", "target", p.target, "interval", p.interval)
	p.cron.Start()
}

// Stop halts scheduling and waits for a running ping to finish.
func (p *Pinger) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pinger) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		p.log.Warn("heartbeat failed", "target", p.target, "err", err)
		if p.failures != nil {
			p.failures.IncHeartbeatFailures()
		}
		return
	}
	p.log.Debug("heartbeat ok", "target", p.target)
}

// Ping performs a single liveness request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
