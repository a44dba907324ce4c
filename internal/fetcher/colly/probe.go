package collyfetcher

import (
	"context"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

// Prober checks for well-known files with HEAD requests. Unlike Fetcher it
// follows redirects, so a robots.txt that moved still counts.
type Prober struct {
	baseCollector *colly.Collector
}

var _ audit.Prober = (*Prober)(nil)

// NewProber builds a Prober. Transient TLS handshake timeouts are retried
// with a short backoff before the probe gives up.
func NewProber(cfg Config) *Prober {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := newCollector(cfg.UserAgent)
	c.SetRequestTimeout(timeout)
	c.WithTransport(&retryTransport{base: transportFor(cfg), backoff: probeRetryBackoff})
	return &Prober{baseCollector: c}
}

// Probe reports whether rawURL answers HEAD with a 2xx status.
func (p *Prober) Probe(ctx context.Context, rawURL string) (bool, error) {
	var (
		result   audit.FetchResult
		fetchErr error
	)
	collector := p.baseCollector.Clone()
	collector.Context = ctx
	configureHooks(collector, time.Now(), &result, &fetchErr)

	if err := runCollector(ctx, func() error { return collector.Head(rawURL) }, &fetchErr); err != nil {
		return false, err
	}
	return result.StatusCode >= 200 && result.StatusCode < 300, nil
}
