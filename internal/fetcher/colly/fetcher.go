// Package collyfetcher implements the audit Fetcher and Prober with gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout bounds one page fetch, including reading the body.
	Timeout time.Duration
	// ProbeTimeout bounds one HEAD probe.
	ProbeTimeout time.Duration
	// Transport overrides the pooled HTTP transport; tests use it.
	Transport http.RoundTripper
}

// Fetcher fetches single pages without following redirects, so the auditor
// sees every 3xx and its Location header.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ audit.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Clones of the base collector share its HTTP client,
// so transport, timeout, and redirect policy are set once here.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := newCollector(cfg.UserAgent)
	c.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(transportFor(cfg))
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch performs one GET. Any HTTP status is a successful result; only
// transport failures (DNS, TLS, timeout, reset) return an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (audit.FetchResult, error) {
	var (
		result   audit.FetchResult
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	configureHooks(collector, time.Now(), &result, &fetchErr)

	if err := runCollector(ctx, func() error { return collector.Visit(rawURL) }, &fetchErr); err != nil {
		return audit.FetchResult{}, err
	}
	if result.StatusCode == 0 {
		return audit.FetchResult{}, errors.New("colly fetch produced no response")
	}
	result.URL = rawURL
	return result, nil
}

func configureHooks(hooks collectorHooks, start time.Time, result *audit.FetchResult, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = audit.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

// runCollector runs visit on its own goroutine so ctx cancellation returns
// promptly even if the transport is slow to notice.
func runCollector(ctx context.Context, visit func() error, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newCollector(userAgent string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.DetectCharset(),
	}
	if userAgent != "" {
		opts = append(opts, colly.UserAgent(userAgent))
	}
	return colly.NewCollector(opts...)
}

func transportFor(cfg Config) http.RoundTripper {
	if cfg.Transport != nil {
		return cfg.Transport
	}
	return newHTTPTransport()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
