package audit

import (
	"context"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsEnforcer applies one site's robots.txt rules. It loads the file once
// through the audit Fetcher and is discarded with the audit.
type RobotsEnforcer struct {
	data  *robotstxt.RobotsData
	agent string
}

// LoadRobots fetches robots.txt for the seed origin. Any failure to fetch or
// parse yields a policy that allows everything. A 5xx answer disallows
// everything, following robotstxt.FromStatusAndBytes.
func LoadRobots(ctx context.Context, fetcher Fetcher, seed, userAgent string, logger *zap.Logger) RobotsPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(seed)
	if err != nil {
		return allowAllPolicy{}
	}
	robotsURL := origin(parsed) + "/robots.txt"
	res, err := fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		logger.Warn("robots fetch failed; allowing access", zap.String("url", robotsURL), zap.Error(err))
		return allowAllPolicy{}
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		logger.Warn("robots parse failed; allowing access",
			zap.String("url", robotsURL),
			zap.Int("status", res.StatusCode),
			zap.Error(err),
		)
		return allowAllPolicy{}
	}
	return &RobotsEnforcer{data: data, agent: userAgent}
}

// Allowed implements RobotsPolicy.
func (r *RobotsEnforcer) Allowed(_ context.Context, rawURL string) bool {
	if r == nil || r.data == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := parsed.EscapedPath()
	if p == "" {
		p = "/"
	}
	return r.data.TestAgent(p, r.agent)
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }
