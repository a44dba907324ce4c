// Package ratelimit caps how many audits a single client may start within a
// time window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/lite-site-auditor/internal/metrics"
)

// Limiter decides whether the client identified by key may proceed. An error
// means the decision could not be made; callers treat that as allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config describes a quota of Requests per Window.
type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) normalized() Config {
	if c.Requests <= 0 {
		c.Requests = 10
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	return c
}

// maxIdleKeys bounds the per-client map before idle entries are swept.
const maxIdleKeys = 10000

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is a per-process token bucket keyed by client. The bucket refills
// one token every Window/Requests and holds at most Requests tokens.
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	every   rate.Limit
	entries map[string]*entry
	now     func() time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates an in-process limiter.
func NewMemory(cfg Config) *Memory {
	cfg = cfg.normalized()
	return &Memory{
		cfg:     cfg,
		every:   rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		if len(m.entries) >= maxIdleKeys {
			m.sweep(now)
		}
		e = &entry{limiter: rate.NewLimiter(m.every, m.cfg.Requests)}
		m.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)
	m.mu.Unlock()

	if !allowed {
		metrics.ObserveRateLimited("memory")
	}
	return allowed, nil
}

// sweep drops clients idle for a full window; their buckets are full again.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) >= m.cfg.Window {
			delete(m.entries, k)
		}
	}
}
