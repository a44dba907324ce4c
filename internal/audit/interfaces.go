package audit

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single GET without following redirects. A non-nil error
// means no HTTP response was observed at all.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// Prober issues a HEAD request and reports whether it answered 2xx.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (bool, error)
}

// RobotsPolicy decides whether a URL may be crawled.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// ReportStore persists finished audits.
type ReportStore interface {
	SaveReport(ctx context.Context, rec Record) error
	GetReport(ctx context.Context, id string) (Record, error)
	ListReports(ctx context.Context, limit, offset int) ([]Summary, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces audit IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
