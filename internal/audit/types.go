package audit

import (
	"errors"
	"net/http"
	"time"
)

// Presence reports whether a well-known site file answered a HEAD probe.
type Presence string

// Presence values used in reports.
const (
	Present Presence = "present"
	Missing Presence = "missing"
)

// DuplicateType names the field shared by a duplicate content group.
type DuplicateType string

// Duplicate content groups.
const (
	DuplicateTitle DuplicateType = "title"
	DuplicateMeta  DuplicateType = "meta"
)

var (
	// ErrInvalidURL is returned when a seed cannot be normalized.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNotFound is returned by report stores for unknown audit IDs.
	ErrNotFound = errors.New("audit not found")
)

// Page is the outcome of fetching one URL. Optional strings are nil when the
// element is absent or empty so they encode as JSON null.
type Page struct {
	URL             string   `json:"url"`
	StatusCode      int      `json:"statusCode"`
	Title           *string  `json:"title"`
	MetaDescription *string  `json:"metaDescription"`
	H1              *string  `json:"h1"`
	LoadTime        int64    `json:"loadTime"`
	Issues          []string `json:"issues"`
}

// DuplicateEntry groups the URLs that share one title or meta description.
type DuplicateEntry struct {
	Type    DuplicateType `json:"type"`
	Content string        `json:"content"`
	URLs    []string      `json:"urls"`
}

// RedirectEdge is a single observed 3xx response and its Location header.
type RedirectEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Stats summarizes fetch outcomes.
type Stats struct {
	TotalPages    int   `json:"totalPages"`
	Successful    int   `json:"successful"`
	Failed        int   `json:"failed"`
	AvgLoadTimeMs int64 `json:"avgLoadTimeMs"`
}

// IssuesSummary counts issues across the whole audit.
type IssuesSummary struct {
	MissingTitles    int `json:"missingTitles"`
	MissingMeta      int `json:"missingMeta"`
	MissingH1        int `json:"missingH1"`
	ImagesWithoutAlt int `json:"imagesWithoutAlt"`
	BrokenLinks      int `json:"brokenLinks"`
	RedirectChains   int `json:"redirectChains"`
	DuplicateContent int `json:"duplicateContent"`
}

// Report is the response payload of a lite audit.
type Report struct {
	Pages          []Page           `json:"pages"`
	Stats          Stats            `json:"stats"`
	Robots         Presence         `json:"robots"`
	Sitemap        Presence         `json:"sitemap"`
	IssuesSummary  IssuesSummary    `json:"issuesSummary"`
	Duplicates     []DuplicateEntry `json:"duplicates"`
	RedirectChains []RedirectEdge   `json:"redirectChains"`
	BrokenLinks    []string         `json:"brokenLinks"`
}

// Record is a finished audit as handed to persistence.
type Record struct {
	ID        string    `json:"id"`
	SeedURL   string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Report    Report    `json:"report"`
}

// Summary is the listing form of a stored Record.
type Summary struct {
	ID         string    `json:"id"`
	SeedURL    string    `json:"url"`
	CreatedAt  time.Time `json:"createdAt"`
	TotalPages int       `json:"totalPages"`
}

// Summarize returns the listing form of r.
func (r Record) Summarize() Summary {
	return Summary{
		ID:         r.ID,
		SeedURL:    r.SeedURL,
		CreatedAt:  r.CreatedAt,
		TotalPages: r.Report.Stats.TotalPages,
	}
}

// FetchResult carries one HTTP response observed without following redirects.
type FetchResult struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Location returns the redirect target header, if any.
func (r FetchResult) Location() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Location")
}

// Limits bounds the crawl and the size of the report samples.
type Limits struct {
	MaxPages       int
	MaxDuplicates  int
	MaxRedirects   int
	MaxBrokenLinks int
}

// Default limits.
const (
	DefaultMaxPages       = 10
	DefaultMaxDuplicates  = 3
	DefaultMaxRedirects   = 5
	DefaultMaxBrokenLinks = 5
)

// DefaultLimits returns the stock crawl cap and sample sizes.
func DefaultLimits() Limits {
	return Limits{
		MaxPages:       DefaultMaxPages,
		MaxDuplicates:  DefaultMaxDuplicates,
		MaxRedirects:   DefaultMaxRedirects,
		MaxBrokenLinks: DefaultMaxBrokenLinks,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxPages <= 0 {
		l.MaxPages = DefaultMaxPages
	}
	if l.MaxDuplicates <= 0 {
		l.MaxDuplicates = DefaultMaxDuplicates
	}
	if l.MaxRedirects <= 0 {
		l.MaxRedirects = DefaultMaxRedirects
	}
	if l.MaxBrokenLinks <= 0 {
		l.MaxBrokenLinks = DefaultMaxBrokenLinks
	}
	return l
}
