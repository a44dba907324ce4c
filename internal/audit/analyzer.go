package audit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Issue labels. The report summary counts them by substring, so the wording
// of "title", "meta" and "H1" matters.
const (
	IssueMissingTitle = "Missing title"
	IssueMissingMeta  = "Missing meta description"
	IssueNoH1         = "No H1"
	IssueFetchFailed  = "Failed to fetch"
)

// Analysis holds what the auditor extracts from one HTML document.
type Analysis struct {
	Title            string
	MetaDescription  string
	H1               string
	H1Count          int
	ImagesWithoutAlt int
	Links            []string
}

// Analyze parses an HTML body. Images with an absent or empty alt attribute
// count as missing alt text. Links are the raw href values in document order.
func Analyze(body []byte) (Analysis, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Analysis{}, fmt.Errorf("parse html: %w", err)
	}

	var a Analysis
	a.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		a.MetaDescription = strings.TrimSpace(content)
	}
	h1s := doc.Find("h1")
	a.H1Count = h1s.Length()
	a.H1 = strings.TrimSpace(h1s.First().Text())

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			a.ImagesWithoutAlt++
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			a.Links = append(a.Links, href)
		}
	})
	return a, nil
}

// Issues applies the on-page rules in a fixed order.
func (a Analysis) Issues() []string {
	issues := make([]string, 0, 4)
	if a.Title == "" {
		issues = append(issues, IssueMissingTitle)
	}
	if a.MetaDescription == "" {
		issues = append(issues, IssueMissingMeta)
	}
	switch {
	case a.H1Count == 0:
		issues = append(issues, IssueNoH1)
	case a.H1Count > 1:
		issues = append(issues, fmt.Sprintf("%d H1 tags", a.H1Count))
	}
	if a.ImagesWithoutAlt > 0 {
		issues = append(issues, fmt.Sprintf("%d images without alt", a.ImagesWithoutAlt))
	}
	return issues
}

// HTTPErrorIssue labels a page that answered with a non-2xx status.
func HTTPErrorIssue(status int) string {
	return fmt.Sprintf("HTTP %d error", status)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
