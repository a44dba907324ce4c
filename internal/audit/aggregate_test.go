package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAggregateDuplicates(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{URL: "https://example.com/", StatusCode: 200, Title: strPtr("Home"), MetaDescription: strPtr("Shared")},
		{URL: "https://example.com/a", StatusCode: 200, Title: strPtr("Page"), MetaDescription: strPtr("Shared")},
		{URL: "https://example.com/b", StatusCode: 200, Title: strPtr("Page"), MetaDescription: strPtr("Unique")},
		{URL: "https://example.com/c", StatusCode: 200, Title: strPtr("Home")},
		{URL: "https://example.com/d", StatusCode: 200, Title: strPtr("home")},
		{URL: "https://example.com/e", StatusCode: 404},
		{URL: "https://example.com/f", StatusCode: 404},
	}

	f := Aggregate(pages, nil)
	require.Equal(t, []DuplicateEntry{
		{Type: DuplicateTitle, Content: "Home", URLs: []string{"https://example.com/", "https://example.com/c"}},
		{Type: DuplicateTitle, Content: "Page", URLs: []string{"https://example.com/a", "https://example.com/b"}},
		{Type: DuplicateMeta, Content: "Shared", URLs: []string{"https://example.com/", "https://example.com/a"}},
	}, f.Duplicates)
	require.Equal(t, []string{"https://example.com/e", "https://example.com/f"}, f.BrokenLinks)
	require.Empty(t, f.Redirects)
}

func TestAggregateBrokenLinksOnly4xx(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{URL: "https://example.com/ok", StatusCode: 200},
		{URL: "https://example.com/moved", StatusCode: 301},
		{URL: "https://example.com/gone", StatusCode: 410},
		{URL: "https://example.com/err", StatusCode: 500},
		{URL: "https://example.com/down", StatusCode: 0},
	}
	redirects := []RedirectEdge{{From: "https://example.com/moved", To: "/new"}}

	f := Aggregate(pages, redirects)
	require.Equal(t, []string{"https://example.com/gone"}, f.BrokenLinks)
	require.Equal(t, redirects, f.Redirects)
	require.Empty(t, f.Duplicates)
}
