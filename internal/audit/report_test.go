package audit

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleStatsAndSummary(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{URL: "https://example.com", StatusCode: 200, LoadTime: 100,
			Issues: []string{IssueMissingMeta, "2 images without alt"}},
		{URL: "https://example.com/a", StatusCode: 200, LoadTime: 201,
			Issues: []string{IssueMissingTitle, IssueMissingMeta, "3 H1 tags", "5 images without alt"}},
		{URL: "https://example.com/moved", StatusCode: 301, LoadTime: 50, Issues: []string{HTTPErrorIssue(301)}},
		{URL: "https://example.com/missing", StatusCode: 404, LoadTime: 30, Issues: []string{HTTPErrorIssue(404)}},
		{URL: "https://example.com/down", StatusCode: 0, Issues: []string{IssueFetchFailed}},
	}
	findings := Aggregate(pages, []RedirectEdge{{From: "https://example.com/moved", To: "/a"}})

	r := Assemble(pages, findings, Probes{Robots: true}, DefaultLimits())

	require.Equal(t, Stats{TotalPages: 5, Successful: 3, Failed: 2, AvgLoadTimeMs: 76}, r.Stats)
	require.Equal(t, Present, r.Robots)
	require.Equal(t, Missing, r.Sitemap)
	require.Equal(t, IssuesSummary{
		MissingTitles:    1,
		MissingMeta:      2,
		MissingH1:        1,
		ImagesWithoutAlt: 7,
		BrokenLinks:      1,
		RedirectChains:   1,
		DuplicateContent: 0,
	}, r.IssuesSummary)
	require.Equal(t, []string{"https://example.com/missing"}, r.BrokenLinks)
}

func TestAssembleEmpty(t *testing.T) {
	t.Parallel()

	r := Assemble(nil, Findings{}, Probes{}, Limits{})
	require.Zero(t, r.Stats.AvgLoadTimeMs)
	require.Zero(t, r.Stats.TotalPages)

	body, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"pages": [],
		"stats": {"totalPages": 0, "successful": 0, "failed": 0, "avgLoadTimeMs": 0},
		"robots": "missing",
		"sitemap": "missing",
		"issuesSummary": {"missingTitles": 0, "missingMeta": 0, "missingH1": 0, "imagesWithoutAlt": 0,
			"brokenLinks": 0, "redirectChains": 0, "duplicateContent": 0},
		"duplicates": [],
		"redirectChains": [],
		"brokenLinks": []
	}`, string(body))
}

func TestAssembleTruncatesSamplesButCountsAll(t *testing.T) {
	t.Parallel()

	var pages []Page
	var redirects []RedirectEdge
	for i := 0; i < 8; i++ {
		title := fmt.Sprintf("Title %d", i%4)
		pages = append(pages,
			Page{URL: fmt.Sprintf("https://example.com/t%d", i), StatusCode: 200, Title: &title},
			Page{URL: fmt.Sprintf("https://example.com/missing%d", i), StatusCode: 404},
		)
		redirects = append(redirects, RedirectEdge{From: fmt.Sprintf("https://example.com/r%d", i), To: "/"})
	}
	findings := Aggregate(pages, redirects)

	r := Assemble(pages, findings, Probes{}, DefaultLimits())
	require.Len(t, r.Duplicates, DefaultMaxDuplicates)
	require.Len(t, r.RedirectChains, DefaultMaxRedirects)
	require.Len(t, r.BrokenLinks, DefaultMaxBrokenLinks)
	require.Equal(t, 4, r.IssuesSummary.DuplicateContent)
	require.Equal(t, 8, r.IssuesSummary.RedirectChains)
	require.Equal(t, 8, r.IssuesSummary.BrokenLinks)

	small := Assemble(pages, findings, Probes{}, Limits{MaxDuplicates: 1, MaxRedirects: 2, MaxBrokenLinks: 3})
	require.Len(t, small.Duplicates, 1)
	require.Len(t, small.RedirectChains, 2)
	require.Len(t, small.BrokenLinks, 3)
}

func TestPageJSONEncodesAbsentFieldsAsNull(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(Page{URL: "https://example.com", StatusCode: 0, Issues: []string{IssueFetchFailed}})
	require.NoError(t, err)
	require.JSONEq(t, `{"url":"https://example.com","statusCode":0,"title":null,"metaDescription":null,`+
		`"h1":null,"loadTime":0,"issues":["Failed to fetch"]}`, string(body))
}
