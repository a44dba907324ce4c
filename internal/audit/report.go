package audit

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var imagesWithoutAltRe = regexp.MustCompile(`^(\d+) images without alt$`)

// Probes records the robots.txt and sitemap.xml HEAD results.
type Probes struct {
	Robots  bool
	Sitemap bool
}

// Assemble builds the Report. Summary counts use the full findings; the
// samples in the report are truncated to limits.
func Assemble(pages []Page, findings Findings, probes Probes, limits Limits) Report {
	limits = limits.withDefaults()
	if pages == nil {
		pages = []Page{}
	}
	return Report{
		Pages:          pages,
		Stats:          computeStats(pages),
		Robots:         presence(probes.Robots),
		Sitemap:        presence(probes.Sitemap),
		IssuesSummary:  summarize(pages, findings),
		Duplicates:     truncate(nonNil(findings.Duplicates), limits.MaxDuplicates),
		RedirectChains: truncate(nonNil(findings.Redirects), limits.MaxRedirects),
		BrokenLinks:    truncate(nonNil(findings.BrokenLinks), limits.MaxBrokenLinks),
	}
}

func computeStats(pages []Page) Stats {
	s := Stats{TotalPages: len(pages)}
	var total int64
	for _, p := range pages {
		if p.StatusCode >= 200 && p.StatusCode < 400 {
			s.Successful++
		}
		total += p.LoadTime
	}
	s.Failed = s.TotalPages - s.Successful
	if s.TotalPages > 0 {
		s.AvgLoadTimeMs = int64(math.Round(float64(total) / float64(s.TotalPages)))
	}
	return s
}

// summarize counts pages carrying each issue kind. Title, meta and H1 counts
// are per page; image counts are summed from the labels.
func summarize(pages []Page, findings Findings) IssuesSummary {
	var s IssuesSummary
	for _, p := range pages {
		if anyContains(p.Issues, "title") {
			s.MissingTitles++
		}
		if anyContains(p.Issues, "meta") {
			s.MissingMeta++
		}
		if anyContains(p.Issues, "H1") {
			s.MissingH1++
		}
		s.ImagesWithoutAlt += imagesWithoutAlt(p.Issues)
	}
	s.BrokenLinks = len(findings.BrokenLinks)
	s.RedirectChains = len(findings.Redirects)
	s.DuplicateContent = len(findings.Duplicates)
	return s
}

func anyContains(issues []string, needle string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, needle) {
			return true
		}
	}
	return false
}

func imagesWithoutAlt(issues []string) int {
	for _, issue := range issues {
		m := imagesWithoutAltRe.FindStringSubmatch(issue)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func presence(ok bool) Presence {
	if ok {
		return Present
	}
	return Missing
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
