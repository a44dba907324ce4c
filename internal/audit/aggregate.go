package audit

// Findings are the cross-page results before truncation.
type Findings struct {
	Duplicates  []DuplicateEntry
	Redirects   []RedirectEdge
	BrokenLinks []string
}

// Aggregate groups pages by exact title and exact meta description and
// collects the 4xx URLs. Titles come before metas; within each kind groups
// keep the order in which their content was first seen. redirects is taken
// as recorded during the crawl.
func Aggregate(pages []Page, redirects []RedirectEdge) Findings {
	f := Findings{
		Duplicates:  make([]DuplicateEntry, 0),
		Redirects:   make([]RedirectEdge, 0, len(redirects)),
		BrokenLinks: make([]string, 0),
	}
	f.Duplicates = append(f.Duplicates, groupBy(pages, DuplicateTitle, func(p Page) *string { return p.Title })...)
	f.Duplicates = append(f.Duplicates, groupBy(pages, DuplicateMeta, func(p Page) *string { return p.MetaDescription })...)
	f.Redirects = append(f.Redirects, redirects...)
	for _, p := range pages {
		if p.StatusCode >= 400 && p.StatusCode < 500 {
			f.BrokenLinks = append(f.BrokenLinks, p.URL)
		}
	}
	return f
}

func groupBy(pages []Page, kind DuplicateType, field func(Page) *string) []DuplicateEntry {
	var order []string
	groups := make(map[string][]string)
	for _, p := range pages {
		v := field(p)
		if v == nil || *v == "" {
			continue
		}
		if _, seen := groups[*v]; !seen {
			order = append(order, *v)
		}
		groups[*v] = append(groups[*v], p.URL)
	}
	var out []DuplicateEntry
	for _, content := range order {
		urls := groups[content]
		if len(urls) < 2 {
			continue
		}
		out = append(out, DuplicateEntry{Type: kind, Content: content, URLs: urls})
	}
	return out
}

func truncate[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
