// Package audit implements the lite site audit: a bounded, sequential,
// same-origin breadth-first crawl that inspects each fetched page for basic
// on-page SEO problems and folds the results into a single Report.
//
// The pieces, leaf first:
//   - NormalizeSeed canonicalizes user input into an absolute http(s) URL.
//   - Analyze extracts title, meta description, headings, image alt coverage
//     and anchors from an HTML body and derives the page issue labels.
//   - frontier holds the visited set and the FIFO queue for one audit.
//   - Auditor drives the crawl through a Fetcher and a Prober.
//   - Aggregate and Assemble compute the cross-page findings and summary.
//
// All crawl state lives for the duration of one Run call. Finished reports
// may be handed to a ReportStore, a BlobStore and a Publisher, but nothing
// read back from them influences a later crawl.
package audit
