// Package progress carries audit lifecycle events from the auditor to
// pluggable sinks. Emit never blocks the crawl: events are buffered, batched
// on a background goroutine, and fanned out to sinks such as the structured
// log or Prometheus.
package progress
