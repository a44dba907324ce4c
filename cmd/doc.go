// Package cmd implements the auditor CLI.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes POST /api/crawl/lite plus read-only routes over saved audits, health
//     probes, and /metrics. Requests are rate limited per client when ratelimit.enabled is set.
//   - Audit pipeline: internal/audit normalizes the seed, HEAD-probes robots.txt and sitemap.xml, then crawls
//     same-origin links breadth first through the Colly fetcher until the queue drains or the page cap is reached.
//     Pages are analyzed with goquery and folded into one report.
//   - Persistence & fanout: finished audits are saved to Postgres (or an in-memory store when no DSN is set),
//     optionally archived as JSON to GCS, and announced on Pub/Sub. Progress events are batched to log and
//     Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler; OpenTelemetry spans cover each audit
//     and page fetch.
//
// Quick checklist:
//   - Configure env vars: AUDITOR_SERVER_PORT or PORT, AUDITOR_CRAWLER_MAX_PAGES, AUDITOR_DB_DSN,
//     AUDITOR_STORAGE_BACKEND, AUDITOR_PUBSUB_PROJECT_ID / AUDITOR_PUBSUB_TOPIC_NAME, AUDITOR_RATELIMIT_*.
//   - Run locally: go run . serve --config config.yaml, or go run . audit example.com for a one-off report.
//   - Cloud Run: container listens on PORT and drains in-flight audits on SIGTERM.
package cmd
