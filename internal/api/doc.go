// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - POST /api/crawl/lite runs a site audit and returns the report.
//   - GET /api/audits, /api/audits/{id} and /api/audits/{id}/export.csv read
//     saved audits back from the report store.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
