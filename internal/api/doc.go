// Package api hosts the HTTP server, middleware, and REST handlers for the
// read side and for operators. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/articles and /v1/articles/{article_id} for the article catalog.
//   - POST /v1/catalog/refresh to drop the cached rows.
//   - GET /v1/runs and /v1/runs/{run_id} for the run ledger.
package api
