// Package api hosts the HTTP server, middleware, and REST handlers.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scrape runs one crawl synchronously and returns the CSV location.
package api
