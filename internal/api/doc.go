// Package api hosts the optional status server that runs alongside a capture
// run. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run summary.
package api
