// Package api hosts the HTTP server, middleware, and REST handlers for the
// process service. Notable routes:
//   - GET / and /conformance for the landing page and conformance declaration.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /processes and /processes/{processID} for the process catalog.
//   - POST /processes/{processID}/execution for job submission.
//   - GET /jobs, GET/DELETE /jobs/{jobID}, and GET /jobs/{jobID}/results for
//     job monitoring, dismissal, and result retrieval.
package api
