// Package main hosts the process service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the landing page, conformance
//     declaration, process catalog, execution, and job management endpoints.
//     Execution requests are validated, persisted via the JobStore as an
//     accepted job, and enqueued for asynchronous work.
//   - Executor & queue: jobs flow through a bounded in-memory queue sized by
//     config jobs.queue_depth and are fanned out to a fixed worker pool sized
//     by jobs.workers. Context cancellation stops workers cleanly on shutdown.
//   - Execution pipeline: workers claim a job by atomically transitioning it
//     from accepted to running, invoke the registered process runner under a
//     per-job deadline, and record the terminal transition together with the
//     result document or failure message. Panics inside a runner are recovered
//     and recorded as a failed job.
//   - Persistence: job records live in the configured JobStore (memory or
//     Postgres via pgx). All transitions are conditional updates, so a dismiss
//     racing a completion resolves to exactly one winner.
//   - Configuration & plumbing: Viper populates config from env/files; zap
//     provides structured logging; Prometheus metrics are exported via the
//     metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; shutdown is
//     coordinated via context cancellation propagated from main through the
//     pool to in-flight runners.
//   - Synchronous execution: a Prefer: wait=N header holds the submission
//     open for up to jobs.sync_wait_max_seconds; the job still runs through
//     the queue and survives the client disconnecting.
//   - Observability: zap logs carry job IDs at key transitions; Prometheus
//     counters/histograms track API and job activity. Health endpoints
//     (/healthz, /readyz) remain lightweight.
//
// Quick checklist:
//   - Configure env vars: OGCAPI_SERVER_PORT, OGCAPI_SERVER_BASE_URL,
//     OGCAPI_JOBS_WORKERS, OGCAPI_DB_PROVIDER=memory|postgres and
//     OGCAPI_DB_DSN when Postgres persistence is required.
//   - Run locally: go run ./cmd/ogcapid -config config.yaml (or rely solely
//     on env overrides).
package main
