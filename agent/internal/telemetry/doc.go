// Package telemetry exposes the agent's own health over HTTP.
//
// Recorder collects, per tick: the outcome (shipped, baseline, fetch_failed
// and so on), whether a sample was taken, counter resets, and the last
// delivered envelope. It also holds the endpoint certificate lifetime.
// The sample success ratio covers the last 20 ticks.
//
// Router(rec, logger) serves it with chi:
//
//	GET /metrics   mongorelic_ticks_total{outcome}, mongorelic_counter_resets_total,
//	               mongorelic_sample_success_ratio,
//	               mongorelic_last_success_timestamp_seconds,
//	               mongorelic_endpoint_cert_days_left, mongorelic_delta{metric}
//	GET /healthz   200 when a sample succeeded within 3 poll intervals, else 503
//	GET /envelope  the last delivered envelope as JSON, 204 before the first
//
// The exposition is built directly from client_model types and rendered with
// expfmt; there is no client_golang registry.
package telemetry
