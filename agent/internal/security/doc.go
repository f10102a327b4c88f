// Package security inspects the TLS certificate of the ingestion endpoint.
// Check returns a CertStatus (valid, expiring within 30 days, expired or
// unreachable) that the agent logs at startup and exports as the
// mongorelic_endpoint_cert_days_left gauge.
package security
