// Package shipper delivers encoded envelopes.
//
// HTTPShipper POSTs each envelope to the New Relic plugin API with
// Content-Type and Accept set to application/json, the license key in
// X-License-Key and a fresh X-Request-ID per request. The transport comes
// from go-cleanhttp with keep-alives disabled, and every request sets
// Close, so no connection outlives a tick.
//
// There are no retries. A non-2xx answer becomes a *StatusError; 4xx is
// permanent (bad key, rejected payload), 5xx and transport errors are
// transient. Either way the envelope is dropped and the next tick sends a
// fresh one.
//
// SetTarget swaps the URL and license key at runtime (config hot reload).
//
// WriterShipper prints envelopes as JSON lines for dry runs.
package shipper
