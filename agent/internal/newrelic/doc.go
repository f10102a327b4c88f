// Package newrelic encodes interval deltas as New Relic plugin API envelopes.
//
// Every envelope has one agent entry (host, pid, version) and one component
// entry whose metrics object holds exactly the 20 names returned by
// MetricNames, e.g. "Component/ops/Inserts[Count]". Counter metrics carry the
// change over the interval, gauge metrics the current reading. Negative
// counter values are sent as is.
//
//	{"agent":{"host":"db-1","pid":4242,"version":"0.1.0"},
//	 "components":[{"name":"app","guid":"com.example.mongodb","duration":60,
//	   "metrics":{"Component/clients/ActiveReaders[Count]":3, ...}}]}
//
// Encode is pure. It fails only with *EncodingError.
package newrelic
