// Package compute derives per-interval values from consecutive Snapshots.
//
// Diff(prev, cur) is pure and total. Monotonic counters (operation counts,
// page faults, network bytes, lock times, document counts) become cur - prev;
// gauges (connections, active and queued clients, index miss ratio) are
// copied from cur. Nothing is clamped: after a server restart the counters
// start again from zero and the deltas go negative. Resets(delta) names those
// fields so the caller can log and count them; the values themselves are
// reported as computed.
//
// The package keeps no state. The caller owns the previous Snapshot.
package compute
