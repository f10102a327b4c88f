// Package pipeline drives the agent: one goroutine, one tick per poll
// interval, one envelope per successful tick.
//
// Each tick fetches serverStatus, samples it, and, when a previous Snapshot
// exists, diffs, encodes and ships the result. The previous Snapshot is
// passed into Tick and returned from it, so Run owns the only copy:
//
//	fetch_failed, sample_failed  previous kept, nothing shipped
//	baseline                     first sample stored, nothing shipped
//	encode_failed, ship_failed   report dropped, current becomes previous
//	shipped                      current becomes previous
//
// No tick is retried; the next scheduled tick is the retry.
package pipeline
