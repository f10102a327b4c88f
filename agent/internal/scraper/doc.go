// Package scraper turns serverStatus documents into Snapshots.
//
// Sample(doc, dbName) reads the 20 tracked fields from a status.Document and
// returns a Snapshot of raw values: cumulative counters as reported since
// server start, gauges as point-in-time readings. Extraction is
// all-or-nothing. The first missing or mistyped field yields a *SampleError
// and a zero Snapshot. The compute package derives per-interval deltas from
// two consecutive Snapshots.
//
// Documents come from a StatusSource:
//   - MongoSource runs {serverStatus: 1} against the admin database with the
//     official driver (mongo.go)
//   - FileSource reads a saved Extended JSON document (source.go), used by
//     `sample --from-file` and in tests
package scraper
