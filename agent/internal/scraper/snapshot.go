package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/mongorelic/mongorelic/agent/internal/status"
)

// Snapshot is one point-in-time extraction of the serverStatus counters the
// agent reports. Counter fields hold raw cumulative totals since server start;
// the compute package derives per-interval deltas from two consecutive
// Snapshots.
type Snapshot struct {
	// Gauges.
	Connections          int64 `json:"connections"`
	ConnectionsAvailable int64 `json:"connections_available"`
	ActiveReaders        int64 `json:"active_r"`
	ActiveWriters        int64 `json:"active_w"`

	// Operation counters.
	Inserts  int64 `json:"inserts"`
	Queries  int64 `json:"queries"`
	Updates  int64 `json:"updates"`
	Deletes  int64 `json:"deletes"`
	Getmores int64 `json:"getmores"`
	Commands int64 `json:"commands"`

	PageFaults int64 `json:"page_fault"`

	// Gauges.
	QueueReaders int64 `json:"queue_read"`
	QueueWriters int64 `json:"queue_write"`

	NetInBytes  float64 `json:"net_in_bytes"`
	NetOutBytes float64 `json:"net_out_bytes"`

	// IndexMissRatio is a gauge.
	IndexMissRatio float64 `json:"idx_miss_ratio"`

	ReadTimeLockedMicros  int64 `json:"r_time_locked_micros"`
	WriteTimeLockedMicros int64 `json:"w_time_locked_micros"`

	DocsReturned int64 `json:"docs_returned"`
	DocsInserted int64 `json:"docs_inserted"`

	// SampledAt is set by the caller; Sample leaves it zero.
	SampledAt time.Time `json:"sampled_at,omitempty"`
}

// SampleError reports the first field that could not be extracted. When it is
// returned no Snapshot is produced.
type SampleError struct {
	// Field is the dotted serverStatus path, e.g. "network.bytesIn".
	Field string
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %s: %v", e.Field, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

// sampler stops at the first failed lookup and remembers it, so Sample can read
// the 20 fields as straight-line code.
type sampler struct {
	doc status.Document
	err *SampleError
}

func (s *sampler) int(path ...string) int64 {
	if s.err != nil {
		return 0
	}
	v, err := s.doc.Int(path...)
	if err != nil {
		s.fail(path, err)
	}
	return v
}

func (s *sampler) float(path ...string) float64 {
	if s.err != nil {
		return 0
	}
	v, err := s.doc.Float(path...)
	if err != nil {
		s.fail(path, err)
	}
	return v
}

// fail records the requested path even when the accessor failed on a parent
// segment; the wrapped *status.FieldError keeps the exact segment.
func (s *sampler) fail(path []string, err error) {
	s.err = &SampleError{Field: strings.Join(path, "."), Err: err}
}

// Sample extracts a Snapshot from a serverStatus document. dbName selects the
// per-database lock statistics under locks.<dbName>.
//
// Extraction is all-or-nothing: on any failure Sample returns a zero Snapshot
// and a *SampleError naming the first path that failed.
func Sample(doc status.Document, dbName string) (Snapshot, error) {
	s := &sampler{doc: doc}

	snap := Snapshot{
		Connections:          s.int("connections", "current"),
		ConnectionsAvailable: s.int("connections", "available"),
		ActiveReaders:        s.int("globalLock", "activeClients", "readers"),
		ActiveWriters:        s.int("globalLock", "activeClients", "writers"),

		Inserts:  s.int("opcounters", "insert"),
		Queries:  s.int("opcounters", "query"),
		Updates:  s.int("opcounters", "update"),
		Deletes:  s.int("opcounters", "delete"),
		Getmores: s.int("opcounters", "getmore"),
		Commands: s.int("opcounters", "command"),

		PageFaults: s.int("recordStats", "pageFaultExceptionsThrown"),

		QueueReaders: s.int("globalLock", "currentQueue", "readers"),
		QueueWriters: s.int("globalLock", "currentQueue", "writers"),

		NetInBytes:  s.float("network", "bytesIn"),
		NetOutBytes: s.float("network", "bytesOut"),

		IndexMissRatio: s.float("indexCounters", "missRatio"),

		ReadTimeLockedMicros:  s.int("locks", dbName, "timeLockedMicros", "r"),
		WriteTimeLockedMicros: s.int("locks", dbName, "timeLockedMicros", "w"),

		DocsReturned: s.int("metrics", "document", "returned"),
		DocsInserted: s.int("metrics", "document", "inserted"),
	}

	if s.err != nil {
		return Snapshot{}, s.err
	}
	return snap, nil
}
