package compute

import (
	"github.com/mongorelic/mongorelic/agent/internal/scraper"
)

// Delta is the per-interval view of two Snapshots: counter fields hold
// cur - prev, gauge fields hold the current reading. It has the same layout
// as scraper.Snapshot but is a distinct type so a raw Snapshot cannot be
// encoded by mistake.
type Delta scraper.Snapshot

// Diff returns cur minus prev for the monotonic counters and cur's value for
// the gauges (Connections, ConnectionsAvailable, ActiveReaders, ActiveWriters,
// QueueReaders, QueueWriters, IndexMissRatio).
//
// Counters are not clamped: a server restart between samples yields negative
// deltas, which are passed through unchanged. Use Resets to detect them.
func Diff(prev, cur scraper.Snapshot) Delta {
	d := Delta(cur)

	d.Inserts = cur.Inserts - prev.Inserts
	d.Queries = cur.Queries - prev.Queries
	d.Updates = cur.Updates - prev.Updates
	d.Deletes = cur.Deletes - prev.Deletes
	d.Getmores = cur.Getmores - prev.Getmores
	d.Commands = cur.Commands - prev.Commands

	d.PageFaults = cur.PageFaults - prev.PageFaults

	d.NetInBytes = cur.NetInBytes - prev.NetInBytes
	d.NetOutBytes = cur.NetOutBytes - prev.NetOutBytes

	d.ReadTimeLockedMicros = cur.ReadTimeLockedMicros - prev.ReadTimeLockedMicros
	d.WriteTimeLockedMicros = cur.WriteTimeLockedMicros - prev.WriteTimeLockedMicros

	d.DocsReturned = cur.DocsReturned - prev.DocsReturned
	d.DocsInserted = cur.DocsInserted - prev.DocsInserted

	return d
}

// counter names a differenced field, in Snapshot declaration order.
type counter struct {
	name  string
	value func(Delta) float64
}

var counters = []counter{
	{"inserts", func(d Delta) float64 { return float64(d.Inserts) }},
	{"queries", func(d Delta) float64 { return float64(d.Queries) }},
	{"updates", func(d Delta) float64 { return float64(d.Updates) }},
	{"deletes", func(d Delta) float64 { return float64(d.Deletes) }},
	{"getmores", func(d Delta) float64 { return float64(d.Getmores) }},
	{"commands", func(d Delta) float64 { return float64(d.Commands) }},
	{"page_fault", func(d Delta) float64 { return float64(d.PageFaults) }},
	{"net_in_bytes", func(d Delta) float64 { return d.NetInBytes }},
	{"net_out_bytes", func(d Delta) float64 { return d.NetOutBytes }},
	{"r_time_locked_micros", func(d Delta) float64 { return float64(d.ReadTimeLockedMicros) }},
	{"w_time_locked_micros", func(d Delta) float64 { return float64(d.WriteTimeLockedMicros) }},
	{"docs_returned", func(d Delta) float64 { return float64(d.DocsReturned) }},
	{"docs_inserted", func(d Delta) float64 { return float64(d.DocsInserted) }},
}

// Counters returns the names of the differenced fields. Every other Snapshot
// field is a gauge.
func Counters() []string {
	names := make([]string, len(counters))
	for i, c := range counters {
		names[i] = c.name
	}
	return names
}

// Resets returns the counter fields whose delta is negative, which happens
// when the server restarted (or a counter wrapped) between two samples.
// Returns nil when every counter moved forward.
func Resets(d Delta) []string {
	var out []string
	for _, c := range counters {
		if c.value(d) < 0 {
			out = append(out, c.name)
		}
	}
	return out
}
