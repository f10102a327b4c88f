package newrelic

import (
	"github.com/mongorelic/mongorelic/agent/internal/compute"
)

// metric binds one envelope key to the Delta field it reports.
type metric struct {
	name  string
	value func(compute.Delta) float64
}

// table lists every reported metric in a stable order: connections, clients,
// operations, system, network, index, locks, documents.
var table = []metric{
	{"Component/conn/Connections[Count]", func(d compute.Delta) float64 { return float64(d.Connections) }},
	{"Component/conn/Available[Count]", func(d compute.Delta) float64 { return float64(d.ConnectionsAvailable) }},

	{"Component/clients/ActiveReaders[Count]", func(d compute.Delta) float64 { return float64(d.ActiveReaders) }},
	{"Component/clients/ActiveWriters[Count]", func(d compute.Delta) float64 { return float64(d.ActiveWriters) }},
	{"Component/clients/QueuedReaders[Count]", func(d compute.Delta) float64 { return float64(d.QueueReaders) }},
	{"Component/clients/QueuedWriters[Count]", func(d compute.Delta) float64 { return float64(d.QueueWriters) }},

	{"Component/ops/Inserts[Count]", func(d compute.Delta) float64 { return float64(d.Inserts) }},
	{"Component/ops/Queries[Count]", func(d compute.Delta) float64 { return float64(d.Queries) }},
	{"Component/ops/Updates[Count]", func(d compute.Delta) float64 { return float64(d.Updates) }},
	{"Component/ops/Deletes[Count]", func(d compute.Delta) float64 { return float64(d.Deletes) }},
	{"Component/ops/Getmores[Count]", func(d compute.Delta) float64 { return float64(d.Getmores) }},
	{"Component/ops/Commands[Count]", func(d compute.Delta) float64 { return float64(d.Commands) }},

	{"Component/sys/PageFaults[Count]", func(d compute.Delta) float64 { return float64(d.PageFaults) }},

	{"Component/net/BytesIn[Count]", func(d compute.Delta) float64 { return d.NetInBytes }},
	{"Component/net/BytesOut[Count]", func(d compute.Delta) float64 { return d.NetOutBytes }},

	{"Component/idx/MissRatio[Count]", func(d compute.Delta) float64 { return d.IndexMissRatio }},

	{"Component/locks/ReadTimeLockedMicros[Count]", func(d compute.Delta) float64 { return float64(d.ReadTimeLockedMicros) }},
	{"Component/locks/WriteTimeLockedMicros[Count]", func(d compute.Delta) float64 { return float64(d.WriteTimeLockedMicros) }},

	{"Component/documents/Returned[Count]", func(d compute.Delta) float64 { return float64(d.DocsReturned) }},
	{"Component/documents/Inserted[Count]", func(d compute.Delta) float64 { return float64(d.DocsInserted) }},
}

// MetricNames returns the reported metric names in table order.
func MetricNames() []string {
	names := make([]string, len(table))
	for i, m := range table {
		names[i] = m.name
	}
	return names
}

// Metrics maps every Delta field to its metric name. Integer fields are
// converted to float64 without loss for values below 2^53.
func Metrics(d compute.Delta) map[string]float64 {
	out := make(map[string]float64, len(table))
	for _, m := range table {
		out[m.name] = m.value(d)
	}
	return out
}
