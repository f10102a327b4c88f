package newrelic

import (
	"os"

	"github.com/mongorelic/mongorelic/agent/internal/config"
	"github.com/mongorelic/mongorelic/agent/internal/version"
)

// Metadata is the fixed part of every envelope. It is built once at startup.
type Metadata struct {
	Host    string
	PID     int
	Version string

	// Name is the component name shown in the New Relic UI.
	Name string
	GUID string

	// Duration is the reporting interval in seconds.
	Duration int
}

// MetadataFor derives envelope metadata from cfg and the running process.
// An explicit agent.host wins over the OS hostname; if both are empty the
// host is reported as "localhost".
func MetadataFor(cfg *config.Config) Metadata {
	host := cfg.Agent.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	if host == "" {
		host = "localhost"
	}
	return Metadata{
		Host:     host,
		PID:      os.Getpid(),
		Version:  version.Version,
		Name:     cfg.Mongo.Database,
		GUID:     cfg.NewRelic.PluginGUID,
		Duration: cfg.Agent.PollCadenceSecs,
	}
}
