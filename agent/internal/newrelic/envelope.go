package newrelic

import (
	"encoding/json"
	"fmt"

	"github.com/mongorelic/mongorelic/agent/internal/compute"
)

// Body is the plugin API request body.
type Body struct {
	Agent      Agent       `json:"agent"`
	Components []Component `json:"components"`
}

// Agent identifies the reporting process.
type Agent struct {
	Host    string `json:"host"`
	PID     int    `json:"pid"`
	Version string `json:"version"`
}

// Component carries one interval of metrics for one monitored entity.
type Component struct {
	Name     string             `json:"name"`
	GUID     string             `json:"guid"`
	Duration int                `json:"duration"`
	Metrics  map[string]float64 `json:"metrics"`
}

// EncodingError is returned when a Delta cannot be serialized, typically
// because a value is NaN or infinite.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("newrelic: encode envelope: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Envelope assembles the request body for d without serializing it.
func Envelope(d compute.Delta, meta Metadata) Body {
	return Body{
		Agent: Agent{
			Host:    meta.Host,
			PID:     meta.PID,
			Version: meta.Version,
		},
		Components: []Component{{
			Name:     meta.Name,
			GUID:     meta.GUID,
			Duration: meta.Duration,
			Metrics:  Metrics(d),
		}},
	}
}

// Encode renders d as a JSON envelope. Metric keys are emitted in sorted
// order, so equal inputs produce byte-identical output.
func Encode(d compute.Delta, meta Metadata) ([]byte, error) {
	out, err := json.Marshal(Envelope(d, meta))
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return out, nil
}
