package telemetry

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "mongorelic"

// Families renders the recorder as Prometheus metric families.
func (r *Recorder) Families() []*dto.MetricFamily {
	st := r.snapshot()

	ticks := make([]*dto.Metric, 0, len(st.outcomes))
	for _, o := range st.outcomes {
		ticks = append(ticks, &dto.Metric{
			Label:   []*dto.LabelPair{label("outcome", o)},
			Counter: &dto.Counter{Value: ptr(float64(st.ticks[o]))},
		})
	}

	fams := []*dto.MetricFamily{
		family("ticks_total", "Finished poll ticks by outcome.", dto.MetricType_COUNTER, ticks...),
		family("counter_resets_total", "Counter fields that went backwards between samples.",
			dto.MetricType_COUNTER, &dto.Metric{Counter: &dto.Counter{Value: ptr(float64(st.resets))}}),
		family("sample_success_ratio", fmt.Sprintf("Share of the last %d ticks that produced a sample.", successWindow),
			dto.MetricType_GAUGE, gauge(st.ratio)),
	}

	if !st.lastSuccess.IsZero() {
		fams = append(fams, family("last_success_timestamp_seconds", "Unix time of the last successful sample.",
			dto.MetricType_GAUGE, gauge(float64(st.lastSuccess.UnixNano())/1e9)))
	}
	if st.certDaysLeft != nil {
		fams = append(fams, family("endpoint_cert_days_left", "Days until the ingestion endpoint certificate expires.",
			dto.MetricType_GAUGE, gauge(float64(*st.certDaysLeft))))
	}
	if len(st.metricNames) > 0 {
		deltas := make([]*dto.Metric, 0, len(st.metricNames))
		for _, name := range st.metricNames {
			deltas = append(deltas, &dto.Metric{
				Label: []*dto.LabelPair{label("metric", name)},
				Gauge: &dto.Gauge{Value: ptr(st.metrics[name])},
			})
		}
		fams = append(fams, family("delta", "Values of the last delivered envelope.", dto.MetricType_GAUGE, deltas...))
	}
	return fams
}

// WriteText writes the families in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	for _, mf := range r.Families() {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("telemetry: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func family(name, help string, typ dto.MetricType, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(namespace + "_" + name),
		Help:   ptr(help),
		Type:   typ.Enum(),
		Metric: metrics,
	}
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: ptr(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
