package telemetry

import (
	"sort"
	"sync"
	"time"
)

// successWindow is the number of recent ticks tracked for the sample
// success ratio.
const successWindow = 20

// staleAfter is how many poll intervals may pass without a successful
// sample before /healthz reports unhealthy.
const staleAfter = 3

// Recorder accumulates the agent's own health signals. The pipeline writes
// to it once per tick; the HTTP handlers read from it.
//
// All exported methods are safe for concurrent use.
type Recorder struct {
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	ticks        map[string]uint64
	resets       uint64
	history      []bool // sample outcomes, newest last
	lastSuccess  time.Time
	certDaysLeft *int
	lastMetrics  map[string]float64
	lastEnvelope []byte
}

// NewRecorder returns a Recorder for a loop polling every interval.
func NewRecorder(interval time.Duration) *Recorder {
	return &Recorder{
		interval: interval,
		now:      time.Now,
		ticks:    make(map[string]uint64),
	}
}

// RecordTick counts one finished tick. sampled reports whether a Snapshot
// was taken, whatever happened after that.
func (r *Recorder) RecordTick(outcome string, sampled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticks[outcome]++
	if len(r.history) >= successWindow {
		r.history = r.history[1:]
	}
	r.history = append(r.history, sampled)
	if sampled {
		r.lastSuccess = r.now()
	}
}

// RecordResets counts counter fields that went backwards.
func (r *Recorder) RecordResets(fields []string) {
	r.mu.Lock()
	r.resets += uint64(len(fields))
	r.mu.Unlock()
}

// RecordShipped keeps the last delivered metrics and envelope.
func (r *Recorder) RecordShipped(metrics map[string]float64, envelope []byte) {
	m := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		m[k] = v
	}
	env := append([]byte(nil), envelope...)

	r.mu.Lock()
	r.lastMetrics = m
	r.lastEnvelope = env
	r.mu.Unlock()
}

// SetCertDaysLeft records the ingestion endpoint's certificate lifetime.
func (r *Recorder) SetCertDaysLeft(days int) {
	r.mu.Lock()
	r.certDaysLeft = &days
	r.mu.Unlock()
}

// Envelope returns the last delivered envelope, or nil before the first one.
func (r *Recorder) Envelope() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastEnvelope
}

// Healthy reports whether a sample succeeded within the last few intervals.
func (r *Recorder) Healthy() (bool, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSuccess.IsZero() {
		return false, r.lastSuccess
	}
	return r.now().Sub(r.lastSuccess) <= staleAfter*r.interval, r.lastSuccess
}

// successRatio is the share of sampled ticks in the window, 1 before the
// first tick.
func (r *Recorder) successRatio() float64 {
	if len(r.history) == 0 {
		return 1
	}
	var ok int
	for _, s := range r.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(r.history))
}

// state is a consistent copy of the recorder used for exposition.
type state struct {
	ticks        map[string]uint64
	outcomes     []string
	resets       uint64
	ratio        float64
	lastSuccess  time.Time
	certDaysLeft *int
	metrics      map[string]float64
	metricNames  []string
}

func (r *Recorder) snapshot() state {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := state{
		ticks:       make(map[string]uint64, len(r.ticks)),
		resets:      r.resets,
		ratio:       r.successRatio(),
		lastSuccess: r.lastSuccess,
		metrics:     r.lastMetrics,
	}
	for k, v := range r.ticks {
		st.ticks[k] = v
		st.outcomes = append(st.outcomes, k)
	}
	sort.Strings(st.outcomes)
	if r.certDaysLeft != nil {
		d := *r.certDaysLeft
		st.certDaysLeft = &d
	}
	for k := range r.lastMetrics {
		st.metricNames = append(st.metricNames, k)
	}
	sort.Strings(st.metricNames)
	return st
}
