package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mongorelic/mongorelic/agent/internal/compute"
	"github.com/mongorelic/mongorelic/agent/internal/newrelic"
	"github.com/mongorelic/mongorelic/agent/internal/scraper"
	"github.com/mongorelic/mongorelic/agent/internal/shipper"
)

// Outcome is how one tick ended.
type Outcome string

const (
	// FetchFailed: serverStatus could not be retrieved; previous kept.
	FetchFailed Outcome = "fetch_failed"
	// SampleFailed: the document lacked a field; previous kept.
	SampleFailed Outcome = "sample_failed"
	// Baseline: first sample stored, nothing to report yet.
	Baseline Outcome = "baseline"
	// EncodeFailed: report dropped; the sample still becomes previous.
	EncodeFailed Outcome = "encode_failed"
	// ShipFailed: delivery failed; the sample still becomes previous.
	ShipFailed Outcome = "ship_failed"
	// Shipped: the envelope was delivered.
	Shipped Outcome = "shipped"
)

// Sampled reports whether a Snapshot was taken during the tick.
func (o Outcome) Sampled() bool {
	return o != FetchFailed && o != SampleFailed
}

// Shipper delivers an encoded envelope.
type Shipper interface {
	Ship(ctx context.Context, body []byte) error
}

// Recorder receives per-tick telemetry. See telemetry.Recorder.
type Recorder interface {
	RecordTick(outcome string, sampled bool)
	RecordResets(fields []string)
	RecordShipped(metrics map[string]float64, envelope []byte)
}

// Pipeline runs fetch, sample, diff, encode and ship once per tick.
type Pipeline struct {
	source   scraper.StatusSource
	shipper  Shipper
	recorder Recorder
	meta     newrelic.Metadata
	database string
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// New returns a Pipeline sampling database's lock statistics from src and
// delivering through ship.
func New(src scraper.StatusSource, ship Shipper, meta newrelic.Metadata, database string, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		source:   src,
		shipper:  ship,
		recorder: nopRecorder{},
		meta:     meta,
		database: database,
		logger:   logger,
		now:      time.Now,
	}
}

// WithRecorder attaches a telemetry recorder.
func (p *Pipeline) WithRecorder(rec Recorder) *Pipeline {
	p.recorder = rec
	return p
}

// Tick performs one cycle. prev is the Snapshot carried from the last
// successful sample (nil on the first tick); the returned Snapshot is what
// the next tick should receive.
func (p *Pipeline) Tick(ctx context.Context, prev *scraper.Snapshot) (*scraper.Snapshot, Outcome) {
	next, outcome := p.tick(ctx, prev)
	p.recorder.RecordTick(string(outcome), outcome.Sampled())
	return next, outcome
}

func (p *Pipeline) tick(ctx context.Context, prev *scraper.Snapshot) (*scraper.Snapshot, Outcome) {
	doc, err := p.source.ServerStatus(ctx)
	if err != nil {
		p.logger.Warnw("pipeline: fetch failed, skipping tick", "err", err)
		return prev, FetchFailed
	}

	cur, err := scraper.Sample(doc, p.database)
	if err != nil {
		var se *scraper.SampleError
		field := ""
		if errors.As(err, &se) {
			field = se.Field
		}
		p.logger.Warnw("pipeline: sample failed, skipping tick", "field", field, "err", err)
		return prev, SampleFailed
	}
	cur.SampledAt = p.now()

	if prev == nil {
		p.logger.Infow("pipeline: baseline sample stored", "database", p.database)
		return &cur, Baseline
	}

	delta := compute.Diff(*prev, cur)
	if resets := compute.Resets(delta); len(resets) > 0 {
		p.logger.Warnw("pipeline: counters went backwards, server restart suspected",
			"fields", resets, "since", prev.SampledAt)
		p.recorder.RecordResets(resets)
	}

	body, err := newrelic.Encode(delta, p.meta)
	if err != nil {
		p.logger.Errorw("pipeline: encode failed, dropping report", "err", err)
		return &cur, EncodeFailed
	}

	if err := p.shipper.Ship(ctx, body); err != nil {
		if shipper.IsPermanent(err) {
			p.logger.Errorw("pipeline: endpoint rejected report", "err", err)
		} else {
			p.logger.Warnw("pipeline: ship failed, dropping report", "err", err)
		}
		return &cur, ShipFailed
	}

	p.recorder.RecordShipped(newrelic.Metrics(delta), body)
	p.logger.Debugw("pipeline: report shipped", "bytes", len(body))
	return &cur, Shipped
}

// Run ticks once immediately and then every interval until ctx is
// cancelled. The previous Snapshot lives only in this loop.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	var prev *scraper.Snapshot
	prev, _ = p.Tick(ctx, prev)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev, _ = p.Tick(ctx, prev)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordTick(string, bool)                  {}
func (nopRecorder) RecordResets([]string)                    {}
func (nopRecorder) RecordShipped(map[string]float64, []byte) {}
