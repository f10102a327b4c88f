package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"

	"github.com/mongorelic/mongorelic/agent/internal/newrelic"
	"github.com/mongorelic/mongorelic/agent/internal/scraper"
	"github.com/mongorelic/mongorelic/agent/internal/shipper"
	"github.com/mongorelic/mongorelic/agent/internal/status"
	"github.com/mongorelic/mongorelic/agent/internal/telemetry"
)

// --- fakes ---

type fetchResult struct {
	doc status.Document
	err error
}

// fakeSource replays results in order and repeats the last one.
type fakeSource struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

func (f *fakeSource) ServerStatus(context.Context) (status.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].doc, f.results[i].err
}

type fakeShipper struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakeShipper) Ship(_ context.Context, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeShipper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

// statusDoc builds a complete serverStatus reply with the given counters.
func statusDoc(t *testing.T, inserts int64, connections int32, netIn float64) status.Document {
	t.Helper()
	raw, err := bson.Marshal(bson.D{
		{Key: "connections", Value: bson.D{{Key: "current", Value: connections}, {Key: "available", Value: int32(800)}}},
		{Key: "globalLock", Value: bson.D{
			{Key: "currentQueue", Value: bson.D{{Key: "readers", Value: int32(0)}, {Key: "writers", Value: int32(0)}}},
			{Key: "activeClients", Value: bson.D{{Key: "readers", Value: int32(1)}, {Key: "writers", Value: int32(0)}}},
		}},
		{Key: "opcounters", Value: bson.D{
			{Key: "insert", Value: inserts},
			{Key: "query", Value: int64(10)},
			{Key: "update", Value: int64(0)},
			{Key: "delete", Value: int64(0)},
			{Key: "getmore", Value: int64(0)},
			{Key: "command", Value: int64(5)},
		}},
		{Key: "recordStats", Value: bson.D{{Key: "pageFaultExceptionsThrown", Value: int32(0)}}},
		{Key: "network", Value: bson.D{{Key: "bytesIn", Value: netIn}, {Key: "bytesOut", Value: 100.0}}},
		{Key: "indexCounters", Value: bson.D{{Key: "missRatio", Value: 0.03}}},
		{Key: "locks", Value: bson.D{{Key: "app", Value: bson.D{
			{Key: "timeLockedMicros", Value: bson.D{{Key: "r", Value: int64(10)}, {Key: "w", Value: int64(20)}}},
		}}}},
		{Key: "metrics", Value: bson.D{{Key: "document", Value: bson.D{
			{Key: "returned", Value: int64(3)},
			{Key: "inserted", Value: inserts},
		}}}},
	})
	require.NoError(t, err)
	return status.New(raw)
}

var testMeta = newrelic.Metadata{Host: "db-1", PID: 7, Version: "0.1.0", Name: "app", GUID: "com.example.mongodb", Duration: 60}

func newPipeline(t *testing.T, src scraper.StatusSource, ship Shipper) *Pipeline {
	t.Helper()
	p := New(src, ship, testMeta, "app", zaptest.NewLogger(t).Sugar())
	p.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return p
}

// --- Tick ---

func TestTick_FirstTickIsBaseline(t *testing.T) {
	ship := &fakeShipper{}
	p := newPipeline(t, &fakeSource{results: []fetchResult{{doc: statusDoc(t, 100, 5, 5000)}}}, ship)

	next, outcome := p.Tick(context.Background(), nil)

	assert.Equal(t, Baseline, outcome)
	require.NotNil(t, next)
	assert.Equal(t, int64(100), next.Inserts)
	assert.False(t, next.SampledAt.IsZero())
	assert.Zero(t, ship.count(), "nothing shipped on the first tick")
}

func TestTick_SecondTickShipsDelta(t *testing.T) {
	ship := &fakeShipper{}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: statusDoc(t, 140, 7, 5600)},
	}}
	p := newPipeline(t, src, ship)

	prev, _ := p.Tick(context.Background(), nil)
	next, outcome := p.Tick(context.Background(), prev)

	assert.Equal(t, Shipped, outcome)
	assert.Equal(t, int64(140), next.Inserts)
	require.Equal(t, 1, ship.count())

	var body newrelic.Body
	require.NoError(t, json.Unmarshal(ship.bodies[0], &body))
	m := body.Components[0].Metrics
	assert.Equal(t, 40.0, m["Component/ops/Inserts[Count]"])
	assert.Equal(t, 7.0, m["Component/conn/Connections[Count]"])
	assert.Equal(t, 600.0, m["Component/net/BytesIn[Count]"])
	assert.Equal(t, 0.03, m["Component/idx/MissRatio[Count]"])
	assert.Equal(t, 60, body.Components[0].Duration)
	assert.Equal(t, "com.example.mongodb", body.Components[0].GUID)
}

func TestTick_FetchFailureKeepsPrevious(t *testing.T) {
	ship := &fakeShipper{}
	p := newPipeline(t, &fakeSource{results: []fetchResult{{err: errors.New("connection refused")}}}, ship)

	prev := &scraper.Snapshot{Inserts: 100}
	next, outcome := p.Tick(context.Background(), prev)

	assert.Equal(t, FetchFailed, outcome)
	assert.Same(t, prev, next)
	assert.Zero(t, ship.count())
}

func TestTick_SampleFailureKeepsPrevious(t *testing.T) {
	ship := &fakeShipper{}
	broken, err := status.FromExtJSON([]byte(`{"connections": {"current": 5}}`))
	require.NoError(t, err)
	p := newPipeline(t, &fakeSource{results: []fetchResult{{doc: broken}}}, ship)

	prev := &scraper.Snapshot{Inserts: 100}
	next, outcome := p.Tick(context.Background(), prev)

	assert.Equal(t, SampleFailed, outcome)
	assert.Same(t, prev, next)
	assert.Zero(t, ship.count())

	// Without a previous sample nothing is stored.
	next, outcome = p.Tick(context.Background(), nil)
	assert.Equal(t, SampleFailed, outcome)
	assert.Nil(t, next)
}

func TestTick_ShipFailureAdvancesPrevious(t *testing.T) {
	ship := &fakeShipper{err: &shipper.StatusError{Code: 503}}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: statusDoc(t, 140, 5, 5000)},
	}}
	p := newPipeline(t, src, ship)

	prev, _ := p.Tick(context.Background(), nil)
	next, outcome := p.Tick(context.Background(), prev)

	assert.Equal(t, ShipFailed, outcome)
	require.NotNil(t, next)
	assert.Equal(t, int64(140), next.Inserts, "the unsent sample becomes previous")
}

func TestTick_PermanentShipFailure(t *testing.T) {
	ship := &fakeShipper{err: &shipper.StatusError{Code: 403}}
	src := &fakeSource{results: []fetchResult{{doc: statusDoc(t, 100, 5, 5000)}}}
	p := newPipeline(t, src, ship)

	prev, _ := p.Tick(context.Background(), nil)
	_, outcome := p.Tick(context.Background(), prev)
	assert.Equal(t, ShipFailed, outcome)
}

func TestTick_CounterResetShipsNegative(t *testing.T) {
	ship := &fakeShipper{}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: statusDoc(t, 3, 1, 200)},
	}}
	rec := telemetry.NewRecorder(time.Minute)
	p := newPipeline(t, src, ship).WithRecorder(rec)

	prev, _ := p.Tick(context.Background(), nil)
	_, outcome := p.Tick(context.Background(), prev)
	require.Equal(t, Shipped, outcome)

	var body newrelic.Body
	require.NoError(t, json.Unmarshal(ship.bodies[0], &body))
	assert.Equal(t, -4800.0, body.Components[0].Metrics["Component/net/BytesIn[Count]"])
	assert.Equal(t, -97.0, body.Components[0].Metrics["Component/ops/Inserts[Count]"])
}

func TestTick_RecordsTelemetry(t *testing.T) {
	ship := &fakeShipper{}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: statusDoc(t, 140, 5, 5000)},
	}}
	rec := telemetry.NewRecorder(time.Minute)
	p := newPipeline(t, src, ship).WithRecorder(rec)

	prev, _ := p.Tick(context.Background(), nil)
	p.Tick(context.Background(), prev)

	ok, _ := rec.Healthy()
	assert.True(t, ok)
	assert.Equal(t, ship.bodies[0], rec.Envelope())
}

func TestTick_EncodeFailureAdvancesPrevious(t *testing.T) {
	ship := &fakeShipper{}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: nanDoc(t)},
	}}
	p := newPipeline(t, src, ship)

	prev, _ := p.Tick(context.Background(), nil)
	next, outcome := p.Tick(context.Background(), prev)

	assert.Equal(t, EncodeFailed, outcome)
	require.NotNil(t, next)
	assert.NotSame(t, prev, next)
	assert.Zero(t, ship.count())
}

// nanDoc is a complete document whose index miss ratio is NaN.
func nanDoc(t *testing.T) status.Document {
	t.Helper()
	var d bson.D
	require.NoError(t, bson.Unmarshal(statusDoc(t, 140, 5, 5000).Raw(), &d))
	for i, e := range d {
		if e.Key == "indexCounters" {
			d[i].Value = bson.D{{Key: "missRatio", Value: math.NaN()}}
		}
	}
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	return status.New(raw)
}

// --- Outcome ---

func TestOutcome_Sampled(t *testing.T) {
	assert.False(t, FetchFailed.Sampled())
	assert.False(t, SampleFailed.Sampled())
	for _, o := range []Outcome{Baseline, EncodeFailed, ShipFailed, Shipped} {
		assert.True(t, o.Sampled(), o)
	}
}

// --- Run ---

func TestRun_TicksUntilCancelled(t *testing.T) {
	ship := &fakeShipper{}
	src := &fakeSource{results: []fetchResult{
		{doc: statusDoc(t, 100, 5, 5000)},
		{doc: statusDoc(t, 110, 5, 5000)},
		{doc: statusDoc(t, 120, 5, 5000)},
	}}
	p := newPipeline(t, src, ship)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return ship.count() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
