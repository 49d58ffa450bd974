package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterTotal sums all data points of an int64 counter metric.
func counterTotal(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestFrameCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FrameSent(ctx, "candidate", 640)
	m.FrameSent(ctx, "candidate", 640)
	m.FrameSent(ctx, "interviewer", 640)
	m.FrameDropped(ctx, "candidate")

	rm := collect(t, reader)

	sent := findMetric(rm, "voicelink.frames.sent")
	if sent == nil {
		t.Fatal("frames.sent not found")
	}
	if got := counterTotal(t, sent); got != 3 {
		t.Errorf("frames.sent = %d, want 3", got)
	}

	bytes := findMetric(rm, "voicelink.bytes.sent")
	if bytes == nil {
		t.Fatal("bytes.sent not found")
	}
	if got := counterTotal(t, bytes); got != 1920 {
		t.Errorf("bytes.sent = %d, want 1920", got)
	}

	dropped := findMetric(rm, "voicelink.frames.dropped")
	if dropped == nil {
		t.Fatal("frames.dropped not found")
	}
	if got := counterTotal(t, dropped); got != 1 {
		t.Errorf("frames.dropped = %d, want 1", got)
	}
}

func TestEventAndReconnectCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.EventReceived(ctx, "sync_state")
	m.EventReceived(ctx, "assist_hint")
	m.ReconnectAttempt(ctx, "candidate")

	rm := collect(t, reader)

	events := findMetric(rm, "voicelink.events.received")
	if events == nil {
		t.Fatal("events.received not found")
	}
	if got := counterTotal(t, events); got != 2 {
		t.Errorf("events.received = %d, want 2", got)
	}

	rec := findMetric(rm, "voicelink.reconnect.attempts")
	if rec == nil {
		t.Fatal("reconnect.attempts not found")
	}
	if got := counterTotal(t, rec); got != 1 {
		t.Errorf("reconnect.attempts = %d, want 1", got)
	}
}

func TestSessionLifecycleMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx, "candidate")
	m.SessionStarted(ctx, "interviewer")
	m.SessionEnded(ctx, "candidate", 90*time.Second)

	rm := collect(t, reader)

	active := findMetric(rm, "voicelink.active_sessions")
	if active == nil {
		t.Fatal("active_sessions not found")
	}
	if got := counterTotal(t, active); got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}

	dur := findMetric(rm, "voicelink.session.duration")
	if dur == nil {
		t.Fatal("session.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("session.duration is %T, want Histogram[float64]", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 1 {
		t.Errorf("session.duration observations = %d, want 1", count)
	}
}

func TestAnswerDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AnswerCompleted(ctx, "live", 3*time.Second)
	m.AnswerCompleted(ctx, "fallback", 20*time.Second)

	rm := collect(t, reader)

	dur := findMetric(rm, "voicelink.answer.duration")
	if dur == nil {
		t.Fatal("answer.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("answer.duration is %T, want Histogram[float64]", dur.Data)
	}
	if len(hist.DataPoints) != 2 {
		t.Errorf("data points = %d, want 2 (one per mode)", len(hist.DataPoints))
	}
}
