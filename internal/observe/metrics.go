// Package observe provides application-wide observability primitives for
// voicelink: OpenTelemetry metrics with a Prometheus exporter bridge, plus
// provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the standard /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicelink metrics.
const meterName = "github.com/atluriin/voicelink"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// FramesSent counts audio frames accepted for transmission. Use with
	// attribute.String("participant", ...).
	FramesSent metric.Int64Counter

	// FramesDropped counts audio frames discarded under backpressure or
	// while disconnected. Use with attribute.String("participant", ...).
	FramesDropped metric.Int64Counter

	// BytesSent counts audio payload bytes accepted for transmission.
	BytesSent metric.Int64Counter

	// ReconnectAttempts counts reconnection attempts after transient
	// connection losses.
	ReconnectAttempts metric.Int64Counter

	// EventsReceived counts decoded inbound messages by type.
	EventsReceived metric.Int64Counter

	// AnswerDuration tracks how long answer generations take from start to
	// done, by completion mode (live or fallback).
	AnswerDuration metric.Float64Histogram

	// SessionDuration tracks total per-participant session lifetime.
	SessionDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live voice connections.
	ActiveSessions metric.Int64UpDownCounter
}

// answerBuckets covers typical answer generation times (in seconds) up to
// and past the stream timeout.
var answerBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 15, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesSent, err = m.Int64Counter("voicelink.frames.sent",
		metric.WithDescription("Audio frames accepted for transmission by participant."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voicelink.frames.dropped",
		metric.WithDescription("Audio frames dropped under backpressure or while disconnected."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("voicelink.bytes.sent",
		metric.WithDescription("Audio payload bytes accepted for transmission."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ReconnectAttempts, err = m.Int64Counter("voicelink.reconnect.attempts",
		metric.WithDescription("Reconnection attempts after transient connection losses."),
	); err != nil {
		return nil, err
	}
	if met.EventsReceived, err = m.Int64Counter("voicelink.events.received",
		metric.WithDescription("Decoded inbound messages by type."),
	); err != nil {
		return nil, err
	}
	if met.AnswerDuration, err = m.Float64Histogram("voicelink.answer.duration",
		metric.WithDescription("Answer generation time from start to done, by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(answerBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("voicelink.session.duration",
		metric.WithDescription("Total per-participant session lifetime."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicelink.active_sessions",
		metric.WithDescription("Number of live voice connections."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// FrameSent records one accepted audio frame of the given size.
func (m *Metrics) FrameSent(ctx context.Context, participant string, bytes int) {
	attrs := metric.WithAttributes(attribute.String("participant", participant))
	m.FramesSent.Add(ctx, 1, attrs)
	m.BytesSent.Add(ctx, int64(bytes), attrs)
}

// FrameDropped records one dropped audio frame.
func (m *Metrics) FrameDropped(ctx context.Context, participant string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("participant", participant)),
	)
}

// ReconnectAttempt records one reconnection attempt.
func (m *Metrics) ReconnectAttempt(ctx context.Context, participant string) {
	m.ReconnectAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("participant", participant)),
	)
}

// EventReceived records one decoded inbound message.
func (m *Metrics) EventReceived(ctx context.Context, msgType string) {
	m.EventsReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", msgType)),
	)
}

// AnswerCompleted records one finished answer generation.
func (m *Metrics) AnswerCompleted(ctx context.Context, mode string, elapsed time.Duration) {
	m.AnswerDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// SessionStarted marks one voice connection as live.
func (m *Metrics) SessionStarted(ctx context.Context, participant string) {
	m.ActiveSessions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("participant", participant)),
	)
}

// SessionEnded marks one voice connection as ended and records its lifetime.
func (m *Metrics) SessionEnded(ctx context.Context, participant string, lifetime time.Duration) {
	attrs := metric.WithAttributes(attribute.String("participant", participant))
	m.ActiveSessions.Add(ctx, -1, attrs)
	m.SessionDuration.Record(ctx, lifetime.Seconds(), attrs)
}
