package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/atluriin/voicelink/internal/config"
	"github.com/atluriin/voicelink/internal/observe"
)

func testAppConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Backend.URL = "https://api.example.com"
	cfg.Server.ListenAddr = "" // no real listener in tests
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNewWiresSubsystems(t *testing.T) {
	a, err := New(context.Background(), testAppConfig(), nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Room() == nil {
		t.Error("room coordinator not created")
	}
	if a.server != nil {
		t.Error("status server created despite empty listen addr")
	}
}

func TestNewStatusServerRoutes(t *testing.T) {
	cfg := testAppConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.server == nil {
		t.Fatal("status server not created")
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		a.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRunFailsWithoutParticipants(t *testing.T) {
	cfg := testAppConfig()
	cfg.Audio.CandidateSource = config.SourceNone
	cfg.Audio.InterviewerSource = config.SourceNone

	a, err := New(context.Background(), cfg, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want no-participant error")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	a, err := New(context.Background(), testAppConfig(), nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
