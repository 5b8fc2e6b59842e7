package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

// waitForLines polls until n lines have arrived or the deadline passes.
func (f *fakeInflux) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mu.Lock()
		got := append([]string(nil), f.lines...)
		f.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func setup(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "hotel",
		Bucket:        "fogcore",
		BatchSize:     10,
		FlushInterval: 1,
	}, "fog-001")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client, fake
}

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: false}, "fog-001")
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL}, "fog-001")
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := setup(t)

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close() //nolint:errcheck // closing to test state
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteAccessDecision(t *testing.T) {
	client, fake := setup(t)

	client.WriteAccessDecision("12", "granted", true, time.Now())
	client.Flush()

	lines := fake.waitForLines(t, 1)
	if len(lines) != 1 {
		t.Fatalf("received %d lines, want 1: %v", len(lines), lines)
	}
	line := lines[0]
	for _, want := range []string{"access_decisions,", "room_id=12", "reason=granted", "site=fog-001", "granted=true"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteDeviceTelemetry(t *testing.T) {
	client, fake := setup(t)

	client.WriteDeviceTelemetry("thermo-101", "thermostat", "101", map[string]any{"temperature_c": 21.5}, time.Now())
	client.WriteDeviceTelemetry("thermo-101", "thermostat", "101", nil, time.Now()) // skipped
	client.Flush()

	lines := fake.waitForLines(t, 1)
	if len(lines) != 1 {
		t.Fatalf("received %d lines, want 1: %v", len(lines), lines)
	}
	for _, want := range []string{"device_telemetry,", "device_id=thermo-101", "kind=thermostat", "room_id=101", "temperature_c=21.5"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWritesAreNoopWhenClosedOrNil(t *testing.T) {
	client, fake := setup(t)
	client.Close() //nolint:errcheck // closing to test no-op writes

	client.WriteAccessDecision("12", "no_grant", false, time.Now())
	client.WritePoint("custom", nil, map[string]any{"v": 1})
	client.Flush()

	var nilClient *influxdb.Client
	nilClient.WriteAccessDecision("12", "granted", true, time.Now())
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.lines) != 0 {
		t.Errorf("closed client wrote %v", fake.lines)
	}
}
