package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fog-access-core/internal/backend"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
)

const testPepper = "test-pepper-0123456789"

// writeConfig writes a minimal config with MQTT, InfluxDB and the backend
// disabled and returns its path.
func writeConfig(t *testing.T, dbPath string, port int) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := fmt.Sprintf(`
site:
  id: test-site

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

backend:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: %d

security:
  credential_pepper: %q
`, dbPath, port, testPepper)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close() //nolint:errcheck // only needed the port
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("FOGCORE_DATABASE_PATH", "")
	configPath := writeConfig(t, "", 5000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil || !strings.Contains(err.Error(), "database.path is required") {
		t.Fatalf("run() error = %v, want database.path validation error", err)
	}
}

func TestRun_StartsAndStops(t *testing.T) {
	port := freePort(t)
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "fog.db"), port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	var status int
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec,noctx // local test server
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close() //nolint:errcheck // test
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if status != http.StatusOK {
		t.Errorf("health status = %d, want 200", status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/custom/path/config.yaml")
	if got := getConfigPath(""); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() env = %q", got)
	}

	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("getConfigPath() flag = %q, want flag to win over env", got)
	}
}

// execute runs the command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "fogcore "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestMigrateCommands(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "fog.db"), 5000)

	out, err := execute(t, "--config", configPath, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	if !strings.Contains(out, "pending") || strings.Contains(out, "applied") {
		t.Errorf("status before up = %q, want only pending", out)
	}

	if _, err := execute(t, "--config", configPath, "migrate", "up"); err != nil {
		t.Fatalf("migrate up error = %v", err)
	}

	out, err = execute(t, "--config", configPath, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	if !strings.Contains(out, "applied") || strings.Contains(out, "pending") {
		t.Errorf("status after up = %q, want only applied", out)
	}

	out, err = execute(t, "--config", configPath, "migrate", "down")
	if err != nil {
		t.Fatalf("migrate down error = %v", err)
	}
	if !strings.Contains(out, "rolled back") {
		t.Errorf("down output = %q", out)
	}
}

func TestMigrateCommand_BadConfig(t *testing.T) {
	if _, err := execute(t, "--config", "/nonexistent/config.yaml", "migrate", "up"); err == nil {
		t.Fatal("migrate up should fail without a config file")
	}
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSyncer) SyncAll(context.Context) (backend.Result, error) {
	return f.record("*")
}

func (f *fakeSyncer) SyncRoom(_ context.Context, roomID string) (backend.Result, error) {
	return f.record(roomID)
}

func (f *fakeSyncer) record(room string) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, room)
	if f.err != nil {
		return backend.Result{}, f.err
	}
	r := backend.Result{Fetched: 2, Inserted: 1, Skipped: 1}
	if room != "*" {
		r.RoomID = room
	}
	return r, nil
}

type fakeSyncPublisher struct {
	mu      sync.Mutex
	results []backend.Result
}

func (f *fakeSyncPublisher) PublishSync(_ context.Context, _ string, r backend.Result) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func TestSyncCommandHandler(t *testing.T) {
	syncer := &fakeSyncer{}
	pub := &fakeSyncPublisher{}
	h := newSyncCommandHandler(context.Background(), syncer, pub, logging.Discard())

	for _, payload := range []string{`{"room_id": 12}`, `{"room_id":"101"}`, ``, `{}`} {
		if err := h.Handle("fog/test-site/command/sync", []byte(payload)); err != nil {
			t.Errorf("Handle(%q) error = %v", payload, err)
		}
	}
	h.Wait()

	syncer.mu.Lock()
	calls := strings.Join(sortedCopy(syncer.calls), ",")
	syncer.mu.Unlock()
	if calls != "*,*,101,12" {
		t.Errorf("sync calls = %s, want *,*,101,12", calls)
	}
	if len(pub.results) != 4 {
		t.Errorf("published %d results, want 4", len(pub.results))
	}
}

func TestSyncCommandHandler_Errors(t *testing.T) {
	syncer := &fakeSyncer{err: backend.ErrUnreachable}
	pub := &fakeSyncPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	h := newSyncCommandHandler(ctx, syncer, pub, logging.Discard())

	if err := h.Handle("t", []byte(`not json`)); err == nil {
		t.Error("Handle(bad json) should fail")
	}

	if err := h.Handle("t", []byte(`{"room_id":"12"}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	h.Wait()
	if len(pub.results) != 0 {
		t.Errorf("failed sync was published: %v", pub.results)
	}

	cancel()
	if err := h.Handle("t", []byte(`{}`)); !errors.Is(err, context.Canceled) {
		t.Errorf("Handle() after shutdown error = %v, want context.Canceled", err)
	}
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
