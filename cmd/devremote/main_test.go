package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/audit"
	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/logging"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/metrics"
)

const testSecret = "test-secret-for-development-only-0123456789"

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("DEVREMOTE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want config load failure", err)
	}
}

func TestRun_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
logging:
  level: error
  format: text
`)
	t.Setenv("DEVREMOTE_CONFIG", path)
	t.Setenv("DEVREMOTE_JWT_SECRET", "")

	if err := run(context.Background()); err == nil || !strings.Contains(err.Error(), "jwt.secret") {
		t.Fatalf("run() error = %v, want missing secret", err)
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
database:
  driver: sqlite3
  path: %q
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: %d
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
security:
  jwt:
    secret: %q
`, filepath.Join(tmpDir, "test.db"), freePort(t), testSecret))
	t.Setenv("DEVREMOTE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "test.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestRun_OptionalSinksUnavailable(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
database:
  path: %q
api:
  host: "127.0.0.1"
  port: %d
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "devremote-test"
  reconnect:
    initial_delay: 1
    max_delay: 1
influxdb:
  enabled: true
  url: "http://127.0.0.1:59999"
logging:
  level: error
security:
  jwt:
    secret: %q
`, filepath.Join(t.TempDir(), "test.db"), freePort(t), testSecret))
	t.Setenv("DEVREMOTE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want the service to start without optional sinks", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("DEVREMOTE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("DEVREMOTE_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

// TestBuildServices_DispatchesThroughScript runs a real executor program
// end to end: registry, dispatcher, process runner and state store.
func TestBuildServices_DispatchesThroughScript(t *testing.T) {
	tmpDir := t.TempDir()
	script := filepath.Join(tmpDir, "led.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"pin=$LED_PIN\"\necho \"{\\\"ok\\\":true,\\\"action\\\":\\\"$1\\\"}\"\n"), 0700); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	cfg := &config.Config{
		Executor: config.ExecutorConfig{
			TimeoutSeconds: 5,
			Handlers: map[string]config.HandlerConfig{
				"led_control": {Command: "/bin/sh", Script: script, Env: map[string]string{"pin": "LED_PIN"}},
			},
		},
		Pairing: config.PairingConfig{CodeDigits: 6, DefaultTTLSeconds: 600, MaxTTLSeconds: 3600},
	}

	db, err := database.Open(database.Config{Path: filepath.Join(tmpDir, "svc.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	svc := buildServices(cfg, db, metrics.New(), logging.Discard())
	svc.dispatcher.SetRecorder(svc.auditRecorder)
	ctx := context.Background()

	auditCtx, stopAudit := context.WithCancel(ctx)
	auditDone := make(chan struct{})
	go func() {
		svc.auditRecorder.Run(auditCtx)
		close(auditDone)
	}()

	d, err := svc.registry.CreateDevice(ctx, "owner-1", device.NewDevice{
		KindKey:     "led_strip",
		DisplayName: "Shelf",
		Meta:        map[string]any{"pin": "D18"},
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	out, err := svc.dispatcher.Dispatch(ctx, "owner-1", d.ID, "on", nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(out.Stdout, "pin=D18") {
		t.Errorf("Stdout = %q, want meta passed through env", out.Stdout)
	}
	if string(out.Result) != `{"ok":true,"action":"on"}` {
		t.Errorf("Result = %s", out.Result)
	}

	st, err := svc.states.GetState(ctx, "owner-1", d.ID)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if st.Params["power"] != "on" {
		t.Errorf("state params = %v, want power on", st.Params)
	}

	got, _ := svc.registry.GetDevice(ctx, "owner-1", d.ID)
	if got.Status != device.StatusOnline || got.LastSeen == nil {
		t.Errorf("device = %+v, want online with lastSeen", got)
	}

	stopAudit()
	<-auditDone
	trail, err := svc.audit.List(ctx, audit.Filter{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	if trail.Total != 1 || trail.Entries[0].Action != "on" || trail.Entries[0].Outcome != "success" {
		t.Errorf("audit trail = %+v", trail)
	}
}
