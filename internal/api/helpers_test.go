package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/audit"
	"github.com/onur02004/MainRoadmap-sub000/internal/auth"
	"github.com/onur02004/MainRoadmap-sub000/internal/control"
	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/logging"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
	_ "github.com/onur02004/MainRoadmap-sub000/migrations" // registers embedded schema
)

const (
	testSecret = "test-secret-key-for-api-tests"
	ownerA     = "user-a"
	ownerB     = "user-b"
)

// fakeRunner answers every invocation without spawning a process.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []process.Invocation
	results map[string]process.Result // keyed by action name
}

func (f *fakeRunner) Run(_ context.Context, inv process.Invocation) process.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)

	action := ""
	if len(inv.Args) > 1 {
		action = inv.Args[1]
	}
	if res, ok := f.results[action]; ok {
		return res
	}
	return process.Result{Stdout: "led ready\n" + `{"ok":true,"action":"` + action + `"}` + "\n", Duration: time.Millisecond}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testServer struct {
	srv    *Server
	db     *database.DB
	runner *fakeRunner
	h      http.Handler

	// drainAudit stops the audit recorder once every queued entry is written.
	drainAudit func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	repo := device.NewSQLRepository(db.DB, db.Driver())
	registry := device.NewRegistry(repo, repo, device.DefaultPairingSettings())
	states := device.NewStateStore(repo, device.NewSQLStateHistoryRepository(db.DB, db.Driver()))

	handlers := executor.NewHandlers()
	handlers.Register("led_control", executor.ScriptStrategy{
		Name:    "led_control",
		Command: "python3",
		Script:  "led_control.py",
	})

	runner := &fakeRunner{results: map[string]process.Result{}}
	dispatcher := control.NewDispatcher(repo, handlers, runner, registry, states)
	reconciler := control.NewReconciler(states, dispatcher)

	auditRepo := audit.NewSQLRepository(db.DB, db.Driver())
	recorder := audit.NewRecorder(auditRepo, 0)
	dispatcher.SetRecorder(recorder)

	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		recorder.Run(auditCtx)
		close(auditDone)
	}()
	drainAudit := func() {
		stopAudit()
		<-auditDone
	}
	t.Cleanup(drainAudit)

	logger := logging.Discard()
	hub := NewHub(config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logger)
	states.SetNotifier(hub)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:     config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{
			JWT:       config.JWTConfig{Secret: testSecret},
			RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 600, Burst: 100},
		},
		Logger:     logger,
		Registry:   registry,
		States:     states,
		Dispatcher: dispatcher,
		Reconciler: reconciler,
		Hub:        hub,
		Audit:      auditRepo,
		DB:         db,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testServer{srv: srv, db: db, runner: runner, h: srv.Handler(), drainAudit: drainAudit}
}

// token issues a session token for owner.
func token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(owner, "user", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return tok
}

// do sends a request as owner (no session when owner is empty) and
// returns the recorded response.
func (ts *testServer) do(t *testing.T, owner, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: token(t, owner)})
	}

	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

// createStrip registers an LED strip for owner over HTTP and returns its ID.
func (ts *testServer) createStrip(t *testing.T, owner string) string {
	t.Helper()
	rec := ts.do(t, owner, http.MethodPost, "/api/devices", map[string]any{
		"kindKey":     "led_strip",
		"displayName": "Desk strip",
		"meta":        map[string]any{"pin": "D18"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create device status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var d device.Device
	decodeBody(t, rec, &d)
	return d.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// errorCode returns the code of a structured error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e Error
	decodeBody(t, rec, &e)
	return e.Code
}
