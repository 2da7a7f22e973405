package control

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
	_ "github.com/onur02004/MainRoadmap-sub000/migrations" // registers embedded schema
)

const (
	ownerA = "user-a"
	ownerB = "user-b"
)

// fakeRunner records invocations instead of spawning processes.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []process.Invocation
	results map[string]process.Result // keyed by action name
}

func (f *fakeRunner) Run(_ context.Context, inv process.Invocation) process.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)

	action := actionOf(inv)
	if res, ok := f.results[action]; ok {
		return res
	}
	return process.Result{Stdout: `{"ok":true,"dryRun":true,"action":"` + action + `"}` + "\n", Duration: time.Millisecond}
}

// actions returns the action names of all recorded calls, in order.
func (f *fakeRunner) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, actionOf(c))
	}
	return out
}

// actionOf skips the script path to find the action argument.
func actionOf(inv process.Invocation) string {
	if len(inv.Args) < 2 {
		return ""
	}
	return inv.Args[1]
}

type captureRecorder struct {
	mu   sync.Mutex
	runs []Execution
}

func (c *captureRecorder) RecordExecution(_ context.Context, e Execution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, e)
}

type fixture struct {
	repo       *device.SQLRepository
	registry   *device.Registry
	states     *device.StateStore
	runner     *fakeRunner
	recorder   *captureRecorder
	dispatcher *Dispatcher
	reconciler *Reconciler
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "control.db"),
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
		Env:     map[string]string{"pin": "LED_PIN", "pixels": "LED_PIXELS"},
	})

	runner := &fakeRunner{results: map[string]process.Result{}}
	recorder := &captureRecorder{}
	dispatcher := NewDispatcher(repo, handlers, runner, registry, states)
	dispatcher.SetRecorder(recorder)

	return &fixture{
		repo:       repo,
		registry:   registry,
		states:     states,
		runner:     runner,
		recorder:   recorder,
		dispatcher: dispatcher,
		reconciler: NewReconciler(states, dispatcher),
	}
}

// createStrip registers an LED strip through the registry and returns its ID.
func (f *fixture) createStrip(t *testing.T, owner string) string {
	t.Helper()
	d, err := f.registry.CreateDevice(context.Background(), owner, device.NewDevice{
		KindKey:     "led_strip",
		DisplayName: "Desk strip",
		Meta:        map[string]any{"pin": "D18", "pixels": float64(60)},
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	return d.ID
}

func (f *fixture) device(t *testing.T, owner, id string) *device.Device {
	t.Helper()
	d, err := f.registry.GetDevice(context.Background(), owner, id)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	return d
}
