package control

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

func TestReconciler_Order(t *testing.T) {
	tests := []struct {
		name   string
		mode   device.Mode
		params device.Params
		want   []string
		args   [][]string
	}{
		{
			name:   "rgb with brightness",
			mode:   device.ModeRGB,
			params: device.Params{"r": 255, "g": 0, "b": 0, "brightness": 40},
			want:   []string{"set_brightness", "set_color"},
			args:   [][]string{{"led_control.py", "set_brightness", "40"}, {"led_control.py", "set_color", "255", "0", "0"}},
		},
		{
			name:   "rgb without brightness",
			mode:   device.ModeRGB,
			params: device.Params{"g": 12},
			want:   []string{"set_color"},
			args:   [][]string{{"led_control.py", "set_color", "255", "12", "255"}},
		},
		{
			name:   "brightness as numeric string",
			mode:   device.ModeRGB,
			params: device.Params{"brightness": "64"},
			want:   []string{"set_brightness", "set_color"},
		},
		{
			name:   "non numeric brightness ignored",
			mode:   device.ModeRGB,
			params: device.Params{"brightness": "dim"},
			want:   []string{"set_color"},
		},
		{
			name:   "wave",
			mode:   device.ModeWave,
			params: device.Params{"speed": 2, "brightness": 10},
			want:   []string{"set_brightness", "wave"},
			args:   [][]string{{"led_control.py", "set_brightness", "10"}, {"led_control.py", "wave", "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			id := f.createStrip(t, ownerA)

			st, err := f.reconciler.Reconcile(context.Background(), ownerA, id, tt.mode, tt.params, true)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if st.Mode != tt.mode {
				t.Errorf("Mode = %q, want %q", st.Mode, tt.mode)
			}
			if got := f.runner.actions(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("actions = %v, want %v", got, tt.want)
			}
			for i, want := range tt.args {
				if !reflect.DeepEqual(f.runner.calls[i].Args, want) {
					t.Errorf("call %d args = %v, want %v", i, f.runner.calls[i].Args, want)
				}
			}
		})
	}
}

func TestReconciler_ExecuteFalseSpawnsNothing(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	id := f.createStrip(t, ownerA)

	st, err := f.reconciler.Reconcile(ctx, ownerA, id, device.ModeWave, device.Params{"speed": 1}, false)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if st.Mode != device.ModeWave {
		t.Errorf("Mode = %q, want wave", st.Mode)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("runner calls = %d, want 0", len(f.runner.calls))
	}
	if d := f.device(t, ownerA, id); d.LastSeen != nil {
		t.Error("lastSeen touched without execution")
	}
}

func TestReconciler_HueKeepsStateWrite(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	id := f.createStrip(t, ownerA)

	st, err := f.reconciler.Reconcile(ctx, ownerA, id, device.ModeHue, device.Params{"h": 120}, true)
	if !errors.Is(err, executor.ErrNotImplemented) {
		t.Fatalf("error = %v, want ErrNotImplemented", err)
	}
	if st == nil || st.Mode != device.ModeHue {
		t.Errorf("returned state = %+v, want hue", st)
	}

	stored, err := f.states.GetState(ctx, ownerA, id)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if stored.Mode != device.ModeHue {
		t.Errorf("stored Mode = %q, want hue", stored.Mode)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("runner calls = %d, want 0", len(f.runner.calls))
	}
}

func TestReconciler_FailureStopsSequence(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	id := f.createStrip(t, ownerA)

	f.runner.results["set_brightness"] = process.Result{ExitCode: 2, Reason: process.ReasonExitStatus}

	st, err := f.reconciler.Reconcile(ctx, ownerA, id, device.ModeRGB, device.Params{"brightness": 10, "r": 1}, true)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("error = %v, want ErrExecutionFailed", err)
	}
	if st == nil {
		t.Fatal("state should be returned after it was persisted")
	}
	if got := f.runner.actions(); !reflect.DeepEqual(got, []string{"set_brightness"}) {
		t.Errorf("actions = %v, want only set_brightness", got)
	}

	stored, err := f.states.GetState(ctx, ownerA, id)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if stored.Params["r"] != float64(1) {
		t.Errorf("stored Params = %v, want intent kept", stored.Params)
	}
}

func TestReconciler_InvalidModeAndOwnership(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	theirs := f.createStrip(t, ownerB)

	if _, err := f.reconciler.Reconcile(ctx, ownerA, theirs, device.ModeRGB, nil, true); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("foreign error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := f.reconciler.Reconcile(ctx, ownerB, theirs, "disco", nil, true); !errors.Is(err, device.ErrInvalidMode) {
		t.Errorf("invalid mode error = %v, want ErrInvalidMode", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("runner calls = %d, want 0", len(f.runner.calls))
	}
}

func TestReconciler_SkipsActionStateEffect(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	id := f.createStrip(t, ownerA)

	if _, err := f.reconciler.Reconcile(ctx, ownerA, id, device.ModeRGB, device.Params{"r": 5, "brightness": 20}, true); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	history, err := f.states.History(ctx, ownerA, id, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history entries = %d, want 1 (no per-action writes)", len(history))
	}
}
