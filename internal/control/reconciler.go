package control

import (
	"context"
	"fmt"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
)

// ActionDriver runs an action without touching display state.
type ActionDriver interface {
	Drive(ctx context.Context, ownerID, deviceID, action string, params map[string]any) (*Outcome, error)
}

// Reconciler applies a desired display state to a device.
type Reconciler struct {
	states StateWriter
	driver ActionDriver
	logger Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(states StateWriter, driver ActionDriver) *Reconciler {
	return &Reconciler{
		states: states,
		driver: driver,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// Reconcile persists the desired state and, when execute is true, drives
// the device towards it. Actions run one at a time in a fixed order.
//
// The returned state is non-nil whenever it was persisted, including when
// execution fails afterwards.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID, deviceID string, mode device.Mode, patch device.Params, execute bool) (*device.State, error) {
	st, err := r.states.UpsertState(ctx, ownerID, deviceID, mode, patch, ownerID)
	if err != nil {
		return nil, err
	}
	if !execute {
		return st, nil
	}

	for _, step := range plan(st) {
		if step.err != nil {
			return st, step.err
		}
		if _, err := r.driver.Drive(ctx, ownerID, deviceID, step.action, step.params); err != nil {
			r.logger.Warn("reconcile step failed",
				"device_id", deviceID,
				"mode", st.Mode,
				"action", step.action,
				"error", err,
			)
			return st, err
		}
	}

	r.logger.Debug("device reconciled", "device_id", deviceID, "mode", st.Mode)
	return st, nil
}

type step struct {
	action string
	params map[string]any
	err    error
}

// plan maps a state to the ordered actions that realise it.
func plan(st *device.State) []step {
	var steps []step
	brightness := func() {
		if v, ok := st.Params.Number("brightness"); ok {
			steps = append(steps, step{action: executor.ActionSetBrightness, params: map[string]any{"value": v}})
		}
	}

	switch st.Mode {
	case device.ModeRGB:
		brightness()
		steps = append(steps, step{action: executor.ActionSetColor, params: pick(st.Params, "r", "g", "b")})
	case device.ModeWave:
		brightness()
		steps = append(steps, step{action: executor.ActionWave, params: pick(st.Params, "speed")})
	case device.ModeHue:
		steps = append(steps, step{err: fmt.Errorf("%w: hue mode", executor.ErrNotImplemented)})
	default:
		steps = append(steps, step{err: fmt.Errorf("%w: %q", device.ErrInvalidMode, st.Mode)})
	}
	return steps
}

func pick(p device.Params, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}
