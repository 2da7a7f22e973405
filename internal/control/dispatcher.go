package control

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

// Logger defines the logging interface used by the control package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ActionLookup resolves an owned device's declared action.
type ActionLookup interface {
	LookupAction(ctx context.Context, ownerID, deviceID, action string) (*device.ActionTarget, error)
}

// SeenToucher records device liveness.
type SeenToucher interface {
	TouchSeen(ctx context.Context, deviceID string, status device.Status) device.BestEffort
}

// StateWriter persists display state changes.
type StateWriter interface {
	UpsertState(ctx context.Context, ownerID, deviceID string, mode device.Mode, patch device.Params, actorID string) (*device.State, error)
}

// Runner runs one child process to completion.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) process.Result
}

// Outcome is the result of a successful dispatch.
type Outcome struct {
	// Stdout is the trimmed standard output of the executor.
	Stdout string

	// Result is the executor's JSON status line, if it printed one.
	Result json.RawMessage

	// State is the display state after the action's effect was applied.
	// Nil when the action has no effect or the write failed.
	State *device.State
}

// Dispatcher runs declared device actions through their executors.
// It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	actions  ActionLookup
	handlers *executor.Handlers
	runner   Runner
	seen     SeenToucher
	states   StateWriter
	recorder ExecutionRecorder
	logger   Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(actions ActionLookup, handlers *executor.Handlers, runner Runner, seen SeenToucher, states StateWriter) *Dispatcher {
	return &Dispatcher{
		actions:  actions,
		handlers: handlers,
		runner:   runner,
		seen:     seen,
		states:   states,
		recorder: Recorders(nil),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetRecorder registers the receiver of execution telemetry.
func (d *Dispatcher) SetRecorder(r ExecutionRecorder) {
	d.recorder = r
}

// Dispatch runs action on one of the caller's devices and, on success,
// applies the action's effect to the device's display state.
//
// Returns device.ErrDeviceNotFound when the device is missing, foreign or
// does not declare the action; executor errors for unsupported handlers,
// unimplemented actions and bad params; and *ExecutionError when the
// process fails.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID, deviceID, action string, params map[string]any) (*Outcome, error) {
	return d.dispatch(ctx, ownerID, deviceID, action, params, true)
}

// Drive runs action like Dispatch but leaves the display state alone.
// The Reconciler uses it after recording the desired state itself.
func (d *Dispatcher) Drive(ctx context.Context, ownerID, deviceID, action string, params map[string]any) (*Outcome, error) {
	return d.dispatch(ctx, ownerID, deviceID, action, params, false)
}

func (d *Dispatcher) dispatch(ctx context.Context, ownerID, deviceID, action string, params map[string]any, applyEffect bool) (*Outcome, error) {
	target, err := d.actions.LookupAction(ctx, ownerID, deviceID, action)
	if err != nil {
		return nil, err
	}

	strategy, err := d.handlers.Resolve(target.HandlerKey)
	if err != nil {
		return nil, err
	}

	act, err := executor.ParseAction(action, params)
	if err != nil {
		return nil, err
	}

	inv, err := strategy.BuildInvocation(act, target.Meta)
	if err != nil {
		return nil, err
	}

	d.logger.Info("dispatching device action",
		"device_id", deviceID,
		"action", action,
		"handler", target.HandlerKey,
		"owner", ownerID,
	)

	res := d.runner.Run(ctx, inv)

	d.recorder.RecordExecution(ctx, Execution{
		OwnerID:    ownerID,
		DeviceID:   deviceID,
		Action:     action,
		HandlerKey: target.HandlerKey,
		Reason:     res.Reason,
		ExitCode:   res.ExitCode,
		Duration:   res.Duration,
		At:         d.now().UTC(),
	})

	if res.Reason != process.ReasonSpawnFailed {
		status := device.Status("")
		if res.Success() {
			status = device.StatusOnline
		}
		d.seen.TouchSeen(ctx, deviceID, status).Log(d.logger, "device_id", deviceID)
	}

	if !res.Success() {
		d.logger.Warn("device action failed",
			"device_id", deviceID,
			"action", action,
			"reason", res.Reason,
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(res.Stderr),
			"output_truncated", res.Truncated,
		)
		return nil, &ExecutionError{
			DeviceID: deviceID,
			Action:   action,
			Reason:   res.Reason,
			ExitCode: res.ExitCode,
			Stdout:   strings.TrimSpace(res.Stdout),
			Stderr:   strings.TrimSpace(res.Stderr),
			Err:      res.Err,
		}
	}

	if res.Truncated {
		d.logger.Warn("executor output truncated",
			"device_id", deviceID,
			"action", action,
			"handler", target.HandlerKey,
		)
	}

	out := &Outcome{Stdout: strings.TrimSpace(res.Stdout)}
	if parsed, ok := res.JSON(); ok {
		out.Result = json.RawMessage(parsed.Raw)
		if parsed.Get("dryRun").Bool() {
			d.logger.Info("executor ran in dry-run mode", "device_id", deviceID, "action", action)
		}
	}

	if applyEffect {
		out.State = d.applyEffect(ctx, ownerID, deviceID, act)
	}
	return out, nil
}

// applyEffect merges the action's state effect. Failures are logged only.
func (d *Dispatcher) applyEffect(ctx context.Context, ownerID, deviceID string, act executor.Action) *device.State {
	mode, patch := executor.StateEffect(act)
	if patch == nil {
		return nil
	}

	st, err := d.states.UpsertState(ctx, ownerID, deviceID, mode, patch, ownerID)
	device.BestEffort{Op: "apply action state", Err: err}.Log(d.logger, "device_id", deviceID, "action", act.Name())
	return st
}
