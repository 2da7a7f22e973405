package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
)

// Measurement names.
const (
	MeasurementDeviceActions = "device_actions"
	MeasurementDeviceState   = "device_state"
)

// ActionPoint describes one executor run.
type ActionPoint struct {
	DeviceID   string
	Action     string
	HandlerKey string
	Outcome    string
	ExitCode   int
	Duration   time.Duration
	At         time.Time
}

// WriteDeviceAction records an executor run in device_actions.
func (c *Client) WriteDeviceAction(p ActionPoint) {
	if !c.IsConnected() {
		return
	}

	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementDeviceActions,
		map[string]string{
			"device_id": p.DeviceID,
			"action":    p.Action,
			"handler":   p.HandlerKey,
			"outcome":   p.Outcome,
		},
		map[string]any{
			"duration_ms": float64(p.Duration) / float64(time.Millisecond),
			"exit_code":   p.ExitCode,
		},
		at,
	))
}

// WriteDeviceState records a state change in device_state. Only numeric
// and boolean params become fields; a change without any still writes a
// point carrying the mode tag.
func (c *Client) WriteDeviceState(deviceID, mode string, params map[string]any, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	if !c.IsConnected() {
		return
	}

	fields := map[string]any{"changes": 1}
	for k, v := range params {
		switch n := v.(type) {
		case float64, float32, int, int64:
			fields[k] = n
		case bool:
			fields[k] = n
		}
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_id": deviceID,
			"mode":      mode,
		},
		fields,
		at,
	))
}

// NotifyStateChanged records st in device_state. It implements
// device.StateNotifier and never fails; write errors surface through
// SetOnError.
func (c *Client) NotifyStateChanged(_ context.Context, _, deviceID string, st device.State) error {
	c.WriteDeviceState(deviceID, string(st.Mode), st.Params, st.UpdatedAt)
	return nil
}
