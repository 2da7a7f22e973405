package control

import (
	"context"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

// Execution describes one finished executor run.
type Execution struct {
	OwnerID    string
	DeviceID   string
	Action     string
	HandlerKey string
	Reason     process.Reason
	ExitCode   int
	Duration   time.Duration
	At         time.Time
}

// Outcome returns "success" or the failure reason.
func (e Execution) Outcome() string {
	if e.Reason == "" {
		return "success"
	}
	return string(e.Reason)
}

// ExecutionRecorder receives every executor run for telemetry.
// Implementations must return promptly.
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, e Execution)
}

// Recorders fans one execution out to several recorders.
type Recorders []ExecutionRecorder

// RecordExecution implements ExecutionRecorder.
func (r Recorders) RecordExecution(ctx context.Context, e Execution) {
	for _, rec := range r {
		rec.RecordExecution(ctx, e)
	}
}

// ExecutionRecorderFunc adapts a function to ExecutionRecorder.
type ExecutionRecorderFunc func(ctx context.Context, e Execution)

// RecordExecution implements ExecutionRecorder.
func (f ExecutionRecorderFunc) RecordExecution(ctx context.Context, e Execution) {
	f(ctx, e)
}
