package control

import (
	"errors"
	"fmt"

	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

// ErrExecutionFailed matches every *ExecutionError via errors.Is.
var ErrExecutionFailed = errors.New("control: execution failed")

// ExecutionError reports an executor run that did not exit cleanly.
type ExecutionError struct {
	DeviceID string
	Action   string
	Reason   process.Reason
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("control: %s on %s failed (%s, exit %d)", e.Action, e.DeviceID, e.Reason, e.ExitCode)
}

// Is reports ErrExecutionFailed as a match.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
