package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
)

// Reason classifies why a run did not succeed.
type Reason string

const (
	ReasonExitStatus  Reason = "exit_status"
	ReasonTimedOut    Reason = "timed_out"
	ReasonCanceled    Reason = "canceled"
	ReasonSpawnFailed Reason = "spawn_failed"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultWaitDelay      = 2 * time.Second
	defaultMaxOutputBytes = 64 << 10
)

// Invocation describes one process to run.
type Invocation struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH if not absolute.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format),
	// appended to the parent's environment.
	Env []string

	// WorkDir is the working directory. If empty, inherits from parent process.
	WorkDir string
}

// Result is the outcome of a run.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool

	// Reason is empty on success.
	Reason Reason

	// Err is the underlying error for failed runs.
	Err error
}

// Success reports whether the process exited with status 0.
func (r Result) Success() bool {
	return r.Reason == ""
}

// JSON returns the last non-empty stdout line when it is a JSON object.
func (r Result) JSON() (gjson.Result, bool) {
	return LastJSONLine(r.Stdout)
}

// LastJSONLine finds the last non-empty line of out and parses it with
// gjson when it holds a JSON object.
func LastJSONLine(out string) (gjson.Result, bool) {
	lines := strings.Split(strings.TrimRight(out, "\r\n\t "), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	if line == "" || !gjson.Valid(line) {
		return gjson.Result{}, false
	}
	parsed := gjson.Parse(line)
	if !parsed.IsObject() {
		return gjson.Result{}, false
	}
	return parsed, true
}

// ExecConfig holds limits applied to every run.
type ExecConfig struct {
	// Timeout bounds the lifetime of each process.
	Timeout time.Duration

	// WaitDelay is how long to wait for output pipes to close after the
	// process group has been killed.
	WaitDelay time.Duration

	// MaxOutputBytes caps captured stdout and stderr each. Output beyond
	// the cap is discarded.
	MaxOutputBytes int
}

// Logger defines the logging interface for the runner.
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

// Exec runs child processes with a bounded lifetime.
// It is safe for concurrent use.
type Exec struct {
	config ExecConfig
	logger Logger
}

// NewExec creates a runner, applying defaults for zero values.
func NewExec(cfg ExecConfig) *Exec {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &Exec{config: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (e *Exec) SetLogger(logger Logger) {
	e.logger = logger
}

// Timeout returns the configured per-run timeout.
func (e *Exec) Timeout() time.Duration {
	return e.config.Timeout
}

// Run starts the process, waits for it to exit and returns the outcome.
// Run never returns before the child has exited or been killed.
func (e *Exec) Run(ctx context.Context, inv Invocation) Result {
	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Binary, inv.Args...) //nolint:gosec // Binary comes from operator config, not request input

	// Create a new process group so we can signal all children on timeout
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the whole group created via Setpgid
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = e.config.WaitDelay

	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	if inv.WorkDir != "" {
		cmd.Dir = inv.WorkDir
	}

	stdout := &cappedBuffer{max: e.config.MaxOutputBytes}
	stderr := &cappedBuffer{max: e.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug("running process",
		"name", inv.Name,
		"binary", inv.Binary,
		"args", inv.Args,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.logger.Warn("process spawn failed", "name", inv.Name, "error", err)
		return Result{
			ExitCode: -1,
			Duration: time.Since(start),
			Reason:   ReasonSpawnFailed,
			Err:      fmt.Errorf("starting %s: %w", inv.Name, err),
		}
	}

	waitErr := cmd.Wait()
	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  cmd.ProcessState.ExitCode(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}

	switch {
	case waitErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Reason = ReasonTimedOut
		res.Err = fmt.Errorf("%s timed out after %s", inv.Name, e.config.Timeout)
	case ctx.Err() != nil:
		res.Reason = ReasonCanceled
		res.Err = fmt.Errorf("%s: %w", inv.Name, ctx.Err())
	default:
		res.Reason = ReasonExitStatus
		res.Err = fmt.Errorf("%s: %w", inv.Name, waitErr)
	}

	e.logger.Debug("process exited",
		"name", inv.Name,
		"exit_code", res.ExitCode,
		"reason", res.Reason,
		"duration", res.Duration,
	)
	return res
}

// cappedBuffer keeps the first max bytes written and drops the rest.
// Writes always report full success so the child never sees EPIPE.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
