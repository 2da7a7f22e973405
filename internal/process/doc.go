// Package process runs short-lived child processes on behalf of the
// device control pipeline.
//
// Each call to Exec.Run spawns one process, waits for it to exit and
// returns a Result with the captured output, the exit code and, on
// failure, a Reason:
//
//   - exit_status: the process ran and exited non-zero
//   - timed_out: the timeout elapsed and the process group was killed
//   - canceled: the caller's context was cancelled
//   - spawn_failed: the binary could not be started
//
// Children run in their own process group. On timeout the whole group is
// sent SIGKILL, which also reaps helpers the script forked.
//
// Example usage:
//
//	runner := process.NewExec(process.ExecConfig{
//	    Timeout:        10 * time.Second,
//	    MaxOutputBytes: 64 << 10,
//	})
//
//	res := runner.Run(ctx, process.Invocation{
//	    Name:   "led_control",
//	    Binary: "python3",
//	    Args:   []string{"./scripts/led_control.py", "set_color", "255", "0", "0"},
//	    Env:    []string{"LED_PIN=18"},
//	})
//	if !res.Success() {
//	    log.Printf("%s: exit %d", res.Reason, res.ExitCode)
//	}
package process
