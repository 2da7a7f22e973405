// Package control drives devices: the Dispatcher runs one declared action
// through its executor, and the Reconciler turns a desired display state
// into an ordered sequence of dispatches.
//
// # Dispatch
//
// A dispatch moves linearly through these steps and never retries:
//
//	requested -> ownership verified -> handler resolved -> process spawned
//	  -> succeeded | failed -> state updated (best-effort) -> responded
//
// The call returns only after the child process has exited. lastSeen is
// touched whenever a process ran; status becomes online only on success.
// A failed run is reported as an *ExecutionError carrying the exit code
// and captured output.
//
// # Reconcile
//
// The desired state is always persisted first. Execution then maps mode to
// actions: rgb runs set_brightness (when a brightness is present) followed
// by set_color, wave runs set_brightness then wave, and hue is rejected as
// not implemented. A failure part way through keeps the persisted state.
package control
