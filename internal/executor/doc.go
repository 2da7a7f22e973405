// Package executor turns a declared device action into a child process
// invocation.
//
// It has three parts:
//
//   - Action: a closed set of action values (On, Off, SetColor,
//     SetBrightness, Wave) built from the request by ParseAction.
//   - Args: the pure mapping from an Action to the program's positional
//     arguments, e.g. SetColor{255, 0, 10} -> ["set_color", "255", "0", "10"].
//   - Handlers: a registry from handler-key prefix to a Strategy that
//     builds the full process.Invocation, passing device meta through
//     environment variables only.
//
// Nothing in this package spawns processes; see package process.
package executor
