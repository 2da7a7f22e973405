// Package logging builds the service's structured logger on log/slog.
//
// Every entry carries service=devremote and the build version. Components
// get their own child logger via Component, and attributes named token,
// authorization, cookie, secret, password or dsn are written as
// [REDACTED] at any nesting depth.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Packages below cmd/ take a small Logger interface with a noop default
// and receive *Logger through SetLogger.
package logging
