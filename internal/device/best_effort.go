package device

// BestEffort is the outcome of a side effect that must never fail the
// operation that triggered it, such as a history append or a lastSeen
// touch. Callers hand it to Log instead of inspecting the error.
type BestEffort struct {
	Op  string
	Err error
}

// OK reports whether the side effect succeeded.
func (b BestEffort) OK() bool {
	return b.Err == nil
}

// Log writes a warning when the side effect failed. args are appended
// to the log entry as key-value pairs.
func (b BestEffort) Log(logger Logger, args ...any) {
	if b.Err == nil || logger == nil {
		return
	}
	logger.Warn(b.Op+" failed", append(args, "error", b.Err)...)
}
