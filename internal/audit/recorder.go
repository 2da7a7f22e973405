package audit

import (
	"context"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/control"
)

const (
	// defaultBufferSize is the queue length used when NewRecorder gets a
	// non-positive size. Entries beyond it are dropped.
	defaultBufferSize = 256

	// writeTimeout bounds a single audit insert.
	writeTimeout = 2 * time.Second
)

// Logger defines the logging interface used by the audit package.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues executor runs and writes them to a Repository from a
// single goroutine. It implements control.ExecutionRecorder.
//
// RecordExecution never waits on the database: when the queue is full the
// entry is dropped and a warning is logged. Run must be started for
// anything to be written.
type Recorder struct {
	repo   Repository
	logger Logger
	ch     chan *Entry
}

// NewRecorder creates a recorder backed by repo with a queue of bufferSize
// entries.
func NewRecorder(repo Repository, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Recorder{
		repo:   repo,
		logger: noopLogger{},
		ch:     make(chan *Entry, bufferSize),
	}
}

// SetLogger sets the logger used for dropped and failed writes.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// RecordExecution enqueues e for writing.
func (r *Recorder) RecordExecution(_ context.Context, e control.Execution) {
	entry := &Entry{
		OwnerID:    e.OwnerID,
		DeviceID:   e.DeviceID,
		Action:     e.Action,
		HandlerKey: e.HandlerKey,
		Outcome:    e.Outcome(),
		ExitCode:   e.ExitCode,
		DurationMS: e.Duration.Milliseconds(),
		CreatedAt:  e.At,
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"device_id", e.DeviceID,
			"action", e.Action,
		)
	}
}

// Run writes queued entries serially until ctx is cancelled, then drains
// what is left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			"device_id", entry.DeviceID,
			"action", entry.Action,
			"error", err,
		)
	}
}
