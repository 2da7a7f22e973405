package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StateNotifier is told about every persisted state change.
// Implementations fan the change out to live subscribers.
type StateNotifier interface {
	NotifyStateChanged(ctx context.Context, ownerID, deviceID string, s State) error
}

// StateNotifierFunc adapts a function to StateNotifier.
type StateNotifierFunc func(ctx context.Context, ownerID, deviceID string, s State) error

// NotifyStateChanged implements StateNotifier.
func (f StateNotifierFunc) NotifyStateChanged(ctx context.Context, ownerID, deviceID string, s State) error {
	return f(ctx, ownerID, deviceID, s)
}

// Notifiers fans one change out to several notifiers.
type Notifiers []StateNotifier

// NotifyStateChanged calls every notifier and joins their errors.
func (n Notifiers) NotifyStateChanged(ctx context.Context, ownerID, deviceID string, s State) error {
	var errs []error
	for _, notifier := range n {
		if err := notifier.NotifyStateChanged(ctx, ownerID, deviceID, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StateStore owns the current display state of each device and its history.
//
// Upserts read the current row, merge in memory and write back with one
// upsert statement. Concurrent upserts for the same device are
// last-write-wins.
type StateStore struct {
	repo     StateRepository
	history  StateHistoryRepository
	notifier StateNotifier
	logger   Logger
	now      func() time.Time
}

// NewStateStore creates a state store. history may be nil to disable
// history recording.
func NewStateStore(repo StateRepository, history StateHistoryRepository) *StateStore {
	return &StateStore{
		repo:    repo,
		history: history,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the state store.
func (s *StateStore) SetLogger(logger Logger) {
	s.logger = logger
}

// SetNotifier registers the receiver of state change events.
func (s *StateStore) SetNotifier(n StateNotifier) {
	s.notifier = n
}

// GetState returns the caller's device state.
// Returns ErrDeviceNotFound if not owned, ErrStateNotFound if never set.
func (s *StateStore) GetState(ctx context.Context, ownerID, deviceID string) (*State, error) {
	st, err := s.repo.LoadState(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrStateNotFound
	}
	return st, nil
}

// UpsertState merges patch into the device's params and persists the result.
//
// An empty mode keeps the current mode (rgb when there is none). A mode
// outside rgb, wave, hue is rejected before anything is read or written.
// Keys in patch overwrite existing keys; other keys are kept.
// The history append and change notification are best-effort.
func (s *StateStore) UpsertState(ctx context.Context, ownerID, deviceID string, mode Mode, patch Params, actorID string) (*State, error) {
	if mode != "" && !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	current, err := s.repo.LoadState(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	next := State{
		Mode:      mode,
		UpdatedAt: s.now().UTC(),
		UpdatedBy: actorID,
	}
	var prev Params
	var prevMode Mode
	if current != nil {
		prev = current.Params
		prevMode = current.Mode
	}
	if next.Mode == "" {
		next.Mode = prevMode
	}
	if next.Mode == "" {
		next.Mode = DefaultMode
	}
	next.Params = prev.Merge(patch)

	if err := s.repo.SaveState(ctx, deviceID, next); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, StateHistoryEntry{
		DeviceID:   deviceID,
		PrevMode:   prevMode,
		NextMode:   next.Mode,
		PrevParams: prev,
		NextParams: next.Params,
		ChangedBy:  actorID,
		ChangedAt:  next.UpdatedAt,
	}).Log(s.logger, "device_id", deviceID)

	s.notify(ctx, ownerID, deviceID, next).Log(s.logger, "device_id", deviceID)

	return &next, nil
}

// History returns recent state transitions of one of the caller's devices.
func (s *StateStore) History(ctx context.Context, ownerID, deviceID string, limit int) ([]StateHistoryEntry, error) {
	if _, err := s.repo.LoadState(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []StateHistoryEntry{}, nil
	}
	return s.history.GetHistory(ctx, deviceID, limit)
}

func (s *StateStore) recordHistory(ctx context.Context, entry StateHistoryEntry) BestEffort {
	if s.history == nil {
		return BestEffort{Op: "record state history"}
	}
	return BestEffort{
		Op:  "record state history",
		Err: s.history.RecordStateChange(ctx, entry),
	}
}

func (s *StateStore) notify(ctx context.Context, ownerID, deviceID string, st State) BestEffort {
	if s.notifier == nil {
		return BestEffort{Op: "notify state change"}
	}
	return BestEffort{
		Op:  "notify state change",
		Err: s.notifier.NotifyStateChanged(ctx, ownerID, deviceID, st),
	}
}
