package device

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxNameLength bounds display names in runes.
const maxNameLength = 100

// Logger defines the logging interface used by the device package.
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

// Registry is the owner-scoped catalogue of devices, kinds and pairing codes.
//
// All reads are filtered by owner; a device owned by someone else is
// reported as ErrDeviceNotFound. The Registry holds no mutable state of its
// own and is safe for concurrent use when its repositories are.
type Registry struct {
	repo        Repository
	pairingRepo PairingRepository
	pairing     PairingSettings
	logger      Logger

	now     func() time.Time
	codeGen func(digits int) (string, error)
}

// NewRegistry creates a device registry.
func NewRegistry(repo Repository, pairingRepo PairingRepository, pairing PairingSettings) *Registry {
	if pairing.CodeDigits <= 0 {
		pairing.CodeDigits = DefaultPairingSettings().CodeDigits
	}
	if pairing.DefaultTTL <= 0 {
		pairing.DefaultTTL = DefaultPairingSettings().DefaultTTL
	}
	if pairing.MaxTTL <= 0 {
		pairing.MaxTTL = DefaultPairingSettings().MaxTTL
	}
	return &Registry{
		repo:        repo,
		pairingRepo: pairingRepo,
		pairing:     pairing,
		logger:      noopLogger{},
		now:         time.Now,
		codeGen:     generateCode,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ListKinds returns all device kinds.
func (r *Registry) ListKinds(ctx context.Context) ([]Kind, error) {
	return r.repo.ListKinds(ctx)
}

// ListDevices returns the caller's devices with capabilities, actions and state.
func (r *Registry) ListDevices(ctx context.Context, ownerID string) ([]Device, error) {
	return r.repo.ListByOwner(ctx, ownerID)
}

// GetDevice returns one of the caller's devices.
// Returns ErrDeviceNotFound if it does not exist or belongs to someone else.
func (r *Registry) GetDevice(ctx context.Context, ownerID, deviceID string) (*Device, error) {
	return r.repo.GetForOwner(ctx, ownerID, deviceID)
}

// CreateDevice registers a new device for ownerID. The device starts
// offline and inherits its kind's capabilities and actions.
func (r *Registry) CreateDevice(ctx context.Context, ownerID string, in NewDevice) (*Device, error) {
	kindKey := strings.TrimSpace(in.KindKey)
	name := strings.TrimSpace(in.DisplayName)

	if kindKey == "" {
		return nil, fmt.Errorf("%w: kindKey is required", ErrInvalidDevice)
	}
	if err := validateDisplayName(name); err != nil {
		return nil, err
	}
	if _, err := r.repo.GetKind(ctx, kindKey); err != nil {
		return nil, err
	}

	meta := in.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	d := &Device{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		KindKey:     kindKey,
		DisplayName: name,
		Status:      StatusOffline,
		Meta:        meta,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	r.logger.Info("device created", "device_id", d.ID, "kind", kindKey)
	return r.repo.GetForOwner(ctx, ownerID, d.ID)
}

// TouchSeen records that the device was just heard from. A non-empty
// status replaces the stored one. The result is best-effort.
func (r *Registry) TouchSeen(ctx context.Context, deviceID string, status Status) BestEffort {
	return BestEffort{
		Op:  "touch last_seen",
		Err: r.repo.TouchSeen(ctx, deviceID, status, r.now().UTC()),
	}
}

func validateDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: displayName is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: displayName exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}
