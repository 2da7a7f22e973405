package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device does not exist or is not
	// owned by the caller. Callers cannot tell the two cases apart.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrStateNotFound is returned when an owned device has no stored state yet.
	ErrStateNotFound = errors.New("device: state not found")

	// ErrInvalidDevice is returned when device input validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a display name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrUnknownKind is returned when a kind key is not registered.
	ErrUnknownKind = errors.New("device: unknown kind")

	// ErrInvalidMode is returned when a mode is outside rgb, wave, hue.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrInvalidParams is returned when a params document is not a JSON object.
	ErrInvalidParams = errors.New("device: invalid params")

	// ErrForbidden is returned when the caller may not act on a device
	// they do not own (pairing code issuance).
	ErrForbidden = errors.New("device: forbidden")

	// ErrInvalidOrExpired is returned when a pairing code is unknown,
	// already used or past its expiry.
	ErrInvalidOrExpired = errors.New("device: invalid or expired pairing code")

	// ErrCodeCollision is returned by repositories when a generated pairing
	// code clashes with another live code. Callers retry with a new code.
	ErrCodeCollision = errors.New("device: pairing code collision")
)
