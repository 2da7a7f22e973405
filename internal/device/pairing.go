package device

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxCodeAttempts bounds regeneration when a code collides with a live one.
const maxCodeAttempts = 8

// PairingSettings controls code generation.
type PairingSettings struct {
	CodeDigits int
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// DefaultPairingSettings matches the stock configuration.
func DefaultPairingSettings() PairingSettings {
	return PairingSettings{
		CodeDigits: 6,
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     24 * time.Hour,
	}
}

// ttl resolves a requested TTL in seconds: non-positive means default,
// anything above the maximum is clamped.
func (s PairingSettings) ttl(seconds int) time.Duration {
	if seconds <= 0 {
		return s.DefaultTTL
	}
	// Compare in seconds; converting first overflows for huge requests.
	if s.MaxTTL > 0 && int64(seconds) > int64(s.MaxTTL/time.Second) {
		return s.MaxTTL
	}
	return time.Duration(seconds) * time.Second
}

// generateCode returns a uniformly random numeric code of the given
// length without a leading zero.
func generateCode(digits int) (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("reading random code: %w", err)
	}
	return n.Add(n, low).String(), nil
}

// CreatePairingCode issues a code for deviceID. Only the owner may issue codes.
func (r *Registry) CreatePairingCode(ctx context.Context, ownerID, deviceID string, ttlSeconds int) (*PairingCode, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: deviceId is required", ErrInvalidDevice)
	}

	owned, err := r.repo.IsOwner(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrForbidden
	}

	now := r.now().UTC()
	expiresAt := now.Add(r.pairing.ttl(ttlSeconds))

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.codeGen(r.pairing.CodeDigits)
		if err != nil {
			return nil, err
		}

		pc := &PairingCode{
			ID:        uuid.NewString(),
			Code:      code,
			DeviceID:  deviceID,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		err = r.pairingRepo.CreatePairingCode(ctx, pc)
		if errors.Is(err, ErrCodeCollision) {
			r.logger.Debug("pairing code collision, regenerating", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		r.logger.Info("pairing code issued", "device_id", deviceID, "expires_at", expiresAt)
		return pc, nil
	}

	return nil, fmt.Errorf("generating pairing code: %w", ErrCodeCollision)
}

// ClaimPairingCode consumes a live code and returns the paired device ID.
// The code is usable exactly once, even under concurrent claims.
func (r *Registry) ClaimPairingCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidOrExpired
	}

	deviceID, err := r.pairingRepo.ClaimPairingCode(ctx, code, r.now().UTC())
	if err != nil {
		return "", err
	}

	r.logger.Info("pairing code claimed", "device_id", deviceID)
	return deviceID, nil
}

// CreatePairingCode inserts a code unless a live duplicate exists.
func (r *SQLRepository) CreatePairingCode(ctx context.Context, pc *PairingCode) error {
	now := formatTime(pc.CreatedAt)

	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO pairing_codes (id, code, device_id, expires_at, used, created_at)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), 0, CAST(? AS TEXT)
		WHERE NOT EXISTS (
			SELECT 1 FROM pairing_codes WHERE code = ? AND used = 0 AND expires_at > ?
		)`),
		pc.ID, pc.Code, pc.DeviceID, formatTime(pc.ExpiresAt), now,
		pc.Code, now,
	)
	if err != nil {
		return fmt.Errorf("inserting pairing code: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrCodeCollision
	}
	return nil
}

// ClaimPairingCode marks the newest live matching code used with a single
// conditional UPDATE, so two concurrent claims cannot both succeed.
func (r *SQLRepository) ClaimPairingCode(ctx context.Context, code string, now time.Time) (string, error) {
	ts := formatTime(now)

	var deviceID string
	err := r.db.QueryRowContext(ctx, r.rebind(`
		UPDATE pairing_codes SET used = 1
		WHERE id = (
			SELECT id FROM pairing_codes
			WHERE code = ? AND used = 0 AND expires_at > ?
			ORDER BY created_at DESC
			LIMIT 1
		) AND used = 0
		RETURNING device_id`),
		code, ts,
	).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidOrExpired
		}
		return "", fmt.Errorf("claiming pairing code: %w", err)
	}
	return deviceID, nil
}
