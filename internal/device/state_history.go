package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StateHistoryRepository stores and retrieves device state transitions.
//
// History is append-only; entries are never updated.
type StateHistoryRepository interface {
	// RecordStateChange appends one transition. An empty ID is generated.
	RecordStateChange(ctx context.Context, entry StateHistoryEntry) error

	// GetHistory returns the newest entries first. limit is clamped to
	// 1..200 with a default of 50.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}

// SQLStateHistoryRepository implements StateHistoryRepository on database/sql.
type SQLStateHistoryRepository struct {
	db       *sql.DB
	bindType int
}

// NewSQLStateHistoryRepository creates a history repository for an open connection.
func NewSQLStateHistoryRepository(db *sql.DB, driver string) *SQLStateHistoryRepository {
	return &SQLStateHistoryRepository{db: db, bindType: sqlx.BindType(driver)}
}

// RecordStateChange inserts a history row.
func (r *SQLStateHistoryRepository) RecordStateChange(ctx context.Context, entry StateHistoryEntry) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	nextJSON, err := encodeObject(entry.NextParams)
	if err != nil {
		return fmt.Errorf("marshalling next params: %w", err)
	}

	var prevJSON sql.NullString
	if entry.PrevParams != nil {
		b, err := json.Marshal(entry.PrevParams)
		if err != nil {
			return fmt.Errorf("marshalling prev params: %w", err)
		}
		prevJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, sqlx.Rebind(r.bindType, `
		INSERT INTO device_state_history
			(id, device_id, prev_mode, next_mode, prev_params, next_params, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID,
		entry.DeviceID,
		nullableString(string(entry.PrevMode)),
		string(entry.NextMode),
		prevJSON,
		nextJSON,
		nullableString(entry.ChangedBy),
		formatTime(entry.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent transitions for a device, newest first.
func (r *SQLStateHistoryRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(r.bindType, `
		SELECT id, device_id, prev_mode, next_mode, prev_params, next_params, changed_by, changed_at
		FROM device_state_history
		WHERE device_id = ?
		ORDER BY changed_at DESC
		LIMIT ?`),
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var e StateHistoryEntry
		var prevMode, prevParams, changedBy sql.NullString
		var nextMode, nextParams, changedAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &prevMode, &nextMode, &prevParams, &nextParams, &changedBy, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		e.PrevMode = Mode(prevMode.String)
		e.NextMode = Mode(nextMode)
		e.ChangedBy = changedBy.String
		if prevParams.Valid {
			if e.PrevParams, err = decodeObject(prevParams.String); err != nil {
				return nil, fmt.Errorf("unmarshalling prev params: %w", err)
			}
		}
		if e.NextParams, err = decodeObject(nextParams); err != nil {
			return nil, fmt.Errorf("unmarshalling next params: %w", err)
		}
		if e.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, fmt.Errorf("parsing changed_at: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}
