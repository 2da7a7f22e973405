// Package audit persists the trail of executor runs so owners can review
// which actions ran against their devices and how they ended.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed-width so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one recorded executor run.
type Entry struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	DeviceID   string    `json:"deviceId"`
	Action     string    `json:"action"`
	HandlerKey string    `json:"handlerKey"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exitCode"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Filter controls which entries List returns. OwnerID is mandatory.
type Filter struct {
	OwnerID  string
	DeviceID string // optional
	Action   string // optional
	Outcome  string // optional: success, exit_status, timed_out, canceled, spawn_failed
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// row mirrors the action_audit table.
type row struct {
	ID         string `db:"id"`
	OwnerID    string `db:"owner_id"`
	DeviceID   string `db:"device_id"`
	Action     string `db:"action"`
	HandlerKey string `db:"handler_key"`
	Outcome    string `db:"outcome"`
	ExitCode   int    `db:"exit_code"`
	DurationMS int64  `db:"duration_ms"`
	CreatedAt  string `db:"created_at"`
}

// SQLRepository stores audit entries in SQLite or PostgreSQL.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates an audit repository on db. driver selects the
// placeholder style.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: sqlx.NewDb(db, driver)}
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLRepository) Create(ctx context.Context, e *Entry) error {
	if e.OwnerID == "" || e.DeviceID == "" {
		return fmt.Errorf("audit entry requires owner and device")
	}
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO action_audit (id, owner_id, device_id, action, handler_key, outcome, exit_code, duration_ms, created_at)
		VALUES (:id, :owner_id, :device_id, :action, :handler_key, :outcome, :exit_code, :duration_ms, :created_at)`,
		row{
			ID:         e.ID,
			OwnerID:    e.OwnerID,
			DeviceID:   e.DeviceID,
			Action:     e.Action,
			HandlerKey: e.HandlerKey,
			Outcome:    e.Outcome,
			ExitCode:   e.ExitCode,
			DurationMS: e.DurationMS,
			CreatedAt:  e.CreatedAt.UTC().Format(timeLayout),
		},
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns the owner's entries matching the filter, newest first.
func (r *SQLRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.OwnerID == "" {
		return nil, fmt.Errorf("audit list requires an owner")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"owner_id = ?"}
	args := []any{filter.OwnerID}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM action_audit " + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := r.db.Rebind(
		"SELECT id, owner_id, device_id, action, handler_key, outcome, exit_code, duration_ms, created_at FROM action_audit " +
			where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
	)
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, rw := range rows {
		createdAt, err := parseTime(rw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", rw.CreatedAt, err)
		}
		entries = append(entries, Entry{
			ID:         rw.ID,
			OwnerID:    rw.OwnerID,
			DeviceID:   rw.DeviceID,
			Action:     rw.Action,
			HandlerKey: rw.HandlerKey,
			Outcome:    rw.Outcome,
			ExitCode:   rw.ExitCode,
			DurationMS: rw.DurationMS,
			CreatedAt:  createdAt,
		})
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
