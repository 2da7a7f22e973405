package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines device persistence operations.
//
// Every read that takes an ownerID filters by it in SQL; a device owned by
// someone else is reported exactly like a missing one (ErrDeviceNotFound).
type Repository interface {
	// ListKinds returns all device kinds ordered by label.
	ListKinds(ctx context.Context) ([]Kind, error)

	// GetKind returns one kind. Returns ErrUnknownKind if absent.
	GetKind(ctx context.Context, key string) (*Kind, error)

	// ListByOwner returns the owner's devices with capabilities, actions
	// and state attached.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// GetForOwner returns one enriched device.
	GetForOwner(ctx context.Context, ownerID, deviceID string) (*Device, error)

	// Create inserts a device and copies its kind's capability and action
	// templates in a single transaction.
	Create(ctx context.Context, d *Device) error

	// LookupAction resolves a declared action of an owned device in one query.
	LookupAction(ctx context.Context, ownerID, deviceID, action string) (*ActionTarget, error)

	// IsOwner reports whether the device exists and belongs to ownerID.
	IsOwner(ctx context.Context, ownerID, deviceID string) (bool, error)

	// TouchSeen records lastSeen and, when status is non-empty, the status.
	TouchSeen(ctx context.Context, deviceID string, status Status, at time.Time) error
}

// StateRepository persists current device state.
type StateRepository interface {
	// LoadState returns the stored state of an owned device, or nil when
	// the device has none yet. Returns ErrDeviceNotFound if not owned.
	LoadState(ctx context.Context, ownerID, deviceID string) (*State, error)

	// SaveState writes the full state row with a single upsert.
	SaveState(ctx context.Context, deviceID string, s State) error
}

// PairingRepository persists pairing codes.
type PairingRepository interface {
	// CreatePairingCode stores a new code. Returns ErrCodeCollision when a
	// live, unused code with the same digits already exists.
	CreatePairingCode(ctx context.Context, pc *PairingCode) error

	// ClaimPairingCode atomically marks a live code used and returns its
	// device ID. Returns ErrInvalidOrExpired when no live code matches.
	ClaimPairingCode(ctx context.Context, code string, now time.Time) (string, error)
}

// SQLRepository implements Repository, StateRepository and
// PairingRepository on database/sql. Queries are written with ?
// placeholders and rebound for the connection's driver.
type SQLRepository struct {
	db       *sql.DB
	bindType int
}

// NewSQLRepository creates a repository for an open connection.
// driver is the name the connection was opened with ("sqlite3", "postgres").
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: db, bindType: sqlx.BindType(driver)}
}

func (r *SQLRepository) rebind(query string) string {
	return sqlx.Rebind(r.bindType, query)
}

// ListKinds returns all device kinds ordered by label.
func (r *SQLRepository) ListKinds(ctx context.Context) ([]Kind, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, label, is_smart FROM device_kinds ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("querying device kinds: %w", err)
	}
	defer rows.Close()

	kinds := []Kind{}
	for rows.Next() {
		var k Kind
		var isSmart int64
		if err := rows.Scan(&k.Key, &k.Label, &isSmart); err != nil {
			return nil, fmt.Errorf("scanning device kind: %w", err)
		}
		k.IsSmart = isSmart != 0
		kinds = append(kinds, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device kinds: %w", err)
	}
	return kinds, nil
}

// GetKind returns one kind by key.
func (r *SQLRepository) GetKind(ctx context.Context, key string) (*Kind, error) {
	var k Kind
	var isSmart int64
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT key, label, is_smart FROM device_kinds WHERE key = ?"), key,
	).Scan(&k.Key, &k.Label, &isSmart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownKind
		}
		return nil, fmt.Errorf("querying device kind: %w", err)
	}
	k.IsSmart = isSmart != 0
	return &k, nil
}

const deviceColumns = `
	d.id, d.owner_id, d.kind_key, k.label, k.is_smart, d.display_name,
	d.status, d.last_seen, d.meta, d.created_at,
	s.mode, s.params, s.updated_at, s.updated_by`

const deviceFrom = `
	FROM devices d
	JOIN device_kinds k ON k.key = d.kind_key
	LEFT JOIN device_state s ON s.device_id = d.id`

// ListByOwner returns the owner's devices, newest first.
//
// Enrichment uses one query per relation for the whole owner, grouped
// in memory, so the number of queries does not grow with the device count.
func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	return r.loadDevices(ctx, "d.owner_id = ?", ownerID)
}

// GetForOwner returns one enriched device.
func (r *SQLRepository) GetForOwner(ctx context.Context, ownerID, deviceID string) (*Device, error) {
	devices, err := r.loadDevices(ctx, "d.owner_id = ? AND d.id = ?", ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return &devices[0], nil
}

// loadDevices runs the device query plus the capability and action
// queries under the same filter and stitches the results together.
func (r *SQLRepository) loadDevices(ctx context.Context, where string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind("SELECT"+deviceColumns+deviceFrom+" WHERE "+where+" ORDER BY d.created_at DESC, d.id"),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}

	devices := []Device{}
	index := make(map[string]int)
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		index[d.ID] = len(devices)
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	rows.Close()

	if len(devices) == 0 {
		return devices, nil
	}

	if err := r.attachCapabilities(ctx, devices, index, where, args); err != nil {
		return nil, err
	}
	if err := r.attachActions(ctx, devices, index, where, args); err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *SQLRepository) attachCapabilities(ctx context.Context, devices []Device, index map[string]int, where string, args []any) error {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT c.device_id, c.capability
			FROM device_capabilities c
			JOIN devices d ON d.id = c.device_id
			WHERE `+where+`
			ORDER BY c.capability`),
		args...,
	)
	if err != nil {
		return fmt.Errorf("querying capabilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID, capability string
		if err := rows.Scan(&deviceID, &capability); err != nil {
			return fmt.Errorf("scanning capability: %w", err)
		}
		if i, ok := index[deviceID]; ok {
			devices[i].Capabilities = append(devices[i].Capabilities, capability)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating capabilities: %w", err)
	}
	return nil
}

func (r *SQLRepository) attachActions(ctx context.Context, devices []Device, index map[string]int, where string, args []any) error {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT a.device_id, a.action, a.handler_key, a.param_schema
			FROM device_actions a
			JOIN devices d ON d.id = a.device_id
			WHERE `+where+`
			ORDER BY a.action`),
		args...,
	)
	if err != nil {
		return fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID, schemaJSON string
		var a ActionDecl
		if err := rows.Scan(&deviceID, &a.Action, &a.HandlerKey, &schemaJSON); err != nil {
			return fmt.Errorf("scanning action: %w", err)
		}
		if a.ParamSchema, err = decodeObject(schemaJSON); err != nil {
			return fmt.Errorf("unmarshalling param_schema: %w", err)
		}
		if i, ok := index[deviceID]; ok {
			devices[i].Actions = append(devices[i].Actions, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating actions: %w", err)
	}
	return nil
}

// Create inserts a new device and its kind templates.
func (r *SQLRepository) Create(ctx context.Context, d *Device) error {
	metaJSON, err := encodeObject(d.Meta)
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = StatusOffline
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var exists int
	err = tx.QueryRowContext(ctx, r.rebind("SELECT 1 FROM device_kinds WHERE key = ?"), d.KindKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("checking device kind: %w", err)
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO devices (id, owner_id, kind_key, display_name, status, last_seen, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID,
		d.OwnerID,
		d.KindKey,
		d.DisplayName,
		string(d.Status),
		nullableTime(d.LastSeen),
		metaJSON,
		formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO device_capabilities (device_id, capability)
		SELECT CAST(? AS TEXT), capability FROM device_kind_capabilities WHERE kind_key = ?`),
		d.ID, d.KindKey,
	); err != nil {
		return fmt.Errorf("copying capabilities: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO device_actions (device_id, action, handler_key, param_schema)
		SELECT CAST(? AS TEXT), action, handler_key, param_schema FROM device_kind_actions WHERE kind_key = ?`),
		d.ID, d.KindKey,
	); err != nil {
		return fmt.Errorf("copying actions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}
	return nil
}

// LookupAction resolves ownership and action declaration in one join.
// Returns ErrDeviceNotFound for a missing device, a foreign device and
// an undeclared action alike.
func (r *SQLRepository) LookupAction(ctx context.Context, ownerID, deviceID, action string) (*ActionTarget, error) {
	var t ActionTarget
	var metaJSON, schemaJSON string

	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT d.id, d.owner_id, d.meta, a.action, a.handler_key, a.param_schema
		FROM devices d
		JOIN device_actions a ON a.device_id = d.id
		WHERE d.id = ? AND d.owner_id = ? AND a.action = ?`),
		deviceID, ownerID, action,
	).Scan(&t.DeviceID, &t.OwnerID, &metaJSON, &t.Action, &t.HandlerKey, &schemaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("looking up action: %w", err)
	}

	if t.Meta, err = decodeObject(metaJSON); err != nil {
		return nil, fmt.Errorf("unmarshalling meta: %w", err)
	}
	if t.ParamSchema, err = decodeObject(schemaJSON); err != nil {
		return nil, fmt.Errorf("unmarshalling param_schema: %w", err)
	}
	return &t, nil
}

// IsOwner reports whether deviceID exists and belongs to ownerID.
func (r *SQLRepository) IsOwner(ctx context.Context, ownerID, deviceID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT 1 FROM devices WHERE id = ? AND owner_id = ?"), deviceID, ownerID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking device owner: %w", err)
	}
	return true, nil
}

// TouchSeen updates last_seen and optionally status.
func (r *SQLRepository) TouchSeen(ctx context.Context, deviceID string, status Status, at time.Time) error {
	var (
		res sql.Result
		err error
	)
	if status == "" {
		res, err = r.db.ExecContext(ctx,
			r.rebind("UPDATE devices SET last_seen = ? WHERE id = ?"),
			formatTime(at), deviceID,
		)
	} else {
		res, err = r.db.ExecContext(ctx,
			r.rebind("UPDATE devices SET last_seen = ?, status = ? WHERE id = ?"),
			formatTime(at), string(status), deviceID,
		)
	}
	if err != nil {
		return fmt.Errorf("updating last_seen: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// LoadState returns the stored state of an owned device.
func (r *SQLRepository) LoadState(ctx context.Context, ownerID, deviceID string) (*State, error) {
	var mode, params, updatedAt, updatedBy sql.NullString
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT s.mode, s.params, s.updated_at, s.updated_by
		FROM devices d
		LEFT JOIN device_state s ON s.device_id = d.id
		WHERE d.id = ? AND d.owner_id = ?`),
		deviceID, ownerID,
	).Scan(&mode, &params, &updatedAt, &updatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device state: %w", err)
	}
	return buildState(mode, params, updatedAt, updatedBy)
}

// SaveState upserts the state row.
func (r *SQLRepository) SaveState(ctx context.Context, deviceID string, s State) error {
	paramsJSON, err := encodeObject(s.Params)
	if err != nil {
		return fmt.Errorf("marshalling params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO device_state (device_id, mode, params, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			mode = excluded.mode,
			params = excluded.params,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`),
		deviceID,
		string(s.Mode),
		paramsJSON,
		formatTime(s.UpdatedAt),
		nullableString(s.UpdatedBy),
	)
	if err != nil {
		return fmt.Errorf("upserting device state: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans deviceColumns into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var isSmart int64
	var status, metaJSON, createdAt string
	var lastSeen sql.NullString
	var mode, params, updatedAt, updatedBy sql.NullString

	err := scanner.Scan(
		&d.ID,
		&d.OwnerID,
		&d.KindKey,
		&d.KindLabel,
		&isSmart,
		&d.DisplayName,
		&status,
		&lastSeen,
		&metaJSON,
		&createdAt,
		&mode,
		&params,
		&updatedAt,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}

	d.IsSmart = isSmart != 0
	d.Status = Status(status)
	d.Capabilities = []string{}
	d.Actions = []ActionDecl{}

	if lastSeen.Valid {
		if t, err := parseTime(lastSeen.String); err == nil {
			d.LastSeen = &t
		}
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.Meta, err = decodeObject(metaJSON); err != nil {
		return nil, fmt.Errorf("unmarshalling meta: %w", err)
	}
	if d.State, err = buildState(mode, params, updatedAt, updatedBy); err != nil {
		return nil, err
	}
	return &d, nil
}

// buildState assembles a State from LEFT JOINed columns; nil when absent.
func buildState(mode, params, updatedAt, updatedBy sql.NullString) (*State, error) {
	if !mode.Valid {
		return nil, nil
	}

	s := &State{Mode: Mode(mode.String), UpdatedBy: updatedBy.String}
	obj, err := decodeObject(params.String)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling state params: %w", err)
	}
	s.Params = obj
	if updatedAt.Valid {
		if s.UpdatedAt, err = parseTime(updatedAt.String); err != nil {
			return nil, fmt.Errorf("parsing state updated_at: %w", err)
		}
	}
	return s, nil
}

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

// encodeObject marshals a JSON object column; nil becomes "{}".
func encodeObject[M ~map[string]any](m M) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeObject unmarshals a JSON object column; empty becomes an empty map.
func decodeObject(s string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// nullableString returns a sql.NullString, NULL for the empty string.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
