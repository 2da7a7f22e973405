package device

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
	_ "github.com/onur02004/MainRoadmap-sub000/migrations" // registers embedded schema
)

const (
	ownerA = "user-a"
	ownerB = "user-b"
)

// setupTestDB opens a fresh SQLite file with the full schema and seed data.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db := setupTestDB(t)
	return NewSQLRepository(db.DB, db.Driver())
}

// createLEDStrip inserts an LED strip owned by owner and returns its ID.
func createLEDStrip(t *testing.T, repo *SQLRepository, id, owner string) string {
	t.Helper()

	d := &Device{
		ID:          id,
		OwnerID:     owner,
		KindKey:     "led_strip",
		DisplayName: "Desk strip " + id,
		Meta:        map[string]any{"pin": float64(18), "pixels": float64(60)},
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return id
}

// fixedClock returns a settable clock for deterministic expiry tests.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// recordingLogger captures warnings so best-effort failures can be asserted.
type recordingLogger struct {
	noopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}
