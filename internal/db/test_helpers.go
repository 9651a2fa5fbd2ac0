package db

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

// NewTestDB returns a migrated database in a temp dir with a mock clock and
// cheap password hashing.
func NewTestDB(t testing.TB) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "ghatsafe.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	db.SetClock(clock)
	db.bcryptCost = bcrypt.MinCost
	return db, clock
}
