package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/seattlerb/upnp/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("New(':memory:') error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create things",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE things (id TEXT PRIMARY KEY)")
			return err
		},
	},
}

func TestMigrateApplies(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, "test", testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.DB().ExecContext(ctx, "INSERT INTO things (id) VALUES ('a')"); err != nil {
		t.Fatalf("insert after migration: %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, "test", testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run must skip the already-applied version.
	if err := db.Migrate(ctx, "test", testMigrations); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, "test", testMigrations); err != nil {
		t.Fatal(err)
	}

	wantErr := sql.ErrNoRows
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO things (id) VALUES ('gone')"); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Tx() error = %v, want %v", err, wantErr)
	}

	var count int
	if err := db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM things").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}
