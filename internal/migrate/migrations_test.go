package migrate_test

import (
	"testing"

	"taskboard/internal/db"
	"taskboard/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	v1, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v1 < 1 {
		t.Fatalf("schema version after migrate = %d", v1)
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}
	v2, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v2 != v1 {
		t.Fatalf("rerun moved version %d -> %d", v1, v2)
	}

	for _, table := range []string{"users", "tasks", "events", "api_keys"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
