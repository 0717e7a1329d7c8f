package db

import (
	"context"
	"testing"
)

func TestOpenAppliesMigrations(t *testing.T) {
	d, err := Open("file:dbmig?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	for _, table := range []string{"regions", "users", "drones", "assignments"} {
		var name string
		err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Re-opening the same database must not re-apply migrations.
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("schema_migrations: %v", err)
	}
	if n == 0 {
		t.Fatal("no migrations recorded")
	}
	d2, err := Open("file:dbmig?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d2.Close()
}

// Foreign keys must be enforced on every pooled connection, not just the
// first one opened.
func TestForeignKeysEnforcedOnEveryConnection(t *testing.T) {
	d, err := Open("file:dbfk?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()

	// Pin one connection so the shared in-memory database stays alive,
	// then force the pool to hand out a second one.
	pin, err := d.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer pin.Close()
	second, err := d.Conn(ctx)
	if err != nil {
		t.Fatalf("second conn: %v", err)
	}
	defer second.Close()

	var fk int
	if err := second.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d on second connection", fk)
	}
	_, err = second.ExecContext(ctx,
		`INSERT INTO assignments (id, user_id, drone_id, assigned_at) VALUES ('a1', 'no-such-user', 'no-such-drone', CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Fatal("orphan assignment inserted without error")
	}
}

func TestRollbackLast(t *testing.T) {
	d, err := Open("file:dbrollback?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := RollbackLast(d); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	var name string
	err = d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = 'regions'`).Scan(&name)
	if err == nil {
		t.Fatal("regions table should be dropped after rollback")
	}
}
