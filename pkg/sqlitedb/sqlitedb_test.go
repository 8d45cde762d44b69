package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(path, `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v BLOB)`)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='kv'`).Scan(&name); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
}

func TestOpenBadSchema(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "bad.db"), `CREATE TABLE nonsense (`)
	if err == nil {
		t.Fatal("expected migrate error")
	}
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pool.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	var conns []*sql.Conn
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < 3; i++ {
		c, err := db.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)

		var timeout int
		if err := c.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&timeout); err != nil {
			t.Fatal(err)
		}
		if timeout != 5000 {
			t.Errorf("connection %d: busy_timeout = %d, want 5000", i, timeout)
		}
		var mode string
		if err := c.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
			t.Fatal(err)
		}
		if mode != "wal" {
			t.Errorf("connection %d: journal_mode = %q, want wal", i, mode)
		}
	}
}

func TestConcurrentWritersShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	var handles []*sql.DB
	for _, table := range []string{"a", "b", "c"} {
		db, err := Open(path, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT)`, table))
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		handles = append(handles, db)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40*20)
	for g := 0; g < 40; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			db := handles[g%len(handles)]
			table := []string{"a", "b", "c"}[g%len(handles)]
			for i := 0; i < 20; i++ {
				if _, err := db.Exec(fmt.Sprintf(`INSERT INTO %s (v) VALUES (?)`, table), "x"); err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	var total int
	for _, table := range []string{"a", "b", "c"} {
		var n int
		if err := handles[0].QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		total += n
	}
	if total != 40*20 {
		t.Errorf("expected %d rows, got %d", 40*20, total)
	}
}
