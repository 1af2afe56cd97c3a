// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/xcdr/lib/sqlitepool"
)

const createNumbers = `CREATE TABLE numbers (value INTEGER NOT NULL);`

const seedNumbers = `INSERT INTO numbers (value) VALUES (1), (2), (3), (4), (5);`

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "pragmas.db"), nil)

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var journalMode string
	err = sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			journalMode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}
}

func TestMigrationsAdvanceUserVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	pool := openTestPool(t, path, []string{createNumbers, seedNumbers})

	version, err := pool.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 {
		t.Fatalf("SchemaVersion() = %d, want 2", version)
	}
	if sum := sumNumbers(t, pool); sum != 15 {
		t.Fatalf("sum = %d, want 15", sum)
	}
}

func TestMigrationsRunOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "once.db")
	migrations := []string{createNumbers, seedNumbers}

	first, err := sqlitepool.Open(context.Background(), sqlitepool.Config{Path: path, Migrations: migrations})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening must not seed twice; a third migration is appended.
	migrations = append(migrations, `INSERT INTO numbers (value) VALUES (100);`)
	second := openTestPool(t, path, migrations)
	if sum := sumNumbers(t, second); sum != 115 {
		t.Fatalf("sum = %d, want 115", sum)
	}
}

func TestNewerSchemaRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newer.db")
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		Migrations: []string{createNumbers, seedNumbers},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pool.Close()

	_, err = sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		Migrations: []string{createNumbers},
	})
	if !errors.Is(err, sqlitepool.ErrSchemaTooNew) {
		t.Fatalf("Open with fewer migrations: got %v, want ErrSchemaTooNew", err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")
	_, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		Migrations: []string{createNumbers, `INSERT INTO missing_table VALUES (1);`},
	})
	if err == nil {
		t.Fatal("Open succeeded with a broken migration")
	}

	pool := openTestPool(t, path, nil)
	version, err := pool.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 0 {
		t.Fatalf("SchemaVersion() after rollback = %d, want 0", version)
	}
}

func TestConcurrentReads(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "reads.db"), []string{createNumbers, seedNumbers})

	const goroutineCount = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, goroutineCount)
	for range goroutineCount {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			conn, err := pool.Take(context.Background())
			if err != nil {
				failures <- err
				return
			}
			defer pool.Put(conn)
			var count int
			err = sqlitex.Execute(conn, "SELECT count(*) FROM numbers", &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = stmt.ColumnInt(0)
					return nil
				},
			})
			if err != nil {
				failures <- err
				return
			}
			if count != 5 {
				failures <- fmt.Errorf("count = %d, want 5", count)
			}
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(context.Background(), sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestTakeCancelled(t *testing.T) {
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take with a cancelled context succeeded")
	}
}

func sumNumbers(t *testing.T, pool *sqlitepool.Pool) int64 {
	t.Helper()
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	var sum int64
	err = sqlitex.Execute(conn, "SELECT value FROM numbers", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			sum += stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	return sum
}

func openTestPool(t *testing.T, path string, migrations []string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		PoolSize:   4,
		Migrations: migrations,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
