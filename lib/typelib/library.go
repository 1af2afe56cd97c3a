// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/xcdr/lib/sqlitepool"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

var (
	// ErrNotFound is returned when no object or name is stored under
	// the requested key.
	ErrNotFound = errors.New("typelib: not found")

	// ErrCorrupt is returned when a stored payload fails its checksum.
	ErrCorrupt = errors.New("typelib: stored payload is corrupt")
)

var migrations = []string{
	`CREATE TABLE type_objects (
		identifier  BLOB    NOT NULL PRIMARY KEY,
		equivalence INTEGER NOT NULL,
		kind        INTEGER NOT NULL,
		name        TEXT    NOT NULL,
		compression INTEGER NOT NULL,
		size        INTEGER NOT NULL,
		checksum    BLOB    NOT NULL,
		payload     BLOB    NOT NULL
	) WITHOUT ROWID;`,

	`CREATE TABLE type_names (
		name     TEXT NOT NULL PRIMARY KEY,
		minimal  BLOB NOT NULL,
		complete BLOB NOT NULL
	) WITHOUT ROWID;
	CREATE INDEX type_objects_by_name ON type_objects (name);`,
}

var _ typeresolve.Fetcher = (*Library)(nil)

// Config holds the parameters for opening a Library. Path is required.
type Config struct {
	Path     string
	PoolSize int

	// Compression applies to new payloads. The zero value is
	// CompressionNone; use CompressionAuto to choose per payload.
	Compression Compression

	// Logger receives storage events. Nil discards them.
	Logger *slog.Logger
}

// Library is a persistent TypeObject store. It is safe for concurrent
// use.
type Library struct {
	pool        *sqlitepool.Pool
	compression Compression
	logger      *slog.Logger
}

// Open opens or creates the library database.
func Open(ctx context.Context, cfg Config) (*Library, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("typelib: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       cfg.Path,
		PoolSize:   cfg.PoolSize,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("typelib: %w", err)
	}
	return &Library{pool: pool, compression: cfg.Compression, logger: logger}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.pool.Close()
}

// Put stores object under id. Storing an identifier that is already
// present is a no-op.
func (l *Library) Put(ctx context.Context, id xtypes.TypeIdentifier, object xtypes.TypeObject) error {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer l.pool.Put(conn)
	_, err = l.put(conn, id, object)
	return err
}

// PutMapping stores every pair of mapping in one transaction and
// returns how many were new.
func (l *Library) PutMapping(ctx context.Context, mapping xtypes.TypeMapping) (added int, err error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer l.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("typelib: starting transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, pairs := range [][]xtypes.TypeIdentifierTypeObjectPair{mapping.Minimal, mapping.Complete} {
		for _, pair := range pairs {
			stored, err := l.put(conn, pair.ID, pair.Object)
			if err != nil {
				return 0, err
			}
			if stored {
				added++
			}
		}
	}
	l.logger.Info("type mapping stored",
		"pairs", len(mapping.Minimal)+len(mapping.Complete),
		"added", added,
	)
	return added, nil
}

// PutTypeHash stores both objects of a named type and records its
// identifiers under its qualified name, replacing any earlier record
// for that name.
func (l *Library) PutTypeHash(ctx context.Context, hash *xtypes.TypeHash) (err error) {
	minimalBytes, err := xtypes.MarshalTypeIdentifier(hash.MinimalID)
	if err != nil {
		return fmt.Errorf("typelib: %w", err)
	}
	completeBytes, err := xtypes.MarshalTypeIdentifier(hash.CompleteID)
	if err != nil {
		return fmt.Errorf("typelib: %w", err)
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer l.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("typelib: starting transaction: %w", err)
	}
	defer endTransaction(&err)

	if _, err := l.put(conn, hash.MinimalID, hash.Minimal); err != nil {
		return err
	}
	if _, err := l.put(conn, hash.CompleteID, hash.Complete); err != nil {
		return err
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO type_names (name, minimal, complete) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET minimal = excluded.minimal, complete = excluded.complete`,
		&sqlitex.ExecOptions{Args: []any{hash.Name, minimalBytes, completeBytes}})
	if err != nil {
		return fmt.Errorf("typelib: recording %s: %w", hash.Name, err)
	}
	return nil
}

// put verifies and inserts one object. It reports whether a row was
// added.
func (l *Library) put(conn *sqlite.Conn, id xtypes.TypeIdentifier, object xtypes.TypeObject) (bool, error) {
	if !id.IsHashed() {
		return false, fmt.Errorf("typelib: %s does not refer to a type object", id)
	}
	if id.EquivalenceKind() != object.Equivalence {
		return false, fmt.Errorf("typelib: %s identifies a %s object, got %s", id, id.EquivalenceKind(), object.Equivalence)
	}
	key, err := xtypes.MarshalTypeIdentifier(id)
	if err != nil {
		return false, fmt.Errorf("typelib: %w", err)
	}
	payload, err := xtypes.MarshalTypeObject(object)
	if err != nil {
		return false, fmt.Errorf("typelib: %w", err)
	}
	// Component members hash as a group and cannot be checked alone.
	if id.Kind != xtypes.IdentifierStronglyConnectedComponent && xtypes.HashOf(payload) != id.Hash {
		return false, fmt.Errorf("%w: %s does not match its object", xtypes.ErrMalformedTypeIdentifier, id)
	}

	checksum := checksumOf(payload)
	stored, compression, err := compress(payload, l.compression)
	if err != nil {
		return false, err
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO type_objects (identifier, equivalence, kind, name, compression, size, checksum, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (identifier) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{
			key,
			int64(object.Equivalence),
			int64(object.Kind),
			object.Name,
			int64(compression),
			len(payload),
			checksum[:],
			stored,
		}})
	if err != nil {
		return false, fmt.Errorf("typelib: storing %s: %w", id, err)
	}
	return conn.Changes() > 0, nil
}

// Get returns the object stored under id.
func (l *Library) Get(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error) {
	key, err := xtypes.MarshalTypeIdentifier(id)
	if err != nil {
		return xtypes.TypeObject{}, fmt.Errorf("typelib: %w", err)
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return xtypes.TypeObject{}, err
	}
	defer l.pool.Put(conn)

	var (
		found       bool
		compression Compression
		size        int
		checksum    Checksum
		stored      []byte
	)
	err = sqlitex.Execute(conn,
		`SELECT compression, size, checksum, payload FROM type_objects WHERE identifier = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				compression = Compression(stmt.ColumnInt64(0))
				size = stmt.ColumnInt(1)
				stmt.ColumnBytes(2, checksum[:])
				stored = make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, stored)
				return nil
			},
		})
	if err != nil {
		return xtypes.TypeObject{}, fmt.Errorf("typelib: reading %s: %w", id, err)
	}
	if !found {
		return xtypes.TypeObject{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	payload, err := decompress(stored, compression, size)
	if err != nil {
		return xtypes.TypeObject{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, id, err)
	}
	if checksumOf(payload) != checksum {
		l.logger.Warn("type object checksum mismatch", "type_identifier", id.String())
		return xtypes.TypeObject{}, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, id)
	}
	object, err := xtypes.UnmarshalTypeObject(payload)
	if err != nil {
		return xtypes.TypeObject{}, fmt.Errorf("typelib: decoding %s: %w", id, err)
	}
	return object, nil
}

// Fetch is Get; it lets a Library serve a typeresolve.Resolver.
func (l *Library) Fetch(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error) {
	return l.Get(ctx, id)
}

// Identifiers returns the identifiers recorded for a qualified name.
func (l *Library) Identifiers(ctx context.Context, name string) (minimal, complete xtypes.TypeIdentifier, err error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return minimal, complete, err
	}
	defer l.pool.Put(conn)

	var minimalBytes, completeBytes []byte
	err = sqlitex.Execute(conn,
		`SELECT minimal, complete FROM type_names WHERE name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				minimalBytes = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, minimalBytes)
				completeBytes = make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, completeBytes)
				return nil
			},
		})
	if err != nil {
		return minimal, complete, fmt.Errorf("typelib: reading %s: %w", name, err)
	}
	if minimalBytes == nil {
		return minimal, complete, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if minimal, err = xtypes.UnmarshalTypeIdentifier(minimalBytes); err != nil {
		return minimal, complete, fmt.Errorf("typelib: decoding %s: %w", name, err)
	}
	if complete, err = xtypes.UnmarshalTypeIdentifier(completeBytes); err != nil {
		return minimal, complete, fmt.Errorf("typelib: decoding %s: %w", name, err)
	}
	return minimal, complete, nil
}

// Stats summarizes the library contents.
type Stats struct {
	Objects      int64
	Names        int64
	PayloadBytes int64
	StoredBytes  int64
}

// Stats counts stored objects and names and sums payload sizes before
// and after compression.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer l.pool.Put(conn)

	var stats Stats
	err = sqlitex.Execute(conn,
		`SELECT count(*), coalesce(sum(size), 0), coalesce(sum(length(payload)), 0) FROM type_objects`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Objects = stmt.ColumnInt64(0)
			stats.PayloadBytes = stmt.ColumnInt64(1)
			stats.StoredBytes = stmt.ColumnInt64(2)
			return nil
		}})
	if err != nil {
		return Stats{}, fmt.Errorf("typelib: counting objects: %w", err)
	}
	err = sqlitex.Execute(conn, `SELECT count(*) FROM type_names`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Names = stmt.ColumnInt64(0)
			return nil
		}})
	if err != nil {
		return Stats{}, fmt.Errorf("typelib: counting names: %w", err)
	}
	return stats, nil
}
