// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// type library.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection is
// prepared with WAL journaling, NORMAL synchronous mode, a five second
// busy timeout and an in-memory temp store. Callers [Pool.Take] a
// connection, use it from one goroutine, and [Pool.Put] it back.
//
// # Migrations
//
// Config.Migrations is an ordered list of SQL scripts. Open compares
// the database's PRAGMA user_version with the list length and applies
// the missing scripts in one immediate transaction, advancing
// user_version to match. A database whose user_version is greater than
// the number of known migrations was written by a newer build and is
// refused.
//
//	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
//	    Path:       path,
//	    Migrations: []string{createObjects, addMappings},
//	    Logger:     logger,
//	})
package sqlitepool
