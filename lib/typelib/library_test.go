// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelib

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

func track() *idl.Type {
	point := idl.NewStruct("radar::Point", idl.Final).SetMembers(
		idl.Member{Name: "x", Type: idl.Float64},
		idl.Member{Name: "y", Type: idl.Float64},
	)
	segment := idl.NewStruct("radar::Segment", idl.Appendable)
	segment.SetMembers(
		idl.Member{Name: "start", Type: point},
		idl.Member{Name: "next", Type: segment, Optional: true},
	)
	return idl.NewStruct("radar::Track", idl.Mutable).SetMembers(
		idl.Member{Name: "id", Type: idl.Uint64, Key: true},
		idl.Member{Name: "path", Type: segment},
		idl.Member{Name: "tags", Type: idl.Sequence(idl.String(32), 0)},
	)
}

// wide declares a struct with many similarly named members so its
// TypeObject compresses well.
func wide() *idl.Type {
	members := make([]idl.Member, 200)
	for index := range members {
		members[index] = idl.Member{Name: fmt.Sprintf("measurement_channel_%03d", index), Type: idl.Float32}
	}
	return idl.NewStruct("radar::Wide", idl.Appendable).SetMembers(members...)
}

func openLibrary(t *testing.T, compression Compression) *Library {
	t.Helper()
	library, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "types.db"),
		PoolSize:    2,
		Compression: compression,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := library.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return library
}

func mappingOf(t *testing.T, declaration *idl.Type) (xtypes.TypeIdentifier, xtypes.TypeMapping) {
	t.Helper()
	builder := xtypes.NewBuilder(nil)
	root, err := builder.TypeIdentifier(declaration, xtypes.EquivalenceComplete)
	if err != nil {
		t.Fatalf("TypeIdentifier: %v", err)
	}
	mapping, err := builder.TypeMapping(declaration)
	if err != nil {
		t.Fatalf("TypeMapping: %v", err)
	}
	return root, mapping
}

func TestPutMappingAndGet(t *testing.T) {
	library := openLibrary(t, CompressionAuto)
	_, mapping := mappingOf(t, track())
	ctx := context.Background()

	added, err := library.PutMapping(ctx, mapping)
	if err != nil {
		t.Fatalf("PutMapping: %v", err)
	}
	if want := len(mapping.Minimal) + len(mapping.Complete); added != want {
		t.Fatalf("PutMapping added %d, want %d", added, want)
	}

	for _, pairs := range [][]xtypes.TypeIdentifierTypeObjectPair{mapping.Minimal, mapping.Complete} {
		for _, pair := range pairs {
			object, err := library.Get(ctx, pair.ID)
			if err != nil {
				t.Fatalf("Get(%s): %v", pair.ID, err)
			}
			require.Equal(t, pair.Object, object, "object for %s", pair.ID)
		}
	}

	again, err := library.PutMapping(ctx, mapping)
	if err != nil {
		t.Fatalf("second PutMapping: %v", err)
	}
	if again != 0 {
		t.Fatalf("second PutMapping added %d, want 0", again)
	}
}

func TestGetMissing(t *testing.T) {
	library := openLibrary(t, CompressionNone)
	root, _ := mappingOf(t, track())
	if _, err := library.Get(context.Background(), root); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestPutRejectsMismatchedObjects(t *testing.T) {
	library := openLibrary(t, CompressionNone)
	hash, err := xtypes.NewBuilder(nil).TypeHash(wide())
	if err != nil {
		t.Fatalf("TypeHash: %v", err)
	}
	ctx := context.Background()

	tampered := hash.Complete
	tampered.Name = "radar::Narrow"
	if err := library.Put(ctx, hash.CompleteID, tampered); !errors.Is(err, xtypes.ErrMalformedTypeIdentifier) {
		t.Errorf("Put of a tampered object: %v, want ErrMalformedTypeIdentifier", err)
	}
	if err := library.Put(ctx, hash.CompleteID, hash.Minimal); err == nil {
		t.Error("Put accepted a minimal object under a complete identifier")
	}
	if err := library.Put(ctx, xtypes.Primitive(xtypes.IdentifierInt32), hash.Complete); err == nil {
		t.Error("Put accepted a primitive identifier")
	}
	if err := library.Put(ctx, hash.CompleteID, hash.Complete); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestCompressionShrinksStorage(t *testing.T) {
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			library := openLibrary(t, compression)
			hash, err := xtypes.NewBuilder(nil).TypeHash(wide())
			if err != nil {
				t.Fatalf("TypeHash: %v", err)
			}
			ctx := context.Background()
			if err := library.PutTypeHash(ctx, hash); err != nil {
				t.Fatalf("PutTypeHash: %v", err)
			}

			stats, err := library.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.Objects != 2 || stats.Names != 1 {
				t.Fatalf("Stats = %+v, want 2 objects and 1 name", stats)
			}
			if stats.StoredBytes >= stats.PayloadBytes {
				t.Fatalf("stored %d bytes for %d payload bytes", stats.StoredBytes, stats.PayloadBytes)
			}

			object, err := library.Get(ctx, hash.CompleteID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			require.Equal(t, hash.Complete, object)
		})
	}
}

func TestIdentifiersByName(t *testing.T) {
	library := openLibrary(t, CompressionNone)
	hash, err := xtypes.NewBuilder(nil).TypeHash(wide())
	if err != nil {
		t.Fatalf("TypeHash: %v", err)
	}
	ctx := context.Background()
	if err := library.PutTypeHash(ctx, hash); err != nil {
		t.Fatalf("PutTypeHash: %v", err)
	}

	minimal, complete, err := library.Identifiers(ctx, "radar::Wide")
	if err != nil {
		t.Fatalf("Identifiers: %v", err)
	}
	if !minimal.Equal(hash.MinimalID) || !complete.Equal(hash.CompleteID) {
		t.Fatalf("Identifiers = %s, %s; want %s, %s", minimal, complete, hash.MinimalID, hash.CompleteID)
	}
	if _, _, err := library.Identifiers(ctx, "radar::Unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Identifiers of an unknown name: %v, want ErrNotFound", err)
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	library := openLibrary(t, CompressionNone)
	hash, err := xtypes.NewBuilder(nil).TypeHash(wide())
	if err != nil {
		t.Fatalf("TypeHash: %v", err)
	}
	ctx := context.Background()
	if err := library.Put(ctx, hash.CompleteID, hash.Complete); err != nil {
		t.Fatalf("Put: %v", err)
	}

	conn, err := library.pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	err = sqlitex.ExecuteTransient(conn, `UPDATE type_objects SET checksum = zeroblob(32)`, nil)
	library.pool.Put(conn)
	if err != nil {
		t.Fatalf("UPDATE: %v", err)
	}

	if _, err := library.Get(ctx, hash.CompleteID); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Get error = %v, want ErrCorrupt", err)
	}
}

func TestLibraryPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	root, mapping := mappingOf(t, track())
	ctx := context.Background()

	first, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := first.PutMapping(ctx, mapping); err != nil {
		t.Fatalf("PutMapping: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.Get(ctx, root); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestLibraryServesResolver(t *testing.T) {
	library := openLibrary(t, CompressionAuto)
	root, mapping := mappingOf(t, track())
	ctx := context.Background()
	if _, err := library.PutMapping(ctx, mapping); err != nil {
		t.Fatalf("PutMapping: %v", err)
	}

	resolver, err := typeresolve.New(typeresolve.Config{Fetcher: library})
	if err != nil {
		t.Fatalf("typeresolve.New: %v", err)
	}
	declaration, err := resolver.Resolve(ctx, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if declaration.Name != "radar::Track" {
		t.Fatalf("Name = %q, want radar::Track", declaration.Name)
	}
	path := declaration.Members[1].Type
	if path.Name != "radar::Segment" || path.Members[1].Type != path {
		t.Fatalf("self-reference not rebuilt: %s", declaration.Declaration())
	}
}
