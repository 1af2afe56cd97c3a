// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"sync"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

// TypeHash is the identity of one named type: its minimal and complete
// TypeObjects, their serialized bytes, and the identifiers that refer
// to them. Identifiers of types in a reference cycle are strongly
// connected component identifiers. A TypeHash never changes once
// built.
type TypeHash struct {
	Name string

	Minimal      TypeObject
	MinimalBytes []byte
	MinimalID    TypeIdentifier

	Complete      TypeObject
	CompleteBytes []byte
	CompleteID    TypeIdentifier
}

// Object returns the object of the given equivalence kind.
func (hash *TypeHash) Object(kind EquivalenceKind) (TypeObject, []byte, TypeIdentifier) {
	if kind == EquivalenceMinimal {
		return hash.Minimal, hash.MinimalBytes, hash.MinimalID
	}
	return hash.Complete, hash.CompleteBytes, hash.CompleteID
}

type cacheKey struct {
	name        string
	declaration *idl.Type
}

// Cache remembers the TypeHash of every declaration a [Builder] has
// processed. Entries are keyed by declaration identity, so two
// declarations that happen to share a name never collide. A Cache is
// safe for concurrent use and may be shared between builders.
type Cache struct {
	mutex   sync.RWMutex
	entries map[cacheKey]*TypeHash
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*TypeHash)}
}

// Get returns the hash of t, if known.
func (c *Cache) Get(t *idl.Type) (*TypeHash, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	hash, ok := c.entries[cacheKey{name: t.Name, declaration: t}]
	return hash, ok
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// put stores hashes for a batch of declarations at once, so that the
// members of a component become visible together.
func (c *Cache) put(types []*idl.Type, hashes []*TypeHash) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for index, t := range types {
		key := cacheKey{name: t.Name, declaration: t}
		if _, ok := c.entries[key]; !ok {
			c.entries[key] = hashes[index]
		}
	}
}
