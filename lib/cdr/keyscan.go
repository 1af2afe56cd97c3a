// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import "fmt"

// DefaultKeySizeLimit is the key size beyond which a key is treated as
// unbounded rather than computed exactly.
const DefaultKeySizeLimit = 1_000_000

// KeySizeKind classifies the size of a type's key encoding.
type KeySizeKind uint8

const (
	// KeySizeFixed: every key has exactly Size bytes.
	KeySizeFixed KeySizeKind = iota

	// KeySizeBounded: no key has more than Size bytes.
	KeySizeBounded

	// KeySizeUnbounded: keys may be arbitrarily large, or larger than
	// the scan limit.
	KeySizeUnbounded
)

// KeySize is the result of scanning a type's key members.
type KeySize struct {
	Kind KeySizeKind
	Size int
}

var unboundedKeySize = KeySize{Kind: KeySizeUnbounded}

func (size KeySize) String() string {
	switch size.Kind {
	case KeySizeFixed:
		return fmt.Sprintf("fixed(%d)", size.Size)
	case KeySizeBounded:
		return fmt.Sprintf("bounded(%d)", size.Size)
	}
	return "unbounded"
}

// FitsKeyHash reports whether every key fits in a 16-byte key hash
// without digesting.
func (size KeySize) FitsKeyHash() bool {
	return size.Kind != KeySizeUnbounded && size.Size <= 16
}

// keyScanner threads key size accumulation through a machine tree.
// Sizes are offsets into the big-endian XCDR2 key stream, so alignment
// is exact for fixed sizes and an upper bound for bounded ones.
type keyScanner struct {
	limit  int
	active map[machine]bool
}

func newKeyScanner(limit int) *keyScanner {
	if limit <= 0 {
		limit = DefaultKeySizeLimit
	}
	return &keyScanner{limit: limit, active: make(map[machine]bool)}
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) / alignment * alignment
}

func (s *keyScanner) add(size KeySize, width, count int, kind KeySizeKind) KeySize {
	if size.Kind == KeySizeUnbounded {
		return size
	}
	next := alignUp(size.Size, min(width, 4)) + width*count
	if next > s.limit || next < size.Size {
		return unboundedKeySize
	}
	return KeySize{Kind: max(size.Kind, kind), Size: next}
}

// fixed adds count elements of width bytes.
func (s *keyScanner) fixed(size KeySize, width, count int) KeySize {
	return s.add(size, width, count, KeySizeFixed)
}

// bounded adds at most count elements of width bytes.
func (s *keyScanner) bounded(size KeySize, width, count int) KeySize {
	return s.add(size, width, count, KeySizeBounded)
}

// repeat applies step count times. With bounded set the count is only
// a maximum. A step that adds nothing ends the simulation early.
func (s *keyScanner) repeat(size KeySize, count uint64, bounded bool, step func(KeySize) KeySize) KeySize {
	for index := uint64(0); index < count; index++ {
		previous := size
		size = step(size)
		if size.Kind == KeySizeUnbounded {
			return size
		}
		if size == previous {
			break
		}
	}
	if bounded && size.Kind == KeySizeFixed {
		size.Kind = KeySizeBounded
	}
	return size
}

// enter marks an aggregate as being scanned. It returns false when the
// aggregate is already on the stack, meaning the key recurses.
func (s *keyScanner) enter(m machine) bool {
	if s.active[m] {
		return false
	}
	s.active[m] = true
	return true
}

func (s *keyScanner) leave(m machine) {
	delete(s.active, m)
}

// alternatives combines the outcomes of a choice, such as the cases of
// a union: fixed only when every outcome is the same fixed size.
func alternatives(outcomes []KeySize) KeySize {
	if len(outcomes) == 0 {
		return KeySize{}
	}
	combined := outcomes[0]
	for _, outcome := range outcomes[1:] {
		if outcome.Kind == KeySizeUnbounded || combined.Kind == KeySizeUnbounded {
			return unboundedKeySize
		}
		if outcome != combined {
			combined = KeySize{Kind: KeySizeBounded, Size: max(combined.Size, outcome.Size)}
		}
	}
	return combined
}
