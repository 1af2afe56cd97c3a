// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTypeIdentifier reports an identifier or object that
// cannot describe a type: an unknown kind, bytes that do not decode, a
// hash that does not match its object, or a minimal object where a
// complete one is needed.
var ErrMalformedTypeIdentifier = errors.New("xtypes: malformed type identifier")

// MissingError lists the hashed identifiers whose TypeObjects were
// needed but not supplied. Fetch them and interpret again.
type MissingError struct {
	IDs []TypeIdentifier
}

func (e *MissingError) Error() string {
	names := make([]string, len(e.IDs))
	for index, id := range e.IDs {
		names[index] = id.String()
	}
	return fmt.Sprintf("xtypes: %d type objects missing: %s", len(e.IDs), strings.Join(names, ", "))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedTypeIdentifier, fmt.Sprintf(format, args...))
}
