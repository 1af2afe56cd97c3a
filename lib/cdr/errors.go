// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBoundViolation is returned when a string, sequence, or map
	// exceeds its declared bound during encoding. The concrete error
	// is a [*BoundError].
	ErrBoundViolation = errors.New("cdr: bound violation")

	// ErrStructuralCorruption is returned when decoded framing is
	// inconsistent with the bytes available: a length header that
	// overruns its container, a member that reads past its declared
	// end, or data that ends early.
	ErrStructuralCorruption = errors.New("cdr: structural corruption")

	// ErrMustUnderstand is returned when a mutable type's encoding
	// contains an unknown member flagged must-understand. The
	// concrete error is a [*MustUnderstandError].
	ErrMustUnderstand = errors.New("cdr: unknown must-understand member")

	// ErrUnsupportedEncoding is returned when a caller selects an
	// encoding the type cannot use, such as basic CDR for a type with
	// optional members.
	ErrUnsupportedEncoding = errors.New("cdr: unsupported encoding")

	// ErrInvalidValue is returned when a value does not have the Go
	// shape its type requires.
	ErrInvalidValue = errors.New("cdr: invalid value")
)

// BoundError describes a bound violation.
type BoundError struct {
	// Type renders the violated type, e.g. "string<8>".
	Type   string
	Bound  uint32
	Length int
}

func (e *BoundError) Error() string {
	return fmt.Sprintf("cdr: %s holds %d elements, exceeding bound %d", e.Type, e.Length, e.Bound)
}

func (e *BoundError) Unwrap() error { return ErrBoundViolation }

// MustUnderstandError identifies the unknown member of a
// must-understand violation.
type MustUnderstandError struct {
	Type string
	ID   uint32
}

func (e *MustUnderstandError) Error() string {
	return fmt.Sprintf("cdr: %s: unknown member id %d is flagged must-understand", e.Type, e.ID)
}

func (e *MustUnderstandError) Unwrap() error { return ErrMustUnderstand }

func invalidValue(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStructuralCorruption, fmt.Sprintf(format, args...))
}

// decodeError classifies a short read as structural corruption.
func decodeError(err error) error {
	if err == nil || errors.Is(err, ErrStructuralCorruption) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrStructuralCorruption, err)
	}
	return err
}
