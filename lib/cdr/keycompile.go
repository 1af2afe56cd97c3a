// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

// keyCompiler accumulates a key program while machines emit their
// fragments.
type keyCompiler struct {
	program keyvm.Program
	root    machine
	active  map[machine]bool
}

func (c *keyCompiler) emit(op keyvm.Op) int {
	c.program = append(c.program, op)
	return len(c.program) - 1
}

// land points the jump of the op at index to the next op emitted.
func (c *keyCompiler) land(index int) {
	c.program[index].Jump = int32(len(c.program) - index)
}

// stream emits a copy of count elements of width bytes.
func (c *keyCompiler) stream(width, count int, skip bool) {
	if width > 1 && !skip {
		c.emit(keyvm.Op{Code: keyvm.ByteSwap, Size: int32(width)})
	}
	c.emit(keyvm.Op{Code: keyvm.StreamStatic, Size: int32(width), Count: int32(count), Skip: skip})
}

// streamSized emits a length-prefixed copy of elements of width bytes.
func (c *keyCompiler) streamSized(width int, skip bool) {
	if width > 1 && !skip {
		c.emit(keyvm.Op{Code: keyvm.ByteSwap, Size: int32(width)})
	}
	c.emit(keyvm.Op{Code: keyvm.Stream4ByteSize, Size: int32(width), Skip: skip})
}

// delimited wraps body in an AppendableHeader scope. A skipped scope
// needs no body: the header alone says where it ends.
func (c *keyCompiler) delimited(skip bool, body func() error) error {
	c.emit(keyvm.Op{Code: keyvm.AppendableHeader})
	if !skip {
		if err := body(); err != nil {
			return err
		}
	}
	c.emit(keyvm.Op{Code: keyvm.AppendableJumpToEnd})
	return nil
}

// repeatSized emits a length-prefixed repeat of body.
func (c *keyCompiler) repeatSized(skip bool, body func() error) error {
	opener := c.emit(keyvm.Op{Code: keyvm.Repeat4ByteSize, Skip: skip})
	if err := body(); err != nil {
		return err
	}
	c.emit(keyvm.Op{Code: keyvm.EndRepeat})
	c.land(opener)
	return nil
}

// repeatStatic emits a fixed repeat of body.
func (c *keyCompiler) repeatStatic(count uint32, body func() error) error {
	opener := c.emit(keyvm.Op{Code: keyvm.RepeatStatic, Count: int32(count)})
	if err := body(); err != nil {
		return err
	}
	c.emit(keyvm.Op{Code: keyvm.EndRepeat})
	c.land(opener)
	return nil
}

func (c *keyCompiler) enter(m machine, name string) error {
	if c.active[m] {
		return fmt.Errorf("%w: key program cannot describe recursive type %s", ErrUnsupportedEncoding, name)
	}
	c.active[m] = true
	return nil
}

func (c *keyCompiler) leave(m machine) {
	delete(c.active, m)
}

// compileKeyProgram builds the key program for the XCDR2 machine tree
// rooted at root.
func compileKeyProgram(root machine) (keyvm.Program, error) {
	compiler := &keyCompiler{root: root, active: make(map[machine]bool)}
	if err := root.keyOps(compiler, false); err != nil {
		return nil, err
	}
	compiler.emit(keyvm.Op{Code: keyvm.Done})
	if err := keyvm.Validate(compiler.program); err != nil {
		return nil, fmt.Errorf("cdr: compiled key program is invalid: %w", err)
	}
	return compiler.program, nil
}
