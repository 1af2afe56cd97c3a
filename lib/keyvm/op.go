// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyvm

import (
	"fmt"
	"strings"
)

// Code is an operation code.
type Code uint8

const (
	// Done ends the program.
	Done Code = iota

	// StreamStatic copies Count elements of Size bytes, aligned to
	// min(Size, 4).
	StreamStatic

	// Stream4ByteSize reads a 4-byte element count, copies it, then
	// copies that many elements of Size bytes. Strings and sequences
	// of primitives use it.
	Stream4ByteSize

	// ByteSwap makes the next stream op convert elements of Size bytes
	// from the input byte order to big-endian.
	ByteSwap

	// RepeatStatic runs the body up to the matching EndRepeat Count
	// times. Jump lands after the EndRepeat.
	RepeatStatic

	// Repeat4ByteSize reads a 4-byte count, copies it, and runs the body
	// that many times. Jump lands after the EndRepeat and is taken when
	// the count is zero.
	Repeat4ByteSize

	// EndRepeat closes a repeat body.
	EndRepeat

	// Union1Byte through Union8Byte read a discriminator of the given
	// width, copy it, and dispatch through the Count-entry case table
	// that follows. Jump lands after the union when no entry matches.
	Union1Byte
	Union2Byte
	Union4Byte
	Union8Byte

	// CaseLabel is a case table entry: when the discriminator equals
	// Label, execution continues Jump instructions from this entry.
	CaseLabel

	// CaseDefault is the case table entry taken when no label matches.
	CaseDefault

	// Jump continues Jump instructions from here.
	Jump

	// Optional reads a 1-byte presence flag and, when it is zero,
	// continues Jump instructions from here.
	Optional

	// MemberSelect positions the input at the data of the member with
	// id Label inside the enclosing StructHeader scope.
	MemberSelect

	// MemberSelectEnd closes a MemberSelect body.
	MemberSelectEnd

	// StructHeader reads the DHEADER of a mutable struct or union and
	// opens a scope that MemberSelect searches.
	StructHeader

	// AppendableHeader reads a DHEADER and opens a scope ending where
	// the header says.
	AppendableHeader

	// AppendableJumpToEnd closes the innermost scope and moves the
	// input to its end, stepping over anything not consumed.
	AppendableJumpToEnd
)

var codeNames = [...]string{
	Done:                "DONE",
	StreamStatic:        "STREAM_STATIC",
	Stream4ByteSize:     "STREAM_4BYTE_SIZE",
	ByteSwap:            "BYTE_SWAP",
	RepeatStatic:        "REPEAT_STATIC",
	Repeat4ByteSize:     "REPEAT_4BYTE_SIZE",
	EndRepeat:           "END_REPEAT",
	Union1Byte:          "UNION_1BYTE",
	Union2Byte:          "UNION_2BYTE",
	Union4Byte:          "UNION_4BYTE",
	Union8Byte:          "UNION_8BYTE",
	CaseLabel:           "CASE_LABEL",
	CaseDefault:         "CASE_DEFAULT",
	Jump:                "JUMP",
	Optional:            "OPTIONAL",
	MemberSelect:        "MEMBER_SELECT",
	MemberSelectEnd:     "MEMBER_SELECT_END",
	StructHeader:        "STRUCT_HEADER",
	AppendableHeader:    "APPENDABLE_HEADER",
	AppendableJumpToEnd: "APPENDABLE_JUMP_TO_END",
}

func (code Code) String() string {
	if int(code) < len(codeNames) {
		return codeNames[code]
	}
	return fmt.Sprintf("Code(%d)", uint8(code))
}

// UnionCode returns the union op for a discriminator of width bytes.
func UnionCode(width int) Code {
	switch width {
	case 1:
		return Union1Byte
	case 2:
		return Union2Byte
	case 4:
		return Union4Byte
	default:
		return Union8Byte
	}
}

func (code Code) unionWidth() int {
	switch code {
	case Union1Byte:
		return 1
	case Union2Byte:
		return 2
	case Union4Byte:
		return 4
	case Union8Byte:
		return 8
	}
	return 0
}

// Op is one instruction. Which fields matter depends on Code.
type Op struct {
	Code Code

	// Skip consumes input without producing output.
	Skip bool

	// Size is the element width of stream and byte-swap ops.
	Size int32

	// Count is the element count of StreamStatic, the repeat count of
	// RepeatStatic, and the case table length of union ops.
	Count int32

	// Jump is a relative instruction offset.
	Jump int32

	// Label is the case label of CaseLabel and the member id of
	// MemberSelect.
	Label int64

	// Signed marks a union discriminator that sign-extends.
	Signed bool
}

func (op Op) String() string {
	var builder strings.Builder
	builder.WriteString(op.Code.String())
	switch op.Code {
	case StreamStatic:
		fmt.Fprintf(&builder, " size=%d count=%d", op.Size, op.Count)
	case Stream4ByteSize, ByteSwap:
		fmt.Fprintf(&builder, " size=%d", op.Size)
	case RepeatStatic:
		fmt.Fprintf(&builder, " count=%d jump=%+d", op.Count, op.Jump)
	case Repeat4ByteSize, Jump, Optional, CaseDefault:
		fmt.Fprintf(&builder, " jump=%+d", op.Jump)
	case Union1Byte, Union2Byte, Union4Byte, Union8Byte:
		fmt.Fprintf(&builder, " cases=%d jump=%+d", op.Count, op.Jump)
		if op.Signed {
			builder.WriteString(" signed")
		}
	case CaseLabel:
		fmt.Fprintf(&builder, " label=%d jump=%+d", op.Label, op.Jump)
	case MemberSelect:
		fmt.Fprintf(&builder, " id=%d jump=%+d", op.Label, op.Jump)
	}
	if op.Skip {
		builder.WriteString(" skip")
	}
	return builder.String()
}

// Program is a complete key extraction program ending in Done.
type Program []Op

// String disassembles the program, one instruction per line.
func (program Program) String() string {
	var builder strings.Builder
	for index, op := range program {
		fmt.Fprintf(&builder, "%4d  %s\n", index, op)
	}
	return builder.String()
}
