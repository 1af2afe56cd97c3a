// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyvm

import (
	"errors"
	"fmt"
)

// ErrInvalidProgram is returned (wrapped) for programs that violate the
// bracket or jump rules.
var ErrInvalidProgram = errors.New("keyvm: invalid program")

func invalid(pc int, format string, args ...any) error {
	return fmt.Errorf("%w: instruction %d: %s", ErrInvalidProgram, pc, fmt.Sprintf(format, args...))
}

func validWidth(size int32) bool {
	return size == 1 || size == 2 || size == 4 || size == 8
}

// Validate checks that every opening op has exactly one terminator or
// jump target, that all jumps land inside the program and move
// forward (except the implicit loop of EndRepeat), and that the program
// ends with Done.
func Validate(program Program) error {
	length := len(program)
	if length == 0 || program[length-1].Code != Done {
		return fmt.Errorf("%w: program must end with %s", ErrInvalidProgram, Done)
	}

	type bracket struct {
		code Code
		pc   int
	}
	var open []bracket
	pop := func(pc int, want ...Code) (bracket, error) {
		if len(open) == 0 {
			return bracket{}, invalid(pc, "%s without opening op", program[pc].Code)
		}
		top := open[len(open)-1]
		for _, code := range want {
			if top.code == code {
				open = open[:len(open)-1]
				return top, nil
			}
		}
		return bracket{}, invalid(pc, "%s closes %s at %d", program[pc].Code, top.code, top.pc)
	}
	forward := func(pc int, jump int32) error {
		target := pc + int(jump)
		if target <= pc || target > length-1 {
			return invalid(pc, "jump %+d lands outside (%d, %d]", jump, pc, length-1)
		}
		return nil
	}

	for pc := 0; pc < length; pc++ {
		op := program[pc]
		switch op.Code {
		case Done:
			if pc != length-1 {
				return invalid(pc, "%s before end of program", Done)
			}
			if len(open) > 0 {
				top := open[len(open)-1]
				return invalid(pc, "%s at %d is never closed", top.code, top.pc)
			}

		case StreamStatic:
			if !validWidth(op.Size) || op.Count < 0 {
				return invalid(pc, "bad size %d or count %d", op.Size, op.Count)
			}

		case Stream4ByteSize:
			if !validWidth(op.Size) {
				return invalid(pc, "bad size %d", op.Size)
			}

		case ByteSwap:
			if op.Size != 2 && op.Size != 4 && op.Size != 8 {
				return invalid(pc, "bad swap width %d", op.Size)
			}
			next := program[pc+1]
			if (next.Code != StreamStatic && next.Code != Stream4ByteSize) || next.Size != op.Size {
				return invalid(pc, "%s must precede a stream op of the same size", ByteSwap)
			}

		case RepeatStatic, Repeat4ByteSize:
			if op.Code == RepeatStatic && op.Count < 0 {
				return invalid(pc, "negative repeat count %d", op.Count)
			}
			if err := forward(pc, op.Jump); err != nil {
				return err
			}
			open = append(open, bracket{op.Code, pc})

		case EndRepeat:
			opener, err := pop(pc, RepeatStatic, Repeat4ByteSize)
			if err != nil {
				return err
			}
			if opener.pc+int(program[opener.pc].Jump) != pc+1 {
				return invalid(opener.pc, "repeat jump does not land after %s at %d", EndRepeat, pc)
			}

		case Union1Byte, Union2Byte, Union4Byte, Union8Byte:
			if op.Count < 0 || pc+int(op.Count) >= length {
				return invalid(pc, "case table of %d entries overruns program", op.Count)
			}
			if err := forward(pc, op.Jump); err != nil {
				return err
			}
			end := pc + int(op.Jump)
			tableEnd := pc + int(op.Count)
			if end <= tableEnd {
				return invalid(pc, "union end %d inside its case table", end)
			}
			defaults := 0
			for entry := pc + 1; entry <= tableEnd; entry++ {
				caseOp := program[entry]
				switch caseOp.Code {
				case CaseDefault:
					defaults++
				case CaseLabel:
				default:
					return invalid(entry, "%s in case table", caseOp.Code)
				}
				target := entry + int(caseOp.Jump)
				if target <= tableEnd || target > end {
					return invalid(entry, "case jump %+d outside union body", caseOp.Jump)
				}
			}
			if defaults > 1 {
				return invalid(pc, "%d default entries", defaults)
			}
			pc = tableEnd

		case CaseLabel, CaseDefault:
			return invalid(pc, "%s outside a case table", op.Code)

		case Jump, Optional:
			if err := forward(pc, op.Jump); err != nil {
				return err
			}

		case MemberSelect:
			if op.Label < 0 || op.Label > 0x0FFFFFFF {
				return invalid(pc, "member id %d out of range", op.Label)
			}
			if err := forward(pc, op.Jump); err != nil {
				return err
			}
			open = append(open, bracket{op.Code, pc})

		case MemberSelectEnd:
			opener, err := pop(pc, MemberSelect)
			if err != nil {
				return err
			}
			if opener.pc+int(program[opener.pc].Jump) != pc+1 {
				return invalid(opener.pc, "member select jump does not land after %s at %d", MemberSelectEnd, pc)
			}

		case StructHeader, AppendableHeader:
			open = append(open, bracket{op.Code, pc})

		case AppendableJumpToEnd:
			if _, err := pop(pc, StructHeader, AppendableHeader); err != nil {
				return err
			}

		default:
			return invalid(pc, "unknown op %s", op.Code)
		}
	}
	return nil
}
