// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyvm

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/buffer"
)

var (
	// ErrUnsupportedInput is returned for data that is not XCDR2:
	// basic CDR payloads or unknown encapsulation identifiers.
	ErrUnsupportedInput = errors.New("keyvm: unsupported input encoding")

	// ErrMissingMember is returned when a MemberSelect finds no member
	// with the requested id.
	ErrMissingMember = errors.New("keyvm: member not present")

	// ErrLimitExceeded is returned when execution takes more steps
	// than the program and input sizes can justify.
	ErrLimitExceeded = errors.New("keyvm: execution limit exceeded")
)

// Run executes program over data, which starts with a 4-byte XCDR2
// encapsulation header selecting the byte order. It returns the key
// bytes.
func Run(program Program, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: %d bytes is too short for an encapsulation header", ErrUnsupportedInput, len(data))
	}
	identifier := data[1]
	endianness := buffer.BigEndian
	if identifier&1 != 0 {
		endianness = buffer.LittleEndian
	}
	switch identifier &^ 1 {
	case 0x06, 0x08, 0x0A:
	case 0x00, 0x02:
		return nil, fmt.Errorf("%w: basic CDR payloads carry no key program", ErrUnsupportedInput)
	default:
		return nil, fmt.Errorf("%w: encapsulation identifier %#04x", ErrUnsupportedInput, identifier)
	}
	input := buffer.FromBytes(data)
	input.Seek(4)
	input.SetOrigin(4)
	return execute(program, input, endianness)
}

// RunPayload executes program over an XCDR2 payload with no
// encapsulation header, encoded in the given byte order.
func RunPayload(program Program, payload []byte, endianness buffer.Endianness) ([]byte, error) {
	return execute(program, buffer.FromBytes(payload), endianness)
}

type repeatFrame struct {
	body      int
	remaining uint64
}

type scope struct {
	start int
	end   int
}

func execute(program Program, input *buffer.Buffer, endianness buffer.Endianness) ([]byte, error) {
	if err := Validate(program); err != nil {
		return nil, err
	}
	input.SetMaxAlign(4)
	input.SetEndianness(endianness)
	swapInput := endianness == buffer.LittleEndian

	output := buffer.New()
	output.SetMaxAlign(4)
	output.SetEndianness(buffer.BigEndian)

	var (
		repeats  []repeatFrame
		scopes   []scope
		swapSize int32
	)
	budget := (len(program) + 1) * (input.Len() + 16) * 4
	steps := 0

	pc := 0
	for {
		steps++
		if steps > budget {
			return nil, ErrLimitExceeded
		}
		op := program[pc]
		switch op.Code {
		case Done:
			return append([]byte(nil), output.Bytes()...), nil

		case ByteSwap:
			swapSize = op.Size
			pc++

		case StreamStatic:
			if err := stream(input, output, op, int(op.Count), swapInput && swapSize == op.Size); err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			swapSize = 0
			pc++

		case Stream4ByteSize:
			count, err := input.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			if !op.Skip {
				output.WriteUint32(count)
			}
			if uint64(count)*uint64(op.Size) > uint64(input.Remaining()) {
				return nil, fmt.Errorf("keyvm: instruction %d: %d elements of %d bytes exceed the %d remaining", pc, count, op.Size, input.Remaining())
			}
			if err := stream(input, output, op, int(count), swapInput && swapSize == op.Size); err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			swapSize = 0
			pc++

		case RepeatStatic, Repeat4ByteSize:
			count := uint64(op.Count)
			if op.Code == Repeat4ByteSize {
				value, err := input.ReadUint32()
				if err != nil {
					return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
				}
				if !op.Skip {
					output.WriteUint32(value)
				}
				count = uint64(value)
			}
			if count == 0 {
				pc += int(op.Jump)
				continue
			}
			repeats = append(repeats, repeatFrame{body: pc + 1, remaining: count})
			pc++

		case EndRepeat:
			if len(repeats) == 0 {
				return nil, fmt.Errorf("%w: instruction %d: %s without an active repeat", ErrInvalidProgram, pc, EndRepeat)
			}
			top := &repeats[len(repeats)-1]
			top.remaining--
			if top.remaining > 0 {
				pc = top.body
				continue
			}
			repeats = repeats[:len(repeats)-1]
			pc++

		case Union1Byte, Union2Byte, Union4Byte, Union8Byte:
			width := op.Code.unionWidth()
			raw, err := readUnsigned(input, width)
			if err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			if !op.Skip {
				writeUnsigned(output, width, raw)
			}
			discriminator := int64(raw)
			if op.Signed {
				shift := uint(64 - 8*width)
				discriminator = int64(raw<<shift) >> shift
			}
			next := pc + int(op.Jump)
			for entry := pc + 1; entry <= pc+int(op.Count); entry++ {
				caseOp := program[entry]
				if caseOp.Code == CaseLabel && caseOp.Label == discriminator {
					next = entry + int(caseOp.Jump)
					break
				}
				if caseOp.Code == CaseDefault {
					next = entry + int(caseOp.Jump)
				}
			}
			pc = next

		case Jump:
			pc += int(op.Jump)

		case Optional:
			present, err := input.ReadUint8()
			if err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			if present == 0 {
				pc += int(op.Jump)
				continue
			}
			pc++

		case StructHeader, AppendableHeader:
			length, err := input.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			start := input.Tell()
			end := start + int(length)
			if end > input.Len() || end < start {
				return nil, fmt.Errorf("keyvm: instruction %d: delimited length %d overruns input", pc, length)
			}
			scopes = append(scopes, scope{start: start, end: end})
			pc++

		case AppendableJumpToEnd:
			if len(scopes) == 0 {
				return nil, fmt.Errorf("%w: instruction %d: %s without an open scope", ErrInvalidProgram, pc, AppendableJumpToEnd)
			}
			top := scopes[len(scopes)-1]
			scopes = scopes[:len(scopes)-1]
			if input.Tell() > top.end {
				return nil, fmt.Errorf("keyvm: instruction %d: read past delimited end %d", pc, top.end)
			}
			input.Seek(top.end)
			pc++

		case MemberSelect:
			if len(scopes) == 0 {
				return nil, fmt.Errorf("%w: instruction %d: %s outside a struct scope", ErrInvalidProgram, pc, MemberSelect)
			}
			if err := selectMember(input, scopes[len(scopes)-1], uint32(op.Label)); err != nil {
				return nil, fmt.Errorf("keyvm: instruction %d: %w", pc, err)
			}
			pc++

		case MemberSelectEnd:
			pc++

		default:
			return nil, fmt.Errorf("%w: instruction %d: %s", ErrInvalidProgram, pc, op.Code)
		}
	}
}

// stream copies count elements of op.Size bytes from input to output,
// reversing each element when swap is set.
func stream(input, output *buffer.Buffer, op Op, count int, swap bool) error {
	if count == 0 {
		return nil
	}
	size := int(op.Size)
	input.Align(size)
	data, err := input.ReadBytes(size * count)
	if err != nil {
		return err
	}
	if op.Skip {
		return nil
	}
	if swap && size > 1 {
		for offset := 0; offset < len(data); offset += size {
			element := data[offset : offset+size]
			for left, right := 0, size-1; left < right; left, right = left+1, right-1 {
				element[left], element[right] = element[right], element[left]
			}
		}
	}
	output.Align(size)
	output.WriteBytes(data)
	return nil
}

// selectMember walks the EMHEADERs of a mutable scope from its start
// and leaves the input at the data of member id.
func selectMember(input *buffer.Buffer, within scope, id uint32) error {
	input.Seek(within.start)
	for input.Tell() < within.end {
		header, err := input.ReadUint32()
		if err != nil {
			return err
		}
		dataStart := input.Tell()
		var size int
		lengthCode := (header >> 28) & 0x7
		switch {
		case lengthCode < 4:
			size = 1 << lengthCode
		default:
			nextInt, err := input.ReadUint32()
			if err != nil {
				return err
			}
			switch lengthCode {
			case 4:
				dataStart = input.Tell()
				size = int(nextInt)
			case 5:
				size = 4 + int(nextInt)
			case 6:
				size = 4 + 4*int(nextInt)
			case 7:
				size = 4 + 8*int(nextInt)
			}
		}
		if dataStart+size > within.end || size < 0 {
			return fmt.Errorf("member %d length %d overruns struct end %d", header&0x0FFFFFFF, size, within.end)
		}
		if header&0x0FFFFFFF == id {
			input.Seek(dataStart)
			return nil
		}
		input.Seek(dataStart + size)
		input.Align(4)
	}
	return fmt.Errorf("%w: id %d", ErrMissingMember, id)
}

func readUnsigned(input *buffer.Buffer, width int) (uint64, error) {
	switch width {
	case 1:
		value, err := input.ReadUint8()
		return uint64(value), err
	case 2:
		value, err := input.ReadUint16()
		return uint64(value), err
	case 4:
		value, err := input.ReadUint32()
		return uint64(value), err
	default:
		return input.ReadUint64()
	}
}

func writeUnsigned(output *buffer.Buffer, width int, value uint64) {
	switch width {
	case 1:
		output.WriteUint8(uint8(value))
	case 2:
		output.WriteUint16(uint16(value))
	case 4:
		output.WriteUint32(uint32(value))
	default:
		output.WriteUint64(value)
	}
}
