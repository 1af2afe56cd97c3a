// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

const mustUnderstandFlag = 1 << 31

type memberMachine struct {
	name           string
	id             uint32
	key            bool
	optional       bool
	mustUnderstand bool
	machine        machine
}

// structCore is shared by the three struct variants. Members are
// attached after the machine is registered with the builder, so a
// member may refer back to its own struct.
type structCore struct {
	name    string
	members []memberMachine

	// keyOrder lists the members of the key form: the declared key
	// members, or every member when none is declared. Mutable structs
	// order them by member id, others by declaration.
	keyOrder     []int
	declaredKeys bool

	byID map[uint32]int
}

func (c *structCore) finish(byID bool) {
	c.keyOrder = c.keyOrder[:0]
	c.byID = make(map[uint32]int, len(c.members))
	for index, member := range c.members {
		c.byID[member.id] = index
		if member.key {
			c.declaredKeys = true
		}
	}
	for index, member := range c.members {
		if member.key || !c.declaredKeys {
			c.keyOrder = append(c.keyOrder, index)
		}
	}
	if byID {
		slices.SortFunc(c.keyOrder, func(a, b int) int {
			return int(c.members[a].id) - int(c.members[b].id)
		})
	}
}

// inKey reports whether member index contributes to the key form.
func (c *structCore) inKey(index int) bool {
	return !c.declaredKeys || c.members[index].key
}

func structFields(name string, value any) (map[string]any, error) {
	switch fields := value.(type) {
	case idl.Struct:
		return fields, nil
	case map[string]any:
		return fields, nil
	}
	return nil, invalidValue("struct %s wants idl.Struct, got %T", name, value)
}

func (c *structCore) serializeKey(b *buffer.Buffer, fields map[string]any) error {
	for _, index := range c.keyOrder {
		member := c.members[index]
		value, present := fields[member.name]
		if !present || value == nil {
			return invalidValue("struct %s: key member %q is missing", c.name, member.name)
		}
		if err := member.machine.serialize(b, value, true); err != nil {
			return fmt.Errorf("%s.%s: %w", c.name, member.name, err)
		}
	}
	return nil
}

// serializeMembers writes every member back to back. Optional members
// carry their own presence flag through optionalMachine.
func (c *structCore) serializeMembers(b *buffer.Buffer, fields map[string]any) error {
	for _, member := range c.members {
		value, present := fields[member.name]
		if !member.optional && (!present || value == nil) {
			return invalidValue("struct %s: member %q is missing", c.name, member.name)
		}
		if err := member.machine.serialize(b, value, false); err != nil {
			return fmt.Errorf("%s.%s: %w", c.name, member.name, err)
		}
	}
	return nil
}

// deserializeMembers reads members in declaration order. When end is
// not negative, members starting at or beyond it are absent and take
// their default values.
func (c *structCore) deserializeMembers(b *buffer.Buffer, end int) (idl.Struct, error) {
	result := make(idl.Struct, len(c.members))
	for _, member := range c.members {
		if end >= 0 && b.Tell() >= end {
			result[member.name] = c.memberDefault(member)
			continue
		}
		value, err := member.machine.deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.name, member.name, err)
		}
		result[member.name] = value
	}
	return result, nil
}

func (c *structCore) memberDefault(member memberMachine) any {
	if member.optional {
		return nil
	}
	return member.machine.defaultValue()
}

func (c *structCore) defaultStruct() idl.Struct {
	result := make(idl.Struct, len(c.members))
	for _, member := range c.members {
		result[member.name] = c.memberDefault(member)
	}
	return result
}

func (c *structCore) scanKey(self machine, scanner *keyScanner, size KeySize) KeySize {
	if !scanner.enter(self) {
		return unboundedKeySize
	}
	defer scanner.leave(self)
	for _, index := range c.keyOrder {
		size = c.members[index].machine.keyScan(scanner, size)
	}
	return size
}

// memberOps emits the members of a final or appendable struct in
// declaration order. The root struct stops after its last key member.
func (c *structCore) memberOps(self machine, compiler *keyCompiler, skip bool) error {
	if err := compiler.enter(self, c.name); err != nil {
		return err
	}
	defer compiler.leave(self)
	last := len(c.members) - 1
	if compiler.root == self && c.declaredKeys {
		last = c.keyOrder[len(c.keyOrder)-1]
	}
	for index := 0; index <= last; index++ {
		member := c.members[index]
		if err := member.machine.keyOps(compiler, skip || !c.inKey(index)); err != nil {
			return fmt.Errorf("%s.%s: %w", c.name, member.name, err)
		}
	}
	return nil
}

// finalStruct encodes members back to back with no framing.
type finalStruct struct{ structCore }

func (m *finalStruct) serialize(b *buffer.Buffer, value any, forKey bool) error {
	fields, err := structFields(m.name, value)
	if err != nil {
		return err
	}
	if forKey {
		return m.serializeKey(b, fields)
	}
	return m.serializeMembers(b, fields)
}

func (m *finalStruct) deserialize(b *buffer.Buffer) (any, error) {
	return m.deserializeMembers(b, -1)
}

func (m *finalStruct) defaultValue() any { return m.defaultStruct() }

func (m *finalStruct) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *finalStruct) keyOps(compiler *keyCompiler, skip bool) error {
	return m.memberOps(m, compiler, skip)
}

// appendableStruct prefixes the final encoding with a DHEADER. Readers
// default members the writer did not have and skip members they do not
// know.
type appendableStruct struct{ structCore }

func (m *appendableStruct) serialize(b *buffer.Buffer, value any, forKey bool) error {
	fields, err := structFields(m.name, value)
	if err != nil {
		return err
	}
	if forKey {
		return m.serializeKey(b, fields)
	}
	header := beginDelimited(b, true)
	if err := m.serializeMembers(b, fields); err != nil {
		return err
	}
	endDelimited(b, header)
	return nil
}

func (m *appendableStruct) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	result, err := m.deserializeMembers(b, end)
	if err != nil {
		return nil, err
	}
	if err := finishDelimited(b, end); err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return result, nil
}

func (m *appendableStruct) defaultValue() any { return m.defaultStruct() }

func (m *appendableStruct) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *appendableStruct) keyOps(compiler *keyCompiler, skip bool) error {
	return compiler.delimited(skip, func() error { return m.memberOps(m, compiler, false) })
}

// mutableStruct encodes a DHEADER followed by one EMHEADER-prefixed
// parameter per present member.
type mutableStruct struct{ structCore }

func (m *mutableStruct) serialize(b *buffer.Buffer, value any, forKey bool) error {
	fields, err := structFields(m.name, value)
	if err != nil {
		return err
	}
	if forKey {
		return m.serializeKey(b, fields)
	}
	header := beginDelimited(b, true)
	for _, member := range m.members {
		value, present := fields[member.name]
		if !present || value == nil {
			if member.optional {
				continue
			}
			return invalidValue("struct %s: member %q is missing", m.name, member.name)
		}
		if err := writeParameter(b, member.id, member.mustUnderstand || member.key, member.machine, value); err != nil {
			return fmt.Errorf("%s.%s: %w", m.name, member.name, err)
		}
	}
	endDelimited(b, header)
	return nil
}

func (m *mutableStruct) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	result := make(idl.Struct, len(m.members))
	seen := make([]bool, len(m.members))
	for {
		b.Align(4)
		if b.Tell() >= end {
			break
		}
		parameter, err := readParameter(b, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		index, known := m.byID[parameter.id]
		if !known {
			if parameter.mustUnderstand {
				return nil, &MustUnderstandError{Type: m.name, ID: parameter.id}
			}
			b.Seek(parameter.end)
			continue
		}
		member := m.members[index]
		value, err := member.machine.deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, member.name, err)
		}
		if b.Tell() > parameter.end {
			return nil, corrupt("%s.%s: member read %d bytes past its declared length", m.name, member.name, b.Tell()-parameter.end)
		}
		b.Seek(parameter.end)
		result[member.name] = value
		seen[index] = true
	}
	for index, member := range m.members {
		if !seen[index] {
			result[member.name] = m.memberDefault(member)
		}
	}
	b.Seek(end)
	return result, nil
}

func (m *mutableStruct) defaultValue() any { return m.defaultStruct() }

func (m *mutableStruct) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *mutableStruct) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.emit(keyvm.Op{Code: keyvm.StructHeader})
	if !skip {
		if err := compiler.enter(m, m.name); err != nil {
			return err
		}
		for _, index := range m.keyOrder {
			member := m.members[index]
			selector := compiler.emit(keyvm.Op{Code: keyvm.MemberSelect, Label: int64(member.id)})
			if err := member.machine.keyOps(compiler, false); err != nil {
				return fmt.Errorf("%s.%s: %w", m.name, member.name, err)
			}
			compiler.emit(keyvm.Op{Code: keyvm.MemberSelectEnd})
			compiler.land(selector)
		}
		compiler.leave(m)
	}
	compiler.emit(keyvm.Op{Code: keyvm.AppendableJumpToEnd})
	return nil
}

// lengthCodes maps a fixed member width to its EMHEADER length code.
var lengthCodes = map[int]uint32{1: 0, 2: 1, 4: 2, 8: 3}

// writeParameter writes one EMHEADER-prefixed member: length codes 0-3
// for 1, 2, 4, and 8-byte members, otherwise length code 4 with a
// NEXTINT holding the member length.
func writeParameter(b *buffer.Buffer, id uint32, mustUnderstand bool, m machine, value any) error {
	header := id
	if mustUnderstand {
		header |= mustUnderstandFlag
	}
	if sizer, ok := m.(fixedSizer); ok {
		if code, ok := lengthCodes[sizer.fixedSize()]; ok {
			b.WriteUint32(header | code<<28)
			return m.serialize(b, value, false)
		}
	}
	b.WriteUint32(header | 4<<28)
	nextInt := beginDelimited(b, true)
	if err := m.serialize(b, value, false); err != nil {
		return err
	}
	endDelimited(b, nextInt)
	return nil
}

type parameter struct {
	id             uint32
	mustUnderstand bool
	end            int
}

// readParameter reads an EMHEADER (and NEXTINT when the length code
// needs one) and leaves the cursor at the member data. Length codes 5
// to 7 make the NEXTINT part of the member data.
func readParameter(b *buffer.Buffer, limit int) (parameter, error) {
	header, err := b.ReadUint32()
	if err != nil {
		return parameter{}, err
	}
	result := parameter{
		id:             header & idl.MaxMemberID,
		mustUnderstand: header&mustUnderstandFlag != 0,
	}
	lengthCode := (header >> 28) & 0x7
	start := b.Tell()
	var size int64
	if lengthCode < 4 {
		size = 1 << lengthCode
	} else {
		nextInt, err := b.ReadUint32()
		if err != nil {
			return parameter{}, err
		}
		switch lengthCode {
		case 4:
			start = b.Tell()
			size = int64(nextInt)
		case 5:
			size = 4 + int64(nextInt)
		case 6:
			size = 4 + 4*int64(nextInt)
		case 7:
			size = 4 + 8*int64(nextInt)
		}
		b.Seek(start)
	}
	if int64(start)+size > int64(limit) {
		return parameter{}, corrupt("member %d of %d bytes overruns its container", result.id, size)
	}
	result.end = start + int(size)
	return result, nil
}

// optionalMachine writes a presence byte and, when present, the value.
// Mutable structs do not use it: absence there means no parameter.
type optionalMachine struct {
	inner machine
}

func (m *optionalMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	if forKey {
		return invalidValue("optional members cannot be part of a key")
	}
	if value == nil {
		b.WriteUint8(0)
		return nil
	}
	b.WriteUint8(1)
	return m.inner.serialize(b, value, false)
}

func (m *optionalMachine) deserialize(b *buffer.Buffer) (any, error) {
	present, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return m.inner.deserialize(b)
}

func (m *optionalMachine) defaultValue() any { return nil }

func (m *optionalMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return unboundedKeySize
}

func (m *optionalMachine) keyOps(compiler *keyCompiler, skip bool) error {
	if !skip {
		return fmt.Errorf("%w: optional members cannot be part of a key", ErrUnsupportedEncoding)
	}
	guard := compiler.emit(keyvm.Op{Code: keyvm.Optional})
	if err := m.inner.keyOps(compiler, true); err != nil {
		return err
	}
	compiler.land(guard)
	return nil
}
