// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

type caseMachine struct {
	name      string
	id        uint32
	labels    []int64
	isDefault bool

	// machine is nil for a void case.
	machine machine
}

// unionCore is shared by the three union variants.
type unionCore struct {
	name                 string
	declaration          *idl.Type
	discriminator        discriminatorMachine
	cases                []caseMachine
	keyDiscriminatorOnly bool
}

func unionFields(name string, value any) (idl.Union, error) {
	switch union := value.(type) {
	case idl.Union:
		return union, nil
	case *idl.Union:
		if union != nil {
			return *union, nil
		}
	}
	return idl.Union{}, invalidValue("union %s wants idl.Union, got %T", name, value)
}

// selected returns the case the discriminator picks, or nil when it
// picks none or a void case.
func (c *unionCore) selected(discriminator int64) *caseMachine {
	index := c.declaration.SelectCase(discriminator)
	if index < 0 || c.cases[index].machine == nil {
		return nil
	}
	return &c.cases[index]
}

func (c *unionCore) serializeBody(b *buffer.Buffer, union idl.Union, forKey bool) error {
	if err := c.discriminator.serialize(b, c.discriminator.fromDiscriminator(union.Discriminator), forKey); err != nil {
		return fmt.Errorf("%s discriminator: %w", c.name, err)
	}
	if forKey && c.keyDiscriminatorOnly {
		return nil
	}
	selected := c.selected(union.Discriminator)
	if selected == nil {
		return nil
	}
	if err := selected.machine.serialize(b, union.Value, forKey); err != nil {
		return fmt.Errorf("%s.%s: %w", c.name, selected.name, err)
	}
	return nil
}

func (c *unionCore) deserializeBody(b *buffer.Buffer) (idl.Union, error) {
	raw, err := c.discriminator.deserialize(b)
	if err != nil {
		return idl.Union{}, fmt.Errorf("%s discriminator: %w", c.name, err)
	}
	discriminator, err := c.discriminator.toDiscriminator(raw)
	if err != nil {
		return idl.Union{}, err
	}
	union := idl.Union{Discriminator: discriminator}
	if selected := c.selected(discriminator); selected != nil {
		if union.Value, err = selected.machine.deserialize(b); err != nil {
			return idl.Union{}, fmt.Errorf("%s.%s: %w", c.name, selected.name, err)
		}
	}
	return union, nil
}

// defaultUnion selects the default case with a discriminator no label
// claims. When there is no default case, or every discriminator value
// is claimed, it selects the first labelled case.
func (c *unionCore) defaultUnion() idl.Union {
	for _, unionCase := range c.cases {
		if !unionCase.isDefault {
			continue
		}
		discriminator, ok := c.declaration.ImplicitDefault()
		if !ok {
			break
		}
		union := idl.Union{Discriminator: discriminator}
		if unionCase.machine != nil {
			union.Value = unionCase.machine.defaultValue()
		}
		return union
	}
	for _, unionCase := range c.cases {
		if len(unionCase.labels) == 0 {
			continue
		}
		union := idl.Union{Discriminator: unionCase.labels[0]}
		if unionCase.machine != nil {
			union.Value = unionCase.machine.defaultValue()
		}
		return union
	}
	discriminator, _ := c.discriminator.toDiscriminator(c.discriminator.defaultValue())
	return idl.Union{Discriminator: discriminator}
}

func (c *unionCore) scanKey(self machine, scanner *keyScanner, size KeySize) KeySize {
	if !scanner.enter(self) {
		return unboundedKeySize
	}
	defer scanner.leave(self)
	size = c.discriminator.keyScan(scanner, size)
	if c.keyDiscriminatorOnly {
		return size
	}
	var outcomes []KeySize
	hasDefault := false
	for _, unionCase := range c.cases {
		hasDefault = hasDefault || unionCase.isDefault
		if unionCase.machine == nil {
			outcomes = append(outcomes, size)
			continue
		}
		outcomes = append(outcomes, unionCase.machine.keyScan(scanner, size))
	}
	if !hasDefault {
		outcomes = append(outcomes, size)
	}
	return alternatives(outcomes)
}

// dispatchOps emits the discriminator read, the case table, and one
// body per case. In a mutable union each body first selects its
// parameter by case id.
func (c *unionCore) dispatchOps(self machine, compiler *keyCompiler, skip, mutable bool) error {
	if err := compiler.enter(self, c.name); err != nil {
		return err
	}
	defer compiler.leave(self)

	bodySkip := skip || c.keyDiscriminatorOnly
	dispatch := keyvm.Op{
		Code:   keyvm.UnionCode(c.discriminator.fixedSize()),
		Signed: c.discriminator.signed(),
		Skip:   skip,
	}
	if mutable && bodySkip {
		union := compiler.emit(dispatch)
		compiler.land(union)
		return nil
	}

	for _, unionCase := range c.cases {
		dispatch.Count += int32(len(unionCase.labels))
		if unionCase.isDefault {
			dispatch.Count++
		}
	}
	union := compiler.emit(dispatch)
	type entry struct{ op, caseIndex int }
	var table []entry
	for caseIndex, unionCase := range c.cases {
		for _, label := range unionCase.labels {
			table = append(table, entry{compiler.emit(keyvm.Op{Code: keyvm.CaseLabel, Label: label}), caseIndex})
		}
		if unionCase.isDefault {
			table = append(table, entry{compiler.emit(keyvm.Op{Code: keyvm.CaseDefault}), caseIndex})
		}
	}

	var exits []int
	for caseIndex, unionCase := range c.cases {
		for _, tableEntry := range table {
			if tableEntry.caseIndex == caseIndex {
				compiler.land(tableEntry.op)
			}
		}
		if unionCase.machine != nil {
			selector := -1
			if mutable {
				selector = compiler.emit(keyvm.Op{Code: keyvm.MemberSelect, Label: int64(unionCase.id)})
			}
			if err := unionCase.machine.keyOps(compiler, bodySkip); err != nil {
				return fmt.Errorf("%s.%s: %w", c.name, unionCase.name, err)
			}
			if mutable {
				compiler.emit(keyvm.Op{Code: keyvm.MemberSelectEnd})
				compiler.land(selector)
			}
		}
		exits = append(exits, compiler.emit(keyvm.Op{Code: keyvm.Jump}))
	}
	compiler.land(union)
	for _, exit := range exits {
		compiler.land(exit)
	}
	return nil
}

// finalUnion encodes the discriminator followed by the selected case.
type finalUnion struct{ unionCore }

func (m *finalUnion) serialize(b *buffer.Buffer, value any, forKey bool) error {
	union, err := unionFields(m.name, value)
	if err != nil {
		return err
	}
	return m.serializeBody(b, union, forKey)
}

func (m *finalUnion) deserialize(b *buffer.Buffer) (any, error) {
	return m.deserializeBody(b)
}

func (m *finalUnion) defaultValue() any { return m.defaultUnion() }

func (m *finalUnion) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *finalUnion) keyOps(compiler *keyCompiler, skip bool) error {
	return m.dispatchOps(m, compiler, skip, false)
}

// appendableUnion prefixes the final encoding with a DHEADER.
type appendableUnion struct{ unionCore }

func (m *appendableUnion) serialize(b *buffer.Buffer, value any, forKey bool) error {
	union, err := unionFields(m.name, value)
	if err != nil {
		return err
	}
	if forKey {
		return m.serializeBody(b, union, true)
	}
	header := beginDelimited(b, true)
	if err := m.serializeBody(b, union, false); err != nil {
		return err
	}
	endDelimited(b, header)
	return nil
}

func (m *appendableUnion) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	union, err := m.deserializeBody(b)
	if err != nil {
		return nil, err
	}
	if err := finishDelimited(b, end); err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return union, nil
}

func (m *appendableUnion) defaultValue() any { return m.defaultUnion() }

func (m *appendableUnion) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *appendableUnion) keyOps(compiler *keyCompiler, skip bool) error {
	return compiler.delimited(skip, func() error { return m.dispatchOps(m, compiler, false, false) })
}

// mutableUnion encodes a DHEADER, the discriminator as parameter 0
// (always must-understand), then the selected case as a parameter
// with its case id. A payload whose selected case has no parameter is
// rejected, as the key program rejects it.
type mutableUnion struct{ unionCore }

func (m *mutableUnion) serialize(b *buffer.Buffer, value any, forKey bool) error {
	union, err := unionFields(m.name, value)
	if err != nil {
		return err
	}
	if forKey {
		return m.serializeBody(b, union, true)
	}
	header := beginDelimited(b, true)
	discriminator := m.discriminator.fromDiscriminator(union.Discriminator)
	if err := writeParameter(b, 0, true, m.discriminator, discriminator); err != nil {
		return fmt.Errorf("%s discriminator: %w", m.name, err)
	}
	if selected := m.selected(union.Discriminator); selected != nil {
		if err := writeParameter(b, selected.id, false, selected.machine, union.Value); err != nil {
			return fmt.Errorf("%s.%s: %w", m.name, selected.name, err)
		}
	}
	endDelimited(b, header)
	return nil
}

func (m *mutableUnion) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	starts := make(map[uint32]int)
	ends := make(map[uint32]int)
	for {
		b.Align(4)
		if b.Tell() >= end {
			break
		}
		parameter, err := readParameter(b, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		if parameter.mustUnderstand && parameter.id != 0 && !m.knownCase(parameter.id) {
			return nil, &MustUnderstandError{Type: m.name, ID: parameter.id}
		}
		starts[parameter.id] = b.Tell()
		ends[parameter.id] = parameter.end
		b.Seek(parameter.end)
	}

	start, ok := starts[0]
	if !ok {
		return nil, corrupt("%s: discriminator parameter missing", m.name)
	}
	b.Seek(start)
	raw, err := m.discriminator.deserialize(b)
	if err != nil {
		return nil, fmt.Errorf("%s discriminator: %w", m.name, err)
	}
	if b.Tell() > ends[0] {
		return nil, corrupt("%s: discriminator overruns its parameter", m.name)
	}
	discriminator, err := m.discriminator.toDiscriminator(raw)
	if err != nil {
		return nil, err
	}
	union := idl.Union{Discriminator: discriminator}
	if selected := m.selected(discriminator); selected != nil {
		start, present := starts[selected.id]
		if !present {
			return nil, corrupt("%s.%s: selected case parameter missing", m.name, selected.name)
		}
		b.Seek(start)
		if union.Value, err = selected.machine.deserialize(b); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, selected.name, err)
		}
		if b.Tell() > ends[selected.id] {
			return nil, corrupt("%s.%s: case overruns its parameter", m.name, selected.name)
		}
	}
	b.Seek(end)
	return union, nil
}

func (m *mutableUnion) knownCase(id uint32) bool {
	for _, unionCase := range m.cases {
		if unionCase.id == id {
			return true
		}
	}
	return false
}

func (m *mutableUnion) defaultValue() any { return m.defaultUnion() }

func (m *mutableUnion) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return m.scanKey(m, scanner, size)
}

func (m *mutableUnion) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.emit(keyvm.Op{Code: keyvm.StructHeader})
	if !skip {
		selector := compiler.emit(keyvm.Op{Code: keyvm.MemberSelect, Label: 0})
		if err := m.dispatchOps(m, compiler, false, true); err != nil {
			return err
		}
		compiler.emit(keyvm.Op{Code: keyvm.MemberSelectEnd})
		compiler.land(selector)
	}
	compiler.emit(keyvm.Op{Code: keyvm.AppendableJumpToEnd})
	return nil
}
