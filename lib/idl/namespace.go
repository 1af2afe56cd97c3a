// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"errors"
	"fmt"
)

// Namespace collects named type declarations and binds forward
// references between them. It is the second phase of two-phase type
// construction: declare every type (members may refer to placeholders
// from [Namespace.Forward]), then call [Namespace.Resolve].
//
// A Namespace is not safe for concurrent use.
type Namespace struct {
	types    map[string]*Type
	order    []*Type
	forwards []*Type
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{types: make(map[string]*Type)}
}

// Declare registers named types. Declaring two different types under
// the same qualified name is an error.
func (n *Namespace) Declare(types ...*Type) error {
	for _, declared := range types {
		if declared == nil || !declared.Kind.IsNamed() {
			return fmt.Errorf("idl: only named types can be declared, got %v", declared)
		}
		if declared.Name == "" {
			return fmt.Errorf("idl: cannot declare unnamed %s", declared.Kind)
		}
		if existing, ok := n.types[declared.Name]; ok {
			if existing == declared {
				continue
			}
			return fmt.Errorf("idl: %q declared twice", declared.Name)
		}
		n.types[declared.Name] = declared
		n.order = append(n.order, declared)
	}
	return nil
}

// Lookup returns the declared type with the given qualified name.
func (n *Namespace) Lookup(name string) (*Type, bool) {
	declared, ok := n.types[name]
	return declared, ok
}

// Forward returns a reference to the named type. If the name is
// already declared the declared type itself is returned; otherwise a
// placeholder is recorded and bound by Resolve.
func (n *Namespace) Forward(name string) *Type {
	if declared, ok := n.types[name]; ok {
		return declared
	}
	placeholder := Forward(name)
	n.forwards = append(n.forwards, placeholder)
	return placeholder
}

// Types returns the declared types in declaration order.
func (n *Namespace) Types() []*Type {
	return append([]*Type(nil), n.order...)
}

// Resolve binds every placeholder created by Forward to its declared
// type, then normalizes every declared type. Unknown names are
// reported together.
func (n *Namespace) Resolve() error {
	var unresolved []error
	for _, placeholder := range n.forwards {
		declared, ok := n.types[placeholder.Name]
		if !ok {
			unresolved = append(unresolved, fmt.Errorf("idl: unresolved reference to %q", placeholder.Name))
			continue
		}
		placeholder.Bind(declared)
	}
	if len(unresolved) > 0 {
		return errors.Join(unresolved...)
	}
	n.forwards = nil
	for _, declared := range n.order {
		if err := Normalize(declared); err != nil {
			return err
		}
	}
	return nil
}
