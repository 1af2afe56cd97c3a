// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/xcdr/lib/cdr"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/typelib"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

type registration struct {
	Types        int
	ObjectsAdded int
}

// register stores the TypeObjects of every type and of the types they
// depend on, and records each type's identifiers under its name.
func register(ctx context.Context, library *typelib.Library, types []*idl.Type) (registration, error) {
	var summary registration
	builder := xtypes.NewBuilder(nil)
	for _, declared := range types {
		mapping, err := builder.TypeMapping(declared)
		if err != nil {
			return summary, fmt.Errorf("computing identity of %s: %w", declared.Name, err)
		}
		added, err := library.PutMapping(ctx, mapping)
		if err != nil {
			return summary, fmt.Errorf("storing %s: %w", declared.Name, err)
		}
		hash, err := builder.TypeHash(declared)
		if err != nil {
			return summary, fmt.Errorf("computing identity of %s: %w", declared.Name, err)
		}
		if err := library.PutTypeHash(ctx, hash); err != nil {
			return summary, fmt.Errorf("recording %s: %w", declared.Name, err)
		}
		summary.Types++
		summary.ObjectsAdded += added
	}
	return summary, nil
}

// describe prints each type's declaration followed by its identifiers
// and the hex encoding of its complete identifier, which --resolve
// accepts. Structs and unions also show their default sample encoded
// with codecConfig, and the sample's key hash when the type is keyed.
func describe(w io.Writer, types []*idl.Type, codecConfig cdr.Config) error {
	builder := xtypes.NewBuilder(nil)
	for _, declared := range types {
		hash, err := builder.TypeHash(declared)
		if err != nil {
			return fmt.Errorf("computing identity of %s: %w", declared.Name, err)
		}
		encoded, err := xtypes.MarshalTypeIdentifier(hash.CompleteID)
		if err != nil {
			return fmt.Errorf("encoding identifier of %s: %w", declared.Name, err)
		}
		var text strings.Builder
		fmt.Fprintf(&text, "%s\n  minimal:  %s\n  complete: %s\n  id:       %x\n",
			declared.Declaration(), hash.MinimalID, hash.CompleteID, encoded)
		if declared.Kind == idl.KindStruct || declared.Kind == idl.KindUnion {
			describeSample(&text, declared, codecConfig)
		}
		text.WriteString("\n")
		if _, err := io.WriteString(w, text.String()); err != nil {
			return err
		}
	}
	return nil
}

func describeSample(text *strings.Builder, declared *idl.Type, codecConfig cdr.Config) {
	codec := cdr.New(declared, codecConfig)
	sample, err := codec.Default()
	if err == nil {
		var data []byte
		if data, err = codec.Serialize(sample); err == nil {
			fmt.Fprintf(text, "  sample:   %x\n", data)
		}
	}
	if err != nil {
		fmt.Fprintf(text, "  sample:   unavailable: %v\n", err)
		return
	}
	if len(declared.KeyMembers()) == 0 {
		return
	}
	keyHash, err := codec.KeyHash(sample)
	if err != nil {
		fmt.Fprintf(text, "  key hash: unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(text, "  key hash: %x\n", keyHash)
}
