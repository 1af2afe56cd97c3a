// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"strings"
)

// String renders a type expression in IDL-like syntax. Named types
// render as their qualified name; see [Type.Declaration] for the body.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindString:
		if t.Bound > 0 {
			return fmt.Sprintf("string<%d>", t.Bound)
		}
		return "string"
	case KindSequence:
		if t.Bound > 0 {
			return fmt.Sprintf("sequence<%s, %d>", t.Element, t.Bound)
		}
		return fmt.Sprintf("sequence<%s>", t.Element)
	case KindArray:
		dimensions := make([]string, len(t.Dimensions))
		for index, dimension := range t.Dimensions {
			dimensions[index] = fmt.Sprint(dimension)
		}
		return fmt.Sprintf("array<%s, %s>", t.Element, strings.Join(dimensions, ", "))
	case KindMap:
		if t.Bound > 0 {
			return fmt.Sprintf("map<%s, %s, %d>", t.KeyType, t.Element, t.Bound)
		}
		return fmt.Sprintf("map<%s, %s>", t.KeyType, t.Element)
	case KindOptional:
		return fmt.Sprintf("optional<%s>", t.Element)
	case KindStruct, KindUnion, KindEnum, KindBitmask, KindAlias, KindForward:
		return t.Name
	}
	return t.Kind.String()
}

// Declaration renders the full declaration of a named type, e.g.
//
//	@appendable struct demo::Point {
//	    @key int32 x;
//	    @optional string label;
//	};
//
// For other kinds it returns the same text as String.
func (t *Type) Declaration() string {
	var builder strings.Builder
	switch t.Kind {
	case KindStruct:
		writeExtensibility(&builder, t.Extensibility)
		fmt.Fprintf(&builder, "struct %s {\n", t.Name)
		for _, member := range t.Members {
			builder.WriteString("    ")
			if member.Key {
				builder.WriteString("@key ")
			}
			if member.Optional {
				builder.WriteString("@optional ")
			}
			if member.MustUnderstand {
				builder.WriteString("@must_understand ")
			}
			if member.HasID {
				fmt.Fprintf(&builder, "@id(%d) ", member.ID)
			}
			fmt.Fprintf(&builder, "%s %s;\n", member.Type, member.Name)
		}
		builder.WriteString("};")
	case KindUnion:
		writeExtensibility(&builder, t.Extensibility)
		fmt.Fprintf(&builder, "union %s switch (%s) {\n", t.Name, t.Discriminator)
		for _, unionCase := range t.Cases {
			for _, label := range unionCase.Labels {
				fmt.Fprintf(&builder, "    case %d:\n", label)
			}
			if unionCase.Default {
				builder.WriteString("    default:\n")
			}
			if unionCase.Type == nil {
				fmt.Fprintf(&builder, "        /* void */ %s;\n", unionCase.Name)
			} else {
				fmt.Fprintf(&builder, "        %s %s;\n", unionCase.Type, unionCase.Name)
			}
		}
		builder.WriteString("};")
	case KindEnum:
		if t.BitBound != 0 && t.BitBound != 32 {
			fmt.Fprintf(&builder, "@bit_bound(%d) ", t.BitBound)
		}
		fmt.Fprintf(&builder, "enum %s {", t.Name)
		for index, literal := range t.Literals {
			if index > 0 {
				builder.WriteString(",")
			}
			fmt.Fprintf(&builder, " @value(%d) %s", literal.Value, literal.Name)
		}
		builder.WriteString(" };")
	case KindBitmask:
		fmt.Fprintf(&builder, "@bit_bound(%d) bitmask %s {", t.BitBound, t.Name)
		for index, flag := range t.Flags {
			if index > 0 {
				builder.WriteString(",")
			}
			fmt.Fprintf(&builder, " @position(%d) %s", flag.Position, flag.Name)
		}
		builder.WriteString(" };")
	case KindAlias:
		fmt.Fprintf(&builder, "typedef %s %s;", t.Element, t.Name)
	default:
		return t.String()
	}
	return builder.String()
}

func writeExtensibility(builder *strings.Builder, extensibility Extensibility) {
	if extensibility != Final {
		fmt.Fprintf(builder, "@%s ", extensibility)
	}
}
