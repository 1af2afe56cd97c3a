// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idlschema

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

func TestParseType(t *testing.T) {
	point := idl.NewStruct("demo::Point", idl.Final)
	lookup := func(name string) (*idl.Type, bool) {
		if name == "demo::Point" || name == "::demo::Point" {
			return point, true
		}
		return nil, false
	}

	tests := []struct {
		expression string
		want       string
	}{
		{"int32", "int32"},
		{"long", "int32"},
		{"  double ", "float64"},
		{"bool", "boolean"},
		{"octet", "octet"},
		{"string", "string"},
		{"string<32>", "string<32>"},
		{"bytes", "sequence<octet>"},
		{"bytes<8>", "sequence<octet, 8>"},
		{"sequence<int16>", "sequence<int16>"},
		{"sequence< sequence<int16,4> , 0x10 >", "sequence<sequence<int16, 4>, 16>"},
		{"array<float64,2,3>", "array<float64, 2, 3>"},
		{"map<string,int64>", "map<string, int64>"},
		{"map<uint16, string<8>, 5>", "map<uint16, string<8>, 5>"},
		{"optional<demo::Point>", "optional<demo::Point>"},
		{"sequence<::demo::Point>", "sequence<demo::Point>"},
	}
	for _, test := range tests {
		t.Run(test.expression, func(t *testing.T) {
			parsed, err := ParseType(test.expression, lookup)
			require.NoError(t, err)
			require.Equal(t, test.want, parsed.String())
		})
	}

	parsed, err := ParseType("demo::Point", lookup)
	require.NoError(t, err)
	require.Same(t, point, parsed)
}

func TestParseTypeErrors(t *testing.T) {
	tests := []struct {
		expression string
		offset     int
	}{
		{"", 0},
		{"int32 x", 6},
		{"int32<3>", 5},
		{"sequence<int32", 14},
		{"sequence int32", 9},
		{"array<int32>", 11},
		{"array<int32, 0>", 14},
		{"string<abc>", 7},
		{"string<4294967296>", 7},
		{"map<int32>", 9},
		{"Unknown", 0},
		{"sequence<Unknown, 3>", 9},
		{"int32:b", 5},
		{"<int32>", 0},
	}
	for _, test := range tests {
		t.Run(test.expression, func(t *testing.T) {
			_, err := ParseType(test.expression, nil)
			var syntaxError *SyntaxError
			require.True(t, errors.As(err, &syntaxError), "error %v is not a SyntaxError", err)
			require.Equal(t, test.offset, syntaxError.Offset, "error: %v", err)
		})
	}
}

// anonymousType deterministically builds a type tree from choices.
func anonymousType(choices *[]uint8, depth int) *idl.Type {
	next := func() uint8 {
		if len(*choices) == 0 {
			return 0
		}
		choice := (*choices)[0]
		*choices = (*choices)[1:]
		return choice
	}
	leaves := []*idl.Type{idl.Bool, idl.Byte, idl.Char, idl.Int16, idl.Uint32, idl.Int64, idl.Float32, idl.Float64}
	choice := next()
	if depth >= 3 {
		choice %= 2
	}
	bound := uint32(next() % 4)
	switch choice % 6 {
	case 0:
		return leaves[int(next())%len(leaves)]
	case 1:
		return idl.String(bound * 8)
	case 2:
		return idl.Sequence(anonymousType(choices, depth+1), bound)
	case 3:
		return idl.Array(anonymousType(choices, depth+1), bound+1, uint32(next()%3)+1)
	case 4:
		return idl.Map(idl.String(bound), anonymousType(choices, depth+1), uint32(next()%2)*16)
	}
	return idl.Array(anonymousType(choices, depth+1), bound+2)
}

func TestPropertyParseTypeInvertsString(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("ParseType(t.String()) renders as t", prop.ForAll(
		func(choices []uint8) bool {
			generated := anonymousType(&choices, 0)
			parsed, err := ParseType(generated.String(), nil)
			if err != nil {
				t.Logf("ParseType(%q): %v", generated, err)
				return false
			}
			return parsed.String() == generated.String()
		},
		gen.SliceOfN(24, gen.UInt8()),
	))
	properties.TestingRun(t)
}
