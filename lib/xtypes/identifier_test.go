// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"bytes"
	"errors"
	"testing"
)

func testHash(seed byte) EquivalenceHash {
	var hash EquivalenceHash
	for index := range hash {
		hash[index] = seed + byte(index)
	}
	return hash
}

func TestMarshalTypeIdentifierWire(t *testing.T) {
	hash := testHash(0x20)
	tests := []struct {
		name string
		id   TypeIdentifier
		want []byte
	}{
		{
			name: "primitive",
			id:   Primitive(IdentifierInt32),
			want: []byte{0x04},
		},
		{
			name: "small string",
			id:   StringIdentifier(10),
			want: []byte{0x70, 0x0a},
		},
		{
			name: "large string",
			id:   StringIdentifier(300),
			want: []byte{0x71, 0x00, 0x00, 0x00, 0x2c, 0x01, 0x00, 0x00},
		},
		{
			name: "complete hash",
			id:   HashIdentifier(EquivalenceComplete, hash),
			want: append([]byte{0xf2}, hash[:]...),
		},
		{
			name: "plain sequence of primitives",
			id:   SequenceIdentifier(Primitive(IdentifierInt32), 10, EquivalenceComplete),
			want: []byte{
				0x80,       // plain sequence, small
				0xf3,       // equivalence both
				0x01, 0x00, // element flags
				0x0a, // bound
				0x04, // element int32
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := MarshalTypeIdentifier(test.id)
			if err != nil {
				t.Fatalf("MarshalTypeIdentifier: %v", err)
			}
			if !bytes.Equal(data, test.want) {
				t.Fatalf("got % x, want % x", data, test.want)
			}
			decoded, err := UnmarshalTypeIdentifier(data)
			if err != nil {
				t.Fatalf("UnmarshalTypeIdentifier: %v", err)
			}
			if !decoded.Equal(test.id) {
				t.Fatalf("decoded %s, want %s", decoded, test.id)
			}
		})
	}
}

func TestTypeIdentifierRoundTrip(t *testing.T) {
	structure := HashIdentifier(EquivalenceMinimal, testHash(1))
	ids := []TypeIdentifier{
		Primitive(IdentifierBoolean),
		Primitive(IdentifierChar8),
		StringIdentifier(0),
		SequenceIdentifier(structure, 0, EquivalenceMinimal),
		SequenceIdentifier(StringIdentifier(8), 1000, EquivalenceComplete),
		ArrayIdentifier(Primitive(IdentifierFloat64), []uint32{3, 4}, EquivalenceComplete),
		ArrayIdentifier(structure, []uint32{2, 500}, EquivalenceMinimal),
		MapIdentifier(StringIdentifier(0), structure, 0, EquivalenceMinimal),
		MapIdentifier(Primitive(IdentifierInt32), Primitive(IdentifierInt64), 300, EquivalenceComplete),
		ComponentIdentifier(EquivalenceComplete, testHash(9), 3, 2),
		SequenceIdentifier(SequenceIdentifier(structure, 4, EquivalenceMinimal), 2, EquivalenceMinimal),
	}
	for _, id := range ids {
		data, err := MarshalTypeIdentifier(id)
		if err != nil {
			t.Fatalf("MarshalTypeIdentifier(%s): %v", id, err)
		}
		decoded, err := UnmarshalTypeIdentifier(data)
		if err != nil {
			t.Fatalf("UnmarshalTypeIdentifier(%s): %v", id, err)
		}
		if !decoded.Equal(id) {
			t.Errorf("round trip of %s gave %s", id, decoded)
		}
	}
}

func TestPlainCollectionSizeForms(t *testing.T) {
	if kind := SequenceIdentifier(Primitive(IdentifierByte), 255, EquivalenceComplete).Kind; kind != IdentifierPlainSequenceSmall {
		t.Errorf("sequence bound 255 is %s", kind)
	}
	if kind := SequenceIdentifier(Primitive(IdentifierByte), 256, EquivalenceComplete).Kind; kind != IdentifierPlainSequenceLarge {
		t.Errorf("sequence bound 256 is %s", kind)
	}
	if kind := ArrayIdentifier(Primitive(IdentifierByte), []uint32{2, 256}, EquivalenceComplete).Kind; kind != IdentifierPlainArrayLarge {
		t.Errorf("array with dimension 256 is %s", kind)
	}
}

func TestFullyDescriptive(t *testing.T) {
	hashed := HashIdentifier(EquivalenceComplete, testHash(3))
	tests := []struct {
		id   TypeIdentifier
		want bool
	}{
		{Primitive(IdentifierUint16), true},
		{StringIdentifier(4), true},
		{SequenceIdentifier(StringIdentifier(0), 0, EquivalenceComplete), true},
		{hashed, false},
		{SequenceIdentifier(hashed, 0, EquivalenceComplete), false},
		{MapIdentifier(hashed, Primitive(IdentifierInt32), 0, EquivalenceComplete), false},
	}
	for _, test := range tests {
		if got := test.id.FullyDescriptive(); got != test.want {
			t.Errorf("%s: FullyDescriptive = %v, want %v", test.id, got, test.want)
		}
	}
	if got := SequenceIdentifier(hashed, 0, EquivalenceComplete).Equivalence; got != EquivalenceComplete {
		t.Errorf("sequence of hashed element has header kind %s", got)
	}
}

func TestMarshalRejectsInvalidIdentifiers(t *testing.T) {
	ids := []TypeIdentifier{
		{Kind: IdentifierKind(0x55)},
		{Kind: IdentifierPlainSequenceSmall},
		{Kind: IdentifierString8Small, Bound: 256},
		{Kind: IdentifierStronglyConnectedComponent, ComponentKind: EquivalenceBoth},
	}
	for _, id := range ids {
		if _, err := MarshalTypeIdentifier(id); !errors.Is(err, ErrMalformedTypeIdentifier) {
			t.Errorf("MarshalTypeIdentifier(%s) error = %v, want ErrMalformedTypeIdentifier", id, err)
		}
	}
}

func TestUnmarshalRejectsTruncatedIdentifier(t *testing.T) {
	if _, err := UnmarshalTypeIdentifier([]byte{0xf2, 0x01, 0x02}); !errors.Is(err, ErrMalformedTypeIdentifier) {
		t.Fatalf("error = %v, want ErrMalformedTypeIdentifier", err)
	}
}

func TestNameHashOf(t *testing.T) {
	// MD5("x") = 9dd4e461268c8034f5c8564e155c67a6
	want := NameHash{0x9d, 0xd4, 0xe4, 0x61}
	if got := NameHashOf("x"); got != want {
		t.Fatalf("NameHashOf(x) = % x, want % x", got, want)
	}
}
