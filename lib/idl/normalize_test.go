// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"strings"
	"testing"
)

func TestNormalizeAssignsSequentialIDs(t *testing.T) {
	point := NewStruct("demo::Point", Final).SetMembers(
		Member{Name: "x", Type: Int32},
		Member{Name: "y", Type: Int32, ID: 10, HasID: true},
		Member{Name: "z", Type: Int32},
	)
	if err := Normalize(point); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []uint32{0, 10, 11}
	for index, member := range point.Members {
		if member.ID != want[index] {
			t.Errorf("member %q id = %d, want %d", member.Name, member.ID, want[index])
		}
	}
}

func TestNormalizeAssignsHashIDs(t *testing.T) {
	hashed := NewStruct("demo::Hashed", Mutable)
	hashed.AutoID = AutoIDHash
	hashed.SetMembers(Member{Name: "value", Type: Int32})
	if err := Normalize(hashed); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, want := hashed.Members[0].ID, HashMemberID("value"); got != want {
		t.Fatalf("id = %#x, want %#x", got, want)
	}
	if hashed.Members[0].ID > MaxMemberID {
		t.Fatalf("hash id %#x exceeds 28 bits", hashed.Members[0].ID)
	}
}

func TestNormalizeFoldsOptional(t *testing.T) {
	node := NewStruct("demo::Node", Final)
	node.SetMembers(
		Member{Name: "value", Type: Int32},
		Member{Name: "next", Type: Optional(node)},
	)
	if err := Normalize(node); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	next := node.Members[1]
	if !next.Optional || next.Type != node {
		t.Fatalf("next = {Optional: %v, Type: %v}, want optional self reference", next.Optional, next.Type)
	}
}

func TestNamespaceResolvesMutualRecursion(t *testing.T) {
	namespace := NewNamespace()
	a := NewStruct("A", Final)
	a.SetMembers(Member{Name: "b", Type: Optional(namespace.Forward("B"))})
	b := NewStruct("B", Final)
	b.SetMembers(Member{Name: "a", Type: Optional(a)})
	if err := namespace.Declare(a, b); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if err := namespace.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Members[0].Type != b {
		t.Fatalf("A.b resolved to %v, want B", a.Members[0].Type)
	}
}

func TestNamespaceReportsUnresolved(t *testing.T) {
	namespace := NewNamespace()
	holder := NewStruct("Holder", Final)
	holder.SetMembers(Member{Name: "missing", Type: namespace.Forward("Missing")})
	if err := namespace.Declare(holder); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	err := namespace.Resolve()
	if err == nil || !strings.Contains(err.Error(), `"Missing"`) {
		t.Fatalf("Resolve error = %v, want unresolved Missing", err)
	}
}

func TestNormalizeRejectsInvalidTypes(t *testing.T) {
	tests := []struct {
		name string
		t    *Type
		want string
	}{
		{
			name: "duplicate member",
			t: NewStruct("S", Final).SetMembers(
				Member{Name: "a", Type: Int32},
				Member{Name: "a", Type: Int32},
			),
			want: "duplicate member",
		},
		{
			name: "duplicate id",
			t: NewStruct("S", Final).SetMembers(
				Member{Name: "a", Type: Int32, ID: 1, HasID: true},
				Member{Name: "b", Type: Int32, ID: 1, HasID: true},
			),
			want: "share id",
		},
		{
			name: "optional key",
			t:    NewStruct("S", Final).SetMembers(Member{Name: "a", Type: Optional(Int32), Key: true}),
			want: "cannot be optional",
		},
		{
			name: "optional element",
			t:    NewStruct("S", Final).SetMembers(Member{Name: "a", Type: Sequence(Optional(Int32), 0)}),
			want: "cannot be optional",
		},
		{
			name: "float discriminator",
			t:    NewUnion("U", Float32, Final).SetCases(Case{Name: "a", Type: Int32, Labels: []int64{1}}),
			want: "invalid discriminator",
		},
		{
			name: "duplicate label",
			t: NewUnion("U", Int32, Final).SetCases(
				Case{Name: "a", Type: Int32, Labels: []int64{1}},
				Case{Name: "b", Type: Int32, Labels: []int64{1}},
			),
			want: "label 1",
		},
		{
			name: "zero array dimension",
			t:    Array(Int32, 0),
			want: "dimension",
		},
		{
			name: "float map key",
			t:    Map(Float64, Int32, 0),
			want: "map key",
		},
		{
			name: "empty enum",
			t:    NewEnum("E"),
			want: "no enumerators",
		},
		{
			name: "bitmask position out of range",
			t:    &Type{Kind: KindBitmask, Name: "B", BitBound: 4, Flags: []Flag{{Name: "f", Position: 4}}},
			want: "outside bit bound",
		},
		{
			name: "unbound forward",
			t:    NewStruct("S", Final).SetMembers(Member{Name: "a", Type: Forward("X")}),
			want: "unbound forward",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Normalize(test.t)
			if err == nil {
				t.Fatal("Normalize succeeded, want error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Fatalf("Normalize error = %v, want it to mention %q", err, test.want)
			}
		})
	}
}

func TestUnionCaseIDsStartAtOne(t *testing.T) {
	union := NewUnion("U", Int32, Mutable).SetCases(
		Case{Name: "a", Type: Int32, Labels: []int64{1}},
		Case{Name: "b", Type: String(0), Default: true},
	)
	if err := Normalize(union); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if union.Cases[0].ID != 1 || union.Cases[1].ID != 2 {
		t.Fatalf("case ids = %d, %d, want 1, 2", union.Cases[0].ID, union.Cases[1].ID)
	}
	if got := union.SelectCase(7); got != 1 {
		t.Fatalf("SelectCase(7) = %d, want default case 1", got)
	}
}

func TestSelectCaseWithoutDefault(t *testing.T) {
	union := NewUnion("U", Int32, Final).SetCases(
		Case{Name: "a", Type: Int32, Labels: []int64{0, 1}},
	)
	if got := union.SelectCase(5); got != -1 {
		t.Fatalf("SelectCase(5) = %d, want -1", got)
	}
	if got, ok := union.ImplicitDefault(); !ok || got != 2 {
		t.Fatalf("ImplicitDefault = %d, %v, want 2, true", got, ok)
	}
}

func TestImplicitDefaultRespectsDiscriminatorRange(t *testing.T) {
	color := NewEnum("Color", "red", "green", "blue")
	tests := []struct {
		name          string
		discriminator *Type
		labels        [][]int64
		want          int64
		wantOK        bool
	}{
		{"bool with false free", Bool, [][]int64{{1}}, 0, true},
		{"bool with true free", Bool, [][]int64{{0}}, 1, true},
		{"bool fully claimed", Bool, [][]int64{{0}, {1}}, 0, false},
		{"enum picks unclaimed literal", color, [][]int64{{0, 1}}, 2, true},
		{"enum fully claimed", color, [][]int64{{0}, {1, 2}}, 0, false},
		{"aliased enum fully claimed", Alias("Shade", color), [][]int64{{0, 1, 2}}, 0, false},
		{"int8 falls back to negatives", Int8, [][]int64{rangeOf(0, 127)}, -1, true},
		{"uint8 fully claimed", Uint8, [][]int64{rangeOf(0, 255)}, 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var cases []Case
			for index, labels := range test.labels {
				cases = append(cases, Case{Name: fmt.Sprintf("c%d", index), Type: Int32, Labels: labels})
			}
			cases = append(cases, Case{Name: "other", Type: Int32, Default: true})
			union := NewUnion("U", test.discriminator, Final).SetCases(cases...)

			got, ok := union.ImplicitDefault()
			if ok != test.wantOK || (ok && got != test.want) {
				t.Fatalf("ImplicitDefault = %d, %v, want %d, %v", got, ok, test.want, test.wantOK)
			}
		})
	}
}

func rangeOf(low, high int64) []int64 {
	var values []int64
	for value := low; value <= high; value++ {
		values = append(values, value)
	}
	return values
}
