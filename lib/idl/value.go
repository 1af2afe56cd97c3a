// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// Struct is the value of a struct instance, keyed by member name. An
// absent optional member is either missing from the map or nil.
type Struct map[string]any

// Union is the value of a union instance. Value is nil when the
// discriminator selects no case or a void case.
type Union struct {
	Discriminator int64
	Value         any
}

// Equal reports whether two values are structurally equal. Struct
// entries holding nil compare equal to missing entries, and
// map[any]any values compare by content.
func Equal(a, b any) bool {
	switch left := a.(type) {
	case Struct:
		right, ok := b.(Struct)
		if !ok {
			return false
		}
		for name, value := range left {
			if !Equal(value, right[name]) {
				return false
			}
		}
		for name, value := range right {
			if _, seen := left[name]; !seen && value != nil {
				return false
			}
		}
		return true
	case Union:
		right, ok := b.(Union)
		return ok && left.Discriminator == right.Discriminator && Equal(left.Value, right.Value)
	case []any:
		right, ok := b.([]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for index := range left {
			if !Equal(left[index], right[index]) {
				return false
			}
		}
		return true
	case map[any]any:
		right, ok := b.(map[any]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for key, value := range left {
			other, present := right[key]
			if !present || !Equal(value, other) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// SortedKeys returns the keys of a map value in a deterministic order:
// numerically for integer keys, lexically for string keys. Encoders
// use it so equal maps always produce equal bytes.
func SortedKeys(value map[any]any) []any {
	keys := make([]any, 0, len(value))
	for key := range value {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b any) int {
	switch left := a.(type) {
	case string:
		if right, ok := b.(string); ok {
			return cmp.Compare(left, right)
		}
	case int8, int16, int32, int64:
		if right, ok := asInt64(b); ok {
			value, _ := asInt64(a)
			return cmp.Compare(value, right)
		}
	case uint8, uint16, uint32, uint64:
		if right, ok := asUint64(b); ok {
			value, _ := asUint64(a)
			return cmp.Compare(value, right)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int8:
		return int64(typed), true
	case int16:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	}
	return 0, false
}

func asUint64(value any) (uint64, bool) {
	switch typed := value.(type) {
	case uint8:
		return uint64(typed), true
	case uint16:
		return uint64(typed), true
	case uint32:
		return uint64(typed), true
	case uint64:
		return typed, true
	}
	return 0, false
}
