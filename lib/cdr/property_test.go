// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"bytes"
	"crypto/md5"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

func record(extensibility idl.Extensibility) *idl.Type {
	return idl.NewStruct("Record", extensibility).SetMembers(
		idl.Member{Name: "id", Type: idl.Int64, Key: true},
		idl.Member{Name: "name", Type: idl.String(0)},
		idl.Member{Name: "samples", Type: idl.Sequence(idl.Int16, 0)},
		idl.Member{Name: "ratio", Type: idl.Float64},
		idl.Member{Name: "enabled", Type: idl.Bool},
		idl.Member{Name: "tag", Type: idl.String(0), Key: true},
	)
}

func recordValue(id int64, name string, samples []int16, ratio float64, enabled bool, tag string) idl.Struct {
	return idl.Struct{"id": id, "name": name, "samples": samples, "ratio": ratio, "enabled": enabled, "tag": tag}
}

func recordGenerators() []gopter.Gen {
	return []gopter.Gen{
		gen.Int64(),
		gen.AlphaString(),
		gen.SliceOf(gen.Int16()),
		gen.Float64Range(-1e9, 1e9),
		gen.Bool(),
		gen.AlphaString(),
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, extensibility := range []idl.Extensibility{idl.Final, idl.Appendable, idl.Mutable} {
		codec := New(record(extensibility), Config{})
		versions := []Version{VersionXCDR2}
		if codec.SupportsBasic() {
			versions = append(versions, VersionBasic)
		}
		for _, version := range versions {
			properties.Property(extensibility.String()+" "+version.String()+" round trip", prop.ForAll(
				func(id int64, name string, samples []int16, ratio float64, enabled bool, tag string) bool {
					value := recordValue(id, name, samples, ratio, enabled, tag)
					for _, endianness := range []buffer.Endianness{buffer.LittleEndian, buffer.BigEndian} {
						data, err := codec.Serialize(value, WithVersion(version), WithEndianness(endianness))
						require.NoError(t, err)
						decoded, err := codec.Deserialize(bytes.Clone(data))
						require.NoError(t, err)
						if !idl.Equal(decoded, value) {
							t.Logf("decoded %v, want %v", decoded, value)
							return false
						}
					}
					return true
				},
				recordGenerators()...,
			))
		}
	}
	properties.TestingRun(t)
}

func TestPropertyKeys(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, extensibility := range []idl.Extensibility{idl.Final, idl.Appendable, idl.Mutable} {
		codec := New(record(extensibility), Config{})
		program, err := codec.KeyProgram()
		require.NoError(t, err)
		size, err := codec.KeySize()
		require.NoError(t, err)
		require.Equal(t, KeySizeUnbounded, size.Kind)

		properties.Property(extensibility.String()+" key program equals key", prop.ForAll(
			func(id int64, name string, samples []int16, ratio float64, enabled bool, tag string) bool {
				value := recordValue(id, name, samples, ratio, enabled, tag)
				direct, err := codec.Key(value)
				require.NoError(t, err)
				again, err := codec.Key(value)
				require.NoError(t, err)
				require.Equal(t, direct, again)

				hash, err := codec.KeyHash(value)
				require.NoError(t, err)
				require.Equal(t, md5.Sum(direct), hash)

				data, err := codec.Serialize(value, WithVersion(VersionXCDR2))
				require.NoError(t, err)
				extracted, err := keyvm.Run(program, data)
				require.NoError(t, err)
				return bytes.Equal(extracted, direct)
			},
			recordGenerators()...,
		))
	}
	properties.TestingRun(t)
}
