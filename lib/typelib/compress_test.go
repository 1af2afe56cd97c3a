// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelib

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("DDS::XTypes::CompleteStructMember ", 64))
	for _, requested := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd, CompressionAuto} {
		t.Run(requested.String(), func(t *testing.T) {
			stored, used, err := compress(data, requested)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if used == CompressionAuto {
				t.Fatal("auto must resolve to a concrete compression")
			}
			if requested != CompressionNone && len(stored) >= len(data) {
				t.Fatalf("%s produced %d bytes from %d", used, len(stored), len(data))
			}
			restored, err := decompress(stored, used, len(data))
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(restored, data) {
				t.Fatal("round trip changed the payload")
			}
		})
	}
}

func TestCompressFallsBackForIncompressible(t *testing.T) {
	random := rand.New(rand.NewChaCha8([32]byte{1, 2, 3}))
	data := make([]byte, 512)
	for index := range data {
		data[index] = byte(random.Uint32())
	}
	for _, requested := range []Compression{CompressionLZ4, CompressionZstd, CompressionAuto} {
		stored, used, err := compress(data, requested)
		if err != nil {
			t.Fatalf("compress(%s): %v", requested, err)
		}
		if used != CompressionNone || !bytes.Equal(stored, data) {
			t.Errorf("compress(%s) used %s, want none", requested, used)
		}
	}
}

func TestDecompressRejectsWrongSize(t *testing.T) {
	data := []byte(strings.Repeat("abc", 100))
	stored, used, err := compress(data, CompressionZstd)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := decompress(stored, used, len(data)+1); err == nil {
		t.Fatal("decompress accepted a wrong size")
	}
	if _, err := decompress(data, CompressionNone, len(data)-1); err == nil {
		t.Fatal("decompress accepted a wrong uncompressed size")
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]Compression{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZstd,
		"auto": CompressionAuto,
		"":     CompressionAuto,
	}
	for name, want := range cases {
		got, err := ParseCompression(name)
		if err != nil {
			t.Errorf("ParseCompression(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseCompression(%q) = %s, want %s", name, got, want)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression accepted an unknown name")
	}
}

func TestChecksumIsKeyed(t *testing.T) {
	first := checksumOf([]byte("payload"))
	if first != checksumOf([]byte("payload")) {
		t.Fatal("checksum is not deterministic")
	}
	if first == checksumOf([]byte("payload!")) {
		t.Fatal("different payloads share a checksum")
	}
}
