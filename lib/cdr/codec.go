// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"crypto/md5"
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

// Version selects an encoding.
type Version uint8

const (
	// VersionAuto selects basic CDR when the type supports it and
	// XCDR2 otherwise. When decoding with a header, the header decides.
	VersionAuto Version = iota

	// VersionBasic is the XCDR1-compatible basic CDR encoding.
	VersionBasic

	// VersionXCDR2 is the extended CDR version 2 encoding.
	VersionXCDR2
)

func (v Version) String() string {
	switch v {
	case VersionAuto:
		return "auto"
	case VersionBasic:
		return "basic"
	case VersionXCDR2:
		return "xcdr2"
	}
	return fmt.Sprintf("Version(%d)", uint8(v))
}

// ParseVersion parses "auto", "basic", or "xcdr2". The empty string is
// VersionAuto.
func ParseVersion(name string) (Version, error) {
	switch name {
	case "", "auto":
		return VersionAuto, nil
	case "basic", "xcdr1":
		return VersionBasic, nil
	case "xcdr2":
		return VersionXCDR2, nil
	}
	return 0, fmt.Errorf("cdr: unknown encoding version %q (want auto, basic, or xcdr2)", name)
}

// Encapsulation identifiers, big-endian forms. The little-endian form
// sets bit 0.
const (
	identifierBasic      = 0x00
	identifierFinal      = 0x06
	identifierAppendable = 0x08
	identifierMutable    = 0x0A
)

// Config holds the defaults of a [Codec].
type Config struct {
	// Version is used when a call does not select one.
	Version Version

	// Endianness of serialized output. The zero value is
	// little-endian.
	Endianness buffer.Endianness

	// KeySizeLimit is the key size beyond which keys are treated as
	// unbounded. Zero means DefaultKeySizeLimit.
	KeySizeLimit int
}

// Option adjusts one Serialize or Deserialize call.
type Option func(*options)

type options struct {
	version    Version
	endianness buffer.Endianness
	header     bool
}

// WithVersion selects the encoding of one call.
func WithVersion(version Version) Option {
	return func(o *options) { o.version = version }
}

// WithEndianness selects the byte order of one Serialize call, or of a
// Deserialize call without header.
func WithEndianness(endianness buffer.Endianness) Option {
	return func(o *options) { o.endianness = endianness }
}

// WithoutHeader omits the 4-byte encapsulation header on output and
// expects none on input.
func WithoutHeader() Option {
	return func(o *options) { o.header = false }
}

type population uint8

const (
	unpopulated population = iota
	populating
	populated
)

// Codec serializes values of one type. Machines are built on first
// use. A Codec is safe for concurrent use; the slice returned by
// Serialize is valid until the next Serialize on the same Codec.
type Codec struct {
	declaration *idl.Type
	config      Config

	mutex sync.Mutex
	state population
	err   error

	root          *idl.Type
	xcdr2         machine
	basic         machine
	basicErr      error
	hasKeys       bool
	keySize       KeySize
	keyProgram    keyvm.Program
	keyProgramErr error

	scratch    *buffer.Buffer
	keyScratch *buffer.Buffer
}

// New returns a Codec for t. The type graph is normalized and compiled
// on first use; see [Codec.Populate].
func New(t *idl.Type, config Config) *Codec {
	return &Codec{declaration: t, config: config}
}

// Type returns the declaration the Codec was created with.
func (c *Codec) Type() *idl.Type { return c.declaration }

// Populate normalizes the type graph and builds both machine trees,
// the key size, and the key program. It runs once; later calls return
// the first result.
func (c *Codec) Populate() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.populateLocked()
}

func (c *Codec) populateLocked() error {
	switch c.state {
	case populated:
		return c.err
	case populating:
		return fmt.Errorf("cdr: %s is already being populated", c.declaration)
	}
	c.state = populating
	c.err = c.build()
	c.state = populated
	return c.err
}

func (c *Codec) build() error {
	if c.declaration == nil {
		return fmt.Errorf("cdr: nil type")
	}
	if err := idl.Normalize(c.declaration); err != nil {
		return err
	}
	root := c.declaration.Underlying()
	c.root = root
	if err := checkKeyPath(root); err != nil {
		return err
	}

	var err error
	if c.xcdr2, err = newBuilder(root, true).machineFor(root); err != nil {
		return err
	}
	if c.basicErr = basicSupport(root); c.basicErr == nil {
		if c.basic, err = newBuilder(root, false).machineFor(root); err != nil {
			return err
		}
	}

	c.hasKeys = root.Kind == idl.KindStruct && len(root.KeyMembers()) > 0
	if !c.hasKeys {
		c.keySize = KeySize{Kind: KeySizeFixed}
		c.keyProgram = keyvm.Program{{Code: keyvm.Done}}
		return nil
	}
	c.keySize = c.xcdr2.keyScan(newKeyScanner(c.config.KeySizeLimit), KeySize{})
	c.keyProgram, c.keyProgramErr = compileKeyProgram(c.xcdr2)
	return nil
}

func (c *Codec) settings(opts []Option) options {
	settings := options{version: c.config.Version, endianness: c.config.Endianness, header: true}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// machineFor returns the machine tree for version, resolving
// VersionAuto.
func (c *Codec) machineFor(version Version) (machine, Version, error) {
	switch version {
	case VersionAuto:
		if c.basic != nil {
			return c.basic, VersionBasic, nil
		}
		return c.xcdr2, VersionXCDR2, nil
	case VersionBasic:
		if c.basic == nil {
			return nil, 0, c.basicErr
		}
		return c.basic, VersionBasic, nil
	case VersionXCDR2:
		return c.xcdr2, VersionXCDR2, nil
	}
	return nil, 0, fmt.Errorf("%w: version %s", ErrUnsupportedEncoding, version)
}

func maxAlign(version Version) int {
	if version == VersionXCDR2 {
		return 4
	}
	return 8
}

// encapsulation returns the second header byte for version.
func (c *Codec) encapsulation(version Version, endianness buffer.Endianness) byte {
	var identifier byte = identifierBasic
	if version == VersionXCDR2 {
		identifier = identifierFinal
		if c.root.Kind == idl.KindStruct || c.root.Kind == idl.KindUnion {
			switch c.root.Extensibility {
			case idl.Appendable:
				identifier = identifierAppendable
			case idl.Mutable:
				identifier = identifierMutable
			}
		}
	}
	if endianness == buffer.LittleEndian {
		identifier |= 1
	}
	return identifier
}

// Serialize encodes value. The result aliases the Codec's scratch
// buffer.
func (c *Codec) Serialize(value any, opts ...Option) ([]byte, error) {
	settings := c.settings(opts)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.populateLocked(); err != nil {
		return nil, err
	}
	root, version, err := c.machineFor(settings.version)
	if err != nil {
		return nil, err
	}
	if c.scratch == nil {
		c.scratch = buffer.New()
	}
	b := c.scratch
	b.Reset()
	b.SetEndianness(settings.endianness)
	b.SetMaxAlign(maxAlign(version))
	if settings.header {
		b.WriteBytes([]byte{0, c.encapsulation(version, settings.endianness), 0, 0})
		b.SetOrigin(4)
	}
	if err := root.serialize(b, value, false); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Deserialize decodes data. With a header, the header selects the
// encoding and byte order and the options only apply without one.
func (c *Codec) Deserialize(data []byte, opts ...Option) (any, error) {
	settings := c.settings(opts)
	if err := c.Populate(); err != nil {
		return nil, err
	}
	b := buffer.FromBytes(data)
	version, endianness := settings.version, settings.endianness
	if settings.header {
		if len(data) < 4 {
			return nil, corrupt("%d bytes is too short for an encapsulation header", len(data))
		}
		endianness = buffer.BigEndian
		if data[1]&1 != 0 {
			endianness = buffer.LittleEndian
		}
		switch data[1] &^ 1 {
		case identifierBasic:
			version = VersionBasic
		case identifierFinal, identifierAppendable, identifierMutable:
			version = VersionXCDR2
		default:
			return nil, fmt.Errorf("%w: encapsulation identifier 0x%02x%02x", ErrUnsupportedEncoding, data[0], data[1])
		}
		b.Seek(4)
		b.SetOrigin(4)
	}
	root, version, err := c.machineFor(version)
	if err != nil {
		return nil, err
	}
	b.SetEndianness(endianness)
	b.SetMaxAlign(maxAlign(version))
	value, err := root.deserialize(b)
	if err != nil {
		return nil, decodeError(err)
	}
	return value, nil
}

// Default returns the value every member of the type takes when
// absent.
func (c *Codec) Default() (any, error) {
	if err := c.Populate(); err != nil {
		return nil, err
	}
	return c.xcdr2.defaultValue(), nil
}

// Key returns the key form of value: its key members in big-endian
// XCDR2 without any framing. A type without key members has an empty
// key.
func (c *Codec) Key(value any) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.populateLocked(); err != nil {
		return nil, err
	}
	return c.keyLocked(value)
}

func (c *Codec) keyLocked(value any) ([]byte, error) {
	if !c.hasKeys {
		return []byte{}, nil
	}
	if c.keyScratch == nil {
		c.keyScratch = buffer.New()
	}
	b := c.keyScratch
	b.Reset()
	b.SetEndianness(buffer.BigEndian)
	b.SetMaxAlign(4)
	if err := c.xcdr2.serialize(b, value, true); err != nil {
		return nil, err
	}
	return slices.Clone(b.Bytes()), nil
}

// KeyHash returns the 16-byte key hash of value: the key padded with
// zeros when every key of the type fits in 16 bytes, otherwise the MD5
// digest of the key.
func (c *Codec) KeyHash(value any) ([16]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var hash [16]byte
	if err := c.populateLocked(); err != nil {
		return hash, err
	}
	key, err := c.keyLocked(value)
	if err != nil {
		return hash, err
	}
	if c.keySize.FitsKeyHash() {
		copy(hash[:], key)
		return hash, nil
	}
	return md5.Sum(key), nil
}

// KeySize returns the scanned size of the type's key form.
func (c *Codec) KeySize() (KeySize, error) {
	if err := c.Populate(); err != nil {
		return KeySize{}, err
	}
	return c.keySize, nil
}

// KeyProgram returns a key program that extracts the key form from an
// XCDR2 encoding of the type. Types whose key recurses have none.
func (c *Codec) KeyProgram() (keyvm.Program, error) {
	if err := c.Populate(); err != nil {
		return nil, err
	}
	if c.keyProgramErr != nil {
		return nil, c.keyProgramErr
	}
	return slices.Clone(c.keyProgram), nil
}

// SupportsBasic reports whether the type can be encoded in basic CDR.
func (c *Codec) SupportsBasic() bool {
	if err := c.Populate(); err != nil {
		return false
	}
	return c.basic != nil
}
