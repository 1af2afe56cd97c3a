// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idlschema

import (
	"fmt"
	"strconv"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

// SyntaxError reports a malformed type expression.
type SyntaxError struct {
	Expression string
	Offset     int
	Message    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("type expression %q: offset %d: %s", e.Expression, e.Offset, e.Message)
}

// LookupFunc maps a name used in a type expression to a declared type.
type LookupFunc func(name string) (*idl.Type, bool)

var primitives = map[string]*idl.Type{
	"boolean": idl.Bool,
	"bool":    idl.Bool,
	"int8":    idl.Int8,
	"uint8":   idl.Uint8,
	"octet":   idl.Byte,
	"byte":    idl.Byte,
	"char":    idl.Char,
	"int16":   idl.Int16,
	"short":   idl.Int16,
	"uint16":  idl.Uint16,
	"ushort":  idl.Uint16,
	"int32":   idl.Int32,
	"long":    idl.Int32,
	"uint32":  idl.Uint32,
	"ulong":   idl.Uint32,
	"int64":   idl.Int64,
	"uint64":  idl.Uint64,
	"float32": idl.Float32,
	"float":   idl.Float32,
	"float64": idl.Float64,
	"double":  idl.Float64,
}

// ParseType parses a type expression. Names that are neither built in
// nor found by lookup are errors; lookup may be nil when only built-in
// types are expected.
func ParseType(expression string, lookup LookupFunc) (*idl.Type, error) {
	p := &parser{expression: expression, lookup: lookup}
	p.advance()
	parsed, err := p.typeExpression()
	if err != nil {
		return nil, err
	}
	if p.token.kind != tokenEnd {
		return nil, p.errorf("unexpected %s after type", p.token)
	}
	return parsed, nil
}

type tokenKind uint8

const (
	tokenEnd tokenKind = iota
	tokenName
	tokenNumber
	tokenOpen
	tokenClose
	tokenComma
	tokenInvalid
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) String() string {
	switch t.kind {
	case tokenEnd:
		return "end of expression"
	case tokenName, tokenNumber:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

type parser struct {
	expression string
	position   int
	token      token
	lookup     LookupFunc
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expression: p.expression, Offset: p.token.offset, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) advance() {
	for p.position < len(p.expression) && isSpace(p.expression[p.position]) {
		p.position++
	}
	start := p.position
	if start == len(p.expression) {
		p.token = token{kind: tokenEnd, offset: start}
		return
	}
	character := p.expression[start]
	switch {
	case character == '<':
		p.position++
		p.token = token{kind: tokenOpen, text: "<", offset: start}
	case character == '>':
		p.position++
		p.token = token{kind: tokenClose, text: ">", offset: start}
	case character == ',':
		p.position++
		p.token = token{kind: tokenComma, text: ",", offset: start}
	case isDigit(character):
		for p.position < len(p.expression) && isNameCharacter(p.expression[p.position]) {
			p.position++
		}
		p.token = token{kind: tokenNumber, text: p.expression[start:p.position], offset: start}
	case isNameStart(character) || character == ':':
		for p.position < len(p.expression) {
			next := p.expression[p.position]
			if isNameCharacter(next) {
				p.position++
				continue
			}
			if next == ':' && p.position+1 < len(p.expression) && p.expression[p.position+1] == ':' {
				p.position += 2
				continue
			}
			break
		}
		if p.position == start {
			p.position++
			p.token = token{kind: tokenInvalid, text: p.expression[start:p.position], offset: start}
			return
		}
		p.token = token{kind: tokenName, text: p.expression[start:p.position], offset: start}
	default:
		p.position++
		p.token = token{kind: tokenInvalid, text: p.expression[start:p.position], offset: start}
	}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.token.kind != kind {
		return p.errorf("expected %s, found %s", what, p.token)
	}
	p.advance()
	return nil
}

// accept consumes the current token if it has the given kind.
func (p *parser) accept(kind tokenKind) bool {
	if p.token.kind != kind {
		return false
	}
	p.advance()
	return true
}

func (p *parser) number(what string) (uint32, error) {
	if p.token.kind != tokenNumber {
		return 0, p.errorf("expected %s, found %s", what, p.token)
	}
	value, err := strconv.ParseUint(p.token.text, 0, 32)
	if err != nil {
		return 0, p.errorf("invalid %s %q", what, p.token.text)
	}
	p.advance()
	return uint32(value), nil
}

func (p *parser) typeExpression() (*idl.Type, error) {
	if p.token.kind != tokenName {
		return nil, p.errorf("expected type name, found %s", p.token)
	}
	name := p.token
	p.advance()

	switch name.text {
	case "string", "bytes":
		var bound uint32
		if p.accept(tokenOpen) {
			var err error
			if bound, err = p.number("bound"); err != nil {
				return nil, err
			}
			if err := p.expect(tokenClose, "'>'"); err != nil {
				return nil, err
			}
		}
		if name.text == "bytes" {
			return idl.Bytes(bound), nil
		}
		return idl.String(bound), nil

	case "sequence":
		if err := p.expect(tokenOpen, "'<' after sequence"); err != nil {
			return nil, err
		}
		element, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		var bound uint32
		if p.accept(tokenComma) {
			if bound, err = p.number("bound"); err != nil {
				return nil, err
			}
		}
		if err := p.expect(tokenClose, "'>'"); err != nil {
			return nil, err
		}
		return idl.Sequence(element, bound), nil

	case "array":
		if err := p.expect(tokenOpen, "'<' after array"); err != nil {
			return nil, err
		}
		element, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		var dimensions []uint32
		for p.accept(tokenComma) {
			dimension, err := p.number("dimension")
			if err != nil {
				return nil, err
			}
			if dimension == 0 {
				return nil, p.errorf("array dimension must be positive")
			}
			dimensions = append(dimensions, dimension)
		}
		if len(dimensions) == 0 {
			return nil, p.errorf("array needs at least one dimension")
		}
		if err := p.expect(tokenClose, "'>'"); err != nil {
			return nil, err
		}
		return idl.Array(element, dimensions...), nil

	case "map":
		if err := p.expect(tokenOpen, "'<' after map"); err != nil {
			return nil, err
		}
		key, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenComma, "',' after map key"); err != nil {
			return nil, err
		}
		value, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		var bound uint32
		if p.accept(tokenComma) {
			if bound, err = p.number("bound"); err != nil {
				return nil, err
			}
		}
		if err := p.expect(tokenClose, "'>'"); err != nil {
			return nil, err
		}
		return idl.Map(key, value, bound), nil

	case "optional":
		if err := p.expect(tokenOpen, "'<' after optional"); err != nil {
			return nil, err
		}
		inner, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenClose, "'>'"); err != nil {
			return nil, err
		}
		return idl.Optional(inner), nil
	}

	if primitive, ok := primitives[name.text]; ok {
		return primitive, nil
	}
	if p.lookup != nil {
		if declared, ok := p.lookup(name.text); ok {
			return declared, nil
		}
	}
	return nil, &SyntaxError{Expression: p.expression, Offset: name.offset, Message: fmt.Sprintf("unknown type %q", name.text)}
}

func isSpace(character byte) bool {
	return character == ' ' || character == '\t' || character == '\n' || character == '\r'
}

func isDigit(character byte) bool { return character >= '0' && character <= '9' }

func isNameStart(character byte) bool {
	return character == '_' || (character >= 'a' && character <= 'z') || (character >= 'A' && character <= 'Z')
}

func isNameCharacter(character byte) bool { return isNameStart(character) || isDigit(character) }
