// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"errors"
	"strconv"
)

var (
	errNotNumber  = errors.New("not a numeric literal")
	errBadHex     = errors.New("invalid hexadecimal literal")
	errBadDecimal = errors.New("invalid decimal literal")
)

// A value is a parsed operand value: either a numeric literal or the name
// of a label.
type value struct {
	n     int    // literal value
	wide  bool   // literal requests the 2-byte encoding
	label string // label name, empty for literals
}

func (v value) isLabel() bool {
	return v.label != ""
}

// Parse a numeric literal. A '$' prefix introduces hexadecimal digits,
// anything starting with a decimal digit is decimal. Hexadecimal with more
// than two digits, decimal with a leading zero, and any value above $FF are
// wide. Tokens that don't start like a number return errNotNumber.
func parseNumber(s string) (n int, wide bool, err error) {
	switch {
	case len(s) > 0 && s[0] == '$':
		digits := s[1:]
		if len(digits) == 0 || !allChars(digits, hexadecimal) {
			return 0, false, errBadHex
		}
		v, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return 0, false, errBadHex
		}
		n, wide = int(v), len(digits) > 2

	case len(s) > 0 && decimal(s[0]):
		if !allChars(s, decimal) {
			return 0, false, errBadDecimal
		}
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, false, errBadDecimal
		}
		n, wide = int(v), s[0] == '0' && len(s) > 1

	default:
		return 0, false, errNotNumber
	}

	// Values too large for one byte always take the long mode.
	return n, wide || n > 0xff, nil
}

// Parse an operand value as a literal or a label name.
func parseValue(s string) (value, error) {
	n, wide, err := parseNumber(s)
	switch {
	case err == nil:
		return value{n: n, wide: wide}, nil
	case err != errNotNumber:
		return value{}, err
	case isLabel(s):
		return value{label: s, wide: true}, nil
	default:
		return value{}, errors.New("invalid operand '" + s + "'")
	}
}

// Parse the digits of a .HEX token: one to four hexadecimal digits, with
// more than two digits producing a little-endian word.
func parseHexToken(s string) ([]byte, error) {
	if len(s) == 0 || len(s) > 4 || !allChars(s, hexadecimal) {
		return nil, errBadHex
	}
	v, _ := strconv.ParseUint(s, 16, 16)
	if len(s) > 2 {
		return toBytes(2, int(v)), nil
	}
	return toBytes(1, int(v)), nil
}

func allChars(s string, fn func(c byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !fn(s[i]) {
			return false
		}
	}
	return true
}
