// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Class describes whether an opcode byte is part of the documented NMOS
// 6502 instruction set.
type Class byte

const (
	Documented   Class = iota // official opcode
	Undocumented              // stable illegal opcode
	Unstable                  // illegal opcode with analog or chip-dependent behavior
)

func (c Class) String() string {
	switch c {
	case Documented:
		return "documented"
	case Undocumented:
		return "undocumented"
	case Unstable:
		return "unstable"
	default:
		return "unknown"
	}
}

// One row per high nibble, one column per low nibble.
var classMap = [16]string{
	"0011100100011001", // $0x
	"0011100100111001", // $1x
	"0011000100010001", // $2x
	"0011100100111001", // $3x
	"0011100100010001", // $4x
	"0011100100111001", // $5x
	"0011100100010001", // $6x
	"0011100100111001", // $7x
	"1011000101010001", // $8x
	"0012000100022022", // $9x
	"0001000100020001", // $Ax
	"0011000100020001", // $Bx
	"0011000100010001", // $Cx
	"0011100100111001", // $Dx
	"0011000100010001", // $Ex
	"0011100100111001", // $Fx
}

// Classify returns the documentation class of an opcode byte.
func Classify(b byte) Class {
	return Class(classMap[b>>4][b&0x0f] - '0')
}

// IsIllegal returns true if the opcode byte is not a documented 6502
// instruction.
func IsIllegal(b byte) bool {
	return Classify(b) != Documented
}
