// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/prgasm/cpu"
)

// The syntactic shape of an operand, before an addressing mode is chosen.
type shape byte

const (
	shapeNone     shape = iota // no operand
	shapeAcc                   // A
	shapeImm                   // #v
	shapeIndX                  // (v,X)
	shapeIndY                  // (v),Y
	shapeInd                   // (v)
	shapeIndexedX              // v,X
	shapeIndexedY              // v,Y
	shapeBare                  // v
)

var shapeName = []string{
	"none", "accumulator", "immediate", "(v,X)", "(v),Y", "(v)", "v,X", "v,Y", "v",
}

func (s shape) String() string {
	return shapeName[s]
}

var errOperandFormat = errors.New("unknown addressing mode format")

// Split an operand into its shape and the text of the value it contains.
func parseShape(operand string) (s shape, inner string, err error) {
	u := strings.ToUpper(operand)
	switch {
	case operand == "":
		return shapeNone, "", nil
	case u == "A":
		return shapeAcc, "", nil
	case u[0] == '#':
		return shapeImm, operand[1:], nil
	case u[0] == '(':
		switch {
		case strings.HasSuffix(u, ",X)"):
			return shapeIndX, operand[1 : len(u)-3], nil
		case strings.HasSuffix(u, "),Y"):
			return shapeIndY, operand[1 : len(u)-3], nil
		case strings.HasSuffix(u, ")"):
			return shapeInd, operand[1 : len(u)-1], nil
		default:
			return shapeNone, "", errOperandFormat
		}
	case strings.HasSuffix(u, ",X"):
		return shapeIndexedX, operand[:len(u)-2], nil
	case strings.HasSuffix(u, ",Y"):
		return shapeIndexedY, operand[:len(u)-2], nil
	default:
		return shapeBare, operand, nil
	}
}

// Return true if the shape chooses between a zero page mode and an
// absolute mode.
func (s shape) races() bool {
	return s == shapeIndexedX || s == shapeIndexedY || s == shapeBare
}

// Race the short and long encodings of a value. The short mode wins only
// if the opcode supports it and the value isn't wide, or if the value is
// wide but no long mode exists.
func race(op *cpu.Opcode, short, long cpu.Mode, width cpu.Width, wide bool) cpu.Mode {
	switch width {
	case cpu.ShortWidth:
		return short
	case cpu.LongWidth:
		return long
	}
	if op.Supports(short) && (!wide || !op.Supports(long)) {
		return short
	}
	return long
}

// Choose the addressing mode for an opcode given its operand shape, the
// explicit width override, and whether the operand's value is wide.
func selectMode(op *cpu.Opcode, s shape, width cpu.Width, wide bool) (cpu.Mode, error) {
	var mode cpu.Mode
	switch {
	case s == shapeNone:
		mode = cpu.IMP
		if op.Supports(cpu.ACC) {
			mode = cpu.ACC
		}
	case s == shapeAcc:
		mode = cpu.ACC
	case s == shapeImm:
		mode = cpu.IMM
	case op.Supports(cpu.REL):
		mode = cpu.REL
	case s == shapeIndX:
		mode = cpu.IDX
	case s == shapeIndY:
		mode = cpu.IDY
	case s == shapeInd:
		mode = cpu.IND
	case s == shapeIndexedX:
		mode = race(op, cpu.ZPX, cpu.ABX, width, wide)
	case s == shapeIndexedY:
		mode = race(op, cpu.ZPY, cpu.ABY, width, wide)
	default:
		mode = race(op, cpu.ZPG, cpu.ABS, width, wide)
	}

	if !op.Supports(mode) {
		return mode, fmt.Errorf("%s does not support addressing mode %s", op.Name, mode)
	}
	return mode, nil
}

// Return the number of operand bytes taken by an addressing mode.
func operandSize(mode cpu.Mode) int {
	return mode.Length() - 1
}
