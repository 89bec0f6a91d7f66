// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the NMOS 6502 instruction set tables: every
// mnemonic, its aliases and addressing modes, the encoding of each pair, and
// the inverse 256-entry decode map.
package cpu

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the opcode database.
var (
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrUnknownMode     = errors.New("unknown addressing mode")
)

// Mode describes a memory addressing mode.
type Mode byte

// All possible memory addressing modes
const (
	IMM Mode = iota // Immediate
	IMP             // Implied (no operand)
	REL             // Relative
	ZPG             // Zero Page
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y
	ABS             // Absolute
	ABX             // Absolute,X
	ABY             // Absolute,Y
	IND             // (Indirect)
	IDX             // (Indirect,X)
	IDY             // (Indirect),Y
	ACC             // Accumulator (no operand)

	numModes
)

var modeName = [numModes]string{
	"IMM", "IMP", "REL", "ZPG", "ZPX", "ZPY",
	"ABS", "ABX", "ABY", "IND", "IDX", "IDY", "ACC",
}

var modeLength = [numModes]int{
	2, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 2, 2, 1,
}

func (m Mode) String() string {
	if m >= numModes {
		return fmt.Sprintf("Mode(%d)", byte(m))
	}
	return modeName[m]
}

// Length returns the total length in bytes of an instruction using the
// addressing mode, including the opcode byte.
func (m Mode) Length() int {
	return modeLength[m]
}

// Opcode data for a (mnemonic, mode) pair. Rows sharing a mnemonic and mode
// are duplicate encodings; the first row listed is the one the assembler
// emits.
type opcodeData struct {
	name   string // canonical mnemonic
	mode   Mode   // addressing mode
	opcode byte   // opcode hex value
}

// All (mnemonic, mode) pairs of the NMOS 6502, documented and undocumented.
var data = []opcodeData{
	{"BRK", IMP, 0x00},

	{"ORA", IMM, 0x09},
	{"ORA", ZPG, 0x05},
	{"ORA", ZPX, 0x15},
	{"ORA", ABS, 0x0d},
	{"ORA", ABX, 0x1d},
	{"ORA", ABY, 0x19},
	{"ORA", IDX, 0x01},
	{"ORA", IDY, 0x11},

	{"JAM", IMP, 0x02},
	{"JAM", IMP, 0x12},
	{"JAM", IMP, 0x22},
	{"JAM", IMP, 0x32},
	{"JAM", IMP, 0x42},
	{"JAM", IMP, 0x52},
	{"JAM", IMP, 0x62},
	{"JAM", IMP, 0x72},
	{"JAM", IMP, 0x92},
	{"JAM", IMP, 0xb2},
	{"JAM", IMP, 0xd2},
	{"JAM", IMP, 0xf2},

	{"SLO", ZPG, 0x07},
	{"SLO", ZPX, 0x17},
	{"SLO", ABS, 0x0f},
	{"SLO", ABX, 0x1f},
	{"SLO", ABY, 0x1b},
	{"SLO", IDX, 0x03},
	{"SLO", IDY, 0x13},

	{"NOP", IMP, 0xea},
	{"NOP", IMP, 0x1a},
	{"NOP", IMP, 0x3a},
	{"NOP", IMP, 0x5a},
	{"NOP", IMP, 0x7a},
	{"NOP", IMP, 0xda},
	{"NOP", IMP, 0xfa},
	{"NOP", IMM, 0x80},
	{"NOP", IMM, 0x82},
	{"NOP", IMM, 0x89},
	{"NOP", IMM, 0xc2},
	{"NOP", IMM, 0xe2},
	{"NOP", ZPG, 0x04},
	{"NOP", ZPG, 0x44},
	{"NOP", ZPG, 0x64},
	{"NOP", ZPX, 0x14},
	{"NOP", ZPX, 0x34},
	{"NOP", ZPX, 0x54},
	{"NOP", ZPX, 0x74},
	{"NOP", ZPX, 0xd4},
	{"NOP", ZPX, 0xf4},
	{"NOP", ABS, 0x0c},
	{"NOP", ABX, 0x1c},
	{"NOP", ABX, 0x3c},
	{"NOP", ABX, 0x5c},
	{"NOP", ABX, 0x7c},
	{"NOP", ABX, 0xdc},
	{"NOP", ABX, 0xfc},

	{"ASL", ACC, 0x0a},
	{"ASL", ZPG, 0x06},
	{"ASL", ZPX, 0x16},
	{"ASL", ABS, 0x0e},
	{"ASL", ABX, 0x1e},

	{"PHP", IMP, 0x08},

	{"ANC", IMM, 0x0b},
	{"ANC", IMM, 0x2b},

	{"BPL", REL, 0x10},
	{"CLC", IMP, 0x18},
	{"JSR", ABS, 0x20},

	{"AND", IMM, 0x29},
	{"AND", ZPG, 0x25},
	{"AND", ZPX, 0x35},
	{"AND", ABS, 0x2d},
	{"AND", ABX, 0x3d},
	{"AND", ABY, 0x39},
	{"AND", IDX, 0x21},
	{"AND", IDY, 0x31},

	{"RLA", ZPG, 0x27},
	{"RLA", ZPX, 0x37},
	{"RLA", ABS, 0x2f},
	{"RLA", ABX, 0x3f},
	{"RLA", ABY, 0x3b},
	{"RLA", IDX, 0x23},
	{"RLA", IDY, 0x33},

	{"BIT", ZPG, 0x24},
	{"BIT", ABS, 0x2c},

	{"PLP", IMP, 0x28},

	{"ROL", ACC, 0x2a},
	{"ROL", ZPG, 0x26},
	{"ROL", ZPX, 0x36},
	{"ROL", ABS, 0x2e},
	{"ROL", ABX, 0x3e},

	{"BMI", REL, 0x30},
	{"SEC", IMP, 0x38},
	{"RTI", IMP, 0x40},

	{"EOR", IMM, 0x49},
	{"EOR", ZPG, 0x45},
	{"EOR", ZPX, 0x55},
	{"EOR", ABS, 0x4d},
	{"EOR", ABX, 0x5d},
	{"EOR", ABY, 0x59},
	{"EOR", IDX, 0x41},
	{"EOR", IDY, 0x51},

	{"SRE", ZPG, 0x47},
	{"SRE", ZPX, 0x57},
	{"SRE", ABS, 0x4f},
	{"SRE", ABX, 0x5f},
	{"SRE", ABY, 0x5b},
	{"SRE", IDX, 0x43},
	{"SRE", IDY, 0x53},

	{"LSR", ACC, 0x4a},
	{"LSR", ZPG, 0x46},
	{"LSR", ZPX, 0x56},
	{"LSR", ABS, 0x4e},
	{"LSR", ABX, 0x5e},

	{"PHA", IMP, 0x48},
	{"ASR", IMM, 0x4b},

	{"JMP", ABS, 0x4c},
	{"JMP", IND, 0x6c},

	{"BVC", REL, 0x50},
	{"CLI", IMP, 0x58},
	{"PLA", IMP, 0x68},

	{"ADC", IMM, 0x69},
	{"ADC", ZPG, 0x65},
	{"ADC", ZPX, 0x75},
	{"ADC", ABS, 0x6d},
	{"ADC", ABX, 0x7d},
	{"ADC", ABY, 0x79},
	{"ADC", IDX, 0x61},
	{"ADC", IDY, 0x71},

	{"RTS", IMP, 0x60},

	{"RRA", ZPG, 0x67},
	{"RRA", ZPX, 0x77},
	{"RRA", ABS, 0x6f},
	{"RRA", ABX, 0x7f},
	{"RRA", ABY, 0x7b},
	{"RRA", IDX, 0x63},
	{"RRA", IDY, 0x73},

	{"ROR", ACC, 0x6a},
	{"ROR", ZPG, 0x66},
	{"ROR", ZPX, 0x76},
	{"ROR", ABS, 0x6e},
	{"ROR", ABX, 0x7e},

	{"ARR", IMM, 0x6b},
	{"BVS", REL, 0x70},
	{"SEI", IMP, 0x78},

	{"STA", ZPG, 0x85},
	{"STA", ZPX, 0x95},
	{"STA", ABS, 0x8d},
	{"STA", ABX, 0x9d},
	{"STA", ABY, 0x99},
	{"STA", IDX, 0x81},
	{"STA", IDY, 0x91},

	{"SAX", ZPG, 0x87},
	{"SAX", ZPY, 0x97},
	{"SAX", ABS, 0x8f},
	{"SAX", IDX, 0x83},

	{"STY", ZPG, 0x84},
	{"STY", ZPX, 0x94},
	{"STY", ABS, 0x8c},

	{"STX", ZPG, 0x86},
	{"STX", ZPY, 0x96},
	{"STX", ABS, 0x8e},

	{"DEY", IMP, 0x88},
	{"TXA", IMP, 0x8a},
	{"ANE", IMM, 0x8b},
	{"BCC", REL, 0x90},

	{"SHA", ABY, 0x9f},
	{"SHA", IDY, 0x93},

	{"TYA", IMP, 0x98},
	{"TXS", IMP, 0x9a},
	{"TAS", ABY, 0x9b},
	{"SHY", ABX, 0x9c},
	{"SHX", ABY, 0x9e},

	{"LDY", IMM, 0xa0},
	{"LDY", ZPG, 0xa4},
	{"LDY", ZPX, 0xb4},
	{"LDY", ABS, 0xac},
	{"LDY", ABX, 0xbc},

	{"LDA", IMM, 0xa9},
	{"LDA", ZPG, 0xa5},
	{"LDA", ZPX, 0xb5},
	{"LDA", ABS, 0xad},
	{"LDA", ABX, 0xbd},
	{"LDA", ABY, 0xb9},
	{"LDA", IDX, 0xa1},
	{"LDA", IDY, 0xb1},

	{"LDX", IMM, 0xa2},
	{"LDX", ZPG, 0xa6},
	{"LDX", ZPY, 0xb6},
	{"LDX", ABS, 0xae},
	{"LDX", ABY, 0xbe},

	{"LAX", ZPG, 0xa7},
	{"LAX", ZPY, 0xb7},
	{"LAX", ABS, 0xaf},
	{"LAX", ABY, 0xbf},
	{"LAX", IDX, 0xa3},
	{"LAX", IDY, 0xb3},

	{"TAY", IMP, 0xa8},
	{"TAX", IMP, 0xaa},
	{"LXA", IMM, 0xab},
	{"BCS", REL, 0xb0},
	{"CLV", IMP, 0xb8},
	{"TSX", IMP, 0xba},
	{"LAS", ABY, 0xbb},

	{"CPY", IMM, 0xc0},
	{"CPY", ZPG, 0xc4},
	{"CPY", ABS, 0xcc},

	{"CMP", IMM, 0xc9},
	{"CMP", ZPG, 0xc5},
	{"CMP", ZPX, 0xd5},
	{"CMP", ABS, 0xcd},
	{"CMP", ABX, 0xdd},
	{"CMP", ABY, 0xd9},
	{"CMP", IDX, 0xc1},
	{"CMP", IDY, 0xd1},

	{"DCP", ZPG, 0xc7},
	{"DCP", ZPX, 0xd7},
	{"DCP", ABS, 0xcf},
	{"DCP", ABX, 0xdf},
	{"DCP", ABY, 0xdb},
	{"DCP", IDX, 0xc3},
	{"DCP", IDY, 0xd3},

	{"DEC", ZPG, 0xc6},
	{"DEC", ZPX, 0xd6},
	{"DEC", ABS, 0xce},
	{"DEC", ABX, 0xde},

	{"INY", IMP, 0xc8},
	{"DEX", IMP, 0xca},
	{"SBX", IMM, 0xcb},
	{"BNE", REL, 0xd0},
	{"CLD", IMP, 0xd8},

	{"CPX", IMM, 0xe0},
	{"CPX", ZPG, 0xe4},
	{"CPX", ABS, 0xec},

	{"SBC", IMM, 0xe9},
	{"SBC", IMM, 0xeb},
	{"SBC", ZPG, 0xe5},
	{"SBC", ZPX, 0xf5},
	{"SBC", ABS, 0xed},
	{"SBC", ABX, 0xfd},
	{"SBC", ABY, 0xf9},
	{"SBC", IDX, 0xe1},
	{"SBC", IDY, 0xf1},

	{"ISB", ZPG, 0xe7},
	{"ISB", ZPX, 0xf7},
	{"ISB", ABS, 0xef},
	{"ISB", ABX, 0xff},
	{"ISB", ABY, 0xfb},
	{"ISB", IDX, 0xe3},
	{"ISB", IDY, 0xf3},

	{"INC", ZPG, 0xe6},
	{"INC", ZPX, 0xf6},
	{"INC", ABS, 0xee},
	{"INC", ABX, 0xfe},

	{"INX", IMP, 0xe8},
	{"BEQ", REL, 0xf0},
	{"SED", IMP, 0xf8},
}

// Encodings that are assemblable under a second mnemonic but never decoded
// to it. LAX #imm is the same byte as LXA #imm; LXA is the decoded name.
var deadAliases = []opcodeData{
	{"LAX", IMM, 0xab},
}

// Alternative spellings accepted for canonical mnemonics.
var aliases = map[string][]string{
	"JAM": {"CRS", "KIL", "HLT"},
	"SLO": {"ASO"},
	"SRE": {"LSE"},
	"ASR": {"ALR"},
	"ANE": {"XAA"},
	"SHA": {"AHX"},
	"TAS": {"SHS"},
	"LAS": {"LAE", "LAR"},
	"SBX": {"AXS"},
	"ISB": {"ISC"},
}

// An Opcode describes a single mnemonic and every encoding it has in each
// addressing mode it supports.
type Opcode struct {
	Name    string   // canonical all-caps mnemonic
	Aliases []string // other accepted spellings
	modes   [numModes][]byte
}

// Supports returns true if the opcode has an encoding for the mode.
func (o *Opcode) Supports(mode Mode) bool {
	return mode < numModes && len(o.modes[mode]) > 0
}

// Encoding returns the opcode byte emitted for the addressing mode. When
// a mode has several encodings the first listed one is always returned.
func (o *Opcode) Encoding(mode Mode) (byte, bool) {
	if !o.Supports(mode) {
		return 0, false
	}
	return o.modes[mode][0], true
}

// Encodings returns every opcode byte for the addressing mode, the emitted
// one first.
func (o *Opcode) Encodings(mode Mode) []byte {
	if mode >= numModes {
		return nil
	}
	return o.modes[mode]
}

// Modes returns all addressing modes the opcode supports, in Mode order.
func (o *Opcode) Modes() []Mode {
	var modes []Mode
	for m := Mode(0); m < numModes; m++ {
		if o.Supports(m) {
			modes = append(modes, m)
		}
	}
	return modes
}

// A decoded entry of the 256-byte opcode map.
type decoded struct {
	op   *Opcode
	mode Mode
}

var (
	opcodes   []*Opcode          // canonical opcodes in table order
	mnemonics map[string]*Opcode // mnemonic and alias -> opcode
	decodeMap [256]decoded
)

func init() {
	mnemonics = make(map[string]*Opcode)

	add := func(d opcodeData) *Opcode {
		op, ok := mnemonics[d.name]
		if !ok {
			op = &Opcode{Name: d.name}
			mnemonics[d.name] = op
			opcodes = append(opcodes, op)
		}
		op.modes[d.mode] = append(op.modes[d.mode], d.opcode)
		return op
	}

	for _, d := range data {
		op := add(d)
		if decodeMap[d.opcode].op != nil {
			panic(fmt.Sprintf("opcode $%02X encoded twice", d.opcode))
		}
		decodeMap[d.opcode] = decoded{op, d.mode}
	}
	for _, d := range deadAliases {
		add(d)
	}

	for name, list := range aliases {
		op, ok := mnemonics[name]
		if !ok {
			panic("alias for missing mnemonic " + name)
		}
		for _, alias := range list {
			if _, dup := mnemonics[alias]; dup {
				panic("duplicate mnemonic " + alias)
			}
			mnemonics[alias] = op
			op.Aliases = append(op.Aliases, alias)
		}
	}

	for i := range decodeMap {
		if decodeMap[i].op == nil {
			panic(fmt.Sprintf("missing opcode $%02X", i))
		}
	}
}

// Lookup returns the opcode whose mnemonic or alias matches name. The
// match is exact and case-insensitive.
func Lookup(name string) (*Opcode, error) {
	op, ok := mnemonics[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownMnemonic, name)
	}
	return op, nil
}

// Decode returns the opcode and addressing mode encoded by a byte.
func Decode(b byte) (*Opcode, Mode) {
	d := decodeMap[b]
	return d.op, d.mode
}

// Opcodes returns all canonical opcodes in table order.
func Opcodes() []*Opcode {
	return opcodes
}
