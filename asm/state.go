// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"io"
)

// A Block is a contiguous run of assembled bytes. Only the .ORG directive
// starts a new block.
type Block struct {
	Origin   uint16 // load address; valid once explicit or laid out
	Explicit bool   // origin was set by .ORG
	Line     int    // line of the .ORG directive, 0 for the initial block
	Data     []byte // assembled bytes
}

// A Label binds a name to an offset within a block.
type Label struct {
	Block  int // index of the block active at definition
	Offset int // offset within the block's data
	Line   int // line of the definition
}

// The kind of bytes a fixup writes.
type refKind byte

const (
	refAbsolute refKind = iota // 2-byte little-endian address
	refByte                    // 1-byte zero page or immediate value
	refRelative                // 1-byte signed branch displacement
)

var refKindName = []string{"absolute", "byte", "relative"}

func (k refKind) String() string {
	return refKindName[k]
}

// A fixup is a pending write of an instruction's operand bytes. The
// placeholder bytes follow the opcode byte at offset.
type fixup struct {
	kind   refKind
	block  int     // block containing the instruction
	offset int     // offset of the instruction's opcode byte
	label  string  // referenced label, empty for a literal target
	dest   Label   // label binding, valid when bound is true
	bound  bool    // label binding is known
	value  int     // literal target address, when label is empty
	line   fstring // source line of the instruction
}

// A Program is the collection of blocks, labels and pending references
// built up by a single assembly pass.
type Program struct {
	Blocks  []*Block
	Labels  map[string]Label
	pending map[string][]*fixup // unresolved references, by label
	late    []*fixup            // references waiting for layout
	base    uint16              // origin of a program with no .ORG
	file    string              // source file name, for errors
	linked  bool                // origins and late fixups resolved
	linkErr error               // failure encountered while linking
}

func newProgram(file string, base uint16) *Program {
	return &Program{
		file:    file,
		Blocks:  []*Block{{}},
		Labels:  make(map[string]Label),
		pending: make(map[string][]*fixup),
		base:    base,
	}
}

// Return the origin of a block if it can be determined yet. A block
// without an explicit origin is anchored to the next explicit block once
// one exists.
func (p *Program) origin(block int) (int, bool) {
	b := p.Blocks[block]
	if b.Explicit || p.linked {
		return int(b.Origin), true
	}
	n := 0
	for i := block; i < len(p.Blocks); i++ {
		if p.Blocks[i].Explicit {
			o := int(p.Blocks[i].Origin) - n
			return o, o >= 0
		}
		n += len(p.Blocks[i].Data)
	}
	return 0, false
}

// Return the address of an offset within a block, if known.
func (p *Program) addr(block, offset int) (int, bool) {
	o, ok := p.origin(block)
	return o + offset, ok
}

// Dump writes a description of each block in creation order.
func (p *Program) Dump(w io.Writer) {
	for i, b := range p.Blocks {
		origin := "implicit"
		if o, ok := p.origin(i); ok {
			origin = fmt.Sprintf("$%04X", o)
		}
		fmt.Fprintf(w, "block %d: origin=%s size=%d\n", i, origin, len(b.Data))
		for j := 0; j < len(b.Data); j += 16 {
			k := min(j+16, len(b.Data))
			fmt.Fprintf(w, "  +%04X  %s\n", j, byteString(b.Data[j:k]))
		}
	}
}

// Options control the behavior of the assembler.
type Options struct {
	WarnIllegal bool      // add a warning for each undocumented opcode
	Verbose     bool      // trace assembly to Out
	Out         io.Writer // verbose output, os.Stdout if nil
	Origin      uint16    // load address of a program with no .ORG
}

// State is the mutable state of an assembly pass. It is created by
// NewState, fed one source line at a time, and finished once.
type State struct {
	Program     *Program
	Current     int          // index of the block receiving bytes
	Line        int          // number of the line being assembled
	Diagnostics []Diagnostic // warnings collected so far

	file    string
	opts    Options
	out     io.Writer
	lines   []lineSpan // emitted byte spans, for the source map
	done    bool
	verbose bool
}

// A run of bytes emitted by one source line.
type lineSpan struct {
	block  int
	offset int
	line   int
}

func (s *State) block() *Block {
	return s.Program.Blocks[s.Current]
}
