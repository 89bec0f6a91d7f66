// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"encoding/json"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// A SourceMap describes the mapping between source code line numbers and
// assembly code addresses.
type SourceMap struct {
	File   string
	Origin uint16
	Size   uint32
	CRC    uint32
	Lines  []SourceLine
	Labels []LabelAddress
}

// A SourceLine represents a mapping between a machine code address and
// the source code line number used to generate it.
type SourceLine struct {
	Address int // Machine code address
	Line    int // Source code line number
}

// A LabelAddress describes the final address of a label.
type LabelAddress struct {
	Label   string
	Address uint16
}

// Build the source map of a linked program.
func (s *State) sourceMap(origin uint16, image []byte) *SourceMap {
	p := s.Program

	lines := make([]SourceLine, 0, len(s.lines))
	for _, span := range s.lines {
		addr, _ := p.addr(span.block, span.offset)
		lines = append(lines, SourceLine{Address: addr, Line: span.line})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Address < lines[j].Address
	})

	labels := make([]LabelAddress, 0, len(p.Labels))
	for name, l := range p.Labels {
		addr, _ := p.addr(l.Block, l.Offset)
		labels = append(labels, LabelAddress{Label: name, Address: uint16(addr)})
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Address == labels[j].Address {
			return labels[i].Label < labels[j].Label
		}
		return labels[i].Address < labels[j].Address
	})

	return &SourceMap{
		File:   s.file,
		Origin: origin,
		Size:   uint32(len(image)),
		CRC:    crc32.ChecksumIEEE(image),
		Lines:  lines,
		Labels: labels,
	}
}

// Search searches the source map for a mapping with the requested address.
// It returns -1 if no source line produced the address.
func (s *SourceMap) Search(addr int) (line int) {
	i := sort.Search(len(s.Lines), func(i int) bool {
		return s.Lines[i].Address >= addr
	})
	if i < len(s.Lines) && s.Lines[i].Address == addr {
		return s.Lines[i].Line
	}
	return -1
}

// Lookup returns the address of a label.
func (s *SourceMap) Lookup(label string) (addr uint16, ok bool) {
	for _, l := range s.Labels {
		if l.Label == label {
			return l.Address, true
		}
	}
	return 0, false
}

// ReadFrom reads the contents of an exported source map file.
func (s *SourceMap) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(b, s)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// WriteTo writes the contents of the source map to an output stream.
func (s *SourceMap) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.MarshalIndent(*s, "", "  ")
	if err != nil {
		return 0, err
	}

	nn, err := w.Write(b)
	return int64(nn), err
}

// MapFilename returns the name of the source map file that accompanies
// the PRG file prg.
func MapFilename(prg string) string {
	return prg[:len(prg)-len(filepath.Ext(prg))] + ".map"
}

// WriteFile writes the source map to a file.
func (s *SourceMap) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
