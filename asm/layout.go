// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
)

func (p *Program) layoutError(line int, format string, args ...any) error {
	return &Error{Kind: ErrLayout, File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *Program) fixupError(f *fixup, err error) error {
	return &Error{
		Kind:   ErrRange,
		File:   p.file,
		Line:   f.line.row,
		Column: f.line.column + 1,
		Text:   f.line.full,
		Msg:    err.Error(),
	}
}

// Resolve the origin of every block and apply the references that were
// waiting for them. Linking happens once.
func (p *Program) link() error {
	if p.linked {
		return p.linkErr
	}

	first := -1
	for i, b := range p.Blocks {
		if b.Explicit {
			first = i
			break
		}
	}

	switch first {
	case -1:
		p.Blocks[0].Origin = p.base
	default:
		n := 0
		for i := 0; i < first; i++ {
			n += len(p.Blocks[i].Data)
		}
		start := int(p.Blocks[first].Origin) - n
		if start < 0 {
			return p.layoutError(p.Blocks[first].Line,
				"%d bytes precede origin $%04X", n, p.Blocks[first].Origin)
		}
		for i := 0; i < first; i++ {
			p.Blocks[i].Origin = uint16(start)
			start += len(p.Blocks[i].Data)
		}
	}
	p.linked = true

	for _, f := range p.late {
		ok, err := p.apply(f)
		if err == nil && !ok {
			err = errors.New("unresolved address")
		}
		if err != nil {
			p.linkErr = p.fixupError(f, err)
			return p.linkErr
		}
	}
	p.late = nil
	return nil
}

// Return the blocks sorted by origin. Blocks with equal origins keep their
// creation order.
func (p *Program) sorted() []*Block {
	blocks := make([]*Block, len(p.Blocks))
	copy(blocks, p.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Origin < blocks[j].Origin
	})
	return blocks
}

// Write links the program and writes its load-address header followed by
// the block data in address order, with gaps filled by zeros.
func (p *Program) Write(w io.Writer) (int64, error) {
	if err := p.link(); err != nil {
		return 0, err
	}

	blocks := p.sorted()
	start := int(blocks[0].Origin)

	// Validate before writing anything.
	cursor := start
	var prev *Block
	for _, b := range blocks {
		if int(b.Origin) < cursor {
			return 0, p.layoutError(b.Line,
				"block at $%04X overlaps block at $%04X (ends at $%04X)",
				b.Origin, prev.Origin, cursor)
		}
		cursor = int(b.Origin) + len(b.Data)
		if cursor > 0x10000 {
			return 0, p.layoutError(b.Line,
				"block at $%04X extends past $FFFF", b.Origin)
		}
		prev = b
	}

	var n int64
	nn, err := w.Write(toBytes(2, start))
	n += int64(nn)
	if err != nil {
		return n, err
	}

	cursor = start
	for _, b := range blocks {
		if gap := int(b.Origin) - cursor; gap > 0 {
			nn, err = w.Write(make([]byte, gap))
			n += int64(nn)
			if err != nil {
				return n, err
			}
		}
		nn, err = w.Write(b.Data)
		n += int64(nn)
		if err != nil {
			return n, err
		}
		cursor = int(b.Origin) + len(b.Data)
	}
	return n, nil
}

// Bytes returns the complete program image, including the load-address
// header.
func (p *Program) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
