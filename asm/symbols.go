// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Bind a label to the current end of the current block, and patch every
// reference that was waiting for it.
func (s *State) define(label fstring) error {
	name := label.str
	p := s.Program

	if prev, ok := p.Labels[name]; ok {
		s.warn(label, "label '%s' redefined (previous definition on line %d)", name, prev.Line)
	}
	if strings.EqualFold(name, "A") {
		s.warn(label, "label '%s' reads as the accumulator when used as a bare operand", name)
	}

	l := Label{Block: s.Current, Offset: len(s.block().Data), Line: label.row}
	p.Labels[name] = l
	s.logLine(label, "label=%s", name)

	refs := p.pending[name]
	delete(p.pending, name)
	for _, f := range refs {
		f.dest, f.bound = l, true
		if err := s.resolve(f); err != nil {
			return err
		}
	}
	return nil
}

// Record a reference from the instruction at offset in the current block.
// Its placeholder bytes must already have been emitted. The reference is
// patched now if possible, otherwise it is queued.
func (s *State) reference(kind refKind, offset int, v value, line fstring) error {
	f := &fixup{
		kind:   kind,
		block:  s.Current,
		offset: offset,
		label:  v.label,
		value:  v.n,
		line:   line,
	}

	if v.isLabel() {
		l, ok := s.Program.Labels[v.label]
		if !ok {
			s.Program.pending[v.label] = append(s.Program.pending[v.label], f)
			s.logLine(line, "forward ref=%s", v.label)
			return nil
		}
		f.dest, f.bound = l, true
	}
	return s.resolve(f)
}

// Patch a fixup whose target is known, or defer it to layout if the
// addresses it needs are not.
func (s *State) resolve(f *fixup) error {
	ok, err := s.Program.apply(f)
	if err != nil {
		return s.rangeError(f.line, "%v", err)
	}
	if !ok {
		s.Program.late = append(s.Program.late, f)
	}
	return nil
}

// Write the operand bytes of a fixup. Returns false if an address it
// depends on is not yet known.
func (p *Program) apply(f *fixup) (bool, error) {
	if f.label != "" && !f.bound {
		return false, nil
	}
	data := p.Blocks[f.block].Data

	switch f.kind {
	case refRelative:
		var disp int
		switch {
		case f.label != "" && f.dest.Block == f.block:
			disp = f.dest.Offset - f.offset - 2
		default:
			from, ok := p.addr(f.block, f.offset)
			if !ok {
				return false, nil
			}
			to := f.value
			if f.label != "" {
				if to, ok = p.addr(f.dest.Block, f.dest.Offset); !ok {
					return false, nil
				}
			}
			disp = to - from - 2
		}
		b, err := relOffset(disp, 0)
		if err != nil {
			return true, fmt.Errorf("branch target out of range (%d bytes)", disp)
		}
		data[f.offset+1] = b

	default:
		v := f.value
		if f.label != "" {
			var ok bool
			if v, ok = p.addr(f.dest.Block, f.dest.Offset); !ok {
				return false, nil
			}
		}
		if f.kind == refByte {
			if v > 0xff {
				return true, fmt.Errorf("value $%04X of '%s' does not fit in one byte", v, f.label)
			}
			data[f.offset+1] = byte(v)
		} else {
			data[f.offset+1] = byte(v)
			data[f.offset+2] = byte(v >> 8)
		}
	}
	return true, nil
}

// Return an error describing every label still referenced but never
// defined, or nil if there are none.
func (s *State) undefinedLabels() error {
	names := make([]string, 0, len(s.Program.pending))
	for name := range s.Program.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	var result *multierror.Error
	for _, name := range names {
		f := s.Program.pending[name][0]
		result = multierror.Append(result, s.newError(ErrResolution, f.line, "'%s'", name))
	}
	return result.ErrorOrNil()
}
