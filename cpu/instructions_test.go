// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"strings"
	"testing"
)

var documentedNames = "ADC AND ASL BCC BCS BEQ BIT BMI BNE BPL BRK BVC BVS " +
	"CLC CLD CLI CLV CMP CPX CPY DEC DEX DEY EOR INC INX INY JMP JSR LDA " +
	"LDX LDY LSR NOP ORA PHA PHP PLA PLP ROL ROR RTI RTS SBC SEC SED SEI " +
	"STA STX STY TAX TAY TSX TXA TXS TYA"

func TestDecodeCoversAllBytes(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		op, mode := Decode(b)
		if op == nil {
			t.Fatalf("opcode $%02X has no decoding", b)
		}
		found := false
		for _, e := range op.Encodings(mode) {
			if e == b {
				found = true
			}
		}
		if !found {
			t.Errorf("opcode $%02X decodes to %s %s, which does not encode it", b, op.Name, mode)
		}
	}
}

func TestEncodingsAreUnique(t *testing.T) {
	seen := make(map[byte]string)
	for _, op := range Opcodes() {
		for _, mode := range op.Modes() {
			for _, b := range op.Encodings(mode) {
				key := op.Name + " " + mode.String()
				if prev, ok := seen[b]; ok {
					if b == 0xab && (prev == "LAX IMM" || key == "LAX IMM") {
						continue
					}
					t.Errorf("opcode $%02X encoded by both %s and %s", b, prev, key)
				}
				seen[b] = key
			}
		}
	}
	if len(seen) != 256 {
		t.Errorf("expected 256 encodings, got %d", len(seen))
	}
}

func TestEncodingPrefersFirst(t *testing.T) {
	cases := []struct {
		name string
		mode Mode
		exp  byte
	}{
		{"NOP", IMP, 0xea},
		{"NOP", IMM, 0x80},
		{"NOP", ZPX, 0x14},
		{"NOP", ABX, 0x1c},
		{"SBC", IMM, 0xe9},
		{"ANC", IMM, 0x0b},
		{"JAM", IMP, 0x02},
		{"LAX", IMM, 0xab},
		{"LXA", IMM, 0xab},
		{"JMP", IND, 0x6c},
		{"BNE", REL, 0xd0},
	}
	for _, c := range cases {
		op, err := Lookup(c.name)
		if err != nil {
			t.Fatal(err)
		}
		b, ok := op.Encoding(c.mode)
		if !ok || b != c.exp {
			t.Errorf("%s %s: exp $%02X, got $%02X (%v)", c.name, c.mode, c.exp, b, ok)
		}
	}
}

func TestDeadAlias(t *testing.T) {
	op, mode := Decode(0xab)
	if op.Name != "LXA" || mode != IMM {
		t.Errorf("$AB decodes to %s %s, expected LXA IMM", op.Name, mode)
	}
}

func TestLookup(t *testing.T) {
	for alias, name := range map[string]string{
		"lda": "LDA",
		"Kil": "JAM",
		"HLT": "JAM",
		"ISC": "ISB",
		"lar": "LAS",
		"XAA": "ANE",
	} {
		op, err := Lookup(alias)
		if err != nil {
			t.Errorf("lookup %s: %v", alias, err)
			continue
		}
		if op.Name != name {
			t.Errorf("lookup %s: exp %s, got %s", alias, name, op.Name)
		}
	}

	_, err := Lookup("LDQ")
	if !errors.Is(err, ErrUnknownMnemonic) {
		t.Errorf("expected unknown mnemonic error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	counts := make(map[Class]int)
	for i := 0; i < 256; i++ {
		b := byte(i)
		c := Classify(b)
		counts[c]++

		op, mode := Decode(b)
		first, _ := op.Encoding(mode)
		documented := strings.Contains(documentedNames, op.Name) &&
			first == b && (op.Name != "NOP" || mode == IMP)
		if documented != (c == Documented) {
			t.Errorf("$%02X %s %s classified %s", b, op.Name, mode, c)
		}
		if IsIllegal(b) == documented {
			t.Errorf("$%02X IsIllegal mismatch", b)
		}
	}

	if Classify(0xbb) != Unstable {
		t.Errorf("$BB classified %s", Classify(0xbb))
	}
	if counts[Documented] != 151 {
		t.Errorf("expected 151 documented opcodes, got %d", counts[Documented])
	}
	if counts[Unstable] != 7 {
		t.Errorf("expected 7 unstable opcodes, got %d", counts[Unstable])
	}
}

func TestModeLength(t *testing.T) {
	exp := map[Mode]int{
		IMP: 1, ACC: 1,
		IMM: 2, ZPG: 2, ZPX: 2, ZPY: 2, IDX: 2, IDY: 2, REL: 2,
		ABS: 3, ABX: 3, ABY: 3, IND: 3,
	}
	for m, n := range exp {
		if m.Length() != n {
			t.Errorf("%s: exp length %d, got %d", m, n, m.Length())
		}
	}
}

func TestParseModeTag(t *testing.T) {
	cases := map[string]Width{
		"":         AutoWidth,
		"z":        ShortWidth,
		"zero":     ShortWidth,
		"B":        ShortWidth,
		"a":        LongWidth,
		"abs":      LongWidth,
		"w":        LongWidth,
		"absolute": LongWidth,
	}
	for tag, exp := range cases {
		w, err := ParseModeTag(tag)
		if err != nil {
			t.Errorf("tag %q: %v", tag, err)
			continue
		}
		if w != exp {
			t.Errorf("tag %q: exp %d, got %d", tag, exp, w)
		}
	}

	for _, tag := range []string{"x", "zp", "long"} {
		if _, err := ParseModeTag(tag); !errors.Is(err, ErrUnknownMode) {
			t.Errorf("tag %q: expected unknown mode error, got %v", tag, err)
		}
	}
}
