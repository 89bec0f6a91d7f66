// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Every line the monitor sends starts with a prompt of the form
// "(C:$0801) ".
var promptFilter = regexp.MustCompile(`(?m)^\(C:\$[0-9a-fA-F]{4}\) `)

// StripPrompts removes the monitor prompt from the start of every line.
func StripPrompts(s string) string {
	return promptFilter.ReplaceAllString(s, "")
}

// ParseMemory extracts the bytes start through end from the output of the
// monitor's "m" command. Each line of a dump looks like
//
//	>C:0900  a9 05 85 02  4c 00 08 00  00 00 00 00  00 00 00 00   ....L...........
func ParseMemory(out string, start, end uint16) ([]byte, error) {
	if end < start {
		return nil, errors.Errorf("invalid range $%04X-$%04X", start, end)
	}

	count := int(end-start) + 1
	mem := make([]byte, count)
	seen := make([]bool, count)
	found := 0

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ">C:") {
			continue
		}
		fields := strings.Fields(line[3:])
		if len(fields) == 0 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "bad dump address in %q", line)
		}

		for i, f := range fields[1:] {
			if i == 16 || len(f) != 2 {
				break
			}
			v, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				break
			}
			off := int(addr) + i - int(start)
			if off < 0 || off >= count || seen[off] {
				continue
			}
			mem[off], seen[off] = byte(v), true
			found++
			if found == count {
				return mem, nil
			}
		}
	}

	return nil, errors.Errorf("memory dump has %d of %d bytes for $%04X-$%04X", found, count, start, end)
}

// Registers holds the CPU state reported by the monitor's "r" command.
type Registers struct {
	PC    uint16
	A     byte
	X     byte
	Y     byte
	SP    byte
	Flags string // NV-BDIZC as a string of binary digits
}

// ParseRegisters interprets the output of the monitor's "r" command:
//
//	  ADDR A  X  Y  SP 00 01 NV-BDIZC LIN CYC  STOPWATCH
//	.;e5d1 00 00 0a f3 2f 37 00100010 000 001    3524249
func ParseRegisters(out string) (Registers, error) {
	var r Registers

	lines := strings.Split(out, "\n")
	for i := 0; i+1 < len(lines); i++ {
		names := strings.Fields(lines[i])
		if len(names) == 0 || names[0] != "ADDR" {
			continue
		}
		values := strings.Fields(strings.TrimPrefix(strings.TrimSpace(lines[i+1]), ".;"))
		if len(values) < len(names) {
			return r, errors.Errorf("register line %q is short", lines[i+1])
		}

		for j, name := range names {
			v := values[j]
			switch name {
			case "ADDR":
				n, err := strconv.ParseUint(v, 16, 16)
				if err != nil {
					return r, errors.Wrap(err, "bad program counter")
				}
				r.PC = uint16(n)
			case "A", "X", "Y", "SP":
				n, err := strconv.ParseUint(v, 16, 8)
				if err != nil {
					return r, errors.Wrapf(err, "bad register %s", name)
				}
				switch name {
				case "A":
					r.A = byte(n)
				case "X":
					r.X = byte(n)
				case "Y":
					r.Y = byte(n)
				default:
					r.SP = byte(n)
				}
			case "NV-BDIZC":
				r.Flags = v
			}
		}
		return r, nil
	}
	return r, errors.New("no register display found")
}
