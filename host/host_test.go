// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/prgasm/config"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = `.ORG $0800
start:	LDA #$05
	STA $02
	RTS
`

// fakeMonitor answers the memory and register commands of a remote
// monitor.
type fakeMonitor struct {
	mu  sync.Mutex
	mem [0x10000]byte
}

func (f *fakeMonitor) poke(addr uint16, b ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.mem[addr:], b)
}

func (f *fakeMonitor) serve(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "m":
			var start, end int
			fmt.Sscanf(fields[1], "%x", &start)
			fmt.Sscanf(fields[2], "%x", &end)
			f.mu.Lock()
			for a := start; a <= end; a += 16 {
				fmt.Fprintf(conn, ">C:%04x ", a)
				for i := 0; i < 16 && a+i <= end; i++ {
					fmt.Fprintf(conn, " %02x", f.mem[a+i])
				}
				fmt.Fprint(conn, "\n")
			}
			f.mu.Unlock()
		case "r":
			fmt.Fprint(conn, "  ADDR A  X  Y  SP 00 01 NV-BDIZC LIN CYC  STOPWATCH\n"+
				".;e5d1 00 00 0a f3 2f 37 00100010 000 001    3524249\n")
		case "quit":
			return
		}
		fmt.Fprint(conn, "(C:$e5d1) ")
	}
}

func startFake(t *testing.T) (*fakeMonitor, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &fakeMonitor{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return f, ln.Addr().String()
}

func newTestHost(t *testing.T) (*Host, string) {
	cfg := config.Default()
	cfg.Monitor.RetryInterval = config.Duration{Duration: 20 * time.Millisecond}
	cfg.Monitor.ReceiveTimeout = config.Duration{Duration: 50 * time.Millisecond}

	dir := t.TempDir()
	cfg.Output = filepath.Join(dir, "a.prg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prog.asm"), []byte(program), 0644))

	logger, _ := logtest.NewNullLogger()
	h := New(cfg, logger)
	t.Cleanup(func() { h.Close() })
	return h, dir
}

func run(t *testing.T, h *Host, lines ...string) string {
	var out bytes.Buffer
	script := strings.Join(lines, "\n") + "\n"
	require.NoError(t, h.RunCommands(context.Background(), strings.NewReader(script), &out, false))
	return out.String()
}

func TestAssemble(t *testing.T) {
	h, dir := newTestHost(t)
	src := filepath.Join(dir, "prog.asm")
	prg := filepath.Join(dir, "prog.prg")

	out := run(t, h, "set sourcemap true", "assemble "+src+" "+prg, "labels")
	assert.Contains(t, out, "Setting SourceMap updated.")
	assert.Contains(t, out, fmt.Sprintf("Assembled '%s' to '%s' ($0800, 5 bytes).", src, prg))
	assert.Contains(t, out, "Saved source map '"+filepath.Join(dir, "prog.map")+"'.")
	assert.Contains(t, out, "    $0800  start\n")

	b, err := os.ReadFile(prg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x08, 0xa9, 0x05, 0x85, 0x02, 0x60}, b)
	assert.FileExists(t, filepath.Join(dir, "prog.map"))
}

func TestAssembleDefaultOutput(t *testing.T) {
	h, dir := newTestHost(t)
	out := run(t, h, "a "+filepath.Join(dir, "prog.asm"))
	assert.Contains(t, out, "a.prg")
	assert.FileExists(t, filepath.Join(dir, "a.prg"))
}

func TestAssembleFailure(t *testing.T) {
	h, dir := newTestHost(t)
	bad := filepath.Join(dir, "bad.asm")
	require.NoError(t, os.WriteFile(bad, []byte("JMP nowhere\n"), 0644))

	out := run(t, h, "assemble "+bad, "labels")
	assert.Contains(t, out, "Failed to assemble '"+bad+"'.")
	assert.Contains(t, out, "nowhere")
	assert.Contains(t, out, "ERROR: no program has been assembled.")
}

func TestNotConnected(t *testing.T) {
	h, _ := newTestHost(t)
	out := run(t, h, "memory $0800", "registers", "verify")
	assert.Equal(t, 3, strings.Count(out, "ERROR: not connected to a monitor"))
}

func TestUnknownCommand(t *testing.T) {
	h, _ := newTestHost(t)
	out := run(t, h, "frobnicate")
	assert.Contains(t, out, "Command not found.")
}

func TestSettings(t *testing.T) {
	h, _ := newTestHost(t)
	out := run(t, h, "set hexmode true", "set disasm 4", "set nosuch 1", "set warnillegal maybe", "set")
	assert.Contains(t, out, "Setting HexMode updated.")
	assert.Contains(t, out, "Setting DisasmLines updated.")
	assert.Contains(t, out, "ERROR: setting 'nosuch' not found.")
	assert.Contains(t, out, "ERROR: invalid bool value 'maybe'.")
	assert.Contains(t, out, "Variables:")
	assert.True(t, h.settings.HexMode)
	assert.Equal(t, 4, h.settings.DisasmLines)

	n, err := h.parseAddr("0800")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0800), n)
}

func TestHelp(t *testing.T) {
	h, _ := newTestHost(t)
	out := run(t, h, "help", "help mem")
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "    verify           Compare a PRG file with emulator memory\n")
	assert.Contains(t, out, "Syntax: memory [<start>] [<end>]")
}

func TestMonitorCommands(t *testing.T) {
	f, addr := startFake(t)
	h, dir := newTestHost(t)
	f.poke(0x0800, 0xa9, 0x05, 0x85, 0x02, 0x60)

	out := run(t, h,
		"assemble "+filepath.Join(dir, "prog.asm"),
		"connect "+addr,
		"memory start $0803",
		"set disasmlines 2",
		"disassemble start",
		"registers",
		"verify",
	)
	assert.Contains(t, out, "Connected to monitor at "+addr+".")
	assert.Contains(t, out, "0800- A9 05 85 02")
	assert.Contains(t, out, ")...")
	assert.Contains(t, out, "0800-   A9 05       LDA #$05")
	assert.Contains(t, out, "; start")
	assert.Contains(t, out, "0802-   85 02       STA $02")
	assert.NotContains(t, out, "RTS")
	assert.Contains(t, out, "PC=$E5D1 A=$00 X=$00 Y=$0A SP=$F3 NV-BDIZC=00100010")
	assert.Contains(t, out, "Verified 5 bytes at $0800.")
	assert.Equal(t, uint16(0x0804), h.settings.NextDisasmAddr)

	f.poke(0x0803, 0xff)
	out = run(t, h, "verify", "verify "+filepath.Join(dir, "a.prg"))
	assert.Equal(t, 2, strings.Count(out, "$0803: expected $02, found $FF"))
	assert.Contains(t, out, "1 of 5 bytes differ.")
}

func TestMemoryDump(t *testing.T) {
	f, addr := startFake(t)
	h, _ := newTestHost(t)
	f.poke(0x0c03, []byte("HELLO, WORLD")...)

	out := run(t, h, "connect "+addr, "memory $0c03 $0c0e")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0C00-"+strings.Repeat(" ", 10)+"48 45 4C 4C 4F"+strings.Repeat(" ", 6)+"HELLO", lines[1])
	assert.Equal(t, "0C08- 2C 20 57 4F 52 4C 44"+strings.Repeat(" ", 5)+", WORLD ", lines[2])
}

func TestQuit(t *testing.T) {
	_, addr := startFake(t)
	h, _ := newTestHost(t)

	out := run(t, h, "connect "+addr, "quit", "help")
	assert.NotContains(t, out, "Commands:")
	assert.Nil(t, h.client)
}

func TestDumpMemoryShort(t *testing.T) {
	h, _ := newTestHost(t)
	var out bytes.Buffer
	h.output = bufio.NewWriter(&out)
	h.dumpMemory(0x1234, []byte{0x41, 0xc2, 0x00})
	assert.Equal(t, "1234- 41 C2 00"+strings.Repeat(" ", 18)+"AB."+strings.Repeat(" ", 5)+"\n", out.String())
}

func TestIndentWrap(t *testing.T) {
	s := indentWrap(3, strings.Repeat("word ", 20))
	for _, line := range strings.Split(s, "\n") {
		assert.True(t, strings.HasPrefix(line, "   word"))
		assert.LessOrEqual(t, len(line), 76)
	}
	assert.Equal(t, "   a b", indentWrap(3, "a  b"))
}
