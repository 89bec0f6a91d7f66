// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registerDisplay = "  ADDR A  X  Y  SP 00 01 NV-BDIZC LIN CYC  STOPWATCH\n" +
	".;e5d1 00 00 0a f3 2f 37 00100010 000 001    3524249\n"

// A fakeMonitor answers the subset of the VICE monitor protocol the client
// uses, over a real TCP connection.
type fakeMonitor struct {
	mu  sync.Mutex
	mem [0x10000]byte
	pc  uint16
}

func (f *fakeMonitor) poke(addr uint16, b ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.mem[addr:], b)
}

func (f *fakeMonitor) dump(w io.Writer, start, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for a := start; a <= end; a += 16 {
		fmt.Fprintf(w, ">C:%04x ", a)
		ascii := ""
		for i := 0; i < 16 && a+i <= end; i++ {
			if i%4 == 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%02x ", f.mem[a+i])
			ascii += "."
		}
		fmt.Fprintf(w, "  %s\n", ascii)
	}
}

func (f *fakeMonitor) serve(conn net.Conn) {
	defer conn.Close()
	prompt := func() { fmt.Fprintf(conn, "(C:$%04x) ", f.pc) }

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			prompt()
			continue
		}
		switch fields[0] {
		case "m":
			var start, end int
			fmt.Sscanf(fields[1], "%x", &start)
			fmt.Sscanf(fields[2], "%x", &end)
			f.dump(conn, start, end)
		case "d":
			fmt.Fprintf(conn, ".C:%s  A9 05       LDA #$05\n", fields[1])
		case "r":
			fmt.Fprint(conn, registerDisplay)
		case "quit":
			return
		default:
			fmt.Fprintf(conn, "*** unknown command\n")
		}
		prompt()
	}
}

func (f *fakeMonitor) listen(t *testing.T, ln net.Listener) {
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
}

func startFake(t *testing.T) (*fakeMonitor, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &fakeMonitor{pc: 0x0801}
	f.listen(t, ln)
	return f, ln.Addr().String()
}

func quietOptions() Options {
	logger := logrus.New()
	logger.Out = io.Discard
	return Options{
		RetryInterval:  20 * time.Millisecond,
		ReceiveTimeout: 50 * time.Millisecond,
		Log:            logger,
	}
}

func dial(t *testing.T, addr string, opts Options) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStripPrompts(t *testing.T) {
	in := "(C:$0801) foo\n(C:$e5D1) bar\nx (C:$0000) y\n(C:$12) z\n"
	assert.Equal(t, "foo\nbar\nx (C:$0000) y\n(C:$12) z\n", StripPrompts(in))
	assert.Equal(t, "", StripPrompts("(C:$0900) "))
}

func TestParseMemory(t *testing.T) {
	out := ">C:0900  a9 05 85 02  4c 00 08 00  00 00 00 00  00 00 00 00   ....L...........\n" +
		">C:0910  ea 60\n"

	mem, err := ParseMemory(out, 0x0900, 0x0908)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa9, 0x05, 0x85, 0x02, 0x4c, 0x00, 0x08, 0x00, 0x00}, mem)

	mem, err = ParseMemory(out, 0x0902, 0x0904)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x85, 0x02, 0x4c}, mem)

	mem, err = ParseMemory(out, 0x090f, 0x0911)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xea, 0x60}, mem)

	_, err = ParseMemory(out, 0x0900, 0x0920)
	assert.Error(t, err)

	_, err = ParseMemory(out, 0x0910, 0x0900)
	assert.Error(t, err)
}

func TestParseRegisters(t *testing.T) {
	r, err := ParseRegisters(registerDisplay)
	require.NoError(t, err)
	assert.Equal(t, Registers{PC: 0xe5d1, A: 0, X: 0, Y: 0x0a, SP: 0xf3, Flags: "00100010"}, r)

	_, err = ParseRegisters("nothing here\n")
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	_, addr := startFake(t)
	c := dial(t, addr, quietOptions())
	ctx := context.Background()

	out, err := c.Command(ctx, "d 0900 0902")
	require.NoError(t, err)
	assert.Equal(t, ".C:0900  A9 05       LDA #$05\n", out)

	out, err = c.Disassemble(ctx, 0x0900, 0x0902)
	require.NoError(t, err)
	assert.Contains(t, out, "LDA #$05")

	r, err := c.Registers(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xe5d1), r.PC)
}

func TestMemoryAndVerify(t *testing.T) {
	f, addr := startFake(t)
	logger, hook := logtest.NewNullLogger()
	opts := quietOptions()
	opts.Log = logger
	c := dial(t, addr, opts)
	ctx := context.Background()

	image := []byte{0x00, 0x08, 0xa9, 0x05, 0x85, 0x02, 0x4c, 0x00, 0x08}
	f.poke(0x0800, image[2:]...)

	mem, err := c.Memory(ctx, 0x0800, 0x0806)
	require.NoError(t, err)
	assert.Equal(t, image[2:], mem)

	diffs, err := c.Verify(ctx, image)
	require.NoError(t, err)
	assert.Empty(t, diffs)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "verified image against emulator memory", hook.LastEntry().Message)

	f.poke(0x0803, 0x03)
	diffs, err = c.Verify(ctx, image)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, Mismatch{Addr: 0x0803, Want: 0x02, Got: 0x03}, diffs[0])
	assert.Equal(t, "$0803: expected $02, found $03", diffs[0].String())

	_, err = c.Verify(ctx, image[:2])
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	diffs, err := Compare([]byte{0x00, 0xc0, 1, 2, 3}, []byte{1, 9, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []Mismatch{{Addr: 0xc001, Want: 2, Got: 9}}, diffs)

	_, err = Compare([]byte{0x00, 0xc0, 1, 2, 3}, []byte{1})
	assert.Error(t, err)
	_, err = Compare([]byte{0x00}, nil)
	assert.Error(t, err)
}

func TestQuit(t *testing.T) {
	_, addr := startFake(t)
	c := dial(t, addr, quietOptions())
	ctx := context.Background()

	require.NoError(t, c.Quit(ctx))
	_, err := c.Command(ctx, "r")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func freeAddr(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDialRetry(t *testing.T) {
	addr := freeAddr(t)

	go func() {
		time.Sleep(100 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		t.Cleanup(func() { ln.Close() })
		f := &fakeMonitor{}
		f.listen(t, ln)
	}()

	c := dial(t, addr, quietOptions())
	assert.Equal(t, addr, c.Addr())
}

func TestDialTimeout(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, addr, quietOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestHelperProcess stands in for the emulator when run by Launch from
// the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("HELPER_EXIT") != "" {
		os.Exit(3)
	}

	args := os.Args
	var addr string
	for i, a := range args {
		if a == "-remotemonitoraddress" && i+1 < len(args) {
			addr = args[i+1]
		}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		os.Exit(2)
	}
	conn, err := ln.Accept()
	if err != nil {
		os.Exit(2)
	}
	f := &fakeMonitor{pc: 0x0801}
	f.serve(conn)
	os.Exit(0)
}

func helperConfig(t *testing.T, env ...string) EmulatorConfig {
	return EmulatorConfig{
		Path:    os.Args[0],
		Program: "prog.prg",
		Address: freeAddr(t),
		Args:    []string{"-test.run=^TestHelperProcess$", "--"},
		Env:     append([]string{"GO_WANT_HELPER_PROCESS=1"}, env...),
		Options: quietOptions(),
	}
}

func TestLaunch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := helperConfig(t)
	assert.Equal(t, []string{"-test.run=^TestHelperProcess$", "--", "-autoload", "prog.prg",
		"-remotemonitor", "-remotemonitoraddress", cfg.Address}, cfg.args())

	e, err := Launch(ctx, cfg)
	require.NoError(t, err)

	r, err := e.Client.Registers(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xf3), r.SP)

	assert.NoError(t, e.Close(5*time.Second))
}

func TestLaunchExitEarly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Launch(ctx, helperConfig(t, "HELPER_EXIT=1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestLaunchMissingEmulator(t *testing.T) {
	_, err := Launch(context.Background(), EmulatorConfig{
		Path:    "/nonexistent/x64",
		Options: quietOptions(),
	})
	assert.Error(t, err)
}
