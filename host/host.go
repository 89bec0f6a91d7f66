// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements an interactive shell that ties the assembler to
// a running emulator.
//
// Within the host it is possible to assemble source files into PRG
// images, start an emulator with the image autoloaded, connect to the
// emulator's remote monitor, dump and disassemble its memory, display the
// CPU registers, and verify that the emulator's memory holds the
// assembled program.
package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/beevik/cmd"
	"github.com/beevik/prgasm/asm"
	"github.com/beevik/prgasm/config"
	"github.com/beevik/prgasm/disasm"
	"github.com/beevik/prgasm/monitor"
	"github.com/sirupsen/logrus"
)

// Time limits for monitor operations started by a command.
const (
	commandTimeout = 10 * time.Second
	connectTimeout = 10 * time.Second
	closeTimeout   = 5 * time.Second
)

var (
	errQuit         = errors.New("quit")
	errNotConnected = errors.New("not connected to a monitor; use connect or launch first")
	errNoProgram    = errors.New("no program has been assembled")
)

// A Host is an interactive session with the assembler and, optionally, an
// emulator's remote monitor.
type Host struct {
	ctx         context.Context
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	log         logrus.FieldLogger
	cfg         *config.Config
	settings    *settings
	lastCmd     *cmd.Selection
	client      *monitor.Client
	emulator    *monitor.Emulator
	image       []byte
	imageFile   string
	sourceMap   *asm.SourceMap
}

// New creates a host using the given configuration. Log messages go to
// log, or to the standard logger if log is nil.
func New(cfg *config.Config, log logrus.FieldLogger) *Host {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Host{
		ctx:      context.Background(),
		log:      log,
		cfg:      cfg,
		settings: newSettings(cfg),
	}
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered. It returns when the
// input is exhausted, the quit command is run, or ctx is cancelled.
func (h *Host) RunCommands(ctx context.Context, r io.Reader, w io.Writer, interactive bool) error {
	h.ctx = ctx
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive
	defer h.flush()

	for ctx.Err() == nil {
		h.prompt()

		line, err := h.getLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var c cmd.Selection
		if line = strings.TrimSpace(line); line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.lastCmd != nil && h.interactive {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		h.log.WithField("cmd", line).Debug("running host command")
		err = c.Command.Data.(handler)(h, c)
		switch {
		case err == errQuit:
			return nil
		case err != nil:
			h.printf("ERROR: %v.\n", err)
		}
	}
	return ctx.Err()
}

// Close disconnects from the monitor and shuts down any emulator the host
// started.
func (h *Host) Close() error {
	var err error
	switch {
	case h.emulator != nil:
		err = h.emulator.Close(closeTimeout)
	case h.client != nil:
		err = h.client.Close()
	}
	h.emulator, h.client = nil, nil
	return err
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.print("* ")
		h.flush()
	}
}

func (h *Host) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, commandTimeout)
}

func (h *Host) connected() (*monitor.Client, error) {
	if h.client == nil {
		return nil, errNotConnected
	}
	return h.client, nil
}

func (h *Host) cmdAssemble(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText("assemble")
		return nil
	}

	filename := c.Args[0]
	out := h.settings.Output
	if len(c.Args) >= 2 {
		out = c.Args[1]
	}

	opts := h.cfg.AsmOptions()
	opts.WarnIllegal = h.settings.WarnIllegal
	a, err := asm.AssembleFile(filename, out, opts)
	if err != nil {
		h.printf("Failed to assemble '%s'.\n", filename)
		h.println(err)
		return nil
	}

	for _, d := range a.Diagnostics {
		h.println(d.String())
	}
	h.image, h.imageFile, h.sourceMap = a.Code, out, a.SourceMap
	size := len(a.Code) - 2
	h.printf("Assembled '%s' to '%s' ($%04X, %d bytes).\n", filename, out, a.Origin, size)
	h.log.WithField("file", filename).WithField("output", out).Debug("assembled program")

	if h.settings.SourceMap {
		mapFile := asm.MapFilename(out)
		if err := a.SourceMap.WriteFile(mapFile); err != nil {
			return err
		}
		h.printf("Saved source map '%s'.\n", mapFile)
	}
	return nil
}

func (h *Host) cmdConnect(c cmd.Selection) error {
	addr := h.cfg.Monitor.Address
	if len(c.Args) > 0 {
		addr = c.Args[0]
	}

	h.Close()
	ctx, cancel := context.WithTimeout(h.ctx, connectTimeout)
	defer cancel()

	client, err := monitor.Dial(ctx, addr, h.cfg.MonitorOptions(h.log))
	if err != nil {
		return err
	}
	h.client = client
	h.printf("Connected to monitor at %s.\n", addr)
	return nil
}

func (h *Host) cmdLaunch(c cmd.Selection) error {
	program := h.imageFile
	if len(c.Args) > 0 {
		program = c.Args[0]
	}
	if program == "" {
		return errNoProgram
	}

	h.Close()
	e, err := monitor.Launch(h.ctx, monitor.EmulatorConfig{
		Path:    h.cfg.Monitor.Emulator,
		Program: program,
		Address: h.cfg.Monitor.Address,
		Options: h.cfg.MonitorOptions(h.log),
	})
	if err != nil {
		return err
	}
	h.emulator, h.client = e, e.Client
	h.printf("Launched %s with '%s', monitor at %s.\n", h.cfg.Monitor.Emulator, program, e.Client.Addr())
	return nil
}

// Parse the optional start and end address arguments of a memory range
// command. A missing start continues from next. A missing end is filled in
// by the caller.
func (h *Host) parseRange(args []string, next uint16) (start uint16, end int, err error) {
	start, end = next, -1
	if len(args) > 0 {
		if start, err = h.parseAddr(args[0]); err != nil {
			return 0, 0, err
		}
	}
	if len(args) > 1 {
		e, err := h.parseAddr(args[1])
		if err != nil {
			return 0, 0, err
		}
		if e < start {
			return 0, 0, fmt.Errorf("end address $%04X precedes start address $%04X", e, start)
		}
		end = int(e)
	}
	return start, end, nil
}

func (h *Host) cmdMemory(c cmd.Selection) error {
	client, err := h.connected()
	if err != nil {
		return err
	}

	start, end, err := h.parseRange(c.Args, h.settings.NextMemDumpAddr)
	if err != nil {
		return err
	}
	if end < 0 {
		end = min(int(start)+h.settings.MemDumpBytes-1, 0xffff)
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	mem, err := client.Memory(ctx, start, uint16(end))
	if err != nil {
		return err
	}

	h.dumpMemory(start, mem)
	h.settings.NextMemDumpAddr = uint16(end + 1)
	h.lastCmd.Args = nil
	return nil
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	client, err := h.connected()
	if err != nil {
		return err
	}

	start, end, err := h.parseRange(c.Args, h.settings.NextDisasmAddr)
	if err != nil {
		return err
	}
	lines := 0
	if end < 0 {
		lines = h.settings.DisasmLines
		end = min(int(start)+lines*3-1, 0xffff)
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	mem, err := client.Memory(ctx, start, uint16(end))
	if err != nil {
		return err
	}

	// Trim the fetched memory to whole instructions.
	n, off := 0, 0
	for off < len(mem) && (lines == 0 || n < lines) {
		_, l := disasm.Disassemble(mem[off:], start+uint16(off))
		off, n = off+l, n+1
	}

	image := append([]byte{byte(start), byte(start >> 8)}, mem[:off]...)
	if err := disasm.Listing(h.output, image, h.labelsByAddr()); err != nil {
		return err
	}
	h.flush()

	h.settings.NextDisasmAddr = start + uint16(off)
	h.lastCmd.Args = nil
	return nil
}

func (h *Host) cmdRegisters(c cmd.Selection) error {
	client, err := h.connected()
	if err != nil {
		return err
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	r, err := client.Registers(ctx)
	if err != nil {
		return err
	}
	h.printf("PC=$%04X A=$%02X X=$%02X Y=$%02X SP=$%02X NV-BDIZC=%s\n",
		r.PC, r.A, r.X, r.Y, r.SP, r.Flags)
	return nil
}

func (h *Host) cmdVerify(c cmd.Selection) error {
	client, err := h.connected()
	if err != nil {
		return err
	}

	image := h.image
	if len(c.Args) > 0 {
		if image, err = os.ReadFile(c.Args[0]); err != nil {
			return err
		}
	}
	if image == nil {
		return errNoProgram
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	diffs, err := client.Verify(ctx, image)
	if err != nil {
		return err
	}

	origin := uint16(image[0]) | uint16(image[1])<<8
	if len(diffs) == 0 {
		h.printf("Verified %d bytes at $%04X.\n", len(image)-2, origin)
		return nil
	}
	for _, d := range diffs {
		h.println(d.String())
	}
	h.printf("%d of %d bytes differ.\n", len(diffs), len(image)-2)
	return nil
}

func (h *Host) cmdLabels(c cmd.Selection) error {
	if h.sourceMap == nil {
		return errNoProgram
	}

	labels := append([]asm.LabelAddress{}, h.sourceMap.Labels...)
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Address < labels[j].Address
	})
	for _, l := range labels {
		h.printf("    $%04X  %s\n", l.Address, l.Label)
	}
	return nil
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.println("Commands:")
		for _, d := range commands {
			h.printf("    %-15s  %s\n", d.Name, d.Brief)
		}
		return nil
	}

	d, err := helpTree.FindValue(strings.ToLower(c.Args[0]))
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Syntax: %s\n\n", d.Usage)
	h.printf("Description:\n%s\n\n", indentWrap(3, d.Description))
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayHelpText("set")

	default:
		name, err := h.settings.Set(c.Args[0], strings.Join(c.Args[1:], " "))
		if err != nil {
			return err
		}
		h.printf("Setting %s updated.\n", name)
	}
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	if err := h.Close(); err != nil {
		h.log.WithError(err).Warn("closing emulator")
	}
	return errQuit
}

func (h *Host) displayHelpText(name string) {
	d, err := helpTree.FindValue(name)
	if err != nil || d.Usage == "" {
		h.println("<no help text>")
		return
	}
	h.printf("Syntax: %s\n", d.Usage)
}

// Resolve an address argument, which may be a label of the most recently
// assembled program.
func (h *Host) parseAddr(s string) (uint16, error) {
	if h.sourceMap != nil {
		if addr, ok := h.sourceMap.Lookup(s); ok {
			return addr, nil
		}
	}
	return parseNumber(s, h.settings.HexMode)
}

func (h *Host) labelsByAddr() map[uint16]string {
	labels := make(map[uint16]string)
	if h.sourceMap == nil {
		return labels
	}
	for _, l := range h.sourceMap.Labels {
		if _, ok := labels[l.Address]; !ok {
			labels[l.Address] = l.Label
		}
	}
	return labels
}

// Display mem, which holds emulator memory starting at addr0, eight bytes
// per row aligned to 8-byte boundaries.
func (h *Host) dumpMemory(addr0 uint16, mem []byte) {
	if len(mem) == 0 {
		return
	}
	addr1 := int(addr0) + len(mem) - 1

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if len(mem) < 8 {
		addrToBuf(addr0, buf[0:4])
		for i, c1, c2 := 0, 6, 32; i < len(mem); i, c1, c2 = i+1, c1+3, c2+1 {
			byteToBuf(mem[i], buf[c1:c1+2])
			buf[c2] = toPrintableChar(mem[i])
		}
		h.println(string(buf))
		return
	}

	start := int(addr0) &^ 7
	for r := start; r <= addr1; r += 8 {
		addrToBuf(uint16(r), buf[0:4])
		for a, c1, c2 := r, 6, 32; c1 < 29; a, c1, c2 = a+1, c1+3, c2+1 {
			if a >= int(addr0) && a <= addr1 {
				m := mem[a-int(addr0)]
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(string(buf))
	}
}
