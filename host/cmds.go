// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"
)

type handler func(*Host, cmd.Selection) error

var (
	cmds     *cmd.Tree
	commands []cmd.CommandDescriptor
	helpTree = prefixtree.New[*cmd.CommandDescriptor]()
)

func init() {
	commands = []cmd.CommandDescriptor{
		{
			Name:        "help",
			Brief:       "Display help for a command",
			Description: "Display help for a command.",
			Usage:       "help [<command>]",
			Data:        handler((*Host).cmdHelp),
		},
		{
			Name:  "assemble",
			Brief: "Assemble a file and save the binary",
			Description: "Run the assembler on the specified file, producing" +
				" a PRG file if successful. The output file defaults to the" +
				" Output setting. A source map file is written alongside it" +
				" when the SourceMap setting is true.",
			Usage: "assemble <filename> [<output>]",
			Data:  handler((*Host).cmdAssemble),
		},
		{
			Name:  "connect",
			Brief: "Connect to an emulator's remote monitor",
			Description: "Connect to the remote monitor of a running" +
				" emulator. The connection is retried until the monitor" +
				" answers or the attempt times out.",
			Usage: "connect [<address>]",
			Data:  handler((*Host).cmdConnect),
		},
		{
			Name:  "launch",
			Brief: "Start an emulator and connect to it",
			Description: "Start the configured emulator with its remote" +
				" monitor enabled, autoloading a PRG file, and connect to it." +
				" The most recently assembled file is used if none is given.",
			Usage: "launch [<filename>]",
			Data:  handler((*Host).cmdLaunch),
		},
		{
			Name:  "memory",
			Brief: "Dump emulator memory",
			Description: "Dump the contents of emulator memory from the" +
				" start address through the end address. If no end address is" +
				" given, MemDumpBytes bytes are dumped. If no address is given," +
				" the dump continues from where the last one left off.",
			Usage: "memory [<start>] [<end>]",
			Data:  handler((*Host).cmdMemory),
		},
		{
			Name:  "disassemble",
			Brief: "Disassemble emulator memory",
			Description: "Disassemble machine code in emulator memory from" +
				" the start address through the end address. If no end address" +
				" is given, DisasmLines instructions are shown.",
			Usage: "disassemble [<start>] [<end>]",
			Data:  handler((*Host).cmdDisassemble),
		},
		{
			Name:        "registers",
			Brief:       "Display CPU registers",
			Description: "Display the emulated CPU's registers.",
			Usage:       "registers",
			Data:        handler((*Host).cmdRegisters),
		},
		{
			Name:  "verify",
			Brief: "Compare a PRG file with emulator memory",
			Description: "Compare the bytes of a PRG file with the emulator's" +
				" memory at the file's load address and list every difference." +
				" The most recently assembled program is used if no file is" +
				" given.",
			Usage: "verify [<filename>]",
			Data:  handler((*Host).cmdVerify),
		},
		{
			Name:  "labels",
			Brief: "List label addresses",
			Description: "Display the address of every label in the most" +
				" recently assembled program.",
			Usage: "labels",
			Data:  handler((*Host).cmdLabels),
		},
		{
			Name:  "set",
			Brief: "Set a configuration variable",
			Description: "Set the value of a configuration variable. To see the" +
				" current values of all configuration variables, type set" +
				" without any arguments.",
			Usage: "set [<var> <value>]",
			Data:  handler((*Host).cmdSet),
		},
		{
			Name:  "quit",
			Brief: "Quit the program",
			Description: "Quit the program, shutting down any emulator that" +
				" was started by launch.",
			Usage: "quit",
			Data:  handler((*Host).cmdQuit),
		},
	}

	root := cmd.NewTree(cmd.TreeDescriptor{Name: "prgasm"})
	for i := range commands {
		root.AddCommand(commands[i])
		helpTree.Add(commands[i].Name, &commands[i])
	}

	root.AddShortcut("a", "assemble")
	root.AddShortcut("c", "connect")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("m", "memory")
	root.AddShortcut("r", "registers")
	root.AddShortcut("v", "verify")
	root.AddShortcut("?", "help")

	cmds = root
}
