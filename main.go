// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command prgasm assembles 6502 source files into PRG images.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/beevik/prgasm/asm"
	"github.com/beevik/prgasm/config"
	"github.com/beevik/prgasm/disasm"
	"github.com/beevik/prgasm/host"
	"github.com/beevik/prgasm/monitor"
	"github.com/beevik/term"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const verifyTimeout = 30 * time.Second

var (
	rootCommand = &cobra.Command{
		Use:   "prgasm [flags] FILE",
		Short: "Assemble a 6502 source file into a PRG image",
		Long: "Assemble a 6502 source file into a PRG image: a two-byte load" +
			" address followed by the program bytes.",
		Args:          cobra.ExactArgs(1),
		RunE:          assemble,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	monitorCommand = &cobra.Command{
		Use:   "monitor [SCRIPT...]",
		Short: "Run the interactive host shell",
		Long: "Run the interactive host shell. Commands in each SCRIPT file" +
			" are run before reading commands from standard input.",
		RunE: runMonitor,
	}

	verifyCommand = &cobra.Command{
		Use:   "verify [flags] FILE",
		Short: "Assemble a file and compare it with emulator memory",
		Long: "Assemble a source file and compare the resulting image with" +
			" the memory of a running emulator, reached through its remote" +
			" monitor.",
		Args: cobra.ExactArgs(1),
		RunE: verify,
	}
)

var (
	configFile  string
	verbose     bool
	outputFile  string
	warnIllegal bool
	writeMap    bool
	listing     bool
	dump        bool
	monitorAddr string
)

func globalFlags(flags *pflag.FlagSet) {
	flags.StringVar(&configFile, "config", "", "configuration file (default: user config dir)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func assembleFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&outputFile, "output", "o", asm.DefaultOutput, "output PRG file")
	flags.BoolVarP(&warnIllegal, "warn-illegal", "w", false, "warn about undocumented opcodes")
	flags.BoolVarP(&writeMap, "map", "m", false, "write a JSON source map next to the output")
	flags.BoolVarP(&listing, "list", "l", false, "print a disassembly listing of the output")
	flags.BoolVar(&dump, "dump", false, "print the assembled blocks")
}

func verifyFlags(flags *pflag.FlagSet) {
	flags.StringVar(&monitorAddr, "addr", monitor.DefaultAddress, "remote monitor address")
	flags.BoolVarP(&warnIllegal, "warn-illegal", "w", false, "warn about undocumented opcodes")
}

func init() {
	globalFlags(rootCommand.PersistentFlags())
	assembleFlags(rootCommand.Flags())
	verifyFlags(verifyCommand.Flags())
	rootCommand.AddCommand(monitorCommand, verifyCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		exitOnError(err)
	}
}

// Load the configuration file and apply any flags set on the command
// line over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = outputFile
	}
	if flags.Changed("warn-illegal") {
		cfg.WarnIllegal = warnIllegal
	}
	if flags.Changed("map") {
		cfg.SourceMap = writeMap
	}
	if flags.Changed("addr") {
		cfg.Monitor.Address = monitorAddr
	}
	if verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	if level, err := cfg.Level(); err == nil {
		log.SetLevel(level)
	}
	return log
}

func logDiagnostics(log logrus.FieldLogger, a *asm.Assembly) {
	for _, d := range a.Diagnostics {
		entry := log.WithFields(logrus.Fields{"file": d.File, "line": d.Line})
		switch d.Severity {
		case asm.Warning:
			entry.Warn(d.Message)
		default:
			entry.Info(d.Message)
		}
	}
}

func assemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	opts := cfg.AsmOptions()
	opts.Verbose = verbose
	opts.Out = os.Stdout

	a, err := asm.AssembleFile(args[0], cfg.Output, opts)
	if err != nil {
		return errors.Wrapf(err, "failed to assemble '%s'", args[0])
	}
	logDiagnostics(log, a)
	log.WithFields(logrus.Fields{
		"file":   args[0],
		"output": cfg.Output,
		"origin": fmt.Sprintf("$%04X", a.Origin),
		"bytes":  len(a.Code) - 2,
	}).Info("assembled program")

	if cfg.SourceMap {
		mapFile := asm.MapFilename(cfg.Output)
		if err := a.SourceMap.WriteFile(mapFile); err != nil {
			return err
		}
		log.WithField("file", mapFile).Debug("wrote source map")
	}

	if dump {
		a.Program.Dump(os.Stdout)
	}

	if listing {
		labels := make(map[uint16]string)
		for _, l := range a.SourceMap.Labels {
			if _, ok := labels[l.Address]; !ok {
				labels[l.Address] = l.Label
			}
		}
		if err := disasm.Listing(os.Stdout, a.Code, labels); err != nil {
			return err
		}
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h := host.New(cfg, log)
	defer h.Close()

	// Run commands contained in command-line files.
	for _, filename := range args {
		file, err := os.Open(filename)
		if err != nil {
			return err
		}
		err = h.RunCommands(ctx, file, os.Stdout, false)
		file.Close()
		if err != nil {
			return err
		}
	}

	// Run commands interactively.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return h.RunCommands(ctx, os.Stdin, os.Stdout, interactive)
}

func verify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	a, err := asm.Assemble(file, args[0], cfg.AsmOptions())
	if err != nil {
		return errors.Wrapf(err, "failed to assemble '%s'", args[0])
	}
	logDiagnostics(log, a)

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	client, err := monitor.Dial(ctx, cfg.Monitor.Address, cfg.MonitorOptions(log))
	if err != nil {
		return err
	}
	defer client.Close()

	diffs, err := client.Verify(ctx, a.Code)
	if err != nil {
		return err
	}
	for _, d := range diffs {
		fmt.Println(d)
	}
	if len(diffs) > 0 {
		return errors.Errorf("%d of %d bytes differ", len(diffs), len(a.Code)-2)
	}
	fmt.Printf("Verified %d bytes at $%04X.\n", len(a.Code)-2, a.Origin)
	return nil
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
