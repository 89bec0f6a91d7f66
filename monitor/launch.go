// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultEmulator is the VICE executable for the C64.
const DefaultEmulator = "x64"

// ErrExited is reported when the emulator process ends.
var ErrExited = errors.New("emulator exited")

// EmulatorConfig describes how to start an emulator with its remote
// monitor enabled.
type EmulatorConfig struct {
	Path    string   // emulator executable, DefaultEmulator if empty
	Program string   // PRG image to autoload
	Address string   // remote monitor address, DefaultAddress if empty
	Args    []string // extra arguments placed before the standard ones
	Env     []string // extra environment variables
	Options Options  // monitor client options
}

func (c *EmulatorConfig) args() []string {
	args := append([]string{}, c.Args...)
	if c.Program != "" {
		args = append(args, "-autoload", c.Program)
	}
	return append(args, "-remotemonitor", "-remotemonitoraddress", c.Address)
}

// An Emulator is a running emulator process with a connected monitor
// client.
type Emulator struct {
	Client *Client
	cmd    *exec.Cmd
	group  *errgroup.Group
}

// Launch starts the emulator and connects to its monitor. The process
// is killed if ctx is cancelled.
func Launch(ctx context.Context, cfg EmulatorConfig) (*Emulator, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultEmulator
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	opts := cfg.Options.withDefaults()
	log := opts.Log.WithField("emulator", cfg.Path)

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.args()...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %s", cfg.Path)
	}
	log.WithField("pid", cmd.Process.Pid).Debug("started emulator")

	// The group's context is cancelled when the process ends, which stops
	// the dial loop if the emulator dies before its monitor comes up.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := cmd.Wait(); err != nil {
			return errors.Wrap(err, cfg.Path)
		}
		return ErrExited
	})

	client, err := Dial(gctx, cfg.Address, opts)
	if err != nil {
		exited := gctx.Err() != nil && ctx.Err() == nil
		cmd.Process.Kill()
		if werr := g.Wait(); exited {
			err = werr
		}
		return nil, errors.Wrap(err, "launching emulator")
	}
	return &Emulator{Client: client, cmd: cmd, group: g}, nil
}

// Wait waits for the emulator process to exit. A normal exit returns nil.
func (e *Emulator) Wait() error {
	err := e.group.Wait()
	if errors.Is(err, ErrExited) {
		return nil
	}
	return err
}

// Close asks the emulator to quit, waiting up to timeout for it to exit
// before killing it.
func (e *Emulator) Close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e.Client.Quit(ctx)

	done := make(chan error, 1)
	go func() { done <- e.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		e.cmd.Process.Kill()
		<-done
		return errors.New("emulator killed after quit timed out")
	}
}
