// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads prgasm settings from a TOML file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/beevik/prgasm/asm"
	"github.com/beevik/prgasm/monitor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A Duration is a time.Duration read from a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %s", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Monitor holds the settings used to reach the emulator's remote monitor.
type Monitor struct {
	Address        string   `toml:"address"`
	Emulator       string   `toml:"emulator"`
	RetryInterval  Duration `toml:"retry_interval"`
	ReceiveTimeout Duration `toml:"receive_timeout"`
}

// Config holds all prgasm settings.
type Config struct {
	Output      string  `toml:"output"`
	WarnIllegal bool    `toml:"warn_illegal"`
	SourceMap   bool    `toml:"source_map"`
	LogLevel    string  `toml:"log_level"`
	Monitor     Monitor `toml:"monitor"`
}

// Default returns the settings used when no configuration file exists.
func Default() *Config {
	return &Config{
		Output:   asm.DefaultOutput,
		LogLevel: "info",
		Monitor: Monitor{
			Address:        monitor.DefaultAddress,
			Emulator:       monitor.DefaultEmulator,
			RetryInterval:  Duration{monitor.DefaultRetryInterval},
			ReceiveTimeout: Duration{monitor.DefaultReceiveTimeout},
		},
	}
}

// DefaultPath returns the location of the per-user configuration file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prgasm", "config.toml"), nil
}

// Decode reads TOML settings from r on top of the defaults. Keys that
// don't correspond to a setting are an error.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.Errorf("unknown settings: %s", strings.Join(keys, ", "))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return c, nil
}

// LoadDefault reads the per-user configuration file. A missing file
// yields the default settings.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

// Validate checks settings whose values are restricted.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Output == "" {
		return errors.New("output must not be empty")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// AsmOptions returns assembler options for the settings.
func (c *Config) AsmOptions() asm.Options {
	return asm.Options{WarnIllegal: c.WarnIllegal}
}

// MonitorOptions returns monitor client options for the settings.
func (c *Config) MonitorOptions(log logrus.FieldLogger) monitor.Options {
	return monitor.Options{
		RetryInterval:  c.Monitor.RetryInterval.Duration,
		ReceiveTimeout: c.Monitor.ReceiveTimeout.Duration,
		Log:            log,
	}
}

// Encode writes the settings as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
