// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "a.prg", c.Output)
	assert.False(t, c.WarnIllegal)
	assert.Equal(t, "localhost:6510", c.Monitor.Address)
	assert.Equal(t, "x64", c.Monitor.Emulator)
	assert.Equal(t, 500*time.Millisecond, c.Monitor.RetryInterval.Duration)
	assert.Equal(t, 500*time.Millisecond, c.Monitor.ReceiveTimeout.Duration)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)
}

func TestDecode(t *testing.T) {
	src := `
output = "game.prg"
warn_illegal = true
log_level = "debug"

[monitor]
address = "127.0.0.1:9998"
retry_interval = "250ms"
`
	c, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "game.prg", c.Output)
	assert.True(t, c.WarnIllegal)
	assert.False(t, c.SourceMap)
	assert.Equal(t, "127.0.0.1:9998", c.Monitor.Address)
	assert.Equal(t, "x64", c.Monitor.Emulator)
	assert.Equal(t, 250*time.Millisecond, c.Monitor.RetryInterval.Duration)
	assert.Equal(t, 500*time.Millisecond, c.Monitor.ReceiveTimeout.Duration)

	assert.True(t, c.AsmOptions().WarnIllegal)
	opts := c.MonitorOptions(logrus.New())
	assert.Equal(t, 250*time.Millisecond, opts.RetryInterval)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "outptu = \"x.prg\"\n",
		"unknown table":  "[monitr]\naddress = \"x\"\n",
		"bad duration":   "[monitor]\nretry_interval = \"soon\"\n",
		"negative":       "[monitor]\nreceive_timeout = \"-1s\"\n",
		"bad level":      "log_level = \"loud\"\n",
		"empty output":   "output = \"\"\n",
		"wrong type":     "warn_illegal = \"yes\"\n",
		"malformed toml": "output = \n",
	}
	for name, src := range cases {
		_, err := Decode(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("source_map = true\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.SourceMap)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("bogus = 1\n"), 0644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	c, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	path, err := DefaultPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("output = \"b.prg\"\n"), 0644))

	c, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "b.prg", c.Output)
}

func TestEncodeDecode(t *testing.T) {
	c := Default()
	c.Monitor.ReceiveTimeout = Duration{2 * time.Second}

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	assert.Contains(t, buf.String(), `receive_timeout = "2s"`)

	c2, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}
