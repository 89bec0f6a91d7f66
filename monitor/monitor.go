// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package monitor implements a client for the text protocol spoken by the
// VICE emulator's remote monitor. It is used to check assembled programs
// against the memory of a running emulator.
package monitor

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultAddress        = "localhost:6510"
	DefaultRetryInterval  = 500 * time.Millisecond
	DefaultReceiveTimeout = 500 * time.Millisecond
)

// ErrClosed is returned when using a client whose connection is closed.
var ErrClosed = errors.New("monitor connection closed")

// Options control how a client connects to and talks with the monitor.
type Options struct {
	RetryInterval  time.Duration      // delay between connection attempts
	ReceiveTimeout time.Duration      // silence that ends a response
	Log            logrus.FieldLogger // nil logs to the standard logger
}

func (o Options) withDefaults() Options {
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = DefaultReceiveTimeout
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o
}

// A Client is a connection to a remote monitor. Commands are serialized.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	opts Options
	log  logrus.FieldLogger
	addr string
}

// Dial connects to the monitor at addr. While the connection is refused,
// typically because the emulator is still starting, Dial retries every
// RetryInterval until ctx is done.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	log := opts.Log.WithField("addr", addr)

	var d net.Dialer
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.WithField("attempts", attempt).Debug("connected to monitor")
			return &Client{conn: conn, opts: opts, log: log, addr: addr}, nil
		}
		if !retryable(err) {
			return nil, errors.Wrapf(err, "connecting to monitor at %s", addr)
		}
		log.WithError(err).Debug("monitor not available, retrying")

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "connecting to monitor at %s", addr)
		case <-time.After(opts.RetryInterval):
		}
	}
}

// Connection failures that mean the monitor isn't listening yet.
func retryable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Addr returns the address the client is connected to.
func (c *Client) Addr() string {
	return c.addr
}

// Command sends a single command line and returns the monitor's response
// with prompts removed. The response ends when the monitor has been silent
// for the receive timeout or closes the connection.
func (c *Client) Command(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return "", ErrClosed
	}

	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(dl)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return "", errors.Wrapf(err, "sending %q", line)
	}
	c.log.WithField("cmd", line).Debug("sent monitor command")

	out, err := c.receive(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "reading response to %q", line)
	}
	return StripPrompts(out), nil
}

// Read until the connection is idle for the receive timeout.
func (c *Client) receive(ctx context.Context) (string, error) {
	var out []byte
	buf := make([]byte, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return string(out), err
		}

		c.conn.SetReadDeadline(time.Now().Add(c.opts.ReceiveTimeout))
		n, err := c.conn.Read(buf)
		out = append(out, buf[:n]...)

		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
			return string(out), nil
		case errors.Is(err, io.EOF):
			c.conn.Close()
			c.conn = nil
			return string(out), nil
		default:
			return string(out), err
		}
	}
}

// Memory returns the contents of memory from start through end.
func (c *Client) Memory(ctx context.Context, start, end uint16) ([]byte, error) {
	out, err := c.Command(ctx, fmt.Sprintf("m %04x %04x", start, end))
	if err != nil {
		return nil, err
	}
	return ParseMemory(out, start, end)
}

// Disassemble returns the monitor's disassembly of start through end.
func (c *Client) Disassemble(ctx context.Context, start, end uint16) (string, error) {
	return c.Command(ctx, fmt.Sprintf("d %04x %04x", start, end))
}

// Registers returns the current CPU registers.
func (c *Client) Registers(ctx context.Context) (Registers, error) {
	out, err := c.Command(ctx, "r")
	if err != nil {
		return Registers{}, err
	}
	return ParseRegisters(out)
}

// Quit tells the emulator to exit and closes the connection.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.Command(ctx, "quit")
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the connection without sending anything.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
