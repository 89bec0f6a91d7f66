// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// A Mismatch is a byte of emulator memory that differs from the image.
type Mismatch struct {
	Addr uint16
	Want byte
	Got  byte
}

func (m Mismatch) String() string {
	return fmt.Sprintf("$%04X: expected $%02X, found $%02X", m.Addr, m.Want, m.Got)
}

// Compare returns every byte of mem that differs from the PRG image. mem
// holds memory starting at the image's load address.
func Compare(image, mem []byte) ([]Mismatch, error) {
	if len(image) < 2 {
		return nil, errors.New("image has no load address")
	}
	origin := uint16(image[0]) | uint16(image[1])<<8
	code := image[2:]
	if len(mem) < len(code) {
		return nil, errors.Errorf("memory holds %d bytes, image has %d", len(mem), len(code))
	}

	var diffs []Mismatch
	for i, b := range code {
		if mem[i] != b {
			diffs = append(diffs, Mismatch{Addr: origin + uint16(i), Want: b, Got: mem[i]})
		}
	}
	return diffs, nil
}

// Verify reads the memory covered by a PRG image from the emulator and
// compares it with the image.
func (c *Client) Verify(ctx context.Context, image []byte) ([]Mismatch, error) {
	if len(image) <= 2 {
		return nil, errors.New("image is empty")
	}
	origin := uint16(image[0]) | uint16(image[1])<<8
	end := int(origin) + len(image) - 3
	if end > 0xffff {
		return nil, errors.Errorf("image at $%04X extends past $FFFF", origin)
	}

	mem, err := c.Memory(ctx, origin, uint16(end))
	if err != nil {
		return nil, err
	}

	diffs, err := Compare(image, mem)
	if err != nil {
		return nil, err
	}
	c.log.WithField("origin", fmt.Sprintf("$%04X", origin)).
		WithField("mismatches", len(diffs)).
		Info("verified image against emulator memory")
	return diffs, nil
}
