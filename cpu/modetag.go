// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"strings"

	"github.com/beevik/prefixtree/v2"
)

// Width selects between the short (zero page) and long (absolute) encodings
// of an operand.
type Width byte

const (
	AutoWidth  Width = iota // choose from the operand's literal form
	ShortWidth              // force a zero page mode
	LongWidth               // force an absolute mode
)

var modeTags = prefixtree.New[Width]()

func init() {
	modeTags.Add("zeropage", ShortWidth)
	modeTags.Add("byte", ShortWidth)
	modeTags.Add("absolute", LongWidth)
	modeTags.Add("word", LongWidth)
}

// ParseModeTag converts an explicit mnemonic suffix (e.g. the "z" in
// "LDA.z") into an operand width. Any unique prefix of "zeropage", "byte",
// "absolute" or "word" is accepted.
func ParseModeTag(tag string) (Width, error) {
	if tag == "" {
		return AutoWidth, nil
	}
	w, err := modeTags.FindValue(strings.ToLower(tag))
	if err != nil {
		return AutoWidth, fmt.Errorf("%w '.%s'", ErrUnknownMode, tag)
	}
	return w, nil
}
