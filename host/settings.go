// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/beevik/prefixtree/v2"
	"github.com/beevik/prgasm/config"
)

type settings struct {
	HexMode         bool   `doc:"hexadecimal input mode"`
	WarnIllegal     bool   `doc:"warn about undocumented opcodes"`
	SourceMap       bool   `doc:"write a source map when assembling"`
	Output          string `doc:"default assembler output file"`
	MemDumpBytes    int    `doc:"default number of memory bytes to dump"`
	DisasmLines     int    `doc:"default number of lines to disassemble"`
	NextDisasmAddr  uint16 `doc:"address of next disassembly"`
	NextMemDumpAddr uint16 `doc:"address of next memory dump"`
}

func newSettings(c *config.Config) *settings {
	return &settings{
		WarnIllegal:  c.WarnIllegal,
		SourceMap:    c.SourceMap,
		Output:       c.Output,
		MemDumpBytes: 64,
		DisasmLines:  10,
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	typ   reflect.Type
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
)

func init() {
	settingsType := reflect.TypeOf(settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			typ:   f.Type,
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

func (s *settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var str string
		switch f.kind {
		case reflect.String:
			str = fmt.Sprintf("    %-16s \"%s\"", f.name, v.String())
		case reflect.Uint16:
			str = fmt.Sprintf("    %-16s $%04X", f.name, uint16(v.Uint()))
		default:
			str = fmt.Sprintf("    %-16s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-28s (%s)\n", str, f.doc)
	}
}

// Set assigns a textual value to the setting whose name has key as a
// unique prefix. It returns the setting's full name.
func (s *settings) Set(key, value string) (string, error) {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return "", fmt.Errorf("setting '%s' not found", key)
	}

	out := reflect.ValueOf(s).Elem().Field(f.index)
	switch f.kind {
	case reflect.String:
		out.SetString(value)
	case reflect.Bool:
		b, err := stringToBool(value)
		if err != nil {
			return "", err
		}
		out.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid count '%s'", value)
		}
		out.SetInt(int64(n))
	case reflect.Uint16:
		n, err := parseNumber(value, s.HexMode)
		if err != nil {
			return "", err
		}
		out.SetUint(uint64(n))
	default:
		return "", fmt.Errorf("setting '%s' has unsupported type %s", f.name, f.typ)
	}
	return f.name, nil
}
