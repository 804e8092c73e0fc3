// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tarn

import (
	"bytes"
	"errors"
	"testing"
)

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// section assembles a section from its id and payload bytes. Payloads in
// these tests are all short enough for a single-byte length.
func section(id byte, payload ...byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

func TestDecodeAddModule(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// type: (i32, i32) -> i32
	bin = append(bin, section(0x01, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f)...)
	// function: one body of type 0
	bin = append(bin, section(0x03, 0x01, 0x00)...)
	// export: "add" func 0
	bin = append(bin, section(0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00)...)
	// code: local.get 0, local.get 1, i32.add
	bin = append(bin, section(0x0a,
		0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b)...)

	m, err := DecodeModule(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	inst, err := NewInstance(m, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}

	result, err := inst.Call("add", I32Value(3), I32Value(4))
	if err != nil {
		t.Fatalf("failed to call add: %v", err)
	}
	if got := result.I32(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestDecodeMemoryGlobalsAndData(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// type: () -> i32
	bin = append(bin, section(0x01, 0x01, 0x60, 0x00, 0x01, 0x7f)...)
	// function
	bin = append(bin, section(0x03, 0x01, 0x00)...)
	// memory: min 1 page
	bin = append(bin, section(0x05, 0x01, 0x00, 0x01)...)
	// global: mutable i32 = 40
	bin = append(bin, section(0x06, 0x01, 0x7f, 0x01, 0x41, 0x28, 0x0b)...)
	// export: "get" func 0
	bin = append(bin, section(0x07, 0x01, 0x03, 'g', 'e', 't', 0x00, 0x00)...)
	// code: global.get 0, i32.load8_u offset 0 from address 3, i32.add
	bin = append(bin, section(0x0a,
		0x01, 0x0a, 0x00, 0x23, 0x00, 0x41, 0x03, 0x2d, 0x00, 0x00, 0x6a, 0x0b)...)
	// data: active at offset 0, bytes {0,0,0,2}
	bin = append(bin, section(0x0b, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x04, 0x00, 0x00, 0x00, 0x02)...)

	m, err := DecodeModule(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	if m.Memory != 1 {
		t.Fatalf("expected 1 page, got %d", m.Memory)
	}
	inst, err := NewInstance(m, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}

	result, err := inst.Call("get")
	if err != nil {
		t.Fatalf("failed to call get: %v", err)
	}
	if got := result.I32(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestDecodeImport(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// type: () -> i32
	bin = append(bin, section(0x01, 0x01, 0x60, 0x00, 0x01, 0x7f)...)
	// import: "env"."n" func type 0
	bin = append(bin, section(0x02,
		0x01, 0x03, 'e', 'n', 'v', 0x01, 'n', 0x00, 0x00)...)
	// function
	bin = append(bin, section(0x03, 0x01, 0x00)...)
	// export: "f" func 1
	bin = append(bin, section(0x07, 0x01, 0x01, 'f', 0x00, 0x01)...)
	// code: call 0, i32.const 1, i32.add
	bin = append(bin, section(0x0a,
		0x01, 0x07, 0x00, 0x10, 0x00, 0x41, 0x01, 0x6a, 0x0b)...)

	m, err := DecodeModule(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	imports := map[string]map[string]HostFunc{
		"env": {
			"n": func(ec *ExecContext, args []Value) (Value, error) {
				return I32Value(41), nil
			},
		},
	}
	inst, err := NewInstance(m, imports, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}

	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bin := []byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00}
	if _, err := DecodeModule(bytes.NewReader(bin)); !errors.Is(err, ErrInvalidMagicNumber) {
		t.Fatalf("expected ErrInvalidMagicNumber, got %v", err)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}
	if _, err := DecodeModule(bytes.NewReader(bin)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedSection(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// table section
	bin = append(bin, section(0x04, 0x01, 0x70, 0x00, 0x00)...)
	if _, err := DecodeModule(bytes.NewReader(bin)); !errors.Is(err, ErrUnsupportedSection) {
		t.Fatalf("expected ErrUnsupportedSection, got %v", err)
	}
}

func TestDecodeRejectsMultipleMemories(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	bin = append(bin, section(0x05, 0x02, 0x00, 0x01, 0x00, 0x01)...)
	if _, err := DecodeModule(bytes.NewReader(bin)); !errors.Is(err, ErrMultipleMemories) {
		t.Fatalf("expected ErrMultipleMemories, got %v", err)
	}
}

func TestDecodeRejectsNonFuncExport(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// export: "m" kind 2 (memory)
	bin = append(bin, section(0x07, 0x01, 0x01, 'm', 0x02, 0x00)...)
	if _, err := DecodeModule(bytes.NewReader(bin)); !errors.Is(err, ErrNonFuncExport) {
		t.Fatalf("expected ErrNonFuncExport, got %v", err)
	}
}

func TestDecodeSkipsCustomSections(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	bin = append(bin, section(0x00, 0x04, 'n', 'a', 'm', 'e')...)
	m, err := DecodeModule(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	if len(m.Funcs) != 0 {
		t.Fatalf("expected empty module")
	}
}

func TestDecodeNegativeConsts(t *testing.T) {
	var bin []byte
	bin = append(bin, wasmHeader()...)
	// type: () -> i32
	bin = append(bin, section(0x01, 0x01, 0x60, 0x00, 0x01, 0x7f)...)
	bin = append(bin, section(0x03, 0x01, 0x00)...)
	bin = append(bin, section(0x07, 0x01, 0x01, 'f', 0x00, 0x00)...)
	// code: i32.const -2 (sleb 0x7e)
	bin = append(bin, section(0x0a, 0x01, 0x04, 0x00, 0x41, 0x7e, 0x0b)...)

	m, err := DecodeModule(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	inst, err := NewInstance(m, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}
	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != -2 {
		t.Fatalf("expected -2, got %d", got)
	}
}
