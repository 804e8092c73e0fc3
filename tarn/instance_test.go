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

func TestMemoryAccessBounds(t *testing.T) {
	m := &Module{Memory: 1}
	inst := instantiate(t, m)

	tests := []struct {
		name                  string
		start, offset, length uint32
		wantTrap              bool
	}{
		{"in range", 0, 0, 10, false},
		{"last byte", pageSize - 1, 0, 1, false},
		{"one past end", pageSize - 1, 0, 2, true},
		{"offset crosses end", pageSize - 4, 4, 1, true},
		{"zero length at end", pageSize, 0, 0, false},
		{"zero length past end", pageSize + 1, 0, 0, true},
		{"wraparound sum", 0xffffffff, 2, 4, true},
		{"wraparound length", 0xfffffff0, 0, 0xffffffff, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := inst.MemoryAccess(tc.start, tc.offset, tc.length)
			if tc.wantTrap {
				if !errors.Is(err, TrapOutOfBounds) {
					t.Fatalf("expected TrapOutOfBounds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(b) != int(tc.length) {
				t.Fatalf("expected %d bytes, got %d", tc.length, len(b))
			}
		})
	}
}

func TestDataSegmentsInitializeMemory(t *testing.T) {
	m := &Module{
		Memory: 1,
		Data: []DataSegment{
			{Offset: 8, Data: []byte("hello")},
			{Offset: 100, Data: []byte{1, 2, 3}},
		},
	}
	inst := instantiate(t, m)

	b, err := inst.MemoryAccess(8, 0, 5)
	if err != nil {
		t.Fatalf("failed to read memory: %v", err)
	}
	if !bytes.Equal(b, []byte("hello")) {
		t.Fatalf("expected hello, got %q", b)
	}
}

func TestDataSegmentOutOfRange(t *testing.T) {
	m := &Module{
		Memory: 1,
		Data:   []DataSegment{{Offset: pageSize - 2, Data: []byte("hello")}},
	}
	if err := m.Compile(); err != nil {
		t.Fatalf("failed to compile module: %v", err)
	}
	if _, err := NewInstance(m, nil, DefaultConfig()); err == nil {
		t.Fatalf("expected error for out-of-range data segment")
	}
}

func TestGuestLoadStore(t *testing.T) {
	m := &Module{
		Memory: 1,
		Funcs: []Func{
			{
				Name:   "store",
				Params: []ValueType{I32, I64},
				Instrs: []Instr{
					ins(OpLocalGet, 0),
					ins(OpLocalGet, 1),
					ins(OpI64Store, 0),
					ins(OpEnd, 0),
				},
			},
			{
				Name:   "load",
				Params: []ValueType{I32},
				Result: vt(I64),
				Instrs: []Instr{
					ins(OpLocalGet, 0),
					ins(OpI64Load, 0),
					ins(OpEnd, 0),
				},
			},
		},
		Exports: []Export{
			{Name: "store", FuncIndex: 0},
			{Name: "load", FuncIndex: 1},
		},
	}
	inst := instantiate(t, m)

	if _, err := inst.Call("store", I32Value(16), I64Value(-12345)); err != nil {
		t.Fatalf("failed to call store: %v", err)
	}
	result, err := inst.Call("load", I32Value(16))
	if err != nil {
		t.Fatalf("failed to call load: %v", err)
	}
	if got := result.I64(); got != -12345 {
		t.Fatalf("expected -12345, got %d", got)
	}
}

func TestGuestLoadTrapLeavesMemoryIntact(t *testing.T) {
	m := &Module{
		Memory: 1,
		Data:   []DataSegment{{Offset: 0, Data: []byte{0xaa, 0xbb}}},
		Funcs: []Func{{
			Params: []ValueType{I32},
			Result: vt(I32),
			Instrs: []Instr{
				ins(OpLocalGet, 0),
				ins(OpI32Load, 0),
				ins(OpEnd, 0),
			},
		}},
		Exports: []Export{{Name: "load", FuncIndex: 0}},
	}
	inst := instantiate(t, m)

	_, err := inst.Call("load", I32Value(pageSize))
	if !errors.Is(err, TrapOutOfBounds) {
		t.Fatalf("expected TrapOutOfBounds, got %v", err)
	}

	b, err := inst.MemoryAccess(0, 0, 2)
	if err != nil {
		t.Fatalf("failed to read memory: %v", err)
	}
	if b[0] != 0xaa || b[1] != 0xbb {
		t.Fatalf("memory changed after trap: % x", b)
	}
}

func TestMemorySizeOpcode(t *testing.T) {
	m := &Module{
		Memory: 3,
		Funcs: []Func{{
			Result: vt(I32),
			Instrs: []Instr{
				ins(OpMemorySize, 0),
				ins(OpEnd, 0),
			},
		}},
		Exports: []Export{{Name: "pages", FuncIndex: 0}},
	}
	inst := instantiate(t, m)

	result, err := inst.Call("pages")
	if err != nil {
		t.Fatalf("failed to call pages: %v", err)
	}
	if got := result.I32(); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
}

func TestGrowMemory(t *testing.T) {
	m := &Module{
		Memory: 1,
		Data:   []DataSegment{{Offset: 0, Data: []byte{42}}},
	}
	inst := instantiate(t, m)

	old, err := inst.GrowMemory(2)
	if err != nil {
		t.Fatalf("failed to grow memory: %v", err)
	}
	if old != 1 {
		t.Fatalf("expected previous size 1, got %d", old)
	}
	if inst.MemoryPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", inst.MemoryPages())
	}

	// Existing contents survive, new pages read as zero.
	b, err := inst.MemoryAccess(0, 0, 1)
	if err != nil {
		t.Fatalf("failed to read memory: %v", err)
	}
	if b[0] != 42 {
		t.Fatalf("expected 42, got %d", b[0])
	}
	b, err = inst.MemoryAccess(2*pageSize, 0, 1)
	if err != nil {
		t.Fatalf("failed to read grown memory: %v", err)
	}
	if b[0] != 0 {
		t.Fatalf("expected zeroed page, got %d", b[0])
	}

	if _, err := inst.GrowMemory(maxPages); err == nil {
		t.Fatalf("expected error growing past the page limit")
	}
}

func TestNewInstanceRequiresCompiledModule(t *testing.T) {
	if _, err := NewInstance(addModule(), nil, DefaultConfig()); !errors.Is(err, ErrNotCompiled) {
		t.Fatalf("expected ErrNotCompiled, got %v", err)
	}
}

func TestNewInstanceRejectsOversizedStack(t *testing.T) {
	m := addModule()
	if err := m.Compile(); err != nil {
		t.Fatalf("failed to compile module: %v", err)
	}
	if _, err := NewInstance(m, nil, Config{StackSize: maxStackBytes}); !errors.Is(err, ErrStackTooLarge) {
		t.Fatalf("expected ErrStackTooLarge, got %v", err)
	}
}

func TestNewInstanceMissingImports(t *testing.T) {
	m := &Module{
		Imports: []ImportFunc{{Module: "env", Name: "f"}},
	}
	if err := m.Compile(); err != nil {
		t.Fatalf("failed to compile module: %v", err)
	}

	if _, err := NewInstance(m, nil, DefaultConfig()); err == nil {
		t.Fatalf("expected error for missing import module")
	}
	imports := map[string]map[string]HostFunc{"env": {}}
	if _, err := NewInstance(m, imports, DefaultConfig()); err == nil {
		t.Fatalf("expected error for missing import function")
	}
}

func TestHostLocalAndGlobalAccess(t *testing.T) {
	m := &Module{
		Imports: []ImportFunc{{Module: "env", Name: "probe"}},
		Globals: []Global{{Type: I32, Mutable: true, Init: I32Value(5)}},
		Funcs: []Func{{
			Params: []ValueType{I32},
			Result: vt(I32),
			Locals: []ValueType{I64},
			Instrs: []Instr{
				ins(OpCall, 0),
				ins(OpGlobalGet, 0),
				ins(OpEnd, 0),
			},
		}},
		Exports: []Export{{Name: "run", FuncIndex: 1}},
	}
	if err := m.Compile(); err != nil {
		t.Fatalf("failed to compile module: %v", err)
	}

	probe := func(ec *ExecContext, args []Value) (Value, error) {
		param, err := ec.Local(0)
		if err != nil {
			return Value{}, err
		}
		if param.Type() != I32 || param.I32() != 9 {
			return Value{}, errors.New("unexpected param value")
		}
		local, err := ec.Local(1)
		if err != nil {
			return Value{}, err
		}
		if local.Type() != I64 || local.I64() != 0 {
			return Value{}, errors.New("locals must start zeroed")
		}
		if err := ec.SetLocal(1, I32Value(1)); !errors.Is(err, ErrTypeMismatch) {
			return Value{}, errors.New("mismatched local write must be rejected")
		}
		if err := ec.SetGlobal(0, I32Value(11)); err != nil {
			return Value{}, err
		}
		return Value{}, nil
	}
	imports := map[string]map[string]HostFunc{"env": {"probe": probe}}
	inst, err := NewInstance(m, imports, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}

	result, err := inst.Call("run", I32Value(9))
	if err != nil {
		t.Fatalf("failed to call run: %v", err)
	}
	if got := result.I32(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
}
