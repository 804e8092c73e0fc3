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
	"strings"
	"testing"
)

func singleFuncModule(params []ValueType, result *ValueType, locals []ValueType, instrs []Instr) *Module {
	return &Module{
		Funcs: []Func{{
			Params: params,
			Result: result,
			Locals: locals,
			Instrs: instrs,
		}},
		Exports: []Export{{Name: "f", FuncIndex: 0}},
	}
}

func TestBlockBranchWithResult(t *testing.T) {
	m := singleFuncModule(nil, vt(I32), nil, []Instr{
		ins(OpBlock, uint64(I32)),
		ins(OpI32Const, 41),
		ins(OpBr, 0),
		ins(OpEnd, 0),
		ins(OpI32Const, 1),
		ins(OpI32Add, 0),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestBranchDropsIntermediateOperands(t *testing.T) {
	// The branch fires with two extra operands on the stack below the
	// carried result; both must be discarded.
	m := singleFuncModule(nil, vt(I32), nil, []Instr{
		ins(OpBlock, uint64(I32)),
		ins(OpI64Const, 1),
		ins(OpF64Const, 2),
		ins(OpI32Const, 42),
		ins(OpBr, 0),
		ins(OpEnd, 0),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestLoopSum(t *testing.T) {
	// sum 1..n with a loop, a counter local and an accumulator local.
	m := singleFuncModule([]ValueType{I32}, vt(I32), []ValueType{I32}, []Instr{
		ins(OpLoop, blockTypeEmpty),
		// acc += n; n--
		ins(OpLocalGet, 1),
		ins(OpLocalGet, 0),
		ins(OpI32Add, 0),
		ins(OpLocalSet, 1),
		ins(OpLocalGet, 0),
		ins(OpI32Const, 1),
		ins(OpI32Sub, 0),
		ins(OpLocalTee, 0),
		// continue while n > 0
		ins(OpI32Const, 0),
		ins(OpI32GtS, 0),
		ins(OpBrIf, 0),
		ins(OpEnd, 0),
		ins(OpLocalGet, 1),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	result, err := inst.Call("f", I32Value(5))
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestIfElseAbs(t *testing.T) {
	m := singleFuncModule([]ValueType{I32}, vt(I32), nil, []Instr{
		ins(OpLocalGet, 0),
		ins(OpI32Const, 0),
		ins(OpI32LtS, 0),
		ins(OpIf, uint64(I32)),
		ins(OpI32Const, 0),
		ins(OpLocalGet, 0),
		ins(OpI32Sub, 0),
		ins(OpElse, 0),
		ins(OpLocalGet, 0),
		ins(OpEnd, 0),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	for _, tc := range []struct{ in, want int32 }{{-5, 5}, {0, 0}, {7, 7}} {
		result, err := inst.Call("f", I32Value(tc.in))
		if err != nil {
			t.Fatalf("abs(%d): %v", tc.in, err)
		}
		if got := result.I32(); got != tc.want {
			t.Fatalf("abs(%d): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestBrTable(t *testing.T) {
	// 0 -> 10, 1 -> 20, anything else -> 30.
	m := singleFuncModule([]ValueType{I32}, vt(I32), nil, []Instr{
		ins(OpBlock, blockTypeEmpty),
		ins(OpBlock, blockTypeEmpty),
		ins(OpBlock, blockTypeEmpty),
		ins(OpLocalGet, 0),
		{Op: OpBrTable, Labels: []uint32{0, 1, 2}},
		ins(OpEnd, 0),
		ins(OpI32Const, 10),
		ins(OpReturn, 0),
		ins(OpEnd, 0),
		ins(OpI32Const, 20),
		ins(OpReturn, 0),
		ins(OpEnd, 0),
		ins(OpI32Const, 30),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	for _, tc := range []struct{ in, want int32 }{{0, 10}, {1, 20}, {2, 30}, {100, 30}} {
		result, err := inst.Call("f", I32Value(tc.in))
		if err != nil {
			t.Fatalf("f(%d): %v", tc.in, err)
		}
		if got := result.I32(); got != tc.want {
			t.Fatalf("f(%d): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestLoopBranchRestartsBody(t *testing.T) {
	// A br to a loop jumps back to its start, not past its end; the guard
	// guarantees termination.
	m := singleFuncModule(nil, vt(I32), []ValueType{I32}, []Instr{
		ins(OpLoop, blockTypeEmpty),
		ins(OpLocalGet, 0),
		ins(OpI32Const, 1),
		ins(OpI32Add, 0),
		ins(OpLocalTee, 0),
		ins(OpI32Const, 3),
		ins(OpI32LtS, 0),
		ins(OpBrIf, 0),
		ins(OpEnd, 0),
		ins(OpLocalGet, 0),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestDeadCodeAfterBranchIsAccepted(t *testing.T) {
	m := singleFuncModule(nil, vt(I32), nil, []Instr{
		ins(OpI32Const, 1),
		ins(OpReturn, 0),
		// Dead but still type-checked leniently.
		ins(OpI64Const, 9),
		ins(OpDrop, 0),
		ins(OpEnd, 0),
	})
	inst := instantiate(t, m)

	result, err := inst.Call("f")
	if err != nil {
		t.Fatalf("failed to call f: %v", err)
	}
	if got := result.I32(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestCompileRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		module  *Module
		wantMsg string
	}{
		{
			name: "operand type mismatch",
			module: singleFuncModule(nil, vt(I32), nil, []Instr{
				ins(OpI64Const, 1),
				ins(OpI32Const, 2),
				ins(OpI32Add, 0),
				ins(OpEnd, 0),
			}),
			wantMsg: "type mismatch",
		},
		{
			name: "missing operand",
			module: singleFuncModule(nil, vt(I32), nil, []Instr{
				ins(OpI32Const, 1),
				ins(OpI32Add, 0),
				ins(OpEnd, 0),
			}),
			wantMsg: "type mismatch",
		},
		{
			name: "unclosed block",
			module: singleFuncModule(nil, nil, nil, []Instr{
				ins(OpBlock, blockTypeEmpty),
				ins(OpEnd, 0),
			}),
			wantMsg: "unclosed block",
		},
		{
			name: "unknown label depth",
			module: singleFuncModule(nil, nil, nil, []Instr{
				ins(OpBr, 5),
				ins(OpEnd, 0),
			}),
			wantMsg: "unknown label",
		},
		{
			name: "select operand disagreement",
			module: singleFuncModule(nil, vt(I32), nil, []Instr{
				ins(OpI32Const, 1),
				ins(OpI64Const, 2),
				ins(OpI32Const, 0),
				ins(OpSelect, 0),
				ins(OpEnd, 0),
			}),
			wantMsg: "select operands disagree",
		},
		{
			name: "write to immutable global",
			module: &Module{
				Globals: []Global{{Type: I32, Init: I32Value(1)}},
				Funcs: []Func{{
					Instrs: []Instr{
						ins(OpI32Const, 2),
						ins(OpGlobalSet, 0),
						ins(OpEnd, 0),
					},
				}},
			},
			wantMsg: "immutable",
		},
		{
			name: "if with result requires else",
			module: singleFuncModule([]ValueType{I32}, vt(I32), nil, []Instr{
				ins(OpLocalGet, 0),
				ins(OpIf, uint64(I32)),
				ins(OpI32Const, 1),
				ins(OpEnd, 0),
				ins(OpEnd, 0),
			}),
			wantMsg: "requires else",
		},
		{
			name: "leftover operand at block end",
			module: singleFuncModule(nil, nil, nil, []Instr{
				ins(OpI32Const, 1),
				ins(OpEnd, 0),
			}),
			wantMsg: "type mismatch",
		},
		{
			name: "unsupported opcode",
			module: singleFuncModule(nil, nil, nil, []Instr{
				ins(Opcode(0xd0), 0),
				ins(OpEnd, 0),
			}),
			wantMsg: "unsupported opcode",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.module.Compile()
			if err == nil {
				t.Fatalf("expected compile error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected error containing %q, got %v", tc.wantMsg, err)
			}
		})
	}
}
