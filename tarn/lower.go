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
	"errors"
	"fmt"
)

// lowerFunc type-checks one function body and lowers its structured control
// flow (block/loop/if/else/end, br, br_if, br_table) into absolute branches
// carrying precomputed drop/keep byte counts. The single pass tracks a
// symbolic type stack and its byte height, so every runtime stack access has
// a statically known type and the interpreter needs no runtime tags.
//
// Dead code after an unconditional transfer is type-checked polymorphically
// and not emitted; branch targets only ever point at block boundaries, which
// are tracked on the control stack, so elision cannot orphan a target.
func lowerFunc(m *Module, fn *Func) error {
	lo := &lowerer{m: m, fn: fn}
	lo.pushCtrl(ctrlFrame{op: OpBlock, result: fn.Result, elseSite: -1})

	for pc, in := range fn.Instrs {
		if len(lo.ctrls) == 0 {
			return fmt.Errorf("instruction %d after function end", pc)
		}
		if err := lo.lower(in); err != nil {
			return fmt.Errorf("instruction %d (%#x): %w", pc, byte(in.Op), err)
		}
	}
	if len(lo.ctrls) != 0 {
		return errors.New("unexpected end of body: unclosed block")
	}

	fn.code = lo.out
	fn.tables = lo.tables
	return nil
}

type patchSite struct {
	instr int // index into out, or -1 for a table entry
	table int
	entry int
}

type ctrlFrame struct {
	op            Opcode // OpBlock, OpLoop or OpIf; the body itself is an OpBlock
	result        *ValueType
	entryLen      int
	entryBytes    uint32
	start         int // loop only: branch target in the lowered stream
	unreachable   bool
	deadFromStart bool
	branchSites   []patchSite // sites patched to this frame's end
	elseSite      int         // if only: the opBranchIfZero to patch, -1 if none
	hasElse       bool
}

type lowerer struct {
	m      *Module
	fn     *Func
	out    []Instr
	tables [][]uint64
	stack  []ValueType
	bytes  uint32
	ctrls  []ctrlFrame
}

func (lo *lowerer) cur() *ctrlFrame {
	return &lo.ctrls[len(lo.ctrls)-1]
}

func (lo *lowerer) pushCtrl(c ctrlFrame) {
	c.entryLen = len(lo.stack)
	c.entryBytes = lo.bytes
	c.start = len(lo.out)
	lo.ctrls = append(lo.ctrls, c)
}

func (lo *lowerer) push(t ValueType) {
	lo.stack = append(lo.stack, t)
	lo.bytes += uint32(t.Size())
}

// popExpect removes the top entry, which must have the wanted type. Below
// the current frame's entry height the stack is polymorphic in dead code.
func (lo *lowerer) popExpect(want ValueType) error {
	c := lo.cur()
	if len(lo.stack) == c.entryLen {
		if c.unreachable {
			return nil
		}
		return fmt.Errorf("type mismatch: expected %s, found empty stack", want)
	}
	got := lo.stack[len(lo.stack)-1]
	lo.stack = lo.stack[:len(lo.stack)-1]
	lo.bytes -= uint32(got.Size())
	if got != want {
		return fmt.Errorf("type mismatch: expected %s, found %s", want, got)
	}
	return nil
}

// popAny removes the top entry of whatever type. live reports whether the
// value actually exists (false only in dead code).
func (lo *lowerer) popAny() (t ValueType, live bool, err error) {
	c := lo.cur()
	if len(lo.stack) == c.entryLen {
		if c.unreachable {
			return 0, false, nil
		}
		return 0, false, errors.New("type mismatch: found empty stack")
	}
	got := lo.stack[len(lo.stack)-1]
	lo.stack = lo.stack[:len(lo.stack)-1]
	lo.bytes -= uint32(got.Size())
	return got, true, nil
}

func (lo *lowerer) setUnreachable() {
	c := lo.cur()
	c.unreachable = true
	lo.stack = lo.stack[:c.entryLen]
	lo.bytes = c.entryBytes
}

// emit appends a lowered instruction, or drops it in dead code. It returns
// the instruction's index, or -1 when elided.
func (lo *lowerer) emit(op Opcode, arg uint64) int {
	if lo.cur().unreachable {
		return -1
	}
	lo.out = append(lo.out, Instr{Op: op, Arg: arg})
	return len(lo.out) - 1
}

func (lo *lowerer) lower(in Instr) error {
	switch in.Op {
	case OpNop:
		// No effect, nothing to emit.

	case OpUnreachable:
		lo.emit(OpUnreachable, 0)
		lo.setUnreachable()

	case OpBlock, OpLoop:
		result, err := blockResult(in.Arg)
		if err != nil {
			return err
		}
		dead := lo.cur().unreachable
		lo.pushCtrl(ctrlFrame{
			op: in.Op, result: result, elseSite: -1,
			unreachable: dead, deadFromStart: dead,
		})

	case OpIf:
		if err := lo.popExpect(I32); err != nil {
			return err
		}
		result, err := blockResult(in.Arg)
		if err != nil {
			return err
		}
		dead := lo.cur().unreachable
		site := lo.emit(opBranchIfZero, packBranch(0, 0, 0))
		lo.pushCtrl(ctrlFrame{
			op: OpIf, result: result, elseSite: site,
			unreachable: dead, deadFromStart: dead,
		})

	case OpElse:
		c := lo.cur()
		if c.op != OpIf || c.hasElse {
			return errors.New("else outside if")
		}
		if err := lo.checkBlockExit(c); err != nil {
			return err
		}
		// Jump over the else arm once the then arm completes.
		if site := lo.emit(opBranch, packBranch(0, 0, 0)); site >= 0 {
			c.branchSites = append(c.branchSites, patchSite{instr: site, table: -1})
		}
		if c.elseSite >= 0 {
			lo.patch(c.elseSite, uint32(len(lo.out)))
			c.elseSite = -1
		}
		lo.stack = lo.stack[:c.entryLen]
		lo.bytes = c.entryBytes
		c.unreachable = c.deadFromStart
		c.hasElse = true

	case OpEnd:
		c := lo.cur()
		if err := lo.checkBlockExit(c); err != nil {
			return err
		}
		if c.op == OpIf && !c.hasElse {
			if c.result != nil {
				return errors.New("if with result type requires else")
			}
			if c.elseSite >= 0 {
				lo.patch(c.elseSite, uint32(len(lo.out)))
			}
		}
		for _, site := range c.branchSites {
			if site.instr >= 0 {
				lo.patch(site.instr, uint32(len(lo.out)))
			} else {
				lo.patchTable(site.table, site.entry, uint32(len(lo.out)))
			}
		}
		result := c.result
		entryLen, entryBytes := c.entryLen, c.entryBytes
		lo.ctrls = lo.ctrls[:len(lo.ctrls)-1]
		lo.stack = lo.stack[:entryLen]
		lo.bytes = entryBytes
		if result != nil {
			lo.push(*result)
		}

	case OpBr:
		target, err := lo.label(in.Arg)
		if err != nil {
			return err
		}
		if err := lo.branchTo(target, opBranch); err != nil {
			return err
		}
		lo.setUnreachable()

	case OpBrIf:
		if err := lo.popExpect(I32); err != nil {
			return err
		}
		target, err := lo.label(in.Arg)
		if err != nil {
			return err
		}
		if err := lo.branchTo(target, opBranchIf); err != nil {
			return err
		}
		// The fall-through path keeps the branch operand.
		if kt := lo.branchResult(target); kt != nil {
			lo.push(*kt)
		}

	case OpBrTable:
		if err := lo.popExpect(I32); err != nil {
			return err
		}
		if len(in.Labels) == 0 {
			return errors.New("br_table without default label")
		}
		deflt, err := lo.label(uint64(in.Labels[len(in.Labels)-1]))
		if err != nil {
			return err
		}
		kt := lo.branchResult(deflt)
		for _, l := range in.Labels[:len(in.Labels)-1] {
			t, err := lo.label(uint64(l))
			if err != nil {
				return err
			}
			if !sameResult(lo.branchResult(t), kt) {
				return errors.New("br_table labels have mismatched result types")
			}
		}
		var keep uint32
		if kt != nil {
			if err := lo.popExpect(*kt); err != nil {
				return err
			}
			keep = uint32(kt.Size())
		}
		if !lo.cur().unreachable {
			table := make([]uint64, len(in.Labels))
			ti := len(lo.tables)
			lo.tables = append(lo.tables, table)
			for i, l := range in.Labels {
				tc, _ := lo.label(uint64(l))
				drop := lo.bytes - lo.ctrls[tc].entryBytes
				if lo.ctrls[tc].op == OpLoop {
					table[i] = packBranch(uint32(lo.ctrls[tc].start), drop, keep)
				} else {
					table[i] = packBranch(0, drop, keep)
					lo.ctrls[tc].branchSites = append(lo.ctrls[tc].branchSites,
						patchSite{instr: -1, table: ti, entry: i})
				}
			}
			lo.emit(opBranchTable, uint64(ti))
		}
		lo.setUnreachable()

	case OpReturn:
		if lo.fn.Result != nil {
			if err := lo.popExpect(*lo.fn.Result); err != nil {
				return err
			}
		}
		lo.emit(OpReturn, 0)
		lo.setUnreachable()

	case OpCall:
		idx := uint32(in.Arg)
		if int(idx) >= lo.m.numFuncs() {
			return fmt.Errorf("call to unknown function %d", idx)
		}
		params, result := lo.m.signature(idx)
		for i := len(params) - 1; i >= 0; i-- {
			if err := lo.popExpect(params[i]); err != nil {
				return err
			}
		}
		lo.emit(OpCall, uint64(idx))
		if result != nil {
			lo.push(*result)
		}

	case OpDrop:
		t, live, err := lo.popAny()
		if err != nil {
			return err
		}
		if live {
			lo.emit(OpDrop, uint64(t.Size()))
		}

	case OpSelect:
		if err := lo.popExpect(I32); err != nil {
			return err
		}
		t2, live2, err := lo.popAny()
		if err != nil {
			return err
		}
		t1, live1, err := lo.popAny()
		if err != nil {
			return err
		}
		if live1 && live2 {
			if t1 != t2 {
				return fmt.Errorf("select operands disagree: %s vs %s", t1, t2)
			}
			lo.push(t1)
			lo.emit(OpSelect, uint64(t1.Size()))
		}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx := int(in.Arg)
		if idx >= len(lo.fn.slotType) {
			return fmt.Errorf("unknown local %d", idx)
		}
		t := lo.fn.slotType[idx]
		switch in.Op {
		case OpLocalGet:
			lo.push(t)
		case OpLocalSet:
			if err := lo.popExpect(t); err != nil {
				return err
			}
		case OpLocalTee:
			if err := lo.popExpect(t); err != nil {
				return err
			}
			lo.push(t)
		}
		lo.emit(in.Op, packSlot(lo.fn.slotOffset[idx], uint32(t.Size())))

	case OpGlobalGet, OpGlobalSet:
		idx := int(in.Arg)
		if idx >= len(lo.m.Globals) {
			return fmt.Errorf("unknown global %d", idx)
		}
		g := &lo.m.Globals[idx]
		if in.Op == OpGlobalGet {
			lo.push(g.Type)
		} else {
			if !g.Mutable {
				return fmt.Errorf("global %d is immutable", idx)
			}
			if err := lo.popExpect(g.Type); err != nil {
				return err
			}
		}
		lo.emit(in.Op, packSlot(uint32(idx), uint32(g.Type.Size())))

	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U:
		return lo.memOp(in, I32, false)
	case OpI64Load, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U,
		OpI64Load32S, OpI64Load32U:
		return lo.memOp(in, I64, false)
	case OpF32Load:
		return lo.memOp(in, F32, false)
	case OpF64Load:
		return lo.memOp(in, F64, false)
	case OpI32Store, OpI32Store8, OpI32Store16:
		return lo.memOp(in, I32, true)
	case OpI64Store, OpI64Store8, OpI64Store16, OpI64Store32:
		return lo.memOp(in, I64, true)
	case OpF32Store:
		return lo.memOp(in, F32, true)
	case OpF64Store:
		return lo.memOp(in, F64, true)

	case OpMemorySize:
		lo.push(I32)
		lo.emit(OpMemorySize, 0)

	case OpI32Const:
		lo.push(I32)
		lo.emit(in.Op, in.Arg&0xffffffff)
	case OpI64Const:
		lo.push(I64)
		lo.emit(in.Op, in.Arg)
	case OpF32Const:
		lo.push(F32)
		lo.emit(in.Op, in.Arg&0xffffffff)
	case OpF64Const:
		lo.push(F64)
		lo.emit(in.Op, in.Arg)

	case OpI32Eqz, OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Extend8S, OpI32Extend16S:
		return lo.op1(in.Op, I32, I32)
	case OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU,
		OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
		OpI32Add, OpI32Sub, OpI32Mul, OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
		OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU,
		OpI32Rotl, OpI32Rotr:
		return lo.op2(in.Op, I32, I32)

	case OpI64Eqz:
		return lo.op1(in.Op, I64, I32)
	case OpI64Clz, OpI64Ctz, OpI64Popcnt, OpI64Extend8S, OpI64Extend16S, OpI64Extend32S:
		return lo.op1(in.Op, I64, I64)
	case OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU,
		OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU:
		return lo.op2(in.Op, I64, I32)
	case OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU,
		OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64ShrS, OpI64ShrU,
		OpI64Rotl, OpI64Rotr:
		return lo.op2(in.Op, I64, I64)

	case OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge:
		return lo.op2(in.Op, F32, I32)
	case OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt:
		return lo.op1(in.Op, F32, F32)
	case OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign:
		return lo.op2(in.Op, F32, F32)

	case OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge:
		return lo.op2(in.Op, F64, I32)
	case OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt:
		return lo.op1(in.Op, F64, F64)
	case OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign:
		return lo.op2(in.Op, F64, F64)

	case OpI32WrapI64:
		return lo.op1(in.Op, I64, I32)
	case OpI32TruncF32S, OpI32TruncF32U, OpI32ReinterpretF32:
		return lo.op1(in.Op, F32, I32)
	case OpI32TruncF64S, OpI32TruncF64U:
		return lo.op1(in.Op, F64, I32)
	case OpI64ExtendI32S, OpI64ExtendI32U:
		return lo.op1(in.Op, I32, I64)
	case OpI64TruncF32S, OpI64TruncF32U:
		return lo.op1(in.Op, F32, I64)
	case OpI64TruncF64S, OpI64TruncF64U, OpI64ReinterpretF64:
		return lo.op1(in.Op, F64, I64)
	case OpF32ConvertI32S, OpF32ConvertI32U, OpF32ReinterpretI32:
		return lo.op1(in.Op, I32, F32)
	case OpF32ConvertI64S, OpF32ConvertI64U:
		return lo.op1(in.Op, I64, F32)
	case OpF32DemoteF64:
		return lo.op1(in.Op, F64, F32)
	case OpF64ConvertI32S, OpF64ConvertI32U, OpF64ReinterpretI64:
		return lo.op1(in.Op, I32, F64)
	case OpF64ConvertI64S, OpF64ConvertI64U:
		return lo.op1(in.Op, I64, F64)
	case OpF64PromoteF32:
		return lo.op1(in.Op, F32, F64)

	default:
		return fmt.Errorf("unsupported opcode")
	}
	return nil
}

func (lo *lowerer) op1(op Opcode, from, to ValueType) error {
	if err := lo.popExpect(from); err != nil {
		return err
	}
	lo.push(to)
	lo.emit(op, 0)
	return nil
}

func (lo *lowerer) op2(op Opcode, operand, result ValueType) error {
	if err := lo.popExpect(operand); err != nil {
		return err
	}
	if err := lo.popExpect(operand); err != nil {
		return err
	}
	lo.push(result)
	lo.emit(op, 0)
	return nil
}

func (lo *lowerer) memOp(in Instr, t ValueType, store bool) error {
	if store {
		if err := lo.popExpect(t); err != nil {
			return err
		}
	}
	if err := lo.popExpect(I32); err != nil {
		return err
	}
	if !store {
		lo.push(t)
	}
	lo.emit(in.Op, in.Arg&0xffffffff)
	return nil
}

// label resolves a relative depth to an absolute control stack index.
func (lo *lowerer) label(depth uint64) (int, error) {
	if depth >= uint64(len(lo.ctrls)) {
		return 0, fmt.Errorf("unknown label depth %d", depth)
	}
	return len(lo.ctrls) - 1 - int(depth), nil
}

// branchResult is the type a branch to the given frame transfers: the block
// result for forward targets, nothing for loops (branching to a loop
// restarts its body).
func (lo *lowerer) branchResult(ctrlIdx int) *ValueType {
	c := &lo.ctrls[ctrlIdx]
	if c.op == OpLoop {
		return nil
	}
	return c.result
}

// branchTo validates the transferred value and emits a lowered branch to
// ctrlIdx, registering a patch site when the target end is not yet known.
func (lo *lowerer) branchTo(ctrlIdx int, op Opcode) error {
	kt := lo.branchResult(ctrlIdx)
	var keep uint32
	if kt != nil {
		if err := lo.popExpect(*kt); err != nil {
			return err
		}
		keep = uint32(kt.Size())
	}
	if lo.cur().unreachable {
		return nil
	}
	target := &lo.ctrls[ctrlIdx]
	drop := lo.bytes - target.entryBytes
	if target.op == OpLoop {
		lo.emit(op, packBranch(uint32(target.start), drop, 0))
		return nil
	}
	site := lo.emit(op, packBranch(0, drop, keep))
	target.branchSites = append(target.branchSites, patchSite{instr: site, table: -1})
	return nil
}

// checkBlockExit verifies the stack holds exactly the frame's result at a
// block boundary (else or end). Dead arms are exempt.
func (lo *lowerer) checkBlockExit(c *ctrlFrame) error {
	if c.unreachable {
		return nil
	}
	if c.result != nil {
		if err := lo.popExpect(*c.result); err != nil {
			return err
		}
	}
	if len(lo.stack) != c.entryLen {
		return fmt.Errorf("type mismatch: %d values remaining at block end",
			len(lo.stack)-c.entryLen)
	}
	// Restore the result for the caller; end/else re-truncate as needed.
	if c.result != nil {
		lo.push(*c.result)
	}
	return nil
}

func (lo *lowerer) patch(site int, target uint32) {
	_, drop, keep := unpackBranch(lo.out[site].Arg)
	lo.out[site].Arg = packBranch(target, drop, keep)
}

func (lo *lowerer) patchTable(table, entry int, target uint32) {
	_, drop, keep := unpackBranch(lo.tables[table][entry])
	lo.tables[table][entry] = packBranch(target, drop, keep)
}

func blockResult(arg uint64) (*ValueType, error) {
	if arg == blockTypeEmpty {
		return nil, nil
	}
	t := ValueType(arg)
	if !validValueType(t) {
		return nil, fmt.Errorf("invalid block type 0x%x", arg)
	}
	return &t, nil
}

func sameResult(a, b *ValueType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
