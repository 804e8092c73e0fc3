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
	"encoding/binary"
	"fmt"
	"math"
)

// The byte stack grows from the high end downward: a push moves the cursor
// toward zero by the value's width, a pop moves it back. All values are
// encoded little-endian in place. A push that would move the cursor below
// zero is native resource exhaustion, not a guest trap.

func (ec *ExecContext) push32(v uint32) error {
	if ec.top < 4 {
		return ErrStackExhausted
	}
	ec.top -= 4
	binary.LittleEndian.PutUint32(ec.stack[ec.top:], v)
	return nil
}

func (ec *ExecContext) push64(v uint64) error {
	if ec.top < 8 {
		return ErrStackExhausted
	}
	ec.top -= 8
	binary.LittleEndian.PutUint64(ec.stack[ec.top:], v)
	return nil
}

func (ec *ExecContext) pop32() uint32 {
	v := binary.LittleEndian.Uint32(ec.stack[ec.top:])
	ec.top += 4
	return v
}

func (ec *ExecContext) pop64() uint64 {
	v := binary.LittleEndian.Uint64(ec.stack[ec.top:])
	ec.top += 8
	return v
}

func (ec *ExecContext) pushI32(v int32) error { return ec.push32(uint32(v)) }
func (ec *ExecContext) pushI64(v int64) error { return ec.push64(uint64(v)) }
func (ec *ExecContext) pushF32(v float32) error { return ec.push32(math.Float32bits(v)) }
func (ec *ExecContext) pushF64(v float64) error { return ec.push64(math.Float64bits(v)) }
func (ec *ExecContext) pushBool(v bool) error { return ec.pushI32(boolToInt32(v)) }

func (ec *ExecContext) popI32() int32 { return int32(ec.pop32()) }
func (ec *ExecContext) popI64() int64 { return int64(ec.pop64()) }
func (ec *ExecContext) popF32() float32 { return math.Float32frombits(ec.pop32()) }
func (ec *ExecContext) popF64() float64 { return math.Float64frombits(ec.pop64()) }

// pushValue encodes a tagged value at the stack top.
func (ec *ExecContext) pushValue(v Value) error {
	if v.typ.Size() == 4 {
		return ec.push32(uint32(v.bits))
	}
	return ec.push64(v.bits)
}

// popValue decodes the value at the stack top with the given static type.
func (ec *ExecContext) popValue(t ValueType) Value {
	if t.Size() == 4 {
		return valueFromBits(t, uint64(ec.pop32()))
	}
	return valueFromBits(t, ec.pop64())
}

// slotAddr maps a slot byte offset from the current frame record to an
// absolute stack index. Params and locals sit immediately above the record.
func (ec *ExecContext) slotAddr(offset uint32) int {
	return int(ec.frame.savedTop) + frameSize + int(offset)
}

// Local reads the local (or param) with the given index of the currently
// executing function, typed by its static declaration.
func (ec *ExecContext) Local(index int) (Value, error) {
	fn := ec.currentFunc()
	if index < 0 || index >= len(fn.slotType) {
		return Value{}, fmt.Errorf("unknown local %d", index)
	}
	t := fn.slotType[index]
	addr := ec.slotAddr(fn.slotOffset[index])
	if t.Size() == 4 {
		return valueFromBits(t, uint64(binary.LittleEndian.Uint32(ec.stack[addr:]))), nil
	}
	return valueFromBits(t, binary.LittleEndian.Uint64(ec.stack[addr:])), nil
}

// SetLocal writes a local of the currently executing function. The value's
// tag must match the slot's declared type; a mismatched write is rejected
// rather than reinterpreted.
func (ec *ExecContext) SetLocal(index int, v Value) error {
	fn := ec.currentFunc()
	if index < 0 || index >= len(fn.slotType) {
		return fmt.Errorf("unknown local %d", index)
	}
	t := fn.slotType[index]
	if v.typ != t {
		return fmt.Errorf("%w: local %d is %s, value is %s", ErrTypeMismatch, index, t, v.typ)
	}
	addr := ec.slotAddr(fn.slotOffset[index])
	if t.Size() == 4 {
		binary.LittleEndian.PutUint32(ec.stack[addr:], uint32(v.bits))
	} else {
		binary.LittleEndian.PutUint64(ec.stack[addr:], v.bits)
	}
	return nil
}

// Global reads a module global by index.
func (ec *ExecContext) Global(index int) (Value, error) {
	if index < 0 || index >= len(ec.inst.globals) {
		return Value{}, fmt.Errorf("unknown global %d", index)
	}
	return ec.inst.globals[index], nil
}

// SetGlobal writes a mutable module global. The value's tag must match the
// global's declared type.
func (ec *ExecContext) SetGlobal(index int, v Value) error {
	if index < 0 || index >= len(ec.inst.globals) {
		return fmt.Errorf("unknown global %d", index)
	}
	g := &ec.inst.module.Globals[index]
	if !g.Mutable {
		return fmt.Errorf("global %d is immutable", index)
	}
	if v.typ != g.Type {
		return fmt.Errorf("%w: global %d is %s, value is %s", ErrTypeMismatch, index, g.Type, v.typ)
	}
	ec.inst.globals[index] = v
	return nil
}
