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
	"fmt"
	"math"
)

// ValueType classifies the values the machine computes with. There are
// exactly four kinds; every stack slot, local, global, and result is one of
// these, with a statically known width of 4 or 8 bytes.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F32 ValueType = 0x7d
	F64 ValueType = 0x7c
)

// Size returns the byte width of a value of this type.
func (t ValueType) Size() int {
	switch t {
	case I32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		panic("unreachable")
	}
}

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("valuetype(0x%x)", byte(t))
	}
}

func validValueType(t ValueType) bool {
	switch t {
	case I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

// Value is a tagged union over the four value types. Stack storage inside
// the interpreter is untyped bytes; a Value is how a value crosses an API
// boundary, and its tag must always agree with the statically declared type
// of the slot it is read from or written to.
type Value struct {
	typ  ValueType
	bits uint64
}

func I32Value(v int32) Value {
	return Value{typ: I32, bits: uint64(uint32(v))}
}

func I64Value(v int64) Value {
	return Value{typ: I64, bits: uint64(v)}
}

func F32Value(v float32) Value {
	return Value{typ: F32, bits: uint64(math.Float32bits(v))}
}

func F64Value(v float64) Value {
	return Value{typ: F64, bits: math.Float64bits(v)}
}

// Type returns the value's tag.
func (v Value) Type() ValueType { return v.typ }

func (v Value) I32() int32 { return int32(uint32(v.bits)) }

func (v Value) I64() int64 { return int64(v.bits) }

func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }

func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

// Interface returns the value as the matching Go scalar.
func (v Value) Interface() any {
	switch v.typ {
	case I32:
		return v.I32()
	case I64:
		return v.I64()
	case F32:
		return v.F32()
	case F64:
		return v.F64()
	default:
		panic("unreachable")
	}
}

func (v Value) String() string {
	switch v.typ {
	case I32, I64, F32, F64:
		return fmt.Sprintf("%v", v.Interface())
	default:
		return "<invalid value>"
	}
}

func valueFromBits(t ValueType, bits uint64) Value {
	if t.Size() == 4 {
		bits &= 0xffffffff
	}
	return Value{typ: t, bits: bits}
}
