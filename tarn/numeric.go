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
	"math"
	"math/bits"
)

type wasmInt interface {
	int32 | int64
}

type wasmFloat interface {
	float32 | float64
}

type wasmNumber interface {
	wasmInt | wasmFloat
}

// Float bounds for truncation range checks. Each constant is the smallest
// power of two strictly above the target type's maximum, which float64
// represents exactly (the maximum itself often is not representable).
const (
	maxInt32Plus1  = float64(1 << 31)
	maxUint32Plus1 = float64(1 << 32)
	maxInt64Plus1  = float64(1 << 63)
	maxUint64Plus1 = float64(1 << 64)
)

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func equal[T wasmNumber](a, b T) bool { return a == b }
func notEqual[T wasmNumber](a, b T) bool { return a != b }
func lessThan[T wasmNumber](a, b T) bool { return a < b }
func greaterThan[T wasmNumber](a, b T) bool { return a > b }
func lessOrEqual[T wasmNumber](a, b T) bool { return a <= b }
func greaterOrEqual[T wasmNumber](a, b T) bool { return a >= b }

func lessThanU32(a, b int32) bool { return uint32(a) < uint32(b) }
func greaterThanU32(a, b int32) bool { return uint32(a) > uint32(b) }
func lessOrEqualU32(a, b int32) bool { return uint32(a) <= uint32(b) }
func greaterOrEqualU32(a, b int32) bool { return uint32(a) >= uint32(b) }

func lessThanU64(a, b int64) bool { return uint64(a) < uint64(b) }
func greaterThanU64(a, b int64) bool { return uint64(a) > uint64(b) }
func lessOrEqualU64(a, b int64) bool { return uint64(a) <= uint64(b) }
func greaterOrEqualU64(a, b int64) bool { return uint64(a) >= uint64(b) }

func add[T wasmNumber](a, b T) T { return a + b }
func sub[T wasmNumber](a, b T) T { return a - b }
func mul[T wasmNumber](a, b T) T { return a * b }

func and[T wasmInt](a, b T) T { return a & b }
func or[T wasmInt](a, b T) T  { return a | b }
func xor[T wasmInt](a, b T) T { return a ^ b }

// Shift and rotate counts are taken modulo the operand width.

func shl32(a, b int32) int32 { return a << (uint32(b) % 32) }
func shrS32(a, b int32) int32 { return a >> (uint32(b) % 32) }
func shrU32(a, b int32) int32 { return int32(uint32(a) >> (uint32(b) % 32)) }
func rotl32(a, b int32) int32 { return int32(bits.RotateLeft32(uint32(a), int(uint32(b)%32))) }
func rotr32(a, b int32) int32 { return int32(bits.RotateLeft32(uint32(a), -int(uint32(b)%32))) }

func shl64(a, b int64) int64 { return a << (uint64(b) % 64) }
func shrS64(a, b int64) int64 { return a >> (uint64(b) % 64) }
func shrU64(a, b int64) int64 { return int64(uint64(a) >> (uint64(b) % 64)) }
func rotl64(a, b int64) int64 { return int64(bits.RotateLeft64(uint64(a), int(uint64(b)%64))) }
func rotr64(a, b int64) int64 { return int64(bits.RotateLeft64(uint64(a), -int(uint64(b)%64))) }

func clz32(v int32) int32 { return int32(bits.LeadingZeros32(uint32(v))) }
func ctz32(v int32) int32 { return int32(bits.TrailingZeros32(uint32(v))) }
func popcnt32(v int32) int32 { return int32(bits.OnesCount32(uint32(v))) }

func clz64(v int64) int64 { return int64(bits.LeadingZeros64(uint64(v))) }
func ctz64(v int64) int64 { return int64(bits.TrailingZeros64(uint64(v))) }
func popcnt64(v int64) int64 { return int64(bits.OnesCount64(uint64(v))) }

// Signed division traps on a zero divisor and on the one overflowing case,
// minimum value divided by minus one. Signed remainder only traps on zero;
// the overflowing pair yields zero.

func divS32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	if a == math.MinInt32 && b == -1 {
		return 0, TrapIntegerOverflow
	}
	return a / b, nil
}

func divU32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	return int32(uint32(a) / uint32(b)), nil
}

func remS32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	if a == math.MinInt32 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func remU32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	return int32(uint32(a) % uint32(b)), nil
}

func divS64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, TrapIntegerOverflow
	}
	return a / b, nil
}

func divU64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	return int64(uint64(a) / uint64(b)), nil
}

func remS64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func remU64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, TrapDivisionByZero
	}
	return int64(uint64(a) % uint64(b)), nil
}

func fdiv[T wasmFloat](a, b T) T { return a / b }

func fmin[T wasmFloat](a, b T) T {
	return T(math.Min(float64(a), float64(b)))
}

func fmax[T wasmFloat](a, b T) T {
	return T(math.Max(float64(a), float64(b)))
}

func fcopysign[T wasmFloat](a, b T) T {
	return T(math.Copysign(float64(a), float64(b)))
}

// Float-to-integer truncation traps on NaN and on any value whose truncated
// form falls outside the target range.

func truncSigned32(f float64) (int32, error) {
	if math.IsNaN(f) {
		return 0, TrapInvalidConversion
	}
	tr := math.Trunc(f)
	if tr >= maxInt32Plus1 || tr < -maxInt32Plus1 {
		return 0, TrapIntegerOverflow
	}
	return int32(tr), nil
}

func truncUnsigned32(f float64) (int32, error) {
	if math.IsNaN(f) {
		return 0, TrapInvalidConversion
	}
	tr := math.Trunc(f)
	if tr >= maxUint32Plus1 || tr <= -1 {
		return 0, TrapIntegerOverflow
	}
	return int32(uint32(tr)), nil
}

func truncSigned64(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, TrapInvalidConversion
	}
	tr := math.Trunc(f)
	if tr >= maxInt64Plus1 || tr < -maxInt64Plus1 {
		return 0, TrapIntegerOverflow
	}
	return int64(tr), nil
}

func truncUnsigned64(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, TrapInvalidConversion
	}
	tr := math.Trunc(f)
	if tr >= maxUint64Plus1 || tr <= -1 {
		return 0, TrapIntegerOverflow
	}
	return int64(uint64(tr)), nil
}

func signExtend8To32(v byte) int32 { return int32(int8(v)) }
func zeroExtend8To32(v byte) int32 { return int32(v) }
func signExtend16To32(v uint16) int32 { return int32(int16(v)) }
func zeroExtend16To32(v uint16) int32 { return int32(v) }
func signExtend8To64(v byte) int64 { return int64(int8(v)) }
func zeroExtend8To64(v byte) int64 { return int64(v) }
func signExtend16To64(v uint16) int64 { return int64(int16(v)) }
func zeroExtend16To64(v uint16) int64 { return int64(v) }
func signExtend32To64(v uint32) int64 { return int64(int32(v)) }
func zeroExtend32To64(v uint32) int64 { return int64(v) }
