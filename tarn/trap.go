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

import "errors"

// Trap is a guest-triggered abnormal exit from a call chain. A trap aborts
// the entire chain back to Instance.Call; it is never caught or resumed
// internally. The set of traps is closed.
type Trap int

const (
	TrapUnreachable Trap = iota
	TrapIntegerOverflow
	TrapOutOfBounds
	TrapDivisionByZero
	TrapInvalidConversion
)

func (t Trap) Error() string {
	switch t {
	case TrapUnreachable:
		return "unreachable"
	case TrapIntegerOverflow:
		return "integer overflow"
	case TrapOutOfBounds:
		return "out of bounds memory access"
	case TrapDivisionByZero:
		return "integer divide by zero"
	case TrapInvalidConversion:
		return "invalid conversion to integer"
	default:
		return "unknown trap"
	}
}

var (
	// ErrUnknownExport is returned by Instance.Call when the export name does
	// not resolve to a function.
	ErrUnknownExport = errors.New("unknown export")

	// ErrSignatureMismatch is returned by Instance.Call when the argument
	// count or types disagree with the function's declared parameters.
	ErrSignatureMismatch = errors.New("function signature mismatch")

	// ErrStackExhausted reports that a push would move the stack cursor below
	// zero. This is a native resource fault, not a guest trap: it indicates
	// the configured stack is too small for the call chain, and it aborts the
	// call without being observable to guest error handling.
	ErrStackExhausted = errors.New("call stack exhausted")

	// ErrTypeMismatch reports a Value whose tag disagrees with the statically
	// declared type of the slot it was written to.
	ErrTypeMismatch = errors.New("value type mismatch")

	ErrNotCompiled      = errors.New("module is not compiled")
	ErrTooManyFunctions = errors.New("function index space exhausted")
	ErrFunctionTooLarge = errors.New("instruction index space exhausted")
	ErrStackTooLarge    = errors.New("stack size exceeds frame offset space")
	ErrDuplicateExport  = errors.New("duplicate export name")
)
