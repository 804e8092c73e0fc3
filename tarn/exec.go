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
	"errors"
	"fmt"
	"math"
)

// Special error to signal a return instruction was hit.
var errReturn = errors.New("return instruction")

type execState int

const (
	stateRunning execState = iota
	stateReturned
	stateTrapped
)

// ExecContext interprets one call chain over a fixed native stack. The
// stack holds operands, serialized call frames, and locals; guest calls are
// driven by one iterative loop over those frames, so guest call depth never
// consumes native call frames. Host functions receive the active context and
// use it for all guest memory access.
type ExecContext struct {
	inst  *Instance
	stack []byte
	top   int
	frame frame
	state execState
}

// Instance returns the instance this context executes against.
func (ec *ExecContext) Instance() *Instance { return ec.inst }

func (ec *ExecContext) currentFunc() *Func {
	return ec.inst.fn(ec.frame.fn)
}

// run pushes the arguments, enters the call protocol for the resolved
// function, and interprets until the chain unwinds to the terminus frame.
func (ec *ExecContext) run(fidx uint32, params []Value) (Value, error) {
	outer := ec.inst.fn(fidx)
	for _, p := range params {
		if err := ec.pushValue(p); err != nil {
			return ec.abort(err)
		}
	}
	if err := ec.pushCall(fidx); err != nil {
		return ec.abort(err)
	}

	for ec.state == stateRunning {
		fn := ec.currentFunc()
		if int(ec.frame.ip) >= len(fn.code) {
			ec.unwindCall(fn)
			continue
		}
		in := fn.code[ec.frame.ip]
		ec.frame.ip++
		if err := ec.exec(fn, in); err != nil {
			if errors.Is(err, errReturn) {
				ec.unwindCall(fn)
				continue
			}
			return ec.abort(err)
		}
	}

	var result Value
	if outer.Result != nil {
		result = ec.popValue(*outer.Result)
	}
	if ec.top != len(ec.stack) {
		return Value{}, fmt.Errorf("stack imbalance after call: %d bytes leaked", len(ec.stack)-ec.top)
	}
	return result, nil
}

// abort terminates the call chain. No further instructions execute and the
// stack is restored to its full length so the instance stays reusable.
func (ec *ExecContext) abort(err error) (Value, error) {
	ec.state = stateTrapped
	ec.top = len(ec.stack)
	return Value{}, err
}

// pushCall performs the call protocol: zeroed locals for the callee, the
// caller's serialized frame, then a fresh current frame whose saved top
// marks the boundary everything above must be dropped to on return.
func (ec *ExecContext) pushCall(fidx uint32) error {
	fn := ec.inst.fn(fidx)
	if ec.top < int(fn.localBytes)+frameSize {
		return ErrStackExhausted
	}
	ec.top -= int(fn.localBytes)
	clear(ec.stack[ec.top : ec.top+int(fn.localBytes)])
	ec.top -= frameSize
	binary.LittleEndian.PutUint64(ec.stack[ec.top:], ec.frame.pack())
	ec.frame = frame{fn: fidx, ip: 0, savedTop: uint32(ec.top)}
	return nil
}

// unwindCall pops the callee's result, restores the cursor to the saved
// top (discarding any operand residue), drops the serialized frame and the
// callee's locals and params, and re-installs the caller's frame. Reaching
// the terminus completes the outermost call.
func (ec *ExecContext) unwindCall(fn *Func) {
	var result Value
	if fn.Result != nil {
		result = ec.popValue(*fn.Result)
	}
	ec.top = int(ec.frame.savedTop)
	prev := unpackFrame(binary.LittleEndian.Uint64(ec.stack[ec.top:]))
	ec.top += frameSize + int(fn.frameBytes)
	ec.frame = prev
	if fn.Result != nil {
		// Space for the result was freed by the unwind itself.
		if err := ec.pushValue(result); err != nil {
			panic("unreachable")
		}
	}
	if prev.isTerminus() {
		ec.state = stateReturned
	}
}

// branch transfers control within the current function, sliding the
// preserved bytes down over the dropped operand region.
func (ec *ExecContext) branch(arg uint64) {
	target, drop, keep := unpackBranch(arg)
	if drop > 0 {
		copy(ec.stack[ec.top+int(drop):ec.top+int(drop)+int(keep)],
			ec.stack[ec.top:ec.top+int(keep)])
		ec.top += int(drop)
	}
	ec.frame.ip = target
}

// callHost invokes a bound host function: declared args are popped with
// their static types, and the result status is pushed back for the guest.
// A host error (as opposed to a host status code) aborts the chain.
func (ec *ExecContext) callHost(idx uint32) error {
	imp := &ec.inst.module.Imports[idx]
	args := make([]Value, len(imp.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = ec.popValue(imp.Params[i])
	}
	result, err := ec.inst.hostFuncs[idx](ec, args)
	if err != nil {
		return err
	}
	if imp.Result == nil {
		return nil
	}
	if result.Type() != *imp.Result {
		return fmt.Errorf("%w: host %s.%s returned %s, declared %s",
			ErrTypeMismatch, imp.Module, imp.Name, result.Type(), *imp.Result)
	}
	return ec.pushValue(result)
}

func (ec *ExecContext) memLoad(offImm uint64, n uint32) ([]byte, error) {
	addr := uint32(ec.popI32())
	return ec.inst.MemoryAccess(addr, uint32(offImm), n)
}

func (ec *ExecContext) memStore(offImm uint64, n uint32, bits uint64) error {
	addr := uint32(ec.popI32())
	b, err := ec.inst.MemoryAccess(addr, uint32(offImm), n)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		b[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(b, bits)
	}
	return nil
}

func (ec *ExecContext) exec(fn *Func, in Instr) error {
	// A switch is significantly faster than a table of handlers here.
	switch in.Op {
	case OpUnreachable:
		return TrapUnreachable
	case OpReturn:
		return errReturn

	case opBranch:
		ec.branch(in.Arg)
	case opBranchIf:
		if ec.popI32() != 0 {
			ec.branch(in.Arg)
		}
	case opBranchIfZero:
		if ec.popI32() == 0 {
			ec.branch(in.Arg)
		}
	case opBranchTable:
		n := uint32(ec.popI32())
		table := fn.tables[in.Arg]
		i := len(table) - 1 // default label
		if n < uint32(len(table)-1) {
			i = int(n)
		}
		ec.branch(table[i])

	case OpCall:
		idx := uint32(in.Arg)
		if int(idx) < len(ec.inst.module.Imports) {
			return ec.callHost(idx)
		}
		return ec.pushCall(idx)

	case OpDrop:
		ec.top += int(in.Arg)
	case OpSelect:
		w := int(in.Arg)
		if ec.popI32() != 0 {
			// Keep the first operand: discard the second, which is on top.
			ec.top += w
		} else {
			copy(ec.stack[ec.top+w:ec.top+2*w], ec.stack[ec.top:ec.top+w])
			ec.top += w
		}

	case OpLocalGet:
		off, w := unpackSlot(in.Arg)
		addr := ec.slotAddr(off)
		if w == 4 {
			return ec.push32(binary.LittleEndian.Uint32(ec.stack[addr:]))
		}
		return ec.push64(binary.LittleEndian.Uint64(ec.stack[addr:]))
	case OpLocalSet, OpLocalTee:
		off, w := unpackSlot(in.Arg)
		addr := ec.slotAddr(off)
		if w == 4 {
			binary.LittleEndian.PutUint32(ec.stack[addr:], binary.LittleEndian.Uint32(ec.stack[ec.top:]))
		} else {
			binary.LittleEndian.PutUint64(ec.stack[addr:], binary.LittleEndian.Uint64(ec.stack[ec.top:]))
		}
		if in.Op == OpLocalSet {
			ec.top += int(w)
		}

	case OpGlobalGet:
		idx, w := unpackSlot(in.Arg)
		g := ec.inst.globals[idx]
		if w == 4 {
			return ec.push32(uint32(g.bits))
		}
		return ec.push64(g.bits)
	case OpGlobalSet:
		idx, w := unpackSlot(in.Arg)
		var bits uint64
		if w == 4 {
			bits = uint64(ec.pop32())
		} else {
			bits = ec.pop64()
		}
		ec.inst.globals[idx] = valueFromBits(ec.inst.module.Globals[idx].Type, bits)

	case OpI32Load:
		b, err := ec.memLoad(in.Arg, 4)
		if err != nil {
			return err
		}
		return ec.push32(binary.LittleEndian.Uint32(b))
	case OpI64Load:
		b, err := ec.memLoad(in.Arg, 8)
		if err != nil {
			return err
		}
		return ec.push64(binary.LittleEndian.Uint64(b))
	case OpF32Load:
		b, err := ec.memLoad(in.Arg, 4)
		if err != nil {
			return err
		}
		return ec.push32(binary.LittleEndian.Uint32(b))
	case OpF64Load:
		b, err := ec.memLoad(in.Arg, 8)
		if err != nil {
			return err
		}
		return ec.push64(binary.LittleEndian.Uint64(b))
	case OpI32Load8S:
		b, err := ec.memLoad(in.Arg, 1)
		if err != nil {
			return err
		}
		return ec.pushI32(signExtend8To32(b[0]))
	case OpI32Load8U:
		b, err := ec.memLoad(in.Arg, 1)
		if err != nil {
			return err
		}
		return ec.pushI32(zeroExtend8To32(b[0]))
	case OpI32Load16S:
		b, err := ec.memLoad(in.Arg, 2)
		if err != nil {
			return err
		}
		return ec.pushI32(signExtend16To32(binary.LittleEndian.Uint16(b)))
	case OpI32Load16U:
		b, err := ec.memLoad(in.Arg, 2)
		if err != nil {
			return err
		}
		return ec.pushI32(zeroExtend16To32(binary.LittleEndian.Uint16(b)))
	case OpI64Load8S:
		b, err := ec.memLoad(in.Arg, 1)
		if err != nil {
			return err
		}
		return ec.pushI64(signExtend8To64(b[0]))
	case OpI64Load8U:
		b, err := ec.memLoad(in.Arg, 1)
		if err != nil {
			return err
		}
		return ec.pushI64(zeroExtend8To64(b[0]))
	case OpI64Load16S:
		b, err := ec.memLoad(in.Arg, 2)
		if err != nil {
			return err
		}
		return ec.pushI64(signExtend16To64(binary.LittleEndian.Uint16(b)))
	case OpI64Load16U:
		b, err := ec.memLoad(in.Arg, 2)
		if err != nil {
			return err
		}
		return ec.pushI64(zeroExtend16To64(binary.LittleEndian.Uint16(b)))
	case OpI64Load32S:
		b, err := ec.memLoad(in.Arg, 4)
		if err != nil {
			return err
		}
		return ec.pushI64(signExtend32To64(binary.LittleEndian.Uint32(b)))
	case OpI64Load32U:
		b, err := ec.memLoad(in.Arg, 4)
		if err != nil {
			return err
		}
		return ec.pushI64(zeroExtend32To64(binary.LittleEndian.Uint32(b)))

	case OpI32Store:
		return ec.memStore(in.Arg, 4, uint64(ec.pop32()))
	case OpI64Store:
		return ec.memStore(in.Arg, 8, ec.pop64())
	case OpF32Store:
		return ec.memStore(in.Arg, 4, uint64(ec.pop32()))
	case OpF64Store:
		return ec.memStore(in.Arg, 8, ec.pop64())
	case OpI32Store8:
		return ec.memStore(in.Arg, 1, uint64(ec.pop32()))
	case OpI32Store16:
		return ec.memStore(in.Arg, 2, uint64(ec.pop32()))
	case OpI64Store8:
		return ec.memStore(in.Arg, 1, ec.pop64())
	case OpI64Store16:
		return ec.memStore(in.Arg, 2, ec.pop64())
	case OpI64Store32:
		return ec.memStore(in.Arg, 4, ec.pop64())

	case OpMemorySize:
		return ec.pushI32(ec.inst.MemoryPages())

	case OpI32Const, OpF32Const:
		return ec.push32(uint32(in.Arg))
	case OpI64Const, OpF64Const:
		return ec.push64(in.Arg)

	case OpI32Eqz:
		return ec.pushBool(ec.popI32() == 0)
	case OpI32Eq:
		return ec.cmpI32(equal)
	case OpI32Ne:
		return ec.cmpI32(notEqual)
	case OpI32LtS:
		return ec.cmpI32(lessThan)
	case OpI32LtU:
		return ec.cmpI32(lessThanU32)
	case OpI32GtS:
		return ec.cmpI32(greaterThan)
	case OpI32GtU:
		return ec.cmpI32(greaterThanU32)
	case OpI32LeS:
		return ec.cmpI32(lessOrEqual)
	case OpI32LeU:
		return ec.cmpI32(lessOrEqualU32)
	case OpI32GeS:
		return ec.cmpI32(greaterOrEqual)
	case OpI32GeU:
		return ec.cmpI32(greaterOrEqualU32)

	case OpI64Eqz:
		return ec.pushBool(ec.popI64() == 0)
	case OpI64Eq:
		return ec.cmpI64(equal)
	case OpI64Ne:
		return ec.cmpI64(notEqual)
	case OpI64LtS:
		return ec.cmpI64(lessThan)
	case OpI64LtU:
		return ec.cmpI64(lessThanU64)
	case OpI64GtS:
		return ec.cmpI64(greaterThan)
	case OpI64GtU:
		return ec.cmpI64(greaterThanU64)
	case OpI64LeS:
		return ec.cmpI64(lessOrEqual)
	case OpI64LeU:
		return ec.cmpI64(lessOrEqualU64)
	case OpI64GeS:
		return ec.cmpI64(greaterOrEqual)
	case OpI64GeU:
		return ec.cmpI64(greaterOrEqualU64)

	case OpF32Eq:
		return ec.cmpF32(equal)
	case OpF32Ne:
		return ec.cmpF32(notEqual)
	case OpF32Lt:
		return ec.cmpF32(lessThan)
	case OpF32Gt:
		return ec.cmpF32(greaterThan)
	case OpF32Le:
		return ec.cmpF32(lessOrEqual)
	case OpF32Ge:
		return ec.cmpF32(greaterOrEqual)
	case OpF64Eq:
		return ec.cmpF64(equal)
	case OpF64Ne:
		return ec.cmpF64(notEqual)
	case OpF64Lt:
		return ec.cmpF64(lessThan)
	case OpF64Gt:
		return ec.cmpF64(greaterThan)
	case OpF64Le:
		return ec.cmpF64(lessOrEqual)
	case OpF64Ge:
		return ec.cmpF64(greaterOrEqual)

	case OpI32Clz:
		return ec.pushI32(clz32(ec.popI32()))
	case OpI32Ctz:
		return ec.pushI32(ctz32(ec.popI32()))
	case OpI32Popcnt:
		return ec.pushI32(popcnt32(ec.popI32()))
	case OpI32Add:
		return ec.binaryI32(add)
	case OpI32Sub:
		return ec.binaryI32(sub)
	case OpI32Mul:
		return ec.binaryI32(mul)
	case OpI32DivS:
		return ec.binaryI32Err(divS32)
	case OpI32DivU:
		return ec.binaryI32Err(divU32)
	case OpI32RemS:
		return ec.binaryI32Err(remS32)
	case OpI32RemU:
		return ec.binaryI32Err(remU32)
	case OpI32And:
		return ec.binaryI32(and)
	case OpI32Or:
		return ec.binaryI32(or)
	case OpI32Xor:
		return ec.binaryI32(xor)
	case OpI32Shl:
		return ec.binaryI32(shl32)
	case OpI32ShrS:
		return ec.binaryI32(shrS32)
	case OpI32ShrU:
		return ec.binaryI32(shrU32)
	case OpI32Rotl:
		return ec.binaryI32(rotl32)
	case OpI32Rotr:
		return ec.binaryI32(rotr32)

	case OpI64Clz:
		return ec.pushI64(clz64(ec.popI64()))
	case OpI64Ctz:
		return ec.pushI64(ctz64(ec.popI64()))
	case OpI64Popcnt:
		return ec.pushI64(popcnt64(ec.popI64()))
	case OpI64Add:
		return ec.binaryI64(add)
	case OpI64Sub:
		return ec.binaryI64(sub)
	case OpI64Mul:
		return ec.binaryI64(mul)
	case OpI64DivS:
		return ec.binaryI64Err(divS64)
	case OpI64DivU:
		return ec.binaryI64Err(divU64)
	case OpI64RemS:
		return ec.binaryI64Err(remS64)
	case OpI64RemU:
		return ec.binaryI64Err(remU64)
	case OpI64And:
		return ec.binaryI64(and)
	case OpI64Or:
		return ec.binaryI64(or)
	case OpI64Xor:
		return ec.binaryI64(xor)
	case OpI64Shl:
		return ec.binaryI64(shl64)
	case OpI64ShrS:
		return ec.binaryI64(shrS64)
	case OpI64ShrU:
		return ec.binaryI64(shrU64)
	case OpI64Rotl:
		return ec.binaryI64(rotl64)
	case OpI64Rotr:
		return ec.binaryI64(rotr64)

	case OpF32Abs:
		return ec.pushF32(float32(math.Abs(float64(ec.popF32()))))
	case OpF32Neg:
		return ec.pushF32(-ec.popF32())
	case OpF32Ceil:
		return ec.pushF32(float32(math.Ceil(float64(ec.popF32()))))
	case OpF32Floor:
		return ec.pushF32(float32(math.Floor(float64(ec.popF32()))))
	case OpF32Trunc:
		return ec.pushF32(float32(math.Trunc(float64(ec.popF32()))))
	case OpF32Nearest:
		return ec.pushF32(float32(math.RoundToEven(float64(ec.popF32()))))
	case OpF32Sqrt:
		return ec.pushF32(float32(math.Sqrt(float64(ec.popF32()))))
	case OpF32Add:
		return ec.binaryF32(add)
	case OpF32Sub:
		return ec.binaryF32(sub)
	case OpF32Mul:
		return ec.binaryF32(mul)
	case OpF32Div:
		return ec.binaryF32(fdiv)
	case OpF32Min:
		return ec.binaryF32(fmin)
	case OpF32Max:
		return ec.binaryF32(fmax)
	case OpF32Copysign:
		return ec.binaryF32(fcopysign)

	case OpF64Abs:
		return ec.pushF64(math.Abs(ec.popF64()))
	case OpF64Neg:
		return ec.pushF64(-ec.popF64())
	case OpF64Ceil:
		return ec.pushF64(math.Ceil(ec.popF64()))
	case OpF64Floor:
		return ec.pushF64(math.Floor(ec.popF64()))
	case OpF64Trunc:
		return ec.pushF64(math.Trunc(ec.popF64()))
	case OpF64Nearest:
		return ec.pushF64(math.RoundToEven(ec.popF64()))
	case OpF64Sqrt:
		return ec.pushF64(math.Sqrt(ec.popF64()))
	case OpF64Add:
		return ec.binaryF64(add)
	case OpF64Sub:
		return ec.binaryF64(sub)
	case OpF64Mul:
		return ec.binaryF64(mul)
	case OpF64Div:
		return ec.binaryF64(fdiv)
	case OpF64Min:
		return ec.binaryF64(fmin)
	case OpF64Max:
		return ec.binaryF64(fmax)
	case OpF64Copysign:
		return ec.binaryF64(fcopysign)

	case OpI32WrapI64:
		return ec.pushI32(int32(ec.popI64()))
	case OpI32TruncF32S:
		v, err := truncSigned32(float64(ec.popF32()))
		if err != nil {
			return err
		}
		return ec.pushI32(v)
	case OpI32TruncF32U:
		v, err := truncUnsigned32(float64(ec.popF32()))
		if err != nil {
			return err
		}
		return ec.pushI32(v)
	case OpI32TruncF64S:
		v, err := truncSigned32(ec.popF64())
		if err != nil {
			return err
		}
		return ec.pushI32(v)
	case OpI32TruncF64U:
		v, err := truncUnsigned32(ec.popF64())
		if err != nil {
			return err
		}
		return ec.pushI32(v)
	case OpI64ExtendI32S:
		return ec.pushI64(int64(ec.popI32()))
	case OpI64ExtendI32U:
		return ec.pushI64(int64(uint32(ec.popI32())))
	case OpI64TruncF32S:
		v, err := truncSigned64(float64(ec.popF32()))
		if err != nil {
			return err
		}
		return ec.pushI64(v)
	case OpI64TruncF32U:
		v, err := truncUnsigned64(float64(ec.popF32()))
		if err != nil {
			return err
		}
		return ec.pushI64(v)
	case OpI64TruncF64S:
		v, err := truncSigned64(ec.popF64())
		if err != nil {
			return err
		}
		return ec.pushI64(v)
	case OpI64TruncF64U:
		v, err := truncUnsigned64(ec.popF64())
		if err != nil {
			return err
		}
		return ec.pushI64(v)
	case OpF32ConvertI32S:
		return ec.pushF32(float32(ec.popI32()))
	case OpF32ConvertI32U:
		return ec.pushF32(float32(uint32(ec.popI32())))
	case OpF32ConvertI64S:
		return ec.pushF32(float32(ec.popI64()))
	case OpF32ConvertI64U:
		return ec.pushF32(float32(uint64(ec.popI64())))
	case OpF32DemoteF64:
		return ec.pushF32(float32(ec.popF64()))
	case OpF64ConvertI32S:
		return ec.pushF64(float64(ec.popI32()))
	case OpF64ConvertI32U:
		return ec.pushF64(float64(uint32(ec.popI32())))
	case OpF64ConvertI64S:
		return ec.pushF64(float64(ec.popI64()))
	case OpF64ConvertI64U:
		return ec.pushF64(float64(uint64(ec.popI64())))
	case OpF64PromoteF32:
		return ec.pushF64(float64(ec.popF32()))
	case OpI32ReinterpretF32, OpF32ReinterpretI32, OpI64ReinterpretF64, OpF64ReinterpretI64:
		// Bit patterns are already in place on the byte stack.

	case OpI32Extend8S:
		return ec.pushI32(signExtend8To32(byte(ec.popI32())))
	case OpI32Extend16S:
		return ec.pushI32(signExtend16To32(uint16(ec.popI32())))
	case OpI64Extend8S:
		return ec.pushI64(signExtend8To64(byte(ec.popI64())))
	case OpI64Extend16S:
		return ec.pushI64(signExtend16To64(uint16(ec.popI64())))
	case OpI64Extend32S:
		return ec.pushI64(signExtend32To64(uint32(ec.popI64())))

	default:
		return fmt.Errorf("unknown opcode %d", in.Op)
	}
	return nil
}

func (ec *ExecContext) cmpI32(f func(a, b int32) bool) error {
	b := ec.popI32()
	a := ec.popI32()
	return ec.pushBool(f(a, b))
}

func (ec *ExecContext) cmpI64(f func(a, b int64) bool) error {
	b := ec.popI64()
	a := ec.popI64()
	return ec.pushBool(f(a, b))
}

func (ec *ExecContext) cmpF32(f func(a, b float32) bool) error {
	b := ec.popF32()
	a := ec.popF32()
	return ec.pushBool(f(a, b))
}

func (ec *ExecContext) cmpF64(f func(a, b float64) bool) error {
	b := ec.popF64()
	a := ec.popF64()
	return ec.pushBool(f(a, b))
}

func (ec *ExecContext) binaryI32(f func(a, b int32) int32) error {
	b := ec.popI32()
	a := ec.popI32()
	return ec.pushI32(f(a, b))
}

func (ec *ExecContext) binaryI32Err(f func(a, b int32) (int32, error)) error {
	b := ec.popI32()
	a := ec.popI32()
	v, err := f(a, b)
	if err != nil {
		return err
	}
	return ec.pushI32(v)
}

func (ec *ExecContext) binaryI64(f func(a, b int64) int64) error {
	b := ec.popI64()
	a := ec.popI64()
	return ec.pushI64(f(a, b))
}

func (ec *ExecContext) binaryI64Err(f func(a, b int64) (int64, error)) error {
	b := ec.popI64()
	a := ec.popI64()
	v, err := f(a, b)
	if err != nil {
		return err
	}
	return ec.pushI64(v)
}

func (ec *ExecContext) binaryF32(f func(a, b float32) float32) error {
	b := ec.popF32()
	a := ec.popF32()
	return ec.pushF32(f(a, b))
}

func (ec *ExecContext) binaryF64(f func(a, b float64) float64) error {
	b := ec.popF64()
	a := ec.popF64()
	return ec.pushF64(f(a, b))
}
