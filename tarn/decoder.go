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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidMagicNumber  = errors.New("invalid magic number")
	ErrUnsupportedVersion  = errors.New("unsupported binary version")
	ErrUnsupportedSection  = errors.New("unsupported section")
	ErrMultipleMemories    = errors.New("at most one memory is allowed")
	ErrNonFuncImport       = errors.New("only function imports are supported")
	ErrNonFuncExport       = errors.New("only function exports are supported")
	ErrPassiveDataSegment  = errors.New("only active data segments are supported")
	ErrNonConstInitializer = errors.New("initializer must be a single const")
)

const (
	wasmMagicNumber      = "\x00asm"
	supportedWasmVersion = 1
)

type sectionID byte

const (
	customSectionID sectionID = iota
	typeSectionID
	importSectionID
	functionSectionID
	tableSectionID
	memorySectionID
	globalSectionID
	exportSectionID
	startSectionID
	elementSectionID
	codeSectionID
	dataSectionID
	dataCountSectionID
)

type funcType struct {
	params []ValueType
	result *ValueType
}

// Decoder reads a binary module into its in-memory representation.
type Decoder struct {
	reader *bufio.Reader
}

func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(reader)}
}

// DecodeModule decodes and compiles a binary module. Sections outside the
// supported subset (tables, element segments, start functions, data counts)
// are rejected rather than ignored; custom sections are skipped.
func DecodeModule(reader io.Reader) (*Module, error) {
	m, err := NewDecoder(reader).Decode()
	if err != nil {
		return nil, err
	}
	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode reads the module without compiling it.
func (d *Decoder) Decode() (*Module, error) {
	if err := d.decodeHeader(); err != nil {
		return nil, err
	}

	var types []funcType
	var typeIndexes []uint32
	m := &Module{}

	for {
		idByte, err := d.reader.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read section ID: %w", err)
		}

		payloadLen, err := d.decodeUleb32()
		if err != nil {
			return nil, fmt.Errorf("failed to read section payload length: %w", err)
		}

		switch sectionID(idByte) {
		case customSectionID:
			if _, err := io.CopyN(io.Discard, d.reader, int64(payloadLen)); err != nil {
				return nil, fmt.Errorf("failed to skip custom section: %w", err)
			}
		case typeSectionID:
			types, err = decodeVector(d, d.decodeFuncType)
		case importSectionID:
			m.Imports, err = d.decodeImports(types)
		case functionSectionID:
			typeIndexes, err = decodeVector(d, d.decodeUleb32)
		case memorySectionID:
			m.Memory, err = d.decodeMemorySection()
		case globalSectionID:
			m.Globals, err = decodeVector(d, d.decodeGlobal)
		case exportSectionID:
			m.Exports, err = decodeVector(d, d.decodeExport)
		case codeSectionID:
			m.Funcs, err = d.decodeCodeSection(types, typeIndexes)
		case dataSectionID:
			m.Data, err = decodeVector(d, d.decodeDataSegment)
		default:
			return nil, fmt.Errorf("%w: id %d", ErrUnsupportedSection, idByte)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(typeIndexes) != len(m.Funcs) {
		return nil, fmt.Errorf("incompatible number of func indexes/bodies")
	}
	return m, nil
}

func (d *Decoder) decodeHeader() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(d.reader, magic); err != nil {
		return fmt.Errorf("failed to read magic number: %w", err)
	}
	if string(magic) != wasmMagicNumber {
		return ErrInvalidMagicNumber
	}
	version := make([]byte, 4)
	if _, err := io.ReadFull(d.reader, version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if binary.LittleEndian.Uint32(version) != supportedWasmVersion {
		return ErrUnsupportedVersion
	}
	return nil
}

func (d *Decoder) decodeFuncType() (funcType, error) {
	var ft funcType
	tag, err := d.reader.ReadByte()
	if err != nil {
		return ft, err
	}
	if tag != 0x60 {
		return ft, fmt.Errorf("invalid function type tag 0x%x", tag)
	}
	if ft.params, err = decodeVector(d, d.decodeValueType); err != nil {
		return ft, err
	}
	results, err := decodeVector(d, d.decodeValueType)
	if err != nil {
		return ft, err
	}
	if len(results) > 1 {
		return ft, fmt.Errorf("multi-value results are not supported")
	}
	if len(results) == 1 {
		ft.result = &results[0]
	}
	return ft, nil
}

func (d *Decoder) decodeImports(types []funcType) ([]ImportFunc, error) {
	return decodeVector(d, func() (ImportFunc, error) {
		var imp ImportFunc
		var err error
		if imp.Module, err = d.decodeName(); err != nil {
			return imp, err
		}
		if imp.Name, err = d.decodeName(); err != nil {
			return imp, err
		}
		kind, err := d.reader.ReadByte()
		if err != nil {
			return imp, err
		}
		if kind != 0x00 {
			return imp, fmt.Errorf("%w: import %s.%s has kind %d", ErrNonFuncImport, imp.Module, imp.Name, kind)
		}
		typeIdx, err := d.decodeUleb32()
		if err != nil {
			return imp, err
		}
		if int(typeIdx) >= len(types) {
			return imp, fmt.Errorf("import %s.%s: unknown type index %d", imp.Module, imp.Name, typeIdx)
		}
		imp.Params = types[typeIdx].params
		imp.Result = types[typeIdx].result
		return imp, nil
	})
}

func (d *Decoder) decodeMemorySection() (uint32, error) {
	count, err := d.decodeUleb32()
	if err != nil {
		return 0, err
	}
	if count > 1 {
		return 0, ErrMultipleMemories
	}
	if count == 0 {
		return 0, nil
	}
	flags, err := d.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	minPages, err := d.decodeUleb32()
	if err != nil {
		return 0, err
	}
	if flags == 0x01 {
		// The maximum is declarative only: memory never grows from guest
		// code, so only the initial size matters.
		if _, err := d.decodeUleb32(); err != nil {
			return 0, err
		}
	} else if flags != 0x00 {
		return 0, fmt.Errorf("invalid memory limits flags 0x%x", flags)
	}
	return minPages, nil
}

func (d *Decoder) decodeGlobal() (Global, error) {
	var g Global
	t, err := d.decodeValueType()
	if err != nil {
		return g, err
	}
	mut, err := d.reader.ReadByte()
	if err != nil {
		return g, err
	}
	if mut > 1 {
		return g, fmt.Errorf("invalid global mutability 0x%x", mut)
	}
	g.Type = t
	g.Mutable = mut == 1
	g.Init, err = d.decodeConstExpr(t)
	return g, err
}

// decodeConstExpr reads an initializer expression, which must be a single
// const instruction of the wanted type followed by end.
func (d *Decoder) decodeConstExpr(want ValueType) (Value, error) {
	op, err := d.reader.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var v Value
	switch Opcode(op) {
	case OpI32Const:
		n, err := readSleb128(d.reader, 5)
		if err != nil {
			return Value{}, err
		}
		v = I32Value(int32(n))
	case OpI64Const:
		n, err := readSleb128(d.reader, 10)
		if err != nil {
			return Value{}, err
		}
		v = I64Value(n)
	case OpF32Const:
		bits, err := d.readFixed32()
		if err != nil {
			return Value{}, err
		}
		v = valueFromBits(F32, uint64(bits))
	case OpF64Const:
		bits, err := d.readFixed64()
		if err != nil {
			return Value{}, err
		}
		v = valueFromBits(F64, bits)
	default:
		return Value{}, fmt.Errorf("%w: opcode 0x%x", ErrNonConstInitializer, op)
	}
	end, err := d.reader.ReadByte()
	if err != nil {
		return Value{}, err
	}
	if Opcode(end) != OpEnd {
		return Value{}, fmt.Errorf("%w: missing end", ErrNonConstInitializer)
	}
	if v.Type() != want {
		return Value{}, fmt.Errorf("initializer type %s does not match declared %s", v.Type(), want)
	}
	return v, nil
}

func (d *Decoder) decodeExport() (Export, error) {
	var exp Export
	var err error
	if exp.Name, err = d.decodeName(); err != nil {
		return exp, err
	}
	kind, err := d.reader.ReadByte()
	if err != nil {
		return exp, err
	}
	if kind != 0x00 {
		return exp, fmt.Errorf("%w: export %q has kind %d", ErrNonFuncExport, exp.Name, kind)
	}
	exp.FuncIndex, err = d.decodeUleb32()
	return exp, err
}

func (d *Decoder) decodeCodeSection(types []funcType, typeIndexes []uint32) ([]Func, error) {
	count, err := d.decodeUleb32()
	if err != nil {
		return nil, err
	}
	if int(count) != len(typeIndexes) {
		return nil, fmt.Errorf("incompatible number of func indexes/bodies")
	}
	funcs := make([]Func, count)
	for i := range funcs {
		if int(typeIndexes[i]) >= len(types) {
			return nil, fmt.Errorf("function %d: unknown type index %d", i, typeIndexes[i])
		}
		ft := types[typeIndexes[i]]
		funcs[i].Params = ft.params
		funcs[i].Result = ft.result
		if err := d.decodeFuncBody(&funcs[i]); err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
	}
	return funcs, nil
}

func (d *Decoder) decodeFuncBody(fn *Func) error {
	// The body size is redundant with the instruction stream; it is read and
	// discarded.
	if _, err := d.decodeUleb32(); err != nil {
		return err
	}

	declCount, err := d.decodeUleb32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < declCount; i++ {
		n, err := d.decodeUleb32()
		if err != nil {
			return err
		}
		t, err := d.decodeValueType()
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			fn.Locals = append(fn.Locals, t)
		}
	}

	depth := 1
	for depth > 0 {
		in, err := d.decodeInstr()
		if err != nil {
			return err
		}
		switch in.Op {
		case OpBlock, OpLoop, OpIf:
			depth++
		case OpEnd:
			depth--
		}
		fn.Instrs = append(fn.Instrs, in)
	}
	return nil
}

func (d *Decoder) decodeInstr() (Instr, error) {
	op, err := d.reader.ReadByte()
	if err != nil {
		return Instr{}, err
	}
	in := Instr{Op: Opcode(op)}

	switch in.Op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect:
		// No immediates.

	case OpBlock, OpLoop, OpIf:
		bt, err := d.reader.ReadByte()
		if err != nil {
			return Instr{}, err
		}
		if bt != blockTypeEmpty && !validValueType(ValueType(bt)) {
			return Instr{}, fmt.Errorf("invalid block type 0x%x", bt)
		}
		in.Arg = uint64(bt)

	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee,
		OpGlobalGet, OpGlobalSet:
		idx, err := d.decodeUleb32()
		if err != nil {
			return Instr{}, err
		}
		in.Arg = uint64(idx)

	case OpBrTable:
		labels, err := decodeVector(d, d.decodeUleb32)
		if err != nil {
			return Instr{}, err
		}
		deflt, err := d.decodeUleb32()
		if err != nil {
			return Instr{}, err
		}
		in.Labels = append(labels, deflt)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U,
		OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		// The alignment hint has no semantic effect; only the offset is kept.
		if _, err := d.decodeUleb32(); err != nil {
			return Instr{}, err
		}
		offset, err := d.decodeUleb32()
		if err != nil {
			return Instr{}, err
		}
		in.Arg = uint64(offset)

	case OpMemorySize:
		zero, err := d.reader.ReadByte()
		if err != nil {
			return Instr{}, err
		}
		if zero != 0x00 {
			return Instr{}, fmt.Errorf("invalid memory index 0x%x", zero)
		}

	case OpI32Const:
		n, err := readSleb128(d.reader, 5)
		if err != nil {
			return Instr{}, err
		}
		in.Arg = uint64(uint32(int32(n)))
	case OpI64Const:
		n, err := readSleb128(d.reader, 10)
		if err != nil {
			return Instr{}, err
		}
		in.Arg = uint64(n)
	case OpF32Const:
		bits, err := d.readFixed32()
		if err != nil {
			return Instr{}, err
		}
		in.Arg = uint64(bits)
	case OpF64Const:
		bits, err := d.readFixed64()
		if err != nil {
			return Instr{}, err
		}
		in.Arg = bits

	default:
		// Every remaining supported opcode is a plain numeric instruction
		// with no immediates; anything else is rejected during lowering.
		if op < byte(OpI32Eqz) || op > byte(OpI64Extend32S) {
			return Instr{}, fmt.Errorf("unsupported opcode 0x%x", op)
		}
	}
	return in, nil
}

func (d *Decoder) decodeDataSegment() (DataSegment, error) {
	var seg DataSegment
	memIdx, err := d.decodeUleb32()
	if err != nil {
		return seg, err
	}
	if memIdx != 0 {
		return seg, fmt.Errorf("%w: mode %d", ErrPassiveDataSegment, memIdx)
	}
	offset, err := d.decodeConstExpr(I32)
	if err != nil {
		return seg, err
	}
	seg.Offset = uint32(offset.I32())
	length, err := d.decodeUleb32()
	if err != nil {
		return seg, err
	}
	seg.Data = make([]byte, length)
	_, err = io.ReadFull(d.reader, seg.Data)
	return seg, err
}

func (d *Decoder) decodeValueType() (ValueType, error) {
	b, err := d.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	t := ValueType(b)
	if !validValueType(t) {
		return 0, fmt.Errorf("invalid value type 0x%x", b)
	}
	return t, nil
}

func (d *Decoder) decodeName() (string, error) {
	length, err := d.decodeUleb32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.reader, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *Decoder) decodeUleb32() (uint32, error) {
	v, err := readUleb128(d.reader, 5)
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, ErrIntegerTooLarge
	}
	return uint32(v), nil
}

func (d *Decoder) readFixed32() (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(d.reader, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (d *Decoder) readFixed64() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(d.reader, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// decodeVector reads a length-prefixed vector, decoding each element with
// the given function.
func decodeVector[T any](d *Decoder, decode func() (T, error)) ([]T, error) {
	count, err := d.decodeUleb32()
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	for i := range out {
		if out[i], err = decode(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
