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

import "fmt"

const (
	// pageSize is the size of one linear memory page in bytes (64KiB).
	pageSize = 65536
	// maxPages caps the declarable initial memory.
	maxPages = uint32(1 << 15)
)

// Instr is one decoded instruction: an opcode byte plus its opcode-specific
// immediate. Const instructions carry the raw value bits, branches the
// relative label depth, calls the function index, and so on. BrTable
// additionally carries its label vector with the default label last.
type Instr struct {
	Op     Opcode
	Arg    uint64
	Labels []uint32
}

// Func is one function of a module: its signature, its locals (addressed in
// the same index space as params, starting after them), and its body. The
// body must be terminated by OpEnd. Name is diagnostic only.
type Func struct {
	Name   string
	Params []ValueType
	Result *ValueType
	Locals []ValueType
	Instrs []Instr

	// Populated by Compile.
	code       []Instr    // lowered body: absolute branches, resolved slots
	tables     [][]uint64 // packed branch args for opBranchTable
	slotType   []ValueType
	slotOffset []uint32 // slot byte offsets relative to the frame record
	paramBytes uint32
	localBytes uint32
	frameBytes uint32 // paramBytes + localBytes
}

// ImportFunc declares a host capability the module requires: a function the
// embedder binds at instantiation. Imports occupy the low function index
// space, before module-defined functions.
type ImportFunc struct {
	Module string
	Name   string
	Params []ValueType
	Result *ValueType
}

// Export binds a name to a module-defined function, making it callable from
// the host. Names are unique within a module.
type Export struct {
	Name      string
	FuncIndex uint32
}

// Global is a module global variable with a constant initializer.
type Global struct {
	Type    ValueType
	Mutable bool
	Init    Value
}

// DataSegment initializes a region of linear memory at instantiation.
type DataSegment struct {
	Offset uint32
	Data   []byte
}

// Module is the immutable in-memory representation of a parsed program.
// After Compile succeeds it holds no execution state and may be shared by
// any number of instances.
type Module struct {
	Memory  uint32 // initial linear memory size in pages
	Imports []ImportFunc
	Funcs   []Func
	Globals []Global
	Exports []Export
	Data    []DataSegment

	exports  map[string]uint32
	compiled bool
}

// Compile validates the module's structural limits, type-checks every
// function body, and lowers structured control flow into the executable
// form. It must be called once before the module is instantiated; failure
// leaves no partially compiled state behind.
func (m *Module) Compile() error {
	if m.compiled {
		return nil
	}
	if len(m.Imports)+len(m.Funcs) >= maxFunctions {
		return fmt.Errorf("%w: %d functions", ErrTooManyFunctions, len(m.Imports)+len(m.Funcs))
	}
	if m.Memory > maxPages {
		return fmt.Errorf("memory size %d pages exceeds maximum %d", m.Memory, maxPages)
	}

	for _, imp := range m.Imports {
		if err := checkSignature(imp.Params, imp.Result); err != nil {
			return fmt.Errorf("import %s.%s: %w", imp.Module, imp.Name, err)
		}
	}

	for gi, g := range m.Globals {
		if !validValueType(g.Type) {
			return fmt.Errorf("global %d: invalid value type", gi)
		}
		if g.Init.Type() != g.Type {
			return fmt.Errorf("global %d: %w", gi, ErrTypeMismatch)
		}
	}

	exports := make(map[string]uint32, len(m.Exports))
	for _, exp := range m.Exports {
		if _, ok := exports[exp.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateExport, exp.Name)
		}
		if int(exp.FuncIndex) < len(m.Imports) ||
			int(exp.FuncIndex) >= len(m.Imports)+len(m.Funcs) {
			return fmt.Errorf("export %q: function index %d out of range", exp.Name, exp.FuncIndex)
		}
		exports[exp.Name] = exp.FuncIndex
	}

	funcs := make([]Func, len(m.Funcs))
	copy(funcs, m.Funcs)
	for i := range funcs {
		fn := &funcs[i]
		if err := checkSignature(fn.Params, fn.Result); err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		for _, l := range fn.Locals {
			if !validValueType(l) {
				return fmt.Errorf("function %d: invalid local type", i)
			}
		}
		fn.layoutSlots()
		if err := lowerFunc(m, fn); err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		if len(fn.code) >= maxFuncInstrs {
			return fmt.Errorf("function %d: %w (%d instructions)", i, ErrFunctionTooLarge, len(fn.code))
		}
	}

	m.Funcs = funcs
	m.exports = exports
	m.compiled = true
	return nil
}

// ExportedFunction resolves an export name to its function index.
func (m *Module) ExportedFunction(name string) (uint32, bool) {
	idx, ok := m.exports[name]
	return idx, ok
}

// ExportSignature reports the parameter and result types of an export.
func (m *Module) ExportSignature(name string) ([]ValueType, *ValueType, bool) {
	idx, ok := m.exports[name]
	if !ok {
		return nil, nil, false
	}
	params, result := m.signature(idx)
	return params, result, true
}

func (m *Module) numFuncs() int {
	return len(m.Imports) + len(m.Funcs)
}

// signature returns the params and result of any function index, spanning
// imports and module-defined functions.
func (m *Module) signature(idx uint32) ([]ValueType, *ValueType) {
	if int(idx) < len(m.Imports) {
		imp := &m.Imports[idx]
		return imp.Params, imp.Result
	}
	fn := &m.Funcs[int(idx)-len(m.Imports)]
	return fn.Params, fn.Result
}

func checkSignature(params []ValueType, result *ValueType) error {
	for _, p := range params {
		if !validValueType(p) {
			return fmt.Errorf("invalid param type 0x%x", byte(p))
		}
	}
	if result != nil && !validValueType(*result) {
		return fmt.Errorf("invalid result type 0x%x", byte(*result))
	}
	return nil
}

// layoutSlots computes the byte offset of every param and local slot
// relative to the frame record. Params are pushed first, then locals, and
// the stack grows downward, so the last declared slot sits immediately
// above the frame record at offset zero.
func (f *Func) layoutSlots() {
	n := len(f.Params) + len(f.Locals)
	f.slotType = make([]ValueType, 0, n)
	f.slotType = append(f.slotType, f.Params...)
	f.slotType = append(f.slotType, f.Locals...)

	f.slotOffset = make([]uint32, n)
	var off uint32
	for i := n - 1; i >= 0; i-- {
		f.slotOffset[i] = off
		off += uint32(f.slotType[i].Size())
	}
	f.frameBytes = off

	f.paramBytes = 0
	for _, p := range f.Params {
		f.paramBytes += uint32(p.Size())
	}
	f.localBytes = f.frameBytes - f.paramBytes
}
