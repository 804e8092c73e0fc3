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
	"sync"

	"go.uber.org/zap"
)

// HostFunc is a host capability bound to a module import. It runs inside the
// guest's call chain: the context gives it checked access to guest memory,
// locals, and globals. Returning a non-nil error aborts the whole chain the
// way a trap does; recoverable conditions should be reported to the guest
// through the declared result value instead.
type HostFunc func(*ExecContext, []Value) (Value, error)

// Instance is one runtime instantiation of a compiled module: its linear
// memory, its globals, its bound host functions, and a private execution
// stack. Calls are serialized; concurrent Call invocations queue on an
// internal mutex rather than interleave.
type Instance struct {
	module    *Module
	mem       []byte
	globals   []Value
	hostFuncs []HostFunc
	stack     []byte
	logger    *zap.Logger

	mu sync.Mutex
}

// NewInstance instantiates a compiled module. Every declared import must be
// bound by the imports map (keyed by module name, then field name); data
// segments are copied into fresh linear memory and globals take their
// declared initial values.
func NewInstance(m *Module, imports map[string]map[string]HostFunc, cfg Config) (*Instance, error) {
	if !m.compiled {
		return nil, ErrNotCompiled
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultConfig().StackSize
	}
	if cfg.StackSize >= maxStackBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrStackTooLarge, cfg.StackSize)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	hostFuncs := make([]HostFunc, len(m.Imports))
	for i, imp := range m.Imports {
		mod, ok := imports[imp.Module]
		if !ok {
			return nil, fmt.Errorf("missing module %s", imp.Module)
		}
		fn, ok := mod[imp.Name]
		if !ok {
			return nil, fmt.Errorf("%s not in module %s", imp.Name, imp.Module)
		}
		hostFuncs[i] = fn
	}

	mem := make([]byte, int(m.Memory)*pageSize)
	for i, seg := range m.Data {
		end := uint64(seg.Offset) + uint64(len(seg.Data))
		if end > uint64(len(mem)) {
			return nil, fmt.Errorf("data segment %d: %w", i, TrapOutOfBounds)
		}
		copy(mem[seg.Offset:], seg.Data)
	}

	globals := make([]Value, len(m.Globals))
	for i, g := range m.Globals {
		globals[i] = g.Init
	}

	return &Instance{
		module:    m,
		mem:       mem,
		globals:   globals,
		hostFuncs: hostFuncs,
		stack:     make([]byte, cfg.StackSize),
		logger:    cfg.Logger,
	}, nil
}

// Module returns the compiled module this instance was built from.
func (i *Instance) Module() *Module { return i.module }

// Call invokes an exported function with the given arguments. The argument
// count and types must match the export's signature exactly. Calls on the
// same instance are serialized: a second caller blocks until the first call
// chain finishes or aborts.
func (i *Instance) Call(name string, params ...Value) (Value, error) {
	idx, ok := i.module.ExportedFunction(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownExport, name)
	}
	sigParams, _ := i.module.signature(idx)
	if len(params) != len(sigParams) {
		return Value{}, fmt.Errorf("%w: %q takes %d arguments, got %d",
			ErrSignatureMismatch, name, len(sigParams), len(params))
	}
	for pi, p := range params {
		if p.Type() != sigParams[pi] {
			return Value{}, fmt.Errorf("%w: %q argument %d is %s, got %s",
				ErrSignatureMismatch, name, pi, sigParams[pi], p.Type())
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.logger.Debug("calling export",
		zap.String("name", name),
		zap.Uint32("func", idx))

	ec := &ExecContext{
		inst:  i,
		stack: i.stack,
		top:   len(i.stack),
	}
	result, err := ec.run(idx, params)
	if err != nil {
		i.logger.Debug("call aborted", zap.String("name", name), zap.Error(err))
		return Value{}, err
	}
	return result, nil
}

// MemoryAccess returns the linear memory region [start+offset, start+offset+length).
// The sum is computed with 64-bit arithmetic, so address wraparound and
// out-of-range regions are both rejected with the same trap. A zero-length
// region at the very end of memory is valid.
func (i *Instance) MemoryAccess(start, offset, length uint32) ([]byte, error) {
	begin := uint64(start) + uint64(offset)
	end := begin + uint64(length)
	if end > uint64(len(i.mem)) {
		return nil, TrapOutOfBounds
	}
	return i.mem[begin:end:end], nil
}

// MemorySize returns the current linear memory size in bytes.
func (i *Instance) MemorySize() int { return len(i.mem) }

// MemoryPages returns the current linear memory size in pages.
func (i *Instance) MemoryPages() int32 { return int32(len(i.mem) / pageSize) }

// GrowMemory extends linear memory by the given number of pages, zero
// filled, and returns the previous size in pages. Guest code cannot grow
// memory; this is the only growth path. It takes the same lock Call holds,
// so it must not be called from inside a host function.
func (i *Instance) GrowMemory(pages uint32) (int32, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	current := uint32(len(i.mem) / pageSize)
	if uint64(current)+uint64(pages) > uint64(maxPages) {
		return 0, fmt.Errorf("memory growth to %d pages exceeds maximum %d", uint64(current)+uint64(pages), maxPages)
	}
	i.mem = append(i.mem, make([]byte, int(pages)*pageSize)...)
	return int32(current), nil
}

// fn returns a module-defined function by absolute index.
func (i *Instance) fn(idx uint32) *Func {
	return &i.module.Funcs[int(idx)-len(i.module.Imports)]
}
