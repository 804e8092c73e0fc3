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

// Package wasi exposes a subset of WASI preview 1 as host capabilities:
// command-line arguments, environment variables, clocks, and randomness.
// Every function reports failures to the guest through its errno result; a
// bad guest pointer yields ErrnoFault rather than aborting the call chain.
package wasi

import (
	"crypto/rand"
	"fmt"
	"sort"

	"github.com/tarnvm/tarn/tarn"
)

// ModuleName is the import module name guests use to reach these functions.
const ModuleName = "wasi_snapshot_preview1"

// Module holds the host-side state backing the capability functions.
type Module struct {
	args             []string
	env              map[string]string
	monotonicStartNs int64
}

// NewModule creates a capability module serving the given arguments and
// environment. The monotonic clock starts at zero at creation time.
func NewModule(args []string, env map[string]string) *Module {
	return &Module{
		args:             args,
		env:              env,
		monotonicStartNs: monotonicNow(),
	}
}

// Imports returns the host function bindings in the shape
// tarn.NewInstance consumes.
func (w *Module) Imports() map[string]map[string]tarn.HostFunc {
	return map[string]map[string]tarn.HostFunc{
		ModuleName: {
			"args_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.argsGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
			"args_sizes_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.argsSizesGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
			"environ_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.environGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
			"environ_sizes_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.environSizesGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
			"clock_time_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.clockTimeGet(ec, uint32(args[0].I32()), uint32(args[2].I32())))
			},
			"clock_res_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.clockResGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
			"random_get": func(ec *tarn.ExecContext, args []tarn.Value) (tarn.Value, error) {
				return errno(w.randomGet(ec, uint32(args[0].I32()), uint32(args[1].I32())))
			},
		},
	}
}

func errno(code int32) (tarn.Value, error) {
	return tarn.I32Value(code), nil
}

// Signatures returns the import declarations matching Imports, for
// embedders that assemble modules in memory.
func Signatures() []tarn.ImportFunc {
	i32 := tarn.I32
	result := tarn.I32
	return []tarn.ImportFunc{
		{Module: ModuleName, Name: "args_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
		{Module: ModuleName, Name: "args_sizes_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
		{Module: ModuleName, Name: "environ_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
		{Module: ModuleName, Name: "environ_sizes_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
		{Module: ModuleName, Name: "clock_time_get", Params: []tarn.ValueType{i32, tarn.I64, i32}, Result: &result},
		{Module: ModuleName, Name: "clock_res_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
		{Module: ModuleName, Name: "random_get", Params: []tarn.ValueType{i32, i32}, Result: &result},
	}
}

// argsGet writes the argument pointer array to argvPtr and the
// NUL-terminated argument strings to argvBufPtr.
func (w *Module) argsGet(ec *tarn.ExecContext, argvPtr, argvBufPtr uint32) int32 {
	return writeStringList(ec, w.args, argvPtr, argvBufPtr)
}

// argsSizesGet writes the argument count and the total buffer size the
// strings require, including NUL terminators.
func (w *Module) argsSizesGet(ec *tarn.ExecContext, argcPtr, bufSizePtr uint32) int32 {
	return writeStringListSizes(ec, w.args, argcPtr, bufSizePtr)
}

func (w *Module) environGet(ec *tarn.ExecContext, envPtr, envBufPtr uint32) int32 {
	return writeStringList(ec, w.envList(), envPtr, envBufPtr)
}

func (w *Module) environSizesGet(ec *tarn.ExecContext, countPtr, bufSizePtr uint32) int32 {
	return writeStringListSizes(ec, w.envList(), countPtr, bufSizePtr)
}

// envList renders the environment as KEY=VALUE strings in a stable order,
// so repeated environ_get calls lay out identical buffers.
func (w *Module) envList() []string {
	keys := make([]string, 0, len(w.env))
	for k := range w.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]string, len(keys))
	for i, k := range keys {
		list[i] = fmt.Sprintf("%s=%s", k, w.env[k])
	}
	return list
}

func writeStringList(ec *tarn.ExecContext, list []string, ptrsPtr, bufPtr uint32) int32 {
	ptrs := make([]uint32, len(list))
	offset := bufPtr
	for i, s := range list {
		ptrs[i] = offset
		if err := ec.WriteBytes(offset, append([]byte(s), 0)); err != nil {
			return ErrnoFault
		}
		offset += uint32(len(s)) + 1
	}
	if err := ec.WriteU32s(ptrsPtr, ptrs); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func writeStringListSizes(ec *tarn.ExecContext, list []string, countPtr, bufSizePtr uint32) int32 {
	if err := ec.WriteU32(countPtr, uint32(len(list))); err != nil {
		return ErrnoFault
	}
	var bufSize uint32
	for _, s := range list {
		bufSize += uint32(len(s)) + 1
	}
	if err := ec.WriteU32(bufSizePtr, bufSize); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func (w *Module) clockTimeGet(ec *tarn.ExecContext, clockID, resultPtr uint32) int32 {
	ns, errCode := timestamp(w.monotonicStartNs, clockID)
	if errCode != ErrnoSuccess {
		return errCode
	}
	if err := ec.WriteU64(resultPtr, uint64(ns)); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func (w *Module) clockResGet(ec *tarn.ExecContext, clockID, resultPtr uint32) int32 {
	res, errCode := clockResolution(clockID)
	if errCode != ErrnoSuccess {
		return errCode
	}
	if err := ec.WriteU64(resultPtr, res); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func (w *Module) randomGet(ec *tarn.ExecContext, bufPtr, bufLen uint32) int32 {
	buf := make([]byte, bufLen)
	if _, err := rand.Read(buf); err != nil {
		return ErrnoIO
	}
	if err := ec.WriteBytes(bufPtr, buf); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}
