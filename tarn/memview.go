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

import "encoding/binary"

// Typed guest-memory accessors for host functions. Guest pointers arrive as
// i32 values; every access goes through the instance bounds check, so a bad
// pointer surfaces as TrapOutOfBounds for the host to translate into its own
// error convention.

// ReadBytes copies length bytes of guest memory starting at ptr.
func (ec *ExecContext) ReadBytes(ptr, length uint32) ([]byte, error) {
	b, err := ec.inst.MemoryAccess(ptr, 0, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// WriteBytes copies data into guest memory at ptr.
func (ec *ExecContext) WriteBytes(ptr uint32, data []byte) error {
	b, err := ec.inst.MemoryAccess(ptr, 0, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// ReadU32 reads a little-endian u32 from guest memory.
func (ec *ExecContext) ReadU32(ptr uint32) (uint32, error) {
	b, err := ec.inst.MemoryAccess(ptr, 0, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteU32 writes a little-endian u32 into guest memory.
func (ec *ExecContext) WriteU32(ptr uint32, v uint32) error {
	b, err := ec.inst.MemoryAccess(ptr, 0, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// WriteU64 writes a little-endian u64 into guest memory.
func (ec *ExecContext) WriteU64(ptr uint32, v uint64) error {
	b, err := ec.inst.MemoryAccess(ptr, 0, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// WriteU32s writes consecutive little-endian u32 values starting at ptr.
// The whole region is bounds-checked up front, so the write is all or
// nothing.
func (ec *ExecContext) WriteU32s(ptr uint32, vs []uint32) error {
	b, err := ec.inst.MemoryAccess(ptr, 0, uint32(len(vs)*4))
	if err != nil {
		return err
	}
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return nil
}
