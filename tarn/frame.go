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

// A frame is the linkage record threaded through the byte stack at each
// call: the callee's function index, the next instruction index within it,
// and the stack cursor recorded when the frame was installed (the boundary
// execution must restore the cursor to on return).
//
// Frames are packed into a single 64-bit word so they can live inline in the
// byte stack next to operands and locals. The field widths cap the function
// index space at 2^20, the per-function instruction index space at 2^22, and
// the addressable stack at 2^22 bytes; Module.Compile and NewInstance
// enforce these limits so packing can never truncate.
const (
	frameSize = 8

	funcIndexBits   = 20
	instrIndexBits  = 22
	stackOffsetBits = 22

	maxFunctions  = 1 << funcIndexBits
	maxFuncInstrs = 1 << instrIndexBits
	maxStackBytes = 1 << stackOffsetBits
)

type frame struct {
	fn       uint32
	ip       uint32
	savedTop uint32
}

// terminus is the sentinel frame marking the bottom of a call chain.
// Deserializing it during unwind means the outermost call has completed.
var terminus = frame{}

func (f frame) pack() uint64 {
	return uint64(f.fn) |
		uint64(f.ip)<<funcIndexBits |
		uint64(f.savedTop)<<(funcIndexBits+instrIndexBits)
}

func unpackFrame(bits uint64) frame {
	return frame{
		fn:       uint32(bits & (maxFunctions - 1)),
		ip:       uint32(bits >> funcIndexBits & (maxFuncInstrs - 1)),
		savedTop: uint32(bits >> (funcIndexBits + instrIndexBits) & (maxStackBytes - 1)),
	}
}

func (f frame) isTerminus() bool {
	return f == terminus
}
