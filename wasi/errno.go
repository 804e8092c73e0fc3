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

package wasi

// Errno values returned to the guest. The numbering follows the WASI
// preview 1 ABI; only the codes this module can actually produce are
// defined.
const (
	ErrnoSuccess int32 = 0  // No error occurred.
	Errno2Big    int32 = 1  // Argument list too long.
	ErrnoBadF    int32 = 8  // Bad file descriptor.
	ErrnoFault   int32 = 21 // Bad address.
	ErrnoInval   int32 = 28 // Invalid argument.
	ErrnoIO      int32 = 29 // I/O error.
	ErrnoNoSys   int32 = 52 // Function not supported.
	ErrnoNotSup  int32 = 58 // Not supported.
)
