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

const clockResolutionNs = 1

const (
	clockRealtime         uint32 = 0 // The clock measuring real time.
	clockMonotonic        uint32 = 1 // The store-wide monotonic clock.
	clockProcessCPUTimeID uint32 = 2 // The CPU-time clock for the process.
	clockThreadCPUTimeID  uint32 = 3 // The CPU-time clock for the thread.
)

func clockResolution(clockID uint32) (uint64, int32) {
	if !isValidClockID(clockID) {
		return 0, ErrnoInval
	}
	return clockResolutionNs, ErrnoSuccess
}

// timestamp reads the requested clock in nanoseconds. The monotonic clock
// is reported relative to module creation; CPU-time clocks are declared but
// not served.
func timestamp(monotonicStartNs int64, clockID uint32) (int64, int32) {
	switch clockID {
	case clockRealtime:
		return realtimeNow(), ErrnoSuccess
	case clockMonotonic:
		return monotonicNow() - monotonicStartNs, ErrnoSuccess
	case clockProcessCPUTimeID, clockThreadCPUTimeID:
		return 0, ErrnoNotSup
	default:
		return 0, ErrnoInval
	}
}

func isValidClockID(clockID uint32) bool {
	switch clockID {
	case clockRealtime,
		clockMonotonic,
		clockProcessCPUTimeID,
		clockThreadCPUTimeID:
		return true
	default:
		return false
	}
}
