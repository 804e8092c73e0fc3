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

import "go.uber.org/zap"

// Config carries per-instance settings.
type Config struct {
	// StackSize is the byte size of the instance's execution stack. It
	// bounds the combined depth of operands, call frames, and locals.
	StackSize int
	// Logger receives debug-level execution events. Nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns a 1MiB stack and no logging.
func DefaultConfig() Config {
	return Config{
		StackSize: 1 << 20,
		Logger:    zap.NewNop(),
	}
}
