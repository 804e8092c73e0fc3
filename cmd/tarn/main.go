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

// Command tarn runs one exported function of a binary module:
//
//	tarn [-v] [-stack bytes] <module.wasm> <export> [args...]
//
// Arguments after the export name are parsed according to the export's
// signature and the result, if any, is printed to stdout. Guest traps exit
// with status 2, usage and load errors with status 1.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tarnvm/tarn/tarn"
	"github.com/tarnvm/tarn/wasi"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	stackSize := flag.Int("stack", tarn.DefaultConfig().StackSize, "execution stack size in bytes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] [-stack bytes] <module.wasm> <export> [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	result, err := run(flag.Arg(0), flag.Arg(1), flag.Args()[2:], *stackSize, *verbose)
	if err != nil {
		var trap tarn.Trap
		if errors.As(err, &trap) {
			fmt.Fprintf(os.Stderr, "trap: %s\n", trap)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	if result != nil {
		fmt.Println(result)
	}
}

func run(path, export string, strArgs []string, stackSize int, verbose bool) (any, error) {
	logger := zap.NewNop()
	if verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
		defer logger.Sync()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	module, err := tarn.DecodeModule(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	wasiModule := wasi.NewModule(append([]string{path}, strArgs...), environMap())
	inst, err := tarn.NewInstance(module, wasiModule.Imports(), tarn.Config{
		StackSize: stackSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	params, resultType, ok := module.ExportSignature(export)
	if !ok {
		return nil, fmt.Errorf("unknown export %q", export)
	}
	if len(strArgs) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", export, len(params), len(strArgs))
	}
	args := make([]tarn.Value, len(params))
	for i, t := range params {
		if args[i], err = parseArgument(strArgs[i], t); err != nil {
			return nil, err
		}
	}

	result, err := inst.Call(export, args...)
	if err != nil {
		return nil, err
	}
	if resultType == nil {
		return nil, nil
	}
	return result.Interface(), nil
}

func parseArgument(argStr string, paramType tarn.ValueType) (tarn.Value, error) {
	switch paramType {
	case tarn.I32:
		val, err := strconv.ParseInt(argStr, 10, 32)
		if err != nil {
			return tarn.Value{}, fmt.Errorf("failed to parse arg %s as i32: %v", argStr, err)
		}
		return tarn.I32Value(int32(val)), nil
	case tarn.I64:
		val, err := strconv.ParseInt(argStr, 10, 64)
		if err != nil {
			return tarn.Value{}, fmt.Errorf("failed to parse arg %s as i64: %v", argStr, err)
		}
		return tarn.I64Value(val), nil
	case tarn.F32:
		val, err := strconv.ParseFloat(argStr, 32)
		if err != nil {
			return tarn.Value{}, fmt.Errorf("failed to parse arg %s as f32: %v", argStr, err)
		}
		return tarn.F32Value(float32(val)), nil
	case tarn.F64:
		val, err := strconv.ParseFloat(argStr, 64)
		if err != nil {
			return tarn.Value{}, fmt.Errorf("failed to parse arg %s as f64: %v", argStr, err)
		}
		return tarn.F64Value(val), nil
	default:
		return tarn.Value{}, fmt.Errorf("unsupported parameter type %s", paramType)
	}
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
