// Command ignitiond is a minimal host process for the Ignition runtime: it
// compiles one or more guest WebAssembly modules named on the command line,
// each becoming one multi-process guest, wires the ignition.* ABI against
// each, and runs every scheduler loop to completion.
//
// This is deliberately thin; the interesting behavior lives in
// internal/ignition and internal/abi.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/mvanbem/ignition/internal/abi"
	"github.com/mvanbem/ignition/internal/ignition"
	"github.com/mvanbem/ignition/internal/logging"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s guest.wasm [guest2.wasm ...]\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "ignitiond:", err)
		os.Exit(1)
	}
}

func run(paths []string) error {
	ctx := context.Background()

	rootLogger := logging.New(os.Stderr, logiface.LevelInformational)

	var wg sync.WaitGroup
	errs := make([]error, len(paths))

	for i, path := range paths {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		wg.Add(1)
		go func(pid uint64, path string, wasmBytes []byte) {
			defer wg.Done()
			if err := hostGuest(ctx, rootLogger, pid, path, wasmBytes); err != nil {
				errs[pid-1] = fmt.Errorf("%s: %w", path, err)
			}
		}(uint64(i+1), path, wasmBytes)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// hostGuest runs one guest to completion. Each guest gets its own wazero
// runtime: the ignition host module closes over that guest's Process, so
// the binding cannot be shared, and a trap that poisons one runtime must
// not take down its siblings.
func hostGuest(ctx context.Context, rootLogger *logging.Logger, pid uint64, path string, wasmBytes []byte) error {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("instantiating wasi_snapshot_preview1: %w", err)
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("compiling: %w", err)
	}

	proc, err := ignition.NewProcess(pid, rootLogger)
	if err != nil {
		return fmt.Errorf("creating process: %w", err)
	}
	defer proc.Close()

	modCfg := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithName(fmt.Sprintf("%s#%d", path, pid))

	inst, err := abi.NewInstance(ctx, r, compiled, proc, modCfg)
	if err != nil {
		return fmt.Errorf("instantiating: %w", err)
	}
	defer inst.Close()

	return ignition.Run(proc, inst)
}
