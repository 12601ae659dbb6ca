package abi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mvanbem/ignition/internal/ignition"
)

// Instance adapts one compiled, instantiated guest module to the
// ignition.Guest interface the scheduler loop drives.
type Instance struct {
	ctx    context.Context
	module api.Module
	wake   api.Function
}

// NewInstance binds the ignition.* host module against p, instantiates the
// compiled guest module against it, and looks up its required wake export.
// ctx is retained for the lifetime of the instance: ignition.Guest's Wake
// method, driven by the scheduler loop in internal/ignition, carries no
// context parameter of its own.
func NewInstance(ctx context.Context, r wazero.Runtime, compiled wazero.CompiledModule, p *ignition.Process, cfg wazero.ModuleConfig) (*Instance, error) {
	if _, err := Bind(ctx, r, p); err != nil {
		return nil, fmt.Errorf("ignition: binding host module: %w", err)
	}

	// Guests are reactor-style modules: instantiation must not run a
	// _start that would proc_exit before the first wake, so auto-start is
	// disabled and the conventional _initialize export (which runs Go
	// package init functions, registering the guest's entry point) is
	// invoked explicitly when present.
	mod, err := r.InstantiateModule(ctx, compiled, cfg.WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("ignition: instantiating guest module: %w", err)
	}

	if initialize := mod.ExportedFunction("_initialize"); initialize != nil {
		if _, err := initialize.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("ignition: running guest _initialize: %w", err)
		}
	}

	wake := mod.ExportedFunction("wake")
	if wake == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("ignition: guest module does not export wake(task_id, param)")
	}

	return &Instance{ctx: ctx, module: mod, wake: wake}, nil
}

// Wake implements ignition.Guest by calling the guest's wake export. A
// panic raised by an ignition.* host function surfaces here as the error
// wazero's call engine recovers it into; Run wraps any non-nil error as a
// *HostError.
func (inst *Instance) Wake(taskID ignition.TaskID, param uint32) error {
	_, err := inst.wake.Call(inst.ctx, uint64(taskID), uint64(param))
	return err
}

// Close releases the guest instance's resources, using the context it was
// constructed with.
func (inst *Instance) Close() error {
	return inst.module.Close(inst.ctx)
}
