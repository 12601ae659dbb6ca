// Package abi binds the ignition.* import namespace to a *ignition.Process
// using wazero's GoModuleFunction host function style with its stack-based
// calling convention. Every function here runs on the
// single goroutine that owns the guest instance; none of them block except
// indirectly through the ignition.Process methods they call, which never
// block the calling goroutine (they enqueue wakes and return immediately).
//
// ABI violations - a bad handle, a malformed pointer, invalid UTF-8, an
// unregistered RPC method - panic with an *ignition.TrapError. wazero
// recovers a panicking host function and turns it into the error returned
// by the exported wake function's Call, which is exactly the *HostError
// wrapping (*ignition.Run wants); see Instance.Wake in instance.go.
package abi

import (
	"context"
	"encoding/binary"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mvanbem/ignition/internal/ignition"
)

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// ModuleName is the import namespace every guest binds against.
const ModuleName = "ignition"

// Bind registers every ignition.* import function against p, instantiates
// the resulting host module in r, and returns it.
func Bind(ctx context.Context, r wazero.Runtime, p *ignition.Process) (api.Module, error) {
	h := &host{p: p}
	return r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.shutdown), []api.ValueType{}, []api.ValueType{}).
		Export("shutdown").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.abort), []api.ValueType{}, []api.ValueType{}).
		Export("abort").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.log), []api.ValueType{i32, i32}, []api.ValueType{}).
		WithParameterNames("ptr", "len").
		Export("log").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.impulse), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("task_id").
		Export("impulse").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.sleep), []api.ValueType{i32, i32}, []api.ValueType{}).
		WithParameterNames("task_id", "microseconds").
		Export("sleep").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.monotonicTime), []api.ValueType{}, []api.ValueType{i64}).
		Export("monotonic_time").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.ioRead), []api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("task_id", "io", "ptr", "len", "n_ptr").
		Export("io_read").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.ioWrite), []api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("task_id", "io", "ptr", "len", "n_ptr").
		Export("io_write").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.ioClose), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("io").
		Export("io_close").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.rpcClientCreate), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		WithParameterNames("service_name_ptr", "service_name_len").
		Export("rpc_client_create").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.rpcClientWaitHealthy), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		WithParameterNames("task_id", "rpc_client").
		Export("rpc_client_wait_healthy").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.rpcClientRequest), []api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("rpc_client", "method_name_ptr", "method_name_len", "request_io_out", "response_io_out").
		Export("rpc_client_request").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.rpcServerCreate), []api.ValueType{i32}, []api.ValueType{i32}).
		WithParameterNames("params_ptr").
		Export("rpc_server_create").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.rpcServerGetRequest), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("task_id", "rpc_server", "metadata_out").
		Export("rpc_server_get_request").
		Instantiate(ctx)
}

// host holds the one *ignition.Process every binding closes over.
type host struct {
	p *ignition.Process
}

func (h *host) shutdown(ctx context.Context, mod api.Module, stack []uint64) {
	h.p.Shutdown()
}

// abort never returns to the guest; it traps immediately.
func (h *host) abort(ctx context.Context, mod api.Module, stack []uint64) {
	panic(ignition.NewTrapError("guest called abort"))
}

// logRateLimiter bounds how often one process's log() calls reach the sink:
// a guest stuck in a tight retry loop logging on every iteration must not be
// able to flood it. Categorized per pid so one noisy guest never throttles
// another.
var logRateLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 50,
	time.Minute: 1000,
})

func (h *host) log(ctx context.Context, mod api.Module, stack []uint64) {
	ptr := uint32(stack[0])
	length := uint32(stack[1])
	message := requireReadString(mod.Memory(), "log message", ptr, length)
	if _, ok := logRateLimiter.Allow(h.p.PID); !ok {
		return
	}
	h.p.Logger.Info().Str("message", message).Log("guest log")
}

func (h *host) impulse(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	h.p.Impulse(taskID)
}

func (h *host) sleep(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	microseconds := uint32(stack[1])
	h.p.Sleep(taskID, microsecondsToDuration(microseconds))
}

func (h *host) monotonicTime(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = uint64(monotonicMicros())
}

func (h *host) ioRead(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	handle := ignition.IoHandle(uint32(stack[1]))
	ptr := uint32(stack[2])
	length := uint32(stack[3])
	nPtr := uint32(stack[4])

	mem := mod.Memory()
	dst := requireRead(mem, "io_read buffer", ptr, length)

	n, ready, err := h.p.IoRead(taskID, handle, dst)
	if err != nil {
		panic(err)
	}
	if !ready {
		stack[0] = 1
		return
	}
	requireWriteUint32(mem, "io_read n_ptr", nPtr, n)
	stack[0] = 0
}

func (h *host) ioWrite(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	handle := ignition.IoHandle(uint32(stack[1]))
	ptr := uint32(stack[2])
	length := uint32(stack[3])
	nPtr := uint32(stack[4])

	mem := mod.Memory()
	src := requireRead(mem, "io_write buffer", ptr, length)

	n, ready, err := h.p.IoWrite(taskID, handle, src)
	if err != nil {
		panic(err)
	}
	if !ready {
		stack[0] = 1
		return
	}
	requireWriteUint32(mem, "io_write n_ptr", nPtr, n)
	stack[0] = 0
}

func (h *host) ioClose(ctx context.Context, mod api.Module, stack []uint64) {
	handle := ignition.IoHandle(uint32(stack[0]))
	if err := h.p.IoClose(handle); err != nil {
		panic(err)
	}
}

func (h *host) rpcClientCreate(ctx context.Context, mod api.Module, stack []uint64) {
	ptr := uint32(stack[0])
	length := uint32(stack[1])
	serviceName := requireReadString(mod.Memory(), "rpc_client_create service_name", ptr, length)
	stack[0] = uint64(h.p.RpcClientCreate(serviceName))
}

func (h *host) rpcClientWaitHealthy(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	rpcClient := uint32(stack[1])

	ready, err := h.p.RpcClientWaitHealthy(taskID, rpcClient)
	if err != nil {
		panic(err)
	}
	if ready {
		stack[0] = 0
	} else {
		stack[0] = 1
	}
}

func (h *host) rpcClientRequest(ctx context.Context, mod api.Module, stack []uint64) {
	rpcClient := uint32(stack[0])
	methodPtr := uint32(stack[1])
	methodLen := uint32(stack[2])
	requestIOOut := uint32(stack[3])
	responseIOOut := uint32(stack[4])

	mem := mod.Memory()
	methodName := requireReadString(mem, "rpc_client_request method_name", methodPtr, methodLen)

	requestIO, responseIO, err := h.p.RpcClientRequest(rpcClient, methodName)
	if err != nil {
		panic(err)
	}

	requireWriteUint32(mem, "rpc_client_request request_io_out", requestIOOut, uint32(requestIO))
	requireWriteUint32(mem, "rpc_client_request response_io_out", responseIOOut, uint32(responseIO))
	stack[0] = 0
}

// wireRpcServerParams mirrors guest/sys.RpcServerParams's packed
// little-endian layout: service_name_ptr, service_name_len, methods_ptr,
// methods_len, each a u32, 16 bytes total.
const wireRpcServerParamsSize = 16

// wireRpcServerMethod mirrors guest/sys.RpcServerMethod: name_ptr, name_len,
// each a u32, 8 bytes total.
const wireRpcServerMethodSize = 8

func (h *host) rpcServerCreate(ctx context.Context, mod api.Module, stack []uint64) {
	paramsPtr := uint32(stack[0])

	mem := mod.Memory()
	raw := requireRead(mem, "rpc_server_create params", paramsPtr, wireRpcServerParamsSize)

	serviceNamePtr := binary.LittleEndian.Uint32(raw[0:4])
	serviceNameLen := binary.LittleEndian.Uint32(raw[4:8])
	methodsPtr := binary.LittleEndian.Uint32(raw[8:12])
	methodsLen := binary.LittleEndian.Uint32(raw[12:16])

	serviceName := requireReadString(mem, "rpc_server_create service_name", serviceNamePtr, serviceNameLen)

	var methodNames []string
	if methodsLen > 0 {
		methodsRaw := requireRead(mem, "rpc_server_create methods", methodsPtr, methodsLen*wireRpcServerMethodSize)
		methodNames = make([]string, methodsLen)
		for i := uint32(0); i < methodsLen; i++ {
			entry := methodsRaw[i*wireRpcServerMethodSize : (i+1)*wireRpcServerMethodSize]
			namePtr := binary.LittleEndian.Uint32(entry[0:4])
			nameLen := binary.LittleEndian.Uint32(entry[4:8])
			methodNames[i] = requireReadString(mem, "rpc_server_create method name", namePtr, nameLen)
		}
	}

	handle := h.p.RpcServerCreate(ignition.RpcServerParams{
		ServiceName: serviceName,
		MethodNames: methodNames,
	})
	stack[0] = uint64(handle)
}

// wireRpcMethodMetadata mirrors guest/sys.RpcMethodMetadata: method_index,
// request_io, response_io, each a u32, 12 bytes total.
const wireRpcMethodMetadataSize = 12

func (h *host) rpcServerGetRequest(ctx context.Context, mod api.Module, stack []uint64) {
	taskID := ignition.TaskID(uint32(stack[0]))
	rpcServer := uint32(stack[1])
	metadataOut := uint32(stack[2])

	meta, ready, err := h.p.RpcServerGetRequest(taskID, rpcServer)
	if err != nil {
		panic(err)
	}
	if !ready {
		stack[0] = 1
		return
	}

	mem := mod.Memory()
	var raw [wireRpcMethodMetadataSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], meta.MethodIndex)
	binary.LittleEndian.PutUint32(raw[4:8], uint32(meta.RequestIO))
	binary.LittleEndian.PutUint32(raw[8:12], uint32(meta.ResponseIO))
	if !mem.Write(metadataOut, raw[:]) {
		panic(ignition.NewTrapError("out of bounds memory access writing rpc_server_get_request metadata_out (offset=%d)", metadataOut))
	}
	stack[0] = 0
}
