//go:build wasip1

// Package sys declares the raw ignition.* import namespace, one
// //go:wasmimport per ABI function. Nothing here is safe or convenient to
// call directly; bounds-checked, ergonomic wrappers live in guest/api,
// guest/io, and guest/rpc.
package sys

import "unsafe"

//go:wasmimport ignition shutdown
func Shutdown()

//go:wasmimport ignition abort
func Abort()

//go:wasmimport ignition log
func Log(ptr unsafe.Pointer, length uint32)

//go:wasmimport ignition impulse
func Impulse(taskID uint32)

//go:wasmimport ignition sleep
func Sleep(taskID uint32, microseconds uint32)

//go:wasmimport ignition monotonic_time
func MonotonicTime() uint64

//go:wasmimport ignition io_read
func IoRead(taskID uint32, io uint32, ptr unsafe.Pointer, length uint32, nPtr *uint32) uint32

//go:wasmimport ignition io_write
func IoWrite(taskID uint32, io uint32, ptr unsafe.Pointer, length uint32, nPtr *uint32) uint32

//go:wasmimport ignition io_close
func IoClose(io uint32)

//go:wasmimport ignition rpc_client_create
func RpcClientCreate(namePtr unsafe.Pointer, nameLen uint32) uint32

//go:wasmimport ignition rpc_client_wait_healthy
func RpcClientWaitHealthy(taskID uint32, rpcClient uint32) uint32

//go:wasmimport ignition rpc_client_request
func RpcClientRequest(rpcClient uint32, methodPtr unsafe.Pointer, methodLen uint32, requestIOOut, responseIOOut *uint32) uint32

// RpcServerMethod is the wire layout of one entry in the method list
// referenced by RpcServerParams: a name pointer and length, each a u32.
type RpcServerMethod struct {
	NamePtr unsafe.Pointer
	NameLen uint32
}

// RpcServerParams is the packed little-endian layout the host reads at
// rpc_server_create: a service name and an ordered method list. The host
// copies both out; the guest may free its buffers once the call returns.
type RpcServerParams struct {
	ServiceNamePtr unsafe.Pointer
	ServiceNameLen uint32
	MethodsPtr     unsafe.Pointer
	MethodsLen     uint32
}

//go:wasmimport ignition rpc_server_create
func RpcServerCreate(params unsafe.Pointer) uint32

// RpcMethodMetadata is the wire layout rpc_server_get_request fills in:
// the method to invoke and the I/O handles for its request and response
// streams.
type RpcMethodMetadata struct {
	MethodIndex uint32
	RequestIO   uint32
	ResponseIO  uint32
}

//go:wasmimport ignition rpc_server_get_request
func RpcServerGetRequest(taskID uint32, rpcServer uint32, metadataOut unsafe.Pointer) uint32
