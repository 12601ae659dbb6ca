//go:build wasip1

package rpc

import (
	"unsafe"

	"github.com/mvanbem/ignition/guest/executor"
	"github.com/mvanbem/ignition/guest/io"
	"github.com/mvanbem/ignition/guest/reactor"
	"github.com/mvanbem/ignition/guest/sys"
)

// Handler processes one incoming request: req is the request stream to
// read to EOF, resp is the response stream to write and close.
type Handler func(req io.ReadHandle, resp io.WriteHandle)

type methodBuilder struct {
	name    string
	handler Handler
}

// ServerBuilder accumulates named method handlers before publishing a
// service.
type ServerBuilder struct {
	r       *reactor.Reactor
	name    string
	methods []methodBuilder
}

// NewServerBuilder starts building a server that will be published under
// serviceName.
func NewServerBuilder(r *reactor.Reactor, serviceName string) *ServerBuilder {
	return &ServerBuilder{r: r, name: serviceName}
}

// AddHandler registers a method, returning the builder for chaining.
func (b *ServerBuilder) AddHandler(methodName string, h Handler) *ServerBuilder {
	b.methods = append(b.methods, methodBuilder{name: methodName, handler: h})
	return b
}

// Build publishes the service (rpc_server_create) and spawns the request
// loop that drains rpc_server_get_request onto ex. The inner loop re-polls
// one task_id until the host reports pending; the outer loop then awaits
// that wake and registers a fresh task_id for the next round.
func (b *ServerBuilder) Build(ex *executor.Executor) {
	methods := make([]sys.RpcServerMethod, len(b.methods))
	for i, m := range b.methods {
		methods[i] = sys.RpcServerMethod{NamePtr: stringPtr(m.name), NameLen: uint32(len(m.name))}
	}
	var methodsPtr unsafe.Pointer
	if len(methods) > 0 {
		methodsPtr = unsafe.Pointer(&methods[0])
	}
	params := sys.RpcServerParams{
		ServiceNamePtr: stringPtr(b.name),
		ServiceNameLen: uint32(len(b.name)),
		MethodsPtr:     methodsPtr,
		MethodsLen:     uint32(len(methods)),
	}
	rpcServer := sys.RpcServerCreate(unsafe.Pointer(&params))

	handlers := make([]Handler, len(b.methods))
	for i, m := range b.methods {
		handlers[i] = m.handler
	}

	r := b.r
	ex.Spawn(func() {
		for {
			id, ch := r.NewTask()
			for {
				var meta sys.RpcMethodMetadata
				if sys.RpcServerGetRequest(uint32(id), rpcServer, unsafe.Pointer(&meta)) != 0 {
					break
				}
				req := io.NewReadHandle(r, meta.RequestIO)
				resp := io.NewWriteHandle(r, meta.ResponseIO)
				handlers[meta.MethodIndex](req, resp)
			}
			r.Await(id, ch)
		}
	})
}
