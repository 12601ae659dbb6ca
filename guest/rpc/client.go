//go:build wasip1

// Package rpc is the guest-facing RPC surface: clients that discover a
// service by name and open byte-stream requests against it, and servers
// that publish named methods and drain incoming requests.
package rpc

import (
	"unsafe"

	"github.com/mvanbem/ignition/guest/io"
	"github.com/mvanbem/ignition/guest/reactor"
	"github.com/mvanbem/ignition/guest/sys"
)

func stringPtr(s string) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.StringData(s))
}

// Client is a guest-side handle to a named service.
type Client struct {
	r         *reactor.Reactor
	rpcClient uint32
}

// NewClient creates a client for serviceName.
func NewClient(r *reactor.Reactor, serviceName string) Client {
	handle := sys.RpcClientCreate(stringPtr(serviceName), uint32(len(serviceName)))
	return Client{r: r, rpcClient: handle}
}

// WaitHealthy blocks until at least one server is registered for this
// client's service name.
func (c Client) WaitHealthy() {
	id, ch := c.r.NewTask()
	if sys.RpcClientWaitHealthy(uint32(id), c.rpcClient) == 0 {
		c.r.DropUnused(id)
		return
	}
	c.r.Await(id, ch)
}

// Request is the pair of I/O handles returned by rpc_client_request: the
// write side of the request stream and the read side of the response
// stream.
type Request struct {
	io.WriteHandle
	response io.ReadHandle
}

// Response returns the read handle for this request's response stream.
func (req Request) Response() io.ReadHandle { return req.response }

// Request opens a new request for methodName. If the server has no such
// method registered, or none is reachable, the host traps and this guest
// is terminated; both are contract violations, expected to have been ruled
// out already by a preceding WaitHealthy.
func (c Client) Request(methodName string) Request {
	var requestIO, responseIO uint32
	if sys.RpcClientRequest(c.rpcClient, stringPtr(methodName), uint32(len(methodName)), &requestIO, &responseIO) != 0 {
		panic("rpc: rpc_client_request failed")
	}
	return Request{
		WriteHandle: io.NewWriteHandle(c.r, requestIO),
		response:    io.NewReadHandle(c.r, responseIO),
	}
}
