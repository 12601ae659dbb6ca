package rpcfabric

import (
	"context"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/stats"

	"github.com/mvanbem/ignition/internal/ignition"
)

// Client instruments calls against one guest process's RPC client slab
// with grpc stats.Handler events. A nil Handler makes every
// instrumentation call a no-op, exactly like passing no grpc.StatsHandler
// dial option.
type Client struct {
	Process *ignition.Process
	Handler stats.Handler
}

// clientHelper builds the stats helper for a call, tagging the context and
// reporting any outgoing metadata as an OutHeader event, mirroring
// inprocgrpc's propagation of metadata.FromOutgoingContext.
func (c *Client) clientHelper(ctx context.Context, method string) (context.Context, *statsHandlerHelper) {
	if c.Handler == nil {
		return ctx, nil
	}
	sh := &statsHandlerHelper{handler: c.Handler, isClient: true}
	ctx = sh.tagRPC(ctx, method)
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		sh.outHeader(ctx, md)
	}
	return ctx, sh
}

// Request issues one RPC request on behalf of the guest's RpcClient,
// instrumenting it as a unary call: Begin before, End after, wrapping
// internal/ignition errors into grpc status errors.
func (c *Client) Request(ctx context.Context, rpcClient uint32, methodName string) (requestIO, responseIO ignition.IoHandle, err error) {
	ctx, sh := c.clientHelper(ctx, methodName)
	sh.begin(ctx)
	requestIO, responseIO, err = c.Process.RpcClientRequest(rpcClient, methodName)
	sh.end(ctx, err)
	if err != nil {
		return 0, 0, toStatus(err)
	}
	return requestIO, responseIO, nil
}

// WaitHealthy instruments Process.RpcClientWaitHealthy the same way, mostly
// so a stats.Handler observing a host can tell apart connection-establishment
// latency from request latency.
func (c *Client) WaitHealthy(ctx context.Context, taskID ignition.TaskID, rpcClient uint32) (bool, error) {
	ctx, sh := c.clientHelper(ctx, "wait_healthy")
	sh.begin(ctx)
	ready, err := c.Process.RpcClientWaitHealthy(taskID, rpcClient)
	sh.end(ctx, err)
	if err != nil {
		return false, toStatus(err)
	}
	return ready, nil
}
