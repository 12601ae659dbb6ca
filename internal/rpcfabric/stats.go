// Package rpcfabric wraps internal/ignition's RPC client/server calls with
// grpc-shaped instrumentation: stats.Handler events and codes/status errors,
// so that an ignition host can be monitored with the same tooling used for
// regular gRPC services, without internal/ignition itself depending on
// grpc/stats or grpc/status.
//
// The RPC state itself (client/server slabs, request queues) lives in
// internal/ignition, behind the same mutex as the I/O object slab; this
// package only wraps the calls.
package rpcfabric

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"

	"github.com/mvanbem/ignition/internal/ignition"
)

// statsHandlerHelper reports RPC lifecycle events to a stats.Handler,
// adapted from inprocgrpc's helper of the same name: tagRPC once per call,
// begin/end bracket it, nil handler makes every method a no-op.
type statsHandlerHelper struct {
	handler  stats.Handler
	isClient bool
}

func (sh *statsHandlerHelper) tagRPC(ctx context.Context, method string) context.Context {
	if sh == nil {
		return ctx
	}
	return sh.handler.TagRPC(ctx, &stats.RPCTagInfo{FullMethodName: method})
}

func (sh *statsHandlerHelper) begin(ctx context.Context) {
	if sh == nil {
		return
	}
	sh.handler.HandleRPC(ctx, &stats.Begin{
		Client:    sh.isClient,
		BeginTime: time.Now(),
	})
}

func (sh *statsHandlerHelper) end(ctx context.Context, err error) {
	if sh == nil {
		return
	}
	sh.handler.HandleRPC(ctx, &stats.End{
		Client:  sh.isClient,
		EndTime: time.Now(),
		Error:   err,
	})
}

func (sh *statsHandlerHelper) outHeader(ctx context.Context, md metadata.MD) {
	if sh == nil {
		return
	}
	sh.handler.HandleRPC(ctx, &stats.OutHeader{
		Client: sh.isClient,
		Header: md,
	})
}

// toStatus converts an internal/ignition error into a grpc status error, so
// callers observing this package see the same error shape a real gRPC client
// would. A TrapError (guest misuse, bad handle, etc.) maps to InvalidArgument;
// anything else is Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var trap *ignition.TrapError
	if errors.As(err, &trap) {
		return status.Error(codes.InvalidArgument, trap.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
