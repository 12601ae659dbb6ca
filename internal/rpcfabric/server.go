package rpcfabric

import (
	"context"

	"google.golang.org/grpc/stats"

	"github.com/mvanbem/ignition/internal/ignition"
)

// Server instruments calls against one guest process's RPC server slab,
// mirroring Client's instrumentation of the client side of the same fabric.
type Server struct {
	Process *ignition.Process
	Handler stats.Handler
}

func (s *Server) serverHelper(ctx context.Context, method string) (context.Context, *statsHandlerHelper) {
	if s.Handler == nil {
		return ctx, nil
	}
	sh := &statsHandlerHelper{handler: s.Handler, isClient: false}
	ctx = sh.tagRPC(ctx, method)
	return ctx, sh
}

// GetRequest instruments Process.RpcServerGetRequest: every poll emits
// Begin, but only a poll that returns (a request or an error) emits End; a
// pending poll's bracket stays open, so a stats.Handler can observe how long
// a server idled before get_request produced work.
func (s *Server) GetRequest(ctx context.Context, taskID ignition.TaskID, rpcServer uint32) (meta ignition.RpcMetadata, ready bool, err error) {
	ctx, sh := s.serverHelper(ctx, "get_request")
	sh.begin(ctx)
	meta, ready, err = s.Process.RpcServerGetRequest(taskID, rpcServer)
	if ready {
		sh.end(ctx, err)
	}
	if err != nil {
		return ignition.RpcMetadata{}, true, toStatus(err)
	}
	return meta, ready, nil
}
