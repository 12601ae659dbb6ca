package rpcfabric

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"

	"github.com/mvanbem/ignition/internal/ignition"
	"github.com/mvanbem/ignition/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logiface.LevelTrace)
}

func newProcess(t *testing.T, pid uint64) *ignition.Process {
	t.Helper()
	p, err := ignition.NewProcess(pid, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// recordingHandler captures every stats event HandleRPC receives, so tests
// can assert the wrapper emits the same Begin/End bracketing a real gRPC
// stats handler would observe.
type recordingHandler struct {
	mu      sync.Mutex
	methods []string
	events  []stats.RPCStats
}

func (h *recordingHandler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	h.mu.Lock()
	h.methods = append(h.methods, info.FullMethodName)
	h.mu.Unlock()
	return ctx
}

func (h *recordingHandler) HandleRPC(ctx context.Context, s stats.RPCStats) {
	h.mu.Lock()
	h.events = append(h.events, s)
	h.mu.Unlock()
}

func (h *recordingHandler) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	return ctx
}

func (h *recordingHandler) HandleConn(ctx context.Context, s stats.ConnStats) {}

// roundTrip drives one message across a pipe pair: the reader pends, the
// write completes against it, and the reader's wake is popped and checked.
func roundTrip(t *testing.T, readerProc *ignition.Process, readerIO ignition.IoHandle, readTask ignition.TaskID, writerProc *ignition.Process, writerIO ignition.IoHandle, writeTask ignition.TaskID, message []byte) []byte {
	t.Helper()

	buf := make([]byte, len(message)+16)
	_, ready, err := readerProc.IoRead(readTask, readerIO, buf)
	require.NoError(t, err)
	require.False(t, ready)

	n, ready, err := writerProc.IoWrite(writeTask, writerIO, message)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, uint32(len(message)), n)

	taskID, param, ok := readerProc.PopWake()
	require.True(t, ok)
	require.Equal(t, readTask, taskID)
	require.Equal(t, uint32(len(message)), param)

	return buf[:param]
}

// TestEchoThroughFabric drives an echo service through the instrumented
// client and server wrappers: five messages, each opened as its own
// request, written, echoed back, and compared.
func TestEchoThroughFabric(t *testing.T) {
	ctx := context.Background()
	clientProc := newProcess(t, 40)
	serverProc := newProcess(t, 41)

	rpcServer := serverProc.RpcServerCreate(ignition.RpcServerParams{
		ServiceName: "EchoFabric",
		MethodNames: []string{"echo"},
	})
	rpcClient := clientProc.RpcClientCreate("EchoFabric")

	client := &Client{Process: clientProc}
	server := &Server{Process: serverProc}

	ready, err := client.WaitHealthy(ctx, 1, rpcClient)
	require.NoError(t, err)
	require.True(t, ready)

	messages := [][]byte{
		[]byte("abc123"),
		[]byte("def456"),
		[]byte("ghi789"),
		[]byte("hello, world"),
		[]byte("asdfjkl;"),
	}

	task := ignition.TaskID(100)
	nextTask := func() ignition.TaskID { task++; return task }

	for _, message := range messages {
		requestIO, responseIO, err := client.Request(ctx, rpcClient, "echo")
		require.NoError(t, err)

		meta, ready, err := server.GetRequest(ctx, nextTask(), rpcServer)
		require.NoError(t, err)
		require.True(t, ready)
		require.Zero(t, meta.MethodIndex)

		got := roundTrip(t, serverProc, meta.RequestIO, nextTask(), clientProc, requestIO, nextTask(), message)
		require.Equal(t, message, got)
		require.NoError(t, clientProc.IoClose(requestIO))

		echoed := roundTrip(t, clientProc, responseIO, nextTask(), serverProc, meta.ResponseIO, nextTask(), got)
		require.Equal(t, message, echoed)
		require.NoError(t, serverProc.IoClose(meta.ResponseIO))

		// the handler observes EOF on the request stream after the close.
		n, ready, err := serverProc.IoRead(nextTask(), meta.RequestIO, make([]byte, 8))
		require.NoError(t, err)
		require.True(t, ready)
		require.Zero(t, n)
	}
}

// TestWaitHealthyBeforeServer: the client's wait pends, a later
// rpc_server_create wakes it, and a subsequent request succeeds.
func TestWaitHealthyBeforeServer(t *testing.T) {
	ctx := context.Background()
	clientProc := newProcess(t, 50)
	serverProc := newProcess(t, 51)

	rpcClient := clientProc.RpcClientCreate("LateFabric")
	client := &Client{Process: clientProc}

	ready, err := client.WaitHealthy(ctx, 1, rpcClient)
	require.NoError(t, err)
	require.False(t, ready)

	serverProc.RpcServerCreate(ignition.RpcServerParams{
		ServiceName: "LateFabric",
		MethodNames: []string{"poke"},
	})

	taskID, param, ok := clientProc.PopWake()
	require.True(t, ok)
	require.Equal(t, ignition.TaskID(1), taskID)
	require.Zero(t, param)

	_, _, err = client.Request(ctx, rpcClient, "poke")
	require.NoError(t, err)
}

// TestRequestsDrainedExactlyOnce: three queued requests are each observed
// by exactly one GetRequest, and a fourth poll pends.
func TestRequestsDrainedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	clientProc := newProcess(t, 60)
	serverProc := newProcess(t, 61)

	rpcServer := serverProc.RpcServerCreate(ignition.RpcServerParams{
		ServiceName: "QueueFabric",
		MethodNames: []string{"m"},
	})
	rpcClient := clientProc.RpcClientCreate("QueueFabric")

	client := &Client{Process: clientProc}
	server := &Server{Process: serverProc}

	const n = 3
	for i := 0; i < n; i++ {
		_, _, err := client.Request(ctx, rpcClient, "m")
		require.NoError(t, err)
	}

	seen := map[ignition.IoHandle]bool{}
	for i := 0; i < n; i++ {
		meta, ready, err := server.GetRequest(ctx, ignition.TaskID(10+i), rpcServer)
		require.NoError(t, err)
		require.True(t, ready)
		require.False(t, seen[meta.RequestIO])
		seen[meta.RequestIO] = true
	}

	_, ready, err := server.GetRequest(ctx, 20, rpcServer)
	require.NoError(t, err)
	require.False(t, ready)
}

// TestStatsHandlerObservesRequests checks the Begin/End bracketing and
// method tagging against a recording handler, on both the client and
// server side of one request.
func TestStatsHandlerObservesRequests(t *testing.T) {
	ctx := context.Background()
	clientProc := newProcess(t, 70)
	serverProc := newProcess(t, 71)

	rpcServer := serverProc.RpcServerCreate(ignition.RpcServerParams{
		ServiceName: "StatsFabric",
		MethodNames: []string{"observed"},
	})
	rpcClient := clientProc.RpcClientCreate("StatsFabric")

	clientStats := &recordingHandler{}
	serverStats := &recordingHandler{}
	client := &Client{Process: clientProc, Handler: clientStats}
	server := &Server{Process: serverProc, Handler: serverStats}

	// a pending GetRequest emits Begin but holds End until a poll produces
	// a request, so idle time is attributed to the call that waited.
	_, ready, err := server.GetRequest(ctx, 1, rpcServer)
	require.NoError(t, err)
	require.False(t, ready)
	require.Len(t, serverStats.events, 1)
	_, ok := serverStats.events[0].(*stats.Begin)
	require.True(t, ok)

	_, _, err = client.Request(ctx, rpcClient, "observed")
	require.NoError(t, err)

	require.Equal(t, []string{"observed"}, clientStats.methods)
	require.Len(t, clientStats.events, 2)
	begin, ok := clientStats.events[0].(*stats.Begin)
	require.True(t, ok)
	require.True(t, begin.Client)
	end, ok := clientStats.events[1].(*stats.End)
	require.True(t, ok)
	require.True(t, end.Client)
	require.NoError(t, end.Error)

	// the queued request makes the next poll ready, closing its bracket.
	_, ready, err = server.GetRequest(ctx, 2, rpcServer)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, []string{"get_request", "get_request"}, serverStats.methods)
	require.Len(t, serverStats.events, 3)
	endEvent, ok := serverStats.events[2].(*stats.End)
	require.True(t, ok)
	require.False(t, endEvent.Client)
}

// TestTrapErrorMapsToInvalidArgument checks the status translation: an ABI
// violation (a bad rpc_client handle) surfaces as codes.InvalidArgument,
// the same class a malformed request gets from a real gRPC server.
func TestTrapErrorMapsToInvalidArgument(t *testing.T) {
	ctx := context.Background()
	clientProc := newProcess(t, 80)
	client := &Client{Process: clientProc}

	_, _, err := client.Request(ctx, 12345, "nope")
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
