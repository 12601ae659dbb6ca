package ignition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// transfer moves a full message across one pipe between two processes,
// driving the rendezvous manually: the reader pends first, the write
// completes it synchronously, and the reader's completion wake is popped
// and checked. Returns the bytes the reader observed.
func transfer(t *testing.T, readerProc *Process, readerIO IoHandle, readTask TaskID, writerProc *Process, writerIO IoHandle, writeTask TaskID, message []byte) []byte {
	t.Helper()

	buf := make([]byte, len(message)+16)
	n, ready, err := readerProc.IoRead(readTask, readerIO, buf)
	require.NoError(t, err)
	require.False(t, ready, "read against an idle pipe pends")
	require.Zero(t, n)

	n, ready, err = writerProc.IoWrite(writeTask, writerIO, message)
	require.NoError(t, err)
	require.True(t, ready, "write completes against the pending read")
	require.Equal(t, uint32(len(message)), n)

	taskID, param, ok := readerProc.PopWake()
	require.True(t, ok)
	require.Equal(t, readTask, taskID)
	require.Equal(t, uint32(len(message)), param)

	return buf[:param]
}

// requireEOF closes writerIO and checks the reader observes a synchronous
// zero-byte completion, per the closed-peer contract.
func requireEOF(t *testing.T, readerProc *Process, readerIO IoHandle, readTask TaskID, writerProc *Process, writerIO IoHandle) {
	t.Helper()
	require.NoError(t, writerProc.IoClose(writerIO))
	n, ready, err := readerProc.IoRead(readTask, readerIO, make([]byte, 16))
	require.NoError(t, err)
	require.True(t, ready)
	require.Zero(t, n)
}

// TestClientBeforeServer: a client's wait_healthy, issued before any
// server registers, completes once a server later calls
// rpc_server_create. The service name is unique to this
// test: the registry is runtime-global, so a name shared across tests
// would let PickServer select a server registered by a different test.
func TestClientBeforeServer(t *testing.T) {
	client, err := NewProcess(10, testLogger())
	require.NoError(t, err)
	defer client.Close()
	server, err := NewProcess(11, testLogger())
	require.NoError(t, err)
	defer server.Close()

	rpcClient := client.RpcClientCreate("ClientBeforeServer")

	ready, err := client.RpcClientWaitHealthy(1, rpcClient)
	require.NoError(t, err)
	require.False(t, ready, "no server registered yet")

	server.RpcServerCreate(RpcServerParams{ServiceName: "ClientBeforeServer", MethodNames: []string{"echo"}})

	// the registry enqueued a wake for the waiting client task.
	taskID, param, ok := client.PopWake()
	require.True(t, ok)
	require.Equal(t, TaskID(1), taskID)
	require.Zero(t, param)

	requestIO, responseIO, err := client.RpcClientRequest(rpcClient, "echo")
	require.NoError(t, err)
	require.NotZero(t, requestIO+1) // handles are valid (0 is a legitimate handle too)
	_ = responseIO
}

// TestEchoRPCSingleRoundTrip: one request written, echoed back, and read
// to EOF, across two processes.
func TestEchoRPCSingleRoundTrip(t *testing.T) {
	client, err := NewProcess(20, testLogger())
	require.NoError(t, err)
	defer client.Close()
	server, err := NewProcess(21, testLogger())
	require.NoError(t, err)
	defer server.Close()

	rpcServer := server.RpcServerCreate(RpcServerParams{ServiceName: "EchoRoundTrip", MethodNames: []string{"echo"}})
	rpcClient := client.RpcClientCreate("EchoRoundTrip")

	ready, err := client.RpcClientWaitHealthy(1, rpcClient)
	require.NoError(t, err)
	require.True(t, ready)

	clientRequestIO, clientResponseIO, err := client.RpcClientRequest(rpcClient, "echo")
	require.NoError(t, err)

	meta, ready, err := server.RpcServerGetRequest(2, rpcServer)
	require.NoError(t, err)
	require.True(t, ready)
	require.Zero(t, meta.MethodIndex)

	message := []byte("hello, world")

	got := transfer(t, server, meta.RequestIO, 5, client, clientRequestIO, 3, message)
	require.Equal(t, message, got)
	requireEOF(t, server, meta.RequestIO, 6, client, clientRequestIO)

	echoed := transfer(t, client, clientResponseIO, 7, server, meta.ResponseIO, 4, got)
	require.Equal(t, message, echoed)
	requireEOF(t, client, clientResponseIO, 8, server, meta.ResponseIO)
}

// TestConcurrentRequestsSeenExactlyOnce: three requests queued before the
// server drains them are each seen exactly once by get_request.
func TestConcurrentRequestsSeenExactlyOnce(t *testing.T) {
	client, err := NewProcess(30, testLogger())
	require.NoError(t, err)
	defer client.Close()
	server, err := NewProcess(31, testLogger())
	require.NoError(t, err)
	defer server.Close()

	rpcServer := server.RpcServerCreate(RpcServerParams{ServiceName: "Q", MethodNames: []string{"m"}})
	rpcClient := client.RpcClientCreate("Q")
	ready, err := client.RpcClientWaitHealthy(1, rpcClient)
	require.NoError(t, err)
	require.True(t, ready)

	const n = 3
	var requestIOs [n]IoHandle
	for i := range requestIOs {
		reqIO, _, err := client.RpcClientRequest(rpcClient, "m")
		require.NoError(t, err)
		requestIOs[i] = reqIO
	}

	seen := map[IoHandle]bool{}
	for i := 0; i < n; i++ {
		meta, ready, err := server.RpcServerGetRequest(TaskID(100+i), rpcServer)
		require.NoError(t, err)
		require.True(t, ready)
		require.False(t, seen[meta.RequestIO], "each request observed exactly once")
		seen[meta.RequestIO] = true
	}

	_, ready, err = server.RpcServerGetRequest(200, rpcServer)
	require.NoError(t, err)
	require.False(t, ready, "queue drained, next get_request is pending")
}
