//go:build wasip1

// Command echoclient waits for EchoService to become healthy, then issues
// five concurrent echo requests and asserts each response matches. Pair it
// with echoserver.
package main

import (
	"bytes"
	"sync/atomic"

	"github.com/mvanbem/ignition/guest/api"
	"github.com/mvanbem/ignition/guest/ignition"
	"github.com/mvanbem/ignition/guest/rpc"
)

var messages = [][]byte{
	[]byte("abc123"),
	[]byte("def456"),
	[]byte("ghi789"),
	[]byte("hello, world"),
	[]byte("asdfjkl;"),
}

func init() {
	ignition.Init(func() {
		ignition.Executor.Spawn(func() {
			client := rpc.NewClient(ignition.Reactor, "EchoService")
			client.WaitHealthy()

			var completed atomic.Int32
			for _, msg := range messages {
				msg := msg
				ignition.Executor.Spawn(func() {
					req := client.Request("echo")
					req.WriteAll(msg)
					req.Close()

					got := req.Response().ReadToEnd()
					req.Response().Close()

					if !bytes.Equal(got, msg) {
						api.Log("echo mismatch: got " + string(got) + " want " + string(msg))
						api.Abort()
					}

					if completed.Add(1) == int32(len(messages)) {
						api.Shutdown()
					}
				})
			}
		})
	})
}

func main() {}
