//go:build wasip1

// Command echoserver registers EchoService with one method, echo, that
// reads its request to EOF and writes the same bytes back. Pair it with
// echoclient.
package main

import (
	"github.com/mvanbem/ignition/guest/ignition"
	"github.com/mvanbem/ignition/guest/io"
	"github.com/mvanbem/ignition/guest/rpc"
)

func init() {
	ignition.Init(func() {
		rpc.NewServerBuilder(ignition.Reactor, "EchoService").
			AddHandler("echo", func(req io.ReadHandle, resp io.WriteHandle) {
				defer resp.Close()
				defer req.Close()
				resp.WriteAll(req.ReadToEnd())
			}).
			Build(ignition.Executor)
	})
}

func main() {}
