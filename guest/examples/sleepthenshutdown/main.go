//go:build wasip1

// Command sleepthenshutdown is the smallest useful guest: sleep one
// second, log, shut down.
package main

import (
	"time"

	"github.com/mvanbem/ignition/guest/api"
	"github.com/mvanbem/ignition/guest/ignition"
)

func init() {
	ignition.Init(func() {
		ignition.Executor.Spawn(func() {
			api.Sleep(ignition.Reactor, time.Second)
			api.Log("Woke up")
			api.Shutdown()
		})
	})
}

func main() {}
