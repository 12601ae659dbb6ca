//go:build wasip1

// Command millionimpulse benchmarks the wake path: allocate a million
// impulse tasks, await all, report the per-impulse cost, shut down with no
// leaked task ids.
package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/mvanbem/ignition/guest/api"
	"github.com/mvanbem/ignition/guest/ignition"
)

const count = 1_000_000

func init() {
	ignition.Init(func() {
		ignition.Executor.Spawn(func() {
			start := api.Now()

			var wg sync.WaitGroup
			wg.Add(count)
			for i := 0; i < count; i++ {
				ignition.Executor.Spawn(func() {
					defer wg.Done()
					api.Impulse(ignition.Reactor)
				})
			}
			wg.Wait()

			elapsed := api.Now().Sub(start)
			perImpulse := time.Duration(elapsed.Nanoseconds() / count)
			api.Log(fmt.Sprintf("Elapsed: %s, %s per impulse", elapsed, perImpulse))
			api.Shutdown()
		})
	})
}

func main() {}
