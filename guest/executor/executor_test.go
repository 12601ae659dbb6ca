package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnAndWait(t *testing.T) {
	e := New()
	var n atomic.Int32

	for i := 0; i < 100; i++ {
		e.Spawn(func() {
			time.Sleep(time.Microsecond)
			n.Add(1)
		})
	}

	e.Wait()
	require.EqualValues(t, 100, n.Load())
}
