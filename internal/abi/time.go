package abi

import "time"

// bootTime anchors monotonic_time's epoch at process startup. The epoch is
// arbitrary; the only guarantee is that readings never decrease.
var bootTime = time.Now()

func microsecondsToDuration(microseconds uint32) time.Duration {
	return time.Duration(microseconds) * time.Microsecond
}

func monotonicMicros() uint64 {
	return uint64(time.Since(bootTime).Microseconds())
}
