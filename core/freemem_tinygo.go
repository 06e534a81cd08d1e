//go:build tinygo

package core

import (
	"math"
	"runtime"
	"sync/atomic"
)

var (
	heapFree int32 = math.MaxInt32
	memStats runtime.MemStats
)

// SampleHeap refreshes the free heap snapshot read by the signal ISR.
// ReadMemStats walks the heap, so this must run in foreground context.
func SampleHeap() {
	runtime.ReadMemStats(&memStats)
	free := memStats.HeapSys - memStats.HeapInuse
	if free > math.MaxInt32 {
		free = math.MaxInt32
	}
	atomic.StoreInt32(&heapFree, int32(free))
}

func freeMemory() int {
	return int(atomic.LoadInt32(&heapFree))
}
