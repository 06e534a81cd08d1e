//go:build !tinygo

package core

import "sync/atomic"

// DefaultFreeMemory is the free memory figure host builds start with.
const DefaultFreeMemory = 8192

var hostFreeMemory int32 = DefaultFreeMemory

// SetFreeMemory sets the free memory figure reported on host builds. The
// simulator and tests use it to model allocations and frees.
func SetFreeMemory(n int) {
	atomic.StoreInt32(&hostFreeMemory, int32(n))
}

// SampleHeap is a no-op on host builds; SetFreeMemory drives the figure.
func SampleHeap() {}

func freeMemory() int {
	return int(atomic.LoadInt32(&hostFreeMemory))
}
