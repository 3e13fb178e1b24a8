package stripedmap

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is used to pad bucket locks so that neighbouring locks do
// not share a cache line. It's taken from `golang.org/x/sys/cpu`.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
