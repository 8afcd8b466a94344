package snapshot

import "unsafe"

// hostAddrOf returns the host address of b's first byte, for tests that
// need to exercise HostToMapped without going through a real mmap.
func hostAddrOf(b []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}
