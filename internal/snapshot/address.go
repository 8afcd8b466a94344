// Package snapshot loads a frozen CPython process image — either a
// directory of region files or a single bundle file — and provides
// bounds-checked access to the bytes it contains.
package snapshot

import "fmt"

// Address is a pointer value as it appeared inside the snapshotted
// process's address space. It is never dereferenced directly; all access
// goes through a Reader, which projects it onto the region that backs it.
type Address uint64

// Null is the zero pointer value.
const Null Address = 0

// IsNull reports whether a is the null pointer.
func (a Address) IsNull() bool {
	return a == Null
}

// Add returns a+delta, allowing negative deltas.
func (a Address) Add(delta int64) Address {
	return Address(int64(a) + delta)
}

// Sub returns a-b as a signed byte distance.
func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

// BytesUntil returns the number of bytes from a up to (not including) b.
// Panics if b < a; callers only use this after establishing ordering.
func (a Address) BytesUntil(b Address) uint64 {
	if b < a {
		panic("snapshot: BytesUntil called with b < a")
	}
	return uint64(b - a)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// OutOfRange is returned when a requested address range is not covered by
// any region in the snapshot. It is the one checked, recoverable error
// this package defines; every other construction-time failure is a plain
// *fmt.Errorf-wrapped error.
type OutOfRange struct {
	Addr Address
	Size int64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("snapshot: address %s (+%d bytes) not in any mapped region", e.Addr, e.Size)
}
