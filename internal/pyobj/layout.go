package pyobj

import "encoding/binary"

// structSize returns the on-the-wire size of a fixed-layout struct T,
// the same size snapshot.Get[T] would read. Centralized here so variant
// decoders can compute "where does the variable-length tail start"
// without hardcoding byte offsets.
func structSize[T any]() int {
	var zero T
	n := binary.Size(zero)
	if n < 0 {
		panic("pyobj: type is not a fixed-size struct")
	}
	return n
}
