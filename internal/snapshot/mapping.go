package snapshot

// Region is one contiguous, mmap-backed slice of the snapshotted process's
// address space. Unlike the live-process Mapping this package's ancestor
// dealt with, a snapshot region carries no permission bits — the snapshot
// producer only ever captures readable memory, and this package never
// writes back into it.
type Region struct {
	Base Address // first mapped address
	Size int64   // length in bytes
	Host []byte  // backing bytes, length == Size

	// name is the source file this region was read from, kept for
	// diagnostics (Reader.Warnings) and nothing else.
	name string
}

// End returns the address one past the last byte of the region.
func (r *Region) End() Address {
	return r.Base.Add(r.Size)
}

// Contains reports whether [addr, addr+size) lies entirely within r.
func (r *Region) Contains(addr Address, size int64) bool {
	if addr < r.Base {
		return false
	}
	end := addr.Add(size)
	return end <= r.End() && end >= addr // guard against size overflow wraparound
}

// offset returns the byte offset of addr within r.Host. Caller must have
// already checked Contains.
func (r *Region) offset(addr Address) int64 {
	return addr.Sub(r.Base)
}

// hostRegion mirrors Region but indexes by the address of r.Host's first
// byte reinterpreted as a uint64, for the host-pointer lookup direction
// (HostToMapped). Kept as a distinct lightweight view rather than a
// second copy of Region's fields, since the two sort orders diverge.
type hostRegion struct {
	hostBase Address // uint64(uintptr(&region.Host[0]))
	region   *Region
}
