package snapshot

import (
	"fmt"
	"sort"
	"unsafe"
)

// Reader is the region index (C2): a sorted set of Regions supporting
// bounds-checked reads in the mapped address space, plus the inverse
// projection from a region's host bytes back to its mapped address.
//
// The lookup algorithm mirrors the original implementation's
// std::map::upper_bound-then-predecessor idiom: find the first region
// whose base is greater than the query address, then step back one and
// check containment. Expressed here as two address-sorted slices searched
// with sort.Search, rather than the radix page-table approach used
// elsewhere in this corpus, because the same algorithm needs to run
// symmetrically in both directions (mapped->host and host->mapped).
type Reader struct {
	byMapped []*Region // sorted by Base, ascending
	byHost   []hostRegion

	warnings []string
}

// NewReader builds a Reader over the given regions. Regions must not
// overlap; overlap is treated as a loader bug and recorded as a warning.
// Lookups then resolve an address to the region with the highest base at
// or below it, so inside an overlap the region that starts later wins,
// and an address past that region's end is reported unmapped even when
// an earlier region covers it.
func NewReader(regions []*Region) *Reader {
	r := &Reader{
		byMapped: append([]*Region(nil), regions...),
	}
	sort.Slice(r.byMapped, func(i, j int) bool { return r.byMapped[i].Base < r.byMapped[j].Base })

	for i := 1; i < len(r.byMapped); i++ {
		prev, cur := r.byMapped[i-1], r.byMapped[i]
		if prev.End() > cur.Base {
			r.warnings = append(r.warnings, fmt.Sprintf(
				"overlapping regions: %s..%s and %s..%s", prev.Base, prev.End(), cur.Base, cur.End()))
		}
	}

	r.byHost = make([]hostRegion, 0, len(regions))
	for _, reg := range regions {
		if len(reg.Host) == 0 {
			r.warnings = append(r.warnings, fmt.Sprintf("zero-sized region at %s", reg.Base))
			continue
		}
		hb := Address(uintptr(unsafe.Pointer(&reg.Host[0])))
		r.byHost = append(r.byHost, hostRegion{hostBase: hb, region: reg})
	}
	sort.Slice(r.byHost, func(i, j int) bool { return r.byHost[i].hostBase < r.byHost[j].hostBase })

	return r
}

// Warnings returns non-fatal diagnostics accumulated while loading and
// building the reader (missing, zero-sized, overlapping, or unreadable
// regions), for the caller to surface however it sees fit. Mirrors the
// ancestor core loader's warnings-as-plain-strings convention rather than
// introducing a logging dependency.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// AllRegions returns every region, sorted by mapped base address.
func (r *Reader) AllRegions() []*Region {
	return append([]*Region(nil), r.byMapped...)
}

// RegionFor returns the region containing addr, or nil if none does.
func (r *Reader) RegionFor(addr Address) *Region {
	// upper_bound: first index whose Base > addr
	i := sort.Search(len(r.byMapped), func(i int) bool { return r.byMapped[i].Base > addr })
	if i == 0 {
		return nil
	}
	cand := r.byMapped[i-1]
	if addr < cand.Base || addr >= cand.End() {
		return nil
	}
	return cand
}

// Exists reports whether [addr, addr+size) lies entirely within a single
// mapped region.
func (r *Reader) Exists(addr Address, size int64) bool {
	reg := r.RegionFor(addr)
	return reg != nil && reg.Contains(addr, size)
}

// Read returns a copy of size bytes starting at addr. Returns *OutOfRange
// if the range is not fully mapped.
func (r *Reader) Read(addr Address, size int64) ([]byte, error) {
	reg := r.RegionFor(addr)
	if reg == nil || !reg.Contains(addr, size) {
		return nil, &OutOfRange{Addr: addr, Size: size}
	}
	off := reg.offset(addr)
	out := make([]byte, size)
	copy(out, reg.Host[off:off+size])
	return out, nil
}

// ReadToEnd returns every byte from addr through the end of whichever
// region contains it. Used for C-string and variable-length reads whose
// exact length is not known up front.
func (r *Reader) ReadToEnd(addr Address) ([]byte, error) {
	reg := r.RegionFor(addr)
	if reg == nil || addr < reg.Base || addr >= reg.End() {
		return nil, &OutOfRange{Addr: addr, Size: 0}
	}
	off := reg.offset(addr)
	out := make([]byte, len(reg.Host)-int(off))
	copy(out, reg.Host[off:])
	return out, nil
}

// HostToMapped projects a host-memory pointer (obtained by taking the
// address of a byte within some Region.Host previously returned by this
// Reader) back to the corresponding mapped Address. Used when an
// algorithm — e.g. the repr traversal's cycle guard — needs to key a set
// by object identity and must not be confused by two differently-mapped
// regions sharing bytes.
func (r *Reader) HostToMapped(hostAddr Address) (Address, bool) {
	i := sort.Search(len(r.byHost), func(i int) bool { return r.byHost[i].hostBase > hostAddr })
	if i == 0 {
		return Null, false
	}
	cand := r.byHost[i-1]
	reg := cand.region
	hostEnd := cand.hostBase.Add(reg.Size)
	if hostAddr < cand.hostBase || hostAddr >= hostEnd {
		return Null, false
	}
	return reg.Base.Add(hostAddr.Sub(cand.hostBase)), true
}

// MappedToHost is the forward projection complementing HostToMapped: it
// returns the host-memory address backing a mapped Address, for
// callers — such as the repr traversal's cycle guard — that need to key
// a visited-set by true byte identity rather than by mapped address
// (two mapped addresses could otherwise alias the same bytes if a
// snapshot ever contained overlapping regions).
func (r *Reader) MappedToHost(addr Address) (Address, bool) {
	reg := r.RegionFor(addr)
	if reg == nil {
		return Null, false
	}
	hb := Address(uintptr(unsafe.Pointer(&reg.Host[0])))
	return hb.Add(reg.offset(addr)), true
}
