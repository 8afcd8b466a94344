package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TypedReader layers fixed-width struct and array decoding on top of a
// Reader. It performs no interpretation of field values — only spatial
// safety: every accessor either returns fully in-bounds data or an error.
// Field-level semantics (what a value means) live in internal/pyobj.
type TypedReader struct {
	*Reader
}

// NewTypedReader wraps r.
func NewTypedReader(r *Reader) *TypedReader {
	return &TypedReader{Reader: r}
}

// sizeOfBinary computes the on-the-wire size of a fixed-width value as
// binary.Write would encode it, without actually encoding it. Every type
// this package decodes (snapshot.Address, u8/16/32/64, i8/16/32/64,
// float64, and flat structs composed of those) is binary.Size-compatible.
func sizeOfBinary(v any) (int, error) {
	n := binary.Size(v)
	if n < 0 {
		return 0, fmt.Errorf("snapshot: type %T is not a fixed-size value", v)
	}
	return n, nil
}

// Get reads one little-endian, fixed-layout value of type T starting at
// addr. T must be a flat struct of fixed-width fields (or a fixed-width
// scalar) — the same constraint encoding/binary.Read imposes.
func Get[T any](tr *TypedReader, addr Address) (*T, error) {
	var zero T
	size, err := sizeOfBinary(zero)
	if err != nil {
		return nil, err
	}
	raw, err := tr.Read(addr, int64(size))
	if err != nil {
		return nil, err
	}
	var out T
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &out); err != nil {
		return nil, fmt.Errorf("snapshot: decode %T at %s: %v", out, addr, err)
	}
	return &out, nil
}

// GetArray reads count consecutive little-endian values of type T
// starting at addr.
func GetArray[T any](tr *TypedReader, addr Address, count int) ([]T, error) {
	if count < 0 {
		return nil, fmt.Errorf("snapshot: negative array count %d", count)
	}
	if count == 0 {
		return nil, nil
	}
	var zero T
	elemSize, err := sizeOfBinary(zero)
	if err != nil {
		return nil, err
	}
	raw, err := tr.Read(addr, int64(elemSize*count))
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("snapshot: decode []%T at %s: %v", zero, addr, err)
	}
	return out, nil
}

// GetCString reads a NUL-terminated byte string starting at addr. Returns
// an error if no NUL byte is found before the end of the region backing
// addr — a C string is never allowed to trail off into unmapped memory.
func (tr *TypedReader) GetCString(addr Address) (string, error) {
	raw, err := tr.ReadToEnd(addr)
	if err != nil {
		return "", err
	}
	i := bytes.IndexByte(raw, 0)
	if i < 0 {
		return "", fmt.Errorf("snapshot: unterminated C string at %s", addr)
	}
	return string(raw[:i]), nil
}

// ObjValid reports whether addr is non-null and [addr, addr+minSize) is
// fully mapped. Used as the entry guard before interpreting any object's
// header.
func (tr *TypedReader) ObjValid(addr Address, minSize int64) bool {
	if addr.IsNull() {
		return false
	}
	return tr.Exists(addr, minSize)
}

// ObjValidOrNull is ObjValid but treats a null pointer as valid — the
// common case for an optional reference field that legitimately may be
// absent.
func (tr *TypedReader) ObjValidOrNull(addr Address, minSize int64) bool {
	if addr.IsNull() {
		return true
	}
	return tr.Exists(addr, minSize)
}

// GetBytes reads size raw bytes starting at addr, with no type
// interpretation — used for variable-length trailing arrays (e.g. a
// PyLongObject's digits, a PyBytesObject's data) whose element type is
// context-dependent.
func (tr *TypedReader) GetBytes(addr Address, size int64) ([]byte, error) {
	return tr.Read(addr, size)
}
