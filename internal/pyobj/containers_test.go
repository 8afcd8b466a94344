package pyobj

import (
	"encoding/binary"
	"testing"

	"github.com/relistan/pymemtools/internal/snapshot"
)

func newTR(base snapshot.Address, data []byte) *snapshot.TypedReader {
	r := snapshot.NewReader([]*snapshot.Region{{Base: base, Size: int64(len(data)), Host: data}})
	return snapshot.NewTypedReader(r)
}

func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func TestReadTuple(t *testing.T) {
	// header: refcnt(8) type(8) size(8) = 24 bytes, then 2 pointers.
	data := make([]byte, 24+16)
	putU64(data, 0, 1)       // refcnt
	putU64(data, 8, 0xAA)    // type
	putU64(data, 16, 2)      // size
	putU64(data, 24, 0x1000) // item 0
	putU64(data, 32, 0x2000) // item 1

	tr := newTR(0x500, data)
	tu, err := ReadTuple(tr, 0x500)
	if err != nil {
		t.Fatalf("ReadTuple: %v", err)
	}
	if len(tu.Items) != 2 || tu.Items[0] != 0x1000 || tu.Items[1] != 0x2000 {
		t.Fatalf("ReadTuple items = %v", tu.Items)
	}
}

func TestReadList(t *testing.T) {
	// pyListHeader: header(24) + ItemsPtr(8) + Allocated(8) = 40 bytes.
	data := make([]byte, 40)
	putU64(data, 0, 1)
	putU64(data, 8, 0xBB)
	putU64(data, 16, 1) // size
	putU64(data, 24, 0x900)
	putU64(data, 32, 4) // allocated

	itemsData := make([]byte, 8)
	putU64(itemsData, 0, 0x7777)

	r := snapshot.NewReader([]*snapshot.Region{
		{Base: 0x500, Size: int64(len(data)), Host: data},
		{Base: 0x900, Size: int64(len(itemsData)), Host: itemsData},
	})
	tr := snapshot.NewTypedReader(r)

	l, err := ReadList(tr, 0x500)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if len(l.Items) != 1 || l.Items[0] != 0x7777 {
		t.Fatalf("ReadList items = %v", l.Items)
	}
}

func TestReadCell(t *testing.T) {
	// pyCellHeader: PyObjectHeader refcnt(8)+type(8)=16, + Ref(8) = 24 bytes.
	data := make([]byte, 24)
	putU64(data, 0, 1)
	putU64(data, 8, 0xCC)
	putU64(data, 16, 0x1234)

	tr := newTR(0x10, data)
	c, err := ReadCell(tr, 0x10)
	if err != nil {
		t.Fatalf("ReadCell: %v", err)
	}
	if c.Ref != 0x1234 {
		t.Fatalf("Ref = %s, want 0x1234", c.Ref)
	}
}
