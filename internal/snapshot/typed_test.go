package snapshot

import "testing"

type point struct {
	X int64
	Y int64
}

func TestGet(t *testing.T) {
	host := make([]byte, 0x100)
	// X=1, Y=2 little-endian at offset 0x10
	host[0x10] = 1
	host[0x18] = 2
	r := NewReader([]*Region{{Base: 0x1000, Size: 0x100, Host: host}})
	tr := NewTypedReader(r)

	p, err := Get[point](tr, 0x1010)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.X != 1 || p.Y != 2 {
		t.Fatalf("Get = %+v, want {1 2}", p)
	}

	if _, err := Get[point](tr, 0x1000+0x100-8); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestGetArray(t *testing.T) {
	host := make([]byte, 0x100)
	host[0] = 5
	host[8] = 6
	host[16] = 7
	r := NewReader([]*Region{{Base: 0x2000, Size: 0x100, Host: host}})
	tr := NewTypedReader(r)

	arr, err := GetArray[uint64](tr, 0x2000, 3)
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	if arr[0] != 5 || arr[1] != 6 || arr[2] != 7 {
		t.Fatalf("GetArray = %v", arr)
	}
}

func TestGetCString(t *testing.T) {
	host := []byte("hello\x00world")
	r := NewReader([]*Region{{Base: 0x3000, Size: int64(len(host)), Host: host}})
	tr := NewTypedReader(r)

	s, err := tr.GetCString(0x3000)
	if err != nil {
		t.Fatalf("GetCString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("GetCString = %q, want hello", s)
	}

	unterminated := []byte("noterm")
	r2 := NewReader([]*Region{{Base: 0x4000, Size: int64(len(unterminated)), Host: unterminated}})
	tr2 := NewTypedReader(r2)
	if _, err := tr2.GetCString(0x4000); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestObjValid(t *testing.T) {
	host := make([]byte, 0x10)
	r := NewReader([]*Region{{Base: 0x1000, Size: 0x10, Host: host}})
	tr := NewTypedReader(r)

	if !tr.ObjValid(0x1000, 0x10) {
		t.Fatal("expected valid object")
	}
	if tr.ObjValid(Null, 0x10) {
		t.Fatal("null should not be valid via ObjValid")
	}
	if !tr.ObjValidOrNull(Null, 0x10) {
		t.Fatal("null should be valid via ObjValidOrNull")
	}
	if tr.ObjValid(0x1000, 0x11) {
		t.Fatal("expected oversized read to be invalid")
	}
}
