package snapshot

import "testing"

func regions(t *testing.T) []*Region {
	t.Helper()
	return []*Region{
		{Base: 0x1000, Size: 0x100, Host: make([]byte, 0x100)},
		{Base: 0x2000, Size: 0x200, Host: make([]byte, 0x200)},
		{Base: 0x5000, Size: 0x10, Host: make([]byte, 0x10)},
	}
}

func TestRegionFor(t *testing.T) {
	r := NewReader(regions(t))

	cases := []struct {
		addr Address
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x10ff, true},
		{0x1100, false},
		{0x2050, true},
		{0x5010, false}, // one past end
		{0x500f, true},
	}
	for _, c := range cases {
		got := r.RegionFor(c.addr) != nil
		if got != c.want {
			t.Errorf("RegionFor(%s) present=%v, want %v", c.addr, got, c.want)
		}
	}
}

func TestExistsAndRead(t *testing.T) {
	regs := regions(t)
	regs[0].Host[0x10] = 0xAB
	r := NewReader(regs)

	if !r.Exists(0x1000, 0x100) {
		t.Fatal("expected full region to exist")
	}
	if r.Exists(0x1000, 0x101) {
		t.Fatal("expected out-of-bounds range to not exist")
	}

	data, err := r.Read(0x1010, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if data[0] != 0xAB {
		t.Fatalf("Read returned %x, want ab", data[0])
	}

	if _, err := r.Read(0x1100, 1); err == nil {
		t.Fatal("expected error reading unmapped address")
	} else if _, ok := err.(*OutOfRange); !ok {
		t.Fatalf("expected *OutOfRange, got %T", err)
	}
}

func TestReadToEnd(t *testing.T) {
	regs := regions(t)
	r := NewReader(regs)
	data, err := r.ReadToEnd(0x20f0)
	if err != nil {
		t.Fatalf("ReadToEnd: %v", err)
	}
	if len(data) != 0x200-0xf0 {
		t.Fatalf("ReadToEnd length = %d, want %d", len(data), 0x200-0xf0)
	}
}

func TestHostToMapped(t *testing.T) {
	regs := regions(t)
	r := NewReader(regs)

	mapped, ok := r.HostToMapped(Address(hostAddrOf(regs[1].Host)).Add(0x20))
	if !ok {
		t.Fatal("expected HostToMapped to resolve")
	}
	if mapped != 0x2020 {
		t.Fatalf("HostToMapped = %s, want 0x2020", mapped)
	}

	if _, ok := r.HostToMapped(Address(0x1)); ok {
		t.Fatal("expected unmapped host address to fail")
	}
}

func TestOverlapWarning(t *testing.T) {
	regs := []*Region{
		{Base: 0x1000, Size: 0x100, Host: make([]byte, 0x100)},
		{Base: 0x1050, Size: 0x100, Host: make([]byte, 0x100)},
	}
	r := NewReader(regs)
	if len(r.Warnings()) == 0 {
		t.Fatal("expected an overlap warning")
	}
}
