package pyobj

import "testing"

func TestLineForOffsetBasic(t *testing.T) {
	// Two spans: first 4 bytes at line 10, next 6 bytes at line 12.
	table := []byte{4, 0, 6, 2}
	cases := []struct {
		offset int
		want   int
	}{
		{0, 10},
		{3, 10},
		{4, 12},
		{9, 12},
	}
	for _, c := range cases {
		got := LineForOffset(10, table, c.offset)
		if got != c.want {
			t.Errorf("LineForOffset(offset=%d) = %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestLineForOffsetNoLineSentinel(t *testing.T) {
	sentinel := int8(lineTableNoLineSentinel)
	table := []byte{2, byte(sentinel)}
	got := LineForOffset(1, table, 0)
	if got != -1 {
		t.Fatalf("LineForOffset over a no-line span = %d, want -1", got)
	}
}

func TestLineForOffsetOutOfTable(t *testing.T) {
	table := []byte{2, 0}
	got := LineForOffset(1, table, 100)
	if got != -1 {
		t.Fatalf("LineForOffset past the table = %d, want -1", got)
	}
}
