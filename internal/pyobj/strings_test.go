package pyobj

import "testing"

func TestPyStringReprQuoting(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "'hello'"},
		{"it's", `"it's"`},
		{`"both" it's`, `'"both" it\'s'`},
	}
	for _, c := range cases {
		s := &PyString{Runes: []rune(c.in)}
		if got := s.Repr(0); got != c.want {
			t.Errorf("Repr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPyStringReprTruncation(t *testing.T) {
	s := &PyString{Runes: []rune("abcdefghij")}
	got := s.Repr(4)
	want := "'abcd' <6 more characters>"
	if got != want {
		t.Fatalf("Repr(4) = %q, want %q", got, want)
	}
}

func TestPyBytesRepr(t *testing.T) {
	b := &PyBytes{Data: []byte("hi\x00\xff")}
	got := b.Repr(0)
	want := `b'hi\x00\xff'`
	if got != want {
		t.Fatalf("Repr() = %q, want %q", got, want)
	}
}

func TestPyBytesReprPrintableASCII(t *testing.T) {
	// Checks that the bytes repr escaping helper handles the full
	// printable-ASCII range without panicking.
	data := make([]byte, 0, 0x7f-0x20)
	for c := byte(0x20); c < 0x7f; c++ {
		data = append(data, c)
	}
	b := &PyBytes{Data: data}
	if got := b.Repr(0); len(got) == 0 {
		t.Fatal("expected non-empty repr")
	}
}
