package pyobj

import "testing"

func TestPyLongReprZero(t *testing.T) {
	l := &PyLong{DigitCount: 0}
	if got := l.Repr(); got != "0" {
		t.Fatalf("Repr() = %q, want 0", got)
	}
}

func TestPyLongReprPositive(t *testing.T) {
	// 1 * 2^0 + 2 * 2^30 == value 2*(1<<30) + 1
	l := &PyLong{DigitCount: 2, Digits: []uint32{1, 2}}
	want := (int64(2) << digitBits) + 1
	if got := l.Repr(); got != bigIntString(want) {
		t.Fatalf("Repr() = %q, want %q", got, bigIntString(want))
	}
}

func TestPyLongReprNegative(t *testing.T) {
	l := &PyLong{DigitCount: 1, Negative: true, Digits: []uint32{42}}
	if got := l.Repr(); got != "-42" {
		t.Fatalf("Repr() = %q, want -42", got)
	}
}

func bigIntString(v int64) string {
	l := &PyLong{}
	if v < 0 {
		l.Negative = true
		v = -v
	}
	for v > 0 {
		l.Digits = append(l.Digits, uint32(v&digitMask))
		l.DigitCount++
		v >>= digitBits
	}
	return l.Repr()
}

func TestPyBoolRepr(t *testing.T) {
	f := &PyBool{Long: &PyLong{DigitCount: 0}}
	if got := f.Repr(); got != "False" {
		t.Fatalf("Repr() = %q, want False", got)
	}
	tr := &PyBool{Long: &PyLong{DigitCount: 1, Digits: []uint32{1}}}
	if got := tr.Repr(); got != "True" {
		t.Fatalf("Repr() = %q, want True", got)
	}
}

func TestPyFloatRepr(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{0, "0.0"},
		{1.5, "1.5"},
		{-2, "-2.0"},
	}
	for _, c := range cases {
		f := &PyFloat{Value: c.v}
		if got := f.Repr(); got != c.want {
			t.Errorf("Repr(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestInvalidReasonLongRejectsOutOfRangeDigit(t *testing.T) {
	l := &PyLong{DigitCount: 1, Digits: []uint32{1 << 30}}
	if got := InvalidReasonLong(nil, l); got != "invalid_digits" {
		t.Fatalf("InvalidReasonLong = %q, want invalid_digits", got)
	}
}
