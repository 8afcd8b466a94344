package pyobj

import (
	"fmt"
	"math"
	"math/big"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// digitBits is the width of one PyLongObject digit on a 64-bit build of
// CPython: 30 value bits packed into a 32-bit storage unit.
const digitBits = 30
const digitMask = (1 << digitBits) - 1

// PyLong is a decoded Python int. CPython 3.10 encodes the sign in
// ob_size's own sign (negative count = negative value, zero count =
// value zero); 3.14 instead packs a 3-bit tag (sign + allocation kind)
// into lv_tag alongside the digit count. Both are normalized here to
// DigitCount (always non-negative) and Negative.
type PyLong struct {
	Addr       snapshot.Address
	DigitCount int
	Negative   bool
	Digits     []uint32 // little-endian, 30 bits of value per entry
}

// pyLongHeader310 is PyVarObject for 3.10: ob_size's sign carries the
// long's sign, its magnitude the digit count.
type pyLongHeader310 struct {
	PyVarObjectHeader
}

// pyLongHeader314 replaces ob_size with lv_tag: bit 0 is "is negative",
// bits 1-2 select a small-int fast path vs general allocation, and the
// digit count occupies the remaining high bits.
type pyLongHeader314 struct {
	PyObjectHeader
	LvTag uint64
}

const (
	lvTagSignBit    = 1 << 0
	lvTagShift      = 3
)

// ReadLong decodes a PyLongObject at addr.
func ReadLong(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) (*PyLong, error) {
	if env.Version == environment.PyVersion314 {
		h, err := snapshot.Get[pyLongHeader314](tr, addr)
		if err != nil {
			return nil, err
		}
		negative := h.LvTag&lvTagSignBit != 0
		count := int(h.LvTag >> lvTagShift)
		digits, err := snapshot.GetArray[uint32](tr, addr.Add(int64(structSize[pyLongHeader314]())), count)
		if err != nil {
			return nil, err
		}
		return &PyLong{Addr: addr, DigitCount: count, Negative: negative, Digits: digits}, nil
	}

	h, err := snapshot.Get[pyLongHeader310](tr, addr)
	if err != nil {
		return nil, err
	}
	count := h.Size
	negative := count < 0
	if negative {
		count = -count
	}
	digits, err := snapshot.GetArray[uint32](tr, addr.Add(int64(structSize[pyLongHeader310]())), int(count))
	if err != nil {
		return nil, err
	}
	return &PyLong{Addr: addr, DigitCount: int(count), Negative: negative, Digits: digits}, nil
}

// InvalidReasonLong checks that the digit count is non-negative and that
// every digit fits in 30 bits; the digit array's in-region check is done
// by ReadLong succeeding.
func InvalidReasonLong(tr *snapshot.TypedReader, l *PyLong) string {
	if l.DigitCount < 0 {
		return "invalid_digits"
	}
	for _, d := range l.Digits {
		if d&^digitMask != 0 {
			return "invalid_digits"
		}
	}
	return ""
}

// BigInt converts a PyLong to the arbitrary-precision value it encodes.
func (l *PyLong) BigInt() *big.Int {
	result := new(big.Int)
	for i := len(l.Digits) - 1; i >= 0; i-- {
		result.Lsh(result, digitBits)
		result.Or(result, big.NewInt(int64(l.Digits[i]&digitMask)))
	}
	if l.Negative {
		result.Neg(result)
	}
	return result
}

// Repr renders the decimal value, matching CPython's own int repr
// exactly (arbitrary precision, no exponent notation, optional '-').
func (l *PyLong) Repr() string {
	if l.DigitCount == 0 {
		return "0"
	}
	return l.BigInt().String()
}

// PyBool is a Python bool, which in CPython is a PyLongObject subclass
// restricted to the values 0 and 1 (digit count 0 or 1).
type PyBool struct {
	Long *PyLong
}

// InvalidReasonBool additionally requires the digit count be at most 1,
// per CPython's invariant that True/False are the only two bool
// instances and each has at most one digit.
func InvalidReasonBool(l *PyLong) string {
	if l.DigitCount > 1 {
		return "invalid_digits"
	}
	return ""
}

func (b *PyBool) Repr() string {
	if b.Long.DigitCount == 0 {
		return "False"
	}
	return "True"
}

// PyFloat is a Python float: a header followed by one inline float64.
type PyFloat struct {
	PyObjectHeader
	Value float64
}

// InvalidReasonFloat has no extra structural constraint beyond the
// header itself — any bit pattern is a valid float64, including NaN and
// infinities.
func InvalidReasonFloat(*PyFloat) string {
	return ""
}

func (f *PyFloat) Repr() string {
	switch {
	case math.IsInf(f.Value, 1):
		return "inf"
	case math.IsInf(f.Value, -1):
		return "-inf"
	case math.IsNaN(f.Value):
		return "nan"
	}
	return reprFloat(f.Value)
}

// reprFloat mimics Python's float repr: shortest round-tripping decimal,
// always showing a decimal point for whole numbers.
func reprFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'i' {
			return s
		}
	}
	return s + ".0"
}
