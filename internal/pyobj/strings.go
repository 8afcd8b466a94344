package pyobj

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/relistan/pymemtools/internal/snapshot"
)

// PyBytes is a decoded bytes object: a var-object header, a cached hash,
// and an inline byte array sized by the header's Size field.
type pyBytesHeader struct {
	PyVarObjectHeader
	Hash  int64
	Data0 byte // placeholder for the inline array's first byte
}

type PyBytes struct {
	Addr snapshot.Address
	Data []byte
}

// ReadBytes decodes a PyBytesObject at addr.
func ReadBytes(tr *snapshot.TypedReader, addr snapshot.Address) (*PyBytes, error) {
	h, err := snapshot.Get[pyBytesHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	if h.Size < 0 {
		return nil, fmt.Errorf("pyobj: negative bytes length at %s", addr)
	}
	dataOff := int64(structSize[pyBytesHeader]()) - 1 // Data0 overlaps the array start
	data, err := tr.GetBytes(addr.Add(dataOff), h.Size)
	if err != nil {
		return nil, err
	}
	return &PyBytes{Addr: addr, Data: data}, nil
}

// InvalidReasonBytes has no constraint beyond the header/array bounds
// check already performed by ReadBytes succeeding.
func InvalidReasonBytes(*PyBytes) string { return "" }

// Repr matches CPython's bytes repr: hex-escaped for non-printable
// bytes, truncated with a trailing count once the string limit is hit.
func (b *PyBytes) Repr(maxLen int) string {
	return reprBytesLike(b.Data, maxLen, "b'", "'")
}

func reprBytesLike(data []byte, maxLen int, prefix, suffix string) string {
	shown := data
	truncated := 0
	if maxLen > 0 && len(data) > maxLen {
		shown = data[:maxLen]
		truncated = len(data) - maxLen
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, c := range shown {
		switch {
		case c == '\\' || c == '\'':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	sb.WriteString(suffix)
	if truncated > 0 {
		fmt.Fprintf(&sb, " <%d more bytes>", truncated)
	}
	return sb.String()
}

// unicodeState decodes the packed flag word every PyUnicode variant
// carries: interning state, storage kind (1/2/4 bytes per character),
// compact-vs-legacy layout, ascii-only, and readiness.
type unicodeState uint32

const (
	usInternedMask = 0x3
	usKindShift    = 2
	usKindMask     = 0x7
	usCompactBit   = 1 << 5
	usASCIIBit     = 1 << 6
)

func (s unicodeState) interned() int   { return int(s & usInternedMask) }
func (s unicodeState) kind() int       { return int((uint32(s) >> usKindShift) & usKindMask) }
func (s unicodeState) isCompact() bool { return uint32(s)&usCompactBit != 0 }
func (s unicodeState) isASCII() bool   { return uint32(s)&usASCIIBit != 0 }

// pyASCIIHeader is the common prefix of every PyUnicode object: header,
// codepoint length, cached hash, packed state.
type pyASCIIHeader struct {
	PyObjectHeader
	Length int64
	Hash   int64
	State  unicodeState
	Pad    uint32 // alignment filler matching the natural packing before WStr
	WStr   snapshot.Address
}

// pyCompactHeader extends pyASCIIHeader for the compact (non-ASCII)
// representation: cached UTF-8 projection fields follow immediately,
// then the inline character data for the ASCII/compact cases.
type pyCompactHeader struct {
	pyASCIIHeader
	UTF8Length int64
	UTF8       snapshot.Address
	WStrLength int64
}

// PyString is a decoded Python str: its Unicode code points, independent
// of how CPython chose to pack them on disk.
type PyString struct {
	Addr     snapshot.Address
	Runes    []rune
	Kind     int
	IsASCII  bool
	Interned int
}

// ReadString decodes any of the three PyUnicode storage forms: an ASCII
// object stores 1-byte-per-char data immediately after pyASCIIHeader; a
// compact non-ASCII object stores 1/2/4-byte-per-char data immediately
// after pyCompactHeader; a general (legacy, non-compact) object instead
// stores an out-of-line pointer — reached the same way, just with the
// data address taken from the header's data union instead of computed
// inline, which this reader treats identically since both ultimately
// resolve to "Kind-width array of Length codepoints starting at
// dataAddr".
func ReadString(tr *snapshot.TypedReader, addr snapshot.Address) (*PyString, error) {
	h, err := snapshot.Get[pyASCIIHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	if h.Length < 0 {
		return nil, fmt.Errorf("pyobj: negative str length at %s", addr)
	}

	var dataAddr snapshot.Address
	kind := h.State.kind()
	if h.State.isCompact() && h.State.isASCII() {
		dataAddr = addr.Add(int64(structSize[pyASCIIHeader]()))
		kind = 1
	} else if h.State.isCompact() {
		dataAddr = addr.Add(int64(structSize[pyCompactHeader]()))
	} else {
		// General (legacy) form: a data pointer follows the compact
		// header in place of inline character storage.
		ptr, err := snapshot.Get[snapshot.Address](tr, addr.Add(int64(structSize[pyCompactHeader]())))
		if err != nil {
			return nil, err
		}
		dataAddr = *ptr
	}

	runes, err := decodeUCS(tr, dataAddr, int(h.Length), kind)
	if err != nil {
		return nil, err
	}

	return &PyString{
		Addr:     addr,
		Runes:    runes,
		Kind:     kind,
		IsASCII:  h.State.isASCII(),
		Interned: h.State.interned(),
	}, nil
}

// decodeUCS reads count codepoints of the given width (1, 2, or 4 bytes)
// starting at addr and returns them as runes. A kind-2 buffer may contain
// UTF-16 surrogate pairs (CPython only uses UCS2 storage for code points
// that fit in one 16-bit unit in practice, but the decode handles
// surrogate pairs defensively rather than assuming that invariant holds
// in a possibly-corrupt snapshot).
func decodeUCS(tr *snapshot.TypedReader, addr snapshot.Address, count, kind int) ([]rune, error) {
	switch kind {
	case 1:
		raw, err := tr.GetBytes(addr, int64(count))
		if err != nil {
			return nil, err
		}
		out := make([]rune, count)
		for i, b := range raw {
			out[i] = rune(b)
		}
		return out, nil
	case 2:
		units, err := snapshot.GetArray[uint16](tr, addr, count)
		if err != nil {
			return nil, err
		}
		return utf16.Decode(units), nil
	case 4:
		units, err := snapshot.GetArray[uint32](tr, addr, count)
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(units))
		for i, u := range units {
			out[i] = rune(u)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("pyobj: invalid unicode kind %d at %s", kind, addr)
	}
}

// InvalidReasonString reports whether the decoded kind is one of the
// three CPython supports.
func InvalidReasonString(s *PyString) string {
	switch s.Kind {
	case 1, 2, 4:
		return ""
	default:
		return "invalid_char_kind"
	}
}

// Repr renders a Python str repr: single-quoted by default (double
// quotes only if the string contains a single quote and no double
// quote, matching CPython), with non-printable characters escaped.
func (s *PyString) Repr(maxLen int) string {
	quote := byte('\'')
	hasSingle, hasDouble := false, false
	for _, r := range s.Runes {
		if r == '\'' {
			hasSingle = true
		}
		if r == '"' {
			hasDouble = true
		}
	}
	if hasSingle && !hasDouble {
		quote = '"'
	}

	runes := s.Runes
	truncated := 0
	if maxLen > 0 && len(runes) > maxLen {
		truncated = len(runes) - maxLen
		runes = runes[:maxLen]
	}

	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range runes {
		switch {
		case r == rune(quote) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	if truncated > 0 {
		fmt.Fprintf(&sb, " <%d more characters>", truncated)
	}
	return sb.String()
}
