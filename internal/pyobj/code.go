package pyobj

import (
	"fmt"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// pyCodeHeader310 mirrors PyCodeObject as of 3.10: bytecode is a plain
// inline PyBytesObject-backed array (co_code), with separate co_consts/
// co_names/co_varnames/etc tuples and a compact line-number table
// (co_linetable).
type pyCodeHeader310 struct {
	PyObjectHeader
	ArgCount      int32
	PosOnlyCount  int32
	KwOnlyCount   int32
	NLocals       int32
	StackSize     int32
	Flags         int32
	FirstLineNo   int32
	Pad           int32
	Code          snapshot.Address
	Consts        snapshot.Address
	Names         snapshot.Address
	VarNames      snapshot.Address
	FreeVars      snapshot.Address
	CellVars      snapshot.Address
	Filename      snapshot.Address
	Name          snapshot.Address
	LineTable     snapshot.Address
}

// pyCodeHeader314 mirrors the post-3.11 split: bytecode is now
// "adaptive" (co_code_adaptive, specialized in place at runtime) and an
// exception table replaces the old block-based exception handling;
// co_linetable is replaced by a combined location table.
type pyCodeHeader314 struct {
	PyObjectHeader
	ArgCount        int32
	PosOnlyCount    int32
	KwOnlyCount     int32
	StackSize       int32
	Flags           int32
	FirstLineNo     int32
	NLocalsPlus     int32
	Pad             int32
	CodeAdaptive    snapshot.Address
	Consts          snapshot.Address
	Names           snapshot.Address
	LocalsPlusNames snapshot.Address
	LocalsPlusKinds snapshot.Address
	Filename        snapshot.Address
	Name            snapshot.Address
	QualName        snapshot.Address
	LineTable       snapshot.Address
	ExceptionTable  snapshot.Address
	CodeLength      int32
	Pad2            int32
}

// PyCode is the version-independent view both layouts normalize to.
type PyCode struct {
	Addr        snapshot.Address
	ArgCount    int32
	FirstLineNo int32
	Filename    snapshot.Address
	Name        snapshot.Address
	Consts      snapshot.Address // tuple
	Names       snapshot.Address // tuple
	LineTable   snapshot.Address // bytes
	CodeLength  int64
}

// ReadCode decodes a PyCodeObject using the layout selected by
// env.Version.
func ReadCode(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) (*PyCode, error) {
	if env.Version == environment.PyVersion314 {
		h, err := snapshot.Get[pyCodeHeader314](tr, addr)
		if err != nil {
			return nil, err
		}
		return &PyCode{
			Addr: addr, ArgCount: h.ArgCount, FirstLineNo: h.FirstLineNo,
			Filename: h.Filename, Name: h.Name, Consts: h.Consts, Names: h.Names,
			LineTable: h.LineTable, CodeLength: int64(h.CodeLength),
		}, nil
	}

	h, err := snapshot.Get[pyCodeHeader310](tr, addr)
	if err != nil {
		return nil, err
	}
	var codeLen int64
	if bytesObj, err := ReadBytes(tr, h.Code); err == nil {
		codeLen = int64(len(bytesObj.Data))
	}
	return &PyCode{
		Addr: addr, ArgCount: h.ArgCount, FirstLineNo: h.FirstLineNo,
		Filename: h.Filename, Name: h.Name, Consts: h.Consts, Names: h.Names,
		LineTable: h.LineTable, CodeLength: codeLen,
	}, nil
}

// InvalidReasonCode has no extra structural check beyond successfully
// decoding the fixed-layout header; a 3.10 bytecode object that cannot be
// read only leaves CodeLength at 0. Downstream name/const resolution
// failures surface where those referents are themselves read, not here.
func InvalidReasonCode(*PyCode) string { return "" }

// lineTableNoLineSentinel marks a byte range with no associated source
// line (e.g. an artificial jump target) in the compact line table
// encoding.
const lineTableNoLineSentinel = -0x80

// LineForOffset decodes the compact line-number table (co_linetable) to
// find the source line active at the given bytecode offset. The table
// is a stream of (byte_delta, line_delta) byte pairs, byte_delta unsigned
// and line_delta signed: walk it
// accumulating byte_delta into a running bytecode offset and line_delta
// into a running line number, stopping once the accumulated offset
// covers the queried one. A line_delta of exactly lineTableNoLineSentinel
// (-128) means "this span has no line info at all" (returns -1 if the
// query falls inside it); a line_delta of 0 means "extend the current
// span without changing the line".
func LineForOffset(firstLine int32, table []byte, offset int) int {
	line := int(firstLine)
	pos := 0
	for i := 0; i+1 < len(table); i += 2 {
		byteDelta := int(table[i])
		lineDelta := int(int8(table[i+1]))

		start := pos
		end := pos + byteDelta
		if offset >= start && offset < end {
			if lineDelta == lineTableNoLineSentinel {
				return -1
			}
			return line + lineDelta
		}
		if lineDelta != lineTableNoLineSentinel && lineDelta != 0 {
			line += lineDelta
		}
		pos = end
	}
	return -1
}

// Repr renders the same one-line header cpython's code object repr uses.
// The caller supplies the name and filename strings, which this
// pure-data PyCode does not look up itself; Traversal.reprBody uses this
// form for a code object at the root as well as when nested.
func (c *PyCode) Repr(filename, name string) string {
	return fmt.Sprintf("<code object %s, file %q, line %d>", name, filename, c.FirstLineNo)
}
