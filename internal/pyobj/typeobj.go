package pyobj

import "github.com/relistan/pymemtools/internal/snapshot"

// pyTypeHeader mirrors CPython's _typeobject (PyTypeObject), restricted
// to the fields this decoder actually interprets: the function-pointer
// slots (tp_dealloc, tp_repr, ...) are opaque addresses we never call,
// carried only so DirectReferents can enumerate them the same way the
// reference implementation does (they keep extension-module code
// objects alive, which matters for a "what's keeping this reachable"
// traversal even though we never execute them).
type pyTypeHeader struct {
	PyVarObjectHeader
	Name            snapshot.Address
	BasicSize       int64
	ItemSize        int64
	Dealloc         snapshot.Address
	VectorcallOffset int64
	GetAttr         snapshot.Address
	SetAttr         snapshot.Address
	AsAsync         snapshot.Address
	Repr            snapshot.Address
	AsNumber        snapshot.Address
	AsSequence      snapshot.Address
	AsMapping       snapshot.Address
	Hash            snapshot.Address
	Call            snapshot.Address
	Str             snapshot.Address
	GetAttro        snapshot.Address
	SetAttro        snapshot.Address
	AsBuffer        snapshot.Address
	Flags           uint64
	Doc             snapshot.Address
	Traverse        snapshot.Address
	Clear           snapshot.Address
	RichCompare     snapshot.Address
	WeakListOffset  int64
	Iter            snapshot.Address
	IterNext        snapshot.Address
	Methods         snapshot.Address
	Members         snapshot.Address
	GetSet          snapshot.Address
	Base            snapshot.Address
	Dict            snapshot.Address
	DescrGet        snapshot.Address
	DescrSet        snapshot.Address
	DictOffset      int64
	Init            snapshot.Address
	Alloc           snapshot.Address
	New             snapshot.Address
	Free            snapshot.Address
	IsGC            snapshot.Address
	Bases           snapshot.Address
	MRO             snapshot.Address
	Cache           snapshot.Address
	Subclasses      snapshot.Address
	WeakList        snapshot.Address
	Del             snapshot.Address
	VersionTag      uint32
	Pad             uint32
	Finalize        snapshot.Address
	Vectorcall      snapshot.Address // excluded from DirectReferents, as in the original
}

// PyType is the decoded view of a type object.
type PyType struct {
	Addr           snapshot.Address
	NameAddr       snapshot.Address
	BasicSize      int64
	ItemSize       int64
	Base           snapshot.Address
	Dict           snapshot.Address
	Bases          snapshot.Address
	MRO            snapshot.Address
	Subclasses     snapshot.Address
	WeakListOffset int64
	DictOffset     int64
	Members        snapshot.Address
	raw            pyTypeHeader
}

func ReadType(tr *snapshot.TypedReader, addr snapshot.Address) (*PyType, error) {
	h, err := snapshot.Get[pyTypeHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &PyType{
		Addr: addr, NameAddr: h.Name, BasicSize: h.BasicSize, ItemSize: h.ItemSize,
		Base: h.Base, Dict: h.Dict, Bases: h.Bases, MRO: h.MRO, Subclasses: h.Subclasses,
		WeakListOffset: h.WeakListOffset, DictOffset: h.DictOffset, Members: h.Members,
		raw: *h,
	}, nil
}

// InvalidReasonType requires tp_basicsize be nonnegative; a type whose
// instances would have negative size cannot describe anything real.
func InvalidReasonType(t *PyType) string {
	if t.BasicSize < 0 {
		return "invalid_size"
	}
	return ""
}

// Name reads tp_name as a C string.
func (t *PyType) Name(tr *snapshot.TypedReader) (string, error) {
	return tr.GetCString(t.NameAddr)
}

// DirectReferents lists every address this type object keeps alive,
// matching the original's flat field set exactly — including the
// opaque function-pointer slots, but excluding tp_vectorcall, which the
// original also leaves unchecked/unlisted.
func (t *PyType) DirectReferents() []snapshot.Address {
	h := t.raw
	return []snapshot.Address{
		h.Name, h.Dealloc, h.GetAttr, h.SetAttr, h.AsAsync, h.Repr,
		h.AsNumber, h.AsSequence, h.AsMapping, h.Hash, h.Call, h.Str,
		h.GetAttro, h.SetAttro, h.AsBuffer, h.Doc, h.Traverse, h.Clear,
		h.RichCompare, h.Iter, h.IterNext, h.Methods, h.Members, h.GetSet,
		h.Base, h.Dict, h.DescrGet, h.DescrSet, h.Init, h.Alloc,
		h.New, h.Free, h.IsGC, h.Bases, h.MRO, h.Cache, h.Subclasses,
		h.WeakList, h.Del, h.Finalize,
	}
}

func (t *PyType) Repr(name string) string {
	return "<class '" + name + "'>"
}
