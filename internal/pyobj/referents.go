package pyobj

import (
	"fmt"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// DirectReferents is C6's entry point: the addresses addr directly
// points at, one level deep, no recursion. It either returns the
// complete set or an error — never a partial list — matching the
// reference implementation's exception-on-failure behavior rather than
// returning whatever happened to decode before hitting a bad field.
func DirectReferents(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) ([]snapshot.Address, error) {
	if reason := InvalidReason(tr, env, addr, snapshot.Null); reason != "" {
		return nil, fmt.Errorf("pyobj: invalid object at %s: %s", addr, reason)
	}

	h, err := snapshot.Get[PyObjectHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	kind := KindOf(tr, env, h.Type)

	switch kind {
	case KindType:
		t, err := ReadType(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull(t.DirectReferents()), nil

	case KindInt, KindBool, KindFloat:
		return []snapshot.Address{h.Type}, nil

	case KindBytes:
		return []snapshot.Address{h.Type}, nil

	case KindStr:
		return []snapshot.Address{h.Type}, nil

	case KindTuple:
		tu, err := ReadTuple(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull(append([]snapshot.Address{h.Type}, tu.Items...)), nil

	case KindList:
		l, err := ReadList(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull(append([]snapshot.Address{h.Type}, l.Items...)), nil

	case KindSet, KindFrozenSet:
		s, err := ReadSet(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull(append([]snapshot.Address{h.Type}, s.Members...)), nil

	case KindDict:
		d, err := ReadDict(tr, addr)
		if err != nil {
			return nil, err
		}
		refs := []snapshot.Address{h.Type}
		for _, it := range d.Items {
			refs = append(refs, it.Key, it.Value)
		}
		return nonNull(refs), nil

	case KindCode:
		c, err := ReadCode(tr, env, addr)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, c.Filename, c.Name, c.Consts, c.Names, c.LineTable}), nil

	case KindCell:
		c, err := ReadCell(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, c.Ref}), nil

	case KindFrame:
		f, err := ReadFrame(tr, env, addr)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, f.Back, f.Code, f.Globals, f.Builtins, f.Locals}), nil

	case KindGenerator, KindCoroutine, KindAsyncGenerator:
		g, err := readGeneratorByKindKind(tr, addr, kind)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, g.Frame, g.Code, g.Name, g.QualName}), nil

	case KindFuture:
		f, err := ReadFuture(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, f.Loop, f.Callback0, f.Result, f.Exception, f.Source}), nil

	case KindTask:
		t, err := ReadTask(tr, addr)
		if err != nil {
			return nil, err
		}
		return nonNull([]snapshot.Address{h.Type, t.Loop, t.Callback0, t.Result, t.Exception, t.Source, t.Coro, t.FutWaiter}), nil

	case KindGatheringFuture:
		g, err := ReadGatheringFuture(tr, addr)
		if err != nil {
			return nil, err
		}
		refs := []snapshot.Address{h.Type, g.Loop, g.Callback0, g.Result, g.Exception, g.Source}
		children, err := gatheringFutureChildren(tr, env, addr)
		if err != nil {
			return nil, err
		}
		refs = append(refs, children...)
		return nonNull(refs), nil

	case KindNone:
		return []snapshot.Address{h.Type}, nil

	case KindInstance:
		return directReferentsInstance(tr, env, addr, *h)

	default:
		return []snapshot.Address{h.Type}, nil
	}
}

func readGeneratorByKindKind(tr *snapshot.TypedReader, addr snapshot.Address, kind Kind) (*Generator, error) {
	switch kind {
	case KindCoroutine:
		return ReadCoroutine(tr, addr)
	case KindAsyncGenerator:
		return ReadAsyncGenerator(tr, addr)
	default:
		return ReadGenerator(tr, addr)
	}
}

// gatheringFutureChildren resolves _GatheringFuture's "_children" list
// by reading the instance's own __dict__ and looking up that key by its
// decoded string value — _children is a Python-level attribute, not a C
// struct field, so this is the one referent lookup in this file that
// goes through the generic instance-dict path rather than a fixed
// offset.
func gatheringFutureChildren(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) ([]snapshot.Address, error) {
	h, err := snapshot.Get[PyObjectHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	dictAddr, err := instanceDictAddr(tr, addr, h.Type)
	if err != nil || dictAddr.IsNull() {
		return nil, err
	}
	d, err := ReadDict(tr, dictAddr)
	if err != nil {
		return nil, err
	}
	for _, it := range d.Items {
		s, err := ReadString(tr, it.Key)
		if err != nil {
			continue
		}
		if string(s.Runes) != "_children" {
			continue
		}
		list, err := ReadList(tr, it.Value)
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	}
	return nil, nil
}

// instanceDictAddr resolves the address of obj's __dict__ pointer field,
// given its type's tp_dictoffset (falling back to the conventional fixed
// offset when the type can't be read or its tp_dictoffset is 0). A
// negative tp_dictoffset yields a null address.
func instanceDictAddr(tr *snapshot.TypedReader, addr, typeAddr snapshot.Address) (snapshot.Address, error) {
	offset := int64(dictAttrOffset)
	if t, err := ReadType(tr, typeAddr); err == nil && t.DictOffset != 0 {
		offset = t.DictOffset
	}
	if offset < 0 {
		return snapshot.Null, nil
	}
	ptr, err := snapshot.Get[snapshot.Address](tr, addr.Add(offset))
	if err != nil {
		return snapshot.Null, err
	}
	return *ptr, nil
}

// directReferentsInstance returns the type pointer plus, if present, the
// instance's __dict__.
func directReferentsInstance(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address, h PyObjectHeader) ([]snapshot.Address, error) {
	dictAddr, err := instanceDictAddr(tr, addr, h.Type)
	if err != nil {
		return nil, err
	}
	return nonNull([]snapshot.Address{h.Type, dictAddr}), nil
}

// nonNull filters out null addresses — DirectReferents never includes
// them, since a null field is "no referent", not "referent at address
// zero".
func nonNull(addrs []snapshot.Address) []snapshot.Address {
	out := addrs[:0:0]
	for _, a := range addrs {
		if !a.IsNull() {
			out = append(out, a)
		}
	}
	return out
}
