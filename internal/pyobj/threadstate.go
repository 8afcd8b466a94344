package pyobj

import (
	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// ThreadState is not a PyObject — it has no refcount/type header — but
// it is a recognised structure (§3) reachable from the interpreter state
// and worth decoding on its own, since it is the root from which a
// thread's current frame is reached.
//
// Field layout differs materially between 3.10 (a single self-contained
// PyFrameObject chain via ts->frame) and 3.14 (a CFrame indirection
// pointing at the innermost PyInterpreterFrame).
type pyThreadState310 struct {
	Prev      snapshot.Address
	Next      snapshot.Address
	Interp    snapshot.Address
	Frame     snapshot.Address
	RecursionDepth int32
	Pad       int32
	ThreadID  int64
	NativeID  int64
}

type pyThreadState314 struct {
	Prev      snapshot.Address
	Next      snapshot.Address
	Interp    snapshot.Address
	CFrame    snapshot.Address // -> current PyInterpreterFrame
	RecursionDepth int32
	Pad       int32
	ThreadID  int64
	NativeID  int64
}

type ThreadState struct {
	Addr     snapshot.Address
	Prev     snapshot.Address
	Next     snapshot.Address
	Frame    snapshot.Address // resolved current frame, version-independent
	ThreadID int64
	NativeID int64
}

func ReadThreadState(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) (*ThreadState, error) {
	if env.Version == environment.PyVersion314 {
		h, err := snapshot.Get[pyThreadState314](tr, addr)
		if err != nil {
			return nil, err
		}
		return &ThreadState{Addr: addr, Prev: h.Prev, Next: h.Next, Frame: h.CFrame, ThreadID: h.ThreadID, NativeID: h.NativeID}, nil
	}
	h, err := snapshot.Get[pyThreadState310](tr, addr)
	if err != nil {
		return nil, err
	}
	return &ThreadState{Addr: addr, Prev: h.Prev, Next: h.Next, Frame: h.Frame, ThreadID: h.ThreadID, NativeID: h.NativeID}, nil
}

// WalkThreadStates follows the Next chain starting at head, calling fn
// for each decoded state, stopping at the first null Next or the first
// decode error (which it returns). This is a supplementary primitive:
// spec.md recognises thread state as a structure in its own right, and
// while consumers that *use* a thread walk (dumping all running tasks,
// say) are out of scope, the walk itself is not.
func WalkThreadStates(tr *snapshot.TypedReader, env *environment.Environment, head snapshot.Address, fn func(*ThreadState) error) error {
	addr := head
	seen := make(map[snapshot.Address]bool)
	for !addr.IsNull() {
		if seen[addr] {
			break // defensively guard against a corrupted cyclic chain
		}
		seen[addr] = true
		ts, err := ReadThreadState(tr, env, addr)
		if err != nil {
			return err
		}
		if err := fn(ts); err != nil {
			return err
		}
		addr = ts.Next
	}
	return nil
}
