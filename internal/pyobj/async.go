package pyobj

import (
	"fmt"

	"github.com/relistan/pymemtools/internal/snapshot"
)

// FutureState mirrors asyncio.Future's state machine.
type FutureState int

const (
	FuturePending FutureState = iota
	FutureCancelled
	FutureFinished
)

func (s FutureState) String() string {
	switch s {
	case FuturePending:
		return "PENDING"
	case FutureCancelled:
		return "CANCELLED"
	case FutureFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// pyFutureHeader mirrors _asyncio.Future's C-level fields. Futures are
// ordinary instances with a __dict__ as far as CPython is concerned, but
// _asyncio implements the hot fields as direct struct members for speed;
// those are what this decoder reads.
type pyFutureHeader struct {
	PyObjectHeader
	Loop      snapshot.Address
	Callback0 snapshot.Address
	Result    snapshot.Address
	Exception snapshot.Address
	Source    snapshot.Address
	State     int32
	LogTraceback int32
}

type PyFuture struct {
	Addr      snapshot.Address
	Loop      snapshot.Address
	Callback0 snapshot.Address
	Result    snapshot.Address
	Exception snapshot.Address
	Source    snapshot.Address
	State     FutureState
}

func ReadFuture(tr *snapshot.TypedReader, addr snapshot.Address) (*PyFuture, error) {
	h, err := snapshot.Get[pyFutureHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &PyFuture{
		Addr: addr, Loop: h.Loop, Callback0: h.Callback0, Result: h.Result,
		Exception: h.Exception, Source: h.Source, State: FutureState(h.State),
	}, nil
}

// InvalidReasonFuture checks fut_state's range, then ObjValidOrNull's
// every reference slot a Future carries — loop, the first scheduled
// callback, result, exception, and the originating coroutine/generator —
// each its own §6 tag so a single poisoned slot (e.g. fut_callback0
// pointing at freed memory) is distinguishable from the others.
func InvalidReasonFuture(tr *snapshot.TypedReader, f *PyFuture) string {
	if f.State < FuturePending || f.State > FutureFinished {
		return "invalid_state"
	}
	if !tr.ObjValidOrNull(f.Loop, 16) {
		return "invalid_fut_loop"
	}
	if !tr.ObjValidOrNull(f.Callback0, 16) {
		return "invalid_fut_callback0"
	}
	if !tr.ObjValidOrNull(f.Result, 16) {
		return "invalid_fut_result"
	}
	if !tr.ObjValidOrNull(f.Exception, 16) {
		return "invalid_fut_exception"
	}
	if !tr.ObjValidOrNull(f.Source, 16) {
		return "invalid_fut_source"
	}
	return ""
}

// pyTaskHeader extends pyFutureHeader with the fields unique to Task:
// the wrapped coroutine and the Future/Task it is currently awaiting.
type pyTaskHeader struct {
	pyFutureHeader
	Coro      snapshot.Address
	FutWaiter snapshot.Address
	MustCancel int32
	LogDestroyPendingTb int32
}

type PyTask struct {
	PyFuture
	Coro      snapshot.Address
	FutWaiter snapshot.Address
}

func ReadTask(tr *snapshot.TypedReader, addr snapshot.Address) (*PyTask, error) {
	h, err := snapshot.Get[pyTaskHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &PyTask{
		PyFuture: PyFuture{
			Addr: addr, Loop: h.Loop, Callback0: h.Callback0, Result: h.Result,
			Exception: h.Exception, Source: h.Source, State: FutureState(h.State),
		},
		Coro:      h.Coro,
		FutWaiter: h.FutWaiter,
	}, nil
}

func InvalidReasonTask(tr *snapshot.TypedReader, t *PyTask) string {
	return InvalidReasonFuture(tr, &t.PyFuture)
}

// PyGatheringFuture is asyncio.gather()'s internal _GatheringFuture. Its
// set of children is not a dedicated C field — it is reached by looking
// up "_children" in the instance's __dict__, exactly as the Python-level
// implementation stores it. gatheringFutureChildren (referents.go)
// reads that instance dict and returns the list's items.
type PyGatheringFuture struct {
	PyFuture
}

func ReadGatheringFuture(tr *snapshot.TypedReader, addr snapshot.Address) (*PyGatheringFuture, error) {
	h, err := snapshot.Get[pyFutureHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &PyGatheringFuture{PyFuture{
		Addr: addr, Loop: h.Loop, Callback0: h.Callback0, Result: h.Result,
		Exception: h.Exception, Source: h.Source, State: FutureState(h.State),
	}}, nil
}

func InvalidReasonGatheringFuture(tr *snapshot.TypedReader, g *PyGatheringFuture) string {
	return InvalidReasonFuture(tr, &g.PyFuture)
}

func (f *PyFuture) Repr(className string) string {
	return fmt.Sprintf("<%s %s>", className, f.State)
}

// ErrStackItem mirrors _PyErr_StackItem: the exception currently being
// handled, its value, and its traceback, chained to the previous
// exception context. No decoder in this package reads it, so none of its
// fields are validated or reported by DirectReferents.
type ErrStackItem struct {
	ExcType      snapshot.Address
	ExcValue     snapshot.Address
	ExcTraceback snapshot.Address
	Prev         snapshot.Address
}
