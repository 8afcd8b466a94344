package pyobj

import (
	"fmt"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// FrameState enumerates the execution states a frame can be in; numeric
// values match CPython's own enum and differ between 3.10 and 3.14, so
// each version's decoder translates its raw value into this shared type.
type FrameState int

const (
	FrameCreated FrameState = iota
	FrameSuspended
	FrameExecuting
	FrameCompleted
	FrameCleared
)

// pyFrameHeader310 mirrors PyFrameObject as it existed through 3.10: a
// single self-contained heap object owning its back-pointer, code
// object, globals/locals/builtins dicts, and an inline value stack.
type pyFrameHeader310 struct {
	PyVarObjectHeader
	Back        snapshot.Address
	Code        snapshot.Address
	Builtins    snapshot.Address
	Globals     snapshot.Address
	Locals      snapshot.Address
	ValueStack  snapshot.Address
	StackTop    snapshot.Address
	Trace       snapshot.Address
	LastI       int32
	LineNo      int32
	State       int32
	Pad         int32
}

// pyInterpreterFrameHeader mirrors PyInterpreterFrame, introduced in
// 3.11 and still current in 3.14: frames now live inline in the
// interpreter's C stack (or a generator's heap allocation) rather than
// as independent heap objects, and refer to the "previous" frame rather
// than to their PyFrameObject shell (which, if one was ever materialized
// for introspection, is reached via FrameObj instead).
type pyInterpreterFrameHeader struct {
	ExecutableCode snapshot.Address // PyCodeObject* or a specialized trampoline
	Previous       snapshot.Address
	FrameObj       snapshot.Address
	Globals        snapshot.Address
	Builtins       snapshot.Address
	Locals         snapshot.Address
	StackPointer   snapshot.Address
	InstrPtr       snapshot.Address
	FrameState     int32
	OwnerTag       int32
}

// Frame is the version-independent view.
type Frame struct {
	Addr      snapshot.Address
	Back      snapshot.Address
	Code      snapshot.Address
	Globals   snapshot.Address
	Builtins  snapshot.Address
	Locals    snapshot.Address // 3.10 only; 3.14 locals live on the value stack
	State     FrameState
	LastInstr int64
}

func translateFrameState310(raw int32) FrameState {
	switch raw {
	case 0:
		return FrameCreated
	case 1:
		return FrameExecuting
	case 2:
		return FrameSuspended
	case 3:
		return FrameCompleted
	default:
		return FrameCleared
	}
}

func translateFrameState314(raw int32) FrameState {
	switch raw {
	case 0:
		return FrameCreated
	case 1:
		return FrameSuspended
	case 2:
		return FrameExecuting
	case 3:
		return FrameCompleted
	case 4:
		return FrameCleared
	default:
		return FrameCleared
	}
}

// ReadFrame decodes a frame using the layout env.Version selects. For
// 3.14 this reads a PyInterpreterFrame; its FrameObj pointer to the
// PyFrameObject shell is not carried into Frame.
func ReadFrame(tr *snapshot.TypedReader, env *environment.Environment, addr snapshot.Address) (*Frame, error) {
	if env.Version == environment.PyVersion314 {
		h, err := snapshot.Get[pyInterpreterFrameHeader](tr, addr)
		if err != nil {
			return nil, err
		}
		return &Frame{
			Addr: addr, Back: h.Previous, Code: h.ExecutableCode,
			Globals: h.Globals, Builtins: h.Builtins,
			State: translateFrameState314(h.FrameState),
		}, nil
	}

	h, err := snapshot.Get[pyFrameHeader310](tr, addr)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Addr: addr, Back: h.Back, Code: h.Code, Globals: h.Globals,
		Builtins: h.Builtins, Locals: h.Locals,
		State: translateFrameState310(h.State), LastInstr: int64(h.LastI),
	}, nil
}

// InvalidReasonFrame performs no check and always returns "":
// translateFrameState310/314 map every raw state value (unrecognised ones
// to FrameCleared), an unreadable header is reported by ReadFrame's
// caller, and none of the frame's pointer fields are checked.
func InvalidReasonFrame(*Frame) string { return "" }

// IsRunnableOrRunning reports whether execution can resume on this
// frame (created or suspended) or is currently in progress.
func (f *Frame) IsRunnableOrRunning() bool {
	switch f.State {
	case FrameCreated, FrameSuspended, FrameExecuting:
		return true
	default:
		return false
	}
}

func (f *Frame) Repr(name string, lineNo int) string {
	return fmt.Sprintf("<frame at %s, in %s, line %d>", f.Addr, name, lineNo)
}
